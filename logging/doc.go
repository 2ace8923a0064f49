// Package logging defines the small key/value Logger every router component
// accepts, together with adapters for log/slog and zap.
//
// Events are named with dotted identifiers (route.handoff, api.chat.failed)
// and carry their context as alternating keys and values:
//
//	zl := logging.NewZap(logging.Config{Level: "info", Format: "json"})
//	defer func() { _ = zl.Sync() }()
//
//	r, err := router.New(reg, table, store, func(o *router.Options) {
//		o.Logger = logging.NewZapAdapter(zl)
//	})
//
// Components that receive a nil Logger fall back to NoOpLogger via OrNoOp.
package logging

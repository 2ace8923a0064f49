// Package router implements the conversation router: it resolves the session,
// dispatches the task to the entry agent and follows legal handoff edges until
// an agent produces a final reply.
//
// The router holds no per-turn mutable state. A single Router is safe to use
// from any number of goroutines.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentrouter/agent"
	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/handoff"
	"github.com/hupe1980/agentrouter/logging"
)

// TracerName is the instrumentation scope of router spans.
const TracerName = "github.com/hupe1980/agentrouter/router"

// DefaultMaxHops is the number of handoffs a single turn may follow.
const DefaultMaxHops = 1

// Options configures a Router.
type Options struct {
	// MaxHops bounds the handoffs followed per turn. 0 disables handoffs.
	MaxHops int

	// VerifySessions makes Route check caller-supplied identifiers with
	// ConversationStore.Exists before dispatching.
	VerifySessions bool

	Logger    logging.Logger
	Callbacks *CallbackManager
	Tracer    trace.Tracer
}

// Result is the outcome of a successful Route call.
type Result struct {
	Reply     string
	SessionID string
	Turn      core.Turn
}

// Router routes tasks through the agents of a registry.
type Router struct {
	reg   *agent.Registry
	table *handoff.Table
	store core.ConversationStore
	opts  Options
}

// New creates a router and seals the delegation table.
func New(
	reg *agent.Registry,
	table *handoff.Table,
	store core.ConversationStore,
	optFns ...func(o *Options),
) (*Router, error) {
	opts := Options{
		MaxHops:   DefaultMaxHops,
		Logger:    logging.NoOpLogger{},
		Callbacks: NewCallbackManager(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	switch {
	case reg == nil:
		return nil, core.NewConfigurationError("router", "agent registry is required")
	case table == nil:
		return nil, core.NewConfigurationError("router", "delegation table is required")
	case store == nil:
		return nil, core.NewConfigurationError("router", "conversation store is required")
	case table.Registry() != reg:
		return nil, core.NewConfigurationError("router", "delegation table belongs to a different registry")
	case opts.MaxHops < 0:
		return nil, core.NewConfigurationError("router", "max hops must not be negative, got %d", opts.MaxHops)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(TracerName)
	}

	table.Seal()

	return &Router{reg: reg, table: table, store: store, opts: opts}, nil
}

// Registry returns the agent registry.
func (r *Router) Registry() *agent.Registry { return r.reg }

// Table returns the sealed delegation table.
func (r *Router) Table() *handoff.Table { return r.table }

// Callbacks returns the callback manager for late registration.
func (r *Router) Callbacks() *CallbackManager { return r.opts.Callbacks }

// Route answers task within the session identified by sessionID. An empty
// sessionID starts a new session; any other value is reused unchanged. The
// returned Result carries the (possibly new) identifier.
//
// Failures are never retried. Errors belong to the core taxonomy: transfers
// outside the delegation table yield *core.IllegalHandoffError without a
// redispatch, and completion or store failures yield *core.BackendError.
func (r *Router) Route(ctx context.Context, task, sessionID string) (*Result, error) {
	start := time.Now()

	ctx, span := r.opts.Tracer.Start(ctx, "router.Route", trace.WithAttributes(
		attribute.Bool("agentrouter.session.supplied", sessionID != ""),
	))
	defer span.End()

	turn := core.Turn{
		Input:      task,
		SessionID:  sessionID,
		EntryAgent: r.reg.Entry().Name(),
		StartedAt:  start,
	}

	result, err := r.route(ctx, &turn)
	turn.Duration = time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, core.ErrorKind(err))

		r.opts.Logger.Error("router.route.error",
			"session.id", turn.SessionID,
			"error.kind", core.ErrorKind(err),
			"error", err,
			"duration.ms", turn.Duration.Milliseconds(),
		)

		if cbErr := r.opts.Callbacks.Execute(ctx, &CallbackContext{
			Type:      CallbackOnError,
			Agent:     turn.Responder,
			SessionID: turn.SessionID,
			Hop:       turn.Hops(),
			Turn:      &turn,
			Err:       err,
			Duration:  turn.Duration,
		}); cbErr != nil {
			r.opts.Logger.Warn("router.callback.error", "callback.type", CallbackOnError, "error", cbErr)
		}

		return nil, err
	}

	result.Turn = turn
	span.SetAttributes(
		attribute.String("agentrouter.session.id", turn.SessionID),
		attribute.String("agentrouter.responder", turn.Responder),
		attribute.Int("agentrouter.hops", turn.Hops()),
	)

	r.opts.Logger.Info("router.route.complete",
		"session.id", turn.SessionID,
		"agent.entry", turn.EntryAgent,
		"agent.responder", turn.Responder,
		"hops", turn.Hops(),
		"duration.ms", turn.Duration.Milliseconds(),
	)

	if cbErr := r.opts.Callbacks.Execute(ctx, &CallbackContext{
		Type:      CallbackOnTurnComplete,
		Agent:     turn.Responder,
		SessionID: turn.SessionID,
		Hop:       turn.Hops(),
		Turn:      &turn,
		Duration:  turn.Duration,
	}); cbErr != nil {
		r.opts.Logger.Warn("router.callback.error", "callback.type", CallbackOnTurnComplete, "error", cbErr)
	}

	return result, nil
}

func (r *Router) route(ctx context.Context, turn *core.Turn) (*Result, error) {
	if strings.TrimSpace(turn.Input) == "" {
		return nil, core.ErrEmptyTask
	}

	sessionID, err := r.resolveSession(ctx, turn.SessionID)
	if err != nil {
		return nil, err
	}
	turn.SessionID = sessionID

	r.opts.Logger.Debug("router.route.start",
		"session.id", sessionID,
		"agent.entry", turn.EntryAgent,
	)

	current := r.reg.Entry()

	for hop := 0; ; hop++ {
		turn.Responder = current.Name()

		outcome, err := r.dispatch(ctx, current, turn.Input, sessionID, hop)
		if err != nil {
			return nil, err
		}

		switch o := outcome.(type) {
		case core.FinalReply:
			turn.Output = o.Text
			return &Result{Reply: o.Text, SessionID: sessionID}, nil

		case core.Transfer:
			edge, ok := r.table.Allows(current.Name(), o.Target)
			if !ok {
				return nil, &core.IllegalHandoffError{Source: current.Name(), Target: o.Target}
			}
			if hop >= r.opts.MaxHops {
				return nil, &core.IllegalHandoffError{
					Source: current.Name(),
					Target: o.Target,
					Reason: "hop limit reached",
				}
			}

			next, ok := r.reg.Get(o.Target)
			if !ok {
				// Unreachable: the table only holds registered endpoints.
				return nil, &core.UnknownAgentError{Name: o.Target, Role: "target"}
			}

			if err := r.opts.Callbacks.Execute(ctx, &CallbackContext{
				Type:      CallbackOnHandoff,
				Agent:     current.Name(),
				SessionID: sessionID,
				Hop:       hop,
				Edge:      &edge,
				Outcome:   o,
			}); err != nil {
				return nil, err
			}

			r.opts.Logger.Info("router.handoff",
				"session.id", sessionID,
				"handoff.source", edge.Source,
				"handoff.target", edge.Target,
				"hop", hop+1,
			)

			trace.SpanFromContext(ctx).AddEvent("handoff", trace.WithAttributes(
				attribute.String("agentrouter.handoff.source", edge.Source),
				attribute.String("agentrouter.handoff.target", edge.Target),
			))

			turn.Handoffs = append(turn.Handoffs, edge)
			turn.Interim = append(turn.Interim, o.Text)
			current = next

		case nil:
			return nil, &core.BackendError{Agent: current.Name(), Message: "completion service returned no outcome"}

		default:
			return nil, &core.BackendError{
				Agent:   current.Name(),
				Message: fmt.Sprintf("unsupported outcome %T", outcome),
			}
		}
	}
}

// resolveSession returns sessionID unchanged or creates a new session.
func (r *Router) resolveSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		id, err := r.store.Create(ctx)
		if err != nil {
			return "", asStoreError("create session", err)
		}
		if id == "" {
			return "", &core.BackendError{Message: "conversation store returned an empty session id"}
		}
		r.opts.Logger.Debug("router.session.created", "session.id", id)
		return id, nil
	}

	if r.opts.VerifySessions {
		ok, err := r.store.Exists(ctx, sessionID)
		if err != nil {
			return "", asStoreError("lookup session", err)
		}
		if !ok {
			return "", &core.BackendError{Status: 404, Message: fmt.Sprintf("session %q not found", sessionID)}
		}
	}

	return sessionID, nil
}

func asStoreError(op string, err error) error {
	if core.IsRoutingError(err) {
		return err
	}
	return &core.BackendError{Message: op + ": " + err.Error(), Err: err}
}

// dispatch sends one request to a's completion service.
func (r *Router) dispatch(ctx context.Context, a *agent.Agent, task, sessionID string, hop int) (core.Outcome, error) {
	ctx, span := r.opts.Tracer.Start(ctx, "router.dispatch", trace.WithAttributes(
		attribute.String("agentrouter.agent", a.Name()),
		attribute.Int("agentrouter.hop", hop),
	))
	defer span.End()

	req := core.Request{
		Agent:        a.Name(),
		Description:  a.Description(),
		Instruction:  a.Instruction(),
		Capabilities: a.Capabilities(),
		Handoffs:     r.table.EdgesFrom(a.Name()),
		Task:         task,
		SessionID:    sessionID,
		Hop:          hop,
	}

	if hop >= r.opts.MaxHops {
		// No further handoff can be followed; do not offer any.
		req.Handoffs = []core.DelegationEdge{}
	}

	if err := r.opts.Callbacks.Execute(ctx, &CallbackContext{
		Type:      CallbackBeforeDispatch,
		Agent:     a.Name(),
		SessionID: sessionID,
		Hop:       hop,
		Request:   &req,
	}); err != nil {
		return nil, err
	}

	r.opts.Logger.Debug("router.dispatch",
		"session.id", sessionID,
		"agent.name", a.Name(),
		"hop", hop,
		"handoffs", len(req.Handoffs),
	)

	start := time.Now()
	outcome, err := a.Service().Respond(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		err = core.AsBackendError(a.Name(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
	}

	if cbErr := r.opts.Callbacks.Execute(ctx, &CallbackContext{
		Type:      CallbackAfterDispatch,
		Agent:     a.Name(),
		SessionID: sessionID,
		Hop:       hop,
		Request:   &req,
		Outcome:   outcome,
		Err:       err,
		Duration:  elapsed,
	}); cbErr != nil && err == nil {
		return nil, cbErr
	}

	if err != nil {
		return nil, err
	}
	return outcome, nil
}

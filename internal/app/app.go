// Package app assembles a deployment from configuration: the session store,
// the models, the agents, the delegation table and the router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentrouter/agent"
	"github.com/hupe1980/agentrouter/completion"
	"github.com/hupe1980/agentrouter/config"
	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/handoff"
	"github.com/hupe1980/agentrouter/internal/metrics"
	"github.com/hupe1980/agentrouter/internal/support"
	"github.com/hupe1980/agentrouter/logging"
	"github.com/hupe1980/agentrouter/model"
	anthropicmodel "github.com/hupe1980/agentrouter/model/anthropic"
	openaimodel "github.com/hupe1980/agentrouter/model/openai"
	"github.com/hupe1980/agentrouter/remote"
	"github.com/hupe1980/agentrouter/router"
	"github.com/hupe1980/agentrouter/session"
)

// Store is what the router and the local agents need from a session backend.
type Store interface {
	core.ConversationStore
	core.HistoryStore
}

// Options configures New.
type Options struct {
	Logger logging.Logger

	// Collector receives router callbacks when set.
	Collector *metrics.Collector

	// Models overrides or adds named models. Tests use it to inject
	// model.MockModel instances.
	Models map[string]model.Model

	// RemoteHTTPClient is used for the hosted agent backend.
	RemoteHTTPClient *http.Client

	// LookupEnv resolves api_key_env. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// App is an assembled deployment.
type App struct {
	Config   *config.Config
	Registry *agent.Registry
	Table    *handoff.Table
	Router   *router.Router
	Store    Store

	logger  logging.Logger
	pingers []func(ctx context.Context) error
	closers []func() error
}

// New builds the deployment described by cfg. Close releases the store
// connections even when New fails halfway.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*App, error) {
	opts := Options{LookupEnv: os.LookupEnv}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, logger: opts.Logger}

	remoteClient, err := a.buildRemoteClient(opts)
	if err != nil {
		return nil, err
	}

	if err := a.buildStore(ctx, remoteClient); err != nil {
		_ = a.Close()
		return nil, err
	}

	agents, err := a.buildAgents(remoteClient, opts)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Registry, err = agent.NewRegistry(agents...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	edges := make([]core.DelegationEdge, 0, len(cfg.Handoffs))
	for _, h := range cfg.Handoffs {
		edges = append(edges, core.DelegationEdge{Source: h.Source, Target: h.Target, Description: h.Description})
	}
	a.Table, err = handoff.Build(a.Registry, edges...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	callbacks := router.NewCallbackManager()
	if opts.Collector != nil {
		callbacks.Register(opts.Collector.Callbacks()...)
	}

	a.Router, err = router.New(a.Registry, a.Table, a.Store, func(o *router.Options) {
		o.MaxHops = cfg.Router.MaxHops
		o.VerifySessions = cfg.Router.VerifySessions
		o.Logger = opts.Logger
		o.Callbacks = callbacks
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	opts.Logger.Info("app.ready",
		"agents", a.Registry.Names(),
		"entry", a.Registry.Entry().Name(),
		"edges", len(a.Table.Edges()),
		"session.backend", cfg.Session.Backend,
	)

	return a, nil
}

func (a *App) buildRemoteClient(opts Options) (*remote.Client, error) {
	cfg := a.Config
	if cfg.Session.Backend != config.BackendRemote && !cfg.HasRemoteAgents() {
		return nil, nil
	}

	rc := cfg.Remote
	client, err := remote.NewClient(rc.Endpoint, func(o *remote.ClientOptions) {
		if rc.APIVersion != "" {
			o.APIVersion = rc.APIVersion
		}
		o.APIKey = rc.APIKey
		if rc.OAuth.TokenURL != "" {
			o.OAuth = &remote.OAuthConfig{
				TokenURL:     rc.OAuth.TokenURL,
				ClientID:     rc.OAuth.ClientID,
				ClientSecret: rc.OAuth.ClientSecret,
				Scopes:       rc.OAuth.Scopes,
			}
		}
		o.HTTPClient = opts.RemoteHTTPClient
		if rc.Timeout > 0 {
			o.Timeout = rc.Timeout
		}
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, &core.ConfigurationError{Component: "app", Message: "remote backend", Err: err}
	}
	return client, nil
}

func (a *App) buildStore(ctx context.Context, remoteClient *remote.Client) error {
	sc := a.Config.Session

	switch sc.Backend {
	case config.BackendMemory:
		a.Store = session.NewMemoryStore()

	case config.BackendRedis:
		client, err := session.DialRedis(ctx, sc.Redis.Addr, sc.Redis.Password, sc.Redis.DB)
		if err != nil {
			return err
		}
		store := session.NewRedisStore(client, func(o *session.RedisOptions) {
			if sc.Redis.KeyPrefix != "" {
				o.KeyPrefix = sc.Redis.KeyPrefix
			}
			o.TTL = sc.Redis.TTL
			o.Logger = a.logger
		})
		a.Store = store
		a.pingers = append(a.pingers, store.Ping)
		a.closers = append(a.closers, store.Close)

	case config.BackendSQLite:
		store, err := session.OpenSQLite(sc.SQLite.Path, func(o *session.SQLiteOptions) {
			o.Logger = a.logger
		})
		if err != nil {
			return err
		}
		a.Store = store
		a.pingers = append(a.pingers, store.Ping)
		a.closers = append(a.closers, store.Close)

	case config.BackendRemote:
		a.Store = remote.NewThreadStore(remoteClient)

	default:
		return core.NewConfigurationError("app", "unknown session backend %q", sc.Backend)
	}

	a.logger.Info("app.store", "session.backend", sc.Backend)
	return nil
}

func (a *App) buildAgents(remoteClient *remote.Client, opts Options) ([]*agent.Agent, error) {
	cfg := a.Config
	models := make(map[string]model.Model, len(opts.Models))
	for name, m := range opts.Models {
		models[name] = m
	}

	agents := make([]*agent.Agent, 0, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		var (
			service core.CompletionService
			caps    []core.Capability
		)

		if ac.Remote {
			rc := cfg.Remote
			service = remote.NewAgentService(remoteClient, cfg.RemoteAgentID(ac), func(o *remote.ServiceOptions) {
				if rc.PollInterval > 0 {
					o.PollInterval = rc.PollInterval
				}
				if rc.RunTimeout > 0 {
					o.RunTimeout = rc.RunTimeout
				}
				o.TrimSuffixes = rc.TrimSuffixes
				o.Logger = a.logger
			})
		} else {
			m, ok := models[ac.Model]
			if !ok {
				mc, ok := cfg.Models[ac.Model]
				if !ok {
					return nil, core.NewConfigurationError("app", "agent %s: unknown model %q", ac.Name, ac.Model)
				}
				var err error
				if m, err = buildModel(ac.Model, mc, opts.LookupEnv); err != nil {
					return nil, err
				}
				models[ac.Model] = m
			}

			var err error
			if caps, err = support.NewSet(ac.Capabilities, a.logger); err != nil {
				return nil, fmt.Errorf("agent %s: %w", ac.Name, err)
			}

			cc := cfg.Completion
			service = completion.NewModelService(m, func(o *completion.Options) {
				o.History = a.Store
				o.MaxModelCalls = cc.MaxModelCalls
				o.MaxHistoryMessages = cc.MaxHistoryMessages
				o.MaxParallelTools = cc.MaxParallelTools
				o.Logger = a.logger
			})
		}

		entry := ac.Entry || (cfg.Router.EntryAgent != "" && cfg.Router.EntryAgent == ac.Name)
		agents = append(agents, agent.New(ac.Name, service, func(o *agent.Options) {
			o.Description = ac.Description
			o.Instruction = ac.Instruction
			o.Capabilities = caps
			o.Entry = entry
		}))
	}

	return agents, nil
}

func buildModel(name string, mc config.ModelConfig, lookupEnv func(string) (string, bool)) (model.Model, error) {
	apiKey := mc.APIKey
	if apiKey == "" && mc.APIKeyEnv != "" && lookupEnv != nil {
		apiKey, _ = lookupEnv(mc.APIKeyEnv)
	}

	switch mc.Provider {
	case config.ProviderOpenAI:
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if mc.Model != "" {
				o.Model = mc.Model
			}
			o.APIKey = apiKey
			o.BaseURL = mc.BaseURL
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = mc.MaxTokens
			}
		}), nil

	case config.ProviderAzure:
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if mc.Model != "" {
				o.Model = mc.Model
			}
			o.BaseURL = mc.BaseURL
			o.AzureAPIKey = apiKey
			o.AzureAPIVersion = mc.APIVersion
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = mc.MaxTokens
			}
		}), nil

	case config.ProviderAnthropic:
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if mc.Model != "" {
				o.Model = anthropic.Model(mc.Model)
			}
			o.APIKey = apiKey
			o.BaseURL = mc.BaseURL
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxTokens = mc.MaxTokens
			}
		}), nil

	default:
		return nil, core.NewConfigurationError("app", "model %s: unknown provider %q", name, mc.Provider)
	}
}

// Ready pings the session backend when it supports it.
func (a *App) Ready(ctx context.Context) error {
	for _, ping := range a.pingers {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

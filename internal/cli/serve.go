package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentrouter/api"
	"github.com/hupe1980/agentrouter/config"
	"github.com/hupe1980/agentrouter/internal/app"
	"github.com/hupe1980/agentrouter/internal/metrics"
	"github.com/hupe1980/agentrouter/internal/server"
	"github.com/hupe1980/agentrouter/internal/telemetry"
	"github.com/hupe1980/agentrouter/logging"
)

func newServeCmd(st *state) *cobra.Command {
	var (
		addr        string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := st.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Server.MetricsAddr = metricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, st.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "API listen address (overrides server.addr)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "metrics listen address, empty disables it")

	return cmd
}

// serve runs the API and metrics servers until ctx is done or one of them
// fails.
func serve(ctx context.Context, cfg *config.Config, logger logging.Logger) (err error) {
	logger = logging.OrNoOp(logger)

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err = errors.Join(err, providers.Shutdown(shutdownCtx))
	}()

	collector := metrics.NewCollector(metrics.DefaultNamespace, logger)

	a, err := app.New(ctx, cfg, func(o *app.Options) {
		o.Logger = logger
		o.Collector = collector
	})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close()) }()

	managers := []*server.Manager{
		server.NewManager(newAPIHandler(ctx, cfg, a, collector, logger), serverConfig("api", cfg.Server.Addr, cfg.Server), logger),
	}
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		managers = append(managers, server.NewManager(mux, serverConfig("metrics", cfg.Server.MetricsAddr, cfg.Server), logger))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range managers {
		if err := m.Start(); err != nil {
			_ = shutdownAll(managers, cfg.Server)
			return err
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case err := <-m.Errors():
				return err
			}
		})
	}

	logger.Info("serve.ready", "api.addr", managers[0].Addr(), "entry", a.Registry.Entry().Name())

	serveErr := g.Wait()
	logger.Info("serve.stopping", "error", serveErr)

	return errors.Join(serveErr, shutdownAll(managers, cfg.Server))
}

func shutdownAll(managers []*server.Manager, sc config.ServerConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, m := range managers {
		if err := m.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func serverConfig(name, addr string, sc config.ServerConfig) server.Config {
	return server.Config{
		Name:            name,
		Addr:            addr,
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		IdleTimeout:     sc.IdleTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: sc.ShutdownTimeout,
	}
}

// newAPIHandler wraps the chat handler in the middleware chain. The rate
// limiter sweeper stops with ctx.
func newAPIHandler(ctx context.Context, cfg *config.Config, a *app.App, collector *metrics.Collector, logger logging.Logger) http.Handler {
	handler := api.NewHandler(a.Router, func(o *api.Options) {
		o.SessionHeader = cfg.Server.SessionHeader
		if cfg.Server.MaxBodyBytes > 0 {
			o.MaxBodyBytes = cfg.Server.MaxBodyBytes
		}
		o.Logger = logger
		o.Ready = a.Ready
	})

	middlewares := []api.Middleware{
		api.Recovery(logger),
		api.RequestID(),
		api.Tracing(),
		api.Metrics(collector),
		api.RequestLogger(logger),
	}
	if rl := cfg.Server.RateLimit; rl.RPS > 0 {
		middlewares = append(middlewares, api.RateLimit(ctx, rl.RPS, rl.Burst, logger))
	}

	return api.Chain(handler, middlewares...)
}

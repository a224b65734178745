package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/jiramcp/internal/cache"
	"github.com/pitabwire/jiramcp/internal/config"
	"github.com/pitabwire/jiramcp/internal/credential"
	"github.com/pitabwire/jiramcp/internal/definition"
	"github.com/pitabwire/jiramcp/internal/invoker"
	"github.com/pitabwire/jiramcp/internal/jira"
	"github.com/pitabwire/jiramcp/internal/observability"
	"github.com/pitabwire/jiramcp/internal/tools"
	"github.com/pitabwire/jiramcp/internal/transport"
	"github.com/pitabwire/jiramcp/internal/workflow"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio or streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	token, err := credential.NewSource(cfg.Jira.Keyring).Resolve(cfg.Jira)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "jira-mcp", version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)
	clock := clockwork.NewRealClock()

	store, err := cache.Open(ctx, cfg.Cache, clock)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	client := jira.New(cfg.Jira, token,
		jira.WithCache(store, cfg.Cache.TTL),
		jira.WithClock(clock),
		jira.WithLogger(logger.Named("jira")),
		jira.WithMetrics(metrics),
	)

	actions := invoker.NewActionRegistry()
	workflow.RegisterBuiltinActions(actions)
	registry := definition.NewRegistry()
	catalog := definition.NewCatalog(registry, definition.NewValidator(actions),
		workflow.Builtins(), cfg.Workflow.Directories, logger.Named("definitions"))
	if err := catalog.Reload(); err != nil {
		return fmt.Errorf("loading workflow definitions: %w", err)
	}
	metrics.SetDefinitionsLoaded(float64(registry.Len()))

	sink, closeSink, err := openAuditSink(ctx, cfg.Workflow.Audit, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	engineOpts := []workflow.Option{
		workflow.WithClock(clock),
		workflow.WithLogger(logger.Named("workflow")),
		workflow.WithMetrics(metrics),
	}
	if sink != nil {
		engineOpts = append(engineOpts, workflow.WithEventSink(sink))
	}
	engine := workflow.NewEngine(registry, workflow.NewMemoryInstanceStore(), actions, engineOpts...)

	srv, err := tools.NewServer(client, engine,
		tools.WithLogger(logger.Named("tools")),
		tools.WithMetrics(metrics),
		tools.WithOperator(cfg.Jira.Email),
		tools.WithCallTimeout(cfg.Server.ToolTimeout),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Workflow.HotReload && len(cfg.Workflow.Directories) > 0 {
		watcher := definition.NewWatcher(catalog, clock, logger.Named("definitions"))
		watcher.OnReload(func(err error) {
			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.RecordDefinitionReload(status)
			metrics.SetDefinitionsLoaded(float64(registry.Len()))
		})
		g.Go(func() error { return watcher.Run(gctx) })
	}

	logger.Info("server starting",
		zap.String("transport", cfg.Server.Transport),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("tools", len(srv.ToolNames())),
		zap.Int("definitions", registry.Len()),
	)

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		readiness := observability.ReadinessChecks{
			DefinitionsLoaded: func() bool { return registry.Len() > 0 },
			Jira:              client,
			Cache:             store,
		}
		if hc, ok := sink.(observability.HealthChecker); ok {
			readiness.AuditSink = hc
		}
		if err := serveHTTP(gctx, g, cfg, srv, readiness, metrics, logger); err != nil {
			return err
		}
	default:
		g.Go(func() error {
			// Closing stdin ends the session and the process.
			defer stop()
			return srv.ServeStdio(gctx, cmd.InOrStdin(), cmd.OutOrStdout(), cfg.Server.WorkerPoolSize)
		})
	}

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if terr := tracingShutdown(shutdownCtx); terr != nil {
		logger.Error("tracing shutdown error", zap.Error(terr))
	}
	logger.Info("shutdown complete")
	return err
}

// serveHTTP starts the HTTP listener and its shutdown hook on g.
func serveHTTP(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	srv *tools.Server,
	readiness observability.ReadinessChecks,
	metrics *observability.Metrics,
	logger *zap.Logger,
) error {
	auth, jwks, err := transport.NewAuthenticator(cfg.Auth, logger.Named("auth"))
	if err != nil {
		return err
	}
	if jwks != nil {
		readiness.Identity = jwks
	}

	mcpHandler := srv.HTTPHandler(cfg.Server.EndpointPath, cfg.Server.Stateless)
	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger.Named("http"),
		MCP:          mcpHandler,
		Authenticate: auth,
		Metrics:      metrics,
		Readiness:    readiness,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		logger.Info("Jira MCP server listening",
			zap.String("addr", httpSrv.Addr),
			zap.String("endpoint", cfg.Server.EndpointPath),
			zap.Bool("auth", auth != nil),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := mcpHandler.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp handler shutdown error", zap.Error(err))
		}
		return httpSrv.Shutdown(shutdownCtx)
	})
	return nil
}

// openAuditSink builds the workflow event sink selected by cfg. The sink is
// nil when auditing is off; the returned closer is never nil.
func openAuditSink(ctx context.Context, cfg config.AuditConfig, logger *zap.Logger) (workflow.EventSink, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("recording workflow events in memory")
		return workflow.NewMemoryEventSink(), func() {}, nil
	case "postgres":
		pool, err := openPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		sink := workflow.NewPgEventSink(pool)
		if err := sink.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("workflow audit: %w", err)
		}
		logger.Info("recording workflow events in postgres")
		return sink, sink.Close, nil
	case "", "none":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("workflow audit: unknown driver %q", cfg.Driver)
	}
}

// openPool connects to the audit database named by cfg.DSNEnv.
func openPool(ctx context.Context, cfg config.AuditConfig) (*pgxpool.Pool, error) {
	dsn := os.Getenv(cfg.DSNEnv)
	if dsn == "" {
		return nil, fmt.Errorf("workflow audit: %s environment variable not set", cfg.DSNEnv)
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("workflow audit: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("workflow audit: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("workflow audit: ping: %w", err)
	}
	return pool, nil
}

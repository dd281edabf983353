// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole-sync/internal/api"
	"github.com/JakeFAU/searchconsole-sync/internal/auth"
	"github.com/JakeFAU/searchconsole-sync/internal/clock/system"
	"github.com/JakeFAU/searchconsole-sync/internal/config"
	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
	"github.com/JakeFAU/searchconsole-sync/internal/id/uuid"
	"github.com/JakeFAU/searchconsole-sync/internal/logging"
	"github.com/JakeFAU/searchconsole-sync/internal/metrics"
	"github.com/JakeFAU/searchconsole-sync/internal/policy/ratelimit"
	"github.com/JakeFAU/searchconsole-sync/internal/policy/simple"
	"github.com/JakeFAU/searchconsole-sync/internal/propertycache"
	"github.com/JakeFAU/searchconsole-sync/internal/scheduler"
	"github.com/JakeFAU/searchconsole-sync/internal/searchconsole"
	memoryStorage "github.com/JakeFAU/searchconsole-sync/internal/storage/memory"
	pgstore "github.com/JakeFAU/searchconsole-sync/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/searchconsole-sync/internal/storage/sqlite"
	"github.com/JakeFAU/searchconsole-sync/internal/syncer"
	"github.com/JakeFAU/searchconsole-sync/internal/upsert"
	"github.com/JakeFAU/searchconsole-sync/internal/usage"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	backend   backend
	client    *searchconsole.Client
	cache     *propertycache.Cache
	syncer    *syncer.Syncer
	ticker    *scheduler.Ticker
	apiServer *api.Server
}

// backend bundles the stores of one storage engine.
type backend struct {
	name  string
	stats gsc.StatStore
	usage gsc.UsageStore
	props gsc.PropertyStore
	ping  func(context.Context) error
	close func() error
}

// Build creates the logger and then the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return New(ctx, cfg, logger)
}

// New wires the application with the given logger.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("schedule_enabled", cfg.Schedule.Enabled),
	)
	metrics.Init()

	clock := system.New()
	app := &App{cfg: cfg, logger: logger}

	var err error
	app.backend, err = setupStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	recorder := usage.NewRecorder(app.backend.usage, clock, logger.Named("usage"))
	limiter, limits := setupLimiter(ctx, cfg, clock, recorder, logger)

	app.client = searchconsole.New(searchconsole.Config{
		WebmastersBaseURL:    cfg.Google.WebmastersBaseURL,
		SearchConsoleBaseURL: cfg.Google.SearchConsoleBaseURL,
		IndexingBaseURL:      cfg.Google.IndexingBaseURL,
		ReadTimeout:          cfg.Google.ReadTimeout,
		QueryTimeout:         cfg.Google.QueryTimeout,
	}, setupTokens(cfg, logger), limiter, recorder, logger.Named("searchconsole"))

	app.cache = propertycache.New(
		propertycache.Config{TTL: cfg.Cache.PropertyTTL},
		app.client,
		app.backend.props,
		clock,
		logger.Named("properties"),
	)
	if err := app.cache.Warm(ctx); err != nil {
		logger.Warn("property cache warm failed", zap.Error(err))
	}

	catalog, err := cfg.Sync.DimensionSets()
	if err != nil {
		_ = app.closeBackend()
		return nil, fmt.Errorf("sync catalog: %w", err)
	}
	app.syncer = syncer.New(syncer.Config{
		Catalog:       catalog,
		RowLimit:      cfg.Sync.RowLimit,
		MaxPages:      cfg.Sync.MaxPages,
		DataState:     gsc.DataState(cfg.Sync.DataState),
		CallDelay:     cfg.Sync.CallDelay,
		PropertyDelay: cfg.Sync.PropertyDelay,
		Workers:       cfg.Sync.Workers,
	},
		app.client,
		app.cache,
		upsert.New(app.backend.stats, clock, logger.Named("upsert")),
		clock,
		uuid.New(),
		logger.Named("syncer"),
	)

	app.ticker = scheduler.NewTicker(cfg.Schedule.RunOnStart, logger.Named("scheduler"))
	if err := scheduler.RegisterJobs(app.ticker, app.syncer, scheduler.JobsConfig{
		DailyInterval:  cfg.Schedule.DailyInterval,
		HourlyInterval: cfg.Schedule.HourlyInterval,
		LookbackDays:   cfg.Sync.LookbackDays,
	}); err != nil {
		_ = app.closeBackend()
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	app.apiServer = api.NewServer(api.Dependencies{
		Syncer:     app.syncer,
		Remote:     app.client,
		Properties: app.cache,
		Stats:      app.backend.stats,
		Usage:      recorder,
		Limits:     limits,
		Clock:      clock,
		Ready:      app.backend.ping,
	}, cfg, logger.Named("api"))

	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run supervises the HTTP server and the scheduled jobs until the context is
// canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	root := newSupervisor(a.cfg.Server.ShutdownTimeout, a.logger.Named("supervisor"))
	root.Add(newHTTPService(srv, a.cfg.Server.ShutdownTimeout))
	if a.cfg.Schedule.Enabled {
		for _, svc := range a.ticker.Services() {
			root.Add(svc)
		}
	} else {
		a.logger.Info("scheduler disabled, jobs run only on demand")
	}

	a.logger.Info("application started", zap.Int("port", a.cfg.Server.Port))
	// ServeBackground sends exactly one value and never closes the channel.
	runErr := <-root.ServeBackground(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if runErr != nil {
		a.logger.Error("supervisor stopped with error", zap.Error(runErr))
	}
	if unstopped, err := root.UnstoppedServiceReport(); err == nil {
		for _, svc := range unstopped {
			a.logger.Warn("service failed to stop", zap.String("service", svc.Name))
		}
	}

	a.logger.Info("shutdown initiated")
	if err := a.Close(); err != nil {
		return err
	}
	return runErr
}

// RunJob triggers one registered job synchronously and closes the app.
func (a *App) RunJob(ctx context.Context, name string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("running job once", zap.String("job", name))
	jobErr := a.ticker.RunOnce(ctx, name)
	if jobErr != nil {
		a.logger.Error("job failed", zap.String("job", name), zap.Error(jobErr))
	}
	if err := a.Close(); err != nil && jobErr == nil {
		return err
	}
	return jobErr
}

// Close releases storage and flushes the logger.
func (a *App) Close() error {
	err := a.closeBackend()
	if syncErr := a.logger.Sync(); syncErr != nil {
		a.logger.Debug("logger sync failed", zap.Error(syncErr))
	}
	a.logger.Info("shutdown complete")
	return err
}

func (a *App) closeBackend() error {
	if a.backend.close == nil {
		return nil
	}
	if err := a.backend.close(); err != nil {
		a.logger.Warn("storage close failed", zap.String("backend", a.backend.name), zap.Error(err))
		return fmt.Errorf("close %s storage: %w", a.backend.name, err)
	}
	return nil
}

func setupStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		logger.Info("using sqlite storage backend", zap.String("path", cfg.Storage.SQLitePath))
		store, err := sqlitestore.Open(ctx, cfg.Storage.SQLitePath, logger.Named("sqlite"))
		if err != nil {
			return backend{}, fmt.Errorf("sqlite store init failed: %w", err)
		}
		return backend{
			name:  config.BackendSQLite,
			stats: store,
			usage: store,
			props: store,
			ping:  store.Ping,
			close: store.Close,
		}, nil
	case config.BackendPostgres:
		logger.Info("using postgres storage backend", zap.Bool("migrate", cfg.Storage.Postgres.Migrate))
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: cfg.Storage.Postgres.MaxConnLifetime,
			Migrate:         cfg.Storage.Postgres.Migrate,
		}, logger.Named("postgres"))
		if err != nil {
			return backend{}, fmt.Errorf("postgres store init failed: %w", err)
		}
		return backend{
			name:  config.BackendPostgres,
			stats: store,
			usage: store,
			props: store,
			ping:  store.Ping,
			close: store.Close,
		}, nil
	default:
		logger.Info("using in-memory storage backend")
		return backend{
			name:  config.BackendMemory,
			stats: memoryStorage.NewStatStore(),
			usage: memoryStorage.NewUsageStore(),
			props: memoryStorage.NewPropertyStore(),
		}, nil
	}
}

// setupLimiter returns the limiter handed to the client and, when it tracks
// windows, the same limiter as an api.LimitState.
func setupLimiter(
	ctx context.Context,
	cfg config.Config,
	clock gsc.Clock,
	recorder *usage.Recorder,
	logger *zap.Logger,
) (gsc.RateLimiter, api.LimitState) {
	if !cfg.RateLimit.Enabled {
		logger.Info("rate limiter disabled, using simple policy")
		return simple.New(), nil
	}
	limiter := ratelimit.New(cfg.RateLimit.Limiter(), clock)
	if err := recorder.SeedLimiter(ctx, limiter, gsc.ServiceSearchConsole, gsc.ServiceIndexing); err != nil {
		logger.Warn("rate limit seeding failed", zap.Error(err))
	}
	logger.Info("rate limiter enabled",
		zap.Duration("default_window", cfg.RateLimit.Default.Window),
		zap.Int("default_max_calls", cfg.RateLimit.Default.MaxCalls),
	)
	return limiter, limiter
}

func setupTokens(cfg config.Config, logger *zap.Logger) gsc.TokenProvider {
	if cfg.Google.UsesOAuth() {
		logger.Info("using oauth refresh tokens")
		return auth.NewOAuthProvider(auth.OAuthConfig{
			ClientID:      cfg.Google.ClientID,
			ClientSecret:  cfg.Google.ClientSecret,
			RefreshTokens: cfg.Google.RefreshTokens,
			TokenURL:      cfg.Google.TokenURL,
			Timeout:       cfg.Google.ReadTimeout,
		})
	}
	logger.Warn("no google client id configured, using static access tokens")
	return auth.Static(cfg.Google.AccessTokens)
}

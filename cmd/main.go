package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/scoreboard/internal/adapters/catalog"
	"github.com/okian/scoreboard/internal/adapters/coalesce"
	"github.com/okian/scoreboard/internal/adapters/http/api"
	"github.com/okian/scoreboard/internal/adapters/http/swagger"
	"github.com/okian/scoreboard/internal/adapters/repository"
	service "github.com/okian/scoreboard/internal/app"
	"github.com/okian/scoreboard/internal/config"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	resweepBurst              = 1
)

func main() {
	// We collect our own system metrics instead of the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(); err != nil {
		logger.Get().Error(context.Background(), "scoreboard exited", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		log.Warn(ctx, "invalid log_format; keeping text", logger.String("log_format", cfg.LogFormat), logger.Error(err))
	}
	log = logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close(context.Background())

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, app.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// application is the wired process: backends, service and HTTP handler.
type application struct {
	svc       *service.Service
	store     repository.Store
	coalescer coalesce.Coalescer
	handler   http.Handler
	log       logger.Logger
}

// build wires every component selected by cfg and starts the service.
// On error, anything already opened is closed.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (app *application, err error) {
	app = &application{log: log}
	defer func() {
		if err != nil {
			app.close(ctx)
			app = nil
		}
	}()

	app.store, err = openStore(ctx, cfg, log)
	if err != nil {
		return app, err
	}

	app.coalescer, err = openCoalescer(ctx, cfg)
	if err != nil {
		return app, err
	}

	courses, err := catalog.Load(ctx, cfg.CatalogDir, log.Named("catalog"))
	if err != nil {
		return app, err
	}

	app.svc = service.New(app.store, courses, courses,
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.SweepWorkers),
		service.WithQueueSize(cfg.SweepQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithSweepDebounce(time.Duration(cfg.SweepDebounceMS)*time.Millisecond),
		service.WithMaxPageLimit(cfg.MaxPageLimit),
		service.WithCoalescer(app.coalescer),
	)
	if err := app.svc.Start(ctx); err != nil {
		app.svc = nil
		return app, fmt.Errorf("start service: %w", err)
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	apiOpts := []api.Option{
		api.WithLogger(log),
		api.WithResweepRate(cfg.ResweepRPS, resweepBurst),
	}
	if pg, ok := app.store.(*repository.PostgresStore); ok {
		apiOpts = append(apiOpts, api.WithReadiness(pg.Ping))
	}
	api.NewServer(app.svc, app.svc, apiOpts...).Register(ctx, mux)
	app.handler = api.RequestIDMiddleware(mux)

	return app, nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	if cfg.Store != config.StorePostgres {
		return repository.NewMemoryStore(), nil
	}
	pg, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	log.Info(ctx, "using postgres ledger store",
		logger.Int("max_conns", cfg.DBMaxConns),
		logger.Int("min_conns", cfg.DBMinConns),
	)
	return pg, nil
}

func openCoalescer(ctx context.Context, cfg *config.Config) (coalesce.Coalescer, error) {
	if cfg.Coalescer != config.CoalescerRedis {
		return coalesce.NewMemory(), nil
	}
	r, err := coalesce.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}
	return r, nil
}

// close stops the service, then releases the backends.
func (a *application) close(ctx context.Context) {
	if a.svc != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		if err := a.svc.Stop(stopCtx); err != nil {
			a.log.Error(ctx, "service stop failed", logger.Error(err))
		}
		cancel()
	}
	if a.coalescer != nil {
		if err := a.coalescer.Close(); err != nil {
			a.log.Error(ctx, "coalescer close failed", logger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error(ctx, "store close failed", logger.Error(err))
		}
	}
}

// startSystemMetricsUpdater periodically publishes runtime metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater periodically publishes queue and worker gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if queueSize, ok := stats["queueSize"].(int); ok {
		metrics.UpdateQueueCapacity(queueSize)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}

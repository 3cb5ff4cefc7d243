package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/kpiboard/internal/adapters/http/api"
	"github.com/okian/kpiboard/internal/adapters/http/swagger"
	app "github.com/okian/kpiboard/internal/app"
	"github.com/okian/kpiboard/internal/config"
	"github.com/okian/kpiboard/pkg/logger"
	"github.com/okian/kpiboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// We expose our own system metrics; drop the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(); err != nil {
		logger.Get().Error(context.Background(), "kpiboard exited", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.InitWithFormat(cfg.LogFormat, os.Stderr); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metricOpts, err := metricsOptions(cfg)
	if err != nil {
		return err
	}
	metrics.Init(metricOpts...)

	locale, err := cfg.LocaleTag()
	if err != nil {
		return err
	}

	src, closer, err := app.OpenSource(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Warn(ctx, "closing source", logger.Error(err))
		}
	}()

	svc := app.New(
		app.WithSource(src),
		app.WithLogger(log.Named("service")),
		app.WithQueueSize(cfg.RefreshQueueSize),
		app.WithRefreshInterval(cfg.RefreshInterval()),
		app.WithMemoSize(cfg.MemoSize),
		app.WithLocale(locale),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithLogger(log.Named("api"))).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.RequestIDMiddleware(mux),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("source", cfg.Source),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
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

// metricsOptions maps the metrics_* config keys onto the metrics manager.
func metricsOptions(cfg *config.Config) ([]metrics.Option, error) {
	labels, err := cfg.MetricLabels()
	if err != nil {
		return nil, err
	}
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithMetricPrefix(cfg.MetricsPrefix),
		metrics.WithCustomLabels(labels),
		metrics.WithHistogramBuckets(cfg.MetricsBucketsMS),
		metrics.WithRefreshInterval(cfg.MetricsInterval()),
	}, nil
}

// startSystemMetricsUpdater refreshes process metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
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

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
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

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if entries, ok := stats["memoEntries"].(int64); ok {
		metrics.UpdateMemoSize(int(entries))
	}
	if tasks, ok := stats["tasks"].(int); ok {
		users, _ := stats["users"].(int)
		sprints, _ := stats["sprints"].(int)
		metrics.UpdateSnapshotSize(tasks, users, sprints)
	}
}

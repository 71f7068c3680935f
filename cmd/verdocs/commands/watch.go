package commands

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/verdocs/internal/config"
	"git.home.luguber.info/inful/verdocs/internal/logfields"
	"git.home.luguber.info/inful/verdocs/internal/metrics"
	"git.home.luguber.info/inful/verdocs/internal/watch"
)

// RunWatch rebuilds the site whenever the repository's branches or tags
// change, and optionally on a fixed interval.
func RunWatch(configPath string, every time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Addr != "" {
		registry := prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(registry)
		startMetricsServer(ctx, cfg.Metrics.Addr, registry)
	}

	watcher, err := watch.NewRefWatcher(cfg.Repo.Path)
	if err != nil {
		return err
	}

	runner := watch.NewRunner(func(ctx context.Context) error {
		return executeBuild(ctx, cfg, recorder)
	}, watcher, every)

	return runner.Run(ctx)
}

// startMetricsServer serves /metrics until ctx is cancelled.
func startMetricsServer(ctx context.Context, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Metrics endpoint listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Metrics server shutdown failed", logfields.Error(err))
		}
	}()
}

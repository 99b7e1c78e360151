package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/alpine-guardian/internal/bootstrap"
	"github.com/kirillkom/alpine-guardian/internal/config"
	"github.com/kirillkom/alpine-guardian/internal/observability/logging"
	"github.com/kirillkom/alpine-guardian/internal/observability/metrics"
)

const rebuildTimeout = 10 * time.Minute

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.NATSURL == "" {
		slog.Error("worker_misconfigured", "error", "NATS_URL is required")
		os.Exit(1)
	}
	if cfg.VectorBackend != "qdrant" {
		slog.Warn("worker_local_index", "vector_backend", cfg.VectorBackend,
			"note", "rebuilds only affect this process; use VECTOR_BACKEND=qdrant to share the index")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Observer:        workerMetrics.IndexMetrics,
		PopulateOnStart: true,
		ConnectQueue:    true,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	err = app.Queue.SubscribeKnowledgeUpdate(ctx, func(handlerCtx context.Context, reason string) error {
		rebuildCtx, cancel := context.WithTimeout(handlerCtx, rebuildTimeout)
		defer cancel()

		workerMetrics.StartUpdate()
		startedAt := time.Now()
		report, err := app.UpdateUC.Rebuild(rebuildCtx, reason)
		workerMetrics.FinishUpdate("worker", time.Since(startedAt), report.Documents, err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
	slog.Info("worker_stopped")
}

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

	httpadapter "github.com/kirillkom/alpine-guardian/internal/adapters/http"
	"github.com/kirillkom/alpine-guardian/internal/bootstrap"
	"github.com/kirillkom/alpine-guardian/internal/config"
	"github.com/kirillkom/alpine-guardian/internal/observability/logging"
	"github.com/kirillkom/alpine-guardian/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")

	// Population is a startup barrier: the listener opens only once the index holds the catalog.
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Observer:        httpMetrics.IndexMetrics,
		PopulateOnStart: true,
		ProbeGeneration: true,
		ConnectQueue:    true,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Dependencies{
		Query:   app.QueryUC,
		Search:  app.SearchUC,
		Updater: app.UpdateUC,
		Status:  app,
		Metrics: httpMetrics,
	}).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening",
			"port", cfg.APIPort,
			"vector_backend", cfg.VectorBackend,
			"documents", app.PopulateReport.Documents,
			"generation_ready", app.QueryUC.Generation().Ready(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
	app.UpdateUC.Wait()
	slog.Info("api_stopped")
}

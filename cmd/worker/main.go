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

	"github.com/kirillkom/error-review-admin/internal/bootstrap"
	"github.com/kirillkom/error-review-admin/internal/config"
	"github.com/kirillkom/error-review-admin/internal/observability/logging"
	"github.com/kirillkom/error-review-admin/internal/observability/metrics"
)

const (
	serviceName  = "worker"
	draftTimeout = 5 * time.Minute
)

func main() {
	cfg := config.Load()
	logging.Setup(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	drafts := app.DraftUC.WithLagObserver(func(lag time.Duration) {
		workerMetrics.ObserveQueueLag(serviceName, lag)
	})

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeErrorSubmitted(ctx, func(handlerCtx context.Context, errorID string) error {
		draftCtx, cancel := context.WithTimeout(handlerCtx, draftTimeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartDraft()
		outcome, err := drafts.Draft(draftCtx, errorID)
		workerMetrics.FinishDraft(serviceName, string(outcome), time.Since(start), err)
		if err == nil {
			slog.Info("draft_finished",
				"error_id", errorID,
				"outcome", outcome,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

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

	"github.com/kirillkom/handwritten-notes/internal/bootstrap"
	"github.com/kirillkom/handwritten-notes/internal/config"
	"github.com/kirillkom/handwritten-notes/internal/core/domain"
	"github.com/kirillkom/handwritten-notes/internal/core/usecase"
	"github.com/kirillkom/handwritten-notes/internal/observability/logging"
	"github.com/kirillkom/handwritten-notes/internal/observability/metrics"
)

const serviceName = "notes-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(os.Stdout, serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	recorder := usecase.NewRecordEventUseCase(worker.Repo, time.Duration(cfg.WorkerEventTimeoutSeconds)*time.Second)

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	err = worker.Subscriber.SubscribeNoteProcessed(ctx, func(handlerCtx context.Context, event domain.ProcessingEvent) error {
		start := time.Now()
		workerMetrics.StartEvent()
		if !event.OccurredAt.IsZero() {
			workerMetrics.ObserveEventLag(start.Sub(event.OccurredAt))
		}

		err := recorder.Record(handlerCtx, event)
		workerMetrics.FinishEvent(time.Since(start), err)
		if err != nil {
			return err
		}
		workerMetrics.ObserveOutcome(event.Status, event.ErrorCode)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_error", "error", err)
		os.Exit(1)
	}
}

// Package main provides the entrypoint for the RiskDesk batch quoting worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/api/handler"
	"github.com/riskdesk/riskdesk/internal/api/response"
	"github.com/riskdesk/riskdesk/internal/app"
	"github.com/riskdesk/riskdesk/internal/config"
	"github.com/riskdesk/riskdesk/internal/telemetry"
	"github.com/riskdesk/riskdesk/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "riskdesk-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting RiskDesk worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Worker.ProjectID == "" {
		log.Fatal().Msg("GOOGLE_CLOUD_PROJECT is required")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:       serviceName,
		ServiceVersion:    Version,
		Environment:       cfg.App.Environment,
		OTLPEndpoint:      cfg.Telemetry.OTLPEndpoint,
		Enabled:           cfg.Telemetry.Enabled,
		SampleRatio:       cfg.Telemetry.SampleRatio,
		PrometheusEnabled: cfg.Telemetry.PrometheusEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	defer components.Close()

	batchJob := worker.NewBatchJob(worker.BatchJobConfig{
		Config: worker.BatchConfig{
			Concurrency: cfg.Worker.Concurrency,
			ItemTimeout: cfg.Worker.ItemTimeout,
			MaxProfiles: cfg.Worker.MaxProfiles,
		},
		Predictor: components.Premium,
		Logger:    log,
	})

	pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:              cfg.Worker.ProjectID,
		SubscriptionName:       cfg.Worker.Subscription,
		Processor:              worker.NewProcessor(batchJob, log),
		MaxOutstandingMessages: cfg.Worker.MaxOutstanding,
		Logger:                 log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create pubsub handler")
		os.Exit(1)
	}
	defer func() {
		if closeErr := pubsubHandler.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close pubsub client")
		}
	}()

	// Worker also exposes health endpoints for Cloud Run
	ops := components.OpsConfig()
	ops.Version = Version
	ops.BuildTime = BuildTime
	opsHandler := handler.NewOpsHandler(ops)

	mux := chi.NewRouter()
	mux.Get("/health", opsHandler.HealthCheck)
	mux.Get("/ready", opsHandler.ReadinessCheck)
	mux.Get("/metrics/batches", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, batchJob.MetricsSnapshot())
	})
	if tp.MetricsHandler != nil {
		mux.Handle("/metrics", tp.MetricsHandler)
	}

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Receive blocks until ctx is cancelled
	done := make(chan error, 1)
	go func() {
		done <- pubsubHandler.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down worker")
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("pubsub receive stopped with error")
		}
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("pubsub receive stopped")
		}
		cancel()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// Package main provides the entrypoint for the RiskDesk API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/api"
	"github.com/riskdesk/riskdesk/internal/api/middleware"
	"github.com/riskdesk/riskdesk/internal/app"
	"github.com/riskdesk/riskdesk/internal/auth"
	"github.com/riskdesk/riskdesk/internal/config"
	"github.com/riskdesk/riskdesk/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "issue-token" {
		if err := issueToken(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "issue-token:", err)
			os.Exit(1)
		}
		return
	}

	const serviceName = "riskdesk-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting RiskDesk API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1)
	}
	defer components.Close()

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		MetricsHandler:  tp.MetricsHandler,
		JWTService:      components.JWT,
		Premium:         components.Premium,
		Classifier:      components.Classifier,
		SettingsService: components.Settings,
		QuoteLog:        components.QuoteLog,
		Ops:             components.OpsConfig(),
		RequireTLS:      cfg.App.RequireTLS,
		StandardLimit:   middleware.PerMinute(cfg.RateLimit.Standard),
		ExpensiveLimit:  middleware.PerMinute(cfg.RateLimit.Expensive),
		AdminLimit:      middleware.PerMinute(cfg.RateLimit.Admin),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// issueToken prints a signed access token for an operator or service.
func issueToken(args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	subject := fs.String("subject", "", "token subject (operator or service name)")
	scopes := fs.String("scopes", auth.ScopeOpsRead, "comma-separated scopes")
	expiry := fs.Duration("expiry", auth.AccessTokenExpiry, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.JWTSigningKey,
		Issuer:     app.TokenIssuer,
		Audience:   app.TokenAudience,
		Expiry:     *expiry,
	})

	var list []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}

	token, expiresAt, err := svc.GenerateAccessToken(*subject, list)
	if err != nil {
		return err
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

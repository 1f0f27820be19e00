// Package api provides the HTTP API for riskdesk.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/api/handler"
	"github.com/riskdesk/riskdesk/internal/api/middleware"
	"github.com/riskdesk/riskdesk/internal/auth"
	"github.com/riskdesk/riskdesk/internal/featureflags"
	"github.com/riskdesk/riskdesk/internal/quotelog"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// MetricsHandler serves Prometheus scrapes at /metrics when set.
	MetricsHandler http.Handler

	JWTService      *auth.JWTService
	Premium         handler.PremiumPredictor
	Classifier      handler.DamageClassifier
	SettingsService *featureflags.Service
	QuoteLog        *quotelog.Service
	Ops             handler.OpsConfig

	// RequireTLS rejects plain-HTTP requests forwarded by a proxy.
	RequireTLS bool
	// Zero limits fall back to the package defaults in middleware.
	StandardLimit  middleware.RateLimitConfig
	ExpensiveLimit middleware.RateLimitConfig
	AdminLimit     middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "riskdesk-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, no-store)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// The settings service doubles as the fallback policy and vision gate;
	// without it both default to on.
	var (
		fallbackPolicy handler.FallbackPolicy
		visionGate     handler.VisionGate
	)
	if cfg.SettingsService != nil {
		fallbackPolicy = cfg.SettingsService
		visionGate = cfg.SettingsService
	}
	opsConfig := cfg.Ops
	opsConfig.Version = cfg.Version
	opsConfig.BuildTime = cfg.BuildTime
	if opsConfig.Gate == nil {
		opsConfig.Gate = visionGate
	}

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(opsConfig)
	premiumHandler := handler.NewPremiumHandler(cfg.Premium, fallbackPolicy, cfg.Logger)
	visionHandler := handler.NewVisionHandler(cfg.Classifier, visionGate, cfg.Logger)

	adminRateLimit := middleware.RateLimitBySubject(cfg.AdminLimit.OrDefault(middleware.AdminRateLimit))
	expensiveRateLimit := middleware.RateLimitByIP(cfg.ExpensiveLimit.OrDefault(middleware.ExpensiveRateLimit))
	standardRateLimit := middleware.RateLimitByIP(cfg.StandardLimit.OrDefault(middleware.StandardRateLimit))

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			if cfg.JWTService != nil {
				r.With(middleware.Auth(cfg.JWTService, auth.ScopeOpsRead)).Get("/status", opsHandler.SystemStatus)
			}
		})

		// Premium endpoints - standard rate limiting
		if cfg.Premium != nil {
			r.With(standardRateLimit, middleware.RequireJSON).Post("/premium:predict", premiumHandler.Predict)
		}
		r.With(standardRateLimit, middleware.RequireJSON).Post("/premium:fallback", premiumHandler.Fallback)

		// Classification runs a full CNN forward pass - strict rate limiting
		if cfg.Classifier != nil {
			r.With(expensiveRateLimit).Post("/vehicle-damage:classify", visionHandler.Classify)
		}

		// Admin endpoints (authenticated) - for internal operations
		if cfg.JWTService != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWTService))
				r.Use(adminRateLimit)

				if cfg.SettingsService != nil {
					settingsHandler := handler.NewSettingsHandler(cfg.SettingsService, cfg.Logger)
					r.Route("/settings", func(r chi.Router) {
						r.With(middleware.RequireScope(auth.ScopeOpsRead)).Get("/", settingsHandler.ListSettings)
						r.With(middleware.RequireScope(auth.ScopeSettingsWrite), middleware.RequireJSON).Put("/", settingsHandler.UpdateSettings)
						r.With(middleware.RequireScope(auth.ScopeSettingsWrite)).Post("/invalidate", settingsHandler.InvalidateCache)
						r.With(middleware.RequireScope(auth.ScopeSettingsWrite)).Delete("/{key}", settingsHandler.ResetSetting)
					})
				}

				if cfg.QuoteLog != nil {
					quotesHandler := handler.NewQuotesHandler(cfg.QuoteLog, cfg.Logger)
					r.Route("/quotes", func(r chi.Router) {
						r.Use(middleware.RequireScope(auth.ScopeQuotesRead))
						r.Get("/", quotesHandler.ListQuotes)
						r.Get("/{quoteID}", quotesHandler.GetQuote)
					})
				}
			})
		}
	})

	return r
}

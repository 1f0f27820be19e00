// Package app assembles the services shared by the API server and the
// batch worker from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/riskdesk/riskdesk/internal/api/handler"
	"github.com/riskdesk/riskdesk/internal/api/middleware"
	"github.com/riskdesk/riskdesk/internal/artifact"
	"github.com/riskdesk/riskdesk/internal/auth"
	"github.com/riskdesk/riskdesk/internal/config"
	"github.com/riskdesk/riskdesk/internal/database"
	"github.com/riskdesk/riskdesk/internal/featureflags"
	"github.com/riskdesk/riskdesk/internal/premium"
	"github.com/riskdesk/riskdesk/internal/provider/resilience"
	"github.com/riskdesk/riskdesk/internal/quotelog"
	"github.com/riskdesk/riskdesk/internal/telemetry"
	"github.com/riskdesk/riskdesk/internal/vision"
)

// Token claims shared by the API and the issue-token command.
const (
	TokenIssuer   = "riskdesk"
	TokenAudience = "riskdesk-api"
)

// ModelServerBackend names the remote regressor in the backend registry.
const ModelServerBackend = "model-server"

// Components are the long-lived services of one process.
type Components struct {
	Pool       *pgxpool.Pool
	Settings   *featureflags.Service
	QuoteLog   *quotelog.Service
	Store      *artifact.Store
	Backends   *resilience.Registry
	Premium    *premium.Service
	Classifier *vision.Classifier
	JWT        *auth.JWTService
}

// Build wires the services described by cfg. Close must be called when the
// process exits.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Components, error) {
	c := &Components{Backends: resilience.NewRegistry()}

	inference, err := telemetry.NewInferenceMetrics()
	if err != nil {
		return nil, fmt.Errorf("initializing inference metrics: %w", err)
	}

	settingsRepo, quoteRepo, err := c.repositories(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	c.Settings = featureflags.NewService(featureflags.ServiceConfig{
		Repository: settingsRepo,
		Logger:     logger,
		CacheTTL:   1 * time.Minute,
	})
	c.QuoteLog = quotelog.NewService(quotelog.ServiceConfig{
		Repository: quoteRepo,
		Logger:     logger,
	})

	storeCfg := artifact.StoreConfig{
		Locator: artifact.Locator{
			ArtifactDir: cfg.Artifacts.ArtifactDir,
			ModelDir:    cfg.Artifacts.ModelDir,
		},
		Metrics: inference,
		Logger:  logger,
	}

	if mc := cfg.Artifacts.MinIO; mc.Enabled() {
		syncer, err := artifact.NewMinIOSyncer(artifact.MinIOConfig{
			Endpoint:  mc.Endpoint,
			AccessKey: mc.AccessKey,
			SecretKey: mc.SecretKey,
			Secure:    mc.Secure,
			Bucket:    mc.Bucket,
			Prefix:    mc.Prefix,
			LocalDir:  cfg.Artifacts.ArtifactDir,
		}, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		storeCfg.Sync = syncer
		storeCfg.SyncTimeout = mc.SyncTimeout
		logger.Info().Str("bucket", mc.Bucket).Msg("artifact mirror configured")
	}

	if cfg.ModelServer.URL != "" {
		client, err := c.modelServerClient(cfg.ModelServer, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		storeCfg.Remote = &artifact.RemoteConfig{Client: client, URL: cfg.ModelServer.URL}
		logger.Info().Str("url", cfg.ModelServer.URL).Msg("premium predictions served by model server")
	}

	c.Store = artifact.NewStore(storeCfg)

	c.Premium = premium.NewService(premium.ServiceConfig{
		Artifacts: c.Store,
		Encoder:   premium.NewEncoder(cfg.Premium.IncomeUnitsPerLakh),
		Bounds:    c.Settings,
		Recorder:  c.QuoteLog,
		Metrics:   inference,
		Logger:    logger,
	})

	transform := vision.DefaultTransformConfig()
	transform.Size = cfg.Vision.InputSize
	c.Classifier = vision.NewClassifier(vision.ClassifierConfig{
		Weights:   c.Store,
		Transform: &transform,
		Metrics:   inference,
		Logger:    logger,
	})

	c.JWT = auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.JWTSigningKey,
		Issuer:     TokenIssuer,
		Audience:   TokenAudience,
	})
	if cfg.Auth.JWTSigningKey == config.DefaultJWTSigningKey {
		logger.Warn().Msg("using default JWT signing key - not secure for production")
	}

	return c, nil
}

// repositories selects PostgreSQL when enabled and in-memory storage
// otherwise.
func (c *Components) repositories(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (featureflags.Repository, quotelog.Repository, error) {
	if !cfg.Database.Enabled {
		logger.Info().Msg("database disabled, using in-memory settings and quote log")
		return featureflags.NewInMemoryRepository(), quotelog.NewInMemoryRepository(), nil
	}

	dbConfig := database.Config{
		URL:             cfg.Database.URL,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	}
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}
	c.Pool = pool

	logger.Info().
		Bool("url_override", dbConfig.URL != "").
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	return featureflags.NewPostgresRepository(pool), quotelog.NewPostgresRepository(pool), nil
}

func (c *Components) modelServerClient(cfg config.ModelServerConfig, logger zerolog.Logger) (*resilience.Client, error) {
	backendMetrics, err := middleware.NewBackendMetrics()
	if err != nil {
		return nil, fmt.Errorf("initializing backend metrics: %w", err)
	}

	clientCfg := resilience.DefaultClientConfig(ModelServerBackend)
	clientCfg.Timeout = cfg.Timeout
	clientCfg.MaxRetries = uint64(cfg.MaxRetries)
	clientCfg.CircuitBreaker.OnStateChange = resilience.LogStateChanges(logger)
	clientCfg.Registry = c.Backends
	clientCfg.Metrics = backendMetrics

	return resilience.NewClient(clientCfg), nil
}

// OpsConfig describes the components to the ops endpoints.
func (c *Components) OpsConfig() handler.OpsConfig {
	ops := handler.OpsConfig{
		Artifacts: c.Store,
		Vision:    c.Classifier,
		Backends:  c.Backends,
		Gate:      c.Settings,
	}
	if c.Pool != nil {
		ops.Database = c.Pool
	}
	return ops
}

// Close releases the database pool.
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

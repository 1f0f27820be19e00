// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the configuration shared by the API and the worker.
type Config struct {
	App         AppConfig
	Telemetry   TelemetryConfig
	Database    DatabaseConfig
	Premium     PremiumConfig
	Vision      VisionConfig
	Artifacts   ArtifactConfig
	ModelServer ModelServerConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Worker      WorkerConfig
}

type AppConfig struct {
	Environment string
	Port        string
	// RequireTLS rejects requests a proxy reports as plain HTTP.
	RequireTLS bool
}

type TelemetryConfig struct {
	OTLPEndpoint      string
	Enabled           bool
	PrometheusEnabled bool
	// SampleRatio is the fraction of new traces recorded; sampled parents
	// are always followed.
	SampleRatio float64
}

// DatabaseConfig selects PostgreSQL for the quote log and settings. When
// disabled both live in memory.
type DatabaseConfig struct {
	Enabled bool

	// URL overrides the discrete connection fields.
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

type PremiumConfig struct {
	// IncomeUnitsPerLakh converts submitted income to lakhs.
	IncomeUnitsPerLakh decimal.Decimal
}

type VisionConfig struct {
	InputSize int
}

type ArtifactConfig struct {
	ArtifactDir string
	ModelDir    string
	MinIO       MinIOConfig
}

// MinIOConfig is the optional object-storage mirror of the artifacts.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	Prefix    string

	// SyncTimeout bounds the one-time mirror at first use.
	SyncTimeout time.Duration
}

// Enabled reports whether an artifact mirror is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// ModelServerConfig points the tabular predictor at a remote model server.
type ModelServerConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
}

type AuthConfig struct {
	JWTSigningKey string
}

// RateLimitConfig holds per-minute request limits for each route class.
type RateLimitConfig struct {
	Standard  int
	Expensive int
	Admin     int
}

// WorkerConfig configures the Pub/Sub batch quoting worker.
type WorkerConfig struct {
	ProjectID      string
	Subscription   string
	Concurrency    int
	ItemTimeout    time.Duration
	MaxProfiles    int
	MaxOutstanding int
}

// DefaultJWTSigningKey is used when JWT_SIGNING_KEY is unset.
const DefaultJWTSigningKey = "local-dev-signing-key-change-in-production"

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		App: AppConfig{
			Environment: getEnvOrDefault("APP_ENV", "development"),
			Port:        getEnvOrDefault("APP_PORT", "8080"),
			RequireTLS:  p.bool("REQUIRE_TLS", false),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:      getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Enabled:           p.bool("OTEL_ENABLED", false),
			PrometheusEnabled: p.bool("PROMETHEUS_ENABLED", false),
			SampleRatio:       p.decimal("OTEL_TRACES_SAMPLER_ARG", "1").InexactFloat64(),
		},
		Database: DatabaseConfig{
			Enabled:         p.bool("DB_ENABLED", false),
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            p.int("DB_PORT", 5432),
			User:            getEnvOrDefault("DB_USER", "riskdesk"),
			Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
			Name:            getEnvOrDefault("DB_NAME", "riskdesk"),
			SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns:        p.int("DB_MAX_CONNS", 10),
			MinConns:        p.int("DB_MIN_CONNS", 2),
			ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnectTimeout:  p.duration("DB_CONNECT_TIMEOUT", 10*time.Second),
		},
		Premium: PremiumConfig{
			IncomeUnitsPerLakh: p.decimal("PREMIUM_INCOME_UNITS_PER_LAKH", "100000"),
		},
		Vision: VisionConfig{
			InputSize: p.int("VISION_INPUT_SIZE", 224),
		},
		Artifacts: ArtifactConfig{
			ArtifactDir: os.Getenv("ARTIFACT_DIR"),
			ModelDir:    os.Getenv("MODEL_DIR"),
			MinIO: MinIOConfig{
				Endpoint:  os.Getenv("ARTIFACT_MINIO_ENDPOINT"),
				AccessKey: os.Getenv("ARTIFACT_MINIO_ACCESS_KEY"),
				SecretKey: os.Getenv("ARTIFACT_MINIO_SECRET_KEY"),
				Secure:    p.bool("ARTIFACT_MINIO_SECURE", true),
				Bucket:    os.Getenv("ARTIFACT_MINIO_BUCKET"),
				Prefix:    os.Getenv("ARTIFACT_MINIO_PREFIX"),

				SyncTimeout: p.duration("ARTIFACT_SYNC_TIMEOUT", 2*time.Minute),
			},
		},
		ModelServer: ModelServerConfig{
			URL:        os.Getenv("MODEL_SERVER_URL"),
			Timeout:    p.duration("MODEL_SERVER_TIMEOUT", 5*time.Second),
			MaxRetries: p.int("MODEL_SERVER_MAX_RETRIES", 2),
		},
		Auth: AuthConfig{
			JWTSigningKey: getEnvOrDefault("JWT_SIGNING_KEY", DefaultJWTSigningKey),
		},
		RateLimit: RateLimitConfig{
			Standard:  p.int("RATE_LIMIT_STANDARD", 100),
			Expensive: p.int("RATE_LIMIT_EXPENSIVE", 30),
			Admin:     p.int("RATE_LIMIT_ADMIN", 10),
		},
		Worker: WorkerConfig{
			ProjectID:      os.Getenv("GOOGLE_CLOUD_PROJECT"),
			Subscription:   getEnvOrDefault("PUBSUB_SUBSCRIPTION", "quote-batches"),
			Concurrency:    p.int("WORKER_CONCURRENCY", 4),
			ItemTimeout:    p.duration("WORKER_ITEM_TIMEOUT", 30*time.Second),
			MaxProfiles:    p.int("WORKER_MAX_PROFILES", 1000),
			MaxOutstanding: p.int("PUBSUB_MAX_OUTSTANDING", 10),
		},
	}

	if !cfg.Premium.IncomeUnitsPerLakh.IsPositive() {
		p.errs = append(p.errs, errors.New("PREMIUM_INCOME_UNITS_PER_LAKH must be positive"))
	}
	if cfg.Vision.InputSize <= 0 {
		p.errs = append(p.errs, errors.New("VISION_INPUT_SIZE must be positive"))
	}
	if cfg.Worker.Concurrency <= 0 {
		p.errs = append(p.errs, errors.New("WORKER_CONCURRENCY must be positive"))
	}
	if cfg.RateLimit.Standard <= 0 || cfg.RateLimit.Expensive <= 0 || cfg.RateLimit.Admin <= 0 {
		p.errs = append(p.errs, errors.New("RATE_LIMIT_* values must be positive"))
	}
	if cfg.ModelServer.MaxRetries < 0 {
		p.errs = append(p.errs, errors.New("MODEL_SERVER_MAX_RETRIES must not be negative"))
	}
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		p.errs = append(p.errs, errors.New("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1"))
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) decimal(key, def string) decimal.Decimal {
	d, err := decimal.NewFromString(getEnvOrDefault(key, def))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return decimal.RequireFromString(def)
	}
	return d
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the automation service.
// Environment variables are parsed from the AUTOMATION_ prefix.
type Config struct {
	// ServiceMode selects which subsystem this container instance runs:
	// "api" (default) or "worker". The dispatcher validates it; any other
	// value aborts startup.
	ServiceMode string `envconfig:"SERVICE_MODE" default:"api"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP Configuration
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8000"`
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`

	// Postgres Configuration
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Redis Configuration (sessions, counters, webhook dedup)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Instagram Graph API
	InstagramGraphAPIURL   string `envconfig:"INSTAGRAM_GRAPH_API_URL" default:"https://graph.instagram.com"`
	InstagramClientID      string `envconfig:"INSTAGRAM_CLIENT_ID" default:""`
	InstagramClientSecret  string `envconfig:"INSTAGRAM_CLIENT_SECRET" default:""`
	InstagramRedirectURI   string `envconfig:"INSTAGRAM_REDIRECT_URI" default:"http://localhost:8000/api/v1/instagram/callback"`
	WebhookVerifyToken     string `envconfig:"WEBHOOK_VERIFY_TOKEN" default:""`
	TokenEncryptionKey     string `envconfig:"TOKEN_ENCRYPTION_KEY" default:""`
	SessionTTLMinutes      int    `envconfig:"SESSION_TTL_MINUTES" default:"43200"`
	WebhookDedupTTLMinutes int    `envconfig:"WEBHOOK_DEDUP_TTL_MINUTES" default:"60"`

	// Worker Configuration
	WorkerBatchSize       int `envconfig:"WORKER_BATCH_SIZE" default:"50"`
	WorkerIntervalSeconds int `envconfig:"WORKER_INTERVAL_SECONDS" default:"2"`

	// Health Configuration
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"5"`
}

// ResolveDefaults normalizes derived fields and validates ranges. Mode values
// are deliberately NOT validated here: the dispatcher owns that failure so the
// diagnostic carries the literal invalid value.
func (c *Config) ResolveDefaults() error {
	if c.ServiceMode == "" {
		c.ServiceMode = "api"
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTPPort)
	}
	if c.WorkerBatchSize <= 0 {
		c.WorkerBatchSize = 50
	}
	if c.WorkerIntervalSeconds <= 0 {
		c.WorkerIntervalSeconds = 2
	}
	switch c.Environment {
	case EnvDevelopment, EnvTesting, EnvProduction:
	default:
		return fmt.Errorf("unsupported ENVIRONMENT: %s", c.Environment)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Environment variables are prefixed with AUTOMATION_
// Example: AUTOMATION_SERVICE_MODE, AUTOMATION_HTTP_PORT
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("AUTOMATION", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("service_mode", cfg.ServiceMode).
		Str("environment", string(cfg.Environment)).
		Int("http_port", cfg.HTTPPort).
		Str("frontend_url", cfg.FrontendURL).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Str("redis_addr", cfg.RedisAddr).
		Str("graph_api_url", cfg.InstagramGraphAPIURL).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		ServiceMode:               "api",
		Environment:               EnvTesting,
		LogLevel:                  "debug",
		HTTPPort:                  8000,
		FrontendURL:               "http://localhost:5173",
		RedisAddr:                 "localhost:6379",
		InstagramGraphAPIURL:      "https://graph.instagram.com",
		SessionTTLMinutes:         60,
		WebhookDedupTTLMinutes:    60,
		WorkerBatchSize:           50,
		WorkerIntervalSeconds:     2,
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 5,
	}
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address bound to all interfaces.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

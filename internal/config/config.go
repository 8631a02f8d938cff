// Package config handles process configuration from environment variables and
// the per-event settings carried in each login event's secret bundle.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"lumina/login-gate/internal/domain"
)

// Config holds the process-wide configuration of the gate service.
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Outbound HTTP
	HTTPClientTimeout time.Duration
	RiskAPIBaseURL    string // overrides the per-site risk API host when set

	// Inbound auth; empty disables it
	JWTSecret string

	// Decision log and audit sinks
	DecisionLogSize    int
	NATSURL            string
	NATSSubject        string
	DecisionWebhookURL string

	// Tracing
	OTLPEndpoint string
}

const (
	DefaultPort              = "8080"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultHTTPClientTimeout = 10 * time.Second
	DefaultDecisionLogSize   = 10000
	DefaultNATSSubject       = "login_gate.decisions"
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", DefaultLogFormat),
		HTTPClientTimeout:  getEnvDuration("HTTP_CLIENT_TIMEOUT", DefaultHTTPClientTimeout),
		RiskAPIBaseURL:     os.Getenv("RISK_API_BASE_URL"),
		JWTSecret:          os.Getenv("GATE_JWT_SECRET"),
		DecisionLogSize:    int(getEnvInt64("DECISION_LOG_SIZE", DefaultDecisionLogSize)),
		NATSURL:            os.Getenv("NATS_URL"),
		NATSSubject:        getEnv("NATS_SUBJECT", DefaultNATSSubject),
		DecisionWebhookURL: os.Getenv("DECISION_WEBHOOK_URL"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.HTTPClientTimeout <= 0 {
		return fmt.Errorf("HTTP_CLIENT_TIMEOUT must be positive")
	}
	if c.DecisionLogSize <= 0 {
		return fmt.Errorf("DECISION_LOG_SIZE must be positive")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("GATE_JWT_SECRET is required in production")
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// DenyMessage returns the configured deny message or the default one.
func DenyMessage(s domain.Settings) string {
	if s.DenyMessage != "" {
		return s.DenyMessage
	}
	return domain.DefaultDenyMessage
}

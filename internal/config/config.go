// Package config handles agent configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all agent configuration.
type Config struct {
	// Risk backend
	APIURL      string        // Base URL of the risk-assessment service
	HTTPTimeout time.Duration // Per-request bound for all outbound calls

	// Local status server
	Port string
	Env  string // "development", "staging", "production"

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Background monitoring
	SampleInterval   time.Duration // Time between scheduled behavior submissions
	BreakerThreshold int           // Consecutive failures before the monitor backs off
	BreakerCooldown  time.Duration

	// Credentials
	CredentialsFile string // Path of the persisted session token

	// Bootstrap identity (optional; used when no session token is stored)
	Email    string
	Password string

	// Tracing
	OTLPEndpoint string // Empty disables tracing
}

// Defaults
const (
	DefaultAPIURL           = "http://localhost:5000"
	DefaultPort             = "8600"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultSampleInterval   = 30 * time.Second
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 2 * time.Minute
)

// DefaultCredentialsFile returns the default token path under the user
// config directory, falling back to the working directory.
func DefaultCredentialsFile() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/sentinel/credentials.json"
	}
	return ".sentinel-credentials.json"
}

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIURL:           getEnv("SENTINEL_API_URL", DefaultAPIURL),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", DefaultHTTPTimeout),
		Port:             getEnv("SENTINEL_PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:        getEnv("LOG_FORMAT", DefaultLogFormat),
		SampleInterval:   getEnvDuration("SAMPLE_INTERVAL", DefaultSampleInterval),
		BreakerThreshold: getEnvInt("BREAKER_THRESHOLD", DefaultBreakerThreshold),
		BreakerCooldown:  getEnvDuration("BREAKER_COOLDOWN", DefaultBreakerCooldown),
		CredentialsFile:  getEnv("CREDENTIALS_FILE", DefaultCredentialsFile()),
		Email:            os.Getenv("API_EMAIL"),
		Password:         os.Getenv("API_PASSWORD"),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and sane.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("SENTINEL_API_URL is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SENTINEL_API_URL must be an absolute URL")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.SampleInterval < time.Second {
		return fmt.Errorf("SAMPLE_INTERVAL must be at least 1s")
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("CREDENTIALS_FILE is required")
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
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

package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	App      AppConfig
	Monitor  MonitorConfig
	Fetch    FetchConfig
	Store    StoreConfig
	Telegram TelegramConfig
	Admin    AdminConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// MonitorConfig holds settings for the periodic price scan.
type MonitorConfig struct {
	// ScanInterval is the wall-clock time between scan passes.
	ScanInterval time.Duration `envconfig:"SCAN_INTERVAL" default:"3600s"`

	// MaxConcurrent bounds the number of in-flight product checks per pass.
	MaxConcurrent int `envconfig:"MAX_CONCURRENT_CHECKS" default:"5"`

	// NotifyFirstPrice controls whether the very first observed price of a
	// product fires a notification (comparing against the seeded baseline).
	NotifyFirstPrice bool `envconfig:"NOTIFY_FIRST_PRICE" default:"true"`
}

// FetchConfig holds settings for the page fetch and its retry policy.
type FetchConfig struct {
	MaxRetries        uint          `envconfig:"FETCH_MAX_RETRIES" default:"40"`
	RetryWaitMin      time.Duration `envconfig:"FETCH_RETRY_WAIT_MIN" default:"1s"`
	RetryWaitMax      time.Duration `envconfig:"FETCH_RETRY_WAIT_MAX" default:"5s"`
	Timeout           time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	RequestsPerSecond float64       `envconfig:"FETCH_RPS" default:"1"`
}

// StoreConfig selects and parameterizes the persistence backend.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // memory, sqlite or postgres
	Path string `envconfig:"STORE_PATH" default:"./data/tracker.db"`
	DSN  string `envconfig:"STORE_DSN" default:""`
}

// TelegramConfig holds the bot credentials. An empty token disables the
// Telegram front-end and notifications.
type TelegramConfig struct {
	Token string `envconfig:"TELEGRAM_TOKEN" default:""`
}

// AdminConfig holds settings for the admin HTTP server.
type AdminConfig struct {
	Port            string        `envconfig:"ADMIN_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"ADMIN_SHUTDOWN_TIMEOUT" default:"30s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Monitor.ScanInterval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive, got %v", c.Monitor.ScanInterval)
	}
	if c.Monitor.MaxConcurrent <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_CHECKS must be positive, got %d", c.Monitor.MaxConcurrent)
	}
	if c.Fetch.MaxRetries == 0 {
		return fmt.Errorf("FETCH_MAX_RETRIES must be at least 1")
	}
	if c.Fetch.RetryWaitMin > c.Fetch.RetryWaitMax {
		return fmt.Errorf("FETCH_RETRY_WAIT_MIN (%v) must not exceed FETCH_RETRY_WAIT_MAX (%v)",
			c.Fetch.RetryWaitMin, c.Fetch.RetryWaitMax)
	}
	return nil
}

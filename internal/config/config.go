// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// LocalMode runs the service against in-memory storage with an
	// instant payment gateway. No database or Redis needed.
	LocalMode bool `env:"LOCAL_MODE" envDefault:"false"`

	// Database (PostgreSQL). Required unless LOCAL_MODE is set.
	DatabaseURL string `env:"DATABASE_URL"`

	// Cache (Redis). Required unless LOCAL_MODE is set.
	RedisURL string `env:"REDIS_URL"`

	// Base URL of the booking frontend; payment callbacks redirect here.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Timezone reservations are interpreted in (IANA name).
	Timezone string `env:"TIMEZONE" envDefault:"Asia/Tokyo"`

	// Identity provider
	IdentityAPIURL         string `env:"IDENTITY_API_URL" envDefault:"https://api.line.me"`
	IdentityAllowDevBypass bool   `env:"IDENTITY_ALLOW_DEV_BYPASS" envDefault:"false"`

	// Payment gateway. When ChannelID or ChannelSecret is empty the
	// service falls back to payment bypass.
	PayAPIURL        string `env:"PAY_API_URL" envDefault:"https://sandbox-api-pay.line.me"`
	PayChannelID     string `env:"PAY_CHANNEL_ID"`
	PayChannelSecret string `env:"PAY_CHANNEL_SECRET"`
	PayCurrency      string `env:"PAY_CURRENCY" envDefault:"JPY"`
	SkipPayment      bool   `env:"SKIP_PAYMENT" envDefault:"false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting for the unauthenticated endpoints
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// PaymentConfigured reports whether gateway credentials are present and
// payment has not been explicitly disabled.
func (c *Config) PaymentConfigured() bool {
	return !c.SkipPayment && c.PayChannelID != "" && c.PayChannelSecret != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !cfg.LocalMode {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required unless LOCAL_MODE is set")
		}
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required unless LOCAL_MODE is set")
		}
	}
	return cfg, nil
}

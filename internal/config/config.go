// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultAPIBase is the backend origin used when FEEDADMIN_API_BASE is unset.
// It is the only place the fallback origin is defined.
const DefaultAPIBase = "http://localhost:5000/api"

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	APIBase       string `env:"FEEDADMIN_API_BASE" envDefault:"http://localhost:5000/api"`
	APIToken      string `env:"FEEDADMIN_API_TOKEN"` // Optional bearer token forwarded to the backend
	SessionSecret string `env:"FEEDADMIN_SESSION_SECRET"`
	DBPath        string `env:"FEEDADMIN_DB_PATH" envDefault:"./data/feedadmin.db"`
	ServerHost    string `env:"FEEDADMIN_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"FEEDADMIN_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"FEEDADMIN_ENV" envDefault:"development"`
	LogLevel      string `env:"FEEDADMIN_LOG_LEVEL" envDefault:"info"`

	// Backend client configuration
	BackendTimeout time.Duration `env:"FEEDADMIN_BACKEND_TIMEOUT" envDefault:"15s"`
	BackendRPS     float64       `env:"FEEDADMIN_BACKEND_RPS" envDefault:"20"`  // Outbound requests per second
	BackendBurst   int           `env:"FEEDADMIN_BACKEND_BURST" envDefault:"40"` // Outbound burst size
	BackendRetries uint64        `env:"FEEDADMIN_BACKEND_RETRIES" envDefault:"2"` // Retries for idempotent reads

	// Cache configuration
	RedisURL     string `env:"FEEDADMIN_REDIS_URL"`                              // Optional Redis URL for shared list caching
	CachePrefix  string `env:"FEEDADMIN_CACHE_PREFIX" envDefault:"feedadmin:"`   // Redis key prefix
	CacheTTL     int    `env:"FEEDADMIN_CACHE_TTL" envDefault:"60"`              // List cache TTL in seconds
	CacheMaxSize int    `env:"FEEDADMIN_CACHE_MAX_SIZE" envDefault:"1000"`       // Max memory cache entries

	// Uploads
	MaxUploadMB int64 `env:"FEEDADMIN_MAX_UPLOAD_MB" envDefault:"64"`

	// GeoIP configuration
	GeoIPDBPath string `env:"FEEDADMIN_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file

	// Activity log retention
	EventRetentionDays int `env:"FEEDADMIN_EVENT_RETENTION_DAYS" envDefault:"90"`

	// Scheduled backend health probe
	ProbeInterval time.Duration `env:"FEEDADMIN_PROBE_INTERVAL" envDefault:"1m"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// GeoIPEnabled returns true if GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// CacheDuration returns the list cache TTL.
func (c Config) CacheDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// MaxUploadBytes returns the multipart upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("FEEDADMIN_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// LoadClient parses only the settings the command line client needs.
// It does not require a session secret.
func LoadClient() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := validateAPIBase(cfg.APIBase); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("FEEDADMIN_SESSION_SECRET is required")
	}
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("FEEDADMIN_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(c.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return fmt.Errorf("FEEDADMIN_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if err := validateAPIBase(c.APIBase); err != nil {
		return err
	}

	if c.BackendTimeout <= 0 {
		return fmt.Errorf("FEEDADMIN_BACKEND_TIMEOUT must be positive, got %s", c.BackendTimeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("FEEDADMIN_CACHE_TTL must not be negative, got %d", c.CacheTTL)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("FEEDADMIN_MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// validateAPIBase checks that the backend origin is an absolute http(s) URL.
func validateAPIBase(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("FEEDADMIN_API_BASE is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("FEEDADMIN_API_BASE must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}

// Package config provides centralized configuration management for csvcompare.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Compare  CompareConfig
	Report   ReportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds settings for the optional run history database.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. History is kept in memory when empty.
	// DB_URL is read when DATABASE_URL is unset.
	URL string `env:"DATABASE_URL,DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Retention is how long stored runs are kept; zero keeps them forever (default: 720h)
	Retention time.Duration `env:"HISTORY_RETENTION" default:"720h"`

	// PruneInterval is how often expired runs are deleted (default: 1h)
	PruneInterval time.Duration `env:"HISTORY_PRUNE_INTERVAL" default:"1h"`
}

// Enabled reports whether a history database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// CompareConfig holds comparison scheduling settings.
type CompareConfig struct {
	// MaxConcurrent is the maximum number of file pairs compared in parallel (default: 4)
	MaxConcurrent int `env:"COMPARE_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long an API request waits for a comparison slot (default: 30s)
	MaxWaitTime time.Duration `env:"COMPARE_MAX_WAIT_TIME" default:"30s"`

	// PairTimeout is the maximum duration for comparing one file pair (default: 5m)
	PairTimeout time.Duration `env:"COMPARE_PAIR_TIMEOUT" default:"5m"`

	// MaxUploadSize is the maximum size of one uploaded file (default: 50MiB)
	MaxUploadSize ByteSize `env:"COMPARE_MAX_UPLOAD_SIZE" default:"50MiB"`

	// RequireEqualRowCount fails API comparisons of tables with different row counts (default: false)
	RequireEqualRowCount bool `env:"COMPARE_REQUIRE_EQUAL_ROW_COUNT" default:"false"`
}

// ReportConfig holds report output settings.
type ReportConfig struct {
	// Dir is the default report output directory (default: report)
	Dir string `env:"REPORT_DIR" default:"report"`

	// Format is the report format: html, json, both or none (default: both)
	Format string `env:"REPORT_FORMAT" default:"both"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// CompareLimit is requests per minute for the compare endpoint (default: 10)
	CompareLimit int `env:"RATE_LIMIT_COMPARE" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey enforces API key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

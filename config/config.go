// Package config loads runtime configuration from the environment, with
// optional .env file support for development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Environment names recognized by the server.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full server configuration. Defaults suit local
// development; production deployments must at least set JWT_SECRET and
// usually DATABASE_URL.
type Config struct {
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	ServerPort  int    `env:"SERVER_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// DatabaseURL selects the storage backend: empty for in-memory,
	// file:/path/to/db for bbolt, postgres:// for PostgreSQL.
	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecret     string        `env:"JWT_SECRET"`
	JWTExpiration time.Duration `env:"JWT_EXPIRATION" envDefault:"3600s"`

	HeartbeatInterval time.Duration `env:"WS_HEARTBEAT_INTERVAL" envDefault:"30s"`
	ClientTimeout     time.Duration `env:"WS_CLIENT_TIMEOUT" envDefault:"120s"`
	AuthTimeout       time.Duration `env:"WS_AUTH_TIMEOUT" envDefault:"30s"`
	CloseDelay        time.Duration `env:"WS_CLOSE_DELAY" envDefault:"2s"`

	// SeedOnStart loads the embedded genesis data into storage at startup.
	SeedOnStart bool `env:"SEED_ON_START" envDefault:"false"`
}

// IsDevelopment reports whether the server runs in development mode,
// which enables the /api/v1/dev routes.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// Validate checks constraints that env parsing cannot express.
func (c *Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port %d", c.ServerPort)
	}
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if !c.IsDevelopment() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	return nil
}

// Load reads a .env file when present, then parses the environment.
func Load() (*Config, error) {
	// Missing .env is fine; the environment alone is authoritative.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

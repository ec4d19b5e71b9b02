// Package config loads server settings from BOULDER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Rate limiter backends
const (
	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

// Config is the server configuration
type Config struct {
	HTTPPort int `env:"BOULDER_HTTP_PORT" envDefault:"8080"`

	Storage     string `env:"BOULDER_STORAGE" envDefault:"memory"`
	RedisURL    string `env:"BOULDER_REDIS_URL"`
	SQLitePath  string `env:"BOULDER_SQLITE_PATH" envDefault:"boulder.db"`
	PostgresDSN string `env:"BOULDER_POSTGRES_DSN"`

	RateLimiter     string        `env:"BOULDER_RATE_LIMITER" envDefault:"memory"`
	PushMaxAttempts int           `env:"BOULDER_PUSH_MAX_ATTEMPTS" envDefault:"10"`
	PushWindow      time.Duration `env:"BOULDER_PUSH_WINDOW" envDefault:"60s"`
	RegisterRPS     float64       `env:"BOULDER_REGISTER_RPS" envDefault:"1"`
	RegisterBurst   int           `env:"BOULDER_REGISTER_BURST" envDefault:"5"`

	LogLevel slog.Level `env:"BOULDER_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment and validates the result
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need
func (c Config) Validate() error {
	var errs []error

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("BOULDER_HTTP_PORT out of range: %d", c.HTTPPort))
	}

	switch c.Storage {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("BOULDER_REDIS_URL is required when BOULDER_STORAGE=redis"))
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("BOULDER_SQLITE_PATH is required when BOULDER_STORAGE=sqlite"))
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("BOULDER_POSTGRES_DSN is required when BOULDER_STORAGE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BOULDER_STORAGE %q", c.Storage))
	}

	switch c.RateLimiter {
	case LimiterMemory:
	case LimiterRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("BOULDER_REDIS_URL is required when BOULDER_RATE_LIMITER=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BOULDER_RATE_LIMITER %q", c.RateLimiter))
	}

	if c.PushMaxAttempts <= 0 {
		errs = append(errs, errors.New("BOULDER_PUSH_MAX_ATTEMPTS must be positive"))
	}
	if c.PushWindow <= 0 {
		errs = append(errs, errors.New("BOULDER_PUSH_WINDOW must be positive"))
	}
	if c.RegisterRPS <= 0 || c.RegisterBurst <= 0 {
		errs = append(errs, errors.New("BOULDER_REGISTER_RPS and BOULDER_REGISTER_BURST must be positive"))
	}

	return errors.Join(errs...)
}

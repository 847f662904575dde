// Package config reads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime parameters, including the commit policy knobs:
// guard debounce window, advisory retry attempts and stock cache TTL.
type Config struct {
	Addr          string `env:"RUN_ADDRESS" envDefault:":8080"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"http://127.0.0.1:3000"`

	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AuthSecret     string        `env:"AUTH_SECRET"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"8h"`

	CommitGuardWindow time.Duration `env:"COMMIT_GUARD_WINDOW" envDefault:"500ms"`
	StockCacheTTL     time.Duration `env:"STOCK_CACHE_TTL" envDefault:"3s"`
	RetryAttempts     uint64        `env:"RETRY_ATTEMPTS" envDefault:"2"`
	RetryBaseBackoff  time.Duration `env:"RETRY_BASE_BACKOFF" envDefault:"50ms"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 8 * time.Hour
	}
	if cfg.CommitGuardWindow <= 0 {
		cfg.CommitGuardWindow = 500 * time.Millisecond
	}

	return cfg, nil
}

// Validate enforces the startup security requirements. It does not invent a
// default secret; a missing AUTH_SECRET must fail loudly.
func (c Config) Validate() error {
	if len(c.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}

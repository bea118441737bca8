// Package config loads settings for the mfactl operator tool.
//
// Values come from an optional TOML file and from MFA_* environment
// variables. Layers are merged with mergo: a field set in the environment wins
// over the file, and defaults fill whatever is still empty.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MFA_"

// Config is the merged mfactl configuration.
type Config struct {
	// MasterKey protects envelopes. Env: MFA_MASTER_KEY
	MasterKey string `env:"MASTER_KEY" toml:"master_key"`
	// KDFIterations must match the value used when data was written. Env: MFA_KDF_ITERATIONS
	KDFIterations int `env:"KDF_ITERATIONS" toml:"kdf_iterations"`

	Store   Store   `envPrefix:"STORE_" toml:"store"`
	Webhook Webhook `envPrefix:"WEBHOOK_" toml:"webhook"`
	Log     Log     `envPrefix:"LOG_" toml:"log"`
}

// Store selects the persistence backend.
type Store struct {
	// Driver is one of "memory", "redis", "pgx", "sqlite". Env: MFA_STORE_DRIVER
	Driver string `env:"DRIVER" toml:"driver"`
	// DSN is the SQL data source name. Env: MFA_STORE_DSN
	DSN string `env:"DSN" toml:"dsn"`
	// RedisAddr is host:port for the redis driver. Env: MFA_STORE_REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR" toml:"redis_addr"`
	// Prefix namespaces Redis keys. Env: MFA_STORE_PREFIX
	Prefix string `env:"PREFIX" toml:"prefix"`
}

// Webhook configures notify.Webhook.
type Webhook struct {
	URL           string        `env:"URL" toml:"url"`
	Token         string        `env:"TOKEN" toml:"token"`
	Timeout       time.Duration `env:"TIMEOUT" toml:"timeout"`
	RatePerSecond float64       `env:"RATE_PER_SECOND" toml:"rate_per_second"`
	Burst         int           `env:"BURST" toml:"burst"`
}

// Log configures the process logger.
type Log struct {
	// Level is a zerolog level name. Env: MFA_LOG_LEVEL
	Level string `env:"LEVEL" toml:"level"`
}

// Default returns the built-in values.
func Default() Config {
	return Config{
		KDFIterations: 100_000,
		Store: Store{
			Driver: "memory",
			Prefix: "mfa",
		},
		Webhook: Webhook{
			Timeout:       5 * time.Second,
			RatePerSecond: 10,
			Burst:         10,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	if c.KDFIterations <= 0 {
		errs = append(errs, errors.New("kdf_iterations must be > 0"))
	}
	switch strings.ToLower(c.Store.Driver) {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr required for redis driver"))
		}
	case "pgx", "sqlite":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn required for %s driver", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Webhook.URL != "" && c.Webhook.RatePerSecond <= 0 {
		errs = append(errs, errors.New("webhook.rate_per_second must be > 0"))
	}

	return errors.Join(errs...)
}

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type checked struct {
	Router        string  `validate:"omitempty,oneof=mux bunrouter"`
	CacheProvider string  `validate:"omitempty,oneof=memory redis memcache"`
	TrackProvider string  `validate:"omitempty,oneof=sentry memory noop"`
	SampleRate    float64 `validate:"gte=0,lte=1"`
	MaxRequest    int64   `validate:"gte=0"`
}

// Validate checks the configuration for values the server cannot start
// with.
func (c *Config) Validate() error {
	err := validate.Struct(checked{
		Router:        c.Server.Router,
		CacheProvider: c.Cache.Provider,
		TrackProvider: c.ErrorTracking.Provider,
		SampleRate:    c.ErrorTracking.SampleRate,
		MaxRequest:    c.Middleware.MaxRequestSize,
	})
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Database.Validate()
}

// Validate checks that every connection names a known engine and that the
// default connection exists.
func (c *DatabaseConfig) Validate() error {
	if len(c.Connections) == 0 {
		return fmt.Errorf("at least one connection must be configured")
	}
	for name, conn := range c.Connections {
		switch strings.ToLower(conn.Type) {
		case "postgres", "postgresql", "mssql", "sqlserver", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("connection %s: unsupported type %q", name, conn.Type)
		}
		switch strings.ToLower(conn.ORM) {
		case "", "bun", "gorm":
		default:
			return fmt.Errorf("connection %s: unsupported orm %q", name, conn.ORM)
		}
	}
	if c.Default != "" {
		if _, ok := c.Connections[c.Default]; !ok {
			return fmt.Errorf("default connection '%s' not found in connections", c.Default)
		}
	}
	return nil
}

// Package config loads the server configuration from a YAML file, from
// SIMPLIFYSPEC_ prefixed environment variables and from defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by a Manager.
const EnvPrefix = "SIMPLIFYSPEC"

// Manager handles configuration loading from multiple sources
type Manager struct {
	v *viper.Viper
}

// NewManager creates a configuration manager with defaults. The file
// config.yaml is searched in the working directory, ./config,
// /etc/simplifyspec and $HOME/.simplifyspec.
func NewManager(opts ...Option) *Manager {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range []string{".", "./config", "/etc/simplifyspec", "$HOME/.simplifyspec"} {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	m := &Manager{v: v}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Option is a functional option for configuring the Manager
type Option func(*Manager)

// WithConfigFile reads path instead of searching for config.yaml
func WithConfigFile(path string) Option {
	return func(m *Manager) {
		m.v.SetConfigFile(path)
	}
}

// WithConfigPath adds a directory to search for config.yaml
func WithConfigPath(path string) Option {
	return func(m *Manager) {
		m.v.AddConfigPath(path)
	}
}

// WithEnvPrefix replaces the environment variable prefix
func WithEnvPrefix(prefix string) Option {
	return func(m *Manager) {
		m.v.SetEnvPrefix(prefix)
	}
}

// Load reads the config file. A missing file is not an error; defaults and
// the environment still apply.
func (m *Manager) Load() error {
	err := m.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() (*Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns a configuration value by key
func (m *Manager) Get(key string) interface{} {
	return m.v.Get(key)
}

// GetString returns a string configuration value
func (m *Manager) GetString(key string) string {
	return m.v.GetString(key)
}

// Set overrides a configuration value
func (m *Manager) Set(key string, value interface{}) {
	m.v.Set(key, value)
}

// ConfigFileUsed returns the path of the file read by Load, if any
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"server.addr":             ":8080",
		"server.base_path":        "",
		"server.router":           "mux",
		"server.gzip":             true,
		"server.shutdown_timeout": "30s",
		"server.drain_timeout":    "25s",
		"server.read_timeout":     "10s",
		"server.write_timeout":    "10s",
		"server.idle_timeout":     "120s",

		"database.default":               "",
		"database.max_open_conns":        25,
		"database.max_idle_conns":        5,
		"database.conn_max_lifetime":     "30m",
		"database.conn_max_idle_time":    "5m",
		"database.retry_attempts":        3,
		"database.retry_delay":           "1s",
		"database.retry_max_delay":       "10s",
		"database.health_check_interval": "30s",

		"cache.enabled":                 true,
		"cache.provider":                "memory",
		"cache.default_ttl":             "5m",
		"cache.max_size":                10000,
		"cache.redis.host":              "localhost",
		"cache.redis.port":              6379,
		"cache.redis.db":                0,
		"cache.redis.pool_size":         10,
		"cache.redis.prefix":            "simplifyspec:",
		"cache.memcache.servers":        []string{"localhost:11211"},
		"cache.memcache.max_idle_conns": 10,
		"cache.memcache.timeout":        "100ms",

		"logger.dev":   false,
		"logger.path":  "",
		"logger.level": "info",

		"error_tracking.enabled":            false,
		"error_tracking.provider":           "noop",
		"error_tracking.environment":        "development",
		"error_tracking.sample_rate":        1.0,
		"error_tracking.traces_sample_rate": 0.0,

		"tracing.enabled":         false,
		"tracing.service_name":    "simplifyspec",
		"tracing.service_version": "1.0.0",
		"tracing.endpoint":        "",
		"tracing.sample_ratio":    1.0,

		"metrics.enabled":   true,
		"metrics.path":      "/metrics",
		"metrics.namespace": "simplifyspec",

		"middleware.rate_limit_rps":   100.0,
		"middleware.rate_limit_burst": 200,
		"middleware.max_request_size": 10 << 20,

		"cors.enabled":         false,
		"cors.allowed_origins": []string{"*"},
		"cors.allowed_methods": []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		"cors.allowed_headers": []string{"Content-Type", "Authorization", "X-Requested-With"},
		"cors.exposed_headers": []string{"Hit"},
		"cors.max_age":         86400,

		"encryption.key": "",

		"procedures.enabled":    false,
		"procedures.connection": "",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

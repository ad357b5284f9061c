package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, opts ...Option) *Config {
	t.Helper()
	mgr := NewManager(opts...)
	require.NoError(t, mgr.Load())
	cfg, err := mgr.GetConfig()
	require.NoError(t, err)
	return cfg
}

func TestDefaultValues(t *testing.T) {
	cfg := load(t)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "mux", cfg.Server.Router)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Cache.Provider)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 6379, cfg.Cache.Redis.Port)
	assert.Equal(t, "simplifyspec", cfg.Tracing.ServiceName)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 100.0, cfg.Middleware.RateLimitRPS)
	assert.Equal(t, int64(10<<20), cfg.Middleware.MaxRequestSize)
	assert.Equal(t, []string{"Hit"}, cfg.CORS.ExposedHeaders)
	assert.False(t, cfg.Procedures.Enabled)
}

func TestEnvironmentVariableOverrides(t *testing.T) {
	t.Setenv("SIMPLIFYSPEC_SERVER_ADDR", ":9090")
	t.Setenv("SIMPLIFYSPEC_TRACING_ENABLED", "true")
	t.Setenv("SIMPLIFYSPEC_CACHE_PROVIDER", "redis")
	t.Setenv("SIMPLIFYSPEC_LOGGER_DEV", "true")

	cfg := load(t)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "redis", cfg.Cache.Provider)
	assert.True(t, cfg.Logger.Dev)
}

func TestEnvPrefixOption(t *testing.T) {
	t.Setenv("MYAPP_SERVER_ADDR", ":5000")
	cfg := load(t, WithEnvPrefix("MYAPP"))
	assert.Equal(t, ":5000", cfg.Server.Addr)
}

func TestProgrammaticConfiguration(t *testing.T) {
	mgr := NewManager()
	mgr.Set("server.addr", ":7070")
	mgr.Set("tracing.service_name", "test-service")

	cfg, err := mgr.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "test-service", cfg.Tracing.ServiceName)
	assert.Equal(t, ":7070", mgr.GetString("server.addr"))
}

const sampleConfig = `
server:
  addr: ":9999"
  router: bunrouter
database:
  default: main
  connections:
    main:
      type: sqlite
      filepath: ":memory:"
    reports:
      type: postgres
      host: db
      port: 5432
      orm: gorm
cache:
  provider: redis
procedures:
  enabled: true
  connection: reports
  allowed: [list_people]
`

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	mgr := NewManager(WithConfigFile(path))
	require.NoError(t, mgr.Load())
	assert.Equal(t, path, mgr.ConfigFileUsed())
	cfg, err := mgr.GetConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "main", cfg.Database.Default)
	require.Len(t, cfg.Database.Connections, 2)
	assert.Equal(t, "gorm", cfg.Database.Connections["reports"].ORM)
	assert.Equal(t, 5432, cfg.Database.Connections["reports"].Port)
	assert.Equal(t, []string{"list_people"}, cfg.Procedures.Allowed)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := load(t)
	assert.Error(t, cfg.Validate(), "no connections")

	cfg.Database.Connections = map[string]ConnectionConfig{"main": {Type: "sqlite"}}
	assert.NoError(t, cfg.Validate())

	cfg.Database.Default = "other"
	assert.Error(t, cfg.Validate())
	cfg.Database.Default = "main"

	cfg.Database.Connections["bad"] = ConnectionConfig{Type: "oracle"}
	assert.Error(t, cfg.Validate())
	delete(cfg.Database.Connections, "bad")

	cfg.Cache.Provider = "disk"
	assert.Error(t, cfg.Validate())
	cfg.Cache.Provider = "memory"

	cfg.ErrorTracking.SampleRate = 2
	assert.Error(t, cfg.Validate())
}

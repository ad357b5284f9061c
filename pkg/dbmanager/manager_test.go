package dbmanager

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/SimplifySpec/pkg/common/adapters/database"
	"github.com/bitechdev/SimplifySpec/pkg/config"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
)

func sqliteConfig(conns ...string) config.DatabaseConfig {
	cfg := config.DatabaseConfig{Connections: map[string]config.ConnectionConfig{}, RetryAttempts: 2, RetryDelay: time.Millisecond}
	for _, name := range conns {
		cfg.Connections[name] = config.ConnectionConfig{Type: "sqlite", FilePath: ":memory:"}
	}
	return cfg
}

func connect(t *testing.T, cfg config.DatabaseConfig) *Manager {
	t.Helper()
	m, err := NewManager(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSingleConnectionIsDefault(t *testing.T) {
	m := connect(t, sqliteConfig("main"))

	db, err := m.Database("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.DriverName())
	_, err = db.Exec(context.Background(), "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	same, err := m.Database("main")
	require.NoError(t, err)
	assert.Same(t, db, same)
	assert.Equal(t, []string{"main"}, m.Names())
}

func TestNamedConnections(t *testing.T) {
	cfg := sqliteConfig("read", "write")
	rc := cfg.Connections["read"]
	rc.ORM = "gorm"
	cfg.Connections["read"] = rc

	m := connect(t, cfg)
	_, err := m.Database("")
	assert.ErrorIs(t, err, ErrNoDefaultConnection)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	read, err := m.Database("read")
	require.NoError(t, err)
	assert.IsType(t, &database.GormAdapter{}, read)

	write, err := m.Database("write")
	require.NoError(t, err)
	assert.IsType(t, &database.BunAdapter{}, write)
}

func TestNewManagerRejectsConfig(t *testing.T) {
	_, err := NewManager(config.DatabaseConfig{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	cfg := sqliteConfig("main")
	c := cfg.Connections["main"]
	c.ORM = "native"
	cfg.Connections["main"] = c
	_, err = NewManager(cfg)
	assert.Error(t, err)
}

func TestConnectFailureClosesOpened(t *testing.T) {
	cfg := sqliteConfig("a")
	cfg.Connections["b"] = config.ConnectionConfig{Type: "sqlite", FilePath: "/nonexistent/dir/db.sqlite?mode=ro"}
	m, err := NewManager(cfg)
	require.NoError(t, err)

	err = m.Connect(context.Background())
	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "b", cerr.Name)
	assert.Empty(t, m.Names())
}

func TestHealthAndStats(t *testing.T) {
	cfg := sqliteConfig("main")
	cfg.HealthCheckInterval = 10 * time.Millisecond
	m := connect(t, cfg)

	require.NoError(t, m.HealthCheck(context.Background()))
	assert.Eventually(t, func() bool {
		return m.Stats().HealthyCount == 1
	}, time.Second, 10*time.Millisecond)

	stats := m.Stats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, dialect.SQLite, stats.ConnectionStats["main"].Engine)
	assert.Equal(t, 1, stats.ConnectionStats["main"].MaxOpenConnections)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(m.Collector()), 6)

	require.NoError(t, m.Close())
	assert.Empty(t, m.Names())
}

func TestConnectionFromDB(t *testing.T) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer sqldb.Close()

	conn := NewConnectionFromDB("existing", dialect.SQLite, "", sqldb)
	m, err := NewManager(sqliteConfig("main"))
	require.NoError(t, err)
	m.Add(conn)

	got, err := m.Get("existing")
	require.NoError(t, err)
	assert.ErrorIs(t, got.Connect(context.Background()), ErrAlreadyConnected)
	require.NoError(t, got.HealthCheck(context.Background()))

	require.NoError(t, conn.Close())
	assert.NoError(t, sqldb.Ping(), "borrowed database stays open")
	_, err = conn.Database()
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestBuildDSN(t *testing.T) {
	pg, err := resolve("pg", config.DatabaseConfig{}, config.ConnectionConfig{Type: "postgres", Host: "db", User: "u", Password: "p", Database: "app", Schema: "s"})
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=app sslmode=disable search_path=s", pg.BuildDSN())
	assert.Equal(t, "pgx", pg.driverName())

	ms, err := resolve("ms", config.DatabaseConfig{}, config.ConnectionConfig{Type: "mssql", Host: "db", User: "sa", Password: "x", Database: "app"})
	require.NoError(t, err)
	assert.Equal(t, "sqlserver://sa:x@db:1433?database=app", ms.BuildDSN())

	custom, err := resolve("c", config.DatabaseConfig{}, config.ConnectionConfig{Type: "postgres", DSN: "postgres://x"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", custom.BuildDSN())

	_, err = resolve("bad", config.DatabaseConfig{}, config.ConnectionConfig{Type: "oracle"})
	var cerr *ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(1, time.Second, 10*time.Second))
	assert.Equal(t, 4*time.Second, backoff(3, time.Second, 10*time.Second))
	assert.Equal(t, 10*time.Second, backoff(8, time.Second, 10*time.Second))
}

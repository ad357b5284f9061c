//go:build integration

package sqlexec

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/cast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bitechdev/SimplifySpec/pkg/config"
	"github.com/bitechdev/SimplifySpec/pkg/dbmanager"
)

func startPostgres(t *testing.T) *dbmanager.Manager {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "testuser",
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	mgr, err := dbmanager.NewManager(config.DatabaseConfig{
		Connections: map[string]config.ConnectionConfig{
			"main": {
				Type:     "postgres",
				Host:     host,
				Port:     port.Int(),
				User:     "testuser",
				Password: "testpass",
				Database: "testdb",
				SSLMode:  "disable",
			},
		},
		RetryAttempts: 5,
		RetryDelay:    time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, mgr.Connect(ctx))
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestPostgresProcedure(t *testing.T) {
	ctx := context.Background()
	mgr := startPostgres(t)
	require.NoError(t, mgr.HealthCheck(ctx))

	db, err := mgr.Database("")
	require.NoError(t, err)
	_, err = db.Exec(ctx, `CREATE FUNCTION list_people(p_id integer, p_name text)
RETURNS TABLE (first_name text, pm_system_id integer) AS $$
	SELECT coalesce(p_name, 'nobody'), p_id
$$ LANGUAGE sql`)
	require.NoError(t, err)

	e, err := New(db)
	require.NoError(t, err)

	rows, err := e.Call(ctx, "list_people", map[string]interface{}{"id": 7, "Name": "ann"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ann", rows[0]["first_name"])
	assert.Equal(t, 7, cast.ToInt(rows[0]["pm_system_id"]))

	rows, err = e.Call(ctx, "list_people", map[string]interface{}{"id": 8})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "nobody", rows[0]["first_name"])

	_, err = e.Call(ctx, "missing_function", nil)
	assert.Error(t, err)
}

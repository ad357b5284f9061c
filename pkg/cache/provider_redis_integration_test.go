//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *RedisProvider {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	p := NewRedisProviderWithClient(client, "test:", nil)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestRedisProvider(t *testing.T) {
	ctx := context.Background()
	p := startRedis(t)

	require.NoError(t, p.Set(ctx, "a", []byte("1"), time.Minute, "t"))
	require.NoError(t, p.Set(ctx, "b", []byte("2"), time.Minute))
	v, ok, err := p.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, p.DeleteByTag(ctx, "t"))
	_, ok, err = p.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Clear(ctx))
	_, ok, err = p.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

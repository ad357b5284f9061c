package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewCache(NewMemoryProvider(nil))

	require.NoError(t, c.Set(ctx, "k", map[string]interface{}{"name": "a"}, time.Minute))
	var got map[string]interface{}
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "a", got["name"])

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrNotFound)
}

func TestMemoryProviderExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewMemoryProvider(&Options{})
	p.now = func() time.Time { return now }

	require.NoError(t, p.Set(ctx, "k", []byte("v"), 15*time.Second))
	_, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(16 * time.Second)
	_, ok, err = p.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, p.Len())
}

func TestMemoryProviderDeleteByTag(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider(nil)

	require.NoError(t, p.Set(ctx, "a", []byte("1"), 0, ResourceTag("things")))
	require.NoError(t, p.Set(ctx, "b", []byte("2"), 0, ResourceTag("things")))
	require.NoError(t, p.Set(ctx, "c", []byte("3"), 0, ResourceTag("others")))

	require.NoError(t, p.DeleteByTag(ctx, ResourceTag("things")))
	for key, want := range map[string]bool{"a": false, "b": false, "c": true} {
		_, ok, err := p.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, ok, key)
	}
}

func TestMemoryProviderEvictsOldest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewMemoryProvider(&Options{MaxSize: 2})
	p.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, p.Set(ctx, key, []byte(key), 0))
		now = now.Add(time.Second)
	}
	assert.Equal(t, 2, p.Len())
	_, ok, _ := p.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = p.Get(ctx, "c")
	assert.True(t, ok)
}

func TestResponseKey(t *testing.T) {
	a := ResponseKey("things", "/things?page=1")
	assert.Equal(t, a, ResponseKey("things", "/things?page=1"))
	assert.NotEqual(t, a, ResponseKey("things", "/things?page=2"))
	assert.NotEqual(t, a, ResponseKey("others", "/things?page=1"))
}

func TestOptionsTTL(t *testing.T) {
	o := &Options{DefaultTTL: time.Minute}
	assert.Equal(t, time.Minute, o.ttl(0))
	assert.Equal(t, time.Second, o.ttl(time.Second))
	assert.Equal(t, int32(3), expiration(3*time.Second))
	assert.Equal(t, int32(1), expiration(time.Millisecond))
	assert.Equal(t, int32(0), expiration(0))
}

package modelregistry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Register("one", 1))
	require.Error(t, r.Register("one", 2), "duplicate names are rejected")
	require.Error(t, r.Register("", 3))

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestNamesSorted(t *testing.T) {
	r := New[string]()
	require.NoError(t, r.Register("b", "2"))
	require.NoError(t, r.Register("a", "1"))
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, r.All())
}

func TestGetOrCreateConcurrent(t *testing.T) {
	r := New[*int]()
	var calls int32
	var wg sync.WaitGroup
	results := make([]*int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := r.GetOrCreate("key", func() (*int, error) {
				atomic.AddInt32(&calls, 1)
				n := 42
				return &n, nil
			})
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
	for _, v := range results {
		assert.Same(t, results[0], v, "every caller sees the stored value")
	}
}

func TestGetOrCreateError(t *testing.T) {
	r := New[int]()
	_, err := r.GetOrCreate("key", func() (int, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	_, ok := r.Get("key")
	assert.False(t, ok)
}

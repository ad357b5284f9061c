// Package cache stores serialized responses behind a pluggable provider.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bitechdev/SimplifySpec/pkg/metrics"
)

// ErrNotFound is returned by Get for missing or expired keys.
var ErrNotFound = errors.New("cache: key not found")

// Cache encodes values as JSON on top of a Provider.
type Cache struct {
	provider Provider
}

// NewCache creates a cache over provider.
func NewCache(provider Provider) *Cache {
	return &Cache{provider: provider}
}

// Provider returns the underlying provider.
func (c *Cache) Provider() Provider {
	return c.provider
}

// Get decodes the value of key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok, err := c.provider.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

// Set stores value under key for ttl with the given tags.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.provider.Set(ctx, key, data, ttl, tags...); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.provider.Delete(ctx, key)
}

// DeleteByTag removes every key stored with tag.
func (c *Cache) DeleteByTag(ctx context.Context, tag string) error {
	if err := c.provider.DeleteByTag(ctx, tag); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", tag, err)
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	return c.provider.Clear(ctx)
}

// Close releases the provider.
func (c *Cache) Close() error {
	return c.provider.Close()
}

// ResponseKey is the key of a cached response of resource for the full
// request path, query included.
func ResponseKey(resource, fullPath string) string {
	sum := sha256.Sum256([]byte(resource + "\x00" + fullPath))
	return "resp:" + hex.EncodeToString(sum[:])
}

// ResourceTag groups every cached response of resource.
func ResourceTag(resource string) string {
	return "resource:" + resource
}

func reportSize(p Provider, size int) {
	metrics.GetProvider().UpdateCacheSize(p.Name(), int64(size))
}

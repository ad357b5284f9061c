package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheProvider stores entries in Memcache. Memcache cannot enumerate
// keys, so every tag is an item listing its keys, one per line.
type MemcacheProvider struct {
	client  *memcache.Client
	options *Options
}

// MemcacheConfig contains Memcache-specific configuration.
type MemcacheConfig struct {
	// Servers defaults to localhost:11211.
	Servers      []string
	MaxIdleConns int
	Timeout      time.Duration
	Options      *Options
}

// NewMemcacheProvider connects to the configured servers and pings them.
func NewMemcacheProvider(config *MemcacheConfig) (*MemcacheProvider, error) {
	if config == nil {
		config = &MemcacheConfig{}
	}
	if len(config.Servers) == 0 {
		config.Servers = []string{"localhost:11211"}
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 2
	}
	if config.Timeout == 0 {
		config.Timeout = time.Second
	}
	if config.Options == nil {
		config.Options = &Options{DefaultTTL: 5 * time.Minute}
	}
	client := memcache.New(config.Servers...)
	client.MaxIdleConns = config.MaxIdleConns
	client.Timeout = config.Timeout
	if err := client.Ping(); err != nil {
		return nil, err
	}
	return &MemcacheProvider{client: client, options: config.Options}, nil
}

func (m *MemcacheProvider) Name() string { return "memcache" }

func tagItem(tag string) string { return "tag:" + tag }

func expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if s := int32(ttl / time.Second); s > 0 {
		return s
	}
	return 1
}

func (m *MemcacheProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return item.Value, true, nil
}

func (m *MemcacheProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	exp := expiration(m.options.ttl(ttl))
	if err := m.client.Set(&memcache.Item{Key: key, Value: value, Expiration: exp}); err != nil {
		return err
	}
	for _, tag := range tags {
		if err := m.tag(tag, key, exp); err != nil {
			return err
		}
	}
	return nil
}

// tag appends key to the tag item, creating it when missing.
func (m *MemcacheProvider) tag(tag, key string, exp int32) error {
	err := m.client.Append(&memcache.Item{Key: tagItem(tag), Value: []byte(key + "\n")})
	if errors.Is(err, memcache.ErrNotStored) {
		err = m.client.Add(&memcache.Item{Key: tagItem(tag), Value: []byte(key + "\n"), Expiration: exp})
		if errors.Is(err, memcache.ErrNotStored) {
			return m.tag(tag, key, exp)
		}
	}
	return err
}

func (m *MemcacheProvider) Delete(_ context.Context, key string) error {
	if err := m.client.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	return nil
}

func (m *MemcacheProvider) DeleteByTag(ctx context.Context, tag string) error {
	item, err := m.client.Get(tagItem(tag))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, key := range strings.Split(strings.TrimSpace(string(item.Value)), "\n") {
		if key == "" {
			continue
		}
		if err := m.Delete(ctx, key); err != nil {
			return err
		}
	}
	return m.Delete(ctx, tagItem(tag))
}

// Clear flushes every server.
func (m *MemcacheProvider) Clear(_ context.Context) error {
	return m.client.FlushAll()
}

func (m *MemcacheProvider) Close() error {
	return m.client.Close()
}

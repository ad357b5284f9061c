package cache

import (
	"context"
	"time"
)

// Provider stores raw cache entries. Tags group keys for invalidation.
type Provider interface {
	// Get returns the value of key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A zero ttl uses the provider default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	Delete(ctx context.Context, key string) error
	// DeleteByTag removes every key stored with tag.
	DeleteByTag(ctx context.Context, tag string) error
	Clear(ctx context.Context) error
	Close() error
	// Name identifies the provider in metrics.
	Name() string
}

// Options contains configuration options for cache providers.
type Options struct {
	// DefaultTTL applies to entries stored with a zero ttl.
	DefaultTTL time.Duration
	// MaxSize bounds the number of entries of the memory provider.
	MaxSize int
}

func (o *Options) ttl(ttl time.Duration) time.Duration {
	if ttl > 0 || o == nil {
		return ttl
	}
	return o.DefaultTTL
}

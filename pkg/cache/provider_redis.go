package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider stores entries in Redis. Every tag is a set holding the keys
// stored with it.
type RedisProvider struct {
	client  redis.UniversalClient
	options *Options
	prefix  string
}

// RedisConfig contains Redis-specific configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	// Prefix namespaces every key. Defaults to "simplifyspec:".
	Prefix  string
	Options *Options
}

// NewRedisProvider connects to Redis and pings it.
func NewRedisProvider(config *RedisConfig) (*RedisProvider, error) {
	if config == nil {
		config = &RedisConfig{}
	}
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 6379
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisProviderWithClient(client, config.Prefix, config.Options), nil
}

// NewRedisProviderWithClient uses an existing client.
func NewRedisProviderWithClient(client redis.UniversalClient, prefix string, opts *Options) *RedisProvider {
	if prefix == "" {
		prefix = "simplifyspec:"
	}
	if opts == nil {
		opts = &Options{DefaultTTL: 5 * time.Minute}
	}
	return &RedisProvider{client: client, options: opts, prefix: prefix}
}

func (r *RedisProvider) Name() string { return "redis" }

func (r *RedisProvider) key(key string) string { return r.prefix + key }

func (r *RedisProvider) tagKey(tag string) string { return r.prefix + "tag:" + tag }

func (r *RedisProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	ttl = r.options.ttl(ttl)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(key), value, ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, r.tagKey(tag), key)
			if ttl > 0 {
				pipe.Expire(ctx, r.tagKey(tag), ttl)
			}
		}
		return nil
	})
	return err
}

func (r *RedisProvider) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisProvider) DeleteByTag(ctx context.Context, tag string) error {
	keys, err := r.client.SMembers(ctx, r.tagKey(tag)).Result()
	if err != nil {
		return err
	}
	del := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		del = append(del, r.key(k))
	}
	del = append(del, r.tagKey(tag))
	return r.client.Del(ctx, del...).Err()
}

// Clear removes every key under the provider's prefix.
func (r *RedisProvider) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (r *RedisProvider) Close() error {
	return r.client.Close()
}

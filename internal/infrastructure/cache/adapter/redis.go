package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"go-messenger/internal/infrastructure/cache/port"
)

const defaultKeyPrefix = "go-messenger:"

// RedisCache keeps sessions in Redis under a shared key namespace so several API
// nodes resolve the same tokens.
type RedisCache struct {
	client *redis.Client
	prefix string
}

type RedisOption func(*RedisCache)

// WithKeyPrefix namespaces every key; an empty prefix disables namespacing.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisCache) { r.prefix = prefix }
}

// NewRedisCache connects to url (redis://...) and fails fast if the server is unreachable.
func NewRedisCache(ctx context.Context, url string, opts ...RedisOption) (*RedisCache, error) {
	if url == "" {
		return nil, errors.New("cache: redis url is empty")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	r := &RedisCache{client: redis.NewClient(opt), prefix: defaultKeyPrefix}
	for _, o := range opts {
		o(r)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		_ = r.client.Close()
		return nil, err
	}
	return r, nil
}

var _ port.Cache = (*RedisCache)(nil)

func (r *RedisCache) key(k string) string { return r.prefix + k }

// GetEx maps to GETEX, so the read and the expiry refresh are one round trip.
func (r *RedisCache) GetEx(ctx context.Context, key string, ttl time.Duration) (string, error) {
	var cmd *redis.StringCmd
	if ttl > 0 {
		cmd = r.client.GetEx(ctx, r.key(key), ttl)
	} else {
		cmd = r.client.Get(ctx, r.key(key))
	}
	v, err := cmd.Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", port.ErrMiss
	case err != nil:
		return "", fmt.Errorf("cache: get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	n, err := r.client.Del(ctx, full...).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: del: %w", err)
	}
	return n, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: ping redis: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() error { return r.client.Close() }

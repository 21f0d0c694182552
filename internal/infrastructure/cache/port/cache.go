package port

import (
	"context"
	"errors"
	"time"
)

// Cache is the key-value store behind login sessions. Implementations must be
// safe for concurrent use.
type Cache interface {
	// GetEx returns the value at key and, when ttl > 0, restarts its expiry so
	// sessions in use keep sliding forward. Missing or expired keys yield ErrMiss.
	GetEx(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Set stores value at key. A non-positive ttl keeps it until deleted.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

var ErrMiss = errors.New("cache: miss")

package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service is a key/value store with expiry and simple locks. Values other
// than strings and []byte are stored as JSON and decoded into dest on Get.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// GenerateKey joins a prefix and an id. A prefix ending in ':' is used as is.
func GenerateKey(prefix, id string) string {
	if prefix == "" || prefix[len(prefix)-1] == ':' {
		return prefix + id
	}
	return prefix + ":" + id
}

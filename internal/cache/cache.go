package cache

import (
	"context"
	"time"
)

// Cache is a JSON read-through cache. The transcript service uses it for the
// recent page of each room; implementations must treat corrupt entries as a
// miss, not an error.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

package taxonomy

import (
	"context"
	"time"
)

// CacheConfig holds TTLs and sizing for the selector option cache tiers.
type CacheConfig struct {
	// L1TTL is how long options live in the local in-process tier.
	L1TTL time.Duration
	// L2TTL is how long options live in the shared Redis tier.
	L2TTL time.Duration
	// L1MaxSize caps the number of entries in the local tier.
	L1MaxSize int
	// PubSubChannel is the Redis channel carrying invalidation messages
	// between instances.
	PubSubChannel string
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		L1TTL:         5 * time.Minute,
		L2TTL:         time.Hour,
		L1MaxSize:     1000,
		PubSubChannel: "cardstash:taxonomy:invalidate",
	}
}

// OptionCacheKey renders the cache key for one (level, ancestor path) query.
func OptionCacheKey(level SelectorLevel, parents ParentFilters) string {
	key := "selector:" + string(level)
	if filters := parents.CacheKey(); filters != "" {
		key += ":" + filters
	}
	return key
}

// OptionCache is the port for cached selector option lists. Get returns
// (nil, nil) on a miss; a cached empty list is a hit, so implementations must
// distinguish "not cached" from "cached as empty".
type OptionCache interface {
	Get(ctx context.Context, key string) ([]SelectorOption, error)
	Set(ctx context.Context, key string, options []SelectorOption, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	InvalidateAll(ctx context.Context) error
	Close() error
}

// CacheUpdateMessage is broadcast over pub/sub when cached options change.
// An empty Key invalidates everything.
type CacheUpdateMessage struct {
	Key       string `json:"key,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// CacheInvalidator propagates cache invalidations across instances.
type CacheInvalidator interface {
	Publish(ctx context.Context, msg CacheUpdateMessage) error
	// Subscribe blocks, invoking callback for each received message, until
	// ctx is cancelled or Close is called.
	Subscribe(ctx context.Context, callback func(msg CacheUpdateMessage)) error
	Close() error
}

package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/taxonomy"
)

// TieredOptionCache layers a local in-process tier over the shared Redis
// tier. Reads fall through local → shared → caller; writes and
// invalidations hit both tiers and broadcast over pub/sub so the other
// instances drop their local copies too.
type TieredOptionCache struct {
	local       taxonomy.OptionCache
	shared      taxonomy.OptionCache
	invalidator taxonomy.CacheInvalidator
	config      taxonomy.CacheConfig
	logger      *zap.Logger

	mu         sync.Mutex
	subStarted bool
	localHits  int64
	sharedHits int64
	misses     int64
}

// TieredOptionCacheOption is a functional option for configuring the cache
type TieredOptionCacheOption func(*TieredOptionCache)

// WithTieredConfig sets the cache configuration
func WithTieredConfig(config taxonomy.CacheConfig) TieredOptionCacheOption {
	return func(c *TieredOptionCache) {
		c.config = config
	}
}

// WithTieredLogger sets the logger for the cache
func WithTieredLogger(logger *zap.Logger) TieredOptionCacheOption {
	return func(c *TieredOptionCache) {
		c.logger = logger
	}
}

// WithTieredInvalidator wires a pub/sub invalidator into the cache
func WithTieredInvalidator(invalidator taxonomy.CacheInvalidator) TieredOptionCacheOption {
	return func(c *TieredOptionCache) {
		c.invalidator = invalidator
	}
}

// NewTieredOptionCache creates a tiered cache over the given local and shared
// tiers.
func NewTieredOptionCache(local, shared taxonomy.OptionCache, opts ...TieredOptionCacheOption) *TieredOptionCache {
	cache := &TieredOptionCache{
		local:  local,
		shared: shared,
		config: taxonomy.DefaultCacheConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Get returns the cached options for key, or (nil, nil) when neither tier
// holds them. A shared-tier hit repopulates the local tier.
func (c *TieredOptionCache) Get(ctx context.Context, key string) ([]taxonomy.SelectorOption, error) {
	options, err := c.local.Get(ctx, key)
	if err != nil {
		c.logger.Warn("local cache tier read failed",
			zap.String("key", key),
			zap.Error(err))
	} else if options != nil {
		c.mu.Lock()
		c.localHits++
		c.mu.Unlock()
		return options, nil
	}

	options, err = c.shared.Get(ctx, key)
	if err != nil {
		// The shared tier being down degrades to local-only caching
		c.logger.Warn("shared cache tier read failed",
			zap.String("key", key),
			zap.Error(err))
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, nil
	}
	if options == nil {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, nil
	}

	c.mu.Lock()
	c.sharedHits++
	c.mu.Unlock()

	if err := c.local.Set(ctx, key, options, c.config.L1TTL); err != nil {
		c.logger.Warn("failed to populate local cache tier",
			zap.String("key", key),
			zap.Error(err))
	}
	return options, nil
}

// Set writes options to both tiers. The ttl applies to the shared tier; the
// local tier always uses the shorter L1 TTL.
func (c *TieredOptionCache) Set(ctx context.Context, key string, options []taxonomy.SelectorOption, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, options, c.config.L1TTL); err != nil {
		c.logger.Warn("failed to set local cache tier",
			zap.String("key", key),
			zap.Error(err))
	}
	if err := c.shared.Set(ctx, key, options, ttl); err != nil {
		return fmt.Errorf("failed to set shared cache tier: %w", err)
	}
	return nil
}

// Invalidate removes key from both tiers and notifies the other instances.
func (c *TieredOptionCache) Invalidate(ctx context.Context, key string) error {
	if err := c.local.Invalidate(ctx, key); err != nil {
		c.logger.Warn("failed to invalidate local cache tier",
			zap.String("key", key),
			zap.Error(err))
	}
	if err := c.shared.Invalidate(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate shared cache tier: %w", err)
	}
	if c.invalidator != nil {
		if err := c.invalidator.Publish(ctx, taxonomy.CacheUpdateMessage{Key: key}); err != nil {
			c.logger.Warn("failed to publish cache invalidation",
				zap.String("key", key),
				zap.Error(err))
		}
	}
	return nil
}

// InvalidateAll clears both tiers and notifies the other instances.
func (c *TieredOptionCache) InvalidateAll(ctx context.Context) error {
	if err := c.local.InvalidateAll(ctx); err != nil {
		c.logger.Warn("failed to clear local cache tier", zap.Error(err))
	}
	if err := c.shared.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("failed to clear shared cache tier: %w", err)
	}
	if c.invalidator != nil {
		if err := c.invalidator.Publish(ctx, taxonomy.CacheUpdateMessage{}); err != nil {
			c.logger.Warn("failed to publish cache invalidation", zap.Error(err))
		}
	}
	return nil
}

// StartInvalidationSubscription begins consuming pub/sub invalidation
// messages, dropping local-tier entries as they arrive. It is a no-op when no
// invalidator is configured, and returns immediately; the subscription runs
// until ctx is cancelled.
func (c *TieredOptionCache) StartInvalidationSubscription(ctx context.Context) error {
	if c.invalidator == nil {
		return nil
	}

	c.mu.Lock()
	if c.subStarted {
		c.mu.Unlock()
		return fmt.Errorf("invalidation subscription already started")
	}
	c.subStarted = true
	c.mu.Unlock()

	go func() {
		err := c.invalidator.Subscribe(ctx, func(msg taxonomy.CacheUpdateMessage) {
			if msg.Key == "" {
				if err := c.local.InvalidateAll(ctx); err != nil {
					c.logger.Warn("failed to clear local tier on broadcast", zap.Error(err))
				}
				return
			}
			if err := c.local.Invalidate(ctx, msg.Key); err != nil {
				c.logger.Warn("failed to invalidate local tier on broadcast",
					zap.String("key", msg.Key),
					zap.Error(err))
			}
		})
		if err != nil && err != context.Canceled {
			c.logger.Error("cache invalidation subscription ended", zap.Error(err))
		}
	}()
	return nil
}

// Ping verifies the shared tier's backing connection, for readiness probes.
// A memory-only shared tier always reports healthy.
func (c *TieredOptionCache) Ping(ctx context.Context) error {
	if p, ok := c.shared.(interface{ Ping(ctx context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Stats returns local-hit, shared-hit, and miss counts.
func (c *TieredOptionCache) Stats() (localHits, sharedHits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localHits, c.sharedHits, c.misses
}

// Close closes both tiers and the invalidator.
func (c *TieredOptionCache) Close() error {
	var firstErr error
	if err := c.local.Close(); err != nil {
		firstErr = err
	}
	if err := c.shared.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if c.invalidator != nil {
		if err := c.invalidator.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ensure TieredOptionCache implements OptionCache
var _ taxonomy.OptionCache = (*TieredOptionCache)(nil)

// Package cache implements the tiered selector option cache: a bounded
// in-process L1 in front of a shared Redis L2, with pub/sub invalidation so
// a taxonomy refresh on one instance evicts stale entries everywhere.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/taxonomy"
)

// cleanupInterval is how often the background sweep removes expired entries
const cleanupInterval = 30 * time.Second

// MemoryOptionCache is the in-process tier. It is bounded: when full, the
// entry closest to expiry is evicted first.
type MemoryOptionCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	config  taxonomy.CacheConfig
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

type memoryEntry struct {
	options   []taxonomy.SelectorOption
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryOptionCacheOption is a functional option for configuring the cache
type MemoryOptionCacheOption func(*MemoryOptionCache)

// WithMemoryConfig sets the cache configuration
func WithMemoryConfig(config taxonomy.CacheConfig) MemoryOptionCacheOption {
	return func(c *MemoryOptionCache) {
		c.config = config
	}
}

// WithMemoryLogger sets the logger for the cache
func WithMemoryLogger(logger *zap.Logger) MemoryOptionCacheOption {
	return func(c *MemoryOptionCache) {
		c.logger = logger
	}
}

// NewMemoryOptionCache creates an in-memory selector option cache and starts
// its background cleanup sweep.
func NewMemoryOptionCache(opts ...MemoryOptionCacheOption) *MemoryOptionCache {
	cache := &MemoryOptionCache{
		entries: make(map[string]*memoryEntry),
		config:  taxonomy.DefaultCacheConfig(),
		logger:  zap.NewNop(),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(cache)
	}
	go cache.cleanupLoop()
	return cache
}

// Get returns the cached options for key, or (nil, nil) on a miss. A cached
// empty list returns a non-nil empty slice.
func (c *MemoryOptionCache) Get(ctx context.Context, key string) ([]taxonomy.SelectorOption, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !entry.expired(time.Now()) {
		atomic.AddInt64(&c.hits, 1)
		out := make([]taxonomy.SelectorOption, len(entry.options))
		copy(out, entry.options)
		return out, nil
	}
	if ok {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	}

	atomic.AddInt64(&c.misses, 1)
	return nil, nil
}

// Set stores options under key. A zero ttl uses the configured L1 TTL.
func (c *MemoryOptionCache) Set(ctx context.Context, key string, options []taxonomy.SelectorOption, ttl time.Duration) error {
	if options == nil {
		options = []taxonomy.SelectorOption{}
	}
	if ttl == 0 {
		ttl = c.config.L1TTL
	}

	stored := make([]taxonomy.SelectorOption, len(options))
	copy(stored, options)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.config.L1MaxSize > 0 && len(c.entries) >= c.config.L1MaxSize {
		c.evictLocked()
	}
	c.entries[key] = &memoryEntry{options: stored, expiresAt: time.Now().Add(ttl)}
	return nil
}

// evictLocked frees one slot: expired entries first, otherwise the entry
// closest to expiry. Caller holds the write lock.
func (c *MemoryOptionCache) evictLocked() {
	now := time.Now()
	var victim string
	var victimExpiry time.Time
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			return
		}
		if victim == "" || entry.expiresAt.Before(victimExpiry) {
			victim = key
			victimExpiry = entry.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

// Invalidate removes one entry.
func (c *MemoryOptionCache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// InvalidateAll removes every entry.
func (c *MemoryOptionCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*memoryEntry)
	c.mu.Unlock()
	return nil
}

// Close stops the background cleanup sweep.
func (c *MemoryOptionCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// Stats returns hit/miss counters for monitoring.
func (c *MemoryOptionCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Len returns the number of cached entries.
func (c *MemoryOptionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryOptionCache) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryOptionCache) sweep() {
	now := time.Now()
	removed := 0

	c.mu.Lock()
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Debug("cleaned up expired selector option entries", zap.Int("removed", removed))
	}
}

// Ensure MemoryOptionCache implements OptionCache
var _ taxonomy.OptionCache = (*MemoryOptionCache)(nil)

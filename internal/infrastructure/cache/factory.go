package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/infrastructure/config"
)

// OptionCacheFactory creates selector option caches based on configuration
type OptionCacheFactory struct {
	redisConfig         config.RedisConfig
	cacheConfig         taxonomy.CacheConfig
	logger              *zap.Logger
	allowMemoryFallback bool
}

// OptionCacheFactoryOption is a functional option for configuring the factory
type OptionCacheFactoryOption func(*OptionCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) OptionCacheFactoryOption {
	return func(f *OptionCacheFactory) {
		f.logger = logger
	}
}

// WithCacheConfig sets TTLs and sizing for the created caches
func WithCacheConfig(cfg taxonomy.CacheConfig) OptionCacheFactoryOption {
	return func(f *OptionCacheFactory) {
		f.cacheConfig = cfg
	}
}

// WithMemoryFallback controls whether to fall back to a memory-only cache
// when Redis is unavailable. Default is true (allow fallback).
func WithMemoryFallback(allow bool) OptionCacheFactoryOption {
	return func(f *OptionCacheFactory) {
		f.allowMemoryFallback = allow
	}
}

// NewOptionCacheFactory creates a new factory
func NewOptionCacheFactory(cfg config.RedisConfig, opts ...OptionCacheFactoryOption) *OptionCacheFactory {
	f := &OptionCacheFactory{
		redisConfig:         cfg,
		cacheConfig:         taxonomy.DefaultCacheConfig(),
		logger:              zap.NewNop(),
		allowMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateTieredCache creates a tiered cache over Redis with pub/sub
// invalidation between instances.
func (f *OptionCacheFactory) CreateTieredCache() (taxonomy.OptionCache, error) {
	shared, err := NewRedisOptionCache(f.redisConfig,
		WithRedisConfig(f.cacheConfig),
		WithRedisLogger(f.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis option cache: %w", err)
	}

	invalidator := NewRedisCacheInvalidatorWithClient(shared.GetClient(),
		WithInvalidatorChannel(f.cacheConfig.PubSubChannel),
		WithInvalidatorLogger(f.logger))

	local := NewMemoryOptionCache(
		WithMemoryConfig(f.cacheConfig),
		WithMemoryLogger(f.logger))

	return NewTieredOptionCache(local, shared,
		WithTieredConfig(f.cacheConfig),
		WithTieredLogger(f.logger),
		WithTieredInvalidator(invalidator)), nil
}

// CreateMemoryCache creates a process-local cache. Suitable for
// single-instance deployments and testing; instances do not share entries or
// see each other's invalidations.
func (f *OptionCacheFactory) CreateMemoryCache() taxonomy.OptionCache {
	return NewMemoryOptionCache(
		WithMemoryConfig(f.cacheConfig),
		WithMemoryLogger(f.logger))
}

// CreateCache creates a tiered cache when Redis is reachable, falling back to
// a memory-only cache when it is not and fallback is allowed.
func (f *OptionCacheFactory) CreateCache() (taxonomy.OptionCache, error) {
	cache, err := f.CreateTieredCache()
	if err == nil {
		f.logger.Info("using tiered selector option cache")
		return cache, nil
	}

	if !f.allowMemoryFallback {
		return nil, fmt.Errorf("Redis required for option cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory option cache. "+
		"Instances will not share cached selector options.",
		zap.Error(err),
	)
	return f.CreateMemoryCache(), nil
}

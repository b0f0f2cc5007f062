package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/infrastructure/config"
)

const (
	redisKeyPrefix       = "taxonomy:"
	defaultScanBatchSize = 100
)

// RedisOptionCache is the shared tier, holding serialized selector option
// lists keyed by (level, ancestor path).
type RedisOptionCache struct {
	client     *redis.Client
	ownsClient bool
	config     taxonomy.CacheConfig
	logger     *zap.Logger
}

// RedisOptionCacheOption is a functional option for configuring the cache
type RedisOptionCacheOption func(*RedisOptionCache)

// WithRedisConfig sets the cache configuration
func WithRedisConfig(config taxonomy.CacheConfig) RedisOptionCacheOption {
	return func(c *RedisOptionCache) {
		c.config = config
	}
}

// WithRedisLogger sets the logger for the cache
func WithRedisLogger(logger *zap.Logger) RedisOptionCacheOption {
	return func(c *RedisOptionCache) {
		c.logger = logger
	}
}

// NewRedisOptionCache creates a Redis selector option cache, verifying the
// connection up front.
func NewRedisOptionCache(cfg config.RedisConfig, opts ...RedisOptionCacheOption) (*RedisOptionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisOptionCache{
		client:     client,
		ownsClient: true,
		config:     taxonomy.DefaultCacheConfig(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache, nil
}

// NewRedisOptionCacheWithClient creates a cache over an existing client. The
// caller retains ownership of the client and is responsible for closing it.
func NewRedisOptionCacheWithClient(client *redis.Client, opts ...RedisOptionCacheOption) *RedisOptionCache {
	cache := &RedisOptionCache{
		client:     client,
		ownsClient: false,
		config:     taxonomy.DefaultCacheConfig(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

func (c *RedisOptionCache) cacheKey(key string) string {
	return redisKeyPrefix + key
}

// Get returns the cached options for key, or (nil, nil) on a miss.
func (c *RedisOptionCache) Get(ctx context.Context, key string) ([]taxonomy.SelectorOption, error) {
	data, err := c.client.Get(ctx, c.cacheKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get selector options from cache: %w", err)
	}

	options := make([]taxonomy.SelectorOption, 0)
	if err := json.Unmarshal(data, &options); err != nil {
		c.logger.Error("failed to unmarshal cached selector options",
			zap.String("key", key),
			zap.Error(err))
		// Drop the corrupted entry so the next read repopulates it
		_ = c.client.Del(ctx, c.cacheKey(key))
		return nil, fmt.Errorf("failed to unmarshal cached selector options: %w", err)
	}
	return options, nil
}

// Set stores options under key. A zero ttl uses the configured L2 TTL.
func (c *RedisOptionCache) Set(ctx context.Context, key string, options []taxonomy.SelectorOption, ttl time.Duration) error {
	if options == nil {
		options = []taxonomy.SelectorOption{}
	}
	if ttl == 0 {
		ttl = c.config.L2TTL
	}

	data, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to marshal selector options: %w", err)
	}
	if err := c.client.Set(ctx, c.cacheKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set selector options in cache: %w", err)
	}
	return nil
}

// Invalidate removes one entry.
func (c *RedisOptionCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete selector options from cache: %w", err)
	}
	return nil
}

// InvalidateAll removes every taxonomy entry. SCAN keeps Redis responsive
// where KEYS would block.
func (c *RedisOptionCache) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	var deleted int64

	for {
		keys, next, err := c.client.Scan(ctx, cursor, redisKeyPrefix+"*", defaultScanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Info("invalidated taxonomy cache", zap.Int64("deleted_count", deleted))
	return nil
}

// Close releases the client when this cache owns it.
func (c *RedisOptionCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (c *RedisOptionCache) GetClient() *redis.Client {
	return c.client
}

// Ping verifies the Redis connection is alive.
func (c *RedisOptionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Ensure RedisOptionCache implements OptionCache
var _ taxonomy.OptionCache = (*RedisOptionCache)(nil)

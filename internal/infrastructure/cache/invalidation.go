package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/infrastructure/config"
)

const defaultCloseTimeout = 5 * time.Second

// RedisCacheInvalidator implements CacheInvalidator using Redis Pub/Sub. It
// lets every instance drop stale local-tier entries when one instance
// refreshes the selector tree.
type RedisCacheInvalidator struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	logger     *zap.Logger
	cancelFn   context.CancelFunc
	doneCh     chan struct{}
	doneOnce   sync.Once
	mu         sync.Mutex
	isRunning  bool
}

// RedisCacheInvalidatorOption is a functional option for configuring the invalidator
type RedisCacheInvalidatorOption func(*RedisCacheInvalidator)

// WithInvalidatorChannel sets the Pub/Sub channel name
func WithInvalidatorChannel(channel string) RedisCacheInvalidatorOption {
	return func(i *RedisCacheInvalidator) {
		i.channel = channel
	}
}

// WithInvalidatorLogger sets the logger for the invalidator
func WithInvalidatorLogger(logger *zap.Logger) RedisCacheInvalidatorOption {
	return func(i *RedisCacheInvalidator) {
		i.logger = logger
	}
}

// NewRedisCacheInvalidator creates a new Redis Pub/Sub cache invalidator
func NewRedisCacheInvalidator(cfg config.RedisConfig, opts ...RedisCacheInvalidatorOption) (*RedisCacheInvalidator, error) {
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

	invalidator := &RedisCacheInvalidator{
		client:     client,
		ownsClient: true,
		channel:    taxonomy.DefaultCacheConfig().PubSubChannel,
		logger:     zap.NewNop(),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(invalidator)
	}
	return invalidator, nil
}

// NewRedisCacheInvalidatorWithClient creates an invalidator with an existing
// Redis client. The caller retains ownership of the client and is responsible
// for closing it.
func NewRedisCacheInvalidatorWithClient(client *redis.Client, opts ...RedisCacheInvalidatorOption) *RedisCacheInvalidator {
	invalidator := &RedisCacheInvalidator{
		client:     client,
		ownsClient: false,
		channel:    taxonomy.DefaultCacheConfig().PubSubChannel,
		logger:     zap.NewNop(),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(invalidator)
	}
	return invalidator
}

// Publish sends a cache update notification to all subscribers
func (i *RedisCacheInvalidator) Publish(ctx context.Context, msg taxonomy.CacheUpdateMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixNano()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		i.logger.Error("Failed to marshal cache update message",
			zap.String("key", msg.Key),
			zap.Error(err))
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		i.logger.Error("Failed to publish cache update message",
			zap.String("channel", i.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	i.logger.Debug("Published cache update message",
		zap.String("key", msg.Key),
		zap.String("channel", i.channel))
	return nil
}

// PublishKeyInvalidation publishes an invalidation for a single cache key
func (i *RedisCacheInvalidator) PublishKeyInvalidation(ctx context.Context, key string) error {
	return i.Publish(ctx, taxonomy.CacheUpdateMessage{Key: key})
}

// PublishInvalidateAll publishes an invalidate-all notification
func (i *RedisCacheInvalidator) PublishInvalidateAll(ctx context.Context) error {
	return i.Publish(ctx, taxonomy.CacheUpdateMessage{})
}

// Subscribe starts listening for cache update notifications. The callback is
// invoked for each received message. This method blocks, so call it in a
// goroutine.
func (i *RedisCacheInvalidator) Subscribe(ctx context.Context, callback func(msg taxonomy.CacheUpdateMessage)) error {
	i.mu.Lock()
	if i.isRunning {
		i.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	i.isRunning = true
	i.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	i.mu.Lock()
	i.cancelFn = cancel
	i.mu.Unlock()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(subCtx); err != nil {
		i.mu.Lock()
		i.isRunning = false
		i.mu.Unlock()
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	i.logger.Info("Subscribed to cache invalidation channel",
		zap.String("channel", i.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			i.logger.Info("Cache invalidation subscription stopped")
			i.mu.Lock()
			i.isRunning = false
			i.mu.Unlock()
			i.markDone()
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("Cache invalidation channel closed")
				i.mu.Lock()
				i.isRunning = false
				i.mu.Unlock()
				i.markDone()
				return nil
			}

			var updateMsg taxonomy.CacheUpdateMessage
			if err := json.Unmarshal([]byte(msg.Payload), &updateMsg); err != nil {
				i.logger.Error("Failed to unmarshal cache update message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}

			i.logger.Debug("Received cache update message",
				zap.String("key", updateMsg.Key))

			// Run the callback in its own goroutine so a slow handler
			// cannot stall the subscription
			go func(m taxonomy.CacheUpdateMessage) {
				defer func() {
					if r := recover(); r != nil {
						i.logger.Error("Panic in cache update callback",
							zap.Any("panic", r))
					}
				}()
				callback(m)
			}(updateMsg)
		}
	}
}

func (i *RedisCacheInvalidator) markDone() {
	i.doneOnce.Do(func() {
		close(i.doneCh)
	})
}

// Close releases any resources held by the invalidator
func (i *RedisCacheInvalidator) Close() error {
	i.mu.Lock()
	cancelFn := i.cancelFn
	i.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-i.doneCh:
		case <-time.After(defaultCloseTimeout):
			i.logger.Warn("Timeout waiting for subscription to stop")
		}
	}

	if i.ownsClient {
		return i.client.Close()
	}
	return nil
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (i *RedisCacheInvalidator) GetClient() *redis.Client {
	return i.client
}

// Ensure RedisCacheInvalidator implements CacheInvalidator
var _ taxonomy.CacheInvalidator = (*RedisCacheInvalidator)(nil)

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardstash/backend/internal/domain/taxonomy"
)

func newTestOptions(t *testing.T, values ...string) []taxonomy.SelectorOption {
	t.Helper()
	options := make([]taxonomy.SelectorOption, 0, len(values))
	for _, v := range values {
		node, err := taxonomy.NewSelectorOption(taxonomy.LevelSport, v, nil)
		require.NoError(t, err)
		options = append(options, *node)
	}
	return options
}

func TestMemoryOptionCache_GetSet(t *testing.T) {
	cache := NewMemoryOptionCache()
	defer cache.Close()

	ctx := context.Background()
	key := taxonomy.OptionCacheKey(taxonomy.LevelSport, nil)

	// Cache miss returns (nil, nil)
	options, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, options)

	stored := newTestOptions(t, "Baseball", "Football")
	require.NoError(t, cache.Set(ctx, key, stored, 5*time.Second))

	options, err = cache.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "Baseball", options[0].Value)
	assert.Equal(t, "Football", options[1].Value)
}

func TestMemoryOptionCache_CachedEmptyIsAHit(t *testing.T) {
	cache := NewMemoryOptionCache()
	defer cache.Close()

	ctx := context.Background()
	key := "selector:insert:sport=hockey"

	// A nil slice is stored as an empty list so later reads see a hit,
	// not a miss
	require.NoError(t, cache.Set(ctx, key, nil, 5*time.Second))

	options, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, options)
	assert.Empty(t, options)
}

func TestMemoryOptionCache_Expiry(t *testing.T) {
	cache := NewMemoryOptionCache()
	defer cache.Close()

	ctx := context.Background()
	key := "selector:sport"

	require.NoError(t, cache.Set(ctx, key, newTestOptions(t, "Baseball"), 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)

	options, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, options)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryOptionCache_DefensiveCopies(t *testing.T) {
	cache := NewMemoryOptionCache()
	defer cache.Close()

	ctx := context.Background()
	key := "selector:sport"

	stored := newTestOptions(t, "Baseball")
	require.NoError(t, cache.Set(ctx, key, stored, 5*time.Second))

	// Mutating what the caller handed in must not change the cached copy
	stored[0].Value = "mutated"

	options, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "Baseball", options[0].Value)

	// Mutating what Get returned must not change the cached copy either
	options[0].Value = "also mutated"

	again, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "Baseball", again[0].Value)
}

func TestMemoryOptionCache_BoundedSize(t *testing.T) {
	cfg := taxonomy.DefaultCacheConfig()
	cfg.L1MaxSize = 3
	cache := NewMemoryOptionCache(WithMemoryConfig(cfg))
	defer cache.Close()

	ctx := context.Background()
	options := newTestOptions(t, "Baseball")

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("selector:sport:%d", i)
		require.NoError(t, cache.Set(ctx, key, options, 5*time.Second))
	}

	assert.Equal(t, 3, cache.Len())
}

func TestMemoryOptionCache_EvictsClosestToExpiry(t *testing.T) {
	cfg := taxonomy.DefaultCacheConfig()
	cfg.L1MaxSize = 2
	cache := NewMemoryOptionCache(WithMemoryConfig(cfg))
	defer cache.Close()

	ctx := context.Background()
	options := newTestOptions(t, "Baseball")

	require.NoError(t, cache.Set(ctx, "short", options, 1*time.Minute))
	require.NoError(t, cache.Set(ctx, "long", options, 1*time.Hour))
	require.NoError(t, cache.Set(ctx, "new", options, 1*time.Hour))

	// The entry closest to expiry made way for the new one
	got, err := cache.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = cache.Get(ctx, "long")
	require.NoError(t, err)
	assert.NotNil(t, got)
	got, err = cache.Get(ctx, "new")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMemoryOptionCache_Invalidate(t *testing.T) {
	cache := NewMemoryOptionCache()
	defer cache.Close()

	ctx := context.Background()
	options := newTestOptions(t, "Baseball")

	require.NoError(t, cache.Set(ctx, "a", options, 5*time.Second))
	require.NoError(t, cache.Set(ctx, "b", options, 5*time.Second))

	require.NoError(t, cache.Invalidate(ctx, "a"))
	got, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = cache.Get(ctx, "b")
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, cache.InvalidateAll(ctx))
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryOptionCache_Stats(t *testing.T) {
	cache := NewMemoryOptionCache()
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "a", newTestOptions(t, "Baseball"), 5*time.Second))

	_, _ = cache.Get(ctx, "a")
	_, _ = cache.Get(ctx, "a")
	_, _ = cache.Get(ctx, "missing")

	hits, misses := cache.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestMemoryOptionCache_CloseIsIdempotent(t *testing.T) {
	cache := NewMemoryOptionCache()
	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close())
}

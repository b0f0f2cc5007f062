package secretstore

import (
	"context"
	"testing"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/vault"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	cred, err := vault.NewCredential(userID, marketplace.PlatformEbay, "collector", "hunter2")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, userID, marketplace.PlatformEbay, cred))

	got, err := store.Get(ctx, userID, marketplace.PlatformEbay)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "collector", got.Username)
	assert.Equal(t, "hunter2", got.Password)
	assert.Equal(t, marketplace.PlatformEbay, got.Site)
}

func TestMemoryStore_GetAbsent(t *testing.T) {
	store := NewMemoryStore()

	got, err := store.Get(context.Background(), uuid.New(), marketplace.PlatformSportlots)
	require.NoError(t, err)
	assert.Nil(t, got, "absence is (nil, nil), not an error")
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	cred, err := vault.NewCredential(userID, marketplace.PlatformMySlabs, "collector", "hunter2")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, userID, marketplace.PlatformMySlabs, cred))

	require.NoError(t, store.Delete(ctx, userID, marketplace.PlatformMySlabs))

	got, err := store.Get(ctx, userID, marketplace.PlatformMySlabs)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Second delete of the same key is a no-op
	assert.NoError(t, store.Delete(ctx, userID, marketplace.PlatformMySlabs))
}

func TestMemoryStore_List(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()
	otherID := uuid.New()

	for _, site := range []marketplace.Platform{marketplace.PlatformSportlots, marketplace.PlatformEbay} {
		cred, err := vault.NewCredential(userID, site, "collector", "hunter2")
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, userID, site, cred))
	}
	otherCred, err := vault.NewCredential(otherID, marketplace.PlatformMyCardPost, "someone", "else")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, otherID, marketplace.PlatformMyCardPost, otherCred))

	sites, err := store.List(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []marketplace.Platform{marketplace.PlatformEbay, marketplace.PlatformSportlots}, sites)
}

func TestMemoryStore_PutOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	first, err := vault.NewCredential(userID, marketplace.PlatformBuySportsCards, "collector", "old-pass")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, userID, marketplace.PlatformBuySportsCards, first))

	second, err := vault.NewCredential(userID, marketplace.PlatformBuySportsCards, "collector", "new-pass")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, userID, marketplace.PlatformBuySportsCards, second))

	got, err := store.Get(ctx, userID, marketplace.PlatformBuySportsCards)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new-pass", got.Password)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	cred, err := vault.NewCredential(userID, marketplace.PlatformEbay, "collector", "hunter2")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, userID, marketplace.PlatformEbay, cred))

	got, err := store.Get(ctx, userID, marketplace.PlatformEbay)
	require.NoError(t, err)
	got.Password = "mutated"

	again, err := store.Get(ctx, userID, marketplace.PlatformEbay)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", again.Password, "mutating a returned credential must not affect the store")
}

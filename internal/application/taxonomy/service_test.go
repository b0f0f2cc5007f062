package taxonomy

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/shared"
	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/infrastructure/cache"
)

// memoryRepository is an arena-backed in-memory Repository for service tests.
type memoryRepository struct {
	mu          sync.Mutex
	nodes       map[uuid.UUID]*taxonomy.SelectorOption
	findCalls   int
	replaceArgs []taxonomy.SelectorLevel
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{nodes: make(map[uuid.UUID]*taxonomy.SelectorOption)}
}

func (r *memoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*taxonomy.SelectorOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *node
	return &copied, nil
}

func (r *memoryRepository) FindChildren(ctx context.Context, parentID *uuid.UUID, level taxonomy.SelectorLevel) ([]taxonomy.SelectorOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++

	out := make([]taxonomy.SelectorOption, 0)
	for _, node := range r.nodes {
		if node.Level == level && sameParent(node.ParentID, parentID) {
			out = append(out, *node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MergeKey < out[j].MergeKey })
	return out, nil
}

func (r *memoryRepository) FindChildByKey(ctx context.Context, parentID *uuid.UUID, level taxonomy.SelectorLevel, mergeKey string) (*taxonomy.SelectorOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, node := range r.nodes {
		if node.Level == level && node.MergeKey == mergeKey && sameParent(node.ParentID, parentID) {
			copied := *node
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepository) ReplaceChildren(ctx context.Context, parentID *uuid.UUID, level taxonomy.SelectorLevel, nodes []taxonomy.SelectorOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaceArgs = append(r.replaceArgs, level)

	for id, node := range r.nodes {
		if node.Level == level && sameParent(node.ParentID, parentID) {
			delete(r.nodes, id)
		}
	}
	for i := range nodes {
		copied := nodes[i]
		r.nodes[copied.ID] = &copied
	}
	return nil
}

func (r *memoryRepository) Save(ctx context.Context, node *taxonomy.SelectorOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *node
	r.nodes[copied.ID] = &copied
	return nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// stubProvider reports a fixed vocabulary for every level.
type stubProvider struct {
	platform marketplace.Platform
	options  []taxonomy.ProviderOption
	err      error
}

func (p *stubProvider) Platform() marketplace.Platform { return p.platform }

func (p *stubProvider) ListOptions(ctx context.Context, level taxonomy.SelectorLevel, parents taxonomy.ParentFilters) ([]taxonomy.ProviderOption, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.options, nil
}

type providerList []taxonomy.Provider

func (l providerList) Providers() []taxonomy.Provider { return l }

func newTestService(t *testing.T, repo taxonomy.Repository, providers ProviderSource) (*Service, taxonomy.OptionCache) {
	t.Helper()
	optionCache := cache.NewMemoryOptionCache()
	t.Cleanup(func() { _ = optionCache.Close() })
	return NewService(repo, optionCache, providers, zap.NewNop()), optionCache
}

func TestService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("merges values case-insensitively with first-seen casing canonical", func(t *testing.T) {
		repo := newMemoryRepository()
		providers := providerList{
			&stubProvider{
				platform: marketplace.PlatformEbay,
				options: []taxonomy.ProviderOption{
					{Value: "Baseball"},
					{Value: "Hockey"},
				},
			},
			&stubProvider{
				platform: marketplace.PlatformBuySportsCards,
				options: []taxonomy.ProviderOption{
					{Value: "baseball", NativeCodes: []string{"bb-01"}},
					{Value: "Football", NativeCodes: []string{"fb-01"}},
				},
			},
		}
		svc, _ := newTestService(t, repo, providers)

		nodes, err := svc.Refresh(ctx, taxonomy.LevelSport, nil)
		require.NoError(t, err)
		require.Len(t, nodes, 3)

		byKey := make(map[string]taxonomy.SelectorOption)
		for _, n := range nodes {
			byKey[n.MergeKey] = n
		}

		// eBay reported "Baseball" first, so its casing is canonical
		baseball := byKey["baseball"]
		assert.Equal(t, "Baseball", baseball.Value)
		// Both platforms contributed: eBay keys by value, BSC by slug
		assert.Equal(t, []string{"Baseball"}, baseball.PlatformData[marketplace.PlatformEbay])
		assert.Equal(t, []string{"bb-01"}, baseball.PlatformData[marketplace.PlatformBuySportsCards])

		assert.Equal(t, "Football", byKey["football"].Value)
		assert.Equal(t, "Hockey", byKey["hockey"].Value)
	})

	t.Run("refresh is idempotent", func(t *testing.T) {
		repo := newMemoryRepository()
		providers := providerList{
			&stubProvider{
				platform: marketplace.PlatformEbay,
				options:  []taxonomy.ProviderOption{{Value: "Baseball"}, {Value: "Football"}},
			},
		}
		svc, _ := newTestService(t, repo, providers)

		first, err := svc.Refresh(ctx, taxonomy.LevelSport, nil)
		require.NoError(t, err)
		second, err := svc.Refresh(ctx, taxonomy.LevelSport, nil)
		require.NoError(t, err)

		require.Len(t, second, len(first))
		// Re-aggregation overwrote rather than appended
		stored, err := repo.FindChildren(ctx, nil, taxonomy.LevelSport)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("provider failure degrades to no contribution", func(t *testing.T) {
		repo := newMemoryRepository()
		providers := providerList{
			&stubProvider{
				platform: marketplace.PlatformEbay,
				options:  []taxonomy.ProviderOption{{Value: "Baseball"}},
			},
			&stubProvider{
				platform: marketplace.PlatformBuySportsCards,
				err:      marketplace.ErrUpstreamUnavailable,
			},
		}
		svc, _ := newTestService(t, repo, providers)

		nodes, err := svc.Refresh(ctx, taxonomy.LevelSport, nil)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.NotContains(t, nodes[0].PlatformData, marketplace.PlatformBuySportsCards)
	})

	t.Run("total provider failure keeps stored children", func(t *testing.T) {
		repo := newMemoryRepository()
		provider := &stubProvider{
			platform: marketplace.PlatformEbay,
			options:  []taxonomy.ProviderOption{{Value: "Baseball"}, {Value: "Hockey"}},
		}
		svc, _ := newTestService(t, repo, providerList{provider})

		first, err := svc.Refresh(ctx, taxonomy.LevelSport, nil)
		require.NoError(t, err)
		require.Len(t, first, 2)

		// Every provider down is an outage, not an empty vocabulary
		provider.err = marketplace.ErrUpstreamUnavailable
		_, err = svc.Refresh(ctx, taxonomy.LevelSport, nil)
		require.ErrorIs(t, err, marketplace.ErrUpstreamUnavailable)

		stored, err := repo.FindChildren(ctx, nil, taxonomy.LevelSport)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("refreshes a child level under the resolved parent", func(t *testing.T) {
		repo := newMemoryRepository()
		providers := providerList{
			&stubProvider{
				platform: marketplace.PlatformEbay,
				options:  []taxonomy.ProviderOption{{Value: "Baseball"}},
			},
		}
		svc, _ := newTestService(t, repo, providers)

		sports, err := svc.Refresh(ctx, taxonomy.LevelSport, nil)
		require.NoError(t, err)
		require.Len(t, sports, 1)

		years, err := svc.Refresh(ctx, taxonomy.LevelYear,
			taxonomy.ParentFilters{taxonomy.LevelSport: "baseball"})
		require.NoError(t, err)
		require.Len(t, years, 1)
		require.NotNil(t, years[0].ParentID)
		assert.Equal(t, sports[0].ID, *years[0].ParentID)

		// The parent's denormalized child ids were rewritten
		parent, err := repo.FindByID(ctx, sports[0].ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{years[0].ID}, parent.ChildIDs)
	})

	t.Run("unknown ancestor path", func(t *testing.T) {
		repo := newMemoryRepository()
		svc, _ := newTestService(t, repo, providerList{})

		_, err := svc.Refresh(ctx, taxonomy.LevelYear,
			taxonomy.ParentFilters{taxonomy.LevelSport: "cricket"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("invalid level", func(t *testing.T) {
		svc, _ := newTestService(t, newMemoryRepository(), providerList{})
		_, err := svc.Refresh(ctx, taxonomy.SelectorLevel("brand"), nil)
		assert.ErrorIs(t, err, taxonomy.ErrInvalidLevel)
	})
}

func TestService_Options(t *testing.T) {
	ctx := context.Background()

	t.Run("reads through the cache", func(t *testing.T) {
		repo := newMemoryRepository()
		providers := providerList{
			&stubProvider{
				platform: marketplace.PlatformEbay,
				options:  []taxonomy.ProviderOption{{Value: "Baseball"}},
			},
		}
		svc, _ := newTestService(t, repo, providers)

		_, err := svc.Refresh(ctx, taxonomy.LevelSport, nil)
		require.NoError(t, err)
		callsAfterRefresh := repo.findCalls

		first, err := svc.Options(ctx, taxonomy.LevelSport, nil)
		require.NoError(t, err)
		require.Len(t, first, 1)

		second, err := svc.Options(ctx, taxonomy.LevelSport, nil)
		require.NoError(t, err)
		require.Len(t, second, 1)

		// Refresh primed the cache, so neither read touched the repository
		assert.Equal(t, callsAfterRefresh, repo.findCalls)
	})

	t.Run("cache miss falls back to the repository and populates the cache", func(t *testing.T) {
		repo := newMemoryRepository()
		node, err := taxonomy.NewSelectorOption(taxonomy.LevelSport, "Baseball", nil)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, node))

		svc, optionCache := newTestService(t, repo, providerList{})

		options, err := svc.Options(ctx, taxonomy.LevelSport, nil)
		require.NoError(t, err)
		require.Len(t, options, 1)
		assert.Equal(t, 1, repo.findCalls)

		cached, err := optionCache.Get(ctx, taxonomy.OptionCacheKey(taxonomy.LevelSport, nil))
		require.NoError(t, err)
		assert.Len(t, cached, 1)
	})

	t.Run("unknown branch returns empty, not an error", func(t *testing.T) {
		svc, _ := newTestService(t, newMemoryRepository(), providerList{})

		options, err := svc.Options(ctx, taxonomy.LevelYear,
			taxonomy.ParentFilters{taxonomy.LevelSport: "cricket"})
		require.NoError(t, err)
		require.NotNil(t, options)
		assert.Empty(t, options)
	})

	t.Run("incomplete filters", func(t *testing.T) {
		svc, _ := newTestService(t, newMemoryRepository(), providerList{})

		_, err := svc.Options(ctx, taxonomy.LevelManufacturer,
			taxonomy.ParentFilters{taxonomy.LevelSport: "baseball"})
		assert.ErrorIs(t, err, ErrIncompleteFilters)
	})

	t.Run("invalid level", func(t *testing.T) {
		svc, _ := newTestService(t, newMemoryRepository(), providerList{})
		_, err := svc.Options(ctx, taxonomy.SelectorLevel(""), nil)
		assert.ErrorIs(t, err, taxonomy.ErrInvalidLevel)
	})
}

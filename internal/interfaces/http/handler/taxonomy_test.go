package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	taxonomyapp "github.com/cardstash/backend/internal/application/taxonomy"
	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/shared"
	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/infrastructure/cache"
	"github.com/cardstash/backend/internal/interfaces/http/dto"
)

// fakeTaxonomyRepo is a map-backed taxonomy.Repository for handler tests.
type fakeTaxonomyRepo struct {
	mu    sync.Mutex
	nodes map[uuid.UUID]taxonomy.SelectorOption
}

func newFakeTaxonomyRepo() *fakeTaxonomyRepo {
	return &fakeTaxonomyRepo{nodes: make(map[uuid.UUID]taxonomy.SelectorOption)}
}

func (r *fakeTaxonomyRepo) FindByID(ctx context.Context, id uuid.UUID) (*taxonomy.SelectorOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &node, nil
}

func (r *fakeTaxonomyRepo) FindChildren(ctx context.Context, parentID *uuid.UUID, level taxonomy.SelectorLevel) ([]taxonomy.SelectorOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var children []taxonomy.SelectorOption
	for _, node := range r.nodes {
		if node.Level == level && sameParentID(node.ParentID, parentID) {
			children = append(children, node)
		}
	}
	return children, nil
}

func (r *fakeTaxonomyRepo) FindChildByKey(ctx context.Context, parentID *uuid.UUID, level taxonomy.SelectorLevel, mergeKey string) (*taxonomy.SelectorOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, node := range r.nodes {
		if node.Level == level && sameParentID(node.ParentID, parentID) && node.MergeKey == mergeKey {
			out := node
			return &out, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeTaxonomyRepo) ReplaceChildren(ctx context.Context, parentID *uuid.UUID, level taxonomy.SelectorLevel, nodes []taxonomy.SelectorOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, node := range r.nodes {
		if node.Level == level && sameParentID(node.ParentID, parentID) {
			delete(r.nodes, id)
		}
	}
	for _, node := range nodes {
		r.nodes[node.ID] = node
	}
	return nil
}

func (r *fakeTaxonomyRepo) Save(ctx context.Context, node *taxonomy.SelectorOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[node.ID] = *node
	return nil
}

func sameParentID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type fixedProvider struct {
	platform marketplace.Platform
	options  []taxonomy.ProviderOption
}

func (p *fixedProvider) Platform() marketplace.Platform { return p.platform }

func (p *fixedProvider) ListOptions(ctx context.Context, level taxonomy.SelectorLevel, parents taxonomy.ParentFilters) ([]taxonomy.ProviderOption, error) {
	return p.options, nil
}

type fixedProviderSource []taxonomy.Provider

func (s fixedProviderSource) Providers() []taxonomy.Provider { return s }

func newTaxonomyTestHandler(repo taxonomy.Repository, providers ...taxonomy.Provider) *TaxonomyHandler {
	service := taxonomyapp.NewService(repo, cache.NewMemoryOptionCache(), fixedProviderSource(providers), zap.NewNop())
	return NewTaxonomyHandler(service)
}

func seedSport(t *testing.T, repo *fakeTaxonomyRepo, value string) taxonomy.SelectorOption {
	t.Helper()
	node, err := taxonomy.NewSelectorOption(taxonomy.LevelSport, value, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), node))
	return *node
}

func TestTaxonomyHandler_Options(t *testing.T) {
	userID := uuid.New()

	t.Run("lists sport-level options", func(t *testing.T) {
		repo := newFakeTaxonomyRepo()
		seedSport(t, repo, "Baseball")
		seedSport(t, repo, "Basketball")
		engine := newTestEngine(userID, newTaxonomyTestHandler(repo))

		w := doRequest(engine, http.MethodGet, "/api/v1/taxonomy/options/sport")

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data dto.SelectorOptionsResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "sport", resp.Data.Level)
		assert.Len(t, resp.Data.Options, 2)
	})

	t.Run("unknown branch renders an empty list, not null", func(t *testing.T) {
		repo := newFakeTaxonomyRepo()
		engine := newTestEngine(userID, newTaxonomyTestHandler(repo))

		w := doRequest(engine, http.MethodGet, "/api/v1/taxonomy/options/year?sport=Cricket")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"options":[]`)
	})

	t.Run("missing ancestor filter is a 400", func(t *testing.T) {
		repo := newFakeTaxonomyRepo()
		engine := newTestEngine(userID, newTaxonomyTestHandler(repo))

		w := doRequest(engine, http.MethodGet, "/api/v1/taxonomy/options/year")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown level is a 400", func(t *testing.T) {
		repo := newFakeTaxonomyRepo()
		engine := newTestEngine(userID, newTaxonomyTestHandler(repo))

		w := doRequest(engine, http.MethodGet, "/api/v1/taxonomy/options/brand")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTaxonomyHandler_Refresh(t *testing.T) {
	userID := uuid.New()

	t.Run("re-aggregates a level from registered providers", func(t *testing.T) {
		repo := newFakeTaxonomyRepo()
		engine := newTestEngine(userID, newTaxonomyTestHandler(repo,
			&fixedProvider{
				platform: marketplace.PlatformEbay,
				options:  []taxonomy.ProviderOption{{Value: "Baseball", NativeCodes: []string{"261328"}}},
			},
			&fixedProvider{
				platform: marketplace.PlatformBuySportsCards,
				options:  []taxonomy.ProviderOption{{Value: "baseball"}},
			},
		))

		w := postJSON(t, engine, "/api/v1/taxonomy/refresh", RefreshRequest{Level: "sport"})

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data dto.SelectorOptionsResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data.Options, 1)
		assert.Equal(t, "Baseball", resp.Data.Options[0].Value)
		assert.Equal(t, []string{"261328"}, resp.Data.Options[0].PlatformData["ebay"])
	})

	t.Run("refresh under an unknown ancestor is a 404", func(t *testing.T) {
		repo := newFakeTaxonomyRepo()
		engine := newTestEngine(userID, newTaxonomyTestHandler(repo))

		w := postJSON(t, engine, "/api/v1/taxonomy/refresh", RefreshRequest{
			Level:   "year",
			Filters: map[string]string{"sport": "Cricket"},
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing level is a 400", func(t *testing.T) {
		repo := newFakeTaxonomyRepo()
		engine := newTestEngine(userID, newTaxonomyTestHandler(repo))

		w := postJSON(t, engine, "/api/v1/taxonomy/refresh", RefreshRequest{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/application/search"
	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/infrastructure/platforms"
	"github.com/cardstash/backend/internal/interfaces/http/dto"
	"github.com/cardstash/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type routeRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// newTestEngine mounts a handler under /api/v1 with an injected caller
// identity, mirroring what the JWT middleware does in production.
func newTestEngine(userID uuid.UUID, registrar routeRegistrar) *gin.Engine {
	engine := gin.New()
	api := engine.Group("/api/v1")
	if userID != uuid.Nil {
		api.Use(func(c *gin.Context) {
			c.Set(middleware.JWTUserIDKey, userID.String())
			c.Next()
		})
	}
	registrar.RegisterRoutes(api)
	return engine
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return postJSONMethod(t, engine, http.MethodPost, path, body)
}

func postJSONMethod(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

type fixedCardAdapter struct {
	platform marketplace.Platform
	result   *marketplace.CardSearchResult
	err      error
}

func (a *fixedCardAdapter) Platform() marketplace.Platform { return a.platform }

func (a *fixedCardAdapter) SearchCards(ctx context.Context, userID uuid.UUID, params marketplace.CardSearchParams) (*marketplace.CardSearchResult, error) {
	return a.result, a.err
}

func newSearchTestHandler(adapters ...marketplace.CardAdapter) *SearchHandler {
	registry := platforms.NewRegistry()
	for _, adapter := range adapters {
		registry.RegisterCard(adapter)
	}
	return NewSearchHandler(search.NewAggregatorService(registry, zap.NewNop()))
}

func TestSearchHandler_SearchCards(t *testing.T) {
	userID := uuid.New()

	t.Run("returns aggregated listings", func(t *testing.T) {
		handler := newSearchTestHandler(&fixedCardAdapter{
			platform: marketplace.PlatformEbay,
			result: &marketplace.CardSearchResult{
				Listings: []marketplace.CardListing{{
					ID:         "item-1",
					Title:      "2024 Topps Chrome Elly De La Cruz",
					Price:      decimal.NewFromInt(25),
					Currency:   "USD",
					ListingURL: "https://ebay.example/item-1",
					Platform:   marketplace.PlatformEbay,
				}},
				TotalCount: 7,
				Platform:   marketplace.PlatformEbay,
			},
		})
		engine := newTestEngine(userID, handler)

		w := postJSON(t, engine, "/api/v1/search/cards", dto.CardSearchRequest{
			Query:     "Elly De La Cruz",
			Platforms: []string{"ebay"},
		})

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success bool                   `json:"success"`
			Data    dto.CardSearchResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 7, resp.Data.TotalResults)
		require.Len(t, resp.Data.Results, 1)
		assert.Equal(t, "ebay", resp.Data.Results[0].Platform)
		require.Len(t, resp.Data.Results[0].Listings, 1)
		assert.Equal(t, "25", resp.Data.Results[0].Listings[0].Price)
	})

	t.Run("failed platform degrades to an empty contribution", func(t *testing.T) {
		handler := newSearchTestHandler(&fixedCardAdapter{
			platform: marketplace.PlatformEbay,
			err:      marketplace.ErrUpstreamUnavailable,
		})
		engine := newTestEngine(userID, handler)

		w := postJSON(t, engine, "/api/v1/search/cards", dto.CardSearchRequest{
			Query:     "Jordan",
			Platforms: []string{"ebay"},
		})

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data dto.CardSearchResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data.Results, 1)
		assert.Empty(t, resp.Data.Results[0].Listings)
		assert.Zero(t, resp.Data.TotalResults)
	})

	t.Run("underconstrained search is a 400", func(t *testing.T) {
		engine := newTestEngine(userID, newSearchTestHandler())

		w := postJSON(t, engine, "/api/v1/search/cards", dto.CardSearchRequest{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unparseable price is a 400", func(t *testing.T) {
		engine := newTestEngine(userID, newSearchTestHandler())
		badPrice := "ten dollars"

		w := postJSON(t, engine, "/api/v1/search/cards", dto.CardSearchRequest{
			Query:    "Jordan",
			MinPrice: &badPrice,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing identity is a 401", func(t *testing.T) {
		engine := newTestEngine(uuid.Nil, newSearchTestHandler())

		w := postJSON(t, engine, "/api/v1/search/cards", dto.CardSearchRequest{Query: "Jordan"})

		require.Equal(t, http.StatusUnauthorized, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
	})

	t.Run("malformed JSON is a 400", func(t *testing.T) {
		engine := newTestEngine(userID, newSearchTestHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/search/cards", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

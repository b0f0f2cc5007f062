package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/domain/vault"
	"github.com/cardstash/backend/internal/infrastructure/config"
	"github.com/cardstash/backend/internal/infrastructure/secretstore"
)

func bscTestConfig(baseURL string) config.BSCConfig {
	return config.BSCConfig{
		BaseURL: baseURL,
		Origin:  "https://www.buysportscards.com",
	}
}

func TestNewBSCAdapter(t *testing.T) {
	tests := []struct {
		name    string
		config  config.BSCConfig
		wantErr error
	}{
		{
			name:   "valid config",
			config: bscTestConfig("https://api-prod.buysportscards.com"),
		},
		{
			name:    "missing base URL",
			config:  config.BSCConfig{Origin: "https://www.buysportscards.com"},
			wantErr: ErrBSCConfigMissingBaseURL,
		},
		{
			name:    "missing origin",
			config:  config.BSCConfig{BaseURL: "https://api-prod.buysportscards.com"},
			wantErr: ErrBSCConfigMissingOrigin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewBSCAdapter(tt.config, nil, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, adapter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, marketplace.PlatformBuySportsCards, adapter.Platform())
		})
	}
}

func TestBSCAdapter_SearchSets(t *testing.T) {
	userID := uuid.New()

	t.Run("successful search", func(t *testing.T) {
		var gotAuth, gotOrigin string
		var gotReq bscSearchRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotOrigin = r.Header.Get("Origin")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			json.NewEncoder(w).Encode(bscSearchResponse{
				TotalResults: 3,
				Results: []bscResult{
					{
						ID:           "set-1",
						SetName:      "2024 Topps Chrome",
						Year:         "2024",
						Sport:        "Baseball",
						Manufacturer: "Topps",
						CardCount:    220,
						Price:        "180.00",
						ShippingCost: "8.50",
						Quantity:     2,
						SellerName:   "bigleaguebreaks",
						Condition:    "NM",
						ListingURL:   "https://www.buysportscards.com/sets/set-1",
					},
					{
						ID:      "set-2",
						SetName: "Unpriced lot",
						Price:   "40.00",
					},
				},
			})
		}))
		defer server.Close()

		store := storedCredential(t, userID, marketplace.PlatformBuySportsCards, &vault.Credential{
			Site:   marketplace.PlatformBuySportsCards,
			UserID: userID,
			Token:  "bsc-token",
		})
		adapter, err := NewBSCAdapter(bscTestConfig(server.URL), store, nil)
		require.NoError(t, err)

		sport := "Baseball"
		year := 2024
		result, err := adapter.SearchSets(context.Background(), userID, marketplace.SetSearchParams{
			SetName: "Topps Chrome",
			Sport:   &sport,
			Year:    &year,
		})
		require.NoError(t, err)

		assert.Equal(t, "Bearer bsc-token", gotAuth)
		assert.Equal(t, "https://www.buysportscards.com", gotOrigin)
		assert.Equal(t, "Topps Chrome", gotReq.Query)
		assert.Equal(t, []string{"Baseball"}, gotReq.Filters["sport"])
		assert.Equal(t, []string{"2024"}, gotReq.Filters["year"])

		assert.Equal(t, 3, result.TotalCount)
		require.Len(t, result.Listings, 2)

		first := result.Listings[0]
		assert.Equal(t, "set-1", first.ID)
		require.NotNil(t, first.Year)
		assert.Equal(t, 2024, *first.Year)
		require.NotNil(t, first.CardCount)
		assert.Equal(t, 220, *first.CardCount)
		require.NotNil(t, first.ShippingCost)
		assert.True(t, first.ShippingCost.Equal(decimal.NewFromFloat(8.5)))

		second := result.Listings[1]
		assert.Nil(t, second.Year)
		assert.Nil(t, second.CardCount)
		assert.Nil(t, second.ShippingCost)
	})

	t.Run("filters by price client-side", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(bscSearchResponse{
				TotalResults: 2,
				Results: []bscResult{
					{ID: "cheap", SetName: "Cheap Set", Price: "5.00"},
					{ID: "fits", SetName: "Fitting Set", Price: "50.00"},
				},
			})
		}))
		defer server.Close()

		store := storedCredential(t, userID, marketplace.PlatformBuySportsCards, &vault.Credential{
			Site:   marketplace.PlatformBuySportsCards,
			UserID: userID,
			Token:  "bsc-token",
		})
		adapter, err := NewBSCAdapter(bscTestConfig(server.URL), store, nil)
		require.NoError(t, err)

		min := decimal.NewFromInt(10)
		result, err := adapter.SearchSets(context.Background(), userID, marketplace.SetSearchParams{
			SetName:  "set",
			MinPrice: &min,
		})
		require.NoError(t, err)
		require.Len(t, result.Listings, 1)
		assert.Equal(t, "fits", result.Listings[0].ID)
	})

	t.Run("no stored credentials", func(t *testing.T) {
		adapter, err := NewBSCAdapter(bscTestConfig("https://api-prod.buysportscards.com"), secretstore.NewMemoryStore(), nil)
		require.NoError(t, err)

		_, err = adapter.SearchSets(context.Background(), userID, marketplace.SetSearchParams{SetName: "set"})
		assert.ErrorIs(t, err, marketplace.ErrAuthenticationRequired)
	})

	t.Run("password doubles as API key", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(bscSearchResponse{})
		}))
		defer server.Close()

		store := storedCredential(t, userID, marketplace.PlatformBuySportsCards, &vault.Credential{
			Site:     marketplace.PlatformBuySportsCards,
			UserID:   userID,
			Username: "collector",
			Password: "legacy-api-key",
		})
		adapter, err := NewBSCAdapter(bscTestConfig(server.URL), store, nil)
		require.NoError(t, err)

		_, err = adapter.SearchSets(context.Background(), userID, marketplace.SetSearchParams{SetName: "set"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer legacy-api-key", gotAuth)
	})
}

func TestBSCAdapter_ListOptions(t *testing.T) {
	t.Run("returns aggregation labels and slugs", func(t *testing.T) {
		var gotReq bscSearchRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, bscFiltersPath, r.URL.Path)
			// The vocabulary endpoint is anonymous
			assert.Empty(t, r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			json.NewEncoder(w).Encode(bscFiltersResponse{
				Aggregations: map[string][]bscAggregation{
					"manufacturer": {
						{Slug: "topps", Label: "Topps", Count: 900},
						{Slug: "panini", Label: "Panini", Count: 700},
					},
				},
			})
		}))
		defer server.Close()

		adapter, err := NewBSCAdapter(bscTestConfig(server.URL), nil, nil)
		require.NoError(t, err)

		options, err := adapter.ListOptions(context.Background(), taxonomy.LevelManufacturer, taxonomy.ParentFilters{
			taxonomy.LevelSport: "baseball",
			taxonomy.LevelYear:  "2024",
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"baseball"}, gotReq.Filters["sport"])
		assert.Equal(t, []string{"2024"}, gotReq.Filters["year"])
		require.Len(t, options, 2)
		assert.Equal(t, "Topps", options[0].Value)
		assert.Equal(t, []string{"topps"}, options[0].NativeCodes)
	})

	t.Run("empty aggregation is a success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(bscFiltersResponse{})
		}))
		defer server.Close()

		adapter, err := NewBSCAdapter(bscTestConfig(server.URL), nil, nil)
		require.NoError(t, err)

		options, err := adapter.ListOptions(context.Background(), taxonomy.LevelSport, nil)
		require.NoError(t, err)
		assert.Empty(t, options)
	})
}

func TestBSCAdapter_VerifyCredentials(t *testing.T) {
	userID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"username": "collector"})
	}))
	defer server.Close()

	t.Run("valid token", func(t *testing.T) {
		store := storedCredential(t, userID, marketplace.PlatformBuySportsCards, &vault.Credential{
			Site:   marketplace.PlatformBuySportsCards,
			UserID: userID,
			Token:  "good-token",
		})
		adapter, err := NewBSCAdapter(bscTestConfig(server.URL), store, nil)
		require.NoError(t, err)
		assert.NoError(t, adapter.VerifyCredentials(context.Background(), userID))
	})

	t.Run("rejected token", func(t *testing.T) {
		store := storedCredential(t, userID, marketplace.PlatformBuySportsCards, &vault.Credential{
			Site:   marketplace.PlatformBuySportsCards,
			UserID: userID,
			Token:  "stale-token",
		})
		adapter, err := NewBSCAdapter(bscTestConfig(server.URL), store, nil)
		require.NoError(t, err)
		err = adapter.VerifyCredentials(context.Background(), userID)
		assert.ErrorIs(t, err, marketplace.ErrAuthenticationRequired)
	})
}

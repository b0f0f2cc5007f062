package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/vault"
	"github.com/cardstash/backend/internal/infrastructure/config"
	"github.com/cardstash/backend/internal/infrastructure/secretstore"
)

func TestNewMyCardPostAdapter(t *testing.T) {
	t.Run("missing base URL", func(t *testing.T) {
		adapter, err := NewMyCardPostAdapter(config.MyCardPostConfig{}, nil, nil, nil)
		assert.ErrorIs(t, err, ErrMyCardPostConfigMissingBaseURL)
		assert.Nil(t, adapter)
	})
}

func TestMyCardPostAdapter_SearchCards(t *testing.T) {
	userID := uuid.New()

	newCredStore := func(t *testing.T) *secretstore.MemoryStore {
		return storedCredential(t, userID, marketplace.PlatformMyCardPost, &vault.Credential{
			Site:     marketplace.PlatformMyCardPost,
			UserID:   userID,
			Username: "collector",
			Password: "hunter2",
		})
	}

	t.Run("logs in and searches with session", func(t *testing.T) {
		automation := newFakeAutomation(t)

		var gotSession, gotSearch string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSession = r.Header.Get("X-Session-Token")
			gotSearch = r.URL.Query().Get("search")
			json.NewEncoder(w).Encode(mycardpostSearchResponse{
				Total: 1,
				Cards: []mycardpostCard{
					{
						ID:         "mcp-5",
						Name:       "2018 Prizm Luka Doncic RC",
						Player:     "Luka Doncic",
						Sport:      "Basketball",
						Year:       "2018",
						Condition:  "Raw",
						Price:      "65.00",
						ImageURL:   "https://mycardpost.com/img/mcp-5.jpg",
						CardURL:    "https://mycardpost.com/cards/mcp-5",
						SellerName: "dfwcards",
					},
				},
			})
		}))
		defer server.Close()

		adapter, err := NewMyCardPostAdapter(config.MyCardPostConfig{BaseURL: server.URL}, newCredStore(t), automation.client(t), nil)
		require.NoError(t, err)

		result, err := adapter.SearchCards(context.Background(), userID, marketplace.CardSearchParams{Query: "luka"})
		require.NoError(t, err)

		assert.Equal(t, "session-mycardpost", gotSession)
		assert.Equal(t, "luka", gotSearch)
		require.Len(t, result.Listings, 1)
		listing := result.Listings[0]
		assert.Equal(t, "mcp-5", listing.ID)
		require.NotNil(t, listing.PlayerName)
		assert.Equal(t, "Luka Doncic", *listing.PlayerName)
		require.NotNil(t, listing.Year)
		assert.Equal(t, 2018, *listing.Year)
	})

	t.Run("reuses cached session", func(t *testing.T) {
		automation := newFakeAutomation(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(mycardpostSearchResponse{})
		}))
		defer server.Close()

		adapter, err := NewMyCardPostAdapter(config.MyCardPostConfig{BaseURL: server.URL}, newCredStore(t), automation.client(t), nil)
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			_, err := adapter.SearchCards(context.Background(), userID, marketplace.CardSearchParams{Query: "luka"})
			require.NoError(t, err)
		}
		assert.Equal(t, int64(1), automation.logins.Load())
	})

	t.Run("no stored credentials", func(t *testing.T) {
		automation := newFakeAutomation(t)
		adapter, err := NewMyCardPostAdapter(config.MyCardPostConfig{BaseURL: "https://mycardpost.com"}, secretstore.NewMemoryStore(), automation.client(t), nil)
		require.NoError(t, err)

		_, err = adapter.SearchCards(context.Background(), userID, marketplace.CardSearchParams{Query: "luka"})
		assert.ErrorIs(t, err, marketplace.ErrAuthenticationRequired)
		assert.Equal(t, int64(0), automation.logins.Load())
	})
}

package platforms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/infrastructure/config"
)

// ErrMyCardPostConfigMissingBaseURL indicates an unset MyCardPost base URL
var ErrMyCardPostConfigMissingBaseURL = errors.New("mycardpost: base URL is required")

const (
	mycardpostSearchPath = "/api/cards"

	mycardpostDefaultLimit = 50
	mycardpostMaxLimit     = 100
)

// MyCardPostAdapter implements card search against MyCardPost. Like
// Sportlots, the site has no token API; sessions come from the browser
// automation service and are cached per user.
type MyCardPostAdapter struct {
	config     config.MyCardPostConfig
	httpClient *http.Client
	creds      CredentialSource
	automation *AutomationClient
	sessions   *sessionCache
	logger     *zap.Logger
}

// NewMyCardPostAdapter creates a MyCardPost adapter with the given configuration.
func NewMyCardPostAdapter(cfg config.MyCardPostConfig, creds CredentialSource, automation *AutomationClient, logger *zap.Logger) (*MyCardPostAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMyCardPostConfigMissingBaseURL
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MyCardPostAdapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		creds:      creds,
		automation: automation,
		sessions:   newSessionCache(),
		logger:     logger,
	}, nil
}

// Platform returns the marketplace this adapter speaks to.
func (a *MyCardPostAdapter) Platform() marketplace.Platform {
	return marketplace.PlatformMyCardPost
}

func (a *MyCardPostAdapter) session(ctx context.Context, userID uuid.UUID) (*Session, error) {
	if cached := a.sessions.get(userID); cached != nil {
		return cached, nil
	}
	return a.login(ctx, userID)
}

func (a *MyCardPostAdapter) login(ctx context.Context, userID uuid.UUID) (*Session, error) {
	if a.creds == nil {
		return nil, fmt.Errorf("%w: mycardpost: no credential source configured", marketplace.ErrAuthenticationRequired)
	}
	cred, err := a.creds.Get(ctx, userID, marketplace.PlatformMyCardPost)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: mycardpost: no stored credentials", marketplace.ErrAuthenticationRequired)
	}

	session, err := a.automation.Login(ctx, marketplace.PlatformMyCardPost, cred.Username, cred.Password)
	if err != nil {
		return nil, err
	}
	a.sessions.put(userID, session)
	return session, nil
}

type mycardpostSearchResponse struct {
	Cards []mycardpostCard `json:"cards"`
	Total int              `json:"total"`
}

type mycardpostCard struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Player     string `json:"player"`
	Sport      string `json:"sport"`
	Year       string `json:"year"`
	Team       string `json:"team"`
	Condition  string `json:"condition"`
	Price      string `json:"price"`
	ImageURL   string `json:"image"`
	CardURL    string `json:"url"`
	SellerName string `json:"seller"`
}

// SearchCards runs a card search with the user's automated session,
// retrying once with a fresh session when the upstream rejects the cached
// one.
func (a *MyCardPostAdapter) SearchCards(ctx context.Context, userID uuid.UUID, params marketplace.CardSearchParams) (*marketplace.CardSearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	session, err := a.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	body, err := a.search(ctx, session, params)
	if errors.Is(err, marketplace.ErrAuthenticationRequired) {
		a.sessions.invalidate(userID)
		session, err = a.login(ctx, userID)
		if err != nil {
			return nil, err
		}
		body, err = a.search(ctx, session, params)
	}
	if err != nil {
		return nil, err
	}

	var resp mycardpostSearchResponse
	if err := decodeJSON(marketplace.PlatformMyCardPost, body, &resp); err != nil {
		return nil, err
	}

	result := &marketplace.CardSearchResult{
		Listings:   make([]marketplace.CardListing, 0, len(resp.Cards)),
		TotalCount: resp.Total,
		Platform:   marketplace.PlatformMyCardPost,
	}
	for _, card := range resp.Cards {
		listing := marketplace.CardListing{
			ID:         card.ID,
			Title:      card.Name,
			PlayerName: strPtr(card.Player),
			Sport:      strPtr(card.Sport),
			Condition:  strPtr(card.Condition),
			Price:      parseDecimal(card.Price),
			Currency:   "USD",
			Seller:     strPtr(card.SellerName),
			ImageURL:   strPtr(card.ImageURL),
			ListingURL: card.CardURL,
			Platform:   marketplace.PlatformMyCardPost,
		}
		if year, err := strconv.Atoi(card.Year); err == nil {
			listing.Year = &year
		}
		if priceOutOfRange(listing.Price, params.MinPrice, params.MaxPrice) {
			continue
		}
		result.Listings = append(result.Listings, listing)
	}
	return result, nil
}

func (a *MyCardPostAdapter) search(ctx context.Context, session *Session, params marketplace.CardSearchParams) ([]byte, error) {
	values := url.Values{}
	if params.Query != "" {
		values.Set("search", params.Query)
	}
	if params.Sport != nil {
		values.Set("sport", *params.Sport)
	}
	if params.Year != nil {
		values.Set("year", strconv.Itoa(*params.Year))
	}
	values.Set("limit", strconv.Itoa(clampLimit(params.Limit, mycardpostDefaultLimit, mycardpostMaxLimit)))

	endpoint := strings.TrimSuffix(a.config.BaseURL, "/") + mycardpostSearchPath + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("mycardpost: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	session.Apply(req)
	if session.Token != "" {
		req.Header.Set("X-Session-Token", session.Token)
	}

	return doRequest(a.httpClient, req, marketplace.PlatformMyCardPost)
}

// VerifyCredentials performs a fresh automated login; MyCardPost has no
// cheaper authenticated call.
func (a *MyCardPostAdapter) VerifyCredentials(ctx context.Context, userID uuid.UUID) error {
	_, err := a.login(ctx, userID)
	return err
}

// Interface guards
var (
	_ marketplace.CardAdapter        = (*MyCardPostAdapter)(nil)
	_ marketplace.CredentialVerifier = (*MyCardPostAdapter)(nil)
)

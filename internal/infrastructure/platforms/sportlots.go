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

// ErrSportlotsConfigMissingBaseURL indicates an unset Sportlots base URL
var ErrSportlotsConfigMissingBaseURL = errors.New("sportlots: base URL is required")

const (
	sportlotsSetSearchPath = "/api/sets/search"

	sportlotsDefaultLimit = 50
	sportlotsMaxLimit     = 200
)

// SportlotsAdapter implements set search against Sportlots. The site has no
// token API; sessions come from the browser automation service and are cached
// per user until they expire or the upstream stops accepting them.
type SportlotsAdapter struct {
	config     config.SportlotsConfig
	httpClient *http.Client
	creds      CredentialSource
	automation *AutomationClient
	sessions   *sessionCache
	logger     *zap.Logger
}

// NewSportlotsAdapter creates a Sportlots adapter with the given configuration.
func NewSportlotsAdapter(cfg config.SportlotsConfig, creds CredentialSource, automation *AutomationClient, logger *zap.Logger) (*SportlotsAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, ErrSportlotsConfigMissingBaseURL
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SportlotsAdapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		creds:      creds,
		automation: automation,
		sessions:   newSessionCache(),
		logger:     logger,
	}, nil
}

// Platform returns the marketplace this adapter speaks to.
func (a *SportlotsAdapter) Platform() marketplace.Platform {
	return marketplace.PlatformSportlots
}

// session returns a live session for the user, logging in through the
// automation service when none is cached.
func (a *SportlotsAdapter) session(ctx context.Context, userID uuid.UUID) (*Session, error) {
	if cached := a.sessions.get(userID); cached != nil {
		return cached, nil
	}
	return a.login(ctx, userID)
}

func (a *SportlotsAdapter) login(ctx context.Context, userID uuid.UUID) (*Session, error) {
	if a.creds == nil {
		return nil, fmt.Errorf("%w: sportlots: no credential source configured", marketplace.ErrAuthenticationRequired)
	}
	cred, err := a.creds.Get(ctx, userID, marketplace.PlatformSportlots)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: sportlots: no stored credentials", marketplace.ErrAuthenticationRequired)
	}

	session, err := a.automation.Login(ctx, marketplace.PlatformSportlots, cred.Username, cred.Password)
	if err != nil {
		return nil, err
	}
	a.sessions.put(userID, session)
	return session, nil
}

type sportlotsSearchResponse struct {
	Sets  []sportlotsSet `json:"sets"`
	Total int            `json:"total"`
}

type sportlotsSet struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Year     string `json:"year"`
	Sport    string `json:"sport"`
	Brand    string `json:"brand"`
	Price    string `json:"price"`
	Quantity int    `json:"qty"`
	Seller   string `json:"seller"`
	URL      string `json:"url"`
}

// SearchSets runs a set search with the user's automated session. A search
// the upstream rejects as unauthenticated is retried once with a fresh
// session, since cached cookies can outlive their server-side state.
func (a *SportlotsAdapter) SearchSets(ctx context.Context, userID uuid.UUID, params marketplace.SetSearchParams) (*marketplace.SetSearchResult, error) {
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

	var resp sportlotsSearchResponse
	if err := decodeJSON(marketplace.PlatformSportlots, body, &resp); err != nil {
		return nil, err
	}

	result := &marketplace.SetSearchResult{
		Listings:   make([]marketplace.SetListing, 0, len(resp.Sets)),
		TotalCount: resp.Total,
		Platform:   marketplace.PlatformSportlots,
	}
	for _, s := range resp.Sets {
		listing := marketplace.SetListing{
			ID:           s.ID,
			SetName:      s.Name,
			Sport:        strPtr(s.Sport),
			Manufacturer: strPtr(s.Brand),
			Price:        parseDecimal(s.Price),
			Currency:     "USD",
			Seller:       strPtr(s.Seller),
			ListingURL:   s.URL,
			Platform:     marketplace.PlatformSportlots,
		}
		if year, err := strconv.Atoi(s.Year); err == nil {
			listing.Year = &year
		}
		if s.Quantity > 0 {
			listing.Quantity = intPtr(s.Quantity)
		}
		if priceOutOfRange(listing.Price, params.MinPrice, params.MaxPrice) {
			continue
		}
		result.Listings = append(result.Listings, listing)
	}
	return result, nil
}

func (a *SportlotsAdapter) search(ctx context.Context, session *Session, params marketplace.SetSearchParams) ([]byte, error) {
	form := url.Values{}
	if params.SetName != "" {
		form.Set("set_name", params.SetName)
	}
	if params.Sport != nil {
		form.Set("sport", *params.Sport)
	}
	if params.Year != nil {
		form.Set("yr", strconv.Itoa(*params.Year))
	}
	if params.Manufacturer != nil {
		form.Set("brand", *params.Manufacturer)
	}
	form.Set("limit", strconv.Itoa(clampLimit(params.Limit, sportlotsDefaultLimit, sportlotsMaxLimit)))

	endpoint := strings.TrimSuffix(a.config.BaseURL, "/") + sportlotsSetSearchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("sportlots: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	session.Apply(req)

	return doRequest(a.httpClient, req, marketplace.PlatformSportlots)
}

// VerifyCredentials performs a fresh automated login; Sportlots has no
// cheaper authenticated call.
func (a *SportlotsAdapter) VerifyCredentials(ctx context.Context, userID uuid.UUID) error {
	_, err := a.login(ctx, userID)
	return err
}

// Interface guards
var (
	_ marketplace.SetAdapter         = (*SportlotsAdapter)(nil)
	_ marketplace.CredentialVerifier = (*SportlotsAdapter)(nil)
)

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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/infrastructure/config"
)

// ErrMySlabsConfigMissingBaseURL indicates an unset MySlabs base URL
var ErrMySlabsConfigMissingBaseURL = errors.New("myslabs: base URL is required")

const (
	myslabsSearchPath  = "/slabs/search"
	myslabsAccountPath = "/account"

	myslabsDefaultLimit = 50
	myslabsMaxLimit     = 100
)

// MySlabsAdapter implements card search against the MySlabs API using the
// caller's stored bearer token.
type MySlabsAdapter struct {
	config     config.MySlabsConfig
	httpClient *http.Client
	creds      CredentialSource
	logger     *zap.Logger
}

// NewMySlabsAdapter creates a MySlabs adapter with the given configuration.
func NewMySlabsAdapter(cfg config.MySlabsConfig, creds CredentialSource, logger *zap.Logger) (*MySlabsAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMySlabsConfigMissingBaseURL
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MySlabsAdapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		creds:      creds,
		logger:     logger,
	}, nil
}

// Platform returns the marketplace this adapter speaks to.
func (a *MySlabsAdapter) Platform() marketplace.Platform {
	return marketplace.PlatformMySlabs
}

func (a *MySlabsAdapter) token(ctx context.Context, userID uuid.UUID) (string, error) {
	if a.creds == nil {
		return "", fmt.Errorf("%w: myslabs: no credential source configured", marketplace.ErrAuthenticationRequired)
	}
	cred, err := a.creds.Get(ctx, userID, marketplace.PlatformMySlabs)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", fmt.Errorf("%w: myslabs: no stored credentials", marketplace.ErrAuthenticationRequired)
	}
	if cred.Token != "" && !cred.IsExpired(time.Now()) {
		return cred.Token, nil
	}
	// MySlabs issues long-lived API tokens; users store them as the password.
	if cred.Password != "" {
		return cred.Password, nil
	}
	return "", fmt.Errorf("%w: myslabs: stored credentials carry no token", marketplace.ErrAuthenticationRequired)
}

type myslabsSearchResponse struct {
	Slabs []myslabsSlab `json:"slabs"`
	Total int           `json:"total"`
}

type myslabsSlab struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Player         string  `json:"player"`
	Sport          string  `json:"sport"`
	Year           int     `json:"year"`
	Brand          string  `json:"brand"`
	SetName        string  `json:"set_name"`
	CardNumber     string  `json:"card_number"`
	Grade          string  `json:"grade"`
	Price          float64 `json:"price"`
	ShippingPrice  float64 `json:"shipping_price"`
	ImageURL       string  `json:"image_url"`
	SlabURL        string  `json:"slab_url"`
	SellerUsername string  `json:"seller_username"`
}

// SearchCards runs a card search against the MySlabs API.
func (a *MySlabsAdapter) SearchCards(ctx context.Context, userID uuid.UUID, params marketplace.CardSearchParams) (*marketplace.CardSearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	token, err := a.token(ctx, userID)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	if params.Query != "" {
		values.Set("search", params.Query)
	}
	if params.Sport != nil {
		values.Set("sport", strings.ToLower(*params.Sport))
	}
	if params.Year != nil {
		values.Set("year", strconv.Itoa(*params.Year))
	}
	if params.MinPrice != nil {
		values.Set("price_min", params.MinPrice.String())
	}
	if params.MaxPrice != nil {
		values.Set("price_max", params.MaxPrice.String())
	}
	values.Set("per_page", strconv.Itoa(clampLimit(params.Limit, myslabsDefaultLimit, myslabsMaxLimit)))

	endpoint := strings.TrimSuffix(a.config.BaseURL, "/") + myslabsSearchPath + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("myslabs: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	body, err := doRequest(a.httpClient, req, marketplace.PlatformMySlabs)
	if err != nil {
		return nil, err
	}

	var resp myslabsSearchResponse
	if err := decodeJSON(marketplace.PlatformMySlabs, body, &resp); err != nil {
		return nil, err
	}

	result := &marketplace.CardSearchResult{
		Listings:   make([]marketplace.CardListing, 0, len(resp.Slabs)),
		TotalCount: resp.Total,
		Platform:   marketplace.PlatformMySlabs,
	}
	for _, slab := range resp.Slabs {
		listing := marketplace.CardListing{
			ID:           strconv.FormatInt(slab.ID, 10),
			Title:        slab.Title,
			PlayerName:   strPtr(slab.Player),
			Sport:        strPtr(slab.Sport),
			Manufacturer: strPtr(slab.Brand),
			SetName:      strPtr(slab.SetName),
			CardNumber:   strPtr(slab.CardNumber),
			Grade:        strPtr(slab.Grade),
			Price:        decimal.NewFromFloat(slab.Price),
			Currency:     "USD",
			Seller:       strPtr(slab.SellerUsername),
			ImageURL:     strPtr(slab.ImageURL),
			ListingURL:   slab.SlabURL,
			Platform:     marketplace.PlatformMySlabs,
		}
		if slab.Year > 0 {
			listing.Year = intPtr(slab.Year)
		}
		if slab.ShippingPrice > 0 {
			cost := decimal.NewFromFloat(slab.ShippingPrice)
			listing.ShippingCost = &cost
		}
		result.Listings = append(result.Listings, listing)
	}
	return result, nil
}

// VerifyCredentials fetches the caller's account with their stored token.
func (a *MySlabsAdapter) VerifyCredentials(ctx context.Context, userID uuid.UUID) error {
	token, err := a.token(ctx, userID)
	if err != nil {
		return err
	}

	endpoint := strings.TrimSuffix(a.config.BaseURL, "/") + myslabsAccountPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("myslabs: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	_, err = doRequest(a.httpClient, req, marketplace.PlatformMySlabs)
	return err
}

// Interface guards
var (
	_ marketplace.CardAdapter        = (*MySlabsAdapter)(nil)
	_ marketplace.CredentialVerifier = (*MySlabsAdapter)(nil)
)

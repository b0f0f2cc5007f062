package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/infrastructure/config"
)

// BSC configuration errors
var (
	ErrBSCConfigMissingBaseURL = errors.New("buysportscards: base URL is required")
	ErrBSCConfigMissingOrigin  = errors.New("buysportscards: origin is required")
)

const (
	bscSetSearchPath = "/search/seller/results"
	bscFiltersPath   = "/search/bulk-upload/filters"
	bscProfilePath   = "/user/profile"

	bscDefaultLimit = 50
	bscMaxLimit     = 200
)

// bscFilterKeys maps selector levels to BuySportsCards filter slugs. The
// upstream keys every level, so all seven levels are present.
var bscFilterKeys = map[taxonomy.SelectorLevel]string{
	taxonomy.LevelSport:        "sport",
	taxonomy.LevelYear:         "year",
	taxonomy.LevelManufacturer: "manufacturer",
	taxonomy.LevelSetName:      "setName",
	taxonomy.LevelVariantType:  "variantType",
	taxonomy.LevelInsert:       "insert",
	taxonomy.LevelParallel:     "parallel",
}

// BSCAdapter implements set search against the BuySportsCards JSON API. The
// upstream checks Origin/Referer on every call and authenticates searches
// with the caller's stored bearer token; the filter vocabulary endpoint is
// public.
type BSCAdapter struct {
	config     config.BSCConfig
	httpClient *http.Client
	creds      CredentialSource
	logger     *zap.Logger
}

// NewBSCAdapter creates a BuySportsCards adapter with the given configuration.
func NewBSCAdapter(cfg config.BSCConfig, creds CredentialSource, logger *zap.Logger) (*BSCAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, ErrBSCConfigMissingBaseURL
	}
	if cfg.Origin == "" {
		return nil, ErrBSCConfigMissingOrigin
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BSCAdapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		creds:      creds,
		logger:     logger,
	}, nil
}

// Platform returns the marketplace this adapter speaks to.
func (a *BSCAdapter) Platform() marketplace.Platform {
	return marketplace.PlatformBuySportsCards
}

func (a *BSCAdapter) token(ctx context.Context, userID uuid.UUID) (string, error) {
	if a.creds == nil {
		return "", fmt.Errorf("%w: buysportscards: no credential source configured", marketplace.ErrAuthenticationRequired)
	}
	cred, err := a.creds.Get(ctx, userID, marketplace.PlatformBuySportsCards)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", fmt.Errorf("%w: buysportscards: no stored credentials", marketplace.ErrAuthenticationRequired)
	}
	if cred.Token != "" && !cred.IsExpired(time.Now()) {
		return cred.Token, nil
	}
	// Accounts provisioned before token exchange store the raw API key as
	// the password.
	if cred.Password != "" {
		return cred.Password, nil
	}
	return "", fmt.Errorf("%w: buysportscards: stored credentials carry no token", marketplace.ErrAuthenticationRequired)
}

type bscSearchRequest struct {
	Query   string              `json:"query,omitempty"`
	Filters map[string][]string `json:"filters"`
	Page    int                 `json:"page"`
	Size    int                 `json:"size"`
}

type bscSearchResponse struct {
	Results      []bscResult `json:"results"`
	TotalResults int         `json:"totalResults"`
}

type bscResult struct {
	ID           string `json:"id"`
	SetName      string `json:"setName"`
	Year         string `json:"year"`
	Sport        string `json:"sport"`
	Manufacturer string `json:"manufacturer"`
	VariantType  string `json:"variantType"`
	CardCount    int    `json:"cardCount"`
	Price        string `json:"price"`
	ShippingCost string `json:"shippingCost"`
	Quantity     int    `json:"quantity"`
	SellerName   string `json:"sellerName"`
	Condition    string `json:"condition"`
	ListingURL   string `json:"listingUrl"`
}

type bscFiltersResponse struct {
	Aggregations map[string][]bscAggregation `json:"aggregations"`
}

type bscAggregation struct {
	Slug  string `json:"slug"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SearchSets runs a set search against the BuySportsCards search API.
func (a *BSCAdapter) SearchSets(ctx context.Context, userID uuid.UUID, params marketplace.SetSearchParams) (*marketplace.SetSearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	token, err := a.token(ctx, userID)
	if err != nil {
		return nil, err
	}

	reqBody := bscSearchRequest{
		Query:   params.SetName,
		Filters: make(map[string][]string),
		Page:    0,
		Size:    clampLimit(params.Limit, bscDefaultLimit, bscMaxLimit),
	}
	if params.Sport != nil {
		reqBody.Filters["sport"] = []string{*params.Sport}
	}
	if params.Year != nil {
		reqBody.Filters["year"] = []string{strconv.Itoa(*params.Year)}
	}
	if params.Manufacturer != nil {
		reqBody.Filters["manufacturer"] = []string{*params.Manufacturer}
	}
	if params.Condition != nil {
		reqBody.Filters["condition"] = []string{*params.Condition}
	}

	body, err := a.post(ctx, bscSetSearchPath, token, reqBody)
	if err != nil {
		return nil, err
	}

	var resp bscSearchResponse
	if err := decodeJSON(marketplace.PlatformBuySportsCards, body, &resp); err != nil {
		return nil, err
	}

	result := &marketplace.SetSearchResult{
		Listings:   make([]marketplace.SetListing, 0, len(resp.Results)),
		TotalCount: resp.TotalResults,
		Platform:   marketplace.PlatformBuySportsCards,
	}
	for _, r := range resp.Results {
		listing := marketplace.SetListing{
			ID:           r.ID,
			SetName:      r.SetName,
			Sport:        strPtr(r.Sport),
			Manufacturer: strPtr(r.Manufacturer),
			VariantType:  strPtr(r.VariantType),
			Price:        parseDecimal(r.Price),
			Currency:     "USD",
			Condition:    strPtr(r.Condition),
			Seller:       strPtr(r.SellerName),
			ListingURL:   r.ListingURL,
			Platform:     marketplace.PlatformBuySportsCards,
		}
		if year, err := strconv.Atoi(r.Year); err == nil {
			listing.Year = &year
		}
		if r.CardCount > 0 {
			listing.CardCount = intPtr(r.CardCount)
		}
		if r.Quantity > 0 {
			listing.Quantity = intPtr(r.Quantity)
		}
		if r.ShippingCost != "" {
			cost := parseDecimal(r.ShippingCost)
			listing.ShippingCost = &cost
		}
		if priceOutOfRange(listing.Price, params.MinPrice, params.MaxPrice) {
			// The upstream does not filter by price server-side.
			continue
		}
		result.Listings = append(result.Listings, listing)
	}
	return result, nil
}

// VerifyCredentials fetches the caller's profile with their stored token.
func (a *BSCAdapter) VerifyCredentials(ctx context.Context, userID uuid.UUID) error {
	token, err := a.token(ctx, userID)
	if err != nil {
		return err
	}

	endpoint := strings.TrimSuffix(a.config.BaseURL, "/") + bscProfilePath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("buysportscards: failed to create request: %w", err)
	}
	a.setHeaders(req, token)

	_, err = doRequest(a.httpClient, req, marketplace.PlatformBuySportsCards)
	return err
}

// ListOptions lists BuySportsCards' vocabulary for one selector level from
// the public filter aggregation endpoint.
func (a *BSCAdapter) ListOptions(ctx context.Context, level taxonomy.SelectorLevel, parents taxonomy.ParentFilters) ([]taxonomy.ProviderOption, error) {
	key, ok := bscFilterKeys[level]
	if !ok {
		return nil, nil
	}

	reqBody := bscSearchRequest{Filters: make(map[string][]string)}
	for parentLevel, value := range parents {
		if parentKey, ok := bscFilterKeys[parentLevel]; ok {
			reqBody.Filters[parentKey] = []string{value}
		}
	}

	body, err := a.post(ctx, bscFiltersPath, "", reqBody)
	if err != nil {
		return nil, err
	}

	var resp bscFiltersResponse
	if err := decodeJSON(marketplace.PlatformBuySportsCards, body, &resp); err != nil {
		return nil, err
	}

	aggs := resp.Aggregations[key]
	options := make([]taxonomy.ProviderOption, 0, len(aggs))
	for _, agg := range aggs {
		if agg.Label == "" {
			continue
		}
		opt := taxonomy.ProviderOption{Value: agg.Label}
		if agg.Slug != "" {
			opt.NativeCodes = []string{agg.Slug}
		}
		options = append(options, opt)
	}
	return options, nil
}

func (a *BSCAdapter) post(ctx context.Context, path, token string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("buysportscards: failed to encode request: %w", err)
	}

	endpoint := strings.TrimSuffix(a.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("buysportscards: failed to create request: %w", err)
	}
	a.setHeaders(req, token)

	return doRequest(a.httpClient, req, marketplace.PlatformBuySportsCards)
}

func (a *BSCAdapter) setHeaders(req *http.Request, token string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	// The upstream rejects requests without a browser-like origin.
	req.Header.Set("Origin", a.config.Origin)
	req.Header.Set("Referer", a.config.Origin+"/")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// Interface guards
var (
	_ marketplace.SetAdapter         = (*BSCAdapter)(nil)
	_ marketplace.CredentialVerifier = (*BSCAdapter)(nil)
	_ taxonomy.Provider              = (*BSCAdapter)(nil)
)

package platforms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/infrastructure/config"
)

// ErrEbayConfigMissingBaseURL indicates an unset eBay API base URL
var ErrEbayConfigMissingBaseURL = errors.New("ebay: base URL is required")

const (
	ebayBrowseSearchPath = "/buy/browse/v1/item_summary/search"

	// Browse API category ids: trading card singles and complete sets
	ebayCardCategoryID = "212"
	ebaySetCategoryID  = "213"

	ebayDefaultLimit = 50
	ebayMaxLimit     = 200
)

// ebayAspectNames maps selector levels to the Browse API aspect names eBay
// uses in refinements and aspect filters. Levels without an eBay aspect have
// no entry and yield no options.
var ebayAspectNames = map[taxonomy.SelectorLevel]string{
	taxonomy.LevelSport:        "Sport",
	taxonomy.LevelYear:         "Season",
	taxonomy.LevelManufacturer: "Manufacturer",
	taxonomy.LevelSetName:      "Set",
	taxonomy.LevelVariantType:  "Type",
	taxonomy.LevelInsert:       "Insert Set",
	taxonomy.LevelParallel:     "Parallel/Variety",
}

// EbayAdapter implements card and set search against the eBay Browse API.
// Searches authenticate with the caller's stored OAuth token when one exists,
// falling back to the application token; taxonomy listing always uses the
// application token.
type EbayAdapter struct {
	config     config.EbayConfig
	httpClient *http.Client
	creds      CredentialSource
	logger     *zap.Logger
}

// NewEbayAdapter creates an eBay adapter with the given configuration.
func NewEbayAdapter(cfg config.EbayConfig, creds CredentialSource, logger *zap.Logger) (*EbayAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, ErrEbayConfigMissingBaseURL
	}
	if cfg.MarketplaceID == "" {
		cfg.MarketplaceID = "EBAY_US"
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EbayAdapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		creds:      creds,
		logger:     logger,
	}, nil
}

// Platform returns the marketplace this adapter speaks to.
func (a *EbayAdapter) Platform() marketplace.Platform {
	return marketplace.PlatformEbay
}

// token resolves the bearer token for a search: the caller's stored OAuth
// token when present and unexpired, otherwise the application token.
func (a *EbayAdapter) token(ctx context.Context, userID uuid.UUID) (string, error) {
	if a.creds != nil && userID != uuid.Nil {
		cred, err := a.creds.Get(ctx, userID, marketplace.PlatformEbay)
		if err != nil {
			return "", err
		}
		if cred != nil && cred.Token != "" && !cred.IsExpired(time.Now()) {
			return cred.Token, nil
		}
	}
	if a.config.AppToken != "" {
		return a.config.AppToken, nil
	}
	return "", fmt.Errorf("%w: ebay: no usable token", marketplace.ErrAuthenticationRequired)
}

// SearchCards runs a card search against the Browse API.
func (a *EbayAdapter) SearchCards(ctx context.Context, userID uuid.UUID, params marketplace.CardSearchParams) (*marketplace.CardSearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	token, err := a.token(ctx, userID)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("category_ids", ebayCardCategoryID)
	values.Set("limit", strconv.Itoa(clampLimit(params.Limit, ebayDefaultLimit, ebayMaxLimit)))
	if q := ebayCardQuery(params); q != "" {
		values.Set("q", q)
	}
	if filter := ebayPriceFilter(params.MinPrice, params.MaxPrice); filter != "" {
		values.Set("filter", filter)
	}
	if aspects := ebayAspectFilter(ebayCardCategoryID, cardAspects(params)); aspects != "" {
		values.Set("aspect_filter", aspects)
	}

	resp, err := a.browse(ctx, token, values)
	if err != nil {
		return nil, err
	}

	result := &marketplace.CardSearchResult{
		Listings:   make([]marketplace.CardListing, 0, len(resp.ItemSummaries)),
		TotalCount: resp.Total,
		Platform:   marketplace.PlatformEbay,
	}
	for _, item := range resp.ItemSummaries {
		result.Listings = append(result.Listings, a.toCardListing(&item))
	}
	return result, nil
}

// SearchSets runs a complete-set search against the Browse API.
func (a *EbayAdapter) SearchSets(ctx context.Context, userID uuid.UUID, params marketplace.SetSearchParams) (*marketplace.SetSearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	token, err := a.token(ctx, userID)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("category_ids", ebaySetCategoryID)
	values.Set("limit", strconv.Itoa(clampLimit(params.Limit, ebayDefaultLimit, ebayMaxLimit)))
	if params.SetName != "" {
		values.Set("q", params.SetName)
	}
	if filter := ebayPriceFilter(params.MinPrice, params.MaxPrice); filter != "" {
		values.Set("filter", filter)
	}
	if aspects := ebayAspectFilter(ebaySetCategoryID, setAspects(params)); aspects != "" {
		values.Set("aspect_filter", aspects)
	}

	resp, err := a.browse(ctx, token, values)
	if err != nil {
		return nil, err
	}

	result := &marketplace.SetSearchResult{
		Listings:   make([]marketplace.SetListing, 0, len(resp.ItemSummaries)),
		TotalCount: resp.Total,
		Platform:   marketplace.PlatformEbay,
	}
	for _, item := range resp.ItemSummaries {
		result.Listings = append(result.Listings, a.toSetListing(&item))
	}
	return result, nil
}

// VerifyCredentials performs a one-item search with the caller's stored
// token. A user without a stored eBay credential fails verification even
// though searches would fall back to the application token.
func (a *EbayAdapter) VerifyCredentials(ctx context.Context, userID uuid.UUID) error {
	if a.creds == nil {
		return fmt.Errorf("%w: ebay: no credential source configured", marketplace.ErrAuthenticationRequired)
	}
	cred, err := a.creds.Get(ctx, userID, marketplace.PlatformEbay)
	if err != nil {
		return err
	}
	if cred == nil || cred.Token == "" {
		return fmt.Errorf("%w: ebay: no stored token", marketplace.ErrAuthenticationRequired)
	}
	if cred.IsExpired(time.Now()) {
		return fmt.Errorf("%w: ebay: stored token expired", marketplace.ErrAuthenticationRequired)
	}

	values := url.Values{}
	values.Set("q", "trading card")
	values.Set("limit", "1")
	_, err = a.browse(ctx, cred.Token, values)
	return err
}

// ListOptions lists eBay's vocabulary for one selector level by requesting
// aspect refinements for the card category, scoped by the ancestor filters.
func (a *EbayAdapter) ListOptions(ctx context.Context, level taxonomy.SelectorLevel, parents taxonomy.ParentFilters) ([]taxonomy.ProviderOption, error) {
	aspectName, ok := ebayAspectNames[level]
	if !ok {
		return nil, nil
	}
	if a.config.AppToken == "" {
		return nil, fmt.Errorf("%w: ebay: taxonomy listing requires an application token", marketplace.ErrAuthenticationRequired)
	}

	values := url.Values{}
	values.Set("category_ids", ebayCardCategoryID)
	values.Set("limit", "1")
	values.Set("fieldgroups", "ASPECT_REFINEMENTS")

	aspects := make(map[string]string, len(parents))
	for parentLevel, value := range parents {
		if name, ok := ebayAspectNames[parentLevel]; ok {
			aspects[name] = value
		}
	}
	if filter := ebayAspectFilter(ebayCardCategoryID, aspects); filter != "" {
		values.Set("aspect_filter", filter)
	}

	resp, err := a.browse(ctx, a.config.AppToken, values)
	if err != nil {
		return nil, err
	}
	if resp.Refinement == nil {
		return nil, nil
	}

	for _, dist := range resp.Refinement.AspectDistributions {
		if !strings.EqualFold(dist.LocalizedAspectName, aspectName) {
			continue
		}
		options := make([]taxonomy.ProviderOption, 0, len(dist.AspectValueDistributions))
		for _, v := range dist.AspectValueDistributions {
			if v.LocalizedAspectValue == "" {
				continue
			}
			// eBay keys aspects by display value; there is no separate code.
			options = append(options, taxonomy.ProviderOption{Value: v.LocalizedAspectValue})
		}
		return options, nil
	}
	return nil, nil
}

func (a *EbayAdapter) browse(ctx context.Context, token string, values url.Values) (*ebayBrowseResponse, error) {
	endpoint := strings.TrimSuffix(a.config.BaseURL, "/") + ebayBrowseSearchPath + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", a.config.MarketplaceID)

	body, err := doRequest(a.httpClient, req, marketplace.PlatformEbay)
	if err != nil {
		return nil, err
	}

	var resp ebayBrowseResponse
	if err := decodeJSON(marketplace.PlatformEbay, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *EbayAdapter) toCardListing(item *ebayItemSummary) marketplace.CardListing {
	listing := marketplace.CardListing{
		ID:         item.ItemID,
		Title:      item.Title,
		Price:      parseDecimal(item.Price.Value),
		Currency:   currencyOrUSD(item.Price.Currency),
		Condition:  strPtr(item.Condition),
		ListingURL: item.ItemWebURL,
		Platform:   marketplace.PlatformEbay,
	}
	if item.Seller != nil {
		listing.Seller = strPtr(item.Seller.Username)
	}
	if item.Image != nil {
		listing.ImageURL = strPtr(item.Image.ImageURL)
	}
	if cost, ok := firstShippingCost(item.ShippingOptions); ok {
		listing.ShippingCost = &cost
	}
	return listing
}

func (a *EbayAdapter) toSetListing(item *ebayItemSummary) marketplace.SetListing {
	listing := marketplace.SetListing{
		ID:         item.ItemID,
		SetName:    item.Title,
		Price:      parseDecimal(item.Price.Value),
		Currency:   currencyOrUSD(item.Price.Currency),
		Condition:  strPtr(item.Condition),
		ListingURL: item.ItemWebURL,
		Platform:   marketplace.PlatformEbay,
	}
	if item.Seller != nil {
		listing.Seller = strPtr(item.Seller.Username)
	}
	if cost, ok := firstShippingCost(item.ShippingOptions); ok {
		listing.ShippingCost = &cost
	}
	return listing
}

// ---------------------------------------------------------------------------
// Query Building
// ---------------------------------------------------------------------------

func ebayCardQuery(params marketplace.CardSearchParams) string {
	parts := make([]string, 0, 3)
	if params.Query != "" {
		parts = append(parts, params.Query)
	}
	if params.SetName != nil && params.Query == "" {
		parts = append(parts, *params.SetName)
	}
	return strings.Join(parts, " ")
}

func cardAspects(params marketplace.CardSearchParams) map[string]string {
	aspects := make(map[string]string)
	if params.Sport != nil {
		aspects["Sport"] = *params.Sport
	}
	if params.Year != nil {
		aspects["Season"] = strconv.Itoa(*params.Year)
	}
	if params.Manufacturer != nil {
		aspects["Manufacturer"] = *params.Manufacturer
	}
	if params.SetName != nil && params.Query != "" {
		aspects["Set"] = *params.SetName
	}
	return aspects
}

func setAspects(params marketplace.SetSearchParams) map[string]string {
	aspects := make(map[string]string)
	if params.Sport != nil {
		aspects["Sport"] = *params.Sport
	}
	if params.Year != nil {
		aspects["Season"] = strconv.Itoa(*params.Year)
	}
	if params.Manufacturer != nil {
		aspects["Manufacturer"] = *params.Manufacturer
	}
	return aspects
}

// ebayPriceFilter renders the Browse API price range filter, e.g.
// "price:[10..50],priceCurrency:USD". Either bound may be open.
func ebayPriceFilter(min, max *decimal.Decimal) string {
	if min == nil && max == nil {
		return ""
	}
	lower, upper := "", ""
	if min != nil {
		lower = min.String()
	}
	if max != nil {
		upper = max.String()
	}
	return fmt.Sprintf("price:[%s..%s],priceCurrency:USD", lower, upper)
}

// ebayAspectFilter renders the aspect_filter parameter, e.g.
// "categoryId:212,Sport:{Baseball},Season:{2024}". Aspect order follows the
// sorted aspect names so the output is deterministic.
func ebayAspectFilter(categoryID string, aspects map[string]string) string {
	if len(aspects) == 0 {
		return ""
	}
	names := make([]string, 0, len(aspects))
	for name := range aspects {
		names = append(names, name)
	}
	sort.Strings(names)

	var builder strings.Builder
	builder.WriteString("categoryId:")
	builder.WriteString(categoryID)
	for _, name := range names {
		builder.WriteString(",")
		builder.WriteString(name)
		builder.WriteString(":{")
		builder.WriteString(aspects[name])
		builder.WriteString("}")
	}
	return builder.String()
}

func firstShippingCost(options []ebayShippingOption) (decimal.Decimal, bool) {
	for _, opt := range options {
		if opt.ShippingCost.Value != "" {
			return parseDecimal(opt.ShippingCost.Value), true
		}
	}
	return decimal.Zero, false
}

func currencyOrUSD(currency string) string {
	if currency == "" {
		return "USD"
	}
	return currency
}

func clampLimit(requested, def, max int) int {
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}

// Interface guards
var (
	_ marketplace.CardAdapter        = (*EbayAdapter)(nil)
	_ marketplace.SetAdapter         = (*EbayAdapter)(nil)
	_ marketplace.CredentialVerifier = (*EbayAdapter)(nil)
	_ taxonomy.Provider              = (*EbayAdapter)(nil)
)

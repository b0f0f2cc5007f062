package dto

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cardstash/backend/internal/application/search"
	"github.com/cardstash/backend/internal/domain/marketplace"
)

// CardSearchRequest is the request body for POST /api/v1/search/cards
type CardSearchRequest struct {
	Query        string   `json:"query,omitempty" binding:"max=500"`
	Year         *int     `json:"year,omitempty" binding:"omitempty,gte=1860,lte=2100"`
	Sport        *string  `json:"sport,omitempty"`
	Manufacturer *string  `json:"manufacturer,omitempty"`
	SetName      *string  `json:"set_name,omitempty"`
	Condition    *string  `json:"condition,omitempty"`
	MinPrice     *string  `json:"min_price,omitempty"`
	MaxPrice     *string  `json:"max_price,omitempty"`
	Limit        int      `json:"limit,omitempty" binding:"gte=0,lte=500"`
	Platforms    []string `json:"platforms,omitempty" binding:"max=10"`
}

// ToParams converts the request into domain search parameters. Prices are
// sent as strings and parsed into decimals so clients never deal with
// floating point money.
func (r *CardSearchRequest) ToParams() (marketplace.CardSearchParams, error) {
	minPrice, maxPrice, err := parsePriceRange(r.MinPrice, r.MaxPrice)
	if err != nil {
		return marketplace.CardSearchParams{}, err
	}
	return marketplace.CardSearchParams{
		Query:        r.Query,
		Year:         r.Year,
		Sport:        r.Sport,
		Manufacturer: r.Manufacturer,
		SetName:      r.SetName,
		Condition:    r.Condition,
		MinPrice:     minPrice,
		MaxPrice:     maxPrice,
		Limit:        r.Limit,
	}, nil
}

// SetSearchRequest is the request body for POST /api/v1/search/sets
type SetSearchRequest struct {
	SetName      string   `json:"set_name,omitempty" binding:"max=500"`
	Year         *int     `json:"year,omitempty" binding:"omitempty,gte=1860,lte=2100"`
	Sport        *string  `json:"sport,omitempty"`
	Manufacturer *string  `json:"manufacturer,omitempty"`
	Condition    *string  `json:"condition,omitempty"`
	MinPrice     *string  `json:"min_price,omitempty"`
	MaxPrice     *string  `json:"max_price,omitempty"`
	Limit        int      `json:"limit,omitempty" binding:"gte=0,lte=500"`
	Platforms    []string `json:"platforms,omitempty" binding:"max=10"`
}

// ToParams converts the request into domain search parameters
func (r *SetSearchRequest) ToParams() (marketplace.SetSearchParams, error) {
	minPrice, maxPrice, err := parsePriceRange(r.MinPrice, r.MaxPrice)
	if err != nil {
		return marketplace.SetSearchParams{}, err
	}
	return marketplace.SetSearchParams{
		SetName:      r.SetName,
		Year:         r.Year,
		Sport:        r.Sport,
		Manufacturer: r.Manufacturer,
		Condition:    r.Condition,
		MinPrice:     minPrice,
		MaxPrice:     maxPrice,
		Limit:        r.Limit,
	}, nil
}

// ParsePlatforms converts the request's platform names into typed platforms.
// Unknown names are passed through so the aggregator can degrade them the
// same way it degrades a dead upstream.
func ParsePlatforms(names []string) []marketplace.Platform {
	if len(names) == 0 {
		return nil
	}
	platforms := make([]marketplace.Platform, 0, len(names))
	for _, name := range names {
		platforms = append(platforms, marketplace.Platform(name))
	}
	return platforms
}

func parsePriceRange(minStr, maxStr *string) (*decimal.Decimal, *decimal.Decimal, error) {
	var minPrice, maxPrice *decimal.Decimal
	if minStr != nil {
		d, err := decimal.NewFromString(*minStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid min_price %q", *minStr)
		}
		minPrice = &d
	}
	if maxStr != nil {
		d, err := decimal.NewFromString(*maxStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid max_price %q", *maxStr)
		}
		maxPrice = &d
	}
	return minPrice, maxPrice, nil
}

// CardListingResponse is the wire shape of one card listing
type CardListingResponse struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	PlayerName   *string `json:"player_name,omitempty"`
	Year         *int    `json:"year,omitempty"`
	Sport        *string `json:"sport,omitempty"`
	Manufacturer *string `json:"manufacturer,omitempty"`
	SetName      *string `json:"set_name,omitempty"`
	CardNumber   *string `json:"card_number,omitempty"`
	Price        string  `json:"price"`
	Currency     string  `json:"currency"`
	Condition    *string `json:"condition,omitempty"`
	Grade        *string `json:"grade,omitempty"`
	Seller       *string `json:"seller,omitempty"`
	ShippingCost *string `json:"shipping_cost,omitempty"`
	Quantity     *int    `json:"quantity,omitempty"`
	ImageURL     *string `json:"image_url,omitempty"`
	ListingURL   string  `json:"listing_url"`
	Platform     string  `json:"platform"`
}

// SetListingResponse is the wire shape of one set listing
type SetListingResponse struct {
	ID           string  `json:"id"`
	SetName      string  `json:"set_name"`
	Year         *int    `json:"year,omitempty"`
	Sport        *string `json:"sport,omitempty"`
	Manufacturer *string `json:"manufacturer,omitempty"`
	VariantType  *string `json:"variant_type,omitempty"`
	CardCount    *int    `json:"card_count,omitempty"`
	Price        string  `json:"price"`
	Currency     string  `json:"currency"`
	Condition    *string `json:"condition,omitempty"`
	Seller       *string `json:"seller,omitempty"`
	ShippingCost *string `json:"shipping_cost,omitempty"`
	Quantity     *int    `json:"quantity,omitempty"`
	ListingURL   string  `json:"listing_url"`
	Platform     string  `json:"platform"`
}

// PlatformCardResultResponse is one platform's contribution, in request order
type PlatformCardResultResponse struct {
	Platform   string                `json:"platform"`
	TotalCount int                   `json:"total_count"`
	Listings   []CardListingResponse `json:"listings"`
}

// PlatformSetResultResponse is one platform's contribution, in request order
type PlatformSetResultResponse struct {
	Platform   string               `json:"platform"`
	TotalCount int                  `json:"total_count"`
	Listings   []SetListingResponse `json:"listings"`
}

// CardSearchResponse is the response body for a card search
type CardSearchResponse struct {
	Results      []PlatformCardResultResponse `json:"results"`
	TotalResults int                          `json:"total_results"`
}

// SetSearchResponse is the response body for a set search
type SetSearchResponse struct {
	Results      []PlatformSetResultResponse `json:"results"`
	TotalResults int                         `json:"total_results"`
}

// NewCardSearchResponse maps an aggregate result to the wire shape
func NewCardSearchResponse(result *search.AggregateCardResult) CardSearchResponse {
	resp := CardSearchResponse{
		Results:      make([]PlatformCardResultResponse, 0, len(result.Results)),
		TotalResults: result.TotalResults,
	}
	for _, pr := range result.Results {
		listings := make([]CardListingResponse, 0, len(pr.Listings))
		for _, l := range pr.Listings {
			listings = append(listings, newCardListingResponse(l))
		}
		resp.Results = append(resp.Results, PlatformCardResultResponse{
			Platform:   string(pr.Platform),
			TotalCount: pr.TotalCount,
			Listings:   listings,
		})
	}
	return resp
}

// NewSetSearchResponse maps an aggregate result to the wire shape
func NewSetSearchResponse(result *search.AggregateSetResult) SetSearchResponse {
	resp := SetSearchResponse{
		Results:      make([]PlatformSetResultResponse, 0, len(result.Results)),
		TotalResults: result.TotalResults,
	}
	for _, pr := range result.Results {
		listings := make([]SetListingResponse, 0, len(pr.Listings))
		for _, l := range pr.Listings {
			listings = append(listings, newSetListingResponse(l))
		}
		resp.Results = append(resp.Results, PlatformSetResultResponse{
			Platform:   string(pr.Platform),
			TotalCount: pr.TotalCount,
			Listings:   listings,
		})
	}
	return resp
}

func newCardListingResponse(l marketplace.CardListing) CardListingResponse {
	return CardListingResponse{
		ID:           l.ID,
		Title:        l.Title,
		PlayerName:   l.PlayerName,
		Year:         l.Year,
		Sport:        l.Sport,
		Manufacturer: l.Manufacturer,
		SetName:      l.SetName,
		CardNumber:   l.CardNumber,
		Price:        l.Price.String(),
		Currency:     l.Currency,
		Condition:    l.Condition,
		Grade:        l.Grade,
		Seller:       l.Seller,
		ShippingCost: decimalString(l.ShippingCost),
		Quantity:     l.Quantity,
		ImageURL:     l.ImageURL,
		ListingURL:   l.ListingURL,
		Platform:     string(l.Platform),
	}
}

func newSetListingResponse(l marketplace.SetListing) SetListingResponse {
	return SetListingResponse{
		ID:           l.ID,
		SetName:      l.SetName,
		Year:         l.Year,
		Sport:        l.Sport,
		Manufacturer: l.Manufacturer,
		VariantType:  l.VariantType,
		CardCount:    l.CardCount,
		Price:        l.Price.String(),
		Currency:     l.Currency,
		Condition:    l.Condition,
		Seller:       l.Seller,
		ShippingCost: decimalString(l.ShippingCost),
		Quantity:     l.Quantity,
		ListingURL:   l.ListingURL,
		Platform:     string(l.Platform),
	}
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

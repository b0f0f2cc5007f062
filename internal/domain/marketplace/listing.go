package marketplace

import (
	"github.com/shopspring/decimal"
)

// CardListing is the normalized shape of a single-card listing produced by a
// card adapter. Listings are ephemeral: they exist for the lifetime of one
// search response and are never persisted.
//
// Optional fields are pointers. A field the upstream did not report stays
// nil; adapters never guess or zero-fill.
type CardListing struct {
	// ID is the listing identifier on the originating platform.
	ID string
	// Title is the listing title as shown on the platform.
	Title string
	// PlayerName is the featured player, when the platform reports it.
	PlayerName *string
	// Year is the card year (e.g. 2024).
	Year *int
	// Sport is the sport as reported by the platform.
	Sport *string
	// Manufacturer is the card manufacturer (e.g. Topps, Panini).
	Manufacturer *string
	// SetName is the set the card belongs to.
	SetName *string
	// CardNumber is the card's number within its set.
	CardNumber *string
	// Price is the asking price in the platform's listed currency.
	Price decimal.Decimal
	// Currency is the ISO currency code (default USD).
	Currency string
	// Condition is the platform's condition/grade string.
	Condition *string
	// Grade holds the grading-company designation for slabbed cards.
	Grade *string
	// Seller is the seller's display name.
	Seller *string
	// ShippingCost is the quoted shipping price, when reported separately.
	ShippingCost *decimal.Decimal
	// Quantity is the available quantity, when reported.
	Quantity *int
	// ImageURL is the primary listing image.
	ImageURL *string
	// ListingURL is the canonical URL of the listing on the platform.
	ListingURL string
	// Platform tags which marketplace produced this listing.
	Platform Platform
}

// SetListing is the normalized shape of a full-set or lot listing produced by
// a set adapter. Same conventions as CardListing.
type SetListing struct {
	// ID is the listing identifier on the originating platform.
	ID string
	// SetName is the canonical set description (e.g. "2024 Topps Chrome").
	SetName string
	// Year is the set year.
	Year *int
	// Sport is the sport as reported by the platform.
	Sport *string
	// Manufacturer is the set manufacturer.
	Manufacturer *string
	// VariantType distinguishes base/insert/parallel groupings when reported.
	VariantType *string
	// CardCount is the number of cards in the lot, when reported.
	CardCount *int
	// Price is the asking price.
	Price decimal.Decimal
	// Currency is the ISO currency code (default USD).
	Currency string
	// Condition is the platform's condition string.
	Condition *string
	// Seller is the seller's display name.
	Seller *string
	// ShippingCost is the quoted shipping price, when reported separately.
	ShippingCost *decimal.Decimal
	// Quantity is the available quantity, when reported.
	Quantity *int
	// ListingURL is the canonical URL of the listing on the platform.
	ListingURL string
	// Platform tags which marketplace produced this listing.
	Platform Platform
}

package marketplace

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Search Parameters
// ---------------------------------------------------------------------------

// CardSearchParams is the immutable input for a card search. Optional
// constraints are pointers; nil means "unconstrained".
type CardSearchParams struct {
	// Query is the free-text search term (player name, card description).
	Query string
	// Year constrains results to a card year.
	Year *int
	// Sport constrains results to a sport (canonical display value).
	Sport *string
	// Manufacturer constrains results to a manufacturer.
	Manufacturer *string
	// SetName constrains results to a set.
	SetName *string
	// Condition constrains results to a condition/grade.
	Condition *string
	// MinPrice is the inclusive lower price bound.
	MinPrice *decimal.Decimal
	// MaxPrice is the inclusive upper price bound.
	MaxPrice *decimal.Decimal
	// Limit caps the number of listings per platform (0 = platform default).
	Limit int
}

// Validate validates the card search parameters.
func (p *CardSearchParams) Validate() error {
	if p.Query == "" && p.SetName == nil && p.Sport == nil {
		return errors.New("marketplace: card search requires a query, set name, or sport")
	}
	if p.MinPrice != nil && p.MaxPrice != nil && p.MinPrice.GreaterThan(*p.MaxPrice) {
		return errors.New("marketplace: min price must not exceed max price")
	}
	if p.Limit < 0 {
		return errors.New("marketplace: limit must not be negative")
	}
	return nil
}

// SetSearchParams is the immutable input for a set search.
type SetSearchParams struct {
	// SetName is the set name or fragment to search for.
	SetName string
	// Year constrains results to a set year.
	Year *int
	// Sport constrains results to a sport.
	Sport *string
	// Manufacturer constrains results to a manufacturer.
	Manufacturer *string
	// Condition constrains results to a condition.
	Condition *string
	// MinPrice is the inclusive lower price bound.
	MinPrice *decimal.Decimal
	// MaxPrice is the inclusive upper price bound.
	MaxPrice *decimal.Decimal
	// Limit caps the number of listings per platform (0 = platform default).
	Limit int
}

// Validate validates the set search parameters.
func (p *SetSearchParams) Validate() error {
	if p.SetName == "" && p.Sport == nil && p.Year == nil {
		return errors.New("marketplace: set search requires a set name, sport, or year")
	}
	if p.MinPrice != nil && p.MaxPrice != nil && p.MinPrice.GreaterThan(*p.MaxPrice) {
		return errors.New("marketplace: min price must not exceed max price")
	}
	if p.Limit < 0 {
		return errors.New("marketplace: limit must not be negative")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Search Results
// ---------------------------------------------------------------------------

// CardSearchResult is one platform's contribution to a card search.
type CardSearchResult struct {
	// Listings are the normalized listings, possibly empty on success.
	Listings []CardListing
	// TotalCount is the upstream's total match count, which may exceed
	// len(Listings) when the upstream paginates.
	TotalCount int
	// Platform identifies the contributing marketplace.
	Platform Platform
}

// SetSearchResult is one platform's contribution to a set search.
type SetSearchResult struct {
	Listings   []SetListing
	TotalCount int
	Platform   Platform
}

// ---------------------------------------------------------------------------
// Adapter Ports
// ---------------------------------------------------------------------------

// CardAdapter is the capability interface for platforms that support
// searching individual card listings. Concrete adapters live in the
// infrastructure layer; each translates one marketplace's proprietary API
// into the normalized model.
type CardAdapter interface {
	// Platform returns the marketplace this adapter speaks to.
	Platform() Platform

	// SearchCards runs a card search against the upstream. An empty result
	// set is a success; upstream rejections and transport failures are
	// errors, never silently-empty results.
	SearchCards(ctx context.Context, userID uuid.UUID, params CardSearchParams) (*CardSearchResult, error)
}

// SetAdapter is the capability interface for platforms that support
// searching complete-set listings.
type SetAdapter interface {
	// Platform returns the marketplace this adapter speaks to.
	Platform() Platform

	// SearchSets runs a set search against the upstream.
	SearchSets(ctx context.Context, userID uuid.UUID, params SetSearchParams) (*SetSearchResult, error)
}

// CredentialVerifier is implemented by adapters that can cheaply check
// whether a user's stored credentials still work, typically by performing a
// minimal authenticated call such as a token retrieval.
type CredentialVerifier interface {
	// VerifyCredentials performs a minimal authenticated upstream call using
	// the caller's stored credentials.
	VerifyCredentials(ctx context.Context, userID uuid.UUID) error
}

// AdapterRegistry provides lookup of configured platform adapters. Unknown
// sites resolve to ErrUnsupportedSite, never to a nil adapter.
type AdapterRegistry interface {
	// CardAdapter returns the card adapter for the platform.
	CardAdapter(platform Platform) (CardAdapter, error)

	// SetAdapter returns the set adapter for the platform.
	SetAdapter(platform Platform) (SetAdapter, error)

	// CardPlatforms lists platforms supporting card search, in canonical order.
	CardPlatforms() []Platform

	// SetPlatforms lists platforms supporting set search, in canonical order.
	SetPlatforms() []Platform

	// Verifier returns the credential verifier for the platform.
	Verifier(platform Platform) (CredentialVerifier, error)
}

package marketplace

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Marketplace Errors
// ---------------------------------------------------------------------------

var (
	// ErrAuthenticationRequired indicates the platform needs credentials that
	// are missing or expired for the calling user.
	ErrAuthenticationRequired = errors.New("marketplace: authentication required")
	// ErrUpstreamUnavailable indicates a network-level failure reaching the
	// platform (or the browser automation service it depends on).
	ErrUpstreamUnavailable = errors.New("marketplace: upstream unavailable")
	// ErrMalformedResponse indicates a 2xx upstream response whose payload
	// could not be decoded into the expected shape.
	ErrMalformedResponse = errors.New("marketplace: malformed upstream response")
	// ErrUnsupportedSite indicates the site has no registered adapter.
	ErrUnsupportedSite = errors.New("marketplace: unsupported site")
	// ErrVaultAccessDenied indicates the secret store rejected the operation
	// (permissions or misconfiguration, not a missing secret).
	ErrVaultAccessDenied = errors.New("marketplace: vault access denied")
	// ErrNotAuthenticated indicates the request carried no verified caller
	// identity.
	ErrNotAuthenticated = errors.New("marketplace: caller not authenticated")
	// ErrAutomationUnavailable indicates the browser automation service did
	// not answer its liveness probe.
	ErrAutomationUnavailable = errors.New("marketplace: automation service unavailable")
)

// UpstreamError carries the HTTP status and raw message of a platform
// rejection (non-2xx with a readable body). It is distinct from an empty
// success: an adapter never reports zero listings by way of an error, and
// never reports a rejection as zero listings.
type UpstreamError struct {
	Platform Platform
	Status   int
	Body     string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("marketplace: %s rejected request: HTTP %d: %s", e.Platform, e.Status, e.Body)
}

// NewUpstreamError creates an UpstreamError for the given platform response.
func NewUpstreamError(platform Platform, status int, body string) *UpstreamError {
	return &UpstreamError{Platform: platform, Status: status, Body: body}
}

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// Platform identifies one external marketplace.
type Platform string

const (
	// PlatformEbay is the eBay marketplace.
	PlatformEbay Platform = "ebay"
	// PlatformBuySportsCards is the BuySportsCards marketplace.
	PlatformBuySportsCards Platform = "buysportscards"
	// PlatformSportlots is the Sportlots marketplace.
	PlatformSportlots Platform = "sportlots"
	// PlatformMySlabs is the MySlabs marketplace.
	PlatformMySlabs Platform = "myslabs"
	// PlatformMyCardPost is the MyCardPost marketplace.
	PlatformMyCardPost Platform = "mycardpost"
)

// AllPlatforms lists every known platform in canonical order. The order is
// load-bearing: aggregate search results follow it when the caller does not
// name platforms explicitly.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformEbay,
		PlatformBuySportsCards,
		PlatformSportlots,
		PlatformMySlabs,
		PlatformMyCardPost,
	}
}

// IsValid returns true if the platform is known.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformEbay, PlatformBuySportsCards, PlatformSportlots,
		PlatformMySlabs, PlatformMyCardPost:
		return true
	default:
		return false
	}
}

// String returns the string representation of the platform.
func (p Platform) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the platform.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformEbay:
		return "eBay"
	case PlatformBuySportsCards:
		return "BuySportsCards"
	case PlatformSportlots:
		return "Sportlots"
	case PlatformMySlabs:
		return "MySlabs"
	case PlatformMyCardPost:
		return "MyCardPost"
	default:
		return string(p)
	}
}

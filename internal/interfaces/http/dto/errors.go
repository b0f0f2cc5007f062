package dto

import (
	"errors"
	"net/http"

	taxonomyapp "github.com/cardstash/backend/internal/application/taxonomy"
	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/domain/shared"
	"github.com/cardstash/backend/internal/domain/vault"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation and input error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
)

// Marketplace error codes
const (
	// ErrCodeUnsupportedSite is used when no adapter is registered for a site
	ErrCodeUnsupportedSite = "ERR_UNSUPPORTED_SITE"
	// ErrCodeUpstreamUnavailable is used when a marketplace could not be reached
	ErrCodeUpstreamUnavailable = "ERR_UPSTREAM_UNAVAILABLE"
	// ErrCodeUpstreamMalformed is used when a marketplace answered with an
	// undecodable payload
	ErrCodeUpstreamMalformed = "ERR_UPSTREAM_MALFORMED"
	// ErrCodeAutomationUnavailable is used when the browser automation service
	// failed its liveness probe
	ErrCodeAutomationUnavailable = "ERR_AUTOMATION_UNAVAILABLE"
	// ErrCodeVaultAccessDenied is used when the secret store rejected an operation
	ErrCodeVaultAccessDenied = "ERR_VAULT_ACCESS_DENIED"
	// ErrCodeSiteAuthRequired is used when a site needs credentials the caller
	// has not stored (or they expired)
	ErrCodeSiteAuthRequired = "ERR_SITE_AUTH_REQUIRED"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound: http.StatusNotFound,

	ErrCodeUnsupportedSite:       http.StatusBadRequest,
	ErrCodeUpstreamUnavailable:   http.StatusBadGateway,
	ErrCodeUpstreamMalformed:     http.StatusBadGateway,
	ErrCodeAutomationUnavailable: http.StatusServiceUnavailable,
	ErrCodeVaultAccessDenied:     http.StatusServiceUnavailable,
	ErrCodeSiteAuthRequired:      http.StatusUnprocessableEntity,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps shared.DomainError codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":        ErrCodeNotFound,
	"INVALID_INPUT":    ErrCodeBadRequest,
	"UNAUTHORIZED":     ErrCodeUnauthorized,
	"VALIDATION_ERROR": ErrCodeValidation,
	"INTERNAL_ERROR":   ErrCodeInternal,
}

// MapError classifies an error from the application layer into an API error
// code and message. Sentinels are matched with errors.Is so wrapped errors
// classify the same as bare ones; anything unrecognized maps to
// ErrCodeInternal with a generic message (the original text stays in logs,
// not in the response).
func MapError(err error) (code string, message string) {
	if err == nil {
		return "", ""
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		if mapped, ok := DomainErrorCodeMapping[domainErr.Code]; ok {
			return mapped, domainErr.Message
		}
		return ErrCodeInternal, domainErr.Message
	}

	switch {
	case errors.Is(err, marketplace.ErrNotAuthenticated):
		return ErrCodeUnauthorized, "Authentication required"
	case errors.Is(err, marketplace.ErrUnsupportedSite):
		return ErrCodeUnsupportedSite, "No adapter registered for this site"
	case errors.Is(err, marketplace.ErrAuthenticationRequired):
		return ErrCodeSiteAuthRequired, "Site credentials are missing or expired"
	case errors.Is(err, marketplace.ErrUpstreamUnavailable):
		return ErrCodeUpstreamUnavailable, "External marketplace is unavailable"
	case errors.Is(err, marketplace.ErrMalformedResponse):
		return ErrCodeUpstreamMalformed, "External marketplace answered with an unreadable response"
	case errors.Is(err, marketplace.ErrAutomationUnavailable):
		return ErrCodeAutomationUnavailable, "Browser automation service is unavailable"
	case errors.Is(err, marketplace.ErrVaultAccessDenied):
		return ErrCodeVaultAccessDenied, "Credential vault rejected the operation"
	case errors.Is(err, vault.ErrInvalidUserID), errors.Is(err, vault.ErrInvalidSite),
		errors.Is(err, vault.ErrEmptyCredential):
		return ErrCodeBadRequest, err.Error()
	case errors.Is(err, taxonomyapp.ErrIncompleteFilters),
		errors.Is(err, taxonomy.ErrInvalidLevel):
		return ErrCodeBadRequest, err.Error()
	}

	return ErrCodeInternal, "An unexpected error occurred"
}

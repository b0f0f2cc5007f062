package dto

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	taxonomyapp "github.com/cardstash/backend/internal/application/taxonomy"
	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/shared"
	"github.com/cardstash/backend/internal/domain/vault"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeUnsupportedSite, http.StatusBadRequest},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeUpstreamMalformed, http.StatusBadGateway},
		{ErrCodeAutomationUnavailable, http.StatusServiceUnavailable},
		{ErrCodeVaultAccessDenied, http.StatusServiceUnavailable},
		{ErrCodeSiteAuthRequired, http.StatusUnprocessableEntity},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}

	t.Run("unknown code defaults to 500", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("ERR_NO_SUCH_CODE"))
	})
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"not authenticated", marketplace.ErrNotAuthenticated, ErrCodeUnauthorized},
		{"unsupported site", marketplace.ErrUnsupportedSite, ErrCodeUnsupportedSite},
		{"wrapped unsupported site", fmt.Errorf("lookup: %w", marketplace.ErrUnsupportedSite), ErrCodeUnsupportedSite},
		{"site auth required", marketplace.ErrAuthenticationRequired, ErrCodeSiteAuthRequired},
		{"upstream unavailable", marketplace.ErrUpstreamUnavailable, ErrCodeUpstreamUnavailable},
		{"malformed response", marketplace.ErrMalformedResponse, ErrCodeUpstreamMalformed},
		{"automation down", marketplace.ErrAutomationUnavailable, ErrCodeAutomationUnavailable},
		{"vault denied", marketplace.ErrVaultAccessDenied, ErrCodeVaultAccessDenied},
		{"invalid site", vault.ErrInvalidSite, ErrCodeBadRequest},
		{"empty credential", vault.ErrEmptyCredential, ErrCodeBadRequest},
		{"incomplete filters", taxonomyapp.ErrIncompleteFilters, ErrCodeBadRequest},
		{"unclassified", errors.New("boom"), ErrCodeInternal},
		{"context cancelled", context.Canceled, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, message := MapError(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.NotEmpty(t, message)
		})
	}

	t.Run("domain error uses its own message", func(t *testing.T) {
		code, message := MapError(fmt.Errorf("refresh: %w", shared.ErrNotFound))
		assert.Equal(t, ErrCodeNotFound, code)
		assert.Equal(t, shared.ErrNotFound.Message, message)
	})

	t.Run("unclassified error text stays out of the response", func(t *testing.T) {
		_, message := MapError(errors.New("pq: password authentication failed"))
		assert.NotContains(t, message, "password")
	})

	t.Run("nil error", func(t *testing.T) {
		code, message := MapError(nil)
		assert.Empty(t, code)
		assert.Empty(t, message)
	})
}

// Package platforms contains the concrete marketplace adapters. Each adapter
// translates one upstream's proprietary API into the normalized listing model;
// the shared helpers here keep transport handling and error classification
// uniform across adapters.
package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/vault"
)

// maxResponseBytes is the maximum allowed upstream response size (10MB)
const maxResponseBytes = 10 * 1024 * 1024

// maxErrorBodyBytes caps how much of a rejection body is carried into the
// error, so a large upstream error page cannot bloat logs
const maxErrorBodyBytes = 2048

// CredentialSource is the narrow slice of the secret store adapters need:
// read-only access to one user's credential for one site. A (nil, nil)
// return means the user has no stored credential for the site.
type CredentialSource interface {
	Get(ctx context.Context, userID uuid.UUID, site marketplace.Platform) (*vault.Credential, error)
}

// doRequest executes the request and classifies the outcome: transport
// failures become ErrUpstreamUnavailable, 401/403 become
// ErrAuthenticationRequired, other non-2xx become an UpstreamError carrying
// the status and a bounded slice of the body. Only a readable 2xx returns
// bytes.
func doRequest(client *http.Client, req *http.Request, platform marketplace.Platform) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", marketplace.ErrUpstreamUnavailable, platform, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading response: %v", marketplace.ErrUpstreamUnavailable, platform, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s: HTTP %d", marketplace.ErrAuthenticationRequired, platform, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, marketplace.NewUpstreamError(platform, resp.StatusCode, truncateBody(body))
	}

	return body, nil
}

// decodeJSON unmarshals a 2xx body, mapping parse failures to
// ErrMalformedResponse so callers never see raw json errors.
func decodeJSON(platform marketplace.Platform, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %v", marketplace.ErrMalformedResponse, platform, err)
	}
	return nil
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		s = s[:maxErrorBodyBytes]
	}
	return s
}

// parseDecimal parses an upstream money string, returning zero for blank or
// unparseable values rather than failing the whole listing.
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// priceOutOfRange reports whether a listed price falls outside the caller's
// optional bounds. Adapters use it when the upstream cannot filter by price
// server-side.
func priceOutOfRange(price decimal.Decimal, min, max *decimal.Decimal) bool {
	if min != nil && price.LessThan(*min) {
		return true
	}
	if max != nil && price.GreaterThan(*max) {
		return true
	}
	return false
}

// strPtr returns a pointer to s, or nil when s is blank. Adapters use it so
// fields the upstream did not report stay nil instead of pointing at "".
func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func intPtr(n int) *int {
	return &n
}

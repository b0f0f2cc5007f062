package vault

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/infrastructure/telemetry"
)

// TestResult is the outcome of one credential verification. Details carries a
// coarse failure classification derived from the error chain, never from the
// upstream's own error codes.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Failure classifications for TestResult.Details.
const (
	DetailNetworkUnreachable = "network unreachable"
	DetailHostNotFound       = "host not found"
	DetailConnectionReset    = "connection reset"
	DetailAutomationDown     = "automation service unavailable"
	DetailVaultAccessDenied  = "vault access denied"
	DetailTimeout            = "timeout"
	DetailAuthRejected       = "credentials rejected"
)

// VerifierSource resolves the credential verifier for a site.
type VerifierSource interface {
	Verifier(platform marketplace.Platform) (marketplace.CredentialVerifier, error)
}

// Dispatcher routes credential tests to the per-site verification routines.
// The dispatch table is fixed at registry construction: an unknown site is a
// terminal error and no adapter is ever called for it.
type Dispatcher struct {
	verifiers VerifierSource
	metrics   *telemetry.MarketplaceMetrics
	logger    *zap.Logger
}

// DispatcherOption is a functional option for configuring the dispatcher
type DispatcherOption func(*Dispatcher)

// WithDispatcherMetrics wires marketplace metrics into the dispatcher
func WithDispatcherMetrics(metrics *telemetry.MarketplaceMetrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// NewDispatcher creates a new credential test Dispatcher
func NewDispatcher(verifiers VerifierSource, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		verifiers: verifiers,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Test verifies the user's stored credentials against the live site. The
// verification routine fetches its own credential from the vault and performs
// a minimal authenticated upstream call. A failed verification is a result,
// not an error; only an unknown site or missing caller identity errors out.
func (d *Dispatcher) Test(ctx context.Context, userID uuid.UUID, site marketplace.Platform) (*TestResult, error) {
	if userID == uuid.Nil {
		return nil, marketplace.ErrNotAuthenticated
	}
	if !site.IsValid() {
		return nil, marketplace.ErrUnsupportedSite
	}

	verifier, err := d.verifiers.Verifier(site)
	if err != nil {
		return nil, err
	}

	verifyErr := verifier.VerifyCredentials(ctx, userID)
	if verifyErr == nil {
		d.recordTest(ctx, site, telemetry.OutcomeSuccess)
		return &TestResult{
			Success: true,
			Message: site.DisplayName() + " credentials verified",
		}, nil
	}

	d.logger.Info("credential verification failed",
		zap.String("user_id", userID.String()),
		zap.String("site", string(site)),
		zap.Error(verifyErr))
	d.recordTest(ctx, site, testOutcome(verifyErr))

	return &TestResult{
		Success: false,
		Message: verifyErr.Error(),
		Details: ClassifyFailure(verifyErr),
	}, nil
}

// ClassifyFailure maps a verification error chain to a coarse Details string.
// Sentinel errors are checked first; transport failures fall back to net
// error inspection and message matching, since the stdlib does not expose
// sentinels for most of them.
func ClassifyFailure(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, marketplace.ErrAutomationUnavailable):
		return DetailAutomationDown
	case errors.Is(err, marketplace.ErrVaultAccessDenied):
		return DetailVaultAccessDenied
	case errors.Is(err, context.DeadlineExceeded):
		return DetailTimeout
	case errors.Is(err, marketplace.ErrAuthenticationRequired):
		return DetailAuthRejected
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return DetailTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return DetailHostNotFound
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such host"):
		return DetailHostNotFound
	case strings.Contains(msg, "connection reset"):
		return DetailConnectionReset
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "network is unreachable"),
		errors.Is(err, marketplace.ErrUpstreamUnavailable):
		return DetailNetworkUnreachable
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return DetailTimeout
	}
	return ""
}

func (d *Dispatcher) recordTest(ctx context.Context, site marketplace.Platform, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordCredentialTest(ctx, string(site), outcome)
}

func testOutcome(err error) string {
	switch {
	case errors.Is(err, marketplace.ErrAuthenticationRequired):
		return telemetry.OutcomeAuthFailed
	case errors.Is(err, marketplace.ErrUpstreamUnavailable),
		errors.Is(err, marketplace.ErrAutomationUnavailable):
		return telemetry.OutcomeUpstreamDown
	default:
		return telemetry.OutcomeError
	}
}

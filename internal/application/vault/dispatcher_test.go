package vault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/infrastructure/platforms"
)

type stubVerifier struct {
	err   error
	calls int
}

func (v *stubVerifier) VerifyCredentials(ctx context.Context, userID uuid.UUID) error {
	v.calls++
	return v.err
}

func TestDispatcher_Test(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("successful verification", func(t *testing.T) {
		registry := platforms.NewRegistry()
		registry.RegisterVerifier(marketplace.PlatformEbay, &stubVerifier{})

		d := NewDispatcher(registry, zap.NewNop())
		result, err := d.Test(ctx, userID, marketplace.PlatformEbay)

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "eBay credentials verified", result.Message)
		assert.Empty(t, result.Details)
	})

	t.Run("failed verification is a result, not an error", func(t *testing.T) {
		registry := platforms.NewRegistry()
		registry.RegisterVerifier(marketplace.PlatformSportlots, &stubVerifier{
			err: marketplace.ErrAuthenticationRequired,
		})

		d := NewDispatcher(registry, zap.NewNop())
		result, err := d.Test(ctx, userID, marketplace.PlatformSportlots)

		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, DetailAuthRejected, result.Details)
		assert.NotEmpty(t, result.Message)
	})

	t.Run("unknown site is terminal and calls no verifier", func(t *testing.T) {
		verifier := &stubVerifier{}
		registry := platforms.NewRegistry()
		registry.RegisterVerifier(marketplace.PlatformEbay, verifier)

		d := NewDispatcher(registry, zap.NewNop())

		_, err := d.Test(ctx, userID, marketplace.Platform("comc"))
		assert.ErrorIs(t, err, marketplace.ErrUnsupportedSite)
		assert.Zero(t, verifier.calls)
	})

	t.Run("known site without a registered verifier", func(t *testing.T) {
		d := NewDispatcher(platforms.NewRegistry(), zap.NewNop())
		_, err := d.Test(ctx, userID, marketplace.PlatformMySlabs)
		assert.ErrorIs(t, err, marketplace.ErrUnsupportedSite)
	})

	t.Run("missing caller identity", func(t *testing.T) {
		d := NewDispatcher(platforms.NewRegistry(), zap.NewNop())
		_, err := d.Test(ctx, uuid.Nil, marketplace.PlatformEbay)
		assert.ErrorIs(t, err, marketplace.ErrNotAuthenticated)
	})
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "automation service down",
			err:  fmt.Errorf("login: %w", marketplace.ErrAutomationUnavailable),
			want: DetailAutomationDown,
		},
		{
			name: "vault access denied",
			err:  fmt.Errorf("get credential: %w", marketplace.ErrVaultAccessDenied),
			want: DetailVaultAccessDenied,
		},
		{
			name: "context deadline",
			err:  fmt.Errorf("request: %w", context.DeadlineExceeded),
			want: DetailTimeout,
		},
		{
			name: "net timeout",
			err:  fmt.Errorf("request: %w", error(timeoutErr{})),
			want: DetailTimeout,
		},
		{
			name: "dns failure",
			err:  fmt.Errorf("request: %w", &net.DNSError{Err: "no such host", Name: "api.example.com", IsNotFound: true}),
			want: DetailHostNotFound,
		},
		{
			name: "connection reset",
			err:  errors.New("read tcp 10.0.0.1:443: connection reset by peer"),
			want: DetailConnectionReset,
		},
		{
			name: "connection refused",
			err:  errors.New("dial tcp 10.0.0.1:443: connect: connection refused"),
			want: DetailNetworkUnreachable,
		},
		{
			name: "wrapped upstream unavailable",
			err:  fmt.Errorf("search: %w", marketplace.ErrUpstreamUnavailable),
			want: DetailNetworkUnreachable,
		},
		{
			name: "rejected credentials",
			err:  fmt.Errorf("verify: %w", marketplace.ErrAuthenticationRequired),
			want: DetailAuthRejected,
		},
		{
			name: "unclassified",
			err:  errors.New("something odd"),
			want: "",
		},
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFailure(tt.err))
		})
	}
}

package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	logger, err := NewForEnvironment("development")
	require.NoError(t, err)

	ctx := context.Background()
	ctxWithLogger := WithContext(ctx, logger)

	retrievedLogger := FromContext(ctxWithLogger)
	assert.NotNil(t, retrievedLogger)
}

func TestFromContext_NotFound(t *testing.T) {
	ctx := context.Background()
	logger := FromContext(ctx)

	// Should return a no-op logger
	assert.NotNil(t, logger)
}

func TestWithRequestID(t *testing.T) {
	logger, err := NewForEnvironment("development")
	require.NoError(t, err)

	ctx := context.Background()
	requestID := "req-123"

	newCtx, newLogger := WithRequestID(ctx, logger, requestID)

	assert.NotNil(t, newCtx)
	assert.NotNil(t, newLogger)
	assert.Equal(t, requestID, GetRequestID(newCtx))
}

func TestWithUserID(t *testing.T) {
	logger, err := NewForEnvironment("development")
	require.NoError(t, err)

	ctx := context.Background()
	userID := "b9f2f3f0-25f5-4a77-a53b-94e4a9a73f01"

	newCtx, newLogger := WithUserID(ctx, logger, userID)

	assert.NotNil(t, newCtx)
	assert.NotNil(t, newLogger)
	assert.Equal(t, userID, GetUserID(newCtx))
}

func TestWithPlatform(t *testing.T) {
	logger, err := NewForEnvironment("development")
	require.NoError(t, err)

	ctx := context.Background()

	newCtx, newLogger := WithPlatform(ctx, logger, "ebay")

	assert.NotNil(t, newCtx)
	assert.NotNil(t, newLogger)
	assert.Equal(t, "ebay", GetPlatform(newCtx))
}

func TestGetRequestID_NotFound(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
}

func TestGetUserID_NotFound(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetUserID(ctx))
}

func TestGetPlatform_NotFound(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetPlatform(ctx))
}

func TestContextChaining(t *testing.T) {
	logger, err := NewForEnvironment("development")
	require.NoError(t, err)

	ctx := context.Background()

	// Chain multiple context enrichments
	ctx, logger = WithRequestID(ctx, logger, "req-1")
	ctx, logger = WithUserID(ctx, logger, "user-1")
	ctx, logger = WithPlatform(ctx, logger, "sportlots")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
	assert.Equal(t, "sportlots", GetPlatform(ctx))
	assert.NotNil(t, logger)
}

func TestContextKeys(t *testing.T) {
	// Verify context keys are unique
	assert.NotEqual(t, LoggerKey, RequestIDKey)
	assert.NotEqual(t, RequestIDKey, UserIDKey)
	assert.NotEqual(t, UserIDKey, PlatformKey)
	assert.NotEqual(t, LoggerKey, PlatformKey)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
}

func TestGetSpanID_NoSpan(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetSpanID(ctx))
}

func TestWithTraceContext_NoSpan(t *testing.T) {
	logger := zap.NewNop()
	enriched := WithTraceContext(context.Background(), logger)
	// Without a valid span the logger comes back unchanged
	assert.Equal(t, logger, enriched)
}

func TestL_InjectsContextFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx := context.Background()
	ctx, logger = WithRequestID(ctx, logger, "req-42")
	ctx, logger = WithPlatform(ctx, logger, "myslabs")
	ctx = WithContext(ctx, logger)

	L(ctx).Info("searching cards")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "searching cards", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "myslabs", fields["platform"])
}

func TestL_NoLoggerInContext(t *testing.T) {
	// Must not panic when the context carries no logger
	assert.NotPanics(t, func() {
		L(context.Background()).Info("dropped")
	})
}

func TestContextLogger_With(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	ctx := WithContext(context.Background(), logger)

	L(ctx).With(zap.String("site", "mycardpost")).Warn("credential check failed")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "mycardpost", logs.All()[0].ContextMap()["site"])
}

func TestWithLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	WithLogger(context.Background(), logger).Info("explicit logger")

	require.Equal(t, 1, logs.Len())
}

func TestContextLogger_Zap(t *testing.T) {
	logger := zap.NewNop()
	ctx := WithContext(context.Background(), logger)

	zl := L(ctx).Zap()
	assert.NotNil(t, zl)
}

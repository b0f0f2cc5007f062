// Package router assembles the gin engine, middleware chain, and versioned
// API routes.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/infrastructure/auth"
	"github.com/cardstash/backend/internal/infrastructure/logger"
	"github.com/cardstash/backend/internal/infrastructure/telemetry"
	"github.com/cardstash/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config holds router assembly configuration
type Config struct {
	// Logger is the base logger for request logging and recovery
	Logger *zap.Logger
	// JWTService validates bearer tokens; nil disables authentication
	// (tests only)
	JWTService *auth.JWTService
	// MeterProvider feeds the HTTP metrics middleware; nil disables it
	MeterProvider *telemetry.MeterProvider
	// TracingEnabled toggles the otelgin server span middleware
	TracingEnabled bool
	// CORS configures allowed origins; zero value rejects cross-origin calls
	CORS middleware.CORSConfig
	// BodyLimitBytes caps request body size; 0 uses DefaultBodyLimit
	BodyLimitBytes int64
	// RateLimitPerMinute caps requests per caller per minute; 0 uses
	// DefaultRateLimitPerMinute
	RateLimitPerMinute int
	// APIVersion is the version path segment (default "v1")
	APIVersion string
}

// Defaults for unset Config fields.
const (
	DefaultBodyLimit          = int64(1 << 20) // 1 MiB
	DefaultRateLimitPerMinute = 120
	DefaultAPIVersion         = "v1"
)

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	config     Config
	registrars []RouteRegistrar
}

// New creates a Router with the full middleware chain installed. Probe
// routes registered directly on Engine() bypass authentication; everything
// under the API group requires a valid bearer token.
func New(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BodyLimitBytes <= 0 {
		cfg.BodyLimitBytes = DefaultBodyLimit
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}

	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		logger.GinMiddleware(cfg.Logger, "/healthz", "/readyz"),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.Secure(),
		middleware.BodyLimit(cfg.BodyLimitBytes),
	)
	if cfg.TracingEnabled {
		engine.Use(middleware.Tracing())
	}
	if cfg.MeterProvider != nil {
		engine.Use(middleware.HTTPMetrics(cfg.MeterProvider))
	}

	return &Router{
		engine: engine,
		config: cfg,
	}
}

// Engine returns the underlying gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Register adds a RouteRegistrar to be mounted under the API group
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts all registered routes under the authenticated, rate-limited
// API group
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.config.APIVersion)

	if r.config.JWTService != nil {
		api.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
			JWTService: r.config.JWTService,
			Logger:     r.config.Logger,
		}))
	}
	if r.config.TracingEnabled {
		api.Use(middleware.TraceEnrichment())
	}
	api.Use(middleware.RateLimit(
		middleware.NewRateLimiter(r.config.RateLimitPerMinute, time.Minute)))

	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	searchapp "github.com/cardstash/backend/internal/application/search"
	taxonomyapp "github.com/cardstash/backend/internal/application/taxonomy"
	vaultapp "github.com/cardstash/backend/internal/application/vault"
	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/infrastructure/auth"
	"github.com/cardstash/backend/internal/infrastructure/cache"
	"github.com/cardstash/backend/internal/infrastructure/config"
	"github.com/cardstash/backend/internal/infrastructure/logger"
	"github.com/cardstash/backend/internal/infrastructure/persistence"
	"github.com/cardstash/backend/internal/infrastructure/platforms"
	"github.com/cardstash/backend/internal/infrastructure/secretstore"
	"github.com/cardstash/backend/internal/infrastructure/telemetry"
	"github.com/cardstash/backend/internal/interfaces/http/handler"
	"github.com/cardstash/backend/internal/interfaces/http/middleware"
	"github.com/cardstash/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	ctx := context.Background()

	// Initialize OTEL log export and bridge zap into it when enabled, so the
	// same records reach both stdout and the collector
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Warn("Failed to initialize OTEL log export, continuing with local logs only", zap.Error(err))
	} else if loggerProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
				log.Error("Error shutting down OTEL logger provider", zap.Error(err))
			}
		}()
	}

	log.Info("Starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Metrics
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Continuous profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.ProfilingServer,
		ApplicationName:     cfg.Telemetry.ServiceName,
		Environment:         cfg.App.Env,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileInuseSpace:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Initialize database with zap-backed GORM logger
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database connection", zap.Error(err))
		}
	}()
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("dbname", cfg.Database.DBName),
	)

	if tracerProvider.IsEnabled() {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			SlowQueryThresh:  200 * time.Millisecond,
			DBSystem:         "postgresql",
			WithoutVariables: cfg.App.Env == "production",
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Credential store backing the vault
	store, err := secretstore.New(&cfg.Vault, log)
	if err != nil {
		log.Fatal("Failed to initialize secret store", zap.Error(err))
	}
	log.Info("Secret store ready", zap.String("backend", cfg.Vault.Backend))

	// Selector option cache: tiered over Redis when reachable, memory-only
	// otherwise
	cacheCfg := taxonomy.DefaultCacheConfig()
	cacheCfg.L1TTL = cfg.Taxonomy.L1TTL
	cacheCfg.L2TTL = cfg.Taxonomy.L2TTL
	cacheCfg.L1MaxSize = cfg.Taxonomy.L1MaxSize
	cacheFactory := cache.NewOptionCacheFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithCacheConfig(cacheCfg),
	)
	optionCache, err := cacheFactory.CreateCache()
	if err != nil {
		log.Fatal("Failed to create option cache", zap.Error(err))
	}
	defer func() {
		if err := optionCache.Close(); err != nil {
			log.Error("Error closing option cache", zap.Error(err))
		}
	}()

	tieredCache, tiered := optionCache.(*cache.TieredOptionCache)
	if tiered {
		if err := tieredCache.StartInvalidationSubscription(ctx); err != nil {
			log.Warn("Failed to start cache invalidation subscription", zap.Error(err))
		}
	}

	// Domain metrics; the cache stats provider is only meaningful for the
	// tiered cache
	var marketplaceMetrics *telemetry.MarketplaceMetrics
	if meterProvider.IsEnabled() {
		metricsCfg := telemetry.MarketplaceMetricsConfig{
			Meter:  meterProvider.Meter("cardstash.marketplace"),
			Logger: log,
		}
		if tiered {
			metricsCfg.CacheStats = tieredCache
		}
		marketplaceMetrics, err = telemetry.NewMarketplaceMetrics(metricsCfg)
		if err != nil {
			log.Warn("Failed to initialize marketplace metrics", zap.Error(err))
			marketplaceMetrics = nil
		} else {
			defer marketplaceMetrics.Stop()
		}
	}

	// Repositories
	selectorOptionRepo := persistence.NewGormSelectorOptionRepository(db.DB)
	siteProfileRepo := persistence.NewGormSiteProfileRepository(db.DB)

	// Vault service doubles as the credential source for platform adapters
	vaultService := vaultapp.NewService(store, siteProfileRepo, log)

	// Platform adapter registry
	registry, err := platforms.NewDefaultRegistry(cfg.Platforms, cfg.Automation, vaultService, log)
	if err != nil {
		log.Fatal("Failed to build platform registry", zap.Error(err))
	}

	// Application services
	var aggregatorOpts []searchapp.AggregatorOption
	var taxonomyOpts []taxonomyapp.ServiceOption
	var dispatcherOpts []vaultapp.DispatcherOption
	if marketplaceMetrics != nil {
		aggregatorOpts = append(aggregatorOpts, searchapp.WithMetrics(marketplaceMetrics))
		taxonomyOpts = append(taxonomyOpts, taxonomyapp.WithMetrics(marketplaceMetrics))
		dispatcherOpts = append(dispatcherOpts, vaultapp.WithDispatcherMetrics(marketplaceMetrics))
	}
	taxonomyOpts = append(taxonomyOpts, taxonomyapp.WithCacheConfig(cacheCfg))

	aggregator := searchapp.NewAggregatorService(registry, log, aggregatorOpts...)
	taxonomyService := taxonomyapp.NewService(selectorOptionRepo, optionCache, registry, log, taxonomyOpts...)
	dispatcher := vaultapp.NewDispatcher(registry, log, dispatcherOpts...)

	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP handlers
	searchHandler := handler.NewSearchHandler(aggregator)
	taxonomyHandler := handler.NewTaxonomyHandler(taxonomyService)
	vaultHandler := handler.NewVaultHandler(vaultService, dispatcher)

	healthHandler := handler.NewHealthHandler().
		AddCheck("database", func(ctx context.Context) error {
			return db.Ping()
		})
	if tiered {
		healthHandler.AddCheck("redis", tieredCache.Ping)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.New(router.Config{
		Logger:         log,
		JWTService:     jwtService,
		MeterProvider:  meterProvider,
		TracingEnabled: tracerProvider.IsEnabled(),
		CORS: middleware.CORSConfig{
			AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
			AllowMethods:     cfg.HTTP.CORSAllowMethods,
			AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		},
		BodyLimitBytes: cfg.HTTP.MaxBodySize,
	})

	engine := r.Engine()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	healthHandler.RegisterRoutes(engine)

	r.Register(searchHandler).
		Register(taxonomyHandler).
		Register(vaultHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

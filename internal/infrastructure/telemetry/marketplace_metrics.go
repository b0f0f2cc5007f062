// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var errNilMeter = errors.New("NewMarketplaceMetrics: meter cannot be nil")

// MarketplaceMetrics tracks upstream marketplace activity: search volume and
// latency per platform, credential test outcomes, taxonomy refreshes, and
// selector option cache effectiveness.
type MarketplaceMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	searchTotal         *Counter
	searchDuration      *Histogram
	credentialTestTotal *Counter
	taxonomyRefreshes   *Counter

	cacheLocalHits  *Gauge
	cacheSharedHits *Gauge
	cacheMisses     *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	cacheStats CacheStatsProvider
}

// CacheStatsProvider exposes option cache counters for periodic collection,
// so the telemetry layer does not depend on the cache implementation.
type CacheStatsProvider interface {
	Stats() (localHits, sharedHits, misses int64)
}

// MarketplaceMetricsConfig holds configuration for marketplace metrics.
type MarketplaceMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	CacheStats      CacheStatsProvider
}

// Outcome values for search and credential test counters.
const (
	OutcomeSuccess      = "success"
	OutcomeUpstreamDown = "upstream_unavailable"
	OutcomeAuthFailed   = "authentication_required"
	OutcomeMalformed    = "malformed_response"
	OutcomeError        = "error"
)

// NewMarketplaceMetrics creates a new MarketplaceMetrics instance.
func NewMarketplaceMetrics(cfg MarketplaceMetricsConfig) (*MarketplaceMetrics, error) {
	if cfg.Meter == nil {
		return nil, errNilMeter
	}

	m := &MarketplaceMetrics{
		meter:      cfg.Meter,
		logger:     cfg.Logger,
		cacheStats: cfg.CacheStats,
		stopChan:   make(chan struct{}),
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	var err error
	m.searchTotal, err = NewCounter(m.meter,
		"marketplace_search_total",
		"Total marketplace searches by platform and outcome",
		"{search}")
	if err != nil {
		return nil, err
	}

	m.searchDuration, err = NewHistogram(m.meter, HistogramOpts{
		Name:        "marketplace_search_duration_seconds",
		Description: "Upstream marketplace search duration",
		Unit:        "s",
		Boundaries:  UpstreamDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.credentialTestTotal, err = NewCounter(m.meter,
		"marketplace_credential_test_total",
		"Total credential verifications by platform and outcome",
		"{test}")
	if err != nil {
		return nil, err
	}

	m.taxonomyRefreshes, err = NewCounter(m.meter,
		"taxonomy_refresh_total",
		"Total taxonomy level refreshes by level and outcome",
		"{refresh}")
	if err != nil {
		return nil, err
	}

	m.cacheLocalHits, err = NewGauge(m.meter,
		"option_cache_local_hits",
		"Cumulative local-tier option cache hits",
		"{hit}")
	if err != nil {
		return nil, err
	}
	m.cacheSharedHits, err = NewGauge(m.meter,
		"option_cache_shared_hits",
		"Cumulative shared-tier option cache hits",
		"{hit}")
	if err != nil {
		return nil, err
	}
	m.cacheMisses, err = NewGauge(m.meter,
		"option_cache_misses",
		"Cumulative option cache misses",
		"{miss}")
	if err != nil {
		return nil, err
	}

	if cfg.CacheStats != nil {
		interval := cfg.CollectInterval
		if interval == 0 {
			interval = time.Minute
		}
		m.collectOnce.Do(func() {
			go m.collectLoop(interval)
		})
	}

	return m, nil
}

// RecordSearch records one upstream search with its outcome and duration.
func (m *MarketplaceMetrics) RecordSearch(ctx context.Context, platform, outcome string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		AttrPlatform.String(platform),
		AttrOutcome.String(outcome),
	}
	m.searchTotal.Inc(ctx, attrs...)
	m.searchDuration.RecordDuration(ctx, duration, attrs...)
}

// RecordCredentialTest records one credential verification outcome.
func (m *MarketplaceMetrics) RecordCredentialTest(ctx context.Context, platform, outcome string) {
	m.credentialTestTotal.Inc(ctx,
		AttrPlatform.String(platform),
		AttrOutcome.String(outcome))
}

// RecordTaxonomyRefresh records one taxonomy level refresh.
func (m *MarketplaceMetrics) RecordTaxonomyRefresh(ctx context.Context, level, outcome string) {
	m.taxonomyRefreshes.Inc(ctx,
		AttrLevel.String(level),
		AttrOutcome.String(outcome))
}

// Stop halts the periodic cache stats collector.
func (m *MarketplaceMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}

func (m *MarketplaceMetrics) collectLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.collectCacheStats()
		}
	}
}

func (m *MarketplaceMetrics) collectCacheStats() {
	ctx := context.Background()
	localHits, sharedHits, misses := m.cacheStats.Stats()
	m.cacheLocalHits.Record(ctx, localHits)
	m.cacheSharedHits.Record(ctx, sharedHits)
	m.cacheMisses.Record(ctx, misses)
}

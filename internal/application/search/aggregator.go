// Package search fans a card or set search out across marketplace adapters
// and folds the per-platform results into one aggregate response.
package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/infrastructure/telemetry"
)

// AggregateCardResult is the merged output of a fan-out card search. Results
// holds one entry per requested platform in request order; a failed platform
// contributes an empty result, never a hole.
type AggregateCardResult struct {
	Results      []marketplace.CardSearchResult
	TotalResults int
}

// AggregateSetResult is the merged output of a fan-out set search.
type AggregateSetResult struct {
	Results      []marketplace.SetSearchResult
	TotalResults int
}

// AggregatorService runs searches across platforms concurrently.
type AggregatorService struct {
	registry marketplace.AdapterRegistry
	metrics  *telemetry.MarketplaceMetrics
	logger   *zap.Logger
}

// AggregatorOption is a functional option for configuring the service
type AggregatorOption func(*AggregatorService)

// WithMetrics wires marketplace metrics into the aggregator
func WithMetrics(metrics *telemetry.MarketplaceMetrics) AggregatorOption {
	return func(s *AggregatorService) {
		s.metrics = metrics
	}
}

// NewAggregatorService creates a new AggregatorService
func NewAggregatorService(registry marketplace.AdapterRegistry, logger *zap.Logger, opts ...AggregatorOption) *AggregatorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AggregatorService{
		registry: registry,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchCards fans a card search out to the requested platforms. An empty
// platform list means every platform with a card adapter. Each platform runs
// in its own goroutine; a platform failure is logged and contributes an empty
// result so the remaining platforms still answer.
func (s *AggregatorService) SearchCards(ctx context.Context, userID uuid.UUID, platforms []marketplace.Platform, params marketplace.CardSearchParams) (*AggregateCardResult, error) {
	if userID == uuid.Nil {
		return nil, marketplace.ErrNotAuthenticated
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(platforms) == 0 {
		platforms = s.registry.CardPlatforms()
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "search", "cards")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrQuery, params.Query,
		"platforms_count", len(platforms),
	)

	results := make([]marketplace.CardSearchResult, len(platforms))
	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func(slot int, platform marketplace.Platform) {
			defer wg.Done()
			results[slot] = s.searchCardsOn(ctx, userID, platform, params)
		}(i, platform)
	}
	wg.Wait()

	agg := &AggregateCardResult{Results: results}
	for _, r := range results {
		agg.TotalResults += r.TotalCount
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrResults, agg.TotalResults)
	return agg, nil
}

// SearchSets fans a set search out to the requested platforms, with the same
// degradation semantics as SearchCards.
func (s *AggregatorService) SearchSets(ctx context.Context, userID uuid.UUID, platforms []marketplace.Platform, params marketplace.SetSearchParams) (*AggregateSetResult, error) {
	if userID == uuid.Nil {
		return nil, marketplace.ErrNotAuthenticated
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(platforms) == 0 {
		platforms = s.registry.SetPlatforms()
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "search", "sets")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrQuery, params.SetName,
		"platforms_count", len(platforms),
	)

	results := make([]marketplace.SetSearchResult, len(platforms))
	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func(slot int, platform marketplace.Platform) {
			defer wg.Done()
			results[slot] = s.searchSetsOn(ctx, userID, platform, params)
		}(i, platform)
	}
	wg.Wait()

	agg := &AggregateSetResult{Results: results}
	for _, r := range results {
		agg.TotalResults += r.TotalCount
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrResults, agg.TotalResults)
	return agg, nil
}

// searchCardsOn runs one platform's card search, degrading every failure to
// an empty contribution.
func (s *AggregatorService) searchCardsOn(ctx context.Context, userID uuid.UUID, platform marketplace.Platform, params marketplace.CardSearchParams) marketplace.CardSearchResult {
	empty := marketplace.CardSearchResult{
		Listings: []marketplace.CardListing{},
		Platform: platform,
	}

	adapter, err := s.registry.CardAdapter(platform)
	if err != nil {
		s.logger.Warn("no card adapter for platform",
			zap.String("platform", string(platform)),
			zap.Error(err))
		s.recordSearch(ctx, platform, err, 0)
		return empty
	}

	start := time.Now()
	result, err := adapter.SearchCards(ctx, userID, params)
	s.recordSearch(ctx, platform, err, time.Since(start))
	if err != nil {
		s.logger.Warn("card search failed",
			zap.String("platform", string(platform)),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return empty
	}
	if result == nil {
		// nil-without-error violates the adapter contract
		s.logger.Warn("card adapter returned no result",
			zap.String("platform", string(platform)))
		return empty
	}
	if result.Listings == nil {
		result.Listings = []marketplace.CardListing{}
	}
	return *result
}

func (s *AggregatorService) searchSetsOn(ctx context.Context, userID uuid.UUID, platform marketplace.Platform, params marketplace.SetSearchParams) marketplace.SetSearchResult {
	empty := marketplace.SetSearchResult{
		Listings: []marketplace.SetListing{},
		Platform: platform,
	}

	adapter, err := s.registry.SetAdapter(platform)
	if err != nil {
		s.logger.Warn("no set adapter for platform",
			zap.String("platform", string(platform)),
			zap.Error(err))
		s.recordSearch(ctx, platform, err, 0)
		return empty
	}

	start := time.Now()
	result, err := adapter.SearchSets(ctx, userID, params)
	s.recordSearch(ctx, platform, err, time.Since(start))
	if err != nil {
		s.logger.Warn("set search failed",
			zap.String("platform", string(platform)),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return empty
	}
	if result == nil {
		s.logger.Warn("set adapter returned no result",
			zap.String("platform", string(platform)))
		return empty
	}
	if result.Listings == nil {
		result.Listings = []marketplace.SetListing{}
	}
	return *result
}

func (s *AggregatorService) recordSearch(ctx context.Context, platform marketplace.Platform, err error, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSearch(ctx, string(platform), searchOutcome(err), duration)
}

func searchOutcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, marketplace.ErrUpstreamUnavailable),
		errors.Is(err, marketplace.ErrAutomationUnavailable):
		return telemetry.OutcomeUpstreamDown
	case errors.Is(err, marketplace.ErrAuthenticationRequired):
		return telemetry.OutcomeAuthFailed
	case errors.Is(err, marketplace.ErrMalformedResponse):
		return telemetry.OutcomeMalformed
	default:
		return telemetry.OutcomeError
	}
}

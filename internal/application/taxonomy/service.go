// Package taxonomy aggregates per-platform category vocabularies into the
// shared selector option tree and serves level queries through the tiered
// cache.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/shared"
	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/infrastructure/telemetry"
)

var (
	// ErrIncompleteFilters indicates a level query whose parent filters do
	// not cover every ancestor level.
	ErrIncompleteFilters = errors.New("taxonomy: parent filters must name every ancestor level")
)

// ProviderSource lists the taxonomy providers the aggregation fans out over.
type ProviderSource interface {
	Providers() []taxonomy.Provider
}

// Service answers selector option queries and refreshes levels from the
// platform vocabularies.
type Service struct {
	repo      taxonomy.Repository
	cache     taxonomy.OptionCache
	providers ProviderSource
	config    taxonomy.CacheConfig
	metrics   *telemetry.MarketplaceMetrics
	logger    *zap.Logger
}

// ServiceOption is a functional option for configuring the service
type ServiceOption func(*Service)

// WithCacheConfig sets TTLs used when populating the cache
func WithCacheConfig(cfg taxonomy.CacheConfig) ServiceOption {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithMetrics wires marketplace metrics into the service
func WithMetrics(metrics *telemetry.MarketplaceMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// NewService creates a new taxonomy Service
func NewService(repo taxonomy.Repository, cache taxonomy.OptionCache, providers ProviderSource, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:      repo,
		cache:     cache,
		providers: providers,
		config:    taxonomy.DefaultCacheConfig(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Options returns the selector options for one level under the given ancestor
// path, serving from the cache when possible. An unknown branch (filters that
// resolve to no node) returns an empty list, not an error.
func (s *Service) Options(ctx context.Context, level taxonomy.SelectorLevel, parents taxonomy.ParentFilters) ([]taxonomy.SelectorOption, error) {
	if !level.IsValid() {
		return nil, taxonomy.ErrInvalidLevel
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "taxonomy", "options")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrLevel, string(level))

	key := taxonomy.OptionCacheKey(level, parents)
	if cached, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("option cache read failed",
			zap.String("key", key),
			zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	parentID, found, err := s.resolveParent(ctx, level, parents)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !found {
		return []taxonomy.SelectorOption{}, nil
	}

	options, err := s.repo.FindChildren(ctx, parentID, level)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if options == nil {
		options = []taxonomy.SelectorOption{}
	}

	if err := s.cache.Set(ctx, key, options, s.config.L2TTL); err != nil {
		s.logger.Warn("option cache write failed",
			zap.String("key", key),
			zap.Error(err))
	}
	return options, nil
}

// Refresh re-aggregates one (level, ancestor path) from every platform
// vocabulary and overwrites the stored children. A provider failure degrades
// to that platform contributing nothing; the refresh still completes with the
// remaining platforms. When every provider fails the refresh errors out and
// the stored children stay untouched.
func (s *Service) Refresh(ctx context.Context, level taxonomy.SelectorLevel, parents taxonomy.ParentFilters) ([]taxonomy.SelectorOption, error) {
	if !level.IsValid() {
		return nil, taxonomy.ErrInvalidLevel
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "taxonomy", "refresh")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrLevel, string(level))

	parentID, found, err := s.resolveParent(ctx, level, parents)
	if err != nil {
		s.recordRefresh(ctx, level, telemetry.OutcomeError)
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !found {
		s.recordRefresh(ctx, level, telemetry.OutcomeError)
		return nil, fmt.Errorf("taxonomy: ancestor path does not exist: %w", shared.ErrNotFound)
	}

	nodes, err := s.aggregate(ctx, level, parents, parentID)
	if err != nil {
		s.recordRefresh(ctx, level, telemetry.OutcomeError)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.repo.ReplaceChildren(ctx, parentID, level, nodes); err != nil {
		s.recordRefresh(ctx, level, telemetry.OutcomeError)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if parentID != nil {
		if err := s.relinkParent(ctx, *parentID, nodes); err != nil {
			s.logger.Warn("failed to update parent child links",
				zap.String("parent_id", parentID.String()),
				zap.Error(err))
		}
	}

	key := taxonomy.OptionCacheKey(level, parents)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.Warn("option cache invalidation failed",
			zap.String("key", key),
			zap.Error(err))
	}
	if err := s.cache.Set(ctx, key, nodes, s.config.L2TTL); err != nil {
		s.logger.Warn("option cache write failed",
			zap.String("key", key),
			zap.Error(err))
	}

	s.recordRefresh(ctx, level, telemetry.OutcomeSuccess)
	telemetry.SetAttributes(span, telemetry.SpanAttrResults, len(nodes))
	return nodes, nil
}

// aggregate merges every provider's vocabulary for (level, parents) into
// canonical nodes. Merging is case-insensitive: the first-seen casing becomes
// the canonical display value, and later divergent casings are logged so
// vocabulary drift across platforms stays observable.
//
// A total outage is not an empty vocabulary: when every provider fails the
// aggregation errors out instead of reporting zero nodes, so a refresh never
// overwrites stored children with the artifact of unreachable upstreams.
func (s *Service) aggregate(ctx context.Context, level taxonomy.SelectorLevel, parents taxonomy.ParentFilters, parentID *uuid.UUID) ([]taxonomy.SelectorOption, error) {
	merged := make(map[string]*taxonomy.SelectorOption)
	order := make([]string, 0)

	providers := s.providers.Providers()
	failed := 0
	for _, provider := range providers {
		platform := provider.Platform()
		options, err := provider.ListOptions(ctx, level, parents)
		if err != nil {
			s.logger.Warn("taxonomy provider failed",
				zap.String("platform", string(platform)),
				zap.String("level", string(level)),
				zap.Error(err))
			failed++
			continue
		}

		for _, opt := range options {
			key := taxonomy.MergeKey(opt.Value)
			if key == "" {
				continue
			}

			node, seen := merged[key]
			if !seen {
				node, err = taxonomy.NewSelectorOption(level, opt.Value, parentID)
				if err != nil {
					return nil, err
				}
				merged[key] = node
				order = append(order, key)
			} else if node.Value != opt.Value {
				s.logger.Warn("platform casing diverges from canonical value",
					zap.String("platform", string(platform)),
					zap.String("canonical", node.Value),
					zap.String("reported", opt.Value))
			}

			codes := opt.NativeCodes
			if len(codes) == 0 {
				// The platform keys by display value
				codes = []string{opt.Value}
			}
			node.PlatformData.Add(platform, codes...)
		}
	}

	if len(providers) > 0 && failed == len(providers) {
		return nil, fmt.Errorf("taxonomy: refreshing %s: all %d providers failed: %w",
			level, failed, marketplace.ErrUpstreamUnavailable)
	}

	nodes := make([]taxonomy.SelectorOption, 0, len(merged))
	for _, key := range order {
		nodes = append(nodes, *merged[key])
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].MergeKey < nodes[j].MergeKey })
	return nodes, nil
}

// relinkParent rewrites the parent's denormalized child id list after a
// refresh replaced its children.
func (s *Service) relinkParent(ctx context.Context, parentID uuid.UUID, nodes []taxonomy.SelectorOption) error {
	parent, err := s.repo.FindByID(ctx, parentID)
	if err != nil {
		return err
	}
	parent.ChildIDs = make([]uuid.UUID, 0, len(nodes))
	for _, node := range nodes {
		parent.ChildIDs = append(parent.ChildIDs, node.ID)
	}
	parent.Touch()
	return s.repo.Save(ctx, parent)
}

// resolveParent walks the ancestor path named by parents down to the node a
// level query hangs off. Returns (nil, true) at the sport level, and
// found=false when some filter value resolves to no node.
func (s *Service) resolveParent(ctx context.Context, level taxonomy.SelectorLevel, parents taxonomy.ParentFilters) (*uuid.UUID, bool, error) {
	depth := level.Depth()
	if depth == 0 {
		return nil, true, nil
	}

	var parentID *uuid.UUID
	for _, ancestor := range taxonomy.Levels()[:depth] {
		value, ok := parents[ancestor]
		if ok {
			value = trimmed(value)
		}
		if !ok || value == "" {
			return nil, false, ErrIncompleteFilters
		}

		node, err := s.repo.FindChildByKey(ctx, parentID, ancestor, taxonomy.MergeKey(value))
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, false, nil
			}
			return nil, false, err
		}
		parentID = &node.ID
	}
	return parentID, true, nil
}

func (s *Service) recordRefresh(ctx context.Context, level taxonomy.SelectorLevel, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordTaxonomyRefresh(ctx, string(level), outcome)
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

package taxonomy

import (
	"context"

	"github.com/cardstash/backend/internal/domain/marketplace"
)

// ProviderOption is one raw vocabulary entry reported by a platform before
// merging: the platform's display value plus the native codes it uses for it.
type ProviderOption struct {
	// Value is the platform's display string for the option.
	Value string
	// NativeCodes are the platform's internal identifiers for the option
	// (category ids, slugs). May be empty when the platform keys by value.
	NativeCodes []string
}

// Provider is the capability interface for platform adapters that expose a
// category or filter vocabulary. The aggregation service fans out over all
// providers and merges their options into the selector tree.
type Provider interface {
	// Platform returns the marketplace this provider reports for.
	Platform() marketplace.Platform

	// ListOptions returns the platform's vocabulary for one level, scoped by
	// the ancestor path in parents. An empty list is a success; upstream
	// failures are errors.
	ListOptions(ctx context.Context, level SelectorLevel, parents ParentFilters) ([]ProviderOption, error)
}

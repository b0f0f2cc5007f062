package platforms

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/infrastructure/config"
)

// Registry is the fixed site → adapter dispatch table. Adapters are
// registered once at startup; lookups of unknown or unregistered sites
// resolve to ErrUnsupportedSite, never to a nil adapter.
type Registry struct {
	cards     map[marketplace.Platform]marketplace.CardAdapter
	sets      map[marketplace.Platform]marketplace.SetAdapter
	verifiers map[marketplace.Platform]marketplace.CredentialVerifier
	providers map[marketplace.Platform]taxonomy.Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cards:     make(map[marketplace.Platform]marketplace.CardAdapter),
		sets:      make(map[marketplace.Platform]marketplace.SetAdapter),
		verifiers: make(map[marketplace.Platform]marketplace.CredentialVerifier),
		providers: make(map[marketplace.Platform]taxonomy.Provider),
	}
}

// RegisterCard adds a card adapter to the dispatch table.
func (r *Registry) RegisterCard(adapter marketplace.CardAdapter) {
	r.cards[adapter.Platform()] = adapter
}

// RegisterSet adds a set adapter to the dispatch table.
func (r *Registry) RegisterSet(adapter marketplace.SetAdapter) {
	r.sets[adapter.Platform()] = adapter
}

// RegisterVerifier adds a credential verifier to the dispatch table.
func (r *Registry) RegisterVerifier(platform marketplace.Platform, verifier marketplace.CredentialVerifier) {
	r.verifiers[platform] = verifier
}

// RegisterProvider adds a taxonomy vocabulary provider.
func (r *Registry) RegisterProvider(provider taxonomy.Provider) {
	r.providers[provider.Platform()] = provider
}

// CardAdapter returns the card adapter for the platform.
func (r *Registry) CardAdapter(platform marketplace.Platform) (marketplace.CardAdapter, error) {
	adapter, ok := r.cards[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no card adapter", marketplace.ErrUnsupportedSite, platform)
	}
	return adapter, nil
}

// SetAdapter returns the set adapter for the platform.
func (r *Registry) SetAdapter(platform marketplace.Platform) (marketplace.SetAdapter, error) {
	adapter, ok := r.sets[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no set adapter", marketplace.ErrUnsupportedSite, platform)
	}
	return adapter, nil
}

// Verifier returns the credential verifier for the platform.
func (r *Registry) Verifier(platform marketplace.Platform) (marketplace.CredentialVerifier, error) {
	verifier, ok := r.verifiers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no credential verifier", marketplace.ErrUnsupportedSite, platform)
	}
	return verifier, nil
}

// CardPlatforms lists platforms supporting card search, in canonical order.
func (r *Registry) CardPlatforms() []marketplace.Platform {
	out := make([]marketplace.Platform, 0, len(r.cards))
	for _, platform := range marketplace.AllPlatforms() {
		if _, ok := r.cards[platform]; ok {
			out = append(out, platform)
		}
	}
	return out
}

// SetPlatforms lists platforms supporting set search, in canonical order.
func (r *Registry) SetPlatforms() []marketplace.Platform {
	out := make([]marketplace.Platform, 0, len(r.sets))
	for _, platform := range marketplace.AllPlatforms() {
		if _, ok := r.sets[platform]; ok {
			out = append(out, platform)
		}
	}
	return out
}

// Providers lists taxonomy vocabulary providers, in canonical platform order.
func (r *Registry) Providers() []taxonomy.Provider {
	out := make([]taxonomy.Provider, 0, len(r.providers))
	for _, platform := range marketplace.AllPlatforms() {
		if provider, ok := r.providers[platform]; ok {
			out = append(out, provider)
		}
	}
	return out
}

// NewDefaultRegistry builds the production registry: every platform adapter
// constructed from configuration and registered under its capabilities.
func NewDefaultRegistry(cfg config.PlatformsConfig, automationCfg config.AutomationConfig, creds CredentialSource, logger *zap.Logger) (*Registry, error) {
	automation, err := NewAutomationClient(automationCfg, logger)
	if err != nil {
		return nil, err
	}

	ebay, err := NewEbayAdapter(cfg.Ebay, creds, logger)
	if err != nil {
		return nil, err
	}
	bsc, err := NewBSCAdapter(cfg.BuySportsCards, creds, logger)
	if err != nil {
		return nil, err
	}
	sportlots, err := NewSportlotsAdapter(cfg.Sportlots, creds, automation, logger)
	if err != nil {
		return nil, err
	}
	myslabs, err := NewMySlabsAdapter(cfg.MySlabs, creds, logger)
	if err != nil {
		return nil, err
	}
	mycardpost, err := NewMyCardPostAdapter(cfg.MyCardPost, creds, automation, logger)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()

	registry.RegisterCard(ebay)
	registry.RegisterCard(myslabs)
	registry.RegisterCard(mycardpost)

	registry.RegisterSet(ebay)
	registry.RegisterSet(bsc)
	registry.RegisterSet(sportlots)

	registry.RegisterVerifier(marketplace.PlatformEbay, ebay)
	registry.RegisterVerifier(marketplace.PlatformBuySportsCards, bsc)
	registry.RegisterVerifier(marketplace.PlatformSportlots, sportlots)
	registry.RegisterVerifier(marketplace.PlatformMySlabs, myslabs)
	registry.RegisterVerifier(marketplace.PlatformMyCardPost, mycardpost)

	registry.RegisterProvider(ebay)
	registry.RegisterProvider(bsc)

	return registry, nil
}

// Interface guard
var _ marketplace.AdapterRegistry = (*Registry)(nil)

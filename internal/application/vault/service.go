// Package vault stores per-user marketplace credentials behind the secret
// store port and keeps the replicated per-site presence flag in step.
package vault

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/vault"
)

// Service implements credential storage on top of a SecretStore, mirroring
// presence into the site profile flags. The secret and the flag are written
// separately and can disagree after a partial failure; reads reconcile by
// treating "flag set but secret missing" as absent.
type Service struct {
	store    vault.SecretStore
	profiles vault.ProfileRepository
	logger   *zap.Logger
}

// NewService creates a new vault Service
func NewService(store vault.SecretStore, profiles vault.ProfileRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		profiles: profiles,
		logger:   logger,
	}
}

// Store saves the credentials for (userID, site), overwriting any previous
// version, and sets the presence flag.
func (s *Service) Store(ctx context.Context, userID uuid.UUID, site marketplace.Platform, username, password string) (*vault.Credential, error) {
	cred, err := vault.NewCredential(userID, site, username, password)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, userID, site, cred); err != nil {
		return nil, err
	}

	if err := s.profiles.SetFlag(ctx, userID, site, true); err != nil {
		// The secret is stored; the flag repairs itself on the next Get
		s.logger.Warn("failed to set credential presence flag",
			zap.String("user_id", userID.String()),
			zap.String("site", string(site)),
			zap.Error(err))
	}
	return cred, nil
}

// Get returns the stored credential, or nil when none exists. A presence flag
// left set by a partial failure is repaired here.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, site marketplace.Platform) (*vault.Credential, error) {
	if userID == uuid.Nil {
		return nil, vault.ErrInvalidUserID
	}
	if !site.IsValid() {
		return nil, vault.ErrInvalidSite
	}

	cred, err := s.store.Get(ctx, userID, site)
	if err != nil {
		return nil, err
	}
	if cred != nil {
		return cred, nil
	}

	flagged, err := s.profiles.GetFlag(ctx, userID, site)
	if err != nil {
		s.logger.Warn("failed to read credential presence flag",
			zap.String("user_id", userID.String()),
			zap.String("site", string(site)),
			zap.Error(err))
		return nil, nil
	}
	if flagged {
		s.logger.Info("repairing stale credential presence flag",
			zap.String("user_id", userID.String()),
			zap.String("site", string(site)))
		if err := s.profiles.SetFlag(ctx, userID, site, false); err != nil {
			s.logger.Warn("failed to repair credential presence flag",
				zap.String("user_id", userID.String()),
				zap.String("site", string(site)),
				zap.Error(err))
		}
	}
	return nil, nil
}

// Delete removes the stored credential and clears the presence flag. Deleting
// an absent credential is a no-op.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, site marketplace.Platform) error {
	if userID == uuid.Nil {
		return vault.ErrInvalidUserID
	}
	if !site.IsValid() {
		return vault.ErrInvalidSite
	}

	if err := s.store.Delete(ctx, userID, site); err != nil {
		return err
	}
	if err := s.profiles.SetFlag(ctx, userID, site, false); err != nil {
		s.logger.Warn("failed to clear credential presence flag",
			zap.String("user_id", userID.String()),
			zap.String("site", string(site)),
			zap.Error(err))
	}
	return nil
}

// ListSites returns the sites the user has credentials stored for, in
// canonical platform order. The answer comes from the replicated flags so
// listing never touches the secret store.
func (s *Service) ListSites(ctx context.Context, userID uuid.UUID) ([]marketplace.Platform, error) {
	if userID == uuid.Nil {
		return nil, vault.ErrInvalidUserID
	}

	profiles, err := s.profiles.ListFlags(ctx, userID)
	if err != nil {
		return nil, err
	}

	present := make(map[marketplace.Platform]bool, len(profiles))
	for _, p := range profiles {
		if p.HasCredentials {
			present[p.Site] = true
		}
	}

	sites := make([]marketplace.Platform, 0, len(present))
	for _, platform := range marketplace.AllPlatforms() {
		if present[platform] {
			sites = append(sites, platform)
		}
	}
	return sites, nil
}

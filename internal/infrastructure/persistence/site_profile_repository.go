package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/vault"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSiteProfileRepository implements vault.ProfileRepository using GORM
type GormSiteProfileRepository struct {
	db *gorm.DB
}

// NewGormSiteProfileRepository creates a new GormSiteProfileRepository
func NewGormSiteProfileRepository(db *gorm.DB) *GormSiteProfileRepository {
	return &GormSiteProfileRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormSiteProfileRepository) WithTx(tx *gorm.DB) *GormSiteProfileRepository {
	return &GormSiteProfileRepository{db: tx}
}

// SetFlag upserts the hasCredentials flag for (userID, site)
func (r *GormSiteProfileRepository) SetFlag(ctx context.Context, userID uuid.UUID, site marketplace.Platform, hasCredentials bool) error {
	profile := vault.SiteProfile{
		ID:             uuid.New(),
		UserID:         userID,
		Site:           site,
		HasCredentials: hasCredentials,
		UpdatedAt:      time.Now(),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "site"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"has_credentials", "updated_at",
			}),
		}).
		Create(&profile).Error
}

// GetFlag reads the flag; absent rows read as false
func (r *GormSiteProfileRepository) GetFlag(ctx context.Context, userID uuid.UUID, site marketplace.Platform) (bool, error) {
	var profile vault.SiteProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND site = ?", userID, site).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return profile.HasCredentials, nil
}

// ListFlags returns every site with a profile row for the user
func (r *GormSiteProfileRepository) ListFlags(ctx context.Context, userID uuid.UUID) ([]vault.SiteProfile, error) {
	var profiles []vault.SiteProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("site ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// Ensure GormSiteProfileRepository implements vault.ProfileRepository
var _ vault.ProfileRepository = (*GormSiteProfileRepository)(nil)

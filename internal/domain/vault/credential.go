package vault

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cardstash/backend/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// Vault Errors
// ---------------------------------------------------------------------------

var (
	// ErrInvalidUserID indicates a missing caller identity.
	ErrInvalidUserID = errors.New("vault: invalid user ID")
	// ErrInvalidSite indicates an unknown or blank site.
	ErrInvalidSite = errors.New("vault: invalid site")
	// ErrEmptyCredential indicates blank username and password.
	ErrEmptyCredential = errors.New("vault: username and password are required")
)

// ---------------------------------------------------------------------------
// Credential
// ---------------------------------------------------------------------------

// Credential is the secret envelope stored per (user, site). The vault treats
// the payload as opaque: it stores and retrieves username/password without
// interpreting them. Token/ExpiresAt are set for platforms that exchange the
// static password for a short-lived bearer token.
type Credential struct {
	Site      marketplace.Platform `json:"site"`
	Username  string               `json:"username"`
	Password  string               `json:"password"`
	UserID    uuid.UUID            `json:"userId"`
	CreatedAt time.Time            `json:"createdAt"`
	Token     string               `json:"token,omitempty"`
	ExpiresAt *time.Time           `json:"expiresAt,omitempty"`
}

// NewCredential builds a credential envelope for the given owner and site.
func NewCredential(userID uuid.UUID, site marketplace.Platform, username, password string) (*Credential, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	if !site.IsValid() {
		return nil, ErrInvalidSite
	}
	if username == "" && password == "" {
		return nil, ErrEmptyCredential
	}
	return &Credential{
		Site:      site,
		Username:  username,
		Password:  password,
		UserID:    userID,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpired reports whether a derived token has passed its expiry. A
// credential without an expiry never expires.
func (c *Credential) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// ---------------------------------------------------------------------------
// SecretStore Port
// ---------------------------------------------------------------------------

// SecretStore is the port to the backing secret technology (cloud secret
// manager, encrypted object store, in-memory for tests). Keys are always
// (userID, site); the store never sees one user's secret under another
// user's key.
//
// Get returns (nil, nil) when no secret exists: absence is not an error.
// Delete of an absent secret is a no-op. Put overwrites, creating a new
// version where the backend supports versioning.
type SecretStore interface {
	Put(ctx context.Context, userID uuid.UUID, site marketplace.Platform, cred *Credential) error
	Get(ctx context.Context, userID uuid.UUID, site marketplace.Platform) (*Credential, error)
	Delete(ctx context.Context, userID uuid.UUID, site marketplace.Platform) error
	List(ctx context.Context, userID uuid.UUID) ([]marketplace.Platform, error)
}

// ---------------------------------------------------------------------------
// Profile Flags
// ---------------------------------------------------------------------------

// SiteProfile is the per-(user, site) row carrying the replicated
// hasCredentials flag, so presence can be checked without touching the
// secret store. The flag and the secret are written separately and can
// disagree after a partial failure; readers treat "flag set but secret
// missing" as absent.
type SiteProfile struct {
	ID             uuid.UUID            `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_site_profile_user_site,priority:1"`
	Site           marketplace.Platform `gorm:"type:varchar(30);not null;uniqueIndex:idx_site_profile_user_site,priority:2"`
	HasCredentials bool                 `gorm:"not null;default:false"`
	UpdatedAt      time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (SiteProfile) TableName() string {
	return "user_site_profiles"
}

// ProfileRepository is the persistence port for site profile flags.
type ProfileRepository interface {
	// SetFlag upserts the hasCredentials flag for (userID, site).
	SetFlag(ctx context.Context, userID uuid.UUID, site marketplace.Platform, hasCredentials bool) error

	// GetFlag reads the flag; absent rows read as false.
	GetFlag(ctx context.Context, userID uuid.UUID, site marketplace.Platform) (bool, error)

	// ListFlags returns every site with a profile row for the user.
	ListFlags(ctx context.Context, userID uuid.UUID) ([]SiteProfile, error)
}

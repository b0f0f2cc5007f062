package dto

import (
	"time"

	"github.com/cardstash/backend/internal/application/vault"
	domainvault "github.com/cardstash/backend/internal/domain/vault"
)

// StoreCredentialRequest is the request body for storing site credentials
type StoreCredentialRequest struct {
	Username string `json:"username" binding:"required,min=1,max=200"`
	Password string `json:"password" binding:"required,min=1,max=500"`
}

// CredentialResponse is the wire shape of a stored credential. The password
// is never echoed back.
type CredentialResponse struct {
	Site      string     `json:"site"`
	Username  string     `json:"username"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewCredentialResponse maps a credential to the wire shape
func NewCredentialResponse(cred *domainvault.Credential) CredentialResponse {
	return CredentialResponse{
		Site:      string(cred.Site),
		Username:  cred.Username,
		CreatedAt: cred.CreatedAt,
		ExpiresAt: cred.ExpiresAt,
	}
}

// SiteListResponse lists the sites a user has credentials stored for,
// in canonical platform order
type SiteListResponse struct {
	Sites []string `json:"sites"`
}

// CredentialTestResponse is the response body for a credential test
type CredentialTestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewCredentialTestResponse maps a dispatcher result to the wire shape
func NewCredentialTestResponse(result *vault.TestResult) CredentialTestResponse {
	return CredentialTestResponse{
		Success: result.Success,
		Message: result.Message,
		Details: result.Details,
	}
}

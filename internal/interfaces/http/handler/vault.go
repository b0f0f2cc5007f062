package handler

import (
	"github.com/gin-gonic/gin"

	vaultapp "github.com/cardstash/backend/internal/application/vault"
	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/interfaces/http/dto"
	"github.com/cardstash/backend/internal/interfaces/http/middleware"
)

// VaultHandler handles per-site credential storage and verification
type VaultHandler struct {
	BaseHandler
	service    *vaultapp.Service
	dispatcher *vaultapp.Dispatcher
}

// NewVaultHandler creates a new VaultHandler
func NewVaultHandler(service *vaultapp.Service, dispatcher *vaultapp.Dispatcher) *VaultHandler {
	return &VaultHandler{service: service, dispatcher: dispatcher}
}

// RegisterRoutes registers vault routes
func (h *VaultHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/vault")
	{
		group.GET("/sites", h.ListSites)
		group.GET("/sites/:site", h.GetCredential)
		group.PUT("/sites/:site", h.StoreCredential)
		group.DELETE("/sites/:site", h.DeleteCredential)
		group.POST("/sites/:site/test", h.TestCredential)
	}
}

// ListSites lists the sites the caller has credentials stored for.
// GET /api/v1/vault/sites
func (h *VaultHandler) ListSites(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	sites, err := h.service.ListSites(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	names := make([]string, 0, len(sites))
	for _, site := range sites {
		names = append(names, string(site))
	}
	h.Success(c, dto.SiteListResponse{Sites: names})
}

// GetCredential returns the caller's stored credential for a site, without
// the password.
// GET /api/v1/vault/sites/:site
func (h *VaultHandler) GetCredential(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	site := marketplace.Platform(c.Param("site"))

	cred, err := h.service.Get(c.Request.Context(), userID, site)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if cred == nil {
		h.NotFound(c, "No credentials stored for "+site.DisplayName())
		return
	}

	h.Success(c, dto.NewCredentialResponse(cred))
}

// StoreCredential stores (or replaces) the caller's credential for a site.
// PUT /api/v1/vault/sites/:site
func (h *VaultHandler) StoreCredential(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	site := marketplace.Platform(c.Param("site"))

	var req dto.StoreCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	cred, err := h.service.Store(c.Request.Context(), userID, site, req.Username, req.Password)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.NewCredentialResponse(cred))
}

// DeleteCredential removes the caller's credential for a site. Deleting an
// absent credential succeeds.
// DELETE /api/v1/vault/sites/:site
func (h *VaultHandler) DeleteCredential(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	site := marketplace.Platform(c.Param("site"))

	if err := h.service.Delete(c.Request.Context(), userID, site); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// TestCredential verifies the caller's stored credential against the live
// site. A failed verification is a 200 with success=false; only an unknown
// site or a missing identity is an error status.
// POST /api/v1/vault/sites/:site/test
func (h *VaultHandler) TestCredential(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	site := marketplace.Platform(c.Param("site"))

	result, err := h.dispatcher.Test(c.Request.Context(), userID, site)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewCredentialTestResponse(result))
}

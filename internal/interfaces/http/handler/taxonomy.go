package handler

import (
	"github.com/gin-gonic/gin"

	taxonomyapp "github.com/cardstash/backend/internal/application/taxonomy"
	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/cardstash/backend/internal/interfaces/http/dto"
	"github.com/cardstash/backend/internal/interfaces/http/middleware"
)

// TaxonomyHandler handles selector tree option requests
type TaxonomyHandler struct {
	BaseHandler
	service *taxonomyapp.Service
}

// NewTaxonomyHandler creates a new TaxonomyHandler
func NewTaxonomyHandler(service *taxonomyapp.Service) *TaxonomyHandler {
	return &TaxonomyHandler{service: service}
}

// RefreshRequest is the request body for re-aggregating one selector branch
type RefreshRequest struct {
	Level   string            `json:"level" binding:"required"`
	Filters map[string]string `json:"filters,omitempty"`
}

// RegisterRoutes registers taxonomy routes
func (h *TaxonomyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/taxonomy")
	{
		group.GET("/options/:level", h.Options)
		group.POST("/refresh", h.Refresh)
	}
}

// Options lists the selector options at a level beneath the given ancestor
// filters. Every ancestor level is passed as a query parameter named after
// the level (e.g. ?sport=Baseball&year=2024).
// GET /api/v1/taxonomy/options/:level
func (h *TaxonomyHandler) Options(c *gin.Context) {
	level, err := taxonomy.ParseLevel(c.Param("level"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	parents := queryParentFilters(c, level)

	options, err := h.service.Options(c.Request.Context(), level, parents)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewSelectorOptionsResponse(level, options))
}

// Refresh re-aggregates one selector branch from every registered platform
// and returns the merged options.
// POST /api/v1/taxonomy/refresh
func (h *TaxonomyHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	level, err := taxonomy.ParseLevel(req.Level)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	parents := make(taxonomy.ParentFilters, len(req.Filters))
	for name, value := range req.Filters {
		parents[taxonomy.SelectorLevel(name)] = value
	}

	options, err := h.service.Refresh(c.Request.Context(), level, parents)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewSelectorOptionsResponse(level, options))
}

// queryParentFilters collects ancestor filter values from query parameters
// named after their levels
func queryParentFilters(c *gin.Context, level taxonomy.SelectorLevel) taxonomy.ParentFilters {
	parents := make(taxonomy.ParentFilters)
	for _, ancestor := range taxonomy.Levels() {
		if ancestor == level {
			break
		}
		if value := c.Query(ancestor.String()); value != "" {
			parents[ancestor] = value
		}
	}
	return parents
}

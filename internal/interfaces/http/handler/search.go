package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cardstash/backend/internal/application/search"
	"github.com/cardstash/backend/internal/interfaces/http/dto"
	"github.com/cardstash/backend/internal/interfaces/http/middleware"
)

// SearchHandler handles aggregate search requests
type SearchHandler struct {
	BaseHandler
	aggregator *search.AggregatorService
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(aggregator *search.AggregatorService) *SearchHandler {
	return &SearchHandler{aggregator: aggregator}
}

// RegisterRoutes registers search routes
func (h *SearchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/search")
	{
		group.POST("/cards", h.SearchCards)
		group.POST("/sets", h.SearchSets)
	}
}

// SearchCards runs a card search across the requested marketplaces.
// POST /api/v1/search/cards
func (h *SearchHandler) SearchCards(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req dto.CardSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	params, err := req.ToParams()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.aggregator.SearchCards(c.Request.Context(), userID, dto.ParsePlatforms(req.Platforms), params)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewCardSearchResponse(result))
}

// SearchSets runs a set search across the requested marketplaces.
// POST /api/v1/search/sets
func (h *SearchHandler) SearchSets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req dto.SetSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	params, err := req.ToParams()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.aggregator.SearchSets(c.Request.Context(), userID, dto.ParsePlatforms(req.Platforms), params)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewSetSearchResponse(result))
}

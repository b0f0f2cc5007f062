package dto

import (
	"time"

	"github.com/cardstash/backend/internal/domain/taxonomy"
)

// SelectorOptionResponse is the wire shape of one selector tree node
type SelectorOptionResponse struct {
	ID           string              `json:"id"`
	Level        string              `json:"level"`
	Value        string              `json:"value"`
	PlatformData map[string][]string `json:"platform_data,omitempty"`
	ParentID     *string             `json:"parent_id,omitempty"`
	LastUpdated  time.Time           `json:"last_updated"`
}

// SelectorOptionsResponse is the response body for option listing and refresh
type SelectorOptionsResponse struct {
	Level   string                   `json:"level"`
	Options []SelectorOptionResponse `json:"options"`
}

// NewSelectorOptionsResponse maps selector nodes to the wire shape. A branch
// with no children renders as an empty list, never null.
func NewSelectorOptionsResponse(level taxonomy.SelectorLevel, options []taxonomy.SelectorOption) SelectorOptionsResponse {
	resp := SelectorOptionsResponse{
		Level:   level.String(),
		Options: make([]SelectorOptionResponse, 0, len(options)),
	}
	for _, opt := range options {
		var parentID *string
		if opt.ParentID != nil {
			s := opt.ParentID.String()
			parentID = &s
		}
		var platformData map[string][]string
		if len(opt.PlatformData) > 0 {
			platformData = make(map[string][]string, len(opt.PlatformData))
			for platform, codes := range opt.PlatformData {
				platformData[string(platform)] = codes
			}
		}
		resp.Options = append(resp.Options, SelectorOptionResponse{
			ID:           opt.ID.String(),
			Level:        opt.Level.String(),
			Value:        opt.Value,
			PlatformData: platformData,
			ParentID:     parentID,
			LastUpdated:  opt.LastUpdated,
		})
	}
	return resp
}

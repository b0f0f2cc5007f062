package taxonomy

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/cardstash/backend/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// Taxonomy Errors
// ---------------------------------------------------------------------------

var (
	// ErrInvalidLevel indicates an unknown selector level.
	ErrInvalidLevel = errors.New("taxonomy: invalid selector level")
	// ErrLevelMismatch indicates a node whose level is not exactly one step
	// below its parent's level.
	ErrLevelMismatch = errors.New("taxonomy: node level must be one step below parent level")
	// ErrEmptyValue indicates a node with a blank display value.
	ErrEmptyValue = errors.New("taxonomy: selector value must not be empty")
	// ErrMissingParent indicates a non-root node without a parent id.
	ErrMissingParent = errors.New("taxonomy: non-sport node requires a parent")
)

// ---------------------------------------------------------------------------
// SelectorLevel
// ---------------------------------------------------------------------------

// SelectorLevel names one level of the selectable-attribute tree. The
// enumeration is fixed and ordered; a node's level is always exactly one step
// deeper than its parent's.
type SelectorLevel string

const (
	LevelSport        SelectorLevel = "sport"
	LevelYear         SelectorLevel = "year"
	LevelManufacturer SelectorLevel = "manufacturer"
	LevelSetName      SelectorLevel = "setName"
	LevelVariantType  SelectorLevel = "variantType"
	LevelInsert       SelectorLevel = "insert"
	LevelParallel     SelectorLevel = "parallel"
)

// selectorLevels is the fixed top-down ordering of the tree.
var selectorLevels = []SelectorLevel{
	LevelSport,
	LevelYear,
	LevelManufacturer,
	LevelSetName,
	LevelVariantType,
	LevelInsert,
	LevelParallel,
}

// Levels returns the fixed top-down level ordering.
func Levels() []SelectorLevel {
	out := make([]SelectorLevel, len(selectorLevels))
	copy(out, selectorLevels)
	return out
}

// IsValid returns true if the level is part of the fixed enumeration.
func (l SelectorLevel) IsValid() bool {
	return l.Depth() >= 0
}

// String returns the string representation of the level.
func (l SelectorLevel) String() string {
	return string(l)
}

// Depth returns the zero-based depth of the level, or -1 if unknown.
func (l SelectorLevel) Depth() int {
	for i, level := range selectorLevels {
		if level == l {
			return i
		}
	}
	return -1
}

// Next returns the level one step deeper, or false at the bottom.
func (l SelectorLevel) Next() (SelectorLevel, bool) {
	d := l.Depth()
	if d < 0 || d+1 >= len(selectorLevels) {
		return "", false
	}
	return selectorLevels[d+1], true
}

// ParseLevel converts a string into a SelectorLevel.
func ParseLevel(s string) (SelectorLevel, error) {
	l := SelectorLevel(s)
	if !l.IsValid() {
		return "", ErrInvalidLevel
	}
	return l, nil
}

// ---------------------------------------------------------------------------
// PlatformData
// ---------------------------------------------------------------------------

// PlatformData maps a platform to its native encodings of one canonical
// value. A single canonical value may correspond to several upstream codes
// (legacy category ids, alternate spellings), so codes accumulate as a list.
type PlatformData map[marketplace.Platform][]string

// Add records a native code for a platform, ignoring duplicates.
func (d PlatformData) Add(platform marketplace.Platform, codes ...string) {
	for _, code := range codes {
		if !containsString(d[platform], code) {
			d[platform] = append(d[platform], code)
		}
	}
}

// Platforms returns the contributing platforms in sorted order.
func (d PlatformData) Platforms() []marketplace.Platform {
	out := make([]marketplace.Platform, 0, len(d))
	for p := range d {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// SelectorOption
// ---------------------------------------------------------------------------

// SelectorOption is one node in the selectable-attribute tree. The tree is an
// arena of nodes keyed by id: parent and children are stored as ids, never
// live references, so "children of X" is an index lookup rather than a graph
// walk.
type SelectorOption struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`
	// Level fixes the node's depth in the tree.
	Level SelectorLevel `gorm:"type:varchar(20);not null;index:idx_selector_parent_level,priority:2"`
	// Value is the canonical display string, unique among siblings under a
	// case-insensitive comparison.
	Value string `gorm:"type:varchar(200);not null"`
	// MergeKey is the folded, whitespace-normalized form of Value used for
	// sibling uniqueness. Persisted so uniqueness is enforceable in SQL.
	MergeKey string `gorm:"type:varchar(200);not null;index:idx_selector_parent_key"`
	// PlatformData holds each contributing platform's native encodings.
	PlatformData PlatformData `gorm:"serializer:json;type:jsonb"`
	// ParentID links to the parent node; nil only at the sport level.
	ParentID *uuid.UUID `gorm:"type:uuid;index:idx_selector_parent_level,priority:1;index:idx_selector_parent_key"`
	// ChildIDs is the denormalized list of child node ids, appended as
	// children are created.
	ChildIDs []uuid.UUID `gorm:"serializer:json;type:jsonb"`
	// LastUpdated is when this node was last refreshed from upstream.
	LastUpdated time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (SelectorOption) TableName() string {
	return "selector_options"
}

// NewSelectorOption creates a node for the given level and canonical value.
func NewSelectorOption(level SelectorLevel, value string, parentID *uuid.UUID) (*SelectorOption, error) {
	if !level.IsValid() {
		return nil, ErrInvalidLevel
	}
	if strings.TrimSpace(value) == "" {
		return nil, ErrEmptyValue
	}
	if level != LevelSport && parentID == nil {
		return nil, ErrMissingParent
	}
	if level == LevelSport && parentID != nil {
		return nil, ErrLevelMismatch
	}
	return &SelectorOption{
		ID:           uuid.New(),
		Level:        level,
		Value:        strings.TrimSpace(value),
		MergeKey:     MergeKey(value),
		PlatformData: make(PlatformData),
		ParentID:     parentID,
		ChildIDs:     make([]uuid.UUID, 0),
		LastUpdated:  time.Now(),
	}, nil
}

// AddChild appends a child id, ignoring duplicates.
func (o *SelectorOption) AddChild(id uuid.UUID) {
	for _, existing := range o.ChildIDs {
		if existing == id {
			return
		}
	}
	o.ChildIDs = append(o.ChildIDs, id)
}

// Touch refreshes the LastUpdated timestamp.
func (o *SelectorOption) Touch() {
	o.LastUpdated = time.Now()
}

// MergeKey normalizes a display value for sibling-uniqueness comparison:
// Unicode case folding plus whitespace collapsing, so "Topps  Chrome" and
// "topps chrome" merge into one node. Casers are stateful, so one is built
// per call rather than shared.
func MergeKey(value string) string {
	folded := cases.Fold().String(value)
	return strings.Join(strings.Fields(folded), " ")
}

// ---------------------------------------------------------------------------
// ParentFilters
// ---------------------------------------------------------------------------

// ParentFilters fixes the ancestor path a level query is scoped to, e.g.
// {sport: "Football", year: "2024"} when asking for manufacturers.
type ParentFilters map[SelectorLevel]string

// CacheKey renders the filters into a stable string for cache keys, with
// levels in tree order.
func (f ParentFilters) CacheKey() string {
	parts := make([]string, 0, len(f))
	for _, level := range selectorLevels {
		if v, ok := f[level]; ok {
			parts = append(parts, string(level)+"="+MergeKey(v))
		}
	}
	return strings.Join(parts, "|")
}

// ---------------------------------------------------------------------------
// Repository Port
// ---------------------------------------------------------------------------

// Repository is the persistence port for the selector option arena. Reads
// are always parent-scoped; there is deliberately no full-table scan.
type Repository interface {
	// FindByID loads one node.
	FindByID(ctx context.Context, id uuid.UUID) (*SelectorOption, error)

	// FindChildren lists the children of parentID at the given level, in
	// canonical value order. A nil parentID lists the sport-level roots.
	FindChildren(ctx context.Context, parentID *uuid.UUID, level SelectorLevel) ([]SelectorOption, error)

	// FindChildByKey looks up one child of parentID by merge key.
	FindChildByKey(ctx context.Context, parentID *uuid.UUID, level SelectorLevel, mergeKey string) (*SelectorOption, error)

	// ReplaceChildren atomically replaces the children of parentID at the
	// given level with the supplied nodes, so re-aggregation overwrites
	// rather than appends.
	ReplaceChildren(ctx context.Context, parentID *uuid.UUID, level SelectorLevel, nodes []SelectorOption) error

	// Save upserts one node.
	Save(ctx context.Context, node *SelectorOption) error
}

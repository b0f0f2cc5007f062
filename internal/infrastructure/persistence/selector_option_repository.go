package persistence

import (
	"context"
	"errors"

	"github.com/cardstash/backend/internal/domain/shared"
	"github.com/cardstash/backend/internal/domain/taxonomy"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSelectorOptionRepository implements taxonomy.Repository using GORM
type GormSelectorOptionRepository struct {
	db *gorm.DB
}

// NewGormSelectorOptionRepository creates a new GormSelectorOptionRepository
func NewGormSelectorOptionRepository(db *gorm.DB) *GormSelectorOptionRepository {
	return &GormSelectorOptionRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormSelectorOptionRepository) WithTx(tx *gorm.DB) *GormSelectorOptionRepository {
	return &GormSelectorOptionRepository{db: tx}
}

// FindByID loads one node by its ID
func (r *GormSelectorOptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*taxonomy.SelectorOption, error) {
	var node taxonomy.SelectorOption
	if err := r.db.WithContext(ctx).First(&node, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &node, nil
}

// FindChildren lists the children of parentID at the given level in canonical
// value order. A nil parentID lists the sport-level roots.
func (r *GormSelectorOptionRepository) FindChildren(ctx context.Context, parentID *uuid.UUID, level taxonomy.SelectorLevel) ([]taxonomy.SelectorOption, error) {
	var nodes []taxonomy.SelectorOption

	query := r.db.WithContext(ctx).
		Model(&taxonomy.SelectorOption{}).
		Where("level = ?", level)
	query = scopeParent(query, parentID)

	if err := query.Order("value ASC").Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

// FindChildByKey looks up one child of parentID by merge key
func (r *GormSelectorOptionRepository) FindChildByKey(ctx context.Context, parentID *uuid.UUID, level taxonomy.SelectorLevel, mergeKey string) (*taxonomy.SelectorOption, error) {
	var node taxonomy.SelectorOption

	query := r.db.WithContext(ctx).
		Where("level = ? AND merge_key = ?", level, mergeKey)
	query = scopeParent(query, parentID)

	if err := query.First(&node).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &node, nil
}

// ReplaceChildren atomically replaces the children of parentID at the given
// level with the supplied nodes. Delete and insert run in one transaction so
// a re-aggregation overwrites the previous result rather than appending to it.
func (r *GormSelectorOptionRepository) ReplaceChildren(ctx context.Context, parentID *uuid.UUID, level taxonomy.SelectorLevel, nodes []taxonomy.SelectorOption) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("level = ?", level)
		del = scopeParent(del, parentID)
		if err := del.Delete(&taxonomy.SelectorOption{}).Error; err != nil {
			return err
		}

		if len(nodes) == 0 {
			return nil
		}
		return tx.Create(&nodes).Error
	})
}

// Save upserts one node by primary key
func (r *GormSelectorOptionRepository) Save(ctx context.Context, node *taxonomy.SelectorOption) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"value", "merge_key", "platform_data", "child_ids", "last_updated",
			}),
		}).
		Create(node).Error
}

// scopeParent appends the parent predicate; root nodes have a NULL parent so
// the nil case cannot use a plain equality comparison.
func scopeParent(query *gorm.DB, parentID *uuid.UUID) *gorm.DB {
	if parentID == nil {
		return query.Where("parent_id IS NULL")
	}
	return query.Where("parent_id = ?", *parentID)
}

// Ensure GormSelectorOptionRepository implements taxonomy.Repository
var _ taxonomy.Repository = (*GormSelectorOptionRepository)(nil)

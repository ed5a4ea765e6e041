package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ATR1285/Procure/pkg/model"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) ListBelowThreshold(ctx context.Context) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	err := r.db.WithContext(ctx).
		Where("quantity <= reorder_threshold").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// AlertedSince reports whether an alert for the item was already logged
// inside the cooldown window.
func (r *InventoryRepository) AlertedSince(ctx context.Context, itemID uint, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AlertLog{}).
		Where("item_id = ? AND created_at > ?", itemID, since).
		Count(&count).Error
	return count > 0, err
}

func (r *InventoryRepository) LogAlert(ctx context.Context, log *model.AlertLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *InventoryRepository) TouchLastChecked(ctx context.Context, itemID uint) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&model.InventoryItem{}).
		Where("id = ?", itemID).
		Update("last_checked", &now).Error
}

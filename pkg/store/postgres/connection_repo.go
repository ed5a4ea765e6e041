package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ATR1285/Procure/pkg/model"
)

type ConnectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Active returns the currently active ERP connection, or nil when none
// is configured (the local backend is then assumed).
func (r *ConnectionRepository) Active(ctx context.Context) (*model.ERPConnection, error) {
	var conn model.ERPConnection
	err := r.db.WithContext(ctx).First(&conn, "is_active = ?", true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *ConnectionRepository) Get(ctx context.Context, id uint) (*model.ERPConnection, error) {
	var conn model.ERPConnection
	err := r.db.WithContext(ctx).First(&conn, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *ConnectionRepository) List(ctx context.Context) ([]model.ERPConnection, error) {
	var conns []model.ERPConnection
	err := r.db.WithContext(ctx).Order("id ASC").Find(&conns).Error
	return conns, err
}

// Activate makes one connection active and deactivates the rest in a
// single transaction.
func (r *ConnectionRepository) Activate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.ERPConnection{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		result := tx.Model(&model.ERPConnection{}).
			Where("id = ?", id).
			Update("is_active", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *ConnectionRepository) RecordTest(ctx context.Context, id uint, status string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&model.ERPConnection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"test_status": status,
			"last_tested": &now,
		}).Error
}

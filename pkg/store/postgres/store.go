package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ATR1285/Procure/pkg/config"
	"github.com/ATR1285/Procure/pkg/model"
)

type Store struct {
	db *gorm.DB
}

func NewStore(cfg *config.DatabaseConfig) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing gorm handle, used by tests that back
// the store with a mock driver.
func NewStoreWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&model.Event{},
		&model.Invoice{},
		&model.Vendor{},
		&model.VendorAlias{},
		&model.PurchaseOrder{},
		&model.GoodsReceipt{},
		&model.InventoryItem{},
		&model.AlertLog{},
		&model.ERPConnection{},
		&model.ServiceStatus{},
		&model.NotificationEvent{},
	)
}

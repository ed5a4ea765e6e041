package erp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ATR1285/Procure/pkg/model"
)

// LocalClient is the reference ERP backend, backed by the local store.
// Each method runs a single short query scope against the shared pool,
// so the worker, the API and any interactive approval see each other's
// committed writes immediately.
type LocalClient struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewLocalClient(db *gorm.DB, logger *zap.Logger) *LocalClient {
	return &LocalClient{db: db, logger: logger}
}

func (c *LocalClient) GetVendors(ctx context.Context) ([]model.Vendor, error) {
	var vendors []model.Vendor
	err := c.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&vendors).Error
	if err != nil {
		return nil, fmt.Errorf("local erp: list vendors: %w", err)
	}
	return vendors, nil
}

func (c *LocalClient) GetVendorByID(ctx context.Context, id uint) (*model.Vendor, error) {
	var vendor model.Vendor
	err := c.db.WithContext(ctx).First(&vendor, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("local erp: vendor %d: %w", id, err)
	}
	return &vendor, nil
}

func (c *LocalClient) GetVendorAlias(ctx context.Context, rawName string) (*AliasHit, error) {
	var alias model.VendorAlias
	err := c.db.WithContext(ctx).First(&alias, "alias_name = ?", rawName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("local erp: alias lookup %q: %w", rawName, err)
	}
	c.logger.Debug("alias hit",
		zap.String("alias", rawName),
		zap.Uint("vendor_id", alias.VendorID),
		zap.Int("confidence", alias.Confidence),
	)
	return &AliasHit{
		VendorID:      alias.VendorID,
		Confidence:    alias.Confidence,
		FromInvoiceID: alias.FromInvoiceID,
	}, nil
}

func (c *LocalClient) StoreVendorAlias(ctx context.Context, aliasName string, vendorID uint, fromInvoiceID *uuid.UUID) (bool, error) {
	alias := &model.VendorAlias{
		AliasName:     aliasName,
		VendorID:      vendorID,
		Confidence:    100,
		FromInvoiceID: fromInvoiceID,
	}
	// The unique index on alias_name decides races; DO NOTHING keeps the
	// first stored mapping.
	result := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "alias_name"}},
			DoNothing: true,
		}).
		Create(alias)
	if result.Error != nil {
		return false, fmt.Errorf("local erp: store alias %q: %w", aliasName, result.Error)
	}
	stored := result.RowsAffected > 0
	if stored {
		c.logger.Info("stored vendor alias",
			zap.String("alias", aliasName),
			zap.Uint("vendor_id", vendorID),
		)
	}
	return stored, nil
}

func (c *LocalClient) GetPurchaseOrders(ctx context.Context, vendorID *uint) ([]model.PurchaseOrder, error) {
	var pos []model.PurchaseOrder
	query := c.db.WithContext(ctx).Model(&model.PurchaseOrder{})
	if vendorID != nil {
		query = query.Where("vendor_id = ?", *vendorID)
	}
	if err := query.Order("id ASC").Find(&pos).Error; err != nil {
		return nil, fmt.Errorf("local erp: list purchase orders: %w", err)
	}
	return pos, nil
}

func (c *LocalClient) GetGoodsReceipts(ctx context.Context, poID uint) ([]model.GoodsReceipt, error) {
	var receipts []model.GoodsReceipt
	err := c.db.WithContext(ctx).
		Where("purchase_order_id = ?", poID).
		Order("id ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, fmt.Errorf("local erp: list receipts for po %d: %w", poID, err)
	}
	return receipts, nil
}

func (c *LocalClient) TestConnection(ctx context.Context) ConnStatus {
	var count int64
	if err := c.db.WithContext(ctx).Model(&model.Vendor{}).Count(&count).Error; err != nil {
		return ConnStatus{OK: false, Message: err.Error()}
	}
	return ConnStatus{OK: true, Message: fmt.Sprintf("local ERP store active, %d vendors loaded", count)}
}

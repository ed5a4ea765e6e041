package erp

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/model"
)

// RemoteClient covers ERP types without a native integration yet (sap,
// netsuite). It records the configured endpoint and delegates every
// operation to the local reference backend, so enabling a remote
// connection degrades gracefully instead of failing.
type RemoteClient struct {
	erpType  string
	apiURL   string
	fallback *LocalClient
	logger   *zap.Logger
}

func NewRemoteClient(erpType, apiURL string, fallback *LocalClient, logger *zap.Logger) *RemoteClient {
	return &RemoteClient{
		erpType:  erpType,
		apiURL:   apiURL,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *RemoteClient) GetVendors(ctx context.Context) ([]model.Vendor, error) {
	return c.fallback.GetVendors(ctx)
}

func (c *RemoteClient) GetVendorByID(ctx context.Context, id uint) (*model.Vendor, error) {
	return c.fallback.GetVendorByID(ctx, id)
}

func (c *RemoteClient) GetVendorAlias(ctx context.Context, rawName string) (*AliasHit, error) {
	return c.fallback.GetVendorAlias(ctx, rawName)
}

func (c *RemoteClient) StoreVendorAlias(ctx context.Context, aliasName string, vendorID uint, fromInvoiceID *uuid.UUID) (bool, error) {
	return c.fallback.StoreVendorAlias(ctx, aliasName, vendorID, fromInvoiceID)
}

func (c *RemoteClient) GetPurchaseOrders(ctx context.Context, vendorID *uint) ([]model.PurchaseOrder, error) {
	return c.fallback.GetPurchaseOrders(ctx, vendorID)
}

func (c *RemoteClient) GetGoodsReceipts(ctx context.Context, poID uint) ([]model.GoodsReceipt, error) {
	return c.fallback.GetGoodsReceipts(ctx, poID)
}

func (c *RemoteClient) TestConnection(ctx context.Context) ConnStatus {
	status := c.fallback.TestConnection(ctx)
	if status.OK {
		status.Message = c.erpType + " connection not yet integrated, serving from local store (" + status.Message + ")"
	}
	return status
}

// Package erp is the boundary between match logic and the ERP data
// source. All vendor, alias, purchase order and goods receipt access is
// mediated by a Client so the backend can be swapped without touching
// the decision engine.
package erp

import (
	"context"

	"github.com/google/uuid"

	"github.com/ATR1285/Procure/pkg/model"
)

// AliasHit is the result of a vendor alias lookup.
type AliasHit struct {
	VendorID      uint
	Confidence    int
	FromInvoiceID *uuid.UUID
}

// ConnStatus is the outcome of a connection test.
type ConnStatus struct {
	OK      bool
	Message string
}

// Client is one ERP backend. Every call opens and closes its own data
// access scope; no state is held between calls, so every read observes
// the latest committed data.
type Client interface {
	GetVendors(ctx context.Context) ([]model.Vendor, error)
	// GetVendorByID returns (nil, nil) when the vendor does not exist.
	GetVendorByID(ctx context.Context, id uint) (*model.Vendor, error)
	// GetVendorAlias returns (nil, nil) when no alias is stored for the name.
	GetVendorAlias(ctx context.Context, rawName string) (*AliasHit, error)
	// StoreVendorAlias persists a learned alias. Returns false without
	// error when the alias already exists; an existing alias is never
	// overwritten.
	StoreVendorAlias(ctx context.Context, aliasName string, vendorID uint, fromInvoiceID *uuid.UUID) (bool, error)
	GetPurchaseOrders(ctx context.Context, vendorID *uint) ([]model.PurchaseOrder, error)
	GetGoodsReceipts(ctx context.Context, poID uint) ([]model.GoodsReceipt, error)
	TestConnection(ctx context.Context) ConnStatus
}

package erp

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/model"
)

// ConnectionSource yields the active ERP connection row, if any.
type ConnectionSource interface {
	Active(ctx context.Context) (*model.ERPConnection, error)
}

// Adapter routes every ERP call to the active backend. It is injected
// into the worker and decision engine at construction; Refresh swaps the
// backend when the active connection changes, safe against concurrent
// calls.
type Adapter struct {
	conns  ConnectionSource
	local  *LocalClient
	logger *zap.Logger

	mu      sync.RWMutex
	client  Client
	backend string
}

func NewAdapter(conns ConnectionSource, local *LocalClient, logger *zap.Logger) *Adapter {
	a := &Adapter{
		conns:   conns,
		local:   local,
		logger:  logger,
		client:  local,
		backend: "local",
	}
	a.Refresh(context.Background())
	return a
}

// Refresh re-reads the active connection and swaps the backing client
// when it changed. Connections are activated through the API server in
// a separate process, so the worker calls this every cycle; a transient
// read error keeps the current backend rather than downgrading it.
func (a *Adapter) Refresh(ctx context.Context) {
	active, err := a.conns.Active(ctx)
	if err != nil {
		a.logger.Warn("failed to read active erp connection, keeping current backend", zap.Error(err))
		return
	}

	desc := "local"
	client := Client(a.local)
	if active != nil {
		switch active.ERPType {
		case "", "local":
		case "sap", "netsuite":
			desc = active.ERPType + "|" + active.APIURL
			client = NewRemoteClient(active.ERPType, active.APIURL, a.local, a.logger)
		default:
			a.logger.Warn("unknown erp type, using local backend", zap.String("erp_type", active.ERPType))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if desc == a.backend {
		return
	}
	a.client = client
	a.backend = desc
	a.logger.Info("erp backend switched", zap.String("backend", desc))
}

func (a *Adapter) active() Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

func (a *Adapter) GetVendors(ctx context.Context) ([]model.Vendor, error) {
	return a.active().GetVendors(ctx)
}

func (a *Adapter) GetVendorByID(ctx context.Context, id uint) (*model.Vendor, error) {
	return a.active().GetVendorByID(ctx, id)
}

func (a *Adapter) GetVendorAlias(ctx context.Context, rawName string) (*AliasHit, error) {
	return a.active().GetVendorAlias(ctx, rawName)
}

func (a *Adapter) StoreVendorAlias(ctx context.Context, aliasName string, vendorID uint, fromInvoiceID *uuid.UUID) (bool, error) {
	return a.active().StoreVendorAlias(ctx, aliasName, vendorID, fromInvoiceID)
}

func (a *Adapter) GetPurchaseOrders(ctx context.Context, vendorID *uint) ([]model.PurchaseOrder, error) {
	return a.active().GetPurchaseOrders(ctx, vendorID)
}

func (a *Adapter) GetGoodsReceipts(ctx context.Context, poID uint) ([]model.GoodsReceipt, error) {
	return a.active().GetGoodsReceipts(ctx, poID)
}

func (a *Adapter) TestConnection(ctx context.Context) ConnStatus {
	return a.active().TestConnection(ctx)
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is a canonical supplier identity owned by the ERP backend.
type Vendor struct {
	ID     uint   `gorm:"primary_key"`
	Name   string `gorm:"not null;index"`
	Email  string
	Active bool `gorm:"default:true"`
}

func (Vendor) TableName() string {
	return "vendors"
}

// VendorAlias maps an informally written vendor name to a canonical
// vendor. An alias string maps to at most one vendor and is never
// overwritten once stored.
type VendorAlias struct {
	ID            uint   `gorm:"primary_key"`
	AliasName     string `gorm:"not null;uniqueIndex"`
	VendorID      uint   `gorm:"not null;index"`
	Confidence    int    `gorm:"default:100"`
	FromInvoiceID *uuid.UUID
	CreatedAt     time.Time
}

func (VendorAlias) TableName() string {
	return "vendor_aliases"
}

type PurchaseOrder struct {
	ID          uint   `gorm:"primary_key"`
	PONumber    string `gorm:"not null;uniqueIndex"`
	VendorID    uint   `gorm:"not null;index"`
	TotalAmount float64
	Quantity    int
	Status      string `gorm:"default:'OPEN'"`
	CreatedAt   time.Time
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

type GoodsReceipt struct {
	ID               uint `gorm:"primary_key"`
	PurchaseOrderID  uint `gorm:"not null;index"`
	ReceivedDate     *time.Time
	ReceivedQuantity int
	ReceivedAmount   float64
}

func (GoodsReceipt) TableName() string {
	return "goods_receipts"
}

// ERPConnection records a configured ERP backend. Exactly one connection
// is active at a time; activating another one swaps the adapter's client.
type ERPConnection struct {
	ID             uint   `gorm:"primary_key"`
	ConnectionName string `gorm:"not null"`
	ERPType        string `gorm:"type:varchar(30);not null"` // local, sap, netsuite
	APIURL         string
	IsActive       bool `gorm:"index"`
	TestStatus     string
	LastTested     *time.Time
	CreatedAt      time.Time
}

func (ERPConnection) TableName() string {
	return "erp_connections"
}

package model

import "time"

type InventoryItem struct {
	ID               uint   `gorm:"primary_key"`
	Name             string `gorm:"not null;index"`
	SKU              string
	Quantity         int  `gorm:"default:0"`
	ReorderThreshold int  `gorm:"default:10"`
	ReorderQuantity  int  `gorm:"default:50"`
	SupplierID       uint `gorm:"index"`
	UnitPrice        float64
	LastChecked      *time.Time
}

func (InventoryItem) TableName() string {
	return "inventory_items"
}

// AlertLog records a stock alert that was raised for an item, so the
// periodic scan does not re-alert inside the cooldown window.
type AlertLog struct {
	ID        uint   `gorm:"primary_key"`
	ItemID    uint   `gorm:"not null;index"`
	AlertType string `gorm:"type:varchar(30);not null"`
	Message   string
	CreatedAt time.Time `gorm:"index"`
}

func (AlertLog) TableName() string {
	return "alert_logs"
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryItem is the quantity ledger row for one product in one warehouse.
// AvailableQuantity is always Quantity - ReservedQuantity; Version guards
// every read-modify-write.
type InventoryItem struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID         uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_inventory_items_product_warehouse" json:"product_id"`
	WarehouseID       *uuid.UUID `gorm:"column:warehouse_id;type:uuid;uniqueIndex:ux_inventory_items_product_warehouse" json:"warehouse_id,omitempty"`
	StoreID           uuid.UUID  `gorm:"column:store_id;type:uuid;not null;index" json:"store_id"`
	SKU               *string    `gorm:"column:sku" json:"sku,omitempty"`
	Quantity          int        `gorm:"column:quantity;not null" json:"quantity"`
	ReservedQuantity  int        `gorm:"column:reserved_quantity;not null" json:"reserved_quantity"`
	AvailableQuantity int        `gorm:"column:available_quantity;not null" json:"available_quantity"`
	ReorderPoint      *int       `gorm:"column:reorder_point" json:"reorder_point,omitempty"`
	ReorderQuantity   *int       `gorm:"column:reorder_quantity" json:"reorder_quantity,omitempty"`
	LastRestockedAt   *time.Time `gorm:"column:last_restocked_at" json:"last_restocked_at,omitempty"`
	Version           int64      `gorm:"column:version;not null" json:"version"`
	Warehouse         *Warehouse `gorm:"foreignKey:WarehouseID" json:"warehouse,omitempty"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (i *InventoryItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// IsLowStock reports whether the item sits at or below its reorder point.
func (i InventoryItem) IsLowStock() bool {
	return i.ReorderPoint != nil && i.AvailableQuantity <= *i.ReorderPoint
}

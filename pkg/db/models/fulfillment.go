package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
)

// Fulfillment is one shipment against an order.
type Fulfillment struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID              uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	WarehouseID          *uuid.UUID               `gorm:"column:warehouse_id;type:uuid" json:"warehouse_id,omitempty"`
	Status               enums.FulfillmentStatus  `gorm:"column:status;type:varchar(32);not null" json:"status"`
	TrackingNumber       *string                  `gorm:"column:tracking_number" json:"tracking_number,omitempty"`
	TrackingURL          *string                  `gorm:"column:tracking_url" json:"tracking_url,omitempty"`
	Carrier              *string                  `gorm:"column:carrier" json:"carrier,omitempty"`
	ShippingMethod       *string                  `gorm:"column:shipping_method" json:"shipping_method,omitempty"`
	Notes                *string                  `gorm:"column:notes" json:"notes,omitempty"`
	CancelReason         *string                  `gorm:"column:cancel_reason" json:"cancel_reason,omitempty"`
	ShopifyFulfillmentID *string                  `gorm:"column:shopify_fulfillment_id" json:"shopify_fulfillment_id,omitempty"`
	PlatformSyncStatus   enums.PlatformSyncStatus `gorm:"column:platform_sync_status;type:varchar(32);not null" json:"platform_sync_status"`
	PlatformSyncError    *string                  `gorm:"column:platform_sync_error" json:"platform_sync_error,omitempty"`
	FulfilledBy          *uuid.UUID               `gorm:"column:fulfilled_by;type:uuid" json:"fulfilled_by,omitempty"`
	EstimatedDelivery    *time.Time               `gorm:"column:estimated_delivery" json:"estimated_delivery,omitempty"`
	ShippedAt            *time.Time               `gorm:"column:shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt          *time.Time               `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	ActualDelivery       *time.Time               `gorm:"column:actual_delivery" json:"actual_delivery,omitempty"`
	Items                []FulfillmentItem        `gorm:"foreignKey:FulfillmentID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (f *Fulfillment) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

// FulfillmentItem is the quantity of one order item carried by a shipment.
// ConsumedQuantity is the part of it taken off the ledger when it shipped.
type FulfillmentItem struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FulfillmentID    uuid.UUID `gorm:"column:fulfillment_id;type:uuid;not null;index" json:"fulfillment_id"`
	OrderItemID      uuid.UUID `gorm:"column:order_item_id;type:uuid;not null;index" json:"order_item_id"`
	Quantity         int       `gorm:"column:quantity;not null" json:"quantity"`
	ConsumedQuantity int       `gorm:"column:consumed_quantity;not null;default:0" json:"consumed_quantity"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (i *FulfillmentItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	"github.com/angelmondragon/ordergenie-backend/pkg/types"
)

// Order is a customer order, placed manually or synced from the platform.
type Order struct {
	ID                uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StoreID           uuid.UUID                    `gorm:"column:store_id;type:uuid;not null;index" json:"store_id"`
	ShopifyOrderID    *string                      `gorm:"column:shopify_order_id;uniqueIndex:ux_orders_shopify_order_id" json:"shopify_order_id,omitempty"`
	OrderNumber       string                       `gorm:"column:order_number;not null" json:"order_number"`
	CustomerName      string                       `gorm:"column:customer_name;not null" json:"customer_name"`
	CustomerEmail     *string                      `gorm:"column:customer_email" json:"customer_email,omitempty"`
	CustomerPhone     *string                      `gorm:"column:customer_phone" json:"customer_phone,omitempty"`
	ShippingAddress   *types.Address               `gorm:"column:shipping_address;type:jsonb" json:"shipping_address,omitempty"`
	OrderStatus       enums.OrderStatus            `gorm:"column:order_status;type:varchar(32);not null" json:"order_status"`
	FinancialStatus   enums.FinancialStatus        `gorm:"column:financial_status;type:varchar(32);not null" json:"financial_status"`
	FulfillmentStatus enums.OrderFulfillmentStatus `gorm:"column:fulfillment_status;type:varchar(32);not null" json:"fulfillment_status"`
	TotalAmount       decimal.Decimal              `gorm:"column:total_amount;type:numeric(12,2);not null" json:"total_amount"`
	TaxAmount         decimal.Decimal              `gorm:"column:tax_amount;type:numeric(12,2);not null" json:"tax_amount"`
	ShippingAmount    decimal.Decimal              `gorm:"column:shipping_amount;type:numeric(12,2);not null" json:"shipping_amount"`
	DiscountAmount    decimal.Decimal              `gorm:"column:discount_amount;type:numeric(12,2);not null" json:"discount_amount"`
	Currency          string                       `gorm:"column:currency;not null" json:"currency"`
	Tags              []string                     `gorm:"column:tags;type:jsonb;serializer:json" json:"tags"`
	Notes             *string                      `gorm:"column:notes" json:"notes,omitempty"`
	CancelReason      *string                      `gorm:"column:cancel_reason" json:"cancel_reason,omitempty"`
	ProcessedBy       *uuid.UUID                   `gorm:"column:processed_by;type:uuid" json:"processed_by,omitempty"`
	ProcessedAt       *time.Time                   `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CancelledAt       *time.Time                   `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	Items             []OrderItem                  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt         time.Time                    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time                    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is one line of an order. ReservedQuantity is what order placement
// actually claimed from the ledger, so cancellation releases exactly that.
type OrderItem struct {
	ID                uuid.UUID                        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID           uuid.UUID                        `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID         *uuid.UUID                       `gorm:"column:product_id;type:uuid" json:"product_id,omitempty"`
	WarehouseID       *uuid.UUID                       `gorm:"column:warehouse_id;type:uuid" json:"warehouse_id,omitempty"`
	ShopifyLineItemID *string                          `gorm:"column:shopify_line_item_id" json:"shopify_line_item_id,omitempty"`
	Name              string                           `gorm:"column:name;not null" json:"name"`
	SKU               *string                          `gorm:"column:sku" json:"sku,omitempty"`
	Quantity          int                              `gorm:"column:quantity;not null" json:"quantity"`
	Price             decimal.Decimal                  `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	TotalAmount       decimal.Decimal                  `gorm:"column:total_amount;type:numeric(12,2);not null" json:"total_amount"`
	TaxAmount         decimal.Decimal                  `gorm:"column:tax_amount;type:numeric(12,2);not null" json:"tax_amount"`
	DiscountAmount    decimal.Decimal                  `gorm:"column:discount_amount;type:numeric(12,2);not null" json:"discount_amount"`
	FulfillmentStatus enums.OrderItemFulfillmentStatus `gorm:"column:fulfillment_status;type:varchar(32);not null" json:"fulfillment_status"`
	ReservedQuantity  int                              `gorm:"column:reserved_quantity;not null" json:"reserved_quantity"`
	CreatedAt         time.Time                        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time                        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

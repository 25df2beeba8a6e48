package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
)

// ReturnRequest is an RMA raised against an order.
type ReturnRequest struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID            uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ReturnNumber       string                   `gorm:"column:return_number;not null;uniqueIndex:ux_return_requests_number" json:"return_number"`
	Status             enums.ReturnStatus       `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Reason             string                   `gorm:"column:reason;not null" json:"reason"`
	CustomerNotes      *string                  `gorm:"column:customer_notes" json:"customer_notes,omitempty"`
	InternalNotes      *string                  `gorm:"column:internal_notes" json:"internal_notes,omitempty"`
	RefundAmount       *decimal.Decimal         `gorm:"column:refund_amount;type:numeric(12,2)" json:"refund_amount,omitempty"`
	RestockFee         *decimal.Decimal         `gorm:"column:restock_fee;type:numeric(12,2)" json:"restock_fee,omitempty"`
	RefundMethod       *string                  `gorm:"column:refund_method" json:"refund_method,omitempty"`
	ApprovedBy         *uuid.UUID               `gorm:"column:approved_by;type:uuid" json:"approved_by,omitempty"`
	ApprovedAt         *time.Time               `gorm:"column:approved_at" json:"approved_at,omitempty"`
	RejectedAt         *time.Time               `gorm:"column:rejected_at" json:"rejected_at,omitempty"`
	ReceivedAt         *time.Time               `gorm:"column:received_at" json:"received_at,omitempty"`
	CompletedAt        *time.Time               `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time               `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	Restocked          bool                     `gorm:"column:restocked;not null" json:"restocked"`
	PlatformSyncStatus enums.PlatformSyncStatus `gorm:"column:platform_sync_status;type:varchar(32);not null" json:"platform_sync_status"`
	PlatformSyncError  *string                  `gorm:"column:platform_sync_error" json:"platform_sync_error,omitempty"`
	Items              []ReturnItem             `gorm:"foreignKey:ReturnRequestID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (r *ReturnRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// ReturnItem is the quantity of one order item being sent back.
type ReturnItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ReturnRequestID uuid.UUID `gorm:"column:return_request_id;type:uuid;not null;index" json:"return_request_id"`
	OrderItemID     uuid.UUID `gorm:"column:order_item_id;type:uuid;not null" json:"order_item_id"`
	Quantity        int       `gorm:"column:quantity;not null" json:"quantity"`
	Condition       *string   `gorm:"column:condition" json:"condition,omitempty"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (i *ReturnItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

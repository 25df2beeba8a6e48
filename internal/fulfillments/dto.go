package fulfillments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
)

// ItemInput is the quantity of one order item a shipment carries.
type ItemInput struct {
	OrderItemID uuid.UUID
	Quantity    int
}

// CreateInput opens a shipment against an order.
type CreateInput struct {
	OrderID           uuid.UUID
	WarehouseID       *uuid.UUID
	TrackingNumber    *string
	TrackingURL       *string
	Carrier           *string
	ShippingMethod    *string
	EstimatedDelivery *time.Time
	Notes             *string
	Items             []ItemInput
	ActorUserID       *uuid.UUID
	ActorRole         string
}

// UpdateInput edits shipment details. Nil fields are left alone.
type UpdateInput struct {
	FulfillmentID     uuid.UUID
	WarehouseID       *uuid.UUID
	Carrier           *string
	ShippingMethod    *string
	TrackingURL       *string
	EstimatedDelivery *time.Time
	Notes             *string
}

// TrackingInput records carrier tracking.
type TrackingInput struct {
	FulfillmentID  uuid.UUID
	TrackingNumber string
	Carrier        *string
	TrackingURL    *string
}

// StatusInput moves a shipment through its lifecycle.
type StatusInput struct {
	FulfillmentID uuid.UUID
	Status        enums.FulfillmentStatus
	ActorUserID   *uuid.UUID
	ActorRole     string
}

// ShipInput marks a shipment as shipped, optionally supplying tracking in
// the same call.
type ShipInput struct {
	FulfillmentID  uuid.UUID
	TrackingNumber *string
	Carrier        *string
	TrackingURL    *string
	NotifyCustomer bool
	ActorUserID    *uuid.UUID
	ActorRole      string
}

// CancelInput cancels a shipment.
type CancelInput struct {
	FulfillmentID uuid.UUID
	Reason        *string
	ActorUserID   *uuid.UUID
	ActorRole     string
}

// ListFilters narrows fulfillment list queries.
type ListFilters struct {
	OrderID     *uuid.UUID
	StoreID     *uuid.UUID
	WarehouseID *uuid.UUID
	Status      *enums.FulfillmentStatus
	StartDate   *time.Time
	EndDate     *time.Time
	Limit       int
	Offset      int
}

// FulfillmentList is one page of fulfillments.
type FulfillmentList struct {
	Fulfillments []models.Fulfillment `json:"fulfillments"`
	Total        int64                `json:"total"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

// AnalyticsFilters scopes fulfillment analytics.
type AnalyticsFilters struct {
	StoreID     *uuid.UUID
	WarehouseID *uuid.UUID
	StartDate   *time.Time
	EndDate     *time.Time
}

// Analytics summarises shipments.
type Analytics struct {
	TotalFulfillments int64                             `json:"total_fulfillments"`
	ByStatus          map[enums.FulfillmentStatus]int64 `json:"fulfillments_by_status"`
	AvgHoursToShip    float64                           `json:"avg_hours_to_ship"`
	PlatformSyncFails int64                             `json:"platform_sync_failures"`
}

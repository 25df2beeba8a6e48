package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	"github.com/angelmondragon/ordergenie-backend/pkg/types"
)

// CreateOrderItemInput is one line of a manually placed order. Lines with a
// ProductID reserve stock; lines without one are tracked but not reserved.
type CreateOrderItemInput struct {
	ProductID      *uuid.UUID
	WarehouseID    *uuid.UUID
	Name           string
	SKU            *string
	Quantity       int
	Price          decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
}

// CreateOrderInput captures a manually placed order.
type CreateOrderInput struct {
	StoreID         uuid.UUID
	OrderNumber     string
	CustomerName    string
	CustomerEmail   *string
	CustomerPhone   *string
	ShippingAddress *types.Address
	FinancialStatus enums.FinancialStatus
	Currency        string
	TaxAmount       decimal.Decimal
	ShippingAmount  decimal.Decimal
	DiscountAmount  decimal.Decimal
	Tags            []string
	Notes           *string
	Items           []CreateOrderItemInput
	ActorUserID     *uuid.UUID
	ActorRole       string
}

// CancelOrderInput cancels an order and hands its reservations back.
type CancelOrderInput struct {
	OrderID     uuid.UUID
	Reason      *string
	ActorUserID *uuid.UUID
	ActorRole   string
}

// ListFilters narrows order list queries.
type ListFilters struct {
	StoreID           *uuid.UUID
	Status            *enums.OrderStatus
	FulfillmentStatus *enums.OrderFulfillmentStatus
	StartDate         *time.Time
	EndDate           *time.Time
	Search            string
	Limit             int
	Offset            int
}

// OrderList is one page of orders.
type OrderList struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// AnalyticsFilters scopes order analytics.
type AnalyticsFilters struct {
	StoreID   *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
}

// Analytics aggregates order volume and revenue.
type Analytics struct {
	TotalOrders    int64                       `json:"total_orders"`
	TotalRevenue   decimal.Decimal             `json:"total_revenue"`
	AvgOrderValue  decimal.Decimal             `json:"avg_order_value"`
	OrdersByStatus map[enums.OrderStatus]int64 `json:"orders_by_status"`
}

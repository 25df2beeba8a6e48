package returns

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
)

// ItemInput is one order item being sent back.
type ItemInput struct {
	OrderItemID uuid.UUID
	Quantity    int
	Condition   *string
}

// CreateInput raises an RMA against an order.
type CreateInput struct {
	OrderID       uuid.UUID
	Reason        string
	CustomerNotes *string
	Items         []ItemInput
	ActorUserID   *uuid.UUID
	ActorRole     string
}

// ApproveInput approves a pending return, optionally fixing the refund.
type ApproveInput struct {
	ReturnID     uuid.UUID
	RefundAmount *decimal.Decimal
	RestockFee   *decimal.Decimal
	ActorUserID  *uuid.UUID
	ActorRole    string
}

// RejectInput rejects a pending return.
type RejectInput struct {
	ReturnID    uuid.UUID
	Reason      string
	ActorUserID *uuid.UUID
	ActorRole   string
}

// InspectInput starts inspection of received goods, recording the condition
// of each returned order item.
type InspectInput struct {
	ReturnID    uuid.UUID
	Conditions  map[uuid.UUID]string
	ActorUserID *uuid.UUID
	ActorRole   string
}

// RefundInput completes a return with its refund.
type RefundInput struct {
	ReturnID    uuid.UUID
	Amount      *decimal.Decimal
	Method      string
	ActorUserID *uuid.UUID
	ActorRole   string
}

// CancelInput withdraws an open return.
type CancelInput struct {
	ReturnID    uuid.UUID
	Reason      *string
	ActorUserID *uuid.UUID
	ActorRole   string
}

// ListFilters narrows return list queries.
type ListFilters struct {
	OrderID   *uuid.UUID
	StoreID   *uuid.UUID
	Status    *enums.ReturnStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// ReturnList is one page of returns.
type ReturnList struct {
	Returns []models.ReturnRequest `json:"returns"`
	Total   int64                  `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// AnalyticsFilters scopes return analytics.
type AnalyticsFilters struct {
	StoreID   *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
}

// Analytics summarises returns.
type Analytics struct {
	TotalReturns      int64                        `json:"total_returns"`
	ByStatus          map[enums.ReturnStatus]int64 `json:"returns_by_status"`
	TotalRefundAmount decimal.Decimal              `json:"total_refund_amount"`
}

package enums

import "fmt"

// OrderStatus is the lifecycle of an order as a whole.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusProcessed OrderStatus = "PROCESSED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusOnHold    OrderStatus = "ON_HOLD"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusOnHold,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further lifecycle moves are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

var orderStatusMoves = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusProcessed, OrderStatusOnHold, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusProcessed: {OrderStatusOnHold, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusOnHold:    {OrderStatusProcessed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// CanMoveTo reports whether an order may go from s to next. Staying put is
// always allowed; otherwise orders only move forward.
func (s OrderStatus) CanMoveTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, candidate := range orderStatusMoves[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// FinancialStatus mirrors the payment state reported by the commerce platform.
type FinancialStatus string

const (
	FinancialStatusPending           FinancialStatus = "PENDING"
	FinancialStatusAuthorized        FinancialStatus = "AUTHORIZED"
	FinancialStatusPartiallyPaid     FinancialStatus = "PARTIALLY_PAID"
	FinancialStatusPaid              FinancialStatus = "PAID"
	FinancialStatusPartiallyRefunded FinancialStatus = "PARTIALLY_REFUNDED"
	FinancialStatusRefunded          FinancialStatus = "REFUNDED"
	FinancialStatusVoided            FinancialStatus = "VOIDED"
)

var validFinancialStatuses = []FinancialStatus{
	FinancialStatusPending,
	FinancialStatusAuthorized,
	FinancialStatusPartiallyPaid,
	FinancialStatusPaid,
	FinancialStatusPartiallyRefunded,
	FinancialStatusRefunded,
	FinancialStatusVoided,
}

// String implements fmt.Stringer.
func (s FinancialStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known FinancialStatus.
func (s FinancialStatus) IsValid() bool {
	for _, candidate := range validFinancialStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseFinancialStatus converts raw input into a FinancialStatus.
func ParseFinancialStatus(value string) (FinancialStatus, error) {
	for _, candidate := range validFinancialStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid financial status %q", value)
}

// OrderFulfillmentStatus is the derived shipping progress of an order.
type OrderFulfillmentStatus string

const (
	OrderFulfillmentUnfulfilled        OrderFulfillmentStatus = "UNFULFILLED"
	OrderFulfillmentPartiallyFulfilled OrderFulfillmentStatus = "PARTIALLY_FULFILLED"
	OrderFulfillmentFulfilled          OrderFulfillmentStatus = "FULFILLED"
	OrderFulfillmentScheduled          OrderFulfillmentStatus = "SCHEDULED"
)

var validOrderFulfillmentStatuses = []OrderFulfillmentStatus{
	OrderFulfillmentUnfulfilled,
	OrderFulfillmentPartiallyFulfilled,
	OrderFulfillmentFulfilled,
	OrderFulfillmentScheduled,
}

// String implements fmt.Stringer.
func (s OrderFulfillmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderFulfillmentStatus.
func (s OrderFulfillmentStatus) IsValid() bool {
	for _, candidate := range validOrderFulfillmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderFulfillmentStatus converts raw input into an OrderFulfillmentStatus.
func ParseOrderFulfillmentStatus(value string) (OrderFulfillmentStatus, error) {
	for _, candidate := range validOrderFulfillmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order fulfillment status %q", value)
}

// OrderItemFulfillmentStatus tracks a single line.
type OrderItemFulfillmentStatus string

const (
	OrderItemUnfulfilled OrderItemFulfillmentStatus = "UNFULFILLED"
	OrderItemFulfilled   OrderItemFulfillmentStatus = "FULFILLED"
	OrderItemReturned    OrderItemFulfillmentStatus = "RETURNED"
)

var validOrderItemFulfillmentStatuses = []OrderItemFulfillmentStatus{
	OrderItemUnfulfilled,
	OrderItemFulfilled,
	OrderItemReturned,
}

// IsValid reports whether the value is a known OrderItemFulfillmentStatus.
func (s OrderItemFulfillmentStatus) IsValid() bool {
	for _, candidate := range validOrderItemFulfillmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

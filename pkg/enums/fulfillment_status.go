package enums

import "fmt"

// FulfillmentStatus is the lifecycle of one shipment.
type FulfillmentStatus string

const (
	FulfillmentPending        FulfillmentStatus = "PENDING"
	FulfillmentProcessing     FulfillmentStatus = "PROCESSING"
	FulfillmentReadyToShip    FulfillmentStatus = "READY_TO_SHIP"
	FulfillmentShipped        FulfillmentStatus = "SHIPPED"
	FulfillmentInTransit      FulfillmentStatus = "IN_TRANSIT"
	FulfillmentOutForDelivery FulfillmentStatus = "OUT_FOR_DELIVERY"
	FulfillmentDelivered      FulfillmentStatus = "DELIVERED"
	FulfillmentCancelled      FulfillmentStatus = "CANCELLED"
	FulfillmentFailed         FulfillmentStatus = "FAILED"
)

var validFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentPending,
	FulfillmentProcessing,
	FulfillmentReadyToShip,
	FulfillmentShipped,
	FulfillmentInTransit,
	FulfillmentOutForDelivery,
	FulfillmentDelivered,
	FulfillmentCancelled,
	FulfillmentFailed,
}

// String implements fmt.Stringer.
func (s FulfillmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known FulfillmentStatus.
func (s FulfillmentStatus) IsValid() bool {
	for _, candidate := range validFulfillmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the shipment can no longer move.
func (s FulfillmentStatus) IsTerminal() bool {
	switch s {
	case FulfillmentDelivered, FulfillmentCancelled, FulfillmentFailed:
		return true
	}
	return false
}

// CountsAsFulfilled reports whether the items of a shipment in this state
// count towards the order's fulfilled quantity. The carrier states between
// SHIPPED and DELIVERED count, so tracking updates never un-fulfill an order.
func (s FulfillmentStatus) CountsAsFulfilled() bool {
	switch s {
	case FulfillmentShipped, FulfillmentInTransit, FulfillmentOutForDelivery, FulfillmentDelivered:
		return true
	}
	return false
}

var fulfillmentMoves = map[FulfillmentStatus]FulfillmentStatus{
	FulfillmentPending:        FulfillmentProcessing,
	FulfillmentProcessing:     FulfillmentReadyToShip,
	FulfillmentReadyToShip:    FulfillmentShipped,
	FulfillmentShipped:        FulfillmentInTransit,
	FulfillmentInTransit:      FulfillmentOutForDelivery,
	FulfillmentOutForDelivery: FulfillmentDelivered,
}

// CanMoveTo reports whether a shipment may go from s to next. Shipments move
// forward through the carrier states, and may skip ahead but never back.
// CANCELLED and FAILED are reachable from any non-terminal state.
func (s FulfillmentStatus) CanMoveTo(next FulfillmentStatus) bool {
	if s.IsTerminal() || !next.IsValid() || s == next {
		return false
	}
	if next == FulfillmentCancelled || next == FulfillmentFailed {
		return true
	}
	for cur, ok := fulfillmentMoves[s]; ok; cur, ok = fulfillmentMoves[cur] {
		if cur == next {
			return true
		}
	}
	return false
}

// ParseFulfillmentStatus converts raw input into a FulfillmentStatus.
func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	for _, candidate := range validFulfillmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment status %q", value)
}

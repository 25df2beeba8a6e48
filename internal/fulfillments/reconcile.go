package fulfillments

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
)

// FulfilledQuantities sums, per order item, the quantities carried by
// shipments that have left the warehouse.
func FulfilledQuantities(fulfillments []models.Fulfillment) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int)
	for _, f := range fulfillments {
		if !f.Status.CountsAsFulfilled() {
			continue
		}
		for _, item := range f.Items {
			out[item.OrderItemID] += item.Quantity
		}
	}
	return out
}

// CommittedQuantities sums, per order item, the quantities claimed by every
// shipment that is still live, shipped or not.
func CommittedQuantities(fulfillments []models.Fulfillment) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int)
	for _, f := range fulfillments {
		if f.Status == enums.FulfillmentCancelled || f.Status == enums.FulfillmentFailed {
			continue
		}
		for _, item := range f.Items {
			out[item.OrderItemID] += item.Quantity
		}
	}
	return out
}

// DeriveOrderFulfillmentStatus computes the order-level status from ordered
// and shipped totals.
func DeriveOrderFulfillmentStatus(items []models.OrderItem, fulfillments []models.Fulfillment) enums.OrderFulfillmentStatus {
	ordered := 0
	for _, item := range items {
		ordered += item.Quantity
	}
	fulfilled := 0
	for _, qty := range FulfilledQuantities(fulfillments) {
		fulfilled += qty
	}

	switch {
	case fulfilled == 0:
		return enums.OrderFulfillmentUnfulfilled
	case fulfilled >= ordered:
		return enums.OrderFulfillmentFulfilled
	default:
		return enums.OrderFulfillmentPartiallyFulfilled
	}
}

// DeriveItemStatuses marks each item FULFILLED once shipped quantities cover
// it. RETURNED items keep their status.
func DeriveItemStatuses(items []models.OrderItem, fulfillments []models.Fulfillment) map[uuid.UUID]enums.OrderItemFulfillmentStatus {
	fulfilled := FulfilledQuantities(fulfillments)
	out := make(map[uuid.UUID]enums.OrderItemFulfillmentStatus, len(items))
	for _, item := range items {
		switch {
		case item.FulfillmentStatus == enums.OrderItemReturned:
			out[item.ID] = enums.OrderItemReturned
		case fulfilled[item.ID] >= item.Quantity:
			out[item.ID] = enums.OrderItemFulfilled
		default:
			out[item.ID] = enums.OrderItemUnfulfilled
		}
	}
	return out
}

// NextOrderStatus returns the order status implied by a shipment reaching
// the given state. The order never moves backwards: a cancelled or delivered
// order stays put, and a shipped order only moves on to DELIVERED.
func NextOrderStatus(current enums.OrderStatus, shipment enums.FulfillmentStatus) enums.OrderStatus {
	var target enums.OrderStatus
	switch {
	case shipment == enums.FulfillmentDelivered:
		target = enums.OrderStatusDelivered
	case shipment.CountsAsFulfilled():
		target = enums.OrderStatusShipped
	default:
		return current
	}
	if !current.CanMoveTo(target) {
		return current
	}
	return target
}

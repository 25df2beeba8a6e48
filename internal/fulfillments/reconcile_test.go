package fulfillments

import (
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
)

func shipment(status enums.FulfillmentStatus, items ...models.FulfillmentItem) models.Fulfillment {
	return models.Fulfillment{ID: uuid.New(), Status: status, Items: items}
}

func TestDeriveOrderFulfillmentStatus(t *testing.T) {
	first := models.OrderItem{ID: uuid.New(), Quantity: 3}
	second := models.OrderItem{ID: uuid.New(), Quantity: 2}
	items := []models.OrderItem{first, second}

	cases := []struct {
		name   string
		ships  []models.Fulfillment
		expect enums.OrderFulfillmentStatus
	}{
		{"none", nil, enums.OrderFulfillmentUnfulfilled},
		{"pending only", []models.Fulfillment{
			shipment(enums.FulfillmentPending, models.FulfillmentItem{OrderItemID: first.ID, Quantity: 3}),
		}, enums.OrderFulfillmentUnfulfilled},
		{"first item shipped", []models.Fulfillment{
			shipment(enums.FulfillmentShipped, models.FulfillmentItem{OrderItemID: first.ID, Quantity: 3}),
		}, enums.OrderFulfillmentPartiallyFulfilled},
		{"both shipped", []models.Fulfillment{
			shipment(enums.FulfillmentShipped, models.FulfillmentItem{OrderItemID: first.ID, Quantity: 3}),
			shipment(enums.FulfillmentDelivered, models.FulfillmentItem{OrderItemID: second.ID, Quantity: 2}),
		}, enums.OrderFulfillmentFulfilled},
		{"in transit counts", []models.Fulfillment{
			shipment(enums.FulfillmentInTransit,
				models.FulfillmentItem{OrderItemID: first.ID, Quantity: 3},
				models.FulfillmentItem{OrderItemID: second.ID, Quantity: 2}),
		}, enums.OrderFulfillmentFulfilled},
		{"cancelled excluded", []models.Fulfillment{
			shipment(enums.FulfillmentCancelled, models.FulfillmentItem{OrderItemID: first.ID, Quantity: 3}),
			shipment(enums.FulfillmentFailed, models.FulfillmentItem{OrderItemID: second.ID, Quantity: 2}),
		}, enums.OrderFulfillmentUnfulfilled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveOrderFulfillmentStatus(items, tc.ships)
			if got != tc.expect {
				t.Fatalf("expected %s, got %s", tc.expect, got)
			}
			if again := DeriveOrderFulfillmentStatus(items, tc.ships); again != got {
				t.Fatalf("recompute changed status from %s to %s", got, again)
			}
		})
	}
}

func TestDeriveItemStatusesKeepsReturned(t *testing.T) {
	shipped := models.OrderItem{ID: uuid.New(), Quantity: 2, FulfillmentStatus: enums.OrderItemUnfulfilled}
	partial := models.OrderItem{ID: uuid.New(), Quantity: 4, FulfillmentStatus: enums.OrderItemUnfulfilled}
	returned := models.OrderItem{ID: uuid.New(), Quantity: 1, FulfillmentStatus: enums.OrderItemReturned}

	got := DeriveItemStatuses([]models.OrderItem{shipped, partial, returned}, []models.Fulfillment{
		shipment(enums.FulfillmentShipped,
			models.FulfillmentItem{OrderItemID: shipped.ID, Quantity: 2},
			models.FulfillmentItem{OrderItemID: partial.ID, Quantity: 1}),
	})

	if got[shipped.ID] != enums.OrderItemFulfilled {
		t.Fatalf("expected shipped item fulfilled, got %s", got[shipped.ID])
	}
	if got[partial.ID] != enums.OrderItemUnfulfilled {
		t.Fatalf("expected partial item unfulfilled, got %s", got[partial.ID])
	}
	if got[returned.ID] != enums.OrderItemReturned {
		t.Fatalf("expected returned item untouched, got %s", got[returned.ID])
	}
}

func TestCommittedQuantitiesSkipsDeadShipments(t *testing.T) {
	item := uuid.New()
	got := CommittedQuantities([]models.Fulfillment{
		shipment(enums.FulfillmentPending, models.FulfillmentItem{OrderItemID: item, Quantity: 1}),
		shipment(enums.FulfillmentShipped, models.FulfillmentItem{OrderItemID: item, Quantity: 2}),
		shipment(enums.FulfillmentCancelled, models.FulfillmentItem{OrderItemID: item, Quantity: 5}),
	})
	if got[item] != 3 {
		t.Fatalf("expected 3 committed, got %d", got[item])
	}
}

func TestNextOrderStatusNeverRegresses(t *testing.T) {
	cases := []struct {
		current  enums.OrderStatus
		shipment enums.FulfillmentStatus
		expect   enums.OrderStatus
	}{
		{enums.OrderStatusPending, enums.FulfillmentShipped, enums.OrderStatusShipped},
		{enums.OrderStatusProcessed, enums.FulfillmentInTransit, enums.OrderStatusShipped},
		{enums.OrderStatusOnHold, enums.FulfillmentShipped, enums.OrderStatusShipped},
		{enums.OrderStatusShipped, enums.FulfillmentDelivered, enums.OrderStatusDelivered},
		{enums.OrderStatusPending, enums.FulfillmentDelivered, enums.OrderStatusDelivered},
		{enums.OrderStatusDelivered, enums.FulfillmentShipped, enums.OrderStatusDelivered},
		{enums.OrderStatusShipped, enums.FulfillmentShipped, enums.OrderStatusShipped},
		{enums.OrderStatusCancelled, enums.FulfillmentShipped, enums.OrderStatusCancelled},
		{enums.OrderStatusCancelled, enums.FulfillmentDelivered, enums.OrderStatusCancelled},
		{enums.OrderStatusProcessed, enums.FulfillmentPending, enums.OrderStatusProcessed},
		{enums.OrderStatusShipped, enums.FulfillmentCancelled, enums.OrderStatusShipped},
	}
	for _, tc := range cases {
		if got := NextOrderStatus(tc.current, tc.shipment); got != tc.expect {
			t.Fatalf("NextOrderStatus(%s, %s) = %s, want %s", tc.current, tc.shipment, got, tc.expect)
		}
	}
}

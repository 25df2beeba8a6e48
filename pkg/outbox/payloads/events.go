package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once an order and its reservations commit.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID         `json:"orderId"`
	StoreID        uuid.UUID         `json:"storeId"`
	OrderNumber    string            `json:"orderNumber"`
	ShopifyOrderID *string           `json:"shopifyOrderId,omitempty"`
	OrderStatus    enums.OrderStatus `json:"orderStatus"`
	ItemCount      int               `json:"itemCount"`
	TotalAmount    string            `json:"totalAmount"`
	Currency       string            `json:"currency"`
}

// OrderCancelledEvent lists the quantities handed back to the ledger.
type OrderCancelledEvent struct {
	OrderID  uuid.UUID          `json:"orderId"`
	StoreID  uuid.UUID          `json:"storeId"`
	Reason   *string            `json:"reason,omitempty"`
	Released []ReleasedQuantity `json:"released,omitempty"`
}

// ReleasedQuantity is one ledger release performed by a cancellation.
type ReleasedQuantity struct {
	OrderItemID uuid.UUID  `json:"orderItemId"`
	ProductID   uuid.UUID  `json:"productId"`
	WarehouseID *uuid.UUID `json:"warehouseId,omitempty"`
	Quantity    int        `json:"quantity"`
}

// FulfillmentStatusChangedEvent carries the reconciled order state with the
// shipment transition.
type FulfillmentStatusChangedEvent struct {
	FulfillmentID          uuid.UUID                    `json:"fulfillmentId"`
	OrderID                uuid.UUID                    `json:"orderId"`
	From                   enums.FulfillmentStatus      `json:"from"`
	To                     enums.FulfillmentStatus      `json:"to"`
	TrackingNumber         *string                      `json:"trackingNumber,omitempty"`
	Carrier                *string                      `json:"carrier,omitempty"`
	OrderStatus            enums.OrderStatus            `json:"orderStatus"`
	OrderFulfillmentStatus enums.OrderFulfillmentStatus `json:"orderFulfillmentStatus"`
}

// ReturnStatusChangedEvent records a return lifecycle move.
type ReturnStatusChangedEvent struct {
	ReturnRequestID uuid.UUID          `json:"returnRequestId"`
	OrderID         uuid.UUID          `json:"orderId"`
	ReturnNumber    string             `json:"returnNumber"`
	From            enums.ReturnStatus `json:"from"`
	To              enums.ReturnStatus `json:"to"`
	RefundAmount    *string            `json:"refundAmount,omitempty"`
	Restocked       bool               `json:"restocked,omitempty"`
}

// NotificationRequestedEvent asks the notification collaborator to deliver a
// message. Delivery outcome is not reported back.
type NotificationRequestedEvent struct {
	Type      enums.NotificationType    `json:"type"`
	Channel   enums.NotificationChannel `json:"channel"`
	Recipient string                    `json:"recipient"`
	Subject   string                    `json:"subject,omitempty"`
	Message   string                    `json:"message"`
	Metadata  map[string]any            `json:"metadata,omitempty"`
}

package notifications

import (
	"fmt"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
)

// Internal Slack recipients.
const (
	RecipientOrders    = "orders"
	RecipientInventory = "inventory"
	RecipientReturns   = "returns"
)

// OrderCreated builds the customer confirmation (when the order has an
// email) and the internal Slack alert for a new order.
func OrderCreated(order *models.Order) []Request {
	meta := map[string]any{"orderId": order.ID, "orderNumber": order.OrderNumber}
	var out []Request
	if order.CustomerEmail != nil && *order.CustomerEmail != "" {
		out = append(out, Request{
			Type:      enums.NotificationOrderCreated,
			Channel:   enums.NotificationChannelEmail,
			Recipient: *order.CustomerEmail,
			Subject:   "Order Confirmation - " + order.OrderNumber,
			Message: fmt.Sprintf("<h2>New Order Received</h2><p><strong>Order Number:</strong> %s</p><p><strong>Customer:</strong> %s</p><p><strong>Total:</strong> %s %s</p><p><strong>Items:</strong> %d</p>",
				order.OrderNumber, order.CustomerName, order.Currency, order.TotalAmount.StringFixed(2), len(order.Items)),
			Metadata:      meta,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
		})
	}
	out = append(out, Request{
		Type:          enums.NotificationOrderCreated,
		Channel:       enums.NotificationChannelSlack,
		Recipient:     RecipientOrders,
		Message:       fmt.Sprintf("New order %s from %s - %s %s", order.OrderNumber, order.CustomerName, order.Currency, order.TotalAmount.StringFixed(2)),
		Metadata:      meta,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
	})
	return out
}

// OrderShipped tells the customer their tracking number. It reports false
// when the order has no email to send to.
func OrderShipped(order *models.Order, fulfillment *models.Fulfillment) (Request, bool) {
	if order.CustomerEmail == nil || *order.CustomerEmail == "" {
		return Request{}, false
	}
	tracking := ""
	if fulfillment.TrackingNumber != nil {
		tracking = *fulfillment.TrackingNumber
	}
	return Request{
		Type:      enums.NotificationOrderShipped,
		Channel:   enums.NotificationChannelEmail,
		Recipient: *order.CustomerEmail,
		Subject:   "Order Shipped - " + order.OrderNumber,
		Message: fmt.Sprintf("<h2>Your Order Has Been Shipped!</h2><p><strong>Order Number:</strong> %s</p><p><strong>Tracking Number:</strong> %s</p><p>Your order is on its way and should arrive soon.</p>",
			order.OrderNumber, tracking),
		Metadata:      map[string]any{"orderId": order.ID, "fulfillmentId": fulfillment.ID, "trackingNumber": tracking},
		AggregateType: enums.AggregateFulfillment,
		AggregateID:   fulfillment.ID,
	}, true
}

// LowStock alerts on one inventory row at or below its reorder point.
func LowStock(item models.InventoryItem, channel enums.NotificationChannel, recipient string) Request {
	label := item.ProductID.String()
	if item.SKU != nil && *item.SKU != "" {
		label = *item.SKU
	}
	point := 0
	if item.ReorderPoint != nil {
		point = *item.ReorderPoint
	}
	return Request{
		Type:      enums.NotificationInventoryLow,
		Channel:   channel,
		Recipient: recipient,
		Subject:   "Low stock: " + label,
		Message:   fmt.Sprintf("Low Stock Alert: %s - available %d, reorder point %d", label, item.AvailableQuantity, point),
		Metadata: map[string]any{
			"productId":    item.ProductID,
			"warehouseId":  item.WarehouseID,
			"currentStock": item.AvailableQuantity,
			"reorderPoint": point,
		},
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   item.ID,
	}
}

// ReturnRequested alerts the returns desk.
func ReturnRequested(ret *models.ReturnRequest, orderNumber string) Request {
	return Request{
		Type:          enums.NotificationReturnRequested,
		Channel:       enums.NotificationChannelSlack,
		Recipient:     RecipientReturns,
		Message:       fmt.Sprintf("New return request %s for order %s", ret.ReturnNumber, orderNumber),
		Metadata:      map[string]any{"returnId": ret.ID, "orderId": ret.OrderID},
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   ret.ID,
	}
}

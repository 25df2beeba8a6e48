package models

// All lists every persisted model in dependency order.
func All() []any {
	return []any{
		&Store{},
		&Warehouse{},
		&InventoryItem{},
		&Order{},
		&OrderItem{},
		&Fulfillment{},
		&FulfillmentItem{},
		&ReturnRequest{},
		&ReturnItem{},
		&WebhookEvent{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}

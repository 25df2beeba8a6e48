package inventory

import (
	"context"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/google/uuid"
)

// ReorderSuggestion proposes a replenishment for one low-stock row.
type ReorderSuggestion struct {
	InventoryItemID        uuid.UUID  `json:"inventory_item_id"`
	ProductID              uuid.UUID  `json:"product_id"`
	WarehouseID            *uuid.UUID `json:"warehouse_id,omitempty"`
	StoreID                uuid.UUID  `json:"store_id"`
	SKU                    *string    `json:"sku,omitempty"`
	CurrentQuantity        int        `json:"current_quantity"`
	ReorderPoint           int        `json:"reorder_point"`
	SuggestedOrderQuantity int        `json:"suggested_order_quantity"`
}

// LowStockItems lists rows whose available balance is at or below their
// reorder point. It never writes.
func (s *Service) LowStockItems(ctx context.Context, storeID *uuid.UUID) ([]models.InventoryItem, error) {
	return s.repo.LowStock(ctx, storeID)
}

// ReorderSuggestions projects the low-stock rows into replenishment hints.
func (s *Service) ReorderSuggestions(ctx context.Context, storeID *uuid.UUID) ([]ReorderSuggestion, error) {
	items, err := s.repo.LowStock(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return Suggest(items), nil
}

// Suggest maps low-stock rows to suggestions, skipping rows that are not low.
func Suggest(items []models.InventoryItem) []ReorderSuggestion {
	out := make([]ReorderSuggestion, 0, len(items))
	for _, item := range items {
		if !item.IsLowStock() {
			continue
		}
		suggested := 0
		if item.ReorderQuantity != nil {
			suggested = *item.ReorderQuantity
		}
		out = append(out, ReorderSuggestion{
			InventoryItemID:        item.ID,
			ProductID:              item.ProductID,
			WarehouseID:            item.WarehouseID,
			StoreID:                item.StoreID,
			SKU:                    item.SKU,
			CurrentQuantity:        item.AvailableQuantity,
			ReorderPoint:           *item.ReorderPoint,
			SuggestedOrderQuantity: suggested,
		})
	}
	return out
}

package inventory

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordergenie-backend/api/middleware"
	"github.com/angelmondragon/ordergenie-backend/api/responses"
	"github.com/angelmondragon/ordergenie-backend/api/validators"
	internalinventory "github.com/angelmondragon/ordergenie-backend/internal/inventory"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
)

// Service is the ledger surface the handlers drive.
type Service interface {
	CreateItem(ctx context.Context, input internalinventory.CreateItemInput) (*models.InventoryItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	ListItems(ctx context.Context, filters internalinventory.ListFilters) (*internalinventory.ItemList, error)
	Analytics(ctx context.Context, storeID *uuid.UUID) (*internalinventory.Analytics, error)
	Adjust(ctx context.Context, input internalinventory.AdjustInput) (*models.InventoryItem, error)
	Restock(ctx context.Context, itemID uuid.UUID, amount int) (*models.InventoryItem, error)
	Reserve(ctx context.Context, input internalinventory.ReservationInput) (*models.InventoryItem, error)
	Release(ctx context.Context, input internalinventory.ReservationInput) (*internalinventory.ReleaseResult, error)
	SetReorderPoint(ctx context.Context, itemID uuid.UUID, point, quantity *int) (*models.InventoryItem, error)
	LowStockItems(ctx context.Context, storeID *uuid.UUID) ([]models.InventoryItem, error)
	ReorderSuggestions(ctx context.Context, storeID *uuid.UUID) ([]internalinventory.ReorderSuggestion, error)
}

type createItemRequest struct {
	StoreID         uuid.UUID  `json:"store_id" validate:"required"`
	ProductID       uuid.UUID  `json:"product_id" validate:"required"`
	WarehouseID     *uuid.UUID `json:"warehouse_id"`
	SKU             *string    `json:"sku" validate:"omitempty,max=64"`
	Quantity        int        `json:"quantity" validate:"gte=0"`
	ReorderPoint    *int       `json:"reorder_point" validate:"omitempty,gte=0"`
	ReorderQuantity *int       `json:"reorder_quantity" validate:"omitempty,gt=0"`
}

type adjustRequest struct {
	Amount int                  `json:"amount"`
	Mode   enums.AdjustmentMode `json:"mode" validate:"required,enum"`
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

type reservationRequest struct {
	ProductID   uuid.UUID  `json:"product_id" validate:"required"`
	Quantity    int        `json:"quantity" validate:"gt=0"`
	WarehouseID *uuid.UUID `json:"warehouse_id"`
}

type reorderPointRequest struct {
	ReorderPoint    *int `json:"reorder_point" validate:"omitempty,gte=0"`
	ReorderQuantity *int `json:"reorder_quantity" validate:"omitempty,gt=0"`
}

type releaseResponse struct {
	Item     *models.InventoryItem `json:"item"`
	Released int                   `json:"released"`
}

// Create stocks a product in a warehouse.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createItemRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.CreateItem(r.Context(), internalinventory.CreateItemInput{
			StoreID:         req.StoreID,
			ProductID:       req.ProductID,
			WarehouseID:     req.WarehouseID,
			SKU:             req.SKU,
			Quantity:        req.Quantity,
			ReorderPoint:    req.ReorderPoint,
			ReorderQuantity: req.ReorderQuantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// List pages through inventory rows.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := middleware.StoreScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseQueryUUID(r, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		warehouseID, err := validators.ParseQueryUUID(r, "warehouse_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, offset, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListItems(r.Context(), internalinventory.ListFilters{
			StoreID:     storeID,
			ProductID:   productID,
			WarehouseID: warehouseID,
			LowStock:    r.URL.Query().Get("low_stock") == "true",
			Limit:       limit,
			Offset:      offset,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Get returns one inventory row.
func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.GetItem(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// Adjust applies a manual stock correction.
func Adjust(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adjustRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Adjust(r.Context(), internalinventory.AdjustInput{
			ItemID: itemID,
			Amount: req.Amount,
			Mode:   req.Mode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// Restock books received goods onto a row.
func Restock(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req restockRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Restock(r.Context(), itemID, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// Reserve claims stock of a product.
func Reserve(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reservationRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Reserve(r.Context(), internalinventory.ReservationInput{
			ProductID:   req.ProductID,
			Quantity:    req.Quantity,
			WarehouseID: req.WarehouseID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// Release hands reserved stock of a product back.
func Release(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reservationRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Release(r.Context(), internalinventory.ReservationInput{
			ProductID:   req.ProductID,
			Quantity:    req.Quantity,
			WarehouseID: req.WarehouseID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, releaseResponse{Item: result.Item, Released: result.Released})
	}
}

// SetReorderPoint updates the replenishment thresholds of a row.
func SetReorderPoint(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reorderPointRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.SetReorderPoint(r.Context(), itemID, req.ReorderPoint, req.ReorderQuantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// LowStock lists rows at or below their reorder point.
func LowStock(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := middleware.StoreScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.LowStockItems(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// ReorderSuggestions lists replenishment hints for low rows.
func ReorderSuggestions(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := middleware.StoreScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		suggestions, err := svc.ReorderSuggestions(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, suggestions)
	}
}

// Analytics summarises stock levels.
func Analytics(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := middleware.StoreScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Analytics(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

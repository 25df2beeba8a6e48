package stores

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordergenie-backend/api/responses"
	"github.com/angelmondragon/ordergenie-backend/api/validators"
	internalstores "github.com/angelmondragon/ordergenie-backend/internal/stores"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
)

// Service covers store onboarding and warehouse setup.
type Service interface {
	Create(ctx context.Context, input internalstores.CreateStoreInput) (*models.Store, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	CreateWarehouse(ctx context.Context, input internalstores.CreateWarehouseInput) (*models.Warehouse, error)
	ListWarehouses(ctx context.Context, storeID uuid.UUID) ([]models.Warehouse, error)
}

type createStoreRequest struct {
	Name          string  `json:"name" validate:"required,max=255"`
	ShopifyDomain string  `json:"shopify_domain" validate:"required,max=255"`
	AccessToken   *string `json:"access_token" validate:"omitempty,max=512"`
	Email         *string `json:"email" validate:"omitempty,email"`
}

type createWarehouseRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Code     string `json:"code" validate:"required,max=32"`
	Priority int    `json:"priority" validate:"gte=0"`
}

// Create connects a Shopify store.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createStoreRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, err := svc.Create(r.Context(), internalstores.CreateStoreInput{
			Name:          req.Name,
			ShopifyDomain: req.ShopifyDomain,
			AccessToken:   req.AccessToken,
			Email:         req.Email,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, store)
	}
}

// Get returns a store profile. The access token is never serialized.
func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "storeID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store)
	}
}

// CreateWarehouse adds a stocking location to a store.
func CreateWarehouse(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := validators.ParseUUIDParam(r, "storeID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req createWarehouseRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		warehouse, err := svc.CreateWarehouse(r.Context(), internalstores.CreateWarehouseInput{
			StoreID:  storeID,
			Name:     req.Name,
			Code:     req.Code,
			Priority: req.Priority,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, warehouse)
	}
}

// ListWarehouses lists a store's warehouses, preferred first.
func ListWarehouses(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := validators.ParseUUIDParam(r, "storeID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		warehouses, err := svc.ListWarehouses(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, warehouses)
	}
}

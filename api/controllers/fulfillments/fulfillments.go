package fulfillments

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordergenie-backend/api/middleware"
	"github.com/angelmondragon/ordergenie-backend/api/responses"
	"github.com/angelmondragon/ordergenie-backend/api/validators"
	internalfulfillments "github.com/angelmondragon/ordergenie-backend/internal/fulfillments"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
)

// Service is the shipment surface the handlers drive.
type Service interface {
	CreateFulfillment(ctx context.Context, input internalfulfillments.CreateInput) (*models.Fulfillment, error)
	UpdateFulfillment(ctx context.Context, input internalfulfillments.UpdateInput) (*models.Fulfillment, error)
	AddTrackingInfo(ctx context.Context, input internalfulfillments.TrackingInput) (*models.Fulfillment, error)
	UpdateFulfillmentStatus(ctx context.Context, input internalfulfillments.StatusInput) (*models.Fulfillment, error)
	ShipFulfillment(ctx context.Context, input internalfulfillments.ShipInput) (*models.Fulfillment, error)
	CancelFulfillment(ctx context.Context, input internalfulfillments.CancelInput) (*models.Fulfillment, error)
	GetFulfillment(ctx context.Context, id uuid.UUID) (*models.Fulfillment, error)
	ListFulfillments(ctx context.Context, filters internalfulfillments.ListFilters) (*internalfulfillments.FulfillmentList, error)
	Analytics(ctx context.Context, filters internalfulfillments.AnalyticsFilters) (*internalfulfillments.Analytics, error)
}

type itemRequest struct {
	OrderItemID uuid.UUID `json:"order_item_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"gt=0"`
}

type createRequest struct {
	OrderID           uuid.UUID     `json:"order_id" validate:"required"`
	WarehouseID       *uuid.UUID    `json:"warehouse_id"`
	TrackingNumber    *string       `json:"tracking_number" validate:"omitempty,max=128"`
	TrackingURL       *string       `json:"tracking_url" validate:"omitempty,url"`
	Carrier           *string       `json:"carrier" validate:"omitempty,max=64"`
	ShippingMethod    *string       `json:"shipping_method" validate:"omitempty,max=64"`
	EstimatedDelivery *time.Time    `json:"estimated_delivery"`
	Notes             *string       `json:"notes"`
	Items             []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateRequest struct {
	WarehouseID       *uuid.UUID `json:"warehouse_id"`
	Carrier           *string    `json:"carrier" validate:"omitempty,max=64"`
	ShippingMethod    *string    `json:"shipping_method" validate:"omitempty,max=64"`
	TrackingURL       *string    `json:"tracking_url" validate:"omitempty,url"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	Notes             *string    `json:"notes"`
}

type trackingRequest struct {
	TrackingNumber string  `json:"tracking_number" validate:"required,max=128"`
	Carrier        *string `json:"carrier" validate:"omitempty,max=64"`
	TrackingURL    *string `json:"tracking_url" validate:"omitempty,url"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type shipRequest struct {
	TrackingNumber *string `json:"tracking_number" validate:"omitempty,max=128"`
	Carrier        *string `json:"carrier" validate:"omitempty,max=64"`
	TrackingURL    *string `json:"tracking_url" validate:"omitempty,url"`
	NotifyCustomer bool    `json:"notify_customer"`
}

type cancelRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

// Create opens a shipment against an order.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, role := middleware.ActorFromContext(r.Context())
		input := internalfulfillments.CreateInput{
			OrderID:           req.OrderID,
			WarehouseID:       req.WarehouseID,
			TrackingNumber:    req.TrackingNumber,
			TrackingURL:       req.TrackingURL,
			Carrier:           req.Carrier,
			ShippingMethod:    req.ShippingMethod,
			EstimatedDelivery: req.EstimatedDelivery,
			Notes:             req.Notes,
			ActorUserID:       actor,
			ActorRole:         role,
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalfulfillments.ItemInput{OrderItemID: item.OrderItemID, Quantity: item.Quantity})
		}
		f, err := svc.CreateFulfillment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, f)
	}
}

// List pages through shipments.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := middleware.StoreScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, offset, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := internalfulfillments.ListFilters{StoreID: storeID, Limit: limit, Offset: offset}
		if filters.OrderID, err = validators.ParseQueryUUID(r, "order_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.WarehouseID, err = validators.ParseQueryUUID(r, "warehouse_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := validators.ParseQueryString(r, "status", 32); raw != nil {
			status, err := enums.ParseFulfillmentStatus(strings.ToUpper(*raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filters.Status = &status
		}
		if filters.StartDate, err = validators.ParseQueryTime(r, "start_date"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.EndDate, err = validators.ParseQueryTime(r, "end_date"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListFulfillments(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one shipment with its items.
func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "fulfillmentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		f, err := svc.GetFulfillment(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, f)
	}
}

// Update edits shipment details.
func Update(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "fulfillmentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		f, err := svc.UpdateFulfillment(r.Context(), internalfulfillments.UpdateInput{
			FulfillmentID:     id,
			WarehouseID:       req.WarehouseID,
			Carrier:           req.Carrier,
			ShippingMethod:    req.ShippingMethod,
			TrackingURL:       req.TrackingURL,
			EstimatedDelivery: req.EstimatedDelivery,
			Notes:             req.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, f)
	}
}

// AddTracking records carrier tracking.
func AddTracking(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "fulfillmentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req trackingRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		f, err := svc.AddTrackingInfo(r.Context(), internalfulfillments.TrackingInput{
			FulfillmentID:  id,
			TrackingNumber: req.TrackingNumber,
			Carrier:        req.Carrier,
			TrackingURL:    req.TrackingURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, f)
	}
}

// UpdateStatus moves a shipment along its lifecycle.
func UpdateStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "fulfillmentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req statusRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseFulfillmentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		actor, role := middleware.ActorFromContext(r.Context())
		f, err := svc.UpdateFulfillmentStatus(r.Context(), internalfulfillments.StatusInput{
			FulfillmentID: id,
			Status:        status,
			ActorUserID:   actor,
			ActorRole:     role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, f)
	}
}

// Ship marks a shipment as handed to the carrier.
func Ship(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "fulfillmentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req shipRequest
		if err := validators.DecodeOptionalJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, role := middleware.ActorFromContext(r.Context())
		f, err := svc.ShipFulfillment(r.Context(), internalfulfillments.ShipInput{
			FulfillmentID:  id,
			TrackingNumber: req.TrackingNumber,
			Carrier:        req.Carrier,
			TrackingURL:    req.TrackingURL,
			NotifyCustomer: req.NotifyCustomer,
			ActorUserID:    actor,
			ActorRole:      role,
		})
		if err != nil {
			responses.WriteSyncAwareError(r.Context(), logg, w, "fulfillment", f, err)
			return
		}
		responses.WriteSuccess(w, f)
	}
}

// Cancel cancels a shipment.
func Cancel(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "fulfillmentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req cancelRequest
		if err := validators.DecodeOptionalJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, role := middleware.ActorFromContext(r.Context())
		f, err := svc.CancelFulfillment(r.Context(), internalfulfillments.CancelInput{
			FulfillmentID: id,
			Reason:        req.Reason,
			ActorUserID:   actor,
			ActorRole:     role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, f)
	}
}

// Analytics summarises shipments.
func Analytics(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := middleware.StoreScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := internalfulfillments.AnalyticsFilters{StoreID: storeID}
		if filters.WarehouseID, err = validators.ParseQueryUUID(r, "warehouse_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.StartDate, err = validators.ParseQueryTime(r, "start_date"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.EndDate, err = validators.ParseQueryTime(r, "end_date"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Analytics(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

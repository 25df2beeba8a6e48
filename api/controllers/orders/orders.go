package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordergenie-backend/api/middleware"
	"github.com/angelmondragon/ordergenie-backend/api/responses"
	"github.com/angelmondragon/ordergenie-backend/api/validators"
	internalorders "github.com/angelmondragon/ordergenie-backend/internal/orders"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/types"
)

// Service is the order surface the handlers drive.
type Service interface {
	CreateOrder(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error)
	CancelOrder(ctx context.Context, input internalorders.CancelOrderInput) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, actorUserID *uuid.UUID, actorRole string) (*models.Order, error)
	AddOrderNote(ctx context.Context, orderID uuid.UUID, note string) (*models.Order, error)
	AddOrderTags(ctx context.Context, orderID uuid.UUID, tags []string) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filters internalorders.ListFilters) (*internalorders.OrderList, error)
	Analytics(ctx context.Context, filters internalorders.AnalyticsFilters) (*internalorders.Analytics, error)
}

type createItemRequest struct {
	ProductID      *uuid.UUID      `json:"product_id"`
	WarehouseID    *uuid.UUID      `json:"warehouse_id"`
	Name           string          `json:"name" validate:"required,max=255"`
	SKU            *string         `json:"sku" validate:"omitempty,max=64"`
	Quantity       int             `json:"quantity" validate:"gt=0"`
	Price          decimal.Decimal `json:"price"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type createRequest struct {
	StoreID         uuid.UUID           `json:"store_id" validate:"required"`
	OrderNumber     string              `json:"order_number" validate:"omitempty,max=64"`
	CustomerName    string              `json:"customer_name" validate:"required,max=255"`
	CustomerEmail   *string             `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone   *string             `json:"customer_phone" validate:"omitempty,max=32"`
	ShippingAddress *types.Address      `json:"shipping_address"`
	FinancialStatus string              `json:"financial_status"`
	Currency        string              `json:"currency" validate:"omitempty,len=3"`
	TaxAmount       decimal.Decimal     `json:"tax_amount"`
	ShippingAmount  decimal.Decimal     `json:"shipping_amount"`
	DiscountAmount  decimal.Decimal     `json:"discount_amount"`
	Tags            []string            `json:"tags"`
	Notes           *string             `json:"notes"`
	Items           []createItemRequest `json:"items" validate:"required,min=1,dive"`
}

type cancelRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type noteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

type tagsRequest struct {
	Tags []string `json:"tags" validate:"required,min=1"`
}

// Create places a manual order and reserves its stock.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		financial := enums.FinancialStatusPending
		if raw := strings.TrimSpace(req.FinancialStatus); raw != "" {
			parsed, err := enums.ParseFinancialStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid financial_status"))
				return
			}
			financial = parsed
		}

		actor, role := middleware.ActorFromContext(r.Context())
		input := internalorders.CreateOrderInput{
			StoreID:         req.StoreID,
			OrderNumber:     validators.SanitizeString(req.OrderNumber, 64),
			CustomerName:    validators.SanitizeString(req.CustomerName, 255),
			CustomerEmail:   req.CustomerEmail,
			CustomerPhone:   req.CustomerPhone,
			ShippingAddress: req.ShippingAddress,
			FinancialStatus: financial,
			Currency:        strings.ToUpper(req.Currency),
			TaxAmount:       req.TaxAmount,
			ShippingAmount:  req.ShippingAmount,
			DiscountAmount:  req.DiscountAmount,
			Tags:            req.Tags,
			Notes:           req.Notes,
			ActorUserID:     actor,
			ActorRole:       role,
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalorders.CreateOrderItemInput{
				ProductID:      item.ProductID,
				WarehouseID:    item.WarehouseID,
				Name:           item.Name,
				SKU:            item.SKU,
				Quantity:       item.Quantity,
				Price:          item.Price,
				TaxAmount:      item.TaxAmount,
				DiscountAmount: item.DiscountAmount,
			})
		}

		order, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// List pages through orders.
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
		filters := internalorders.ListFilters{
			StoreID: storeID,
			Limit:   limit,
			Offset:  offset,
		}
		if raw := validators.ParseQueryString(r, "status", 32); raw != nil {
			status, err := enums.ParseOrderStatus(strings.ToUpper(*raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filters.Status = &status
		}
		if raw := validators.ParseQueryString(r, "fulfillment_status", 32); raw != nil {
			status, err := enums.ParseOrderFulfillmentStatus(strings.ToUpper(*raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fulfillment_status"))
				return
			}
			filters.FulfillmentStatus = &status
		}
		if filters.StartDate, err = validators.ParseQueryTime(r, "start_date"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.EndDate, err = validators.ParseQueryTime(r, "end_date"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if q := validators.ParseQueryString(r, "q", 100); q != nil {
			filters.Search = *q
		}

		list, err := svc.ListOrders(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order with its items.
func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Cancel cancels an unshipped order and releases its reservations.
func Cancel(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderID")
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
		order, err := svc.CancelOrder(r.Context(), internalorders.CancelOrderInput{
			OrderID:     orderID,
			Reason:      req.Reason,
			ActorUserID: actor,
			ActorRole:   role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateStatus moves an order along its lifecycle.
func UpdateStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req statusRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		actor, role := middleware.ActorFromContext(r.Context())
		order, err := svc.UpdateOrderStatus(r.Context(), orderID, status, actor, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AddNote appends to the order notes.
func AddNote(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req noteRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.AddOrderNote(r.Context(), orderID, req.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AddTags merges tags into the order.
func AddTags(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req tagsRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.AddOrderTags(r.Context(), orderID, req.Tags)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Analytics summarises order volume and revenue.
func Analytics(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := middleware.StoreScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := internalorders.AnalyticsFilters{StoreID: storeID}
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

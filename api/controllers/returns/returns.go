package returns

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordergenie-backend/api/middleware"
	"github.com/angelmondragon/ordergenie-backend/api/responses"
	"github.com/angelmondragon/ordergenie-backend/api/validators"
	internalreturns "github.com/angelmondragon/ordergenie-backend/internal/returns"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
)

// Service is the RMA surface the handlers drive.
type Service interface {
	CreateReturnRequest(ctx context.Context, input internalreturns.CreateInput) (*models.ReturnRequest, error)
	ApproveReturn(ctx context.Context, input internalreturns.ApproveInput) (*models.ReturnRequest, error)
	RejectReturn(ctx context.Context, input internalreturns.RejectInput) (*models.ReturnRequest, error)
	MarkReceived(ctx context.Context, returnID uuid.UUID, actorUserID *uuid.UUID, actorRole string) (*models.ReturnRequest, error)
	StartInspection(ctx context.Context, input internalreturns.InspectInput) (*models.ReturnRequest, error)
	ProcessRefund(ctx context.Context, input internalreturns.RefundInput) (*models.ReturnRequest, error)
	CancelReturn(ctx context.Context, input internalreturns.CancelInput) (*models.ReturnRequest, error)
	AddInternalNotes(ctx context.Context, returnID uuid.UUID, note string) (*models.ReturnRequest, error)
	GetReturn(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	ListReturns(ctx context.Context, filters internalreturns.ListFilters) (*internalreturns.ReturnList, error)
	Analytics(ctx context.Context, filters internalreturns.AnalyticsFilters) (*internalreturns.Analytics, error)
}

type itemRequest struct {
	OrderItemID uuid.UUID `json:"order_item_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"gt=0"`
	Condition   *string   `json:"condition" validate:"omitempty,max=64"`
}

type createRequest struct {
	OrderID       uuid.UUID     `json:"order_id" validate:"required"`
	Reason        string        `json:"reason" validate:"required,max=500"`
	CustomerNotes *string       `json:"customer_notes" validate:"omitempty,max=2000"`
	Items         []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type approveRequest struct {
	RefundAmount *decimal.Decimal `json:"refund_amount"`
	RestockFee   *decimal.Decimal `json:"restock_fee"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type optionalReasonRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

type conditionRequest struct {
	OrderItemID uuid.UUID `json:"order_item_id" validate:"required"`
	Condition   string    `json:"condition" validate:"required,max=64"`
}

type inspectRequest struct {
	Items []conditionRequest `json:"items" validate:"omitempty,dive"`
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Method string           `json:"method" validate:"required,max=64"`
}

type noteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// Create raises an RMA against an order.
func Create(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, role := middleware.ActorFromContext(r.Context())
		input := internalreturns.CreateInput{
			OrderID:       req.OrderID,
			Reason:        req.Reason,
			CustomerNotes: req.CustomerNotes,
			ActorUserID:   actor,
			ActorRole:     role,
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalreturns.ItemInput{
				OrderItemID: item.OrderItemID,
				Quantity:    item.Quantity,
				Condition:   item.Condition,
			})
		}
		ret, err := svc.CreateReturnRequest(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ret)
	}
}

// List pages through returns.
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
		filters := internalreturns.ListFilters{StoreID: storeID, Limit: limit, Offset: offset}
		if filters.OrderID, err = validators.ParseQueryUUID(r, "order_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := validators.ParseQueryString(r, "status", 32); raw != nil {
			status, err := enums.ParseReturnStatus(strings.ToUpper(*raw))
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
		list, err := svc.ListReturns(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one RMA with its items.
func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ret, err := svc.GetReturn(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ret)
	}
}

// Approve accepts a pending RMA.
func Approve(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req approveRequest
		if err := validators.DecodeOptionalJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, role := middleware.ActorFromContext(r.Context())
		ret, err := svc.ApproveReturn(r.Context(), internalreturns.ApproveInput{
			ReturnID:     id,
			RefundAmount: req.RefundAmount,
			RestockFee:   req.RestockFee,
			ActorUserID:  actor,
			ActorRole:    role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ret)
	}
}

// Reject declines a pending RMA.
func Reject(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reasonRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, role := middleware.ActorFromContext(r.Context())
		ret, err := svc.RejectReturn(r.Context(), internalreturns.RejectInput{
			ReturnID:    id,
			Reason:      req.Reason,
			ActorUserID: actor,
			ActorRole:   role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ret)
	}
}

// Receive records that the goods arrived back.
func Receive(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, role := middleware.ActorFromContext(r.Context())
		ret, err := svc.MarkReceived(r.Context(), id, actor, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ret)
	}
}

// Inspect starts inspection and records item conditions.
func Inspect(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req inspectRequest
		if err := validators.DecodeOptionalJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		conditions := make(map[uuid.UUID]string, len(req.Items))
		for _, item := range req.Items {
			conditions[item.OrderItemID] = item.Condition
		}
		actor, role := middleware.ActorFromContext(r.Context())
		ret, err := svc.StartInspection(r.Context(), internalreturns.InspectInput{
			ReturnID:    id,
			Conditions:  conditions,
			ActorUserID: actor,
			ActorRole:   role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ret)
	}
}

// Refund completes an RMA with its refund.
func Refund(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req refundRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, role := middleware.ActorFromContext(r.Context())
		ret, err := svc.ProcessRefund(r.Context(), internalreturns.RefundInput{
			ReturnID:    id,
			Amount:      req.Amount,
			Method:      req.Method,
			ActorUserID: actor,
			ActorRole:   role,
		})
		if err != nil {
			responses.WriteSyncAwareError(r.Context(), logg, w, "return", ret, err)
			return
		}
		responses.WriteSuccess(w, ret)
	}
}

// Cancel withdraws an open RMA.
func Cancel(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req optionalReasonRequest
		if err := validators.DecodeOptionalJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, role := middleware.ActorFromContext(r.Context())
		ret, err := svc.CancelReturn(r.Context(), internalreturns.CancelInput{
			ReturnID:    id,
			Reason:      req.Reason,
			ActorUserID: actor,
			ActorRole:   role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ret)
	}
}

// AddNote appends to the internal notes of an RMA.
func AddNote(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req noteRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ret, err := svc.AddInternalNotes(r.Context(), id, req.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ret)
	}
}

// Analytics summarises returns.
func Analytics(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := middleware.StoreScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := internalreturns.AnalyticsFilters{StoreID: storeID}
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

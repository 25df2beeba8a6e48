package returns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/internal/inventory"
	"github.com/angelmondragon/ordergenie-backend/internal/notifications"
	"github.com/angelmondragon/ordergenie-backend/internal/orders"
	"github.com/angelmondragon/ordergenie-backend/pkg/config"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/outbox"
	"github.com/angelmondragon/ordergenie-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ordergenie-backend/pkg/pagination"
	"github.com/angelmondragon/ordergenie-backend/pkg/shopify"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Request(ctx context.Context, tx *gorm.DB, req notifications.Request)
}

// Restocker puts returned goods back on the ledger.
type Restocker interface {
	RestockProduct(ctx context.Context, tx *gorm.DB, input inventory.ReservationInput) (*models.InventoryItem, error)
}

// PlatformClient pushes refunds to the commerce platform.
type PlatformClient interface {
	CreateRefund(ctx context.Context, creds shopify.Credentials, externalOrderID string, req shopify.RefundRequest) (*shopify.RefundResponse, error)
}

// CredentialSource resolves the platform credentials of a store.
type CredentialSource interface {
	Credentials(ctx context.Context, storeID uuid.UUID) (shopify.Credentials, error)
}

// Service runs the return lifecycle.
type Service struct {
	repo              *Repository
	orders            *orders.Repository
	tx                txRunner
	outbox            outbox.Emitter
	restocker         Restocker
	platform          PlatformClient
	stores            CredentialSource
	notifier          notifier
	restockOnComplete bool
	logg              *logger.Logger
	now               func() time.Time
}

// Deps groups the collaborators of the return service.
type Deps struct {
	Repo      *Repository
	Orders    *orders.Repository
	Tx        txRunner
	Outbox    outbox.Emitter
	Restocker Restocker
	Platform  PlatformClient
	Stores    CredentialSource
	Notifier  notifier
	Config    config.ReturnsConfig
	Logger    *logger.Logger
}

// NewService wires the return service.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("returns repository required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Restocker == nil:
		return nil, fmt.Errorf("restocker required")
	case deps.Platform == nil:
		return nil, fmt.Errorf("platform client required")
	case deps.Stores == nil:
		return nil, fmt.Errorf("credential source required")
	case deps.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	}
	return &Service{
		repo:              deps.Repo,
		orders:            deps.Orders,
		tx:                deps.Tx,
		outbox:            deps.Outbox,
		restocker:         deps.Restocker,
		platform:          deps.Platform,
		stores:            deps.Stores,
		notifier:          deps.Notifier,
		restockOnComplete: deps.Config.RestockOnComplete,
		logg:              deps.Logger,
		now:               time.Now,
	}, nil
}

// CreateReturnRequest opens a PENDING return. Items must belong to the order
// and open returns may not claim more than was ordered.
func (s *Service) CreateReturnRequest(ctx context.Context, input CreateInput) (*models.ReturnRequest, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	items, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}

	var created *models.ReturnRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.OrderStatus == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot return items of a cancelled order")
		}
		open, err := s.repo.WithTx(tx).ListOpenByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := checkQuantities(order, open, items); err != nil {
			return err
		}

		ret := &models.ReturnRequest{
			OrderID:            order.ID,
			ReturnNumber:       s.returnNumber(),
			Status:             enums.ReturnPending,
			Reason:             reason,
			CustomerNotes:      input.CustomerNotes,
			PlatformSyncStatus: enums.PlatformSyncNotRequired,
			Items:              items,
		}
		if err := s.repo.WithTx(tx).Create(ctx, ret); err != nil {
			return err
		}
		if err := s.emitStatus(ctx, tx, ret, "", outbox.Actor(input.ActorUserID, input.ActorRole)); err != nil {
			return err
		}
		s.notifier.Request(ctx, tx, notifications.ReturnRequested(ret, order.OrderNumber))
		created = ret
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, created, "return requested")
	return created, nil
}

// ApproveReturn approves a PENDING return, stamping the approver and the
// optional refund terms.
func (s *Service) ApproveReturn(ctx context.Context, input ApproveInput) (*models.ReturnRequest, error) {
	if err := nonNegative("refund_amount", input.RefundAmount); err != nil {
		return nil, err
	}
	if err := nonNegative("restock_fee", input.RestockFee); err != nil {
		return nil, err
	}
	return s.move(ctx, input.ReturnID, enums.ReturnApproved, outbox.Actor(input.ActorUserID, input.ActorRole),
		func(_ *gorm.DB, ret *models.ReturnRequest, now time.Time) (map[string]any, error) {
			updates := map[string]any{"approved_by": input.ActorUserID, "approved_at": now}
			ret.ApprovedBy = input.ActorUserID
			ret.ApprovedAt = &now
			if input.RefundAmount != nil {
				updates["refund_amount"] = *input.RefundAmount
				ret.RefundAmount = input.RefundAmount
			}
			if input.RestockFee != nil {
				updates["restock_fee"] = *input.RestockFee
				ret.RestockFee = input.RestockFee
			}
			return updates, nil
		})
}

// RejectReturn rejects a PENDING return, appending the reason to the
// internal notes.
func (s *Service) RejectReturn(ctx context.Context, input RejectInput) (*models.ReturnRequest, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	return s.move(ctx, input.ReturnID, enums.ReturnRejected, outbox.Actor(input.ActorUserID, input.ActorRole),
		func(_ *gorm.DB, ret *models.ReturnRequest, now time.Time) (map[string]any, error) {
			notes := appendNote(ret.InternalNotes, "Rejected: "+reason)
			ret.InternalNotes = &notes
			ret.RejectedAt = &now
			return map[string]any{"internal_notes": notes, "rejected_at": now}, nil
		})
}

// MarkReceived records that the goods arrived back.
func (s *Service) MarkReceived(ctx context.Context, returnID uuid.UUID, actorUserID *uuid.UUID, actorRole string) (*models.ReturnRequest, error) {
	return s.move(ctx, returnID, enums.ReturnReceived, outbox.Actor(actorUserID, actorRole),
		func(_ *gorm.DB, ret *models.ReturnRequest, now time.Time) (map[string]any, error) {
			ret.ReceivedAt = &now
			return map[string]any{"received_at": now}, nil
		})
}

// StartInspection moves received goods into inspection and records the
// condition of each item.
func (s *Service) StartInspection(ctx context.Context, input InspectInput) (*models.ReturnRequest, error) {
	return s.move(ctx, input.ReturnID, enums.ReturnInspecting, outbox.Actor(input.ActorUserID, input.ActorRole),
		func(tx *gorm.DB, ret *models.ReturnRequest, _ time.Time) (map[string]any, error) {
			repo := s.repo.WithTx(tx)
			for orderItemID, condition := range input.Conditions {
				condition = strings.TrimSpace(condition)
				if condition == "" {
					continue
				}
				if err := repo.UpdateItemCondition(ctx, ret.ID, orderItemID, condition); err != nil {
					return nil, err
				}
				for i := range ret.Items {
					if ret.Items[i].OrderItemID == orderItemID {
						ret.Items[i].Condition = &condition
					}
				}
			}
			return map[string]any{}, nil
		})
}

// ProcessRefund completes an APPROVED, RECEIVED or INSPECTING return. Without
// an explicit amount the refund uses the amount agreed at approval. The
// returned order items are marked RETURNED, and restocked when restocking on
// completion is enabled, in the same transaction. A platform refund is
// pushed afterwards for platform orders; its failure is reported as
// EXTERNAL_SYNC_FAILED alongside the completed return.
func (s *Service) ProcessRefund(ctx context.Context, input RefundInput) (*models.ReturnRequest, error) {
	if err := nonNegative("refund amount", input.Amount); err != nil {
		return nil, err
	}
	method := strings.TrimSpace(input.Method)
	if method == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund method is required")
	}

	var order *models.Order
	ret, err := s.move(ctx, input.ReturnID, enums.ReturnCompleted, outbox.Actor(input.ActorUserID, input.ActorRole),
		func(tx *gorm.DB, ret *models.ReturnRequest, now time.Time) (map[string]any, error) {
			var err error
			order, err = s.orders.WithTx(tx).FindByID(ctx, ret.OrderID)
			if err != nil {
				return nil, err
			}
			if err := s.markReturned(ctx, tx, order, ret); err != nil {
				return nil, err
			}
			restocked := false
			if s.restockOnComplete {
				if restocked, err = s.restock(ctx, tx, order, ret); err != nil {
					return nil, err
				}
			}

			var amount decimal.Decimal
			switch {
			case input.Amount != nil:
				amount = input.Amount.Round(2)
			case ret.RefundAmount != nil:
				amount = ret.RefundAmount.Round(2)
			default:
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount is required when none was approved")
			}
			ret.RefundAmount = &amount
			ret.RefundMethod = &method
			ret.CompletedAt = &now
			ret.Restocked = restocked
			return map[string]any{
				"refund_amount": amount,
				"refund_method": method,
				"completed_at":  now,
				"restocked":     restocked,
			}, nil
		})
	if err != nil {
		return nil, err
	}

	if order.ShopifyOrderID == nil || *order.ShopifyOrderID == "" {
		return ret, nil
	}
	if err := s.pushRefund(ctx, ret, order); err != nil {
		return ret, err
	}
	return ret, nil
}

// CancelReturn withdraws a return that is not yet closed.
func (s *Service) CancelReturn(ctx context.Context, input CancelInput) (*models.ReturnRequest, error) {
	return s.move(ctx, input.ReturnID, enums.ReturnCancelled, outbox.Actor(input.ActorUserID, input.ActorRole),
		func(_ *gorm.DB, ret *models.ReturnRequest, now time.Time) (map[string]any, error) {
			updates := map[string]any{"cancelled_at": now}
			ret.CancelledAt = &now
			if input.Reason != nil && strings.TrimSpace(*input.Reason) != "" {
				notes := appendNote(ret.InternalNotes, "Cancelled: "+strings.TrimSpace(*input.Reason))
				updates["internal_notes"] = notes
				ret.InternalNotes = &notes
			}
			return updates, nil
		})
}

// AddInternalNotes appends a line to the internal notes.
func (s *Service) AddInternalNotes(ctx context.Context, returnID uuid.UUID, note string) (*models.ReturnRequest, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note is required")
	}
	ret, err := s.repo.FindByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	notes := appendNote(ret.InternalNotes, note)
	if err := s.repo.Update(ctx, returnID, map[string]any{"internal_notes": notes}); err != nil {
		return nil, err
	}
	ret.InternalNotes = &notes
	return ret, nil
}

// GetReturn loads one return with its items.
func (s *Service) GetReturn(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	return s.repo.FindByID(ctx, id)
}

// ListReturns pages through returns matching filters.
func (s *Service) ListReturns(ctx context.Context, filters ListFilters) (*ReturnList, error) {
	filters.Limit = pagination.NormalizeLimit(filters.Limit)
	filters.Offset = max(filters.Offset, 0)
	list, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &ReturnList{Returns: list, Total: total, Limit: filters.Limit, Offset: filters.Offset}, nil
}

// Analytics summarises returns.
func (s *Service) Analytics(ctx context.Context, filters AnalyticsFilters) (*Analytics, error) {
	return s.repo.Analytics(ctx, filters)
}

type moveStep func(tx *gorm.DB, ret *models.ReturnRequest, now time.Time) (map[string]any, error)

// move checks the transition, applies step's side effects and columns, and
// emits the change in one transaction.
func (s *Service) move(ctx context.Context, id uuid.UUID, next enums.ReturnStatus, actor *outbox.ActorRef, step moveStep) (*models.ReturnRequest, error) {
	var ret *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		ret, err = repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		from := ret.Status
		if !from.CanMoveTo(next) {
			return invalidMove(id, from, next)
		}

		// The status flip is the claim; step's side effects only run for
		// the writer that won it.
		claimed, err := repo.Transition(ctx, id, from, next)
		if err != nil {
			return err
		}
		if !claimed {
			current, err := repo.FindByID(ctx, id)
			if err != nil {
				return err
			}
			return invalidMove(id, current.Status, next)
		}
		ret.Status = next

		now := s.now().UTC()
		updates, err := step(tx, ret, now)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := repo.Update(ctx, id, updates); err != nil {
				return err
			}
		}
		return s.emitStatus(ctx, tx, ret, from, actor)
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, ret, "return "+strings.ToLower(string(next)))
	return ret, nil
}

func invalidMove(id uuid.UUID, from, next enums.ReturnStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidReturnState, fmt.Sprintf("return cannot move from %s to %s", from, next)).
		WithDetails(map[string]any{"from": from, "to": next, "return_id": id})
}

func (s *Service) markReturned(ctx context.Context, tx *gorm.DB, order *models.Order, ret *models.ReturnRequest) error {
	repo := s.orders.WithTx(tx)
	for _, item := range ret.Items {
		if err := repo.UpdateItem(ctx, item.OrderItemID, map[string]any{"fulfillment_status": enums.OrderItemReturned}); err != nil {
			return err
		}
		for i := range order.Items {
			if order.Items[i].ID == item.OrderItemID {
				order.Items[i].FulfillmentStatus = enums.OrderItemReturned
			}
		}
	}
	return nil
}

// restock adds the returned quantities back to the ledger for every item
// that names a product. It reports whether anything was restocked.
func (s *Service) restock(ctx context.Context, tx *gorm.DB, order *models.Order, ret *models.ReturnRequest) (bool, error) {
	byID := make(map[uuid.UUID]models.OrderItem, len(order.Items))
	for _, item := range order.Items {
		byID[item.ID] = item
	}
	restocked := false
	for _, item := range ret.Items {
		orderItem, ok := byID[item.OrderItemID]
		if !ok || orderItem.ProductID == nil {
			continue
		}
		_, err := s.restocker.RestockProduct(ctx, tx, inventory.ReservationInput{
			ProductID:   *orderItem.ProductID,
			Quantity:    item.Quantity,
			WarehouseID: orderItem.WarehouseID,
		})
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logWarn(ctx, ret, fmt.Sprintf("no inventory row for product %s, skipping restock", *orderItem.ProductID))
			continue
		}
		if err != nil {
			return false, err
		}
		restocked = true
	}
	return restocked, nil
}

func (s *Service) emitStatus(ctx context.Context, tx *gorm.DB, ret *models.ReturnRequest, from enums.ReturnStatus, actor *outbox.ActorRef) error {
	var amount *string
	if ret.RefundAmount != nil {
		v := ret.RefundAmount.StringFixed(2)
		amount = &v
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReturnStatusChanged,
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   ret.ID,
		Actor:         actor,
		Data: payloads.ReturnStatusChangedEvent{
			ReturnRequestID: ret.ID,
			OrderID:         ret.OrderID,
			ReturnNumber:    ret.ReturnNumber,
			From:            from,
			To:              ret.Status,
			RefundAmount:    amount,
			Restocked:       ret.Restocked,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit return status")
	}
	return nil
}

func (s *Service) returnNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("RMA-%d-%s", s.now().UnixMilli(), suffix)
}

func mergeItems(in []ItemInput) ([]models.ReturnItem, error) {
	if len(in) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	index := make(map[uuid.UUID]int, len(in))
	out := make([]models.ReturnItem, 0, len(in))
	for i, item := range in {
		if item.OrderItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].order_item_id is required", i))
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].quantity must be positive", i))
		}
		if pos, ok := index[item.OrderItemID]; ok {
			out[pos].Quantity += item.Quantity
			continue
		}
		index[item.OrderItemID] = len(out)
		out = append(out, models.ReturnItem{OrderItemID: item.OrderItemID, Quantity: item.Quantity, Condition: item.Condition})
	}
	return out, nil
}

func checkQuantities(order *models.Order, open []models.ReturnRequest, items []models.ReturnItem) error {
	ordered := make(map[uuid.UUID]int, len(order.Items))
	for _, item := range order.Items {
		ordered[item.ID] = item.Quantity
	}
	claimed := make(map[uuid.UUID]int)
	for _, ret := range open {
		for _, item := range ret.Items {
			claimed[item.OrderItemID] += item.Quantity
		}
	}
	for _, item := range items {
		qty, ok := ordered[item.OrderItemID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "order item does not belong to this order").
				WithDetails(map[string]any{"order_item_id": item.OrderItemID})
		}
		if claimed[item.OrderItemID]+item.Quantity > qty {
			return pkgerrors.New(pkgerrors.CodeValidation, "return quantity exceeds ordered quantity").
				WithDetails(map[string]any{
					"order_item_id": item.OrderItemID,
					"ordered":       qty,
					"claimed":       claimed[item.OrderItemID],
					"requested":     item.Quantity,
				})
		}
	}
	return nil
}

func nonNegative(field string, v *decimal.Decimal) error {
	if v != nil && v.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" cannot be negative")
	}
	return nil
}

func appendNote(existing *string, note string) string {
	if existing == nil || *existing == "" {
		return note
	}
	return *existing + "\n" + note
}

func (s *Service) retCtx(ctx context.Context, ret *models.ReturnRequest) context.Context {
	ctx = s.logg.WithEntity(ctx, "return", ret.ID)
	return s.logg.WithFields(ctx, map[string]any{
		"return_number": ret.ReturnNumber,
		"order_id":      ret.OrderID,
		"return_status": ret.Status,
	})
}

func (s *Service) logInfo(ctx context.Context, ret *models.ReturnRequest, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.retCtx(ctx, ret), msg)
}

func (s *Service) logWarn(ctx context.Context, ret *models.ReturnRequest, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.retCtx(ctx, ret), msg)
}

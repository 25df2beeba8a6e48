package orders

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
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/outbox"
	"github.com/angelmondragon/ordergenie-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ordergenie-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryLedger claims and returns stock inside the order's transaction.
type InventoryLedger interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, input inventory.ReservationInput) (*models.InventoryItem, error)
	ReleaseTx(ctx context.Context, tx *gorm.DB, input inventory.ReservationInput) (*inventory.ReleaseResult, error)
}

type notifier interface {
	Request(ctx context.Context, tx *gorm.DB, req notifications.Request)
}

// Service places, edits, cancels and syncs orders.
type Service struct {
	repo      *Repository
	tx        txRunner
	outbox    outbox.Emitter
	inventory InventoryLedger
	notifier  notifier
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service.
func NewService(repo *Repository, tx txRunner, emitter outbox.Emitter, ledger InventoryLedger, notify notifier, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &Service{
		repo:      repo,
		tx:        tx,
		outbox:    emitter,
		inventory: ledger,
		notifier:  notify,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// CreateOrder stores the order and reserves stock for every line that names
// a product. Any failed reservation rolls the whole order back.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := buildOrder(input, now)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		for i := range order.Items {
			item := &order.Items[i]
			if item.ProductID == nil {
				continue
			}
			reserved, err := s.inventory.ReserveTx(ctx, tx, inventory.ReservationInput{
				ProductID:   *item.ProductID,
				Quantity:    item.Quantity,
				WarehouseID: item.WarehouseID,
			})
			if err != nil {
				return err
			}
			item.WarehouseID = reserved.WarehouseID
			item.ReservedQuantity = item.Quantity
			if err := repo.UpdateItem(ctx, item.ID, map[string]any{
				"warehouse_id":      item.WarehouseID,
				"reserved_quantity": item.ReservedQuantity,
			}); err != nil {
				return err
			}
		}
		return s.emitCreated(ctx, tx, order, outbox.Actor(input.ActorUserID, input.ActorRole))
	})
	if err != nil {
		return nil, err
	}

	s.logInfo(ctx, order, "order created")
	return order, nil
}

func (s *Service) emitCreated(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCreatedEvent{
			OrderID:        order.ID,
			StoreID:        order.StoreID,
			OrderNumber:    order.OrderNumber,
			ShopifyOrderID: order.ShopifyOrderID,
			OrderStatus:    order.OrderStatus,
			ItemCount:      len(order.Items),
			TotalAmount:    order.TotalAmount.StringFixed(2),
			Currency:       order.Currency,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
	}
	for _, req := range notifications.OrderCreated(order) {
		s.notifier.Request(ctx, tx, req)
	}
	return nil
}

// CancelOrder cancels an order that has not shipped and releases exactly
// what its placement reserved. Cancelling a cancelled order is a no-op.
func (s *Service) CancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.cancelTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) cancelTx(ctx context.Context, tx *gorm.DB, input CancelOrderInput) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus == enums.OrderStatusCancelled {
		return order, nil
	}
	if !order.OrderStatus.CanMoveTo(enums.OrderStatusCancelled) {
		return nil, cancelConflict(order.OrderStatus)
	}

	// Claim the move before touching stock: only the writer that flips the
	// status releases the reservations.
	now := s.now().UTC()
	claimed, err := repo.Transition(ctx, order.ID, order.OrderStatus, map[string]any{
		"order_status":  enums.OrderStatusCancelled,
		"cancelled_at":  now,
		"cancel_reason": input.Reason,
		"processed_by":  input.ActorUserID,
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current.OrderStatus == enums.OrderStatusCancelled {
			return current, nil
		}
		return nil, cancelConflict(current.OrderStatus)
	}
	order.OrderStatus = enums.OrderStatusCancelled
	order.CancelledAt = &now
	order.CancelReason = input.Reason
	order.ProcessedBy = input.ActorUserID

	var released []payloads.ReleasedQuantity
	for i := range order.Items {
		item := &order.Items[i]
		if item.ProductID == nil || item.ReservedQuantity <= 0 {
			continue
		}
		result, err := s.inventory.ReleaseTx(ctx, tx, inventory.ReservationInput{
			ProductID:   *item.ProductID,
			Quantity:    item.ReservedQuantity,
			WarehouseID: item.WarehouseID,
		})
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			s.logWarn(ctx, order, fmt.Sprintf("no inventory row left for product %s, nothing to release", item.ProductID))
		case err != nil:
			return nil, err
		default:
			released = append(released, payloads.ReleasedQuantity{
				OrderItemID: item.ID,
				ProductID:   *item.ProductID,
				WarehouseID: result.Item.WarehouseID,
				Quantity:    result.Released,
			})
		}
		item.ReservedQuantity = 0
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{"reserved_quantity": 0}); err != nil {
			return nil, err
		}
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.Actor(input.ActorUserID, input.ActorRole),
		Data: payloads.OrderCancelledEvent{
			OrderID:  order.ID,
			StoreID:  order.StoreID,
			Reason:   input.Reason,
			Released: released,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order cancelled")
	}
	s.logInfo(ctx, order, "order cancelled")
	return order, nil
}

func cancelConflict(status enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot cancel a %s order", status)).
		WithDetails(map[string]any{"order_status": status})
}

// UpdateOrderStatus moves an order forward. Cancellation goes through
// CancelOrder so reservations are released.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, actorUserID *uuid.UUID, actorRole string) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}
	if status == enums.OrderStatusCancelled {
		return s.CancelOrder(ctx, CancelOrderInput{OrderID: orderID, ActorUserID: actorUserID, ActorRole: actorRole})
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.OrderStatus.CanMoveTo(status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot move from %s to %s", order.OrderStatus, status)).
				WithDetails(map[string]any{"from": order.OrderStatus, "to": status})
		}
		if order.OrderStatus == status {
			return nil
		}
		now := s.now().UTC()
		claimed, err := repo.Transition(ctx, orderID, order.OrderStatus, map[string]any{
			"order_status": status,
			"processed_by": actorUserID,
			"processed_at": now,
		})
		if err != nil {
			return err
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed while updating its status")
		}
		order.OrderStatus = status
		order.ProcessedBy = actorUserID
		order.ProcessedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, order, "order status updated")
	return order, nil
}

// AddOrderNote appends a line to the order notes.
func (s *Service) AddOrderNote(ctx context.Context, orderID uuid.UUID, note string) (*models.Order, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	notes := note
	if order.Notes != nil && *order.Notes != "" {
		notes = *order.Notes + "\n" + note
	}
	if err := s.repo.Update(ctx, orderID, map[string]any{"notes": notes}); err != nil {
		return nil, err
	}
	order.Notes = &notes
	return order, nil
}

// AddOrderTags merges tags into the order, keeping first-seen order.
func (s *Service) AddOrderTags(ctx context.Context, orderID uuid.UUID, tags []string) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	merged := mergeTags(order.Tags, tags)
	if len(merged) == len(order.Tags) {
		return order, nil
	}
	if err := s.repo.UpdateTags(ctx, orderID, merged); err != nil {
		return nil, err
	}
	order.Tags = merged
	return order, nil
}

// GetOrder loads one order with its items.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, orderID)
}

// ListOrders pages through orders matching filters.
func (s *Service) ListOrders(ctx context.Context, filters ListFilters) (*OrderList, error) {
	filters.Limit = pagination.NormalizeLimit(filters.Limit)
	filters.Offset = max(filters.Offset, 0)
	orders, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &OrderList{Orders: orders, Total: total, Limit: filters.Limit, Offset: filters.Offset}, nil
}

// Analytics summarises orders for a store and period.
func (s *Service) Analytics(ctx context.Context, filters AnalyticsFilters) (*Analytics, error) {
	return s.repo.Analytics(ctx, filters)
}

func validateCreate(input CreateOrderInput) error {
	if input.StoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store_id is required")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer_name is required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	if input.FinancialStatus != "" && !input.FinancialStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid financial status %q", input.FinancialStatus))
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.Name) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].name is required", i))
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].quantity must be positive", i))
		}
		if item.Price.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].price cannot be negative", i))
		}
	}
	return nil
}

func buildOrder(input CreateOrderInput, now time.Time) *models.Order {
	financial := input.FinancialStatus
	if financial == "" {
		financial = enums.FinancialStatusPending
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}
	number := strings.TrimSpace(input.OrderNumber)
	if number == "" {
		number = fmt.Sprintf("OG-%d", now.UnixMilli())
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, in := range input.Items {
		total := in.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		subtotal = subtotal.Add(total)
		items = append(items, models.OrderItem{
			ProductID:         in.ProductID,
			WarehouseID:       in.WarehouseID,
			Name:              strings.TrimSpace(in.Name),
			SKU:               in.SKU,
			Quantity:          in.Quantity,
			Price:             in.Price,
			TotalAmount:       total,
			TaxAmount:         in.TaxAmount,
			DiscountAmount:    in.DiscountAmount,
			FulfillmentStatus: enums.OrderItemUnfulfilled,
		})
	}

	return &models.Order{
		StoreID:           input.StoreID,
		OrderNumber:       number,
		CustomerName:      strings.TrimSpace(input.CustomerName),
		CustomerEmail:     input.CustomerEmail,
		CustomerPhone:     input.CustomerPhone,
		ShippingAddress:   input.ShippingAddress,
		OrderStatus:       enums.OrderStatusPending,
		FinancialStatus:   financial,
		FulfillmentStatus: enums.OrderFulfillmentUnfulfilled,
		TotalAmount:       subtotal.Add(input.TaxAmount).Add(input.ShippingAmount).Sub(input.DiscountAmount),
		TaxAmount:         input.TaxAmount,
		ShippingAmount:    input.ShippingAmount,
		DiscountAmount:    input.DiscountAmount,
		Currency:          currency,
		Tags:              mergeTags(nil, input.Tags),
		Notes:             input.Notes,
		ProcessedBy:       input.ActorUserID,
		Items:             items,
	}
}

func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, raw := range list {
			tag := strings.TrimSpace(raw)
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

func (s *Service) orderCtx(ctx context.Context, order *models.Order) context.Context {
	ctx = s.logg.WithEntity(ctx, "order", order.ID)
	return s.logg.WithFields(ctx, map[string]any{
		"order_number": order.OrderNumber,
		"order_status": order.OrderStatus,
	})
}

func (s *Service) logInfo(ctx context.Context, order *models.Order, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.orderCtx(ctx, order), msg)
}

func (s *Service) logWarn(ctx context.Context, order *models.Order, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.orderCtx(ctx, order), msg)
}

package fulfillments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/internal/inventory"
	"github.com/angelmondragon/ordergenie-backend/internal/notifications"
	"github.com/angelmondragon/ordergenie-backend/internal/orders"
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

// InventoryLedger takes shipped units off the stock ledger and puts them
// back when a shipment is called off.
type InventoryLedger interface {
	ConsumeTx(ctx context.Context, tx *gorm.DB, input inventory.ReservationInput) (*models.InventoryItem, error)
	ReinstateTx(ctx context.Context, tx *gorm.DB, input inventory.ReservationInput) (*models.InventoryItem, error)
}

// PlatformClient pushes shipments to the commerce platform.
type PlatformClient interface {
	CreateFulfillment(ctx context.Context, creds shopify.Credentials, externalOrderID string, req shopify.FulfillmentRequest) (*shopify.FulfillmentResponse, error)
}

// CredentialSource resolves the platform credentials of a store.
type CredentialSource interface {
	Credentials(ctx context.Context, storeID uuid.UUID) (shopify.Credentials, error)
}

// Service manages shipments and keeps their order's fulfillment state
// reconciled.
type Service struct {
	repo     *Repository
	orders   *orders.Repository
	tx       txRunner
	outbox   outbox.Emitter
	ledger   InventoryLedger
	platform PlatformClient
	stores   CredentialSource
	notifier notifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the fulfillment service.
func NewService(repo *Repository, orderRepo *orders.Repository, tx txRunner, emitter outbox.Emitter, ledger InventoryLedger, platform PlatformClient, stores CredentialSource, notify notifier, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fulfillments repository required")
	}
	if orderRepo == nil {
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
	if platform == nil {
		return nil, fmt.Errorf("platform client required")
	}
	if stores == nil {
		return nil, fmt.Errorf("credential source required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &Service{
		repo:     repo,
		orders:   orderRepo,
		tx:       tx,
		outbox:   emitter,
		ledger:   ledger,
		platform: platform,
		stores:   stores,
		notifier: notify,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// CreateFulfillment opens a PENDING shipment. Every item must belong to the
// order and no item may be committed beyond its ordered quantity across the
// order's live shipments. The order row is locked while the quantities are
// checked, and the insert is refused with CONFLICT if another shipment was
// opened after they were read.
func (s *Service) CreateFulfillment(ctx context.Context, input CreateInput) (*models.Fulfillment, error) {
	items, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}

	var created *models.Fulfillment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.OrderStatus == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot fulfill a cancelled order")
		}
		existing, err := s.repo.WithTx(tx).ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := checkQuantities(order, existing, items); err != nil {
			return err
		}
		claimed, err := s.repo.WithTx(tx).ClaimOrder(ctx, order.ID, len(existing))
		if err != nil {
			return err
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeConflict, "order fulfillments changed while creating a shipment").
				WithDetails(map[string]any{"order_id": order.ID})
		}

		f := &models.Fulfillment{
			OrderID:            order.ID,
			WarehouseID:        input.WarehouseID,
			Status:             enums.FulfillmentPending,
			TrackingNumber:     trimmed(input.TrackingNumber),
			TrackingURL:        trimmed(input.TrackingURL),
			Carrier:            trimmed(input.Carrier),
			ShippingMethod:     trimmed(input.ShippingMethod),
			EstimatedDelivery:  input.EstimatedDelivery,
			Notes:              input.Notes,
			PlatformSyncStatus: enums.PlatformSyncNotRequired,
			FulfilledBy:        input.ActorUserID,
			Items:              items,
		}
		if err := s.repo.WithTx(tx).Create(ctx, f); err != nil {
			return err
		}
		if _, err := s.reconcile(ctx, tx, order, f.Status); err != nil {
			return err
		}
		if err := s.emitStatus(ctx, tx, f, order, "", outbox.Actor(input.ActorUserID, input.ActorRole)); err != nil {
			return err
		}
		created = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, created, "fulfillment created")
	return created, nil
}

// UpdateFulfillment edits carrier and routing details and re-reconciles the
// order.
func (s *Service) UpdateFulfillment(ctx context.Context, input UpdateInput) (*models.Fulfillment, error) {
	updates := map[string]any{}
	if input.WarehouseID != nil {
		updates["warehouse_id"] = *input.WarehouseID
	}
	if input.Carrier != nil {
		updates["carrier"] = trimmed(input.Carrier)
	}
	if input.ShippingMethod != nil {
		updates["shipping_method"] = trimmed(input.ShippingMethod)
	}
	if input.TrackingURL != nil {
		updates["tracking_url"] = trimmed(input.TrackingURL)
	}
	if input.EstimatedDelivery != nil {
		updates["estimated_delivery"] = input.EstimatedDelivery.UTC()
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	return s.edit(ctx, input.FulfillmentID, updates, "fulfillment updated")
}

// AddTrackingInfo records the carrier tracking number.
func (s *Service) AddTrackingInfo(ctx context.Context, input TrackingInput) (*models.Fulfillment, error) {
	number := strings.TrimSpace(input.TrackingNumber)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking_number is required")
	}
	updates := map[string]any{"tracking_number": number}
	if input.Carrier != nil {
		updates["carrier"] = trimmed(input.Carrier)
	}
	if input.TrackingURL != nil {
		updates["tracking_url"] = trimmed(input.TrackingURL)
	}
	return s.edit(ctx, input.FulfillmentID, updates, "fulfillment tracking added")
}

func (s *Service) edit(ctx context.Context, id uuid.UUID, updates map[string]any, msg string) (*models.Fulfillment, error) {
	var f *models.Fulfillment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot edit a %s fulfillment", current.Status))
		}
		if err := repo.Update(ctx, id, updates); err != nil {
			return err
		}
		f, err = repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		order, err := s.orders.WithTx(tx).FindByID(ctx, f.OrderID)
		if err != nil {
			return err
		}
		_, err = s.reconcile(ctx, tx, order, f.Status)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, f, msg)
	return f, nil
}

// UpdateFulfillmentStatus moves a shipment to a new state and propagates the
// result to its order. Moving to a shipped state requires a tracking number.
// Setting the current state again is a no-op.
func (s *Service) UpdateFulfillmentStatus(ctx context.Context, input StatusInput) (*models.Fulfillment, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid fulfillment status %q", input.Status))
	}
	f, _, _, err := s.transition(ctx, input.FulfillmentID, input.Status, nil, input.ActorUserID, input.ActorRole)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ShipFulfillment marks the shipment SHIPPED, then pushes it to the
// platform when the order came from there. The local change commits first:
// a failed push returns the shipped fulfillment together with an
// EXTERNAL_SYNC_FAILED error and is recorded on the row for retry. Shipping
// an already shipped fulfillment is a no-op.
func (s *Service) ShipFulfillment(ctx context.Context, input ShipInput) (*models.Fulfillment, error) {
	tracking := map[string]any{}
	if number := trimmed(input.TrackingNumber); number != nil {
		tracking["tracking_number"] = *number
	}
	if input.Carrier != nil {
		tracking["carrier"] = trimmed(input.Carrier)
	}
	if input.TrackingURL != nil {
		tracking["tracking_url"] = trimmed(input.TrackingURL)
	}

	f, order, moved, err := s.transition(ctx, input.FulfillmentID, enums.FulfillmentShipped, tracking, input.ActorUserID, input.ActorRole)
	if err != nil {
		return nil, err
	}
	// Only the call that shipped it pushes; failed pushes are retried by
	// RetryPlatformSync.
	if !moved || order.ShopifyOrderID == nil || *order.ShopifyOrderID == "" {
		return f, nil
	}
	if err := s.pushToPlatform(ctx, f, order, input.NotifyCustomer); err != nil {
		return f, err
	}
	return f, nil
}

// CancelFulfillment cancels a live shipment. Its quantities stop counting
// toward the order, which reconciles back toward UNFULFILLED; the order
// status itself never regresses. Stock consumed when it shipped goes back on
// hand, reserved again for the order.
func (s *Service) CancelFulfillment(ctx context.Context, input CancelInput) (*models.Fulfillment, error) {
	extra := map[string]any{}
	if input.Reason != nil {
		extra["cancel_reason"] = strings.TrimSpace(*input.Reason)
	}
	f, _, _, err := s.transition(ctx, input.FulfillmentID, enums.FulfillmentCancelled, extra, input.ActorUserID, input.ActorRole)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// transition applies one lifecycle move with its stamps, reconciles the
// order and emits the change, all in one transaction. extra columns are
// written with the move and are visible to the tracking check. The move is
// claimed against the status that was read, so of two concurrent callers
// only one reports moved.
func (s *Service) transition(ctx context.Context, id uuid.UUID, next enums.FulfillmentStatus, extra map[string]any, actorUserID *uuid.UUID, actorRole string) (*models.Fulfillment, *models.Order, bool, error) {
	var (
		f     *models.Fulfillment
		order *models.Order
		moved bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		order, err = s.orders.WithTx(tx).FindByIDForUpdate(ctx, current.OrderID)
		if err != nil {
			return err
		}
		if current.Status == next {
			f = current
			return nil
		}
		if !current.Status.CanMoveTo(next) {
			return moveConflict(current.Status, next)
		}

		tracking := current.TrackingNumber
		if number, ok := extra["tracking_number"].(string); ok {
			tracking = &number
		}
		entersShipped := next.CountsAsFulfilled() && !current.Status.CountsAsFulfilled()
		if entersShipped && (tracking == nil || strings.TrimSpace(*tracking) == "") {
			return pkgerrors.New(pkgerrors.CodeMissingTracking, "cannot ship a fulfillment without a tracking number").
				WithDetails(map[string]any{"fulfillment_id": id, "status": current.Status})
		}
		if entersShipped && order.OrderStatus == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot ship for a cancelled order")
		}

		now := s.now().UTC()
		updates := map[string]any{"status": next}
		for k, v := range extra {
			updates[k] = v
		}
		if entersShipped && current.ShippedAt == nil {
			updates["shipped_at"] = now
		}
		if next == enums.FulfillmentDelivered {
			updates["delivered_at"] = now
			updates["actual_delivery"] = now
		}
		claimed, err := repo.Transition(ctx, id, current.Status, updates)
		if err != nil {
			return err
		}
		if !claimed {
			latest, err := repo.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if latest.Status == next {
				f = latest
				return nil
			}
			return moveConflict(latest.Status, next)
		}
		f, err = repo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		switch {
		case entersShipped:
			err = s.consume(ctx, tx, order, f)
		case next == enums.FulfillmentCancelled && current.Status.CountsAsFulfilled():
			err = s.reinstate(ctx, tx, order, f)
		}
		if err != nil {
			return err
		}

		order, err = s.reconcile(ctx, tx, order, next)
		if err != nil {
			return err
		}
		if err := s.emitStatus(ctx, tx, f, order, current.Status, outbox.Actor(actorUserID, actorRole)); err != nil {
			return err
		}
		if entersShipped {
			if req, ok := notifications.OrderShipped(order, f); ok {
				s.notifier.Request(ctx, tx, req)
			}
		}
		moved = true
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	if moved {
		s.logInfo(ctx, f, "fulfillment "+strings.ToLower(strings.ReplaceAll(string(f.Status), "_", " ")))
	}
	return f, order, moved, nil
}

func moveConflict(from, next enums.FulfillmentStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("fulfillment cannot move from %s to %s", from, next)).
		WithDetails(map[string]any{"from": from, "to": next})
}

// consume takes the shipped units off the ledger, drawing down the
// reservation each order item still holds. Items without a product, or
// whose reservation is already gone, ship without touching stock.
func (s *Service) consume(ctx context.Context, tx *gorm.DB, order *models.Order, f *models.Fulfillment) error {
	items := orderItemsByID(order)
	for i := range f.Items {
		shipped := &f.Items[i]
		item, ok := items[shipped.OrderItemID]
		if !ok || item.ProductID == nil {
			continue
		}
		qty := min(shipped.Quantity-shipped.ConsumedQuantity, item.ReservedQuantity)
		if qty <= 0 {
			continue
		}
		_, err := s.ledger.ConsumeTx(ctx, tx, inventory.ReservationInput{ProductID: *item.ProductID, Quantity: qty, WarehouseID: item.WarehouseID})
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logWarn(ctx, f, fmt.Sprintf("no inventory row for product %s, shipping without consuming", *item.ProductID))
			continue
		}
		if err != nil {
			return err
		}
		if err := s.moveReservation(ctx, tx, item, shipped, -qty); err != nil {
			return err
		}
	}
	return nil
}

// reinstate reverses consume for a shipment that is called off.
func (s *Service) reinstate(ctx context.Context, tx *gorm.DB, order *models.Order, f *models.Fulfillment) error {
	items := orderItemsByID(order)
	for i := range f.Items {
		shipped := &f.Items[i]
		item, ok := items[shipped.OrderItemID]
		if !ok || item.ProductID == nil || shipped.ConsumedQuantity == 0 {
			continue
		}
		qty := shipped.ConsumedQuantity
		if _, err := s.ledger.ReinstateTx(ctx, tx, inventory.ReservationInput{ProductID: *item.ProductID, Quantity: qty, WarehouseID: item.WarehouseID}); err != nil {
			return err
		}
		if err := s.moveReservation(ctx, tx, item, shipped, qty); err != nil {
			return err
		}
	}
	return nil
}

// moveReservation shifts delta units of reservation onto the order item and
// off the shipment's consumed count.
func (s *Service) moveReservation(ctx context.Context, tx *gorm.DB, item *models.OrderItem, shipped *models.FulfillmentItem, delta int) error {
	item.ReservedQuantity += delta
	if err := s.orders.WithTx(tx).UpdateItem(ctx, item.ID, map[string]any{"reserved_quantity": item.ReservedQuantity}); err != nil {
		return err
	}
	shipped.ConsumedQuantity -= delta
	return s.repo.WithTx(tx).UpdateItemConsumed(ctx, shipped.ID, shipped.ConsumedQuantity)
}

func orderItemsByID(order *models.Order) map[uuid.UUID]*models.OrderItem {
	out := make(map[uuid.UUID]*models.OrderItem, len(order.Items))
	for i := range order.Items {
		out[order.Items[i].ID] = &order.Items[i]
	}
	return out
}

// ReconcileOrder recomputes an order's fulfillment state from its shipments.
// Running it twice without a shipment change yields the same result.
func (s *Service) ReconcileOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.orders.WithTx(tx).FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		order, err = s.reconcile(ctx, tx, current, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// reconcile writes the derived order and item fulfillment statuses, and the
// order status implied by a shipment reaching shipment. processed_at is
// stamped only the first time the order moves.
func (s *Service) reconcile(ctx context.Context, tx *gorm.DB, order *models.Order, shipment enums.FulfillmentStatus) (*models.Order, error) {
	orderRepo := s.orders.WithTx(tx)
	all, err := s.repo.WithTx(tx).ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	itemStatuses := DeriveItemStatuses(order.Items, all)
	for i := range order.Items {
		item := &order.Items[i]
		next := itemStatuses[item.ID]
		if next == item.FulfillmentStatus {
			continue
		}
		if err := orderRepo.UpdateItem(ctx, item.ID, map[string]any{"fulfillment_status": next}); err != nil {
			return nil, err
		}
		item.FulfillmentStatus = next
	}

	updates := map[string]any{}
	if derived := DeriveOrderFulfillmentStatus(order.Items, all); derived != order.FulfillmentStatus {
		updates["fulfillment_status"] = derived
		order.FulfillmentStatus = derived
	}
	next := NextOrderStatus(order.OrderStatus, shipment)
	if next == order.OrderStatus {
		if len(updates) > 0 {
			if err := orderRepo.Update(ctx, order.ID, updates); err != nil {
				return nil, err
			}
		}
		return order, nil
	}

	updates["order_status"] = next
	if order.ProcessedAt == nil {
		now := s.now().UTC()
		updates["processed_at"] = now
		order.ProcessedAt = &now
	}
	claimed, err := orderRepo.Transition(ctx, order.ID, order.OrderStatus, updates)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed while reconciling its fulfillments").
			WithDetails(map[string]any{"order_id": order.ID, "from": order.OrderStatus, "to": next})
	}
	order.OrderStatus = next
	return order, nil
}

func (s *Service) emitStatus(ctx context.Context, tx *gorm.DB, f *models.Fulfillment, order *models.Order, from enums.FulfillmentStatus, actor *outbox.ActorRef) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventFulfillmentStatusChanged,
		AggregateType: enums.AggregateFulfillment,
		AggregateID:   f.ID,
		Actor:         actor,
		Data: payloads.FulfillmentStatusChangedEvent{
			FulfillmentID:          f.ID,
			OrderID:                order.ID,
			From:                   from,
			To:                     f.Status,
			TrackingNumber:         f.TrackingNumber,
			Carrier:                f.Carrier,
			OrderStatus:            order.OrderStatus,
			OrderFulfillmentStatus: order.FulfillmentStatus,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit fulfillment status")
	}
	return nil
}

// GetFulfillment loads one fulfillment with its items.
func (s *Service) GetFulfillment(ctx context.Context, id uuid.UUID) (*models.Fulfillment, error) {
	return s.repo.FindByID(ctx, id)
}

// ListFulfillments pages through fulfillments matching filters.
func (s *Service) ListFulfillments(ctx context.Context, filters ListFilters) (*FulfillmentList, error) {
	filters.Limit = pagination.NormalizeLimit(filters.Limit)
	filters.Offset = max(filters.Offset, 0)
	list, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &FulfillmentList{Fulfillments: list, Total: total, Limit: filters.Limit, Offset: filters.Offset}, nil
}

// Analytics summarises shipments.
func (s *Service) Analytics(ctx context.Context, filters AnalyticsFilters) (*Analytics, error) {
	return s.repo.Analytics(ctx, filters)
}

func mergeItems(in []ItemInput) ([]models.FulfillmentItem, error) {
	if len(in) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	index := make(map[uuid.UUID]int, len(in))
	out := make([]models.FulfillmentItem, 0, len(in))
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
		out = append(out, models.FulfillmentItem{OrderItemID: item.OrderItemID, Quantity: item.Quantity})
	}
	return out, nil
}

func checkQuantities(order *models.Order, existing []models.Fulfillment, items []models.FulfillmentItem) error {
	ordered := make(map[uuid.UUID]int, len(order.Items))
	for _, item := range order.Items {
		ordered[item.ID] = item.Quantity
	}
	committed := CommittedQuantities(existing)
	for _, item := range items {
		qty, ok := ordered[item.OrderItemID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "order item does not belong to this order").
				WithDetails(map[string]any{"order_item_id": item.OrderItemID})
		}
		if committed[item.OrderItemID]+item.Quantity > qty {
			return pkgerrors.New(pkgerrors.CodeValidation, "fulfillment quantity exceeds ordered quantity").
				WithDetails(map[string]any{
					"order_item_id": item.OrderItemID,
					"ordered":       qty,
					"committed":     committed[item.OrderItemID],
					"requested":     item.Quantity,
				})
		}
	}
	return nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if out == "" {
		return nil
	}
	return &out
}

func (s *Service) logInfo(ctx context.Context, f *models.Fulfillment, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.fulfillmentCtx(ctx, f), msg)
}

func (s *Service) logWarn(ctx context.Context, f *models.Fulfillment, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.fulfillmentCtx(ctx, f), msg)
}

func (s *Service) fulfillmentCtx(ctx context.Context, f *models.Fulfillment) context.Context {
	ctx = s.logg.WithEntity(ctx, "fulfillment", f.ID)
	return s.logg.WithFields(ctx, map[string]any{
		"order_id":           f.OrderID,
		"fulfillment_status": f.Status,
	})
}

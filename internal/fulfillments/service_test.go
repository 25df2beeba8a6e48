package fulfillments

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/internal/inventory"
	"github.com/angelmondragon/ordergenie-backend/internal/notifications"
	"github.com/angelmondragon/ordergenie-backend/internal/orders"
	"github.com/angelmondragon/ordergenie-backend/pkg/config"
	"github.com/angelmondragon/ordergenie-backend/pkg/db"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/outbox"
	"github.com/angelmondragon/ordergenie-backend/pkg/shopify"
)

type platformCall struct {
	creds   shopify.Credentials
	orderID string
	req     shopify.FulfillmentRequest
}

type stubPlatform struct {
	mu    sync.Mutex
	calls []platformCall
	err   error
}

func (p *stubPlatform) CreateFulfillment(_ context.Context, creds shopify.Credentials, externalOrderID string, req shopify.FulfillmentRequest) (*shopify.FulfillmentResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, platformCall{creds: creds, orderID: externalOrderID, req: req})
	if p.err != nil {
		return nil, p.err
	}
	return &shopify.FulfillmentResponse{ID: 9000 + int64(len(p.calls)), Status: "success"}, nil
}

func (p *stubPlatform) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type stubCredentials struct{}

func (stubCredentials) Credentials(context.Context, uuid.UUID) (shopify.Credentials, error) {
	return shopify.Credentials{ShopDomain: "acme.myshopify.com", AccessToken: "shpat_test"}, nil
}

type recordingNotifier struct {
	requests []notifications.Request
}

func (n *recordingNotifier) Request(_ context.Context, _ *gorm.DB, req notifications.Request) {
	n.requests = append(n.requests, req)
}

type fixture struct {
	conn      *gorm.DB
	svc       *Service
	inventory *inventory.Service
	platform  *stubPlatform
	notifier  *recordingNotifier
	logg      *logger.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "fulfillments-test", Output: io.Discard})
	inv, err := inventory.NewService(inventory.NewRepository(conn), db.NewFromConn(conn), config.InventoryConfig{}, nil, logg)
	require.NoError(t, err)
	f := &fixture{conn: conn, inventory: inv, platform: &stubPlatform{}, notifier: &recordingNotifier{}, logg: logg}
	f.svc = f.service(t, db.NewFromConn(conn))
	return f
}

// service builds a second service over the same database with its own
// transaction runner.
func (f *fixture) service(t *testing.T, tx txRunner) *Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(f.conn),
		orders.NewRepository(f.conn),
		tx,
		outbox.NewService(outbox.NewRepository(f.conn), f.logg),
		f.inventory,
		f.platform,
		stubCredentials{},
		f.notifier,
		f.logg,
	)
	require.NoError(t, err)
	return svc
}

// seedOrder stores an order with one item per quantity.
func (f *fixture) seedOrder(t *testing.T, externalID *string, quantities ...int) *models.Order {
	t.Helper()
	email := "jane@example.com"
	order := &models.Order{
		StoreID:           uuid.New(),
		ShopifyOrderID:    externalID,
		OrderNumber:       "1001",
		CustomerName:      "Jane Doe",
		CustomerEmail:     &email,
		OrderStatus:       enums.OrderStatusPending,
		FinancialStatus:   enums.FinancialStatusPaid,
		FulfillmentStatus: enums.OrderFulfillmentUnfulfilled,
		TotalAmount:       decimal.NewFromInt(50),
		Currency:          "USD",
	}
	for i, qty := range quantities {
		lineID := strconv.Itoa(700 + i)
		order.Items = append(order.Items, models.OrderItem{
			Name:              "Item " + strconv.Itoa(i+1),
			ShopifyLineItemID: &lineID,
			Quantity:          qty,
			Price:             decimal.NewFromInt(10),
			TotalAmount:       decimal.NewFromInt(int64(10 * qty)),
			FulfillmentStatus: enums.OrderItemUnfulfilled,
		})
	}
	require.NoError(t, f.conn.Create(order).Error)
	return order
}

func (f *fixture) order(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := orders.NewRepository(f.conn).FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (f *fixture) create(t *testing.T, order *models.Order, tracking string, items ...ItemInput) *models.Fulfillment {
	t.Helper()
	input := CreateInput{OrderID: order.ID, Items: items}
	if tracking != "" {
		input.TrackingNumber = &tracking
	}
	created, err := f.svc.CreateFulfillment(context.Background(), input)
	require.NoError(t, err)
	return created
}

func TestShipmentsReconcileOrderFulfillment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, 3, 2)
	first, second := order.Items[0], order.Items[1]

	a := f.create(t, order, "1Z-A", ItemInput{OrderItemID: first.ID, Quantity: 3})
	b := f.create(t, order, "1Z-B", ItemInput{OrderItemID: second.ID, Quantity: 2})
	require.Equal(t, enums.FulfillmentPending, a.Status)
	require.Equal(t, enums.OrderFulfillmentUnfulfilled, f.order(t, order.ID).FulfillmentStatus)

	_, err := f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: a.ID, Status: enums.FulfillmentShipped})
	require.NoError(t, err)
	current := f.order(t, order.ID)
	require.Equal(t, enums.OrderFulfillmentPartiallyFulfilled, current.FulfillmentStatus)
	require.Equal(t, enums.OrderStatusShipped, current.OrderStatus)

	shipped, err := f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: b.ID, Status: enums.FulfillmentShipped})
	require.NoError(t, err)
	require.NotNil(t, shipped.ShippedAt)
	current = f.order(t, order.ID)
	require.Equal(t, enums.OrderFulfillmentFulfilled, current.FulfillmentStatus)
	for _, item := range current.Items {
		require.Equal(t, enums.OrderItemFulfilled, item.FulfillmentStatus)
	}

	reconciled, err := f.svc.ReconcileOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderFulfillmentFulfilled, reconciled.FulfillmentStatus)
	again, err := f.svc.ReconcileOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, reconciled.FulfillmentStatus, again.FulfillmentStatus)
	require.Equal(t, reconciled.OrderStatus, again.OrderStatus)

	require.Len(t, f.notifier.requests, 2)
	require.Equal(t, enums.NotificationOrderShipped, f.notifier.requests[0].Type)
}

func TestShippingWithoutTrackingFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, 1)
	pending := f.create(t, order, "", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})

	_, err := f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: pending.ID, Status: enums.FulfillmentProcessing})
	require.NoError(t, err)

	_, err = f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: pending.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMissingTracking), "got %v", err)
	require.True(t, pkgerrors.IsStateTransition(err))

	_, err = f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: pending.ID, Status: enums.FulfillmentDelivered})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMissingTracking), "got %v", err)

	stored, err := f.svc.GetFulfillment(ctx, pending.ID)
	require.NoError(t, err)
	require.Equal(t, enums.FulfillmentProcessing, stored.Status)
	require.Nil(t, stored.ShippedAt)
	require.Equal(t, enums.OrderStatusPending, f.order(t, order.ID).OrderStatus)
	require.Empty(t, f.notifier.requests)

	tracking := "1Z999"
	shipped, err := f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: pending.ID, TrackingNumber: &tracking})
	require.NoError(t, err)
	require.Equal(t, enums.FulfillmentShipped, shipped.Status)
	require.Equal(t, "1Z999", *shipped.TrackingNumber)
	require.Zero(t, f.platform.callCount())
}

func TestDeliveredOrderNeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, 1, 1)
	a := f.create(t, order, "T-A", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})
	b := f.create(t, order, "T-B", ItemInput{OrderItemID: order.Items[1].ID, Quantity: 1})

	delivered, err := f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: a.ID, Status: enums.FulfillmentDelivered})
	require.NoError(t, err)
	require.NotNil(t, delivered.ShippedAt)
	require.NotNil(t, delivered.DeliveredAt)
	require.NotNil(t, delivered.ActualDelivery)
	require.Equal(t, enums.OrderStatusDelivered, f.order(t, order.ID).OrderStatus)

	_, err = f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: b.ID})
	require.NoError(t, err)
	current := f.order(t, order.ID)
	require.Equal(t, enums.OrderStatusDelivered, current.OrderStatus)
	require.Equal(t, enums.OrderFulfillmentFulfilled, current.FulfillmentStatus)

	_, err = f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: a.ID, Status: enums.FulfillmentCancelled})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
}

func TestCancelledShipmentStopsCounting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, 2)
	shipped := f.create(t, order, "T-1", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2})
	_, err := f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: shipped.ID})
	require.NoError(t, err)
	require.Equal(t, enums.OrderFulfillmentFulfilled, f.order(t, order.ID).FulfillmentStatus)

	reason := "lost in warehouse"
	cancelled, err := f.svc.CancelFulfillment(ctx, CancelInput{FulfillmentID: shipped.ID, Reason: &reason})
	require.NoError(t, err)
	require.Equal(t, enums.FulfillmentCancelled, cancelled.Status)
	require.Equal(t, reason, *cancelled.CancelReason)

	current := f.order(t, order.ID)
	require.Equal(t, enums.OrderFulfillmentUnfulfilled, current.FulfillmentStatus)
	require.Equal(t, enums.OrderStatusShipped, current.OrderStatus)
	require.Equal(t, enums.OrderItemUnfulfilled, current.Items[0].FulfillmentStatus)

	// The cancelled quantity can be shipped again.
	f.create(t, order, "T-2", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2})
}

func TestCreateFulfillmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, 3)
	item := order.Items[0].ID

	_, err := f.svc.CreateFulfillment(ctx, CreateInput{OrderID: order.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.CreateFulfillment(ctx, CreateInput{OrderID: order.ID, Items: []ItemInput{{OrderItemID: item, Quantity: 0}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.CreateFulfillment(ctx, CreateInput{OrderID: order.ID, Items: []ItemInput{{OrderItemID: uuid.New(), Quantity: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.CreateFulfillment(ctx, CreateInput{OrderID: uuid.New(), Items: []ItemInput{{OrderItemID: item, Quantity: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	f.create(t, order, "", ItemInput{OrderItemID: item, Quantity: 2})
	_, err = f.svc.CreateFulfillment(ctx, CreateInput{OrderID: order.ID, Items: []ItemInput{{OrderItemID: item, Quantity: 1}, {OrderItemID: item, Quantity: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("order_status", enums.OrderStatusCancelled).Error)
	_, err = f.svc.CreateFulfillment(ctx, CreateInput{OrderID: order.ID, Items: []ItemInput{{OrderItemID: item, Quantity: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
}

func TestShipPushesToPlatform(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	external := "450789469"
	order := f.seedOrder(t, &external, 2)
	pending := f.create(t, order, "", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2})

	tracking, carrier := "1Z-SHIP", "UPS"
	shipped, err := f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: pending.ID, TrackingNumber: &tracking, Carrier: &carrier, NotifyCustomer: true})
	require.NoError(t, err)
	require.Equal(t, enums.PlatformSyncSynced, shipped.PlatformSyncStatus)
	require.NotNil(t, shipped.ShopifyFulfillmentID)

	require.Equal(t, 1, f.platform.callCount())
	call := f.platform.calls[0]
	require.Equal(t, external, call.orderID)
	require.Equal(t, "shpat_test", call.creds.AccessToken)
	require.Equal(t, "1Z-SHIP", call.req.TrackingNumber)
	require.Equal(t, "UPS", call.req.TrackingCompany)
	require.True(t, call.req.NotifyCustomer)
	require.Equal(t, []shopify.IDQty{{ID: 700, Quantity: 2}}, call.req.LineItems)

	stored, err := f.svc.GetFulfillment(ctx, pending.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PlatformSyncSynced, stored.PlatformSyncStatus)

	// Shipping again is a no-op and does not push twice.
	_, err = f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: pending.ID})
	require.NoError(t, err)
	require.Equal(t, 1, f.platform.callCount())
}

func TestPlatformFailureKeepsLocalShipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	external := "450789470"
	order := f.seedOrder(t, &external, 1)
	pending := f.create(t, order, "1Z-FAIL", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})

	f.platform.err = errors.New("shopify returned status 503")
	shipped, err := f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: pending.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeExternalSync), "got %v", err)
	require.NotNil(t, shipped)
	require.Equal(t, enums.FulfillmentShipped, shipped.Status)

	stored, err := f.svc.GetFulfillment(ctx, pending.ID)
	require.NoError(t, err)
	require.Equal(t, enums.FulfillmentShipped, stored.Status)
	require.Equal(t, enums.PlatformSyncFailed, stored.PlatformSyncStatus)
	require.Contains(t, *stored.PlatformSyncError, "503")
	require.Equal(t, enums.OrderStatusShipped, f.order(t, order.ID).OrderStatus)

	f.platform.err = nil
	synced, err := f.svc.RetryPlatformSync(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, synced)

	stored, err = f.svc.GetFulfillment(ctx, pending.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PlatformSyncSynced, stored.PlatformSyncStatus)
	require.Nil(t, stored.PlatformSyncError)
}

func TestStatusMachineRejectsBackwardMoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, 1)
	created := f.create(t, order, "T", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})

	_, err := f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: created.ID, Status: enums.FulfillmentInTransit})
	require.NoError(t, err)
	_, err = f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: created.ID, Status: enums.FulfillmentReadyToShip})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	_, err = f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: created.ID, Status: "LOST"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	same, err := f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: created.ID, Status: enums.FulfillmentInTransit})
	require.NoError(t, err)
	require.Equal(t, enums.FulfillmentInTransit, same.Status)

	_, err = f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: created.ID, Status: enums.FulfillmentFailed})
	require.NoError(t, err)
	_, err = f.svc.AddTrackingInfo(ctx, TrackingInput{FulfillmentID: created.ID, TrackingNumber: "X"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
}

func TestEditsListAndAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, 2, 1)
	a := f.create(t, order, "", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2})
	f.create(t, order, "", ItemInput{OrderItemID: order.Items[1].ID, Quantity: 1})

	carrier, url := " FedEx ", "https://track.example/1"
	updated, err := f.svc.AddTrackingInfo(ctx, TrackingInput{FulfillmentID: a.ID, TrackingNumber: " 7788 ", Carrier: &carrier, TrackingURL: &url})
	require.NoError(t, err)
	require.Equal(t, "7788", *updated.TrackingNumber)
	require.Equal(t, "FedEx", *updated.Carrier)

	method := "ground"
	updated, err = f.svc.UpdateFulfillment(ctx, UpdateInput{FulfillmentID: a.ID, ShippingMethod: &method})
	require.NoError(t, err)
	require.Equal(t, "ground", *updated.ShippingMethod)
	_, err = f.svc.UpdateFulfillment(ctx, UpdateInput{FulfillmentID: a.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: a.ID})
	require.NoError(t, err)

	list, err := f.svc.ListFulfillments(ctx, ListFilters{OrderID: &order.ID})
	require.NoError(t, err)
	require.EqualValues(t, 2, list.Total)
	shippedStatus := enums.FulfillmentShipped
	list, err = f.svc.ListFulfillments(ctx, ListFilters{StoreID: &order.StoreID, Status: &shippedStatus})
	require.NoError(t, err)
	require.EqualValues(t, 1, list.Total)
	require.Equal(t, a.ID, list.Fulfillments[0].ID)

	stats, err := f.svc.Analytics(ctx, AnalyticsFilters{StoreID: &order.StoreID})
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalFulfillments)
	require.EqualValues(t, 1, stats.ByStatus[enums.FulfillmentShipped])
	require.EqualValues(t, 1, stats.ByStatus[enums.FulfillmentPending])
	require.GreaterOrEqual(t, stats.AvgHoursToShip, 0.0)
}

// stockedOrder seeds onHand units of a tracked product, then an order for
// reserved of them holding the reservation.
func (f *fixture) stockedOrder(t *testing.T, onHand, reserved int) (*models.Order, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	product := uuid.New()
	order := f.seedOrder(t, nil, reserved)
	item, err := f.inventory.CreateItem(ctx, inventory.CreateItemInput{StoreID: order.StoreID, ProductID: product, Quantity: onHand})
	require.NoError(t, err)
	_, err = f.inventory.Reserve(ctx, inventory.ReservationInput{ProductID: product, Quantity: reserved})
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.OrderItem{}).Where("id = ?", order.Items[0].ID).
		Updates(map[string]any{"product_id": product, "reserved_quantity": reserved}).Error)
	return f.order(t, order.ID), item.ID
}

func (f *fixture) ledger(t *testing.T, itemID uuid.UUID) (onHand, reserved, available int) {
	t.Helper()
	item, err := f.inventory.GetItem(context.Background(), itemID)
	require.NoError(t, err)
	return item.Quantity, item.ReservedQuantity, item.AvailableQuantity
}

// armBeforeWrite runs fn once, just before the next statement of kind
// ("create" or "update") against table.
func armBeforeWrite(t *testing.T, conn *gorm.DB, kind, table string, fn func()) {
	t.Helper()
	armed := true
	hook := func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != table {
			return
		}
		armed = false
		fn()
	}
	var err error
	switch kind {
	case "create":
		err = conn.Callback().Create().Before("gorm:create").Register("test:before_"+kind+"_"+table, hook)
	default:
		err = conn.Callback().Update().Before("gorm:update").Register("test:before_"+kind+"_"+table, hook)
	}
	require.NoError(t, err)
}

type autocommitRunner struct {
	conn *gorm.DB
}

func (r autocommitRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(r.conn)
}

func TestShippingConsumesReservedStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, itemID := f.stockedOrder(t, 10, 3)

	first := f.create(t, order, "1Z-1", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2})
	onHand, reserved, available := f.ledger(t, itemID)
	require.Equal(t, [3]int{10, 3, 7}, [3]int{onHand, reserved, available})

	shipped, err := f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: first.ID})
	require.NoError(t, err)
	require.Equal(t, 2, shipped.Items[0].ConsumedQuantity)
	onHand, reserved, available = f.ledger(t, itemID)
	require.Equal(t, [3]int{8, 1, 7}, [3]int{onHand, reserved, available})
	require.Equal(t, 1, f.order(t, order.ID).Items[0].ReservedQuantity)

	_, err = f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: first.ID, Status: enums.FulfillmentDelivered})
	require.NoError(t, err)
	onHand, reserved, available = f.ledger(t, itemID)
	require.Equal(t, [3]int{8, 1, 7}, [3]int{onHand, reserved, available})

	second := f.create(t, order, "1Z-2", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})
	_, err = f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: second.ID, Status: enums.FulfillmentDelivered})
	require.NoError(t, err)
	onHand, reserved, available = f.ledger(t, itemID)
	require.Equal(t, [3]int{7, 0, 7}, [3]int{onHand, reserved, available})

	current := f.order(t, order.ID)
	require.Zero(t, current.Items[0].ReservedQuantity)
	require.Equal(t, enums.OrderStatusDelivered, current.OrderStatus)
}

func TestCancelledShipmentReinstatesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, itemID := f.stockedOrder(t, 10, 2)
	shipment := f.create(t, order, "1Z-9", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2})

	_, err := f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: shipment.ID})
	require.NoError(t, err)
	onHand, reserved, _ := f.ledger(t, itemID)
	require.Equal(t, [2]int{8, 0}, [2]int{onHand, reserved})

	cancelled, err := f.svc.CancelFulfillment(ctx, CancelInput{FulfillmentID: shipment.ID})
	require.NoError(t, err)
	require.Zero(t, cancelled.Items[0].ConsumedQuantity)
	onHand, reserved, available := f.ledger(t, itemID)
	require.Equal(t, [3]int{10, 2, 8}, [3]int{onHand, reserved, available})
	require.Equal(t, 2, f.order(t, order.ID).Items[0].ReservedQuantity)

	stored, err := f.svc.GetFulfillment(ctx, shipment.ID)
	require.NoError(t, err)
	require.Zero(t, stored.Items[0].ConsumedQuantity)
}

func TestShippingItemsWithoutReservationLeavesLedgerAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, itemID := f.stockedOrder(t, 5, 2)
	require.NoError(t, f.conn.Model(&models.OrderItem{}).Where("id = ?", order.Items[0].ID).Update("reserved_quantity", 0).Error)
	shipment := f.create(t, order, "1Z-0", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2})

	shipped, err := f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: shipment.ID})
	require.NoError(t, err)
	require.Zero(t, shipped.Items[0].ConsumedQuantity)
	onHand, reserved, _ := f.ledger(t, itemID)
	require.Equal(t, [2]int{5, 2}, [2]int{onHand, reserved})
}

func TestInterleavedShipPushesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	external := "450789471"
	order := f.seedOrder(t, &external, 1)
	pending := f.create(t, order, "1Z-RACE", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})

	var inner *models.Fulfillment
	var innerErr error
	armBeforeWrite(t, f.conn, "update", "fulfillments", func() {
		inner, innerErr = f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: pending.ID})
	})

	racing := f.service(t, autocommitRunner{conn: f.conn})
	outer, err := racing.ShipFulfillment(ctx, ShipInput{FulfillmentID: pending.ID})
	require.NoError(t, err)
	require.NoError(t, innerErr)
	require.Equal(t, enums.FulfillmentShipped, inner.Status)
	require.Equal(t, enums.FulfillmentShipped, outer.Status)

	require.Equal(t, 1, f.platform.callCount())
	require.Len(t, f.notifier.requests, 1)
	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventFulfillmentStatusChanged).Count(&events).Error)
	require.EqualValues(t, 2, events)
}

func TestInterleavedCreateNeverExceedsOrderedQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, 3)
	item := order.Items[0].ID

	var innerErr error
	armBeforeWrite(t, f.conn, "update", "orders", func() {
		_, innerErr = f.svc.CreateFulfillment(ctx, CreateInput{OrderID: order.ID, Items: []ItemInput{{OrderItemID: item, Quantity: 2}}})
	})

	racing := f.service(t, autocommitRunner{conn: f.conn})
	_, err := racing.CreateFulfillment(ctx, CreateInput{OrderID: order.ID, Items: []ItemInput{{OrderItemID: item, Quantity: 2}}})
	require.NoError(t, innerErr)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	list, err := f.svc.ListFulfillments(ctx, ListFilters{OrderID: &order.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, list.Total)
	require.Equal(t, 2, CommittedQuantities(list.Fulfillments)[item])
}

func TestReconcileKeepsFirstProcessedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, nil, 1, 1)
	first := f.create(t, order, "T-1", ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})
	second := f.create(t, order, "T-2", ItemInput{OrderItemID: order.Items[1].ID, Quantity: 1})

	_, err := f.svc.ShipFulfillment(ctx, ShipInput{FulfillmentID: first.ID})
	require.NoError(t, err)
	shipped := f.order(t, order.ID)
	require.Equal(t, enums.OrderStatusShipped, shipped.OrderStatus)
	require.NotNil(t, shipped.ProcessedAt)

	f.svc.now = func() time.Time { return shipped.ProcessedAt.Add(48 * time.Hour) }
	_, err = f.svc.UpdateFulfillmentStatus(ctx, StatusInput{FulfillmentID: second.ID, Status: enums.FulfillmentDelivered})
	require.NoError(t, err)
	delivered := f.order(t, order.ID)
	require.Equal(t, enums.OrderStatusDelivered, delivered.OrderStatus)
	require.WithinDuration(t, *shipped.ProcessedAt, *delivered.ProcessedAt, time.Second)
}

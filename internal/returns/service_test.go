package returns

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strconv"
	"sync"
	"testing"

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

type refundCall struct {
	orderID string
	req     shopify.RefundRequest
}

type stubPlatform struct {
	mu    sync.Mutex
	calls []refundCall
	err   error
}

func (p *stubPlatform) CreateRefund(_ context.Context, _ shopify.Credentials, externalOrderID string, req shopify.RefundRequest) (*shopify.RefundResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, refundCall{orderID: externalOrderID, req: req})
	if p.err != nil {
		return nil, p.err
	}
	return &shopify.RefundResponse{ID: 4000 + int64(len(p.calls))}, nil
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
	storeID   uuid.UUID
}

func newFixture(t *testing.T, cfg config.ReturnsConfig) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	logg := logger.New(logger.Options{ServiceName: "returns-test", Output: io.Discard})
	inv, err := inventory.NewService(inventory.NewRepository(conn), client, config.InventoryConfig{}, nil, logg)
	require.NoError(t, err)
	platform := &stubPlatform{}
	notify := &recordingNotifier{}
	svc, err := NewService(Deps{
		Repo:      NewRepository(conn),
		Orders:    orders.NewRepository(conn),
		Tx:        client,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Restocker: inv,
		Platform:  platform,
		Stores:    stubCredentials{},
		Notifier:  notify,
		Config:    cfg,
		Logger:    logg,
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, inventory: inv, platform: platform, notifier: notify, storeID: uuid.New()}
}

// seedOrder stores a paid order with one item per product and quantity.
func (f *fixture) seedOrder(t *testing.T, externalID *string, status enums.OrderStatus, products []*uuid.UUID, quantities ...int) *models.Order {
	t.Helper()
	order := &models.Order{
		StoreID:           f.storeID,
		ShopifyOrderID:    externalID,
		OrderNumber:       "1001",
		CustomerName:      "Jane Doe",
		OrderStatus:       status,
		FinancialStatus:   enums.FinancialStatusPaid,
		FulfillmentStatus: enums.OrderFulfillmentFulfilled,
		TotalAmount:       decimal.NewFromInt(50),
		Currency:          "USD",
	}
	for i, qty := range quantities {
		lineID := strconv.Itoa(800 + i)
		item := models.OrderItem{
			Name:              "Item " + strconv.Itoa(i+1),
			ShopifyLineItemID: &lineID,
			Quantity:          qty,
			Price:             decimal.NewFromInt(10),
			TotalAmount:       decimal.NewFromInt(int64(10 * qty)),
			FulfillmentStatus: enums.OrderItemFulfilled,
		}
		if i < len(products) {
			item.ProductID = products[i]
		}
		order.Items = append(order.Items, item)
	}
	require.NoError(t, f.conn.Create(order).Error)
	return order
}

func (f *fixture) open(t *testing.T, order *models.Order, items ...ItemInput) *models.ReturnRequest {
	t.Helper()
	ret, err := f.svc.CreateReturnRequest(context.Background(), CreateInput{OrderID: order.ID, Reason: "Too small", Items: items})
	require.NoError(t, err)
	return ret
}

func (f *fixture) returnEvents(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventReturnStatusChanged).Count(&count).Error)
	return count
}

func TestCreateReturnRequest(t *testing.T) {
	f := newFixture(t, config.ReturnsConfig{})
	ctx := context.Background()
	order := f.seedOrder(t, nil, enums.OrderStatusDelivered, nil, 3, 1)

	ret := f.open(t, order,
		ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1},
		ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1},
	)
	require.Equal(t, enums.ReturnPending, ret.Status)
	require.Equal(t, enums.PlatformSyncNotRequired, ret.PlatformSyncStatus)
	require.Regexp(t, regexp.MustCompile(`^RMA-\d+-[0-9A-F]{4}$`), ret.ReturnNumber)
	require.Len(t, ret.Items, 1)
	require.Equal(t, 2, ret.Items[0].Quantity)
	require.EqualValues(t, 1, f.returnEvents(t))
	require.Len(t, f.notifier.requests, 1)
	require.Equal(t, enums.NotificationReturnRequested, f.notifier.requests[0].Type)

	_, err := f.svc.CreateReturnRequest(ctx, CreateInput{
		OrderID: order.ID,
		Reason:  "Changed mind",
		Items:   []ItemInput{{OrderItemID: order.Items[0].ID, Quantity: 2}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "open returns claim 2 of 3, got %v", err)

	_, err = f.svc.CreateReturnRequest(ctx, CreateInput{
		OrderID: order.ID,
		Reason:  "Wrong item",
		Items:   []ItemInput{{OrderItemID: uuid.New(), Quantity: 1}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = f.svc.CreateReturnRequest(ctx, CreateInput{OrderID: order.ID, Reason: " ", Items: []ItemInput{{OrderItemID: order.Items[1].ID, Quantity: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateReturnRequest(ctx, CreateInput{OrderID: order.ID, Reason: "Broken", Items: []ItemInput{{OrderItemID: order.Items[1].ID}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateReturnRequest(ctx, CreateInput{OrderID: uuid.New(), Reason: "Broken", Items: []ItemInput{{OrderItemID: order.Items[1].ID, Quantity: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	cancelled := f.seedOrder(t, nil, enums.OrderStatusCancelled, nil, 1)
	_, err = f.svc.CreateReturnRequest(ctx, CreateInput{OrderID: cancelled.ID, Reason: "Broken", Items: []ItemInput{{OrderItemID: cancelled.Items[0].ID, Quantity: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
}

func TestRejectedReturnFreesQuantity(t *testing.T) {
	f := newFixture(t, config.ReturnsConfig{})
	ctx := context.Background()
	order := f.seedOrder(t, nil, enums.OrderStatusDelivered, nil, 1)

	first := f.open(t, order, ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})
	rejected, err := f.svc.RejectReturn(ctx, RejectInput{ReturnID: first.ID, Reason: "Outside window"})
	require.NoError(t, err)
	require.Equal(t, enums.ReturnRejected, rejected.Status)
	require.NotNil(t, rejected.RejectedAt)
	require.Equal(t, "Rejected: Outside window", *rejected.InternalNotes)

	f.open(t, order, ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})

	_, err = f.svc.ApproveReturn(ctx, ApproveInput{ReturnID: first.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidReturnState), "got %v", err)
}

func TestProcessRefundRequiresApproval(t *testing.T) {
	f := newFixture(t, config.ReturnsConfig{})
	ctx := context.Background()
	order := f.seedOrder(t, nil, enums.OrderStatusDelivered, nil, 2)
	ret := f.open(t, order, ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2})

	_, err := f.svc.ProcessRefund(ctx, RefundInput{ReturnID: ret.ID, Amount: ptrDecimal("20"), Method: "original"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidReturnState), "got %v", err)
	require.True(t, pkgerrors.IsStateTransition(err))

	stored, err := f.svc.GetReturn(ctx, ret.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ReturnPending, stored.Status)
	require.Nil(t, stored.RefundAmount)
}

func TestReturnLifecycleCompletesAndMarksItems(t *testing.T) {
	f := newFixture(t, config.ReturnsConfig{})
	ctx := context.Background()
	order := f.seedOrder(t, nil, enums.OrderStatusDelivered, nil, 2, 1)
	ret := f.open(t, order, ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2})
	approver := uuid.New()
	fee := decimal.RequireFromString("2.00")

	_, err := f.svc.ApproveReturn(ctx, ApproveInput{ReturnID: ret.ID, RestockFee: &fee, RefundAmount: ptrDecimal("-1")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	approved, err := f.svc.ApproveReturn(ctx, ApproveInput{ReturnID: ret.ID, RestockFee: &fee, ActorUserID: &approver, ActorRole: "admin"})
	require.NoError(t, err)
	require.Equal(t, enums.ReturnApproved, approved.Status)
	require.Equal(t, approver, *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	_, err = f.svc.StartInspection(ctx, InspectInput{ReturnID: ret.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidReturnState), "inspection needs received goods")

	_, err = f.svc.MarkReceived(ctx, ret.ID, nil, "")
	require.NoError(t, err)
	inspecting, err := f.svc.StartInspection(ctx, InspectInput{
		ReturnID:   ret.ID,
		Conditions: map[uuid.UUID]string{order.Items[0].ID: "opened"},
	})
	require.NoError(t, err)
	require.Equal(t, enums.ReturnInspecting, inspecting.Status)
	require.Equal(t, "opened", *inspecting.Items[0].Condition)

	done, err := f.svc.ProcessRefund(ctx, RefundInput{ReturnID: ret.ID, Amount: ptrDecimal("18.004"), Method: "original"})
	require.NoError(t, err)
	require.Equal(t, enums.ReturnCompleted, done.Status)
	require.Equal(t, "18.00", done.RefundAmount.StringFixed(2))
	require.NotNil(t, done.CompletedAt)
	require.False(t, done.Restocked)
	require.Equal(t, enums.PlatformSyncNotRequired, done.PlatformSyncStatus)
	require.Empty(t, f.platform.calls)

	stored, err := orders.NewRepository(f.conn).FindByID(ctx, order.ID)
	require.NoError(t, err)
	statuses := map[uuid.UUID]enums.OrderItemFulfillmentStatus{}
	for _, item := range stored.Items {
		statuses[item.ID] = item.FulfillmentStatus
	}
	require.Equal(t, enums.OrderItemReturned, statuses[order.Items[0].ID])
	require.Equal(t, enums.OrderItemFulfilled, statuses[order.Items[1].ID])

	_, err = f.svc.CancelReturn(ctx, CancelInput{ReturnID: ret.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidReturnState), "completed is terminal")
	require.EqualValues(t, 5, f.returnEvents(t))
}

func TestRestockOnComplete(t *testing.T) {
	for _, restock := range []bool{false, true} {
		t.Run("restock="+strconv.FormatBool(restock), func(t *testing.T) {
			f := newFixture(t, config.ReturnsConfig{RestockOnComplete: restock})
			ctx := context.Background()
			product := uuid.New()
			item, err := f.inventory.CreateItem(ctx, inventory.CreateItemInput{StoreID: f.storeID, ProductID: product, Quantity: 5})
			require.NoError(t, err)
			untracked := uuid.New()

			order := f.seedOrder(t, nil, enums.OrderStatusDelivered, []*uuid.UUID{&product, &untracked}, 2, 1)
			ret := f.open(t, order,
				ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2},
				ItemInput{OrderItemID: order.Items[1].ID, Quantity: 1},
			)
			_, err = f.svc.ApproveReturn(ctx, ApproveInput{ReturnID: ret.ID})
			require.NoError(t, err)

			done, err := f.svc.ProcessRefund(ctx, RefundInput{ReturnID: ret.ID, Amount: ptrDecimal("30"), Method: "store_credit"})
			require.NoError(t, err)
			require.Equal(t, restock, done.Restocked)

			ledger, err := f.inventory.GetItem(ctx, item.ID)
			require.NoError(t, err)
			want := 5
			if restock {
				want = 7
			}
			require.Equal(t, want, ledger.Quantity)
		})
	}
}

func TestPlatformRefundFailureKeepsCompletion(t *testing.T) {
	f := newFixture(t, config.ReturnsConfig{})
	ctx := context.Background()
	external := "5001"
	order := f.seedOrder(t, &external, enums.OrderStatusDelivered, nil, 2)
	ret := f.open(t, order, ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})
	_, err := f.svc.ApproveReturn(ctx, ApproveInput{ReturnID: ret.ID})
	require.NoError(t, err)

	f.platform.err = errors.New("shopify unavailable")
	done, err := f.svc.ProcessRefund(ctx, RefundInput{ReturnID: ret.ID, Amount: ptrDecimal("10"), Method: "original"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeExternalSync), "got %v", err)
	require.NotNil(t, done)
	require.Equal(t, enums.ReturnCompleted, done.Status)

	stored, err := f.svc.GetReturn(ctx, ret.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ReturnCompleted, stored.Status)
	require.Equal(t, enums.PlatformSyncFailed, stored.PlatformSyncStatus)
	require.Contains(t, *stored.PlatformSyncError, "shopify unavailable")

	f.platform.err = nil
	synced, err := f.svc.RetryPlatformSync(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, synced)

	stored, err = f.svc.GetReturn(ctx, ret.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PlatformSyncSynced, stored.PlatformSyncStatus)
	require.Nil(t, stored.PlatformSyncError)

	last := f.platform.calls[len(f.platform.calls)-1]
	require.Equal(t, "5001", last.orderID)
	require.Equal(t, "USD", last.req.Currency)
	require.Equal(t, []shopify.RefundLineItem{{LineItemID: 800, Quantity: 1, RestockType: "no_restock"}}, last.req.RefundLineItems)
	require.Len(t, last.req.Transactions, 1)
	require.True(t, last.req.Transactions[0].Amount.Equal(decimal.NewFromInt(10)))

	synced, err = f.svc.RetryPlatformSync(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, synced)
}

func TestCancelNotesListAndAnalytics(t *testing.T) {
	f := newFixture(t, config.ReturnsConfig{})
	ctx := context.Background()
	order := f.seedOrder(t, nil, enums.OrderStatusDelivered, nil, 3)

	a := f.open(t, order, ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})
	b := f.open(t, order, ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})

	reason := "Customer kept it"
	cancelled, err := f.svc.CancelReturn(ctx, CancelInput{ReturnID: a.ID, Reason: &reason})
	require.NoError(t, err)
	require.Equal(t, enums.ReturnCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	noted, err := f.svc.AddInternalNotes(ctx, a.ID, "called customer")
	require.NoError(t, err)
	require.Equal(t, "Cancelled: Customer kept it\ncalled customer", *noted.InternalNotes)
	_, err = f.svc.AddInternalNotes(ctx, a.ID, "  ")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.ApproveReturn(ctx, ApproveInput{ReturnID: b.ID})
	require.NoError(t, err)
	_, err = f.svc.ProcessRefund(ctx, RefundInput{ReturnID: b.ID, Amount: ptrDecimal("9.50"), Method: "original"})
	require.NoError(t, err)

	status := enums.ReturnCompleted
	list, err := f.svc.ListReturns(ctx, ListFilters{Status: &status})
	require.NoError(t, err)
	require.EqualValues(t, 1, list.Total)
	require.Equal(t, b.ID, list.Returns[0].ID)

	all, err := f.svc.ListReturns(ctx, ListFilters{OrderID: &order.ID, Limit: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, all.Total)
	require.Len(t, all.Returns, 1)

	stats, err := f.svc.Analytics(ctx, AnalyticsFilters{StoreID: &f.storeID})
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalReturns)
	require.EqualValues(t, 1, stats.ByStatus[enums.ReturnCompleted])
	require.EqualValues(t, 1, stats.ByStatus[enums.ReturnCancelled])
	require.Equal(t, "9.50", stats.TotalRefundAmount.StringFixed(2))
}

func TestRefundFallsBackToApprovedAmount(t *testing.T) {
	f := newFixture(t, config.ReturnsConfig{})
	ctx := context.Background()
	external := "5003"
	order := f.seedOrder(t, &external, enums.OrderStatusDelivered, nil, 2)
	ret := f.open(t, order, ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2})
	_, err := f.svc.ApproveReturn(ctx, ApproveInput{ReturnID: ret.ID, RefundAmount: ptrDecimal("45.50")})
	require.NoError(t, err)

	done, err := f.svc.ProcessRefund(ctx, RefundInput{ReturnID: ret.ID, Method: "original"})
	require.NoError(t, err)
	require.Equal(t, "45.50", done.RefundAmount.StringFixed(2))

	stored, err := f.svc.GetReturn(ctx, ret.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RefundAmount)
	require.Equal(t, "45.50", stored.RefundAmount.StringFixed(2))

	require.Len(t, f.platform.calls, 1)
	require.Len(t, f.platform.calls[0].req.Transactions, 1)
	require.True(t, f.platform.calls[0].req.Transactions[0].Amount.Equal(decimal.RequireFromString("45.50")))
}

func TestRefundWithoutAnyAmountIsRejected(t *testing.T) {
	f := newFixture(t, config.ReturnsConfig{})
	ctx := context.Background()
	order := f.seedOrder(t, nil, enums.OrderStatusDelivered, nil, 1)
	ret := f.open(t, order, ItemInput{OrderItemID: order.Items[0].ID, Quantity: 1})
	_, err := f.svc.ApproveReturn(ctx, ApproveInput{ReturnID: ret.ID})
	require.NoError(t, err)

	_, err = f.svc.ProcessRefund(ctx, RefundInput{ReturnID: ret.ID, Method: "original"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	stored, err := f.svc.GetReturn(ctx, ret.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ReturnApproved, stored.Status)
	require.Nil(t, stored.RefundAmount)
}

type autocommitRunner struct {
	conn *gorm.DB
}

func (r autocommitRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(r.conn)
}

// reenteringRestocker runs reenter once, before its first restock, so a
// second refund lands while the first is mid-flight.
type reenteringRestocker struct {
	Restocker
	reenter func()
	done    bool
}

func (r *reenteringRestocker) RestockProduct(ctx context.Context, tx *gorm.DB, input inventory.ReservationInput) (*models.InventoryItem, error) {
	if !r.done {
		r.done = true
		r.reenter()
	}
	return r.Restocker.RestockProduct(ctx, tx, input)
}

func TestInterleavedRefundCompletesOnce(t *testing.T) {
	f := newFixture(t, config.ReturnsConfig{RestockOnComplete: true})
	ctx := context.Background()
	product := uuid.New()
	item, err := f.inventory.CreateItem(ctx, inventory.CreateItemInput{StoreID: f.storeID, ProductID: product, Quantity: 10})
	require.NoError(t, err)
	external := "5004"
	order := f.seedOrder(t, &external, enums.OrderStatusDelivered, []*uuid.UUID{&product}, 2)
	ret := f.open(t, order, ItemInput{OrderItemID: order.Items[0].ID, Quantity: 2})
	_, err = f.svc.ApproveReturn(ctx, ApproveInput{ReturnID: ret.ID, RefundAmount: ptrDecimal("20")})
	require.NoError(t, err)

	var innerErr error
	restocker := &reenteringRestocker{Restocker: f.inventory, reenter: func() {
		_, innerErr = f.svc.ProcessRefund(ctx, RefundInput{ReturnID: ret.ID, Method: "original"})
	}}
	logg := logger.New(logger.Options{ServiceName: "returns-test", Output: io.Discard})
	racing, err := NewService(Deps{
		Repo:      NewRepository(f.conn),
		Orders:    orders.NewRepository(f.conn),
		Tx:        autocommitRunner{conn: f.conn},
		Outbox:    outbox.NewService(outbox.NewRepository(f.conn), logg),
		Restocker: restocker,
		Platform:  f.platform,
		Stores:    stubCredentials{},
		Notifier:  f.notifier,
		Config:    config.ReturnsConfig{RestockOnComplete: true},
		Logger:    logg,
	})
	require.NoError(t, err)

	done, err := racing.ProcessRefund(ctx, RefundInput{ReturnID: ret.ID, Method: "original"})
	require.NoError(t, err)
	require.Equal(t, enums.ReturnCompleted, done.Status)
	require.True(t, pkgerrors.IsCode(innerErr, pkgerrors.CodeInvalidReturnState), "got %v", innerErr)

	ledger, err := f.inventory.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 12, ledger.Quantity)
	require.Len(t, f.platform.calls, 1)
	require.EqualValues(t, 3, f.returnEvents(t))
}

func ptrDecimal(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

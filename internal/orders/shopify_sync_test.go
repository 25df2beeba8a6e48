package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/shopify"
)

const platformOrderJSON = `{
  "id": 820982911946154500,
  "name": "#1001",
  "order_number": 1001,
  "email": "ignored@example.com",
  "financial_status": "paid",
  "fulfillment_status": null,
  "currency": "usd",
  "total_price": "59.00",
  "total_tax": "4.00",
  "total_discounts": "0.00",
  "total_shipping_price_set": {"shop_money": {"amount": "5.00", "currency_code": "USD"}},
  "tags": "wholesale, rush",
  "customer": {"id": 1, "first_name": "Ada", "last_name": "Byron", "email": "ada@example.com"},
  "shipping_address": {"name": "Ada Byron", "address1": "1 Main St", "city": "Austin", "province_code": "TX", "zip": "78701", "country_code": "US"},
  "line_items": [
    {"id": 466157049, "title": "Mug", "sku": "MUG-1", "quantity": 2, "price": "25.00"}
  ]
}`

func decodePlatformOrder(t *testing.T) shopify.Order {
	t.Helper()
	var order shopify.Order
	require.NoError(t, json.Unmarshal([]byte(platformOrderJSON), &order))
	return order
}

func TestMapFinancialStatus(t *testing.T) {
	cases := map[string]enums.FinancialStatus{
		"paid":               enums.FinancialStatusPaid,
		"PARTIALLY_REFUNDED": enums.FinancialStatusPartiallyRefunded,
		"voided":             enums.FinancialStatusVoided,
		"":                   enums.FinancialStatusPending,
		"something_new":      enums.FinancialStatusPending,
	}
	for in, want := range cases {
		if got := MapFinancialStatus(in); got != want {
			t.Fatalf("MapFinancialStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestMapFulfillmentStatus(t *testing.T) {
	str := func(s string) *string { return &s }
	cases := []struct {
		in   *string
		want enums.OrderFulfillmentStatus
	}{
		{nil, enums.OrderFulfillmentUnfulfilled},
		{str("fulfilled"), enums.OrderFulfillmentFulfilled},
		{str("partial"), enums.OrderFulfillmentPartiallyFulfilled},
		{str("restocked"), enums.OrderFulfillmentUnfulfilled},
	}
	for _, tc := range cases {
		if got := MapFulfillmentStatus(tc.in); got != tc.want {
			t.Fatalf("MapFulfillmentStatus(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestSyncOrderFromShopifyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := decodePlatformOrder(t)

	order, err := f.svc.SyncOrderFromShopify(ctx, f.storeID, payload)
	require.NoError(t, err)
	require.Equal(t, "1001", order.OrderNumber)
	require.Equal(t, "Ada Byron", order.CustomerName)
	require.Equal(t, "ada@example.com", *order.CustomerEmail)
	require.Equal(t, enums.FinancialStatusPaid, order.FinancialStatus)
	require.Equal(t, enums.OrderFulfillmentUnfulfilled, order.FulfillmentStatus)
	require.Equal(t, "USD", order.Currency)
	require.Equal(t, []string{"wholesale", "rush"}, order.Tags)
	require.True(t, decimal.RequireFromString("5").Equal(order.ShippingAmount))
	require.NotNil(t, order.ShippingAddress)
	require.Equal(t, "Austin", order.ShippingAddress.City)

	stored, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	require.Equal(t, "466157049", *stored.Items[0].ShopifyLineItemID)
	require.Nil(t, stored.Items[0].ProductID)
	require.Zero(t, stored.Items[0].ReservedQuantity)

	fulfilled := "fulfilled"
	payload.FulfillmentStatus = &fulfilled
	payload.FinancialStatus = "partially_refunded"
	again, err := f.svc.SyncOrderFromShopify(ctx, f.storeID, payload)
	require.NoError(t, err)
	require.Equal(t, order.ID, again.ID)
	require.Equal(t, enums.OrderFulfillmentFulfilled, again.FulfillmentStatus)
	require.Equal(t, enums.FinancialStatusPartiallyRefunded, again.FinancialStatus)

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var created int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCreated).Count(&created).Error)
	require.EqualValues(t, 1, created)
}

func TestPlatformUpdateKeepsLocallyReconciledFulfillment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.SyncOrderFromShopify(ctx, f.storeID, decodePlatformOrder(t))
	require.NoError(t, err)

	tracking := "1Z-LOCAL"
	shipment := &models.Fulfillment{
		OrderID:            order.ID,
		Status:             enums.FulfillmentShipped,
		TrackingNumber:     &tracking,
		PlatformSyncStatus: enums.PlatformSyncSynced,
		Items:              []models.FulfillmentItem{{OrderItemID: order.Items[0].ID, Quantity: 2}},
	}
	require.NoError(t, f.conn.Create(shipment).Error)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("fulfillment_status", enums.OrderFulfillmentFulfilled).Error)

	// A payment-only update still reports the order as unfulfilled.
	payload := decodePlatformOrder(t)
	payload.FinancialStatus = "refunded"
	updated, err := f.svc.SyncOrderFromShopify(ctx, f.storeID, payload)
	require.NoError(t, err)
	require.Equal(t, enums.FinancialStatusRefunded, updated.FinancialStatus)
	require.Equal(t, enums.OrderFulfillmentFulfilled, updated.FulfillmentStatus)
}

func TestSyncOrderFromShopifyDefaultsGuest(t *testing.T) {
	f := newFixture(t)
	payload := decodePlatformOrder(t)
	payload.Customer = nil
	payload.Email = ""
	payload.ShippingAddress = nil

	order, err := f.svc.SyncOrderFromShopify(context.Background(), f.storeID, payload)
	require.NoError(t, err)
	require.Equal(t, "Guest", order.CustomerName)
	require.Nil(t, order.CustomerEmail)
	require.Nil(t, order.ShippingAddress)
}

func TestSyncOrderFromShopifyRequiresID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SyncOrderFromShopify(context.Background(), f.storeID, shopify.Order{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestCancelOrderFromShopify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := decodePlatformOrder(t)

	_, err := f.svc.CancelOrderFromShopify(ctx, payload)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = f.svc.SyncOrderFromShopify(ctx, f.storeID, payload)
	require.NoError(t, err)

	reason := "customer"
	payload.CancelReason = &reason
	cancelled, err := f.svc.CancelOrderFromShopify(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.OrderStatus)
	require.Equal(t, "customer", *cancelled.CancelReason)
}

package shopify

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Credentials identify the shop a call is made against.
type Credentials struct {
	ShopDomain  string
	AccessToken string
}

// FulfillmentRequest is pushed when a local shipment goes out.
type FulfillmentRequest struct {
	TrackingNumber  string   `json:"tracking_number"`
	TrackingCompany string   `json:"tracking_company,omitempty"`
	TrackingURL     string   `json:"tracking_url,omitempty"`
	NotifyCustomer  bool     `json:"notify_customer"`
	LineItems       []IDQty  `json:"line_items,omitempty"`
	TrackingNumbers []string `json:"tracking_numbers,omitempty"`
}

// IDQty references a platform line item and a quantity.
type IDQty struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

// FulfillmentResponse is the subset of the platform fulfillment we keep.
type FulfillmentResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// RefundRequest is pushed when a return completes.
type RefundRequest struct {
	Note            string              `json:"note,omitempty"`
	Notify          bool                `json:"notify"`
	Currency        string              `json:"currency,omitempty"`
	RefundLineItems []RefundLineItem    `json:"refund_line_items,omitempty"`
	Transactions    []RefundTransaction `json:"transactions,omitempty"`
}

// RefundLineItem refunds part of one line.
type RefundLineItem struct {
	LineItemID  int64  `json:"line_item_id"`
	Quantity    int    `json:"quantity"`
	RestockType string `json:"restock_type,omitempty"`
}

// RefundTransaction is the money movement attached to a refund.
type RefundTransaction struct {
	Kind    string          `json:"kind"`
	Gateway string          `json:"gateway,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
}

// RefundResponse is the subset of the platform refund we keep.
type RefundResponse struct {
	ID int64 `json:"id"`
}

// Order is the webhook/REST order shape, limited to the fields consumed for
// reconciliation.
type Order struct {
	ID                    int64           `json:"id"`
	Name                  string          `json:"name"`
	OrderNumber           int64           `json:"order_number"`
	Email                 string          `json:"email"`
	Phone                 string          `json:"phone"`
	FinancialStatus       string          `json:"financial_status"`
	FulfillmentStatus     *string         `json:"fulfillment_status"`
	Currency              string          `json:"currency"`
	TotalPrice            decimal.Decimal `json:"total_price"`
	TotalTax              decimal.Decimal `json:"total_tax"`
	TotalDiscounts        decimal.Decimal `json:"total_discounts"`
	TotalShippingPriceSet *PriceSet       `json:"total_shipping_price_set"`
	Tags                  string          `json:"tags"`
	Note                  *string         `json:"note"`
	CancelReason          *string         `json:"cancel_reason"`
	CancelledAt           *string         `json:"cancelled_at"`
	Customer              *Customer       `json:"customer"`
	ShippingAddress       *Address        `json:"shipping_address"`
	LineItems             []LineItem      `json:"line_items"`
}

// ExternalID is the platform order id as stored locally.
func (o Order) ExternalID() string {
	if o.ID == 0 {
		return ""
	}
	return strconv.FormatInt(o.ID, 10)
}

// ShippingAmount reads the shop-currency shipping total.
func (o Order) ShippingAmount() decimal.Decimal {
	if o.TotalShippingPriceSet == nil {
		return decimal.Zero
	}
	return o.TotalShippingPriceSet.ShopMoney.Amount
}

// TagList splits the comma separated tag string.
func (o Order) TagList() []string {
	tags := []string{}
	for _, raw := range strings.Split(o.Tags, ",") {
		if tag := strings.TrimSpace(raw); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// PriceSet carries an amount in shop and presentment currencies.
type PriceSet struct {
	ShopMoney Money `json:"shop_money"`
}

// Money is an amount with its currency.
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
}

// Customer is the buyer attached to an order.
type Customer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// FullName joins the name parts.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Address is the platform address shape.
type Address struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province_code"`
	Zip      string `json:"zip"`
	Country  string `json:"country_code"`
	Phone    string `json:"phone"`
}

// LineItem is one order line.
type LineItem struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Title         string          `json:"title"`
	SKU           string          `json:"sku"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalTax      decimal.Decimal `json:"total_tax"`
}

// DisplayName prefers the full line name over the product title.
func (l LineItem) DisplayName() string {
	if strings.TrimSpace(l.Name) != "" {
		return l.Name
	}
	return l.Title
}

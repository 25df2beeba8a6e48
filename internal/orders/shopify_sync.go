package orders

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/shopify"
	"github.com/angelmondragon/ordergenie-backend/pkg/types"
)

var financialStatusByPlatform = map[string]enums.FinancialStatus{
	"pending":            enums.FinancialStatusPending,
	"authorized":         enums.FinancialStatusAuthorized,
	"partially_paid":     enums.FinancialStatusPartiallyPaid,
	"paid":               enums.FinancialStatusPaid,
	"partially_refunded": enums.FinancialStatusPartiallyRefunded,
	"refunded":           enums.FinancialStatusRefunded,
	"voided":             enums.FinancialStatusVoided,
}

// MapFinancialStatus translates the platform payment state, defaulting to
// PENDING for anything unknown.
func MapFinancialStatus(status string) enums.FinancialStatus {
	if mapped, ok := financialStatusByPlatform[strings.ToLower(strings.TrimSpace(status))]; ok {
		return mapped
	}
	return enums.FinancialStatusPending
}

// MapFulfillmentStatus translates the platform fulfillment state. A null or
// unknown value means nothing has shipped.
func MapFulfillmentStatus(status *string) enums.OrderFulfillmentStatus {
	if status == nil {
		return enums.OrderFulfillmentUnfulfilled
	}
	switch strings.ToLower(strings.TrimSpace(*status)) {
	case "fulfilled":
		return enums.OrderFulfillmentFulfilled
	case "partial":
		return enums.OrderFulfillmentPartiallyFulfilled
	}
	return enums.OrderFulfillmentUnfulfilled
}

// SyncOrderFromShopify creates the local copy of a platform order, or
// refreshes it when it already exists. Redeliveries never create a second
// order: a concurrent insert that loses the unique race updates the winner.
func (s *Service) SyncOrderFromShopify(ctx context.Context, storeID uuid.UUID, payload shopify.Order) (*models.Order, error) {
	externalID := payload.ExternalID()
	if externalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform order id is required")
	}
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store_id is required")
	}

	existing, err := s.repo.FindByShopifyID(ctx, externalID)
	switch {
	case err == nil:
		return s.UpdateOrderFromShopify(ctx, existing.ID, payload)
	case !pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return nil, err
	}

	order := orderFromPlatform(storeID, payload)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.emitCreated(ctx, tx, order, nil)
	})
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		winner, findErr := s.repo.FindByShopifyID(ctx, externalID)
		if findErr != nil {
			return nil, findErr
		}
		return s.UpdateOrderFromShopify(ctx, winner.ID, payload)
	}
	if err != nil {
		return nil, err
	}

	s.logInfo(ctx, order, "order synced from platform")
	return order, nil
}

// UpdateOrderFromShopify refreshes payment state and amounts from the
// platform payload. The platform's fulfillment state is taken only while the
// order has no local shipments; after that the reconciler owns it. Applying
// the same payload twice leaves the order unchanged.
func (s *Service) UpdateOrderFromShopify(ctx context.Context, orderID uuid.UUID, payload shopify.Order) (*models.Order, error) {
	updates := map[string]any{
		"financial_status": MapFinancialStatus(payload.FinancialStatus),
		"total_amount":     payload.TotalPrice,
		"tax_amount":       payload.TotalTax,
		"shipping_amount":  payload.ShippingAmount(),
		"discount_amount":  payload.TotalDiscounts,
	}
	shipped, err := s.repo.HasFulfillments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !shipped {
		updates["fulfillment_status"] = MapFulfillmentStatus(payload.FulfillmentStatus)
	}
	if err := s.repo.Update(ctx, orderID, updates); err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, order, "order updated from platform")
	return order, nil
}

// CancelOrderFromShopify mirrors a platform cancellation locally.
func (s *Service) CancelOrderFromShopify(ctx context.Context, payload shopify.Order) (*models.Order, error) {
	externalID := payload.ExternalID()
	if externalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform order id is required")
	}
	order, err := s.repo.FindByShopifyID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, Reason: payload.CancelReason})
}

func orderFromPlatform(storeID uuid.UUID, payload shopify.Order) *models.Order {
	externalID := payload.ExternalID()
	number := strconv.FormatInt(payload.OrderNumber, 10)
	if payload.OrderNumber == 0 && payload.Name != "" {
		number = strings.TrimPrefix(payload.Name, "#")
	}

	name := "Guest"
	email := optional(payload.Email)
	phone := optional(payload.Phone)
	if payload.Customer != nil {
		if full := payload.Customer.FullName(); full != "" {
			name = full
		}
		if payload.Customer.Email != "" {
			email = optional(payload.Customer.Email)
		}
		if payload.Customer.Phone != "" {
			phone = optional(payload.Customer.Phone)
		}
	}

	items := make([]models.OrderItem, 0, len(payload.LineItems))
	for _, line := range payload.LineItems {
		lineID := strconv.FormatInt(line.ID, 10)
		items = append(items, models.OrderItem{
			ShopifyLineItemID: &lineID,
			Name:              line.DisplayName(),
			SKU:               optional(line.SKU),
			Quantity:          line.Quantity,
			Price:             line.Price,
			TotalAmount:       line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
			TaxAmount:         line.TotalTax,
			DiscountAmount:    line.TotalDiscount,
			FulfillmentStatus: enums.OrderItemUnfulfilled,
		})
	}

	currency := strings.ToUpper(strings.TrimSpace(payload.Currency))
	if currency == "" {
		currency = "USD"
	}

	return &models.Order{
		StoreID:           storeID,
		ShopifyOrderID:    &externalID,
		OrderNumber:       number,
		CustomerName:      name,
		CustomerEmail:     email,
		CustomerPhone:     phone,
		ShippingAddress:   addressFromPlatform(payload.ShippingAddress),
		OrderStatus:       enums.OrderStatusPending,
		FinancialStatus:   MapFinancialStatus(payload.FinancialStatus),
		FulfillmentStatus: MapFulfillmentStatus(payload.FulfillmentStatus),
		TotalAmount:       payload.TotalPrice,
		TaxAmount:         payload.TotalTax,
		ShippingAmount:    payload.ShippingAmount(),
		DiscountAmount:    payload.TotalDiscounts,
		Currency:          currency,
		Tags:              payload.TagList(),
		Notes:             payload.Note,
		Items:             items,
	}
}

func addressFromPlatform(addr *shopify.Address) *types.Address {
	if addr == nil {
		return nil
	}
	out := &types.Address{
		Name:       addr.Name,
		Line1:      addr.Address1,
		Line2:      optional(addr.Address2),
		City:       addr.City,
		State:      addr.Province,
		PostalCode: addr.Zip,
		Country:    addr.Country,
		Phone:      optional(addr.Phone),
	}
	if out.IsZero() {
		return nil
	}
	return out
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

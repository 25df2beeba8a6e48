package returns

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/shopify"
)

const maxSyncError = 1024

// pushRefund records the refund on the platform order and stores the
// outcome on the return. The completed return stays committed either way.
func (s *Service) pushRefund(ctx context.Context, ret *models.ReturnRequest, order *models.Order) error {
	pushErr := s.createPlatformRefund(ctx, ret, order)

	updates := map[string]any{}
	if pushErr != nil {
		msg := truncate(pushErr.Error())
		updates["platform_sync_status"] = enums.PlatformSyncFailed
		updates["platform_sync_error"] = msg
		ret.PlatformSyncStatus = enums.PlatformSyncFailed
		ret.PlatformSyncError = &msg
	} else {
		updates["platform_sync_status"] = enums.PlatformSyncSynced
		updates["platform_sync_error"] = nil
		ret.PlatformSyncStatus = enums.PlatformSyncSynced
		ret.PlatformSyncError = nil
	}
	if err := s.repo.Update(ctx, ret.ID, updates); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithEntity(ctx, "return", ret.ID), "record platform sync outcome", err)
	}

	if pushErr != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithEntity(ctx, "return", ret.ID), "platform refund push failed", pushErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeExternalSync, pushErr, "return completed locally but platform refund failed").
			WithDetails(map[string]any{"return_id": ret.ID, "order_id": order.ID})
	}
	s.logInfo(ctx, ret, "refund synced to platform")
	return nil
}

func (s *Service) createPlatformRefund(ctx context.Context, ret *models.ReturnRequest, order *models.Order) error {
	creds, err := s.stores.Credentials(ctx, order.StoreID)
	if err != nil {
		return err
	}
	req := shopify.RefundRequest{
		Note:            fmt.Sprintf("%s: %s", ret.ReturnNumber, ret.Reason),
		Currency:        order.Currency,
		RefundLineItems: refundLineItems(order, ret),
	}
	if ret.RefundAmount != nil && ret.RefundAmount.IsPositive() {
		req.Transactions = []shopify.RefundTransaction{{Kind: "refund", Amount: *ret.RefundAmount}}
	}
	_, err = s.platform.CreateRefund(ctx, creds, *order.ShopifyOrderID, req)
	return err
}

// RetryPlatformSync pushes completed refunds whose earlier push failed.
// It returns how many now succeed, and the combined errors of the rest.
func (s *Service) RetryPlatformSync(ctx context.Context, limit int) (int, error) {
	failed, err := s.repo.ListSyncFailures(ctx, limit)
	if err != nil {
		return 0, err
	}
	synced := 0
	var errs error
	for i := range failed {
		ret := &failed[i]
		order, err := s.orders.FindByID(ctx, ret.OrderID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if order.ShopifyOrderID == nil || *order.ShopifyOrderID == "" {
			continue
		}
		if err := s.pushRefund(ctx, ret, order); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		synced++
	}
	return synced, errs
}

// refundLineItems maps returned order items to platform line ids. The local
// ledger owns stock, so the platform is never asked to restock.
func refundLineItems(order *models.Order, ret *models.ReturnRequest) []shopify.RefundLineItem {
	lineIDs := make(map[uuid.UUID]int64, len(order.Items))
	for _, item := range order.Items {
		if item.ShopifyLineItemID == nil {
			continue
		}
		id, err := strconv.ParseInt(*item.ShopifyLineItemID, 10, 64)
		if err != nil {
			continue
		}
		lineIDs[item.ID] = id
	}
	var out []shopify.RefundLineItem
	for _, item := range ret.Items {
		if id, ok := lineIDs[item.OrderItemID]; ok {
			out = append(out, shopify.RefundLineItem{LineItemID: id, Quantity: item.Quantity, RestockType: "no_restock"})
		}
	}
	return out
}

func truncate(msg string) string {
	if len(msg) <= maxSyncError {
		return msg
	}
	return msg[:maxSyncError]
}

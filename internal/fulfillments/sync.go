package fulfillments

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/shopify"
)

const maxSyncError = 1024

// pushToPlatform creates the platform fulfillment and records the outcome
// on the row. It runs after the local commit and never rolls it back.
func (s *Service) pushToPlatform(ctx context.Context, f *models.Fulfillment, order *models.Order, notifyCustomer bool) error {
	pushErr := s.createPlatformFulfillment(ctx, f, order, notifyCustomer)

	updates := map[string]any{}
	if pushErr != nil {
		msg := truncate(pushErr.Error())
		updates["platform_sync_status"] = enums.PlatformSyncFailed
		updates["platform_sync_error"] = msg
		f.PlatformSyncStatus = enums.PlatformSyncFailed
		f.PlatformSyncError = &msg
	} else {
		updates["platform_sync_status"] = enums.PlatformSyncSynced
		updates["platform_sync_error"] = nil
		updates["shopify_fulfillment_id"] = f.ShopifyFulfillmentID
		f.PlatformSyncStatus = enums.PlatformSyncSynced
		f.PlatformSyncError = nil
	}
	if err := s.repo.Update(ctx, f.ID, updates); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithEntity(ctx, "fulfillment", f.ID), "record platform sync outcome", err)
	}

	if pushErr != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithEntity(ctx, "fulfillment", f.ID), "platform fulfillment push failed", pushErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeExternalSync, pushErr, "fulfillment shipped locally but platform sync failed").
			WithDetails(map[string]any{"fulfillment_id": f.ID, "order_id": order.ID})
	}
	s.logInfo(ctx, f, "fulfillment synced to platform")
	return nil
}

func (s *Service) createPlatformFulfillment(ctx context.Context, f *models.Fulfillment, order *models.Order, notifyCustomer bool) error {
	creds, err := s.stores.Credentials(ctx, order.StoreID)
	if err != nil {
		return err
	}
	req := shopify.FulfillmentRequest{
		NotifyCustomer: notifyCustomer,
		LineItems:      platformLineItems(order, f),
	}
	if f.TrackingNumber != nil {
		req.TrackingNumber = *f.TrackingNumber
	}
	if f.Carrier != nil {
		req.TrackingCompany = *f.Carrier
	}
	if f.TrackingURL != nil {
		req.TrackingURL = *f.TrackingURL
	}
	resp, err := s.platform.CreateFulfillment(ctx, creds, *order.ShopifyOrderID, req)
	if err != nil {
		return err
	}
	if resp != nil && resp.ID != 0 {
		id := strconv.FormatInt(resp.ID, 10)
		f.ShopifyFulfillmentID = &id
	}
	return nil
}

// RetryPlatformSync pushes shipped fulfillments whose earlier push failed.
// It returns how many now succeed, and the combined errors of the rest.
func (s *Service) RetryPlatformSync(ctx context.Context, limit int) (int, error) {
	failed, err := s.repo.ListSyncFailures(ctx, limit)
	if err != nil {
		return 0, err
	}
	synced := 0
	var errs error
	for i := range failed {
		f := &failed[i]
		order, err := s.orders.FindByID(ctx, f.OrderID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if order.ShopifyOrderID == nil || *order.ShopifyOrderID == "" {
			continue
		}
		if err := s.pushToPlatform(ctx, f, order, false); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		synced++
	}
	return synced, errs
}

// platformLineItems maps shipped order items to their platform line ids.
// Items that did not come from the platform are left out.
func platformLineItems(order *models.Order, f *models.Fulfillment) []shopify.IDQty {
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
	var out []shopify.IDQty
	for _, item := range f.Items {
		if id, ok := lineIDs[item.OrderItemID]; ok {
			out = append(out, shopify.IDQty{ID: id, Quantity: item.Quantity})
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

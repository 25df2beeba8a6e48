package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/ordergenie-backend/api/responses"
	shopifywebhook "github.com/angelmondragon/ordergenie-backend/internal/webhooks/shopify"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/shopify"
)

// maxWebhookBody caps a single delivery.
const maxWebhookBody = 5 << 20

type ShopifyWebhookService interface {
	HandleEvent(ctx context.Context, d shopifywebhook.Delivery) error
}

type shopifyWebhookGuard interface {
	CheckAndMark(ctx context.Context, deliveryID string) (bool, error)
	Delete(ctx context.Context, deliveryID string) error
}

// ShopifyWebhook ingests order and fulfillment deliveries. Once the signature
// checks out the platform always gets a 200; failed deliveries are stored
// and replayed by the cron worker.
func ShopifyWebhook(svc ShopifyWebhookService, secret string, guard shopifyWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !shopify.VerifyWebhook(payload, secret, r.Header.Get(shopify.HeaderHMAC)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		delivery := shopifywebhook.Delivery{
			Topic:      strings.TrimSpace(r.Header.Get(shopify.HeaderTopic)),
			ShopDomain: strings.TrimSpace(r.Header.Get(shopify.HeaderShopDomain)),
			WebhookID:  strings.TrimSpace(r.Header.Get(shopify.HeaderWebhookID)),
			Payload:    payload,
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"webhook_topic": delivery.Topic,
				"shop_domain":   delivery.ShopDomain,
				"webhook_id":    delivery.WebhookID,
			})
		}

		if delivery.WebhookID != "" {
			alreadyProcessed, err := guard.CheckAndMark(ctx, delivery.WebhookID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if alreadyProcessed {
				responses.WriteSuccess(w, nil)
				return
			}
		}

		if err := svc.HandleEvent(ctx, delivery); err != nil {
			if delivery.WebhookID != "" {
				_ = guard.Delete(ctx, delivery.WebhookID)
			}
			if logg != nil {
				logg.Error(ctx, "shopify webhook processing failed", err)
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("shopify webhook %s processed", delivery.Topic))
		}
		responses.WriteSuccess(w, nil)
	}
}

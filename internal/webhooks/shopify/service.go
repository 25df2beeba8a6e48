package shopifywebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/shopify"
)

// Topics handled by the service. Anything else is recorded and acknowledged.
const (
	TopicOrdersCreate       = shopify.TopicOrdersCreate
	TopicOrdersUpdated      = shopify.TopicOrdersUpdated
	TopicOrdersCancelled    = shopify.TopicOrdersCancelled
	TopicFulfillmentsCreate = shopify.TopicFulfillmentsCreate
	TopicFulfillmentsUpdate = shopify.TopicFulfillmentsUpdate
)

const maxErrorLength = 1024

type orderSyncer interface {
	SyncOrderFromShopify(ctx context.Context, storeID uuid.UUID, payload shopify.Order) (*models.Order, error)
	UpdateOrderFromShopify(ctx context.Context, orderID uuid.UUID, payload shopify.Order) (*models.Order, error)
	CancelOrderFromShopify(ctx context.Context, payload shopify.Order) (*models.Order, error)
}

type orderLookup interface {
	FindByShopifyID(ctx context.Context, externalID string) (*models.Order, error)
}

type storeLookup interface {
	GetByDomain(ctx context.Context, domain string) (*models.Store, error)
}

// Delivery is one verified webhook request.
type Delivery struct {
	Topic      string
	ShopDomain string
	WebhookID  string
	Payload    []byte
}

type ServiceParams struct {
	Repo   *Repository
	Orders orderSyncer
	Lookup orderLookup
	Stores storeLookup
	Logger *logger.Logger
}

// Service records platform deliveries and applies them to local orders.
type Service struct {
	repo   *Repository
	orders orderSyncer
	lookup orderLookup
	stores storeLookup
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook repo required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order syncer required")
	}
	if params.Lookup == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order lookup required")
	}
	if params.Stores == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store lookup required")
	}
	return &Service{
		repo:   params.Repo,
		orders: params.Orders,
		lookup: params.Lookup,
		stores: params.Stores,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

// HandleEvent records the delivery, dispatches it by topic and stores the
// outcome. A failed dispatch keeps the row unprocessed with its error and a
// bumped retry count, and the error is returned.
func (s *Service) HandleEvent(ctx context.Context, d Delivery) error {
	d.Topic = strings.TrimSpace(d.Topic)
	if d.Topic == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook topic required")
	}
	if !json.Valid(d.Payload) {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload is not valid json")
	}
	externalID := payloadID(d.Payload)
	if externalID == "" {
		externalID = d.WebhookID
	}
	if externalID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload id required")
	}

	evt, err := s.repo.Record(ctx, &models.WebhookEvent{
		Topic:      d.Topic,
		ShopDomain: strings.ToLower(strings.TrimSpace(d.ShopDomain)),
		ExternalID: externalID,
		Payload:    json.RawMessage(d.Payload),
	})
	if err != nil {
		return err
	}
	return s.process(ctx, evt)
}

// ReplayFailed dispatches recorded deliveries that failed fewer than
// maxRetries times. It returns how many now succeed.
func (s *Service) ReplayFailed(ctx context.Context, maxRetries, limit int) (int, error) {
	failed, err := s.repo.ListFailed(ctx, maxRetries, limit)
	if err != nil {
		return 0, err
	}
	replayed := 0
	var errs error
	for i := range failed {
		if err := s.process(ctx, &failed[i]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		replayed++
	}
	return replayed, errs
}

// Prune deletes processed deliveries older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteProcessedBefore(ctx, s.now().UTC().Add(-retention))
}

func (s *Service) process(ctx context.Context, evt *models.WebhookEvent) error {
	ctx = s.eventCtx(ctx, evt)
	if err := s.dispatch(ctx, evt); err != nil {
		msg := err.Error()
		if len(msg) > maxErrorLength {
			msg = msg[:maxErrorLength]
		}
		if markErr := s.repo.MarkFailed(ctx, evt.ID, msg); markErr != nil {
			err = multierr.Append(err, markErr)
		}
		if s.logg != nil {
			s.logg.Error(ctx, "webhook processing failed", err)
		}
		return err
	}
	if err := s.repo.MarkProcessed(ctx, evt.ID, s.now().UTC()); err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(ctx, "webhook processed")
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, evt *models.WebhookEvent) error {
	switch evt.Topic {
	case TopicOrdersCreate:
		payload, err := decodeOrder(evt.Payload)
		if err != nil {
			return err
		}
		store, err := s.stores.GetByDomain(ctx, evt.ShopDomain)
		if err != nil {
			return err
		}
		_, err = s.orders.SyncOrderFromShopify(ctx, store.ID, payload)
		return err
	case TopicOrdersUpdated:
		payload, err := decodeOrder(evt.Payload)
		if err != nil {
			return err
		}
		order, err := s.lookup.FindByShopifyID(ctx, payload.ExternalID())
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logInfo(ctx, "update for unknown order ignored")
			return nil
		}
		if err != nil {
			return err
		}
		_, err = s.orders.UpdateOrderFromShopify(ctx, order.ID, payload)
		return err
	case TopicOrdersCancelled:
		payload, err := decodeOrder(evt.Payload)
		if err != nil {
			return err
		}
		_, err = s.orders.CancelOrderFromShopify(ctx, payload)
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logInfo(ctx, "cancellation for unknown order ignored")
			return nil
		}
		return err
	case TopicFulfillmentsCreate, TopicFulfillmentsUpdate:
		s.logInfo(ctx, "platform fulfillment recorded")
		return nil
	default:
		s.logInfo(ctx, fmt.Sprintf("unhandled webhook topic %s", evt.Topic))
		return nil
	}
}

func decodeOrder(raw []byte) (shopify.Order, error) {
	var payload shopify.Order
	if err := json.Unmarshal(raw, &payload); err != nil {
		return shopify.Order{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode order payload")
	}
	if payload.ExternalID() == "" {
		return shopify.Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order payload id required")
	}
	return payload, nil
}

// payloadID returns the top-level "id" of a delivery, numeric or string.
func payloadID(raw []byte) string {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.ID) == 0 {
		return ""
	}
	id := strings.Trim(string(envelope.ID), `"`)
	if id == "null" {
		return ""
	}
	return id
}

func (s *Service) eventCtx(ctx context.Context, evt *models.WebhookEvent) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithEntity(ctx, "webhook_event", evt.ID)
	return s.logg.WithFields(ctx, map[string]any{
		"topic":       evt.Topic,
		"shop_domain": evt.ShopDomain,
		"external_id": evt.ExternalID,
	})
}

func (s *Service) logInfo(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

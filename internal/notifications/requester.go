package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/outbox"
	"github.com/angelmondragon/ordergenie-backend/pkg/outbox/payloads"
)

// Request is a message for the notification collaborator. AggregateType and
// AggregateID name the entity that triggered it.
type Request struct {
	Type          enums.NotificationType
	Channel       enums.NotificationChannel
	Recipient     string
	Subject       string
	Message       string
	Metadata      map[string]any
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *outbox.ActorRef
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Requester hands notification requests to the outbox. Delivery happens
// elsewhere and its outcome never reaches the caller.
type Requester struct {
	emitter outbox.Emitter
	tx      txRunner
	logg    *logger.Logger
}

// NewRequester wires the outbox emitter.
func NewRequester(emitter outbox.Emitter, tx txRunner, logg *logger.Logger) (*Requester, error) {
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Requester{emitter: emitter, tx: tx, logg: logg}, nil
}

// Request records req. With a tx the row commits alongside the caller's
// change, inside a savepoint so a failed write leaves the caller's
// transaction usable. Without one it is written on its own. Failures are
// logged and swallowed.
func (r *Requester) Request(ctx context.Context, tx *gorm.DB, req Request) {
	if r == nil {
		return
	}
	if err := validate(req); err != nil {
		r.logFailure(ctx, req, err)
		return
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: req.AggregateType,
		AggregateID:   req.AggregateID,
		Actor:         req.Actor,
		Data: payloads.NotificationRequestedEvent{
			Type:      req.Type,
			Channel:   req.Channel,
			Recipient: req.Recipient,
			Subject:   req.Subject,
			Message:   req.Message,
			Metadata:  req.Metadata,
		},
	}

	var err error
	if tx != nil {
		err = tx.Transaction(func(nested *gorm.DB) error {
			return r.emitter.Emit(ctx, nested, event)
		})
	} else {
		err = r.tx.WithTx(ctx, func(own *gorm.DB) error {
			return r.emitter.Emit(ctx, own, event)
		})
	}
	if err != nil {
		r.logFailure(ctx, req, err)
		return
	}
	if r.logg != nil {
		r.logg.Debug(r.fields(ctx, req), "notification requested")
	}
}

func validate(req Request) error {
	switch {
	case !req.Type.IsValid():
		return fmt.Errorf("unknown notification type %q", req.Type)
	case !req.Channel.IsValid():
		return fmt.Errorf("unknown notification channel %q", req.Channel)
	case strings.TrimSpace(req.Recipient) == "":
		return fmt.Errorf("notification recipient required")
	case req.AggregateID == uuid.Nil:
		return fmt.Errorf("notification aggregate id required")
	}
	return nil
}

func (r *Requester) fields(ctx context.Context, req Request) context.Context {
	return r.logg.WithFields(ctx, map[string]any{
		"notification_type": req.Type,
		"channel":           req.Channel,
		"aggregate_type":    req.AggregateType,
		"aggregate_id":      req.AggregateID,
	})
}

func (r *Requester) logFailure(ctx context.Context, req Request, err error) {
	if r.logg == nil {
		return
	}
	r.logg.Error(r.fields(ctx, req), "notification request dropped", err)
}

package shopifywebhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/ordergenie-backend/pkg/db"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
	"github.com/angelmondragon/ordergenie-backend/pkg/pagination"
)

// Repository persists webhook deliveries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// Record upserts the delivery on (topic, external_id). A repeat delivery
// replaces the payload and resets the processing outcome.
func (r *Repository) Record(ctx context.Context, evt *models.WebhookEvent) (*models.WebhookEvent, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "topic"}, {Name: "external_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"shop_domain":  evt.ShopDomain,
				"payload":      evt.Payload,
				"processed":    false,
				"processed_at": nil,
				"error":        nil,
				"updated_at":   time.Now().UTC(),
			}),
		}).
		Create(evt).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record webhook event")
	}

	var stored models.WebhookEvent
	err = r.db.WithContext(ctx).
		Where("topic = ? AND external_id = ?", evt.Topic, evt.ExternalID).
		First(&stored).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load webhook event")
	}
	return &stored, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	var evt models.WebhookEvent
	if err := r.db.WithContext(ctx).First(&evt, "id = ?", id).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "webhook event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load webhook event")
	}
	return &evt, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"processed": true, "processed_at": at, "error": nil}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark webhook processed")
	}
	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"error": message, "retry_count": gorm.Expr("retry_count + 1")}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark webhook failed")
	}
	return nil
}

// ListFailed returns unprocessed deliveries that have failed fewer than
// maxRetries times, oldest first.
func (r *Repository) ListFailed(ctx context.Context, maxRetries, limit int) ([]models.WebhookEvent, error) {
	var out []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = ? AND error IS NOT NULL AND retry_count < ?", false, maxRetries).
		Order("created_at ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list failed webhooks")
	}
	return out, nil
}

// DeleteProcessedBefore prunes processed deliveries older than cutoff.
func (r *Repository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("processed = ? AND processed_at < ?", true, cutoff).
		Delete(&models.WebhookEvent{})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "delete processed webhooks")
	}
	return res.RowsAffected, nil
}

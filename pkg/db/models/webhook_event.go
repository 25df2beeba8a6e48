package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEvent records every platform delivery and its processing outcome.
type WebhookEvent struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Topic       string          `gorm:"column:topic;not null;uniqueIndex:ux_webhook_events_topic_external"`
	ShopDomain  string          `gorm:"column:shop_domain;not null"`
	ExternalID  string          `gorm:"column:external_id;not null;uniqueIndex:ux_webhook_events_topic_external"`
	Payload     json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	Processed   bool            `gorm:"column:processed;not null"`
	ProcessedAt *time.Time      `gorm:"column:processed_at"`
	Error       *string         `gorm:"column:error"`
	RetryCount  int             `gorm:"column:retry_count;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *WebhookEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

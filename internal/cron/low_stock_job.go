package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/internal/notifications"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
)

type lowStockSource interface {
	LowStockItems(ctx context.Context, storeID *uuid.UUID) ([]models.InventoryItem, error)
}

type alertEmitter interface {
	Request(ctx context.Context, tx *gorm.DB, req notifications.Request)
}

type LowStockJobParams struct {
	Logger    *logger.Logger
	Advisor   lowStockSource
	Notifier  alertEmitter
	Channel   enums.NotificationChannel
	Recipient string
}

// NewLowStockJob alerts once per run for every ledger row at or below its
// reorder point.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Advisor == nil {
		return nil, fmt.Errorf("reorder advisor required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if !params.Channel.IsValid() {
		return nil, fmt.Errorf("invalid low stock channel %q", params.Channel)
	}
	if params.Recipient == "" {
		return nil, fmt.Errorf("low stock recipient required")
	}
	return &lowStockJob{
		logg:      params.Logger,
		advisor:   params.Advisor,
		notifier:  params.Notifier,
		channel:   params.Channel,
		recipient: params.Recipient,
	}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	advisor   lowStockSource
	notifier  alertEmitter
	channel   enums.NotificationChannel
	recipient string
}

func (j *lowStockJob) Name() string { return "low-stock-alerts" }

func (j *lowStockJob) Run(ctx context.Context) error {
	items, err := j.advisor.LowStockItems(ctx, nil)
	if err != nil {
		return fmt.Errorf("low stock scan: %w", err)
	}
	for _, item := range items {
		j.notifier.Request(ctx, nil, notifications.LowStock(item, j.channel, j.recipient))
	}
	j.logg.Info(j.logg.WithField(ctx, "low_stock_items", len(items)), "low stock scan complete")
	return nil
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
)

const (
	webhookRetentionDays = 14
	webhookMaxRetries    = 5
	webhookReplayBatch   = 100
)

type webhookStore interface {
	ReplayFailed(ctx context.Context, maxRetries, limit int) (int, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

type WebhookJobParams struct {
	Logger     *logger.Logger
	Webhooks   webhookStore
	MaxRetries int
	Retention  int
}

// NewWebhookReplayJob redelivers recorded webhooks whose processing failed.
func NewWebhookReplayJob(params WebhookJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = webhookMaxRetries
	}
	return &webhookReplayJob{logg: params.Logger, webhooks: params.Webhooks, maxRetries: maxRetries}, nil
}

// NewWebhookCleanupJob deletes processed webhooks past the retention window.
func NewWebhookCleanupJob(params WebhookJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	retention := params.Retention
	if retention <= 0 {
		retention = webhookRetentionDays
	}
	return &webhookCleanupJob{logg: params.Logger, webhooks: params.Webhooks, retention: retention}, nil
}

func (p WebhookJobParams) validate() error {
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if p.Webhooks == nil {
		return fmt.Errorf("webhook service required")
	}
	return nil
}

type webhookReplayJob struct {
	logg       *logger.Logger
	webhooks   webhookStore
	maxRetries int
}

func (j *webhookReplayJob) Name() string { return "webhook-replay" }

func (j *webhookReplayJob) Run(ctx context.Context) error {
	replayed, err := j.webhooks.ReplayFailed(ctx, j.maxRetries, webhookReplayBatch)
	j.logg.Info(j.logg.WithField(ctx, "replayed", replayed), "webhook replay complete")
	if err != nil {
		return fmt.Errorf("webhook replay: %w", err)
	}
	return nil
}

type webhookCleanupJob struct {
	logg      *logger.Logger
	webhooks  webhookStore
	retention int
}

func (j *webhookCleanupJob) Name() string { return "webhook-cleanup" }

func (j *webhookCleanupJob) Run(ctx context.Context) error {
	deleted, err := j.webhooks.Prune(ctx, time.Duration(j.retention)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("webhook cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "webhook cleanup complete")
	return nil
}

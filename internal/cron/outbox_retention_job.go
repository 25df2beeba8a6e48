package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
)

const (
	outboxRetentionDays = 7
	deadLetterWindow    = 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	Retention  int
	// DeadLetters is optional; when set the job also warns about rows the
	// publisher dead-lettered during the last day.
	DeadLetters deadLetterCounter
}

type deadLetterCounter interface {
	CountByReasonSince(ctx context.Context, since time.Time) (map[enums.OutboxDLQErrorReason]int64, error)
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob purges published outbox rows older than the
// retention window. Unpublished rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		dlq:       params.DeadLetters,
		retention: retention,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxRetentionRepo
	dlq       deadLetterCounter
	retention int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	j.reportDeadLetters(ctx)
	return nil
}

// reportDeadLetters never fails the job; the purge already committed.
func (j *outboxRetentionJob) reportDeadLetters(ctx context.Context) {
	if j.dlq == nil {
		return
	}
	since := j.now().UTC().Add(-deadLetterWindow)
	counts, err := j.dlq.CountByReasonSince(ctx, since)
	if err != nil {
		j.logg.Error(ctx, "outbox dead letter count failed", err)
		return
	}
	var total int64
	fields := map[string]any{"since": since}
	for reason, n := range counts {
		total += n
		fields["dlq_"+string(reason)] = n
	}
	if total == 0 {
		return
	}
	fields["dlq_total"] = total
	j.logg.Warn(j.logg.WithFields(ctx, fields), "outbox dead letters recorded")
}

package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
)

const defaultSyncBatch = 50

// PlatformSyncer retries pushes to the commerce platform that failed after
// the local change was committed.
type PlatformSyncer interface {
	RetryPlatformSync(ctx context.Context, limit int) (int, error)
}

type PlatformSyncJobParams struct {
	Logger  *logger.Logger
	Syncers map[string]PlatformSyncer
	Batch   int
}

func NewPlatformSyncJob(params PlatformSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(params.Syncers) == 0 {
		return nil, fmt.Errorf("at least one platform syncer required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultSyncBatch
	}
	return &platformSyncJob{logg: params.Logger, syncers: params.Syncers, batch: batch}, nil
}

type platformSyncJob struct {
	logg    *logger.Logger
	syncers map[string]PlatformSyncer
	batch   int
}

func (j *platformSyncJob) Name() string { return "platform-sync-retry" }

// Run gives every syncer its turn even when an earlier one fails.
func (j *platformSyncJob) Run(ctx context.Context) error {
	var errs error
	for kind, syncer := range j.syncers {
		synced, err := syncer.RetryPlatformSync(ctx, j.batch)
		logCtx := j.logg.WithFields(ctx, map[string]any{"entity": kind, "synced": synced})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s sync: %w", kind, err))
			j.logg.Warn(logCtx, "platform sync retry incomplete")
			continue
		}
		j.logg.Info(logCtx, "platform sync retry complete")
	}
	return errs
}

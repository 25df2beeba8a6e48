package cron

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestOutboxRetentionJobDeletesPublishedRows(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{}
	job := newOutboxRetentionJob(t, repo)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-outboxRetentionDays * 24 * time.Hour)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{err: errors.New("boom")}
	job := newOutboxRetentionJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutboxRetentionJobRequiresCollaborators(t *testing.T) {
	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger(), DB: fakeTxRunner{}}); err == nil {
		t.Fatal("expected missing repository error")
	}
}

func TestOutboxRetentionJobWarnsAboutDeadLetters(t *testing.T) {
	now := time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	counter := &fakeDeadLetterCounter{counts: map[enums.OutboxDLQErrorReason]int64{
		enums.OutboxDLQReasonMaxAttempts: 2,
	}}
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test", Format: logger.FormatJSON, Output: &buf}),
		DB:          fakeTxRunner{},
		Repository:  &fakeOutboxRetentionRepo{},
		DeadLetters: counter,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !counter.since.Equal(now.Add(-deadLetterWindow)) {
		t.Fatalf("unexpected window start %s", counter.since)
	}
	out := buf.String()
	if !strings.Contains(out, "outbox dead letters recorded") || !strings.Contains(out, `"dlq_max_attempts":2`) {
		t.Fatalf("expected dead letter warning, got %s", out)
	}
}

func TestOutboxRetentionJobIgnoresDeadLetterCountFailure(t *testing.T) {
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      testLogger(),
		DB:          fakeTxRunner{},
		Repository:  &fakeOutboxRetentionRepo{},
		DeadLetters: &fakeDeadLetterCounter{err: errors.New("db gone")},
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err != nil {
		t.Fatalf("count failures must not fail the purge: %v", err)
	}
}

func newOutboxRetentionJob(t *testing.T, repo *fakeOutboxRetentionRepo) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		DB:         fakeTxRunner{},
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

type fakeOutboxRetentionRepo struct {
	lastCutoff time.Time
	called     int
	err        error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(_ *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeDeadLetterCounter struct {
	counts map[enums.OutboxDLQErrorReason]int64
	err    error
	since  time.Time
}

func (f *fakeDeadLetterCounter) CountByReasonSince(_ context.Context, since time.Time) (map[enums.OutboxDLQErrorReason]int64, error) {
	f.since = since
	return f.counts, f.err
}

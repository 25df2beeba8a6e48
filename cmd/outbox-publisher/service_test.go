package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/config"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/outbox"
	"github.com/angelmondragon/ordergenie-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ordergenie-backend/pkg/outbox/registry"
)

// fixture wires a Service to in-memory collaborators.
type fixture struct {
	repo     *fakeRepo
	pub      *fakePublisher
	resolver *fakeRegistry
	dlq      *fakeDLQRepo
	topics   []string
	svc      *Service
}

func newFixture(t *testing.T, maxAttempts int, events ...models.OutboxEvent) *fixture {
	t.Helper()
	f := &fixture{
		repo:     &fakeRepo{events: events},
		pub:      &fakePublisher{},
		resolver: &fakeRegistry{topic: "orders-topic"},
		dlq:      &fakeDLQRepo{},
	}
	svc, err := NewService(ServiceParams{
		Config: &config.Config{Outbox: config.OutboxConfig{
			BatchSize:      len(events) + 1,
			PollIntervalMS: 100,
			MaxAttempts:    maxAttempts,
		}},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Format: logger.FormatJSON, Output: io.Discard}),
		DB:         fakeDB{},
		PubSub:     fakePubSubClient{},
		Repository: f.repo,
		Registry:   f.resolver,
		PublisherFactory: func(topic string) publisher {
			f.topics = append(f.topics, topic)
			if f.pub == nil {
				return nil
			}
			return f.pub
		},
		DLQRepository: f.dlq,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) run(t *testing.T) bool {
	t.Helper()
	processed, err := f.svc.processBatch(context.Background())
	require.NoError(t, err)
	return processed
}

func orderEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func TestProcessBatchKeepsGoingAfterTransientFailure(t *testing.T) {
	first, second := orderEvent(t, 0), orderEvent(t, 0)
	f := newFixture(t, 5, first, second)
	f.pub.errs = []error{errors.New("unavailable"), nil}

	require.True(t, f.run(t))
	require.Equal(t, []uuid.UUID{first.ID}, f.repo.failed)
	require.Equal(t, []uuid.UUID{second.ID}, f.repo.published)
	require.Empty(t, f.dlq.entries)
}

func TestProcessBatchTagsMessagesWithActorStore(t *testing.T) {
	storeID := uuid.New()
	event := orderEvent(t, 0)
	event.EventType = enums.EventNotificationRequested
	f := newFixture(t, 5, event)
	f.resolver.topic = "notification-topic"
	f.resolver.actor = &outbox.ActorRef{UserID: uuid.New(), StoreID: &storeID}
	f.resolver.payload = &payloads.NotificationRequestedEvent{}

	f.run(t)

	require.Equal(t, []string{"notification-topic"}, f.topics)
	require.Len(t, f.pub.messages, 1)
	attrs := f.pub.messages[0].Attributes
	require.Equal(t, storeID.String(), attrs["store_id"])
	require.Equal(t, string(enums.EventNotificationRequested), attrs["event_type"])
	require.Equal(t, []uuid.UUID{event.ID}, f.repo.published)
}

func TestProcessBatchDeadLetters(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		setup    func(*fixture)
		reason   enums.OutboxDLQErrorReason
	}{
		{
			name:   "undecodable row",
			setup:  func(f *fixture) { f.resolver.err = registry.NewNonRetryableError(errors.New("invalid payload")) },
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		{
			name:   "no publisher for topic",
			setup:  func(f *fixture) { f.pub = nil },
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		{
			name:     "last attempt fails",
			attempts: 1,
			setup:    func(f *fixture) { f.pub.errs = []error{errors.New("unavailable")} },
			reason:   enums.OutboxDLQReasonMaxAttempts,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := orderEvent(t, tt.attempts)
			f := newFixture(t, 2, event)
			tt.setup(f)

			require.True(t, f.run(t))
			require.Len(t, f.dlq.entries, 1)
			entry := f.dlq.entries[0]
			require.Equal(t, event.ID, entry.EventID)
			require.Equal(t, tt.reason, entry.ErrorReason)
			require.JSONEq(t, string(event.Payload), string(entry.Payload))
			require.NotNil(t, entry.ErrorMessage)
			require.Equal(t, []uuid.UUID{event.ID}, f.repo.terminal)
			require.Empty(t, f.repo.published)
		})
	}
}

func TestProcessBatchEmptyReportsIdle(t *testing.T) {
	f := newFixture(t, 5)
	require.False(t, f.run(t))
}

func TestNextBackoffDoublesUntilCap(t *testing.T) {
	base := 500 * time.Millisecond
	require.Equal(t, time.Second, nextBackoff(0, base, maxBackoff))
	require.Equal(t, 4*time.Second, nextBackoff(2*time.Second, base, maxBackoff))
	require.Equal(t, maxBackoff, nextBackoff(8*time.Second, base, maxBackoff))
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

// fakePublisher fails the nth publish with errs[n]; beyond errs it succeeds.
type fakePublisher struct {
	errs     []error
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	var err error
	if n := len(f.messages); n < len(f.errs) {
		err = f.errs[n]
	}
	f.messages = append(f.messages, msg)
	return fakePublishResult{err: err}
}

type fakePublishResult struct{ err error }

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}

type fakeRegistry struct {
	topic   string
	actor   *outbox.ActorRef
	payload any
	err     error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	payload := f.payload
	if payload == nil {
		payload = &payloads.OrderCreatedEvent{}
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: f.topic, AggregateType: event.AggregateType},
		Envelope:   outbox.PayloadEnvelope{EventID: event.ID.String(), OccurredAt: time.Now(), Actor: f.actor},
		Payload:    payload,
	}, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

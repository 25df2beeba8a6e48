package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordergenie-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordergenie-backend/pkg/db/models"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
)

type samplePayload struct {
	OrderID string `json:"orderId"`
}

func TestEmitStoresEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	orderID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "manager"}

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor,
			Data:          samplePayload{OrderID: orderID.String()},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, orderID, rows[0].AggregateID)
	require.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	require.Equal(t, actor.UserID, envelope.Actor.UserID)

	var data samplePayload
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, orderID.String(), data.OrderID)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          samplePayload{},
		}); err != nil {
			return err
		}
		return errors.New("business failure")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitRequiresTransactionAndKnownType(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCreated}))
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: "mystery"}))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	seed := func(attempts int) models.OutboxEvent {
		row := models.OutboxEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			AttemptCount:  attempts,
		}
		require.NoError(t, conn.Create(&row).Error)
		return row
	}
	first := seed(0)
	second := seed(0)
	exhausted := seed(5)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotEqual(t, exhausted.ID, row.ID)
	}

	require.NoError(t, repo.MarkPublishedTx(conn, first.ID))
	require.NoError(t, repo.MarkFailedTx(conn, second.ID, errors.New("topic missing")))

	var failed models.OutboxEvent
	require.NoError(t, conn.First(&failed, "id = ?", second.ID).Error)
	require.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	require.Equal(t, "topic missing", *failed.LastError)

	require.NoError(t, repo.MarkTerminalTx(conn, second.ID, errors.New("gave up"), 5))
	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()
	for _, publishedAt := range []*time.Time{&old, &recent, nil} {
		row := models.OutboxEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			PublishedAt:   publishedAt,
		}
		require.NoError(t, conn.Create(&row).Error)
	}

	deleted, err := repo.DeletePublishedBefore(nil, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	require.EqualValues(t, 2, remaining)
}

func TestDLQRepositoryTruncatesMessage(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)

	long := make([]byte, maxDLQErrorLen+100)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)
	eventID := uuid.New()
	require.NoError(t, repo.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
	}))

	entry, err := repo.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Len(t, *entry.ErrorMessage, maxDLQErrorLen)

	missing, err := repo.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	counts, err := repo.CountByReasonSince(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, counts[enums.OutboxDLQReasonNonRetryable])
	require.Zero(t, counts[enums.OutboxDLQReasonMaxAttempts])

	later, err := repo.CountByReasonSince(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, later)
}

func TestDLQRepositoryRejectsUnknownReason(t *testing.T) {
	conn := dbtest.Open(t)
	err := NewDLQRepository(conn).InsertTx(conn, models.OutboxDLQ{
		EventID:     uuid.New(),
		ErrorReason: "gave_up",
		Payload:     json.RawMessage(`{}`),
	})
	require.Error(t, err)
}

package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is the newest envelope layout this build writes.
const EnvelopeVersion = 1

// ActorRef identifies the caller behind a change.
type ActorRef struct {
	UserID  uuid.UUID  `json:"userId"`
	StoreID *uuid.UUID `json:"storeId,omitempty"`
	Role    string     `json:"role,omitempty"`
}

// PayloadEnvelope wraps every outbox payload. Consumers key on EventID for
// dedupe since the publisher delivers at least once.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Actor returns nil for changes with no authenticated user (webhooks, cron).
func Actor(userID *uuid.UUID, role string) *ActorRef {
	if userID == nil || *userID == uuid.Nil {
		return nil
	}
	return &ActorRef{UserID: *userID, Role: role}
}

func newEnvelope(data any, actor *ActorRef, occurredAt time.Time, version int) (PayloadEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode payload: %w", err)
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	if version <= 0 {
		version = EnvelopeVersion
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Actor:      actor,
		Data:       raw,
	}, nil
}

// DecodeEnvelope parses a stored payload and rejects envelopes from a newer
// writer or with no data.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version > EnvelopeVersion {
		return env, fmt.Errorf("envelope version %d is newer than %d", env.Version, EnvelopeVersion)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, fmt.Errorf("envelope %s has no data", env.EventID)
	}
	return env, nil
}

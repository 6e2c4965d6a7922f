package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

// SchemaVersion is stamped on every envelope written by Emit. Subscribers
// reject versions newer than the one they were built against.
const SchemaVersion = 1

var ErrEmptyEnvelope = errors.New("envelope has no data")

// ActorRef records who triggered an order or stock change: the customer at
// checkout, staff on a transition, the rider on delivery.
type ActorRef struct {
	UserID uuid.UUID  `json:"userId"`
	Role   enums.Role `json:"role,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload_json holds and what the relay
// forwards verbatim as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func sealEnvelope(event DomainEvent) (PayloadEnvelope, []byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, nil, fmt.Errorf("encode %s payload: %w", event.EventType, err)
	}
	envelope := PayloadEnvelope{
		Version:    SchemaVersion,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return PayloadEnvelope{}, nil, fmt.Errorf("encode envelope: %w", err)
	}
	return envelope, raw, nil
}

// DecodeEnvelope parses a stored row payload and checks it carries data of a
// version this build understands.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > SchemaVersion {
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", envelope.Version)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, ErrEmptyEnvelope
	}
	return envelope, nil
}

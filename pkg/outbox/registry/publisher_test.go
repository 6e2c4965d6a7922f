package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: mustEnvelope(t, payloads.OrderCreatedEvent{
			OrderID:     orderID,
			OrderNumber: "DC20260101ABCDEF12",
			TotalAmount: decimal.RequireFromString("328.00"),
		}),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "notify-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID || !payload.TotalAmount.Equal(decimal.NewFromInt(328)) {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata missing: %+v", resolved.Envelope)
	}
}

func TestEventRegistryResolveRejects(t *testing.T) {
	reg := newTestEventRegistry(t)
	valid := mustEnvelope(t, payloads.InventoryRestockedEvent{VariantID: uuid.New(), Quantity: 5})

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("order.exploded"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       valid,
		},
		"aggregate mismatch": {
			EventType:     enums.EventInventoryRestocked,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       valid,
		},
		"missing aggregate id": {
			EventType:     enums.EventInventoryRestocked,
			AggregateType: enums.AggregateProductVariant,
			Payload:       valid,
		},
		"bad envelope": {
			EventType:     enums.EventInventoryRestocked,
			AggregateType: enums.AggregateProductVariant,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{`),
		},
		"null data": {
			EventType:     enums.EventInventoryRestocked,
			AggregateType: enums.AggregateProductVariant,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, nil),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %v", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected error for missing topic")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{NotificationsTopic: "notify-topic"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return env
}

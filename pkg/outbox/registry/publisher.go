package registry

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError tells the publisher to dead-letter the row immediately.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry routes every order and inventory event to the notifications topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.NotificationsTopic == "" {
		return nil, fmt.Errorf("notifications topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventOrderCreated,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() any { return &payloads.OrderCreatedEvent{} },
		},
		{
			EventType:      enums.EventOrderStatusChanged,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() any { return &payloads.OrderStatusChangedEvent{} },
		},
		{
			EventType:      enums.EventInventoryRestocked,
			AggregateType:  enums.AggregateProductVariant,
			PayloadFactory: func() any { return &payloads.InventoryRestockedEvent{} },
		},
	} {
		desc.Topic = cfg.NotificationsTopic
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

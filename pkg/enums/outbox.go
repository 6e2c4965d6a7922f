package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder          OutboxAggregateType = "order"
	AggregateProductVariant OutboxAggregateType = "product_variant"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateProductVariant,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order.created"
	EventOrderStatusChanged OutboxEventType = "order.status_changed"
	EventInventoryRestocked OutboxEventType = "inventory.restocked"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventInventoryRestocked,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

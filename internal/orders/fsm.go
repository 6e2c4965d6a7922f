package orders

import "github.com/angelmondragon/dailycart-backend/pkg/enums"

// Pair is one directed edge of the order state machine.
type Pair struct {
	From enums.OrderStatus
	To   enums.OrderStatus
}

// StateMachine is the fixed order lifecycle.
type StateMachine struct {
	edges map[enums.OrderStatus][]enums.OrderStatus
}

var lifecycle = StateMachine{
	edges: map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusPending:        {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
		enums.OrderStatusConfirmed:      {enums.OrderStatusPacked, enums.OrderStatusCancelled},
		enums.OrderStatusPacked:         {enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled},
		enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
		enums.OrderStatusDelivered:      {enums.OrderStatusReturned},
	},
}

// Lifecycle returns the order state machine.
func Lifecycle() StateMachine {
	return lifecycle
}

// CanTransition reports whether from may move to to. Same-state moves are not edges.
func (m StateMachine) CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range m.edges[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Targets lists the statuses reachable from from in one step.
func (m StateMachine) Targets(from enums.OrderStatus) []enums.OrderStatus {
	out := make([]enums.OrderStatus, len(m.edges[from]))
	copy(out, m.edges[from])
	return out
}

// IsTerminal reports whether no transition leaves status.
func (m StateMachine) IsTerminal(status enums.OrderStatus) bool {
	return len(m.edges[status]) == 0
}

// All enumerates every allowed edge in pipeline order.
func (m StateMachine) All() []Pair {
	var pairs []Pair
	for _, from := range enums.OrderStatuses() {
		for _, to := range m.edges[from] {
			pairs = append(pairs, Pair{From: from, To: to})
		}
	}
	return pairs
}

var defaultNotes = map[enums.OrderStatus]string{
	enums.OrderStatusPending:        "Order placed successfully",
	enums.OrderStatusConfirmed:      "Order confirmed by store",
	enums.OrderStatusPacked:         "Order packed and ready for pickup",
	enums.OrderStatusOutForDelivery: "Order is out for delivery",
	enums.OrderStatusDelivered:      "Order delivered",
	enums.OrderStatusCancelled:      "Order cancelled",
	enums.OrderStatusReturned:       "Order returned",
}

// DefaultNote is the tracking message used when the caller gives none.
func DefaultNote(status enums.OrderStatus) string {
	return defaultNotes[status]
}

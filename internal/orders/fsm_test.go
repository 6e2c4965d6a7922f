package orders

import (
	"testing"

	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

func TestLifecycleAllPairs(t *testing.T) {
	allowed := map[Pair]bool{
		{enums.OrderStatusPending, enums.OrderStatusConfirmed}:        true,
		{enums.OrderStatusPending, enums.OrderStatusCancelled}:        true,
		{enums.OrderStatusConfirmed, enums.OrderStatusPacked}:         true,
		{enums.OrderStatusConfirmed, enums.OrderStatusCancelled}:      true,
		{enums.OrderStatusPacked, enums.OrderStatusOutForDelivery}:    true,
		{enums.OrderStatusPacked, enums.OrderStatusCancelled}:         true,
		{enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered}: true,
		{enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled}: true,
		{enums.OrderStatusDelivered, enums.OrderStatusReturned}:       true,
	}

	fsm := Lifecycle()
	for _, from := range enums.OrderStatuses() {
		for _, to := range enums.OrderStatuses() {
			want := allowed[Pair{From: from, To: to}]
			if got := fsm.CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}

	if got := len(fsm.All()); got != len(allowed) {
		t.Fatalf("expected %d edges, got %d", len(allowed), got)
	}
	for _, pair := range fsm.All() {
		if !allowed[pair] {
			t.Fatalf("unexpected edge %v", pair)
		}
	}
}

func TestLifecycleTerminalStates(t *testing.T) {
	fsm := Lifecycle()
	for _, status := range []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusReturned} {
		if !fsm.IsTerminal(status) {
			t.Fatalf("expected %s to be terminal", status)
		}
		if len(fsm.Targets(status)) != 0 {
			t.Fatalf("expected no targets from %s", status)
		}
	}
	if fsm.IsTerminal(enums.OrderStatusDelivered) {
		t.Fatal("delivered can still be returned")
	}
}

func TestTargetsReturnsCopy(t *testing.T) {
	fsm := Lifecycle()
	targets := fsm.Targets(enums.OrderStatusPending)
	targets[0] = enums.OrderStatusReturned
	if fsm.CanTransition(enums.OrderStatusPending, enums.OrderStatusReturned) {
		t.Fatal("mutating Targets result leaked into the state machine")
	}
}

func TestDefaultNoteCoversEveryStatus(t *testing.T) {
	for _, status := range enums.OrderStatuses() {
		if DefaultNote(status) == "" {
			t.Fatalf("missing default note for %s", status)
		}
	}
	if DefaultNote(enums.OrderStatusPending) != "Order placed successfully" {
		t.Fatalf("unexpected pending note %q", DefaultNote(enums.OrderStatusPending))
	}
}

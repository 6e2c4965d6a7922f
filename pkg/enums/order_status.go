package enums

import "fmt"

// OrderStatus tracks where an order sits in the fulfillment pipeline.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPacked         OrderStatus = "packed"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusReturned       OrderStatus = "returned"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPacked,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
}

// OrderStatuses returns every known status in pipeline order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(validOrderStatuses))
	copy(out, validOrderStatuses)
	return out
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// RestocksInventory reports whether entering this status puts the order's units back on the shelf.
func (s OrderStatus) RestocksInventory() bool {
	return s == OrderStatusCancelled || s == OrderStatusReturned
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

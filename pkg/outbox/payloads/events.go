package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

// OrderCreatedEvent is published once per successful checkout.
type OrderCreatedEvent struct {
	OrderID             uuid.UUID           `json:"order_id"`
	OrderNumber         string              `json:"order_number"`
	UserID              uuid.UUID           `json:"user_id"`
	TotalAmount         decimal.Decimal     `json:"total_amount"`
	TotalItems          int                 `json:"total_items"`
	PaymentMethod       enums.PaymentMethod `json:"payment_method"`
	ContactPhone        string              `json:"contact_phone"`
	EstimatedDeliveryAt time.Time           `json:"estimated_delivery_at"`
	// DeliveryOTP is only present for cash-on-delivery orders.
	DeliveryOTP string `json:"delivery_otp,omitempty"`
}

// OrderStatusChangedEvent is published for every applied transition.
type OrderStatusChangedEvent struct {
	OrderID           uuid.UUID         `json:"order_id"`
	OrderNumber       string            `json:"order_number"`
	UserID            uuid.UUID         `json:"user_id"`
	From              enums.OrderStatus `json:"from"`
	To                enums.OrderStatus `json:"to"`
	Note              string            `json:"note"`
	DeliveryPartnerID *uuid.UUID        `json:"delivery_partner_id,omitempty"`
	RefundAmount      decimal.Decimal   `json:"refund_amount"`
	LoyaltyPoints     int64             `json:"loyalty_points,omitempty"`
}

// InventoryRestockedEvent lets back-in-stock notifications fan out.
type InventoryRestockedEvent struct {
	VariantID uuid.UUID `json:"variant_id"`
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	Stock     int       `json:"stock"`
}

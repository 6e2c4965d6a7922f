package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

// LineInput is one priced cart line turned into an order item.
type LineInput struct {
	ProductID    uuid.UUID
	VariantID    uuid.UUID
	ProductName  string
	Category     string
	VariantLabel string
	Unit         string
	Quantity     int
	MRP          decimal.Decimal
	SellingPrice decimal.Decimal
}

// CreateInput carries everything checkout has already priced and reserved.
type CreateInput struct {
	UserID           uuid.UUID
	Lines            []LineInput
	TotalItems       int
	Subtotal         decimal.Decimal
	ItemDiscount     decimal.Decimal
	CouponCode       *string
	CouponDiscount   decimal.Decimal
	DeliveryCharge   decimal.Decimal
	TotalAmount      decimal.Decimal
	PaymentMethod    enums.PaymentMethod
	PaymentReference *string
	DeliveryAddress  string
	ContactPhone     string
	Actor            auth.Actor
}

// Created is the result of CreateTx. DeliveryOTP is only set for cash orders
// and is never persisted in plain text.
type Created struct {
	Order       *models.Order
	DeliveryOTP string
}

type ItemView struct {
	ProductID    uuid.UUID       `json:"product_id"`
	VariantID    uuid.UUID       `json:"variant_id"`
	ProductName  string          `json:"product_name"`
	VariantLabel string          `json:"variant_label"`
	Unit         string          `json:"unit"`
	Quantity     int             `json:"quantity"`
	MRP          decimal.Decimal `json:"mrp"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type TrackingView struct {
	Status    enums.OrderStatus `json:"status"`
	Note      string            `json:"note"`
	UpdatedBy string            `json:"updated_by"`
	CreatedAt time.Time         `json:"created_at"`
}

// OrderView is the full order detail returned by the API.
type OrderView struct {
	ID                  uuid.UUID           `json:"id"`
	OrderNumber         string              `json:"order_number"`
	UserID              uuid.UUID           `json:"user_id"`
	Status              enums.OrderStatus   `json:"status"`
	Subtotal            decimal.Decimal     `json:"subtotal"`
	ItemDiscount        decimal.Decimal     `json:"item_discount"`
	CouponCode          *string             `json:"coupon_code,omitempty"`
	CouponDiscount      decimal.Decimal     `json:"coupon_discount"`
	DeliveryCharge      decimal.Decimal     `json:"delivery_charge"`
	TotalAmount         decimal.Decimal     `json:"total_amount"`
	TotalItems          int                 `json:"total_items"`
	LoyaltyPointsEarned int64               `json:"loyalty_points_earned"`
	PaymentMethod       enums.PaymentMethod `json:"payment_method"`
	PaymentStatus       enums.PaymentStatus `json:"payment_status"`
	DeliveryAddress     string              `json:"delivery_address"`
	ContactPhone        string              `json:"contact_phone"`
	DeliveryPartnerID   *uuid.UUID          `json:"delivery_partner_id,omitempty"`
	EstimatedDeliveryAt time.Time           `json:"estimated_delivery_at"`
	ActualDeliveryAt    *time.Time          `json:"actual_delivery_at,omitempty"`
	CancelledFromStatus *enums.OrderStatus  `json:"cancelled_from_status,omitempty"`
	RefundAmount        decimal.Decimal     `json:"refund_amount"`
	Items               []ItemView          `json:"items"`
	Tracking            []TrackingView      `json:"tracking"`
	CreatedAt           time.Time           `json:"created_at"`
}

// OrderSummary is the list-row shape for order history and staff queues.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	TotalItems    int                 `json:"total_items"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time           `json:"created_at"`
}

// RefundView answers "how much do I get back".
type RefundView struct {
	OrderID       uuid.UUID           `json:"order_id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	RefundAmount  decimal.Decimal     `json:"refund_amount"`
}

// NewOrderView maps the stored order onto its API shape.
func NewOrderView(order *models.Order) *OrderView {
	view := &OrderView{
		ID:                  order.ID,
		OrderNumber:         order.OrderNumber,
		UserID:              order.UserID,
		Status:              order.Status,
		Subtotal:            order.Subtotal,
		ItemDiscount:        order.ItemDiscount,
		CouponCode:          order.CouponCode,
		CouponDiscount:      order.CouponDiscount,
		DeliveryCharge:      order.DeliveryCharge,
		TotalAmount:         order.TotalAmount,
		TotalItems:          order.TotalItems,
		LoyaltyPointsEarned: order.LoyaltyPointsEarned,
		PaymentMethod:       order.PaymentMethod,
		PaymentStatus:       order.PaymentStatus,
		DeliveryAddress:     order.DeliveryAddress,
		ContactPhone:        order.ContactPhone,
		DeliveryPartnerID:   order.DeliveryPartnerID,
		EstimatedDeliveryAt: order.EstimatedDeliveryAt,
		ActualDeliveryAt:    order.ActualDeliveryAt,
		CancelledFromStatus: order.CancelledFromStatus,
		RefundAmount:        order.RefundAmount,
		Items:               make([]ItemView, 0, len(order.Items)),
		Tracking:            make([]TrackingView, 0, len(order.Tracking)),
		CreatedAt:           order.CreatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, ItemView{
			ProductID:    item.ProductID,
			VariantID:    item.VariantID,
			ProductName:  item.ProductName,
			VariantLabel: item.VariantLabel,
			Unit:         item.Unit,
			Quantity:     item.Quantity,
			MRP:          item.MRP,
			SellingPrice: item.SellingPrice,
			LineTotal:    item.LineTotal,
		})
	}
	for _, entry := range order.Tracking {
		view.Tracking = append(view.Tracking, TrackingView{
			Status:    entry.Status,
			Note:      entry.Note,
			UpdatedBy: entry.UpdatedBy,
			CreatedAt: entry.CreatedAt,
		})
	}
	return view
}

func toSummary(order models.Order) OrderSummary {
	return OrderSummary{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		TotalAmount:   order.TotalAmount,
		TotalItems:    order.TotalItems,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		CreatedAt:     order.CreatedAt,
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

// Order is created once at checkout; afterwards only status, payment and delivery fields move.
type Order struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber         string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID              uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Status              enums.OrderStatus   `gorm:"column:status;not null"`
	Subtotal            decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ItemDiscount        decimal.Decimal     `gorm:"column:item_discount;type:numeric(12,2);not null"`
	CouponCode          *string             `gorm:"column:coupon_code"`
	CouponDiscount      decimal.Decimal     `gorm:"column:coupon_discount;type:numeric(12,2);not null"`
	DeliveryCharge      decimal.Decimal     `gorm:"column:delivery_charge;type:numeric(12,2);not null"`
	TotalAmount         decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	TotalItems          int                 `gorm:"column:total_items;not null"`
	LoyaltyPointsEarned int64               `gorm:"column:loyalty_points_earned;not null;default:0"`
	PaymentMethod       enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus       enums.PaymentStatus `gorm:"column:payment_status;not null"`
	PaymentReference    *string             `gorm:"column:payment_reference"`
	DeliveryAddress     string              `gorm:"column:delivery_address;not null"`
	ContactPhone        string              `gorm:"column:contact_phone;not null"`
	DeliveryPartnerID   *uuid.UUID          `gorm:"column:delivery_partner_id;type:uuid"`
	DeliveryOTPHash     *string             `gorm:"column:delivery_otp_hash"`
	EstimatedDeliveryAt time.Time           `gorm:"column:estimated_delivery_at;not null"`
	ActualDeliveryAt    *time.Time          `gorm:"column:actual_delivery_at"`
	CancelledFromStatus *enums.OrderStatus  `gorm:"column:cancelled_from_status"`
	RefundAmount        decimal.Decimal     `gorm:"column:refund_amount;type:numeric(12,2);not null;default:0"`
	Items               []OrderItem         `gorm:"foreignKey:OrderID"`
	Tracking            []OrderTracking     `gorm:"foreignKey:OrderID"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

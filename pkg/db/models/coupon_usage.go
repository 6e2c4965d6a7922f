package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponUsage is the append-only redemption fact.
type CouponUsage struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID       uuid.UUID       `gorm:"column:coupon_id;type:uuid;not null"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	UsedAt         time.Time       `gorm:"column:used_at;not null"`
}

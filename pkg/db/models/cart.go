package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the single shopping cart a customer owns. Totals are derived, never stored.
type Cart struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	CouponCode *string    `gorm:"column:coupon_code"`
	Items      []CartItem `gorm:"foreignKey:CartID"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

// Coupon is a promotional code. UsedCount is the aggregate counter; per-user counts come from CouponUsage.
type Coupon struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                 string             `gorm:"column:code;not null;uniqueIndex"`
	Description          string             `gorm:"column:description;not null;default:''"`
	DiscountType         enums.DiscountType `gorm:"column:discount_type;not null"`
	DiscountValue        decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MaxDiscount          *decimal.Decimal   `gorm:"column:max_discount;type:numeric(12,2)"`
	MinOrderAmount       decimal.Decimal    `gorm:"column:min_order_amount;type:numeric(12,2);not null;default:0"`
	UsageLimit           *int               `gorm:"column:usage_limit"`
	UsedCount            int                `gorm:"column:used_count;not null;default:0"`
	UserUsageLimit       int                `gorm:"column:user_usage_limit;not null;default:1"`
	ValidFrom            time.Time          `gorm:"column:valid_from;not null"`
	ValidUntil           time.Time          `gorm:"column:valid_until;not null"`
	IsActive             bool               `gorm:"column:is_active;not null"`
	IsFirstOrderOnly     bool               `gorm:"column:is_first_order_only;not null;default:false"`
	IsReferralReward     bool               `gorm:"column:is_referral_reward;not null;default:false"`
	ApplicableCategories pq.StringArray     `gorm:"column:applicable_categories;type:text[]"`
	ApplicableProducts   pq.StringArray     `gorm:"column:applicable_products;type:text[]"`
	ExcludedCategories   pq.StringArray     `gorm:"column:excluded_categories;type:text[]"`
	ExcludedProducts     pq.StringArray     `gorm:"column:excluded_products;type:text[]"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// HasItemRules reports whether the coupon restricts which lines it discounts.
func (c Coupon) HasItemRules() bool {
	return len(c.ApplicableCategories) > 0 || len(c.ApplicableProducts) > 0 ||
		len(c.ExcludedCategories) > 0 || len(c.ExcludedProducts) > 0
}

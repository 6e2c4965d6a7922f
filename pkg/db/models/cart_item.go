package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one line of a cart with the price snapshot taken when it was first added.
type CartItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID       uuid.UUID       `gorm:"column:cart_id;type:uuid;not null"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID    uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	MRP          decimal.Decimal `gorm:"column:mrp;type:numeric(12,2);not null"`
	SellingPrice decimal.Decimal `gorm:"column:selling_price;type:numeric(12,2);not null"`
	Discount     decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null"`
	Position     int             `gorm:"column:position;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem is the immutable purchase-time snapshot of a cart line.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID    uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	ProductName  string          `gorm:"column:product_name;not null"`
	Category     string          `gorm:"column:category;not null"`
	VariantLabel string          `gorm:"column:variant_label;not null"`
	Unit         string          `gorm:"column:unit;not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	MRP          decimal.Decimal `gorm:"column:mrp;type:numeric(12,2);not null"`
	SellingPrice decimal.Decimal `gorm:"column:selling_price;type:numeric(12,2);not null"`
	LineTotal    decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductVariant is a purchasable size/unit of a product and owns its stock counter.
type ProductVariant struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	SKU          string          `gorm:"column:sku;not null;uniqueIndex"`
	Label        string          `gorm:"column:label;not null"`
	Unit         string          `gorm:"column:unit;not null"`
	MRP          decimal.Decimal `gorm:"column:mrp;type:numeric(12,2);not null"`
	SellingPrice decimal.Decimal `gorm:"column:selling_price;type:numeric(12,2);not null"`
	Stock        int             `gorm:"column:stock;not null;default:0"`
	IsDefault    bool            `gorm:"column:is_default;not null;default:false"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// UnitDiscount is the per-unit markdown from MRP.
func (v ProductVariant) UnitDiscount() decimal.Decimal {
	diff := v.MRP.Sub(v.SellingPrice)
	if diff.IsNegative() {
		return decimal.Zero
	}
	return diff
}

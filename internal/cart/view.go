package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

// ItemView is one priced cart line enriched with catalog labels.
type ItemView struct {
	ProductID    uuid.UUID       `json:"product_id"`
	VariantID    uuid.UUID       `json:"variant_id"`
	ProductName  string          `json:"product_name"`
	Category     string          `json:"category"`
	VariantLabel string          `json:"variant_label"`
	Unit         string          `json:"unit"`
	Quantity     int             `json:"quantity"`
	MRP          decimal.Decimal `json:"mrp"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Discount     decimal.Decimal `json:"discount"`
	LineTotal    decimal.Decimal `json:"line_total"`
	InStock      bool            `json:"in_stock"`
}

// CartView is what every cart operation returns.
type CartView struct {
	ID                  uuid.UUID           `json:"id"`
	UserID              uuid.UUID           `json:"user_id"`
	Items               []ItemView          `json:"items"`
	CouponCode          *string             `json:"coupon_code,omitempty"`
	CouponRemovedReason *enums.CouponReason `json:"coupon_removed_reason,omitempty"`
	Totals              Totals              `json:"totals"`
}

func buildItemViews(items []models.CartItem, products map[uuid.UUID]*models.Product) []ItemView {
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		view := ItemView{
			ProductID:    item.ProductID,
			VariantID:    item.VariantID,
			Quantity:     item.Quantity,
			MRP:          item.MRP,
			SellingPrice: item.SellingPrice,
			Discount:     item.Discount,
			LineTotal:    item.SellingPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		if product, ok := products[item.ProductID]; ok {
			view.ProductName = product.Name
			view.Category = product.Category
			if variant := findVariant(product, item.VariantID); variant != nil {
				view.VariantLabel = variant.Label
				view.Unit = variant.Unit
				view.InStock = variant.Stock >= item.Quantity
			}
		}
		views = append(views, view)
	}
	return views
}

func findVariant(product *models.Product, variantID uuid.UUID) *models.ProductVariant {
	for i := range product.Variants {
		if product.Variants[i].ID == variantID {
			return &product.Variants[i]
		}
	}
	return nil
}

package coupons

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Line is the slice of a cart line the evaluator needs for item rules.
type Line struct {
	ProductID uuid.UUID
	Category  string
	Amount    decimal.Decimal
}

// ComputeDiscount returns the discount coupon grants on subtotal, rounded to paise.
// It never exceeds subtotal.
func ComputeDiscount(coupon models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount = subtotal.Mul(coupon.DiscountValue).Div(hundred)
		if coupon.MaxDiscount != nil && discount.GreaterThan(*coupon.MaxDiscount) {
			discount = *coupon.MaxDiscount
		}
	case enums.DiscountTypeFixed:
		discount = coupon.DiscountValue
	default:
		return decimal.Zero
	}

	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2)
}

// EligibleSubtotal sums the lines the coupon's category and product rules allow.
func EligibleSubtotal(coupon models.Coupon, lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if lineEligible(coupon, line) {
			total = total.Add(line.Amount)
		}
	}
	return total
}

func lineEligible(coupon models.Coupon, line Line) bool {
	productID := line.ProductID.String()
	if contains(coupon.ExcludedProducts, productID) || contains(coupon.ExcludedCategories, line.Category) {
		return false
	}
	if len(coupon.ApplicableProducts) == 0 && len(coupon.ApplicableCategories) == 0 {
		return true
	}
	return contains(coupon.ApplicableProducts, productID) || contains(coupon.ApplicableCategories, line.Category)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}

// NormalizeCode upper-cases and trims a customer-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

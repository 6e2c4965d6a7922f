package cart

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
)

// Policy is the delivery charge schedule applied to every cart.
type Policy struct {
	MinOrderAmount        decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
}

// DefaultPolicy is min 99, free from 299, otherwise a 29 fee.
func DefaultPolicy() Policy {
	return Policy{
		MinOrderAmount:        decimal.NewFromInt(99),
		FreeDeliveryThreshold: decimal.NewFromInt(299),
		DeliveryFee:           decimal.NewFromInt(29),
	}
}

func PolicyFromConfig(cfg config.PricingConfig) Policy {
	return Policy{
		MinOrderAmount:        cfg.MinOrderAmount,
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
		DeliveryFee:           cfg.DeliveryFee,
	}
}

// DeliveryCharge returns the fee for subtotal and whether the basket is under
// the minimum order amount. Sub-minimum baskets are not charged.
func (p Policy) DeliveryCharge(subtotal decimal.Decimal) (decimal.Decimal, bool) {
	switch {
	case subtotal.LessThan(p.MinOrderAmount):
		return decimal.Zero, true
	case subtotal.GreaterThanOrEqual(p.FreeDeliveryThreshold):
		return decimal.Zero, false
	default:
		return p.DeliveryFee, false
	}
}

// Totals is always derived from the lines and never stored.
type Totals struct {
	TotalItems           int             `json:"total_items"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	ItemDiscount         decimal.Decimal `json:"item_discount"`
	CouponDiscount       decimal.Decimal `json:"coupon_discount"`
	TotalDiscount        decimal.Decimal `json:"total_discount"`
	DeliveryCharge       decimal.Decimal `json:"delivery_charge"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	BelowMinimum         bool            `json:"below_minimum_order"`
	AmountToFreeDelivery decimal.Decimal `json:"amount_to_free_delivery"`
}

// ComputeTotals prices items with the snapshot prices they carry.
func ComputeTotals(items []models.CartItem, couponDiscount decimal.Decimal, policy Policy) Totals {
	totals := Totals{
		Subtotal:     decimal.Zero,
		ItemDiscount: decimal.Zero,
	}
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		totals.TotalItems += item.Quantity
		totals.Subtotal = totals.Subtotal.Add(item.SellingPrice.Mul(qty))
		markdown := item.MRP.Sub(item.SellingPrice)
		if markdown.IsPositive() {
			totals.ItemDiscount = totals.ItemDiscount.Add(markdown.Mul(qty))
		}
	}

	if couponDiscount.IsNegative() {
		couponDiscount = decimal.Zero
	}
	totals.CouponDiscount = couponDiscount
	totals.TotalDiscount = totals.ItemDiscount.Add(couponDiscount)
	totals.DeliveryCharge, totals.BelowMinimum = policy.DeliveryCharge(totals.Subtotal)

	total := totals.Subtotal.Add(totals.DeliveryCharge).Sub(couponDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	totals.TotalAmount = total.Round(2)

	if gap := policy.FreeDeliveryThreshold.Sub(totals.Subtotal); gap.IsPositive() {
		totals.AmountToFreeDelivery = gap
	} else {
		totals.AmountToFreeDelivery = decimal.Zero
	}
	return totals
}

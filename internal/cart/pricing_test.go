package cart

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
)

func item(mrp, price string, qty int) models.CartItem {
	return models.CartItem{
		MRP:          decimal.RequireFromString(mrp),
		SellingPrice: decimal.RequireFromString(price),
		Quantity:     qty,
	}
}

func TestComputeTotalsDeliveryTiers(t *testing.T) {
	cases := []struct {
		name         string
		items        []models.CartItem
		coupon       string
		subtotal     string
		delivery     string
		total        string
		belowMinimum bool
	}{
		{"empty cart", nil, "0", "0", "0", "0", true},
		{"below minimum", []models.CartItem{item("50", "45", 2)}, "0", "90", "0", "90", true},
		{"at minimum pays fee", []models.CartItem{item("99", "99", 1)}, "0", "99", "29", "128", false},
		{"just below free", []models.CartItem{item("300", "298.99", 1)}, "0", "298.99", "29", "327.99", false},
		{"free delivery", []models.CartItem{item("320", "299", 1)}, "0", "299", "0", "299", false},
		{"coupon subtracts", []models.CartItem{item("200", "150", 3)}, "45", "450", "0", "405", false},
		{"coupon cannot go negative", []models.CartItem{item("120", "100", 1)}, "500", "100", "29", "0", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeTotals(tc.items, decimal.RequireFromString(tc.coupon), DefaultPolicy())
			if !got.Subtotal.Equal(decimal.RequireFromString(tc.subtotal)) {
				t.Fatalf("subtotal: expected %s got %s", tc.subtotal, got.Subtotal)
			}
			if !got.DeliveryCharge.Equal(decimal.RequireFromString(tc.delivery)) {
				t.Fatalf("delivery: expected %s got %s", tc.delivery, got.DeliveryCharge)
			}
			if !got.TotalAmount.Equal(decimal.RequireFromString(tc.total)) {
				t.Fatalf("total: expected %s got %s", tc.total, got.TotalAmount)
			}
			if got.BelowMinimum != tc.belowMinimum {
				t.Fatalf("below minimum: expected %v got %v", tc.belowMinimum, got.BelowMinimum)
			}
		})
	}
}

func TestComputeTotalsDiscountBreakdown(t *testing.T) {
	items := []models.CartItem{item("60", "50", 2), item("40", "40", 1)}
	got := ComputeTotals(items, decimal.NewFromInt(15), DefaultPolicy())

	if got.TotalItems != 3 {
		t.Fatalf("expected 3 items, got %d", got.TotalItems)
	}
	if !got.ItemDiscount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected item discount 20, got %s", got.ItemDiscount)
	}
	if !got.TotalDiscount.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("expected total discount 35, got %s", got.TotalDiscount)
	}
	if !got.AmountToFreeDelivery.Equal(decimal.NewFromInt(159)) {
		t.Fatalf("expected 159 to free delivery, got %s", got.AmountToFreeDelivery)
	}
}

func TestComputeTotalsIsPure(t *testing.T) {
	items := []models.CartItem{item("80", "70", 2)}
	first := ComputeTotals(items, decimal.NewFromInt(10), DefaultPolicy())
	second := ComputeTotals(items, decimal.NewFromInt(10), DefaultPolicy())
	if !first.TotalAmount.Equal(second.TotalAmount) || first.TotalItems != second.TotalItems {
		t.Fatalf("expected identical totals, got %+v and %+v", first, second)
	}
}

func TestPolicyCustomTiers(t *testing.T) {
	policy := Policy{
		MinOrderAmount:        decimal.NewFromInt(150),
		FreeDeliveryThreshold: decimal.NewFromInt(500),
		DeliveryFee:           decimal.NewFromInt(40),
	}
	fee, below := policy.DeliveryCharge(decimal.NewFromInt(200))
	if below || !fee.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected fee %s below=%v", fee, below)
	}
}

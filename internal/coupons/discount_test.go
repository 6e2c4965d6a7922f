package coupons

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestComputeDiscount(t *testing.T) {
	cases := []struct {
		name     string
		coupon   models.Coupon
		subtotal string
		want     string
	}{
		{"percentage", models.Coupon{DiscountType: enums.DiscountTypePercentage, DiscountValue: dec("10")}, "450", "45"},
		{"percentage capped", models.Coupon{DiscountType: enums.DiscountTypePercentage, DiscountValue: dec("10"), MaxDiscount: decPtr("100")}, "1500", "100"},
		{"percentage rounds", models.Coupon{DiscountType: enums.DiscountTypePercentage, DiscountValue: dec("15")}, "99.99", "15"},
		{"fixed", models.Coupon{DiscountType: enums.DiscountTypeFixed, DiscountValue: dec("50")}, "300", "50"},
		{"fixed clamped to subtotal", models.Coupon{DiscountType: enums.DiscountTypeFixed, DiscountValue: dec("50")}, "30", "30"},
		{"zero subtotal", models.Coupon{DiscountType: enums.DiscountTypeFixed, DiscountValue: dec("50")}, "0", "0"},
		{"unknown type", models.Coupon{DiscountType: "bogus", DiscountValue: dec("50")}, "300", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeDiscount(tc.coupon, dec(tc.subtotal))
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestEligibleSubtotal(t *testing.T) {
	dairy := Line{ProductID: uuid.New(), Category: "dairy", Amount: dec("120")}
	snacks := Line{ProductID: uuid.New(), Category: "snacks", Amount: dec("80")}
	lines := []Line{dairy, snacks}

	cases := []struct {
		name   string
		coupon models.Coupon
		want   string
	}{
		{"no rules", models.Coupon{}, "200"},
		{"category allow list", models.Coupon{ApplicableCategories: pq.StringArray{"Dairy"}}, "120"},
		{"product allow list", models.Coupon{ApplicableProducts: pq.StringArray{snacks.ProductID.String()}}, "80"},
		{"excluded category", models.Coupon{ExcludedCategories: pq.StringArray{"snacks"}}, "120"},
		{"exclusion beats allow", models.Coupon{
			ApplicableCategories: pq.StringArray{"dairy"},
			ExcludedProducts:     pq.StringArray{dairy.ProductID.String()},
		}, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EligibleSubtotal(tc.coupon, lines)
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  welcome10 "); got != "WELCOME10" {
		t.Fatalf("unexpected normalized code %q", got)
	}
}

package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/pkg/db"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

// VariantSeed describes one variant inserted by SeedProduct.
type VariantSeed struct {
	SKU     string
	Label   string
	MRP     string
	Price   string
	Stock   int
	Default bool
}

// SeedProduct inserts an active product and its variants. The first variant is
// the default unless another one asks to be.
func SeedProduct(t testing.TB, client *db.Client, name, category string, variants ...VariantSeed) models.Product {
	t.Helper()

	product := models.Product{
		ID:       uuid.New(),
		Name:     name,
		Category: category,
		IsActive: true,
	}
	if err := client.DB().Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	hasDefault := false
	for _, v := range variants {
		hasDefault = hasDefault || v.Default
	}
	for i, v := range variants {
		row := models.ProductVariant{
			ID:           uuid.New(),
			ProductID:    product.ID,
			SKU:          v.SKU,
			Label:        v.Label,
			Unit:         "pack",
			MRP:          decimal.RequireFromString(v.MRP),
			SellingPrice: decimal.RequireFromString(v.Price),
			Stock:        v.Stock,
			IsDefault:    v.Default || (!hasDefault && i == 0),
		}
		if row.SKU == "" {
			row.SKU = "SKU-" + uuid.NewString()[:8]
		}
		if row.Label == "" {
			row.Label = "1 pc"
		}
		if err := client.DB().Create(&row).Error; err != nil {
			t.Fatalf("seed variant: %v", err)
		}
		product.Variants = append(product.Variants, row)
	}
	return product
}

// SeedCoupon inserts c after filling the bookkeeping fields tests rarely care about.
func SeedCoupon(t testing.TB, client *db.Client, c models.Coupon) models.Coupon {
	t.Helper()

	now := time.Now().UTC()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.DiscountType == "" {
		c.DiscountType = enums.DiscountTypeFixed
	}
	if c.UserUsageLimit == 0 {
		c.UserUsageLimit = 1
	}
	if c.ValidFrom.IsZero() {
		c.ValidFrom = now.Add(-time.Hour)
	}
	if c.ValidUntil.IsZero() {
		c.ValidUntil = now.Add(24 * time.Hour)
	}
	if err := client.DB().Create(&c).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return c
}

// SeedOrder inserts a bare order row for the given user and status.
func SeedOrder(t testing.TB, client *db.Client, userID uuid.UUID, status enums.OrderStatus) models.Order {
	t.Helper()

	order := models.Order{
		ID:                  uuid.New(),
		OrderNumber:         "DC" + uuid.NewString()[:12],
		UserID:              userID,
		Status:              status,
		Subtotal:            decimal.NewFromInt(100),
		TotalAmount:         decimal.NewFromInt(129),
		DeliveryCharge:      decimal.NewFromInt(29),
		TotalItems:          1,
		PaymentMethod:       enums.PaymentMethodUPI,
		PaymentStatus:       enums.PaymentStatusPaid,
		DeliveryAddress:     "12 Market Road",
		ContactPhone:        "9990001111",
		EstimatedDeliveryAt: time.Now().UTC().Add(2 * time.Hour),
	}
	if err := client.DB().Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

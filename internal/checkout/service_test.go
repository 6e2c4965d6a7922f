package checkout

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/dailycart-backend/internal/cart"
	"github.com/angelmondragon/dailycart-backend/internal/coupons"
	"github.com/angelmondragon/dailycart-backend/internal/inventory"
	"github.com/angelmondragon/dailycart-backend/internal/loyalty"
	"github.com/angelmondragon/dailycart-backend/internal/orders"
	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/db"
	"github.com/angelmondragon/dailycart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/metrics"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox/payloads"
)

type fixture struct {
	svc       Service
	carts     cart.Service
	inventory inventory.Service
	client    *db.Client
	milk      models.Product
	chips     models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.NewSQLite(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logg)
	fulfillment := metrics.NewFulfillmentMetrics(prometheus.NewRegistry())

	inv, err := inventory.NewService(inventory.NewRepository(client.DB()), client, emitter, logg)
	require.NoError(t, err)
	couponSvc, err := coupons.NewService(coupons.NewRepository(client.DB()), logg)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.NewRepository(client.DB()), inventory.NewRepository(client.DB()), couponSvc, client, cart.DefaultPolicy(), logg)
	require.NoError(t, err)
	points, err := loyalty.NewService(loyalty.NewRepository(client.DB()), logg)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(client.DB()),
		Tx:      client,
		Stock:   inv,
		Loyalty: points,
		Outbox:  emitter,
		Metrics: fulfillment,
		Config:  config.OrdersConfig{DeliveryLeadTime: 2 * time.Hour, LoyaltyAmountPerPt: 10},
		Logger:  logg,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Tx:      client,
		Carts:   cartSvc,
		Orders:  orderSvc,
		Coupons: couponSvc,
		Stock:   inv,
		Outbox:  emitter,
		Metrics: fulfillment,
		Logger:  logg,
	})
	require.NoError(t, err)

	return &fixture{
		svc:       svc,
		carts:     cartSvc,
		inventory: inv,
		client:    client,
		milk:      dbtest.SeedProduct(t, client, "Toned Milk", "dairy", dbtest.VariantSeed{MRP: "60", Price: "55", Stock: 10}),
		chips:     dbtest.SeedProduct(t, client, "Salted Chips", "snacks", dbtest.VariantSeed{MRP: "20", Price: "20", Stock: 3}),
	}
}

func (f *fixture) stock(t *testing.T, p models.Product) int {
	t.Helper()
	v, err := f.inventory.GetVariant(context.Background(), p.Variants[0].ID)
	require.NoError(t, err)
	return v.Stock
}

func (f *fixture) add(t *testing.T, userID uuid.UUID, p models.Product, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, p.ID, p.Variants[0].ID, qty)
	require.NoError(t, err)
}

func validInput(method enums.PaymentMethod) Input {
	return Input{
		PaymentMethod:   string(method),
		DeliveryAddress: "12 Market Road, Pune",
		ContactPhone:    "98765 43210",
	}
}

func TestCheckoutWithCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	dbtest.SeedCoupon(t, f.client, models.Coupon{
		Code:           "FLAT50",
		DiscountType:   enums.DiscountTypeFixed,
		DiscountValue:  decimal.NewFromInt(50),
		MinOrderAmount: decimal.NewFromInt(300),
		IsActive:       true,
	})

	f.add(t, userID, f.milk, 6)
	_, err := f.carts.ApplyCoupon(ctx, userID, "flat50")
	require.NoError(t, err)

	ref := "pay_abc123"
	input := validInput(enums.PaymentMethodUPI)
	input.PaymentReference = &ref
	result, err := f.svc.Checkout(ctx, userID, input)
	require.NoError(t, err)

	order := result.Order
	assert.Empty(t, result.DeliveryOTP)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(330)))
	assert.True(t, order.CouponDiscount.Equal(decimal.NewFromInt(50)))
	assert.True(t, order.DeliveryCharge.IsZero())
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(280)))
	require.NotNil(t, order.CouponCode)
	assert.Equal(t, "FLAT50", *order.CouponCode)
	assert.Equal(t, "9876543210", order.ContactPhone)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 6, order.Items[0].Quantity)

	assert.Equal(t, 4, f.stock(t, f.milk))

	view, err := f.carts.Get(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Nil(t, view.CouponCode)

	var coupon models.Coupon
	require.NoError(t, f.client.DB().Where("code = ?", "FLAT50").First(&coupon).Error)
	assert.Equal(t, 1, coupon.UsedCount)
	var usages int64
	require.NoError(t, f.client.DB().Model(&models.CouponUsage{}).Where("order_id = ?", order.ID).Count(&usages).Error)
	assert.Equal(t, int64(1), usages)

	var event models.OutboxEvent
	require.NoError(t, f.client.DB().Where("event_type = ?", enums.EventOrderCreated).First(&event).Error)
	assert.Equal(t, order.ID, event.AggregateID)
}

func TestCheckoutCashOnDeliveryPublishesOTP(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.add(t, userID, f.milk, 2)

	result, err := f.svc.Checkout(context.Background(), userID, validInput(enums.PaymentMethodCashOnDelivery))
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, result.DeliveryOTP)
	assert.Equal(t, enums.PaymentStatusPending, result.Order.PaymentStatus)
	assert.True(t, result.Order.DeliveryCharge.Equal(decimal.NewFromInt(29)))

	var event models.OutboxEvent
	require.NoError(t, f.client.DB().Where("event_type = ?", enums.EventOrderCreated).First(&event).Error)
	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(event.Payload, &envelope))
	var data payloads.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, result.DeliveryOTP, data.DeliveryOTP)
	assert.Equal(t, result.Order.OrderNumber, data.OrderNumber)
}

func TestCheckoutEmptyAndMissingCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, uuid.New(), validInput(enums.PaymentMethodUPI))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	userID := uuid.New()
	f.add(t, userID, f.milk, 1)
	_, err = f.carts.Clear(ctx, userID)
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, userID, validInput(enums.PaymentMethodUPI))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCheckoutRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	cases := []Input{
		{PaymentMethod: "barter", DeliveryAddress: "12 Market Road", ContactPhone: "9876543210"},
		{PaymentMethod: "upi", DeliveryAddress: " ", ContactPhone: "9876543210"},
		{PaymentMethod: "upi", DeliveryAddress: "12 Market Road", ContactPhone: "12"},
	}
	for _, input := range cases {
		_, err := f.svc.Checkout(ctx, userID, input)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "input %+v", input)
	}
	_, err := f.svc.Checkout(ctx, uuid.Nil, validInput(enums.PaymentMethodUPI))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCheckoutInsufficientStockRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	f.add(t, userID, f.milk, 2)
	f.add(t, userID, f.chips, 3)

	_, err := f.inventory.AdjustStock(ctx, f.chips.Variants[0].ID, -2)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, userID, validInput(enums.PaymentMethodUPI))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	assert.Equal(t, inventory.InsufficientStockDetails{VariantID: f.chips.Variants[0].ID, Available: 1, Requested: 3}, typed.Details())

	assert.Equal(t, 10, f.stock(t, f.milk))
	assert.Equal(t, 1, f.stock(t, f.chips))
	view, err := f.carts.Get(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCheckoutIneligibleCouponAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	coupon := dbtest.SeedCoupon(t, f.client, models.Coupon{
		Code:          "SAVE10",
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(10),
		IsActive:      true,
	})
	f.add(t, userID, f.milk, 2)
	_, err := f.carts.ApplyCoupon(ctx, userID, "SAVE10")
	require.NoError(t, err)

	require.NoError(t, f.client.DB().Model(&models.Coupon{}).Where("id = ?", coupon.ID).Update("is_active", false).Error)

	_, err = f.svc.Checkout(ctx, userID, validInput(enums.PaymentMethodUPI))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeCouponIneligible))
	assert.Equal(t, enums.CouponReasonInactive, pkgerrors.As(err).Details().(map[string]any)["reason"])
	assert.Equal(t, 10, f.stock(t, f.milk))
}

func TestConcurrentCheckoutsForLastUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.inventory.AdjustStock(ctx, f.chips.Variants[0].ID, -2)
	require.NoError(t, err)

	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, u := range users {
		f.add(t, u, f.chips, 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, u := range users {
		wg.Add(1)
		go func(i int, u uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout(ctx, u, validInput(enums.PaymentMethodUPI))
		}(i, u)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.stock(t, f.chips))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

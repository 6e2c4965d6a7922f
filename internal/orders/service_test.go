package orders

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/internal/inventory"
	"github.com/angelmondragon/dailycart-backend/internal/loyalty"
	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/db"
	"github.com/angelmondragon/dailycart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/metrics"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox"
	"github.com/angelmondragon/dailycart-backend/pkg/pagination"
)

type fixture struct {
	svc       Service
	client    *db.Client
	inventory inventory.Service
	loyalty   loyalty.Service
	variant   models.ProductVariant
	product   models.Product
	staff     auth.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.NewSQLite(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logg)

	inv, err := inventory.NewService(inventory.NewRepository(client.DB()), client, emitter, logg)
	require.NoError(t, err)
	points, err := loyalty.NewService(loyalty.NewRepository(client.DB()), logg)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(client.DB()),
		Tx:      client,
		Stock:   inv,
		Loyalty: points,
		Outbox:  emitter,
		Metrics: metrics.NewFulfillmentMetrics(prometheus.NewRegistry()),
		Config:  config.OrdersConfig{DeliveryLeadTime: 2 * time.Hour, LoyaltyAmountPerPt: 10},
		Logger:  logg,
	})
	require.NoError(t, err)

	product := dbtest.SeedProduct(t, client, "Basmati Rice", "staples",
		dbtest.VariantSeed{SKU: "RICE-5KG", Label: "5 kg", MRP: "320", Price: "300", Stock: 10})

	return &fixture{
		svc:       svc,
		client:    client,
		inventory: inv,
		loyalty:   points,
		variant:   product.Variants[0],
		product:   product,
		staff:     auth.Actor{UserID: uuid.New(), Role: enums.RoleStaff},
	}
}

// place reserves qty units and persists an order the way checkout does.
func (f *fixture) place(t *testing.T, userID uuid.UUID, qty int, method enums.PaymentMethod) *Created {
	t.Helper()
	ctx := context.Background()

	subtotal := f.variant.SellingPrice.Mul(decimal.NewFromInt(int64(qty)))
	delivery := decimal.NewFromInt(29)
	var created *Created
	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := f.inventory.AdjustStockTx(ctx, tx, f.variant.ID, -qty); err != nil {
			return err
		}
		var err error
		created, err = f.svc.CreateTx(ctx, tx, CreateInput{
			UserID: userID,
			Lines: []LineInput{{
				ProductID:    f.product.ID,
				VariantID:    f.variant.ID,
				ProductName:  f.product.Name,
				Category:     f.product.Category,
				VariantLabel: f.variant.Label,
				Unit:         f.variant.Unit,
				Quantity:     qty,
				MRP:          f.variant.MRP,
				SellingPrice: f.variant.SellingPrice,
			}},
			TotalItems:      qty,
			Subtotal:        subtotal,
			ItemDiscount:    f.variant.MRP.Sub(f.variant.SellingPrice).Mul(decimal.NewFromInt(int64(qty))),
			CouponDiscount:  decimal.Zero,
			DeliveryCharge:  delivery,
			TotalAmount:     subtotal.Add(delivery),
			PaymentMethod:   method,
			DeliveryAddress: "221B Lake View, Pune",
			ContactPhone:    "9876543210",
			Actor:           auth.Actor{UserID: userID, Role: enums.RoleCustomer},
		})
		return err
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	v, err := f.inventory.GetVariant(context.Background(), f.variant.ID)
	require.NoError(t, err)
	return v.Stock
}

func (f *fixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestCreateTxPrepaid(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	before := time.Now().UTC()

	created := f.place(t, userID, 1, enums.PaymentMethodUPI)
	order := created.Order

	assert.Empty(t, created.DeliveryOTP)
	assert.Nil(t, order.DeliveryOTPHash)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Regexp(t, `^DC\d{8}[0-9A-F]{8}$`, order.OrderNumber)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(329)))
	assert.Equal(t, int64(32), order.LoyaltyPointsEarned)
	assert.WithinDuration(t, before.Add(2*time.Hour), order.EstimatedDeliveryAt, 5*time.Second)

	view, err := f.svc.Get(context.Background(), order.ID, auth.Actor{UserID: userID, Role: enums.RoleCustomer})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Basmati Rice", view.Items[0].ProductName)
	assert.True(t, view.Items[0].LineTotal.Equal(decimal.NewFromInt(300)))
	require.Len(t, view.Tracking, 1)
	assert.Equal(t, enums.OrderStatusPending, view.Tracking[0].Status)
	assert.Equal(t, "Order placed successfully", view.Tracking[0].Note)
}

func TestCreateTxCashOnDeliveryIssuesOTP(t *testing.T) {
	f := newFixture(t)
	created := f.place(t, uuid.New(), 1, enums.PaymentMethodCashOnDelivery)

	assert.Regexp(t, `^\d{6}$`, created.DeliveryOTP)
	require.NotNil(t, created.Order.DeliveryOTPHash)
	assert.NotEqual(t, created.DeliveryOTP, *created.Order.DeliveryOTPHash)
	assert.True(t, VerifyOTP(*created.Order.DeliveryOTPHash, created.DeliveryOTP))
	assert.Equal(t, enums.PaymentStatusPending, created.Order.PaymentStatus)
}

func TestCreateTxValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.CreateTx(ctx, tx, CreateInput{UserID: uuid.New(), PaymentMethod: enums.PaymentMethodUPI})
		return err
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateTx(ctx, nil, CreateInput{})
	assert.Error(t, err)
}

func TestTransitionHappyPathToDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := f.place(t, userID, 1, enums.PaymentMethodUPI).Order

	for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusPacked} {
		view, err := f.svc.Transition(ctx, order.ID, next, "", f.staff)
		require.NoError(t, err)
		assert.Equal(t, next, view.Status)
	}

	partner := uuid.New()
	view, err := f.svc.AssignDeliveryPartner(ctx, order.ID, partner, f.staff)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusOutForDelivery, view.Status)
	require.NotNil(t, view.DeliveryPartnerID)
	assert.Equal(t, partner, *view.DeliveryPartnerID)

	view, err = f.svc.ConfirmDelivery(ctx, order.ID, "", auth.Actor{UserID: partner, Role: enums.RoleDeliveryPartner})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, view.Status)
	assert.NotNil(t, view.ActualDeliveryAt)
	require.Len(t, view.Tracking, 5)
	assert.Equal(t, "Order delivered", view.Tracking[4].Note)

	account, err := f.loyalty.GetAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(32), account.PointsBalance)
	assert.Equal(t, int64(4), f.countEvents(t, enums.EventOrderStatusChanged))
	assert.Equal(t, 9, f.stock(t), "delivery must not restock")
}

func TestTrackingKeepsAppendOrderWithinOneInstant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	frozen := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	f.svc.(*service).now = func() time.Time { return frozen }

	order := f.place(t, uuid.New(), 1, enums.PaymentMethodUPI).Order
	steps := []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusPacked}
	for _, next := range steps {
		_, err := f.svc.Transition(ctx, order.ID, next, "", f.staff)
		require.NoError(t, err)
	}

	view, err := f.svc.Get(ctx, order.ID, f.staff)
	require.NoError(t, err)
	require.Len(t, view.Tracking, 3)
	want := append([]enums.OrderStatus{enums.OrderStatusPending}, steps...)
	for i, entry := range view.Tracking {
		assert.True(t, entry.CreatedAt.Equal(frozen))
		assert.Equal(t, want[i], entry.Status, "tracking entry %d", i)
	}
}

func TestTransitionSameStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, uuid.New(), 1, enums.PaymentMethodUPI).Order

	view, err := f.svc.Transition(ctx, order.ID, enums.OrderStatusPending, "again", f.staff)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, view.Status)
	assert.Len(t, view.Tracking, 1)
	assert.Equal(t, int64(0), f.countEvents(t, enums.EventOrderStatusChanged))
}

func TestTransitionRejectsDisallowedEdge(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, uuid.New(), 1, enums.PaymentMethodUPI).Order

	_, err := f.svc.Transition(context.Background(), order.ID, enums.OrderStatusDelivered, "", f.staff)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInvalidTransition, typed.Code())
	assert.Equal(t, map[string]any{
		"current":   enums.OrderStatusPending,
		"attempted": enums.OrderStatusDelivered,
	}, typed.Details())
}

func TestTransitionRequiresStaff(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	order := f.place(t, userID, 1, enums.PaymentMethodUPI).Order

	_, err := f.svc.Transition(context.Background(), order.ID, enums.OrderStatusConfirmed, "", auth.Actor{UserID: userID, Role: enums.RoleCustomer})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestTransitionUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Transition(context.Background(), uuid.New(), enums.OrderStatusConfirmed, "", f.staff)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestCancelRestocksAndRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := f.place(t, userID, 3, enums.PaymentMethodCard).Order
	require.Equal(t, 7, f.stock(t))

	view, err := f.svc.Cancel(ctx, order.ID, "changed my mind", auth.Actor{UserID: userID, Role: enums.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, view.Status)
	require.NotNil(t, view.CancelledFromStatus)
	assert.Equal(t, enums.OrderStatusPending, *view.CancelledFromStatus)
	assert.True(t, view.RefundAmount.Equal(decimal.NewFromInt(929)))
	assert.Equal(t, enums.PaymentStatusRefundPending, view.PaymentStatus)
	assert.Equal(t, "changed my mind", view.Tracking[len(view.Tracking)-1].Note)
	assert.Equal(t, 10, f.stock(t))

	refund, err := f.svc.RefundAmount(ctx, order.ID, auth.Actor{UserID: userID, Role: enums.RoleCustomer})
	require.NoError(t, err)
	assert.True(t, refund.RefundAmount.Equal(decimal.NewFromInt(929)))

	// cancelling twice is a no-op and must not restock again
	_, err = f.svc.Cancel(ctx, order.ID, "", auth.Actor{UserID: userID, Role: enums.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, 10, f.stock(t))
}

func TestCancelFromPackedByStaffKeepsDeliveryCharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, uuid.New(), 1, enums.PaymentMethodUPI).Order
	for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusPacked} {
		_, err := f.svc.Transition(ctx, order.ID, next, "", f.staff)
		require.NoError(t, err)
	}

	view, err := f.svc.Cancel(ctx, order.ID, "", f.staff)
	require.NoError(t, err)
	assert.True(t, view.RefundAmount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "Order cancelled", view.Tracking[len(view.Tracking)-1].Note)
}

func TestCustomerCancelRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := auth.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	order := f.place(t, owner.UserID, 1, enums.PaymentMethodUPI).Order

	_, err := f.svc.Cancel(ctx, order.ID, "", auth.Actor{UserID: uuid.New(), Role: enums.RoleCustomer})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "other customers must not see the order")

	for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusPacked} {
		_, err := f.svc.Transition(ctx, order.ID, next, "", f.staff)
		require.NoError(t, err)
	}
	_, err = f.svc.Cancel(ctx, order.ID, "", owner)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
	assert.Equal(t, 9, f.stock(t))
}

func TestCancelCashOnDeliveryVoidsPayment(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	order := f.place(t, userID, 1, enums.PaymentMethodCashOnDelivery).Order

	view, err := f.svc.Cancel(context.Background(), order.ID, "", auth.Actor{UserID: userID, Role: enums.RoleCustomer})
	require.NoError(t, err)
	assert.True(t, view.RefundAmount.IsZero())
	assert.Equal(t, enums.PaymentStatusVoided, view.PaymentStatus)
}

func TestReturnRestocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, uuid.New(), 2, enums.PaymentMethodUPI).Order
	for _, next := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusPacked,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
		enums.OrderStatusReturned,
	} {
		_, err := f.svc.Transition(ctx, order.ID, next, "", f.staff)
		require.NoError(t, err)
	}
	assert.Equal(t, 10, f.stock(t))
}

func TestConfirmDeliveryCashOnDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.place(t, uuid.New(), 1, enums.PaymentMethodCashOnDelivery)
	orderID := created.Order.ID
	partner := auth.Actor{UserID: uuid.New(), Role: enums.RoleDeliveryPartner}

	for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusPacked} {
		_, err := f.svc.Transition(ctx, orderID, next, "", f.staff)
		require.NoError(t, err)
	}
	_, err := f.svc.AssignDeliveryPartner(ctx, orderID, partner.UserID, f.staff)
	require.NoError(t, err)

	_, err = f.svc.ConfirmDelivery(ctx, orderID, created.DeliveryOTP, auth.Actor{UserID: uuid.New(), Role: enums.RoleDeliveryPartner})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	wrong := "000000"
	if created.DeliveryOTP == wrong {
		wrong = "111111"
	}
	_, err = f.svc.ConfirmDelivery(ctx, orderID, wrong, partner)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	view, err := f.svc.ConfirmDelivery(ctx, orderID, created.DeliveryOTP, partner)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, view.Status)
	assert.Equal(t, enums.PaymentStatusPaid, view.PaymentStatus)

	_, err = f.svc.ConfirmDelivery(ctx, orderID, "", auth.Actor{UserID: uuid.New(), Role: enums.RoleCustomer})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestConcurrentTransitionsApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, uuid.New(), 1, enums.PaymentMethodUPI).Order

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Transition(ctx, order.ID, enums.OrderStatusConfirmed, "", f.staff)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConcurrencyConflict), "unexpected error %v", err)
		}
	}
	view, err := f.svc.Get(ctx, order.ID, f.staff)
	require.NoError(t, err)
	assert.Len(t, view.Tracking, 2)
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderStatusChanged))
}

func TestUpdateStatusCASMissesStaleStatus(t *testing.T) {
	f := newFixture(t)
	order := dbtest.SeedOrder(t, f.client, uuid.New(), enums.OrderStatusConfirmed)
	repo := NewRepository(f.client.DB())

	rows, err := repo.UpdateStatusCAS(context.Background(), order.ID, enums.OrderStatusPending, map[string]any{"status": enums.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	rows, err = repo.UpdateStatusCAS(context.Background(), order.ID, enums.OrderStatusConfirmed, map[string]any{"status": enums.OrderStatusPacked})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}

func TestGetOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	order := f.place(t, owner, 1, enums.PaymentMethodUPI).Order

	_, err := f.svc.Get(ctx, order.ID, auth.Actor{UserID: uuid.New(), Role: enums.RoleCustomer})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Get(ctx, order.ID, auth.Actor{UserID: uuid.New(), Role: enums.RoleDeliveryPartner})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Get(ctx, order.ID, f.staff)
	assert.NoError(t, err)
}

func TestListForUserAndByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	for i := 0; i < 3; i++ {
		dbtest.SeedOrder(t, f.client, userID, enums.OrderStatusPending)
	}
	dbtest.SeedOrder(t, f.client, userID, enums.OrderStatusDelivered)
	dbtest.SeedOrder(t, f.client, uuid.New(), enums.OrderStatusPending)

	page, err := f.svc.ListForUser(ctx, userID, pagination.Params{Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 3)

	page, err = f.svc.ListForUser(ctx, userID, pagination.Params{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	pending := enums.OrderStatusPending
	page, err = f.svc.ListByStatus(ctx, &pending, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)

	page, err = f.svc.ListByStatus(ctx, nil, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)

	bogus := enums.OrderStatus("lost")
	_, err = f.svc.ListByStatus(ctx, &bogus, pagination.Params{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestPendingBefore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := dbtest.SeedOrder(t, f.client, uuid.New(), enums.OrderStatusPending)
	require.NoError(t, f.client.DB().Model(&models.Order{}).Where("id = ?", stale.ID).
		Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error)
	dbtest.SeedOrder(t, f.client, uuid.New(), enums.OrderStatusPending)
	old := dbtest.SeedOrder(t, f.client, uuid.New(), enums.OrderStatusConfirmed)
	require.NoError(t, f.client.DB().Model(&models.Order{}).Where("id = ?", old.ID).
		Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error)

	ids, err := f.svc.PendingBefore(ctx, time.Now().UTC().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stale.ID}, ids)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

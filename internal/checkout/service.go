package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/internal/cart"
	"github.com/angelmondragon/dailycart-backend/internal/checkout/helpers"
	"github.com/angelmondragon/dailycart-backend/internal/checkout/reservation"
	"github.com/angelmondragon/dailycart-backend/internal/coupons"
	"github.com/angelmondragon/dailycart-backend/internal/orders"
	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/metrics"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartReader interface {
	SnapshotTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*cart.Snapshot, error)
	ClearTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type orderCreator interface {
	CreateTx(ctx context.Context, tx *gorm.DB, input orders.CreateInput) (*orders.Created, error)
}

type couponRecorder interface {
	RecordUsageTx(ctx context.Context, tx *gorm.DB, coupon *models.Coupon, userID, orderID uuid.UUID, amount decimal.Decimal) error
}

// Service turns a customer's cart into an order.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
}

// Input is the customer-supplied part of a checkout.
type Input struct {
	PaymentMethod    string
	DeliveryAddress  string
	ContactPhone     string
	PaymentReference *string
}

// Result is returned once. DeliveryOTP is only set for cash orders.
type Result struct {
	Order       *orders.OrderView `json:"order"`
	DeliveryOTP string            `json:"delivery_otp,omitempty"`
}

// ServiceParams bundles the checkout dependencies.
type ServiceParams struct {
	Tx      txRunner
	Carts   cartReader
	Orders  orderCreator
	Coupons couponRecorder
	Stock   reservation.StockAdjuster
	Outbox  outbox.Emitter
	Metrics *metrics.FulfillmentMetrics
	Logger  *logger.Logger
}

type service struct {
	tx      txRunner
	carts   cartReader
	orders  orderCreator
	coupons couponRecorder
	stock   reservation.StockAdjuster
	outbox  outbox.Emitter
	metrics *metrics.FulfillmentMetrics
	logg    *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock adjuster required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:      params.Tx,
		carts:   params.Carts,
		orders:  params.Orders,
		coupons: params.Coupons,
		stock:   params.Stock,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Checkout reserves stock, creates the order, redeems the coupon and clears the
// cart in one transaction. Any failure leaves cart and stock untouched.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	method, err := helpers.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, err
	}
	address, err := helpers.NormalizeAddress(input.DeliveryAddress)
	if err != nil {
		return nil, err
	}
	phone, err := helpers.NormalizePhone(input.ContactPhone)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithUserID(ctx, userID.String())

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		snap, err := s.carts.SnapshotTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(snap.Cart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		var couponCode *string
		if snap.Coupon != nil {
			if !snap.Coupon.Eligible {
				return coupons.IneligibleError(*snap.Cart.CouponCode, snap.Coupon.Reason)
			}
			couponCode = snap.Cart.CouponCode
		}

		if err := reservation.Reserve(ctx, tx, s.stock, helpers.ReservationRequests(snap.View)); err != nil {
			return err
		}

		totals := snap.View.Totals
		created, err := s.orders.CreateTx(ctx, tx, orders.CreateInput{
			UserID:           userID,
			Lines:            helpers.OrderLines(snap.View),
			TotalItems:       totals.TotalItems,
			Subtotal:         totals.Subtotal,
			ItemDiscount:     totals.ItemDiscount,
			CouponCode:       couponCode,
			CouponDiscount:   totals.CouponDiscount,
			DeliveryCharge:   totals.DeliveryCharge,
			TotalAmount:      totals.TotalAmount,
			PaymentMethod:    method,
			PaymentReference: helpers.NormalizeReference(input.PaymentReference),
			DeliveryAddress:  address,
			ContactPhone:     phone,
			Actor:            auth.Actor{UserID: userID, Role: enums.RoleCustomer},
		})
		if err != nil {
			return err
		}
		order := created.Order

		if couponCode != nil {
			if err := s.coupons.RecordUsageTx(ctx, tx, snap.Coupon.Coupon, userID, order.ID, totals.CouponDiscount); err != nil {
				return err
			}
		}

		if err := s.carts.ClearTx(ctx, tx, snap.Cart.ID); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.RoleCustomer},
			Data: payloads.OrderCreatedEvent{
				OrderID:             order.ID,
				OrderNumber:         order.OrderNumber,
				UserID:              order.UserID,
				TotalAmount:         order.TotalAmount,
				TotalItems:          order.TotalItems,
				PaymentMethod:       order.PaymentMethod,
				ContactPhone:        order.ContactPhone,
				EstimatedDeliveryAt: order.EstimatedDeliveryAt,
				DeliveryOTP:         created.DeliveryOTP,
			},
			OccurredAt: order.CreatedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created event")
		}

		result = &Result{Order: orders.NewOrderView(order), DeliveryOTP: created.DeliveryOTP}
		return nil
	})
	if err != nil {
		s.metrics.IncCheckout(checkoutResult(err))
		if !isExpected(err) {
			s.logg.Error(ctx, "checkout failed", err)
		}
		return nil, err
	}

	s.metrics.IncCheckout(metrics.CheckoutSuccess)
	logCtx := s.logg.WithOrderID(ctx, result.Order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"order_number": result.Order.OrderNumber,
		"total_amount": result.Order.TotalAmount.String(),
	})
	s.logg.Info(logCtx, "checkout completed")
	return result, nil
}

func checkoutResult(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.CheckoutError
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientStock:
		return metrics.CheckoutInsufficientStock
	case pkgerrors.CodeCouponIneligible:
		return metrics.CheckoutCouponIneligible
	case pkgerrors.CodeValidation:
		if typed.Message() == "cart is empty" {
			return metrics.CheckoutEmptyCart
		}
	}
	return metrics.CheckoutError
}

func isExpected(err error) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() != pkgerrors.CodeInternal
}

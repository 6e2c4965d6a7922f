package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/metrics"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox"
	"github.com/angelmondragon/dailycart-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dailycart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockAdjuster interface {
	AdjustStockTx(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, delta int) (*models.ProductVariant, error)
}

type loyaltyCrediter interface {
	CreditTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int64) error
}

// Service owns the order lifecycle after checkout has reserved stock.
type Service interface {
	CreateTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*Created, error)
	Get(ctx context.Context, orderID uuid.UUID, actor auth.Actor) (*OrderView, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[OrderSummary], error)
	ListByStatus(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (pagination.Page[OrderSummary], error)
	Transition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, note string, actor auth.Actor) (*OrderView, error)
	Cancel(ctx context.Context, orderID uuid.UUID, note string, actor auth.Actor) (*OrderView, error)
	AssignDeliveryPartner(ctx context.Context, orderID, partnerID uuid.UUID, actor auth.Actor) (*OrderView, error)
	ConfirmDelivery(ctx context.Context, orderID uuid.UUID, otp string, actor auth.Actor) (*OrderView, error)
	RefundAmount(ctx context.Context, orderID uuid.UUID, actor auth.Actor) (*RefundView, error)
	PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// ServiceParams bundles the order service dependencies.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Stock   stockAdjuster
	Loyalty loyaltyCrediter
	Outbox  outbox.Emitter
	Metrics *metrics.FulfillmentMetrics
	Config  config.OrdersConfig
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	stock   stockAdjuster
	loyalty loyaltyCrediter
	outbox  outbox.Emitter
	metrics *metrics.FulfillmentMetrics
	cfg     config.OrdersConfig
	logg    *logger.Logger
	fsm     StateMachine
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock adjuster required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("loyalty crediter required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		stock:   params.Stock,
		loyalty: params.Loyalty,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		cfg:     params.Config,
		logg:    params.Logger,
		fsm:     Lifecycle(),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateTx persists a new pending order with its items and first tracking entry.
func (s *service) CreateTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*Created, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	now := s.now()
	orderID := uuid.New()
	order := &models.Order{
		ID:                  orderID,
		OrderNumber:         NewOrderNumber(now, orderID),
		UserID:              input.UserID,
		Status:              enums.OrderStatusPending,
		Subtotal:            input.Subtotal,
		ItemDiscount:        input.ItemDiscount,
		CouponCode:          input.CouponCode,
		CouponDiscount:      input.CouponDiscount,
		DeliveryCharge:      input.DeliveryCharge,
		TotalAmount:         input.TotalAmount,
		TotalItems:          input.TotalItems,
		LoyaltyPointsEarned: PointsForTotal(input.TotalAmount, s.cfg.LoyaltyAmountPerPt),
		PaymentMethod:       input.PaymentMethod,
		PaymentStatus:       enums.PaymentStatusPaid,
		PaymentReference:    input.PaymentReference,
		DeliveryAddress:     input.DeliveryAddress,
		ContactPhone:        input.ContactPhone,
		EstimatedDeliveryAt: now.Add(s.leadTime()),
		RefundAmount:        decimal.Zero,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	var otp string
	if input.PaymentMethod.IsCashOnDelivery() {
		order.PaymentStatus = enums.PaymentStatusPending
		code, err := GenerateOTP()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate delivery otp")
		}
		hash, err := HashOTP(code)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash delivery otp")
		}
		otp = code
		order.DeliveryOTPHash = &hash
	}

	repo := s.repo.WithTx(tx)
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	items := make([]models.OrderItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		items = append(items, models.OrderItem{
			ID:           uuid.New(),
			OrderID:      orderID,
			ProductID:    line.ProductID,
			VariantID:    line.VariantID,
			ProductName:  line.ProductName,
			Category:     line.Category,
			VariantLabel: line.VariantLabel,
			Unit:         line.Unit,
			Quantity:     line.Quantity,
			MRP:          line.MRP,
			SellingPrice: line.SellingPrice,
			LineTotal:    line.SellingPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2),
			CreatedAt:    now,
		})
	}
	if err := repo.CreateItems(ctx, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order items")
	}

	entry := models.OrderTracking{
		ID:        uuid.New(),
		OrderID:   orderID,
		Status:    enums.OrderStatusPending,
		Note:      DefaultNote(enums.OrderStatusPending),
		UpdatedBy: input.Actor.Label(),
		CreatedAt: now,
	}
	if err := repo.AppendTracking(ctx, &entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append order tracking")
	}

	order.Items = items
	order.Tracking = []models.OrderTracking{entry}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	logCtx = s.logg.WithField(logCtx, "order_number", order.OrderNumber)
	s.logg.Info(logCtx, "order created")

	return &Created{Order: order, DeliveryOTP: otp}, nil
}

func validateCreate(input CreateInput) error {
	switch {
	case input.UserID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	case len(input.Lines) == 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	case !input.PaymentMethod.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": input.PaymentMethod})
	case input.DeliveryAddress == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	case input.ContactPhone == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "contact phone required")
	}
	return nil
}

func (s *service) leadTime() time.Duration {
	if s.cfg.DeliveryLeadTime <= 0 {
		return 2 * time.Hour
	}
	return s.cfg.DeliveryLeadTime
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor auth.Actor) (*OrderView, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(order, actor); err != nil {
		return nil, err
	}
	return NewOrderView(order), nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[OrderSummary], error) {
	params = params.Normalize()
	rows, total, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return pagination.Page[OrderSummary]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return pagination.NewPage(summaries(rows), params, total), nil
}

func (s *service) ListByStatus(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (pagination.Page[OrderSummary], error) {
	if status != nil && !status.IsValid() {
		return pagination.Page[OrderSummary]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": *status})
	}
	params = params.Normalize()
	rows, total, err := s.repo.ListByStatus(ctx, status, params)
	if err != nil {
		return pagination.Page[OrderSummary]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return pagination.NewPage(summaries(rows), params, total), nil
}

func summaries(rows []models.Order) []OrderSummary {
	out := make([]OrderSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSummary(row))
	}
	return out
}

func (s *service) PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	ids, err := s.repo.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find stale pending orders")
	}
	return ids, nil
}

func (s *service) RefundAmount(ctx context.Context, orderID uuid.UUID, actor auth.Actor) (*RefundView, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(order, actor); err != nil {
		return nil, err
	}
	return &RefundView{
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		RefundAmount:  CalculateRefund(*order),
	}, nil
}

func (s *service) Transition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, note string, actor auth.Actor) (*OrderView, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	return s.transition(ctx, transitionRequest{orderID: orderID, target: target, note: note, actor: actor})
}

// Cancel lets a customer withdraw an order before it is packed. Staff may cancel any open order.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, note string, actor auth.Actor) (*OrderView, error) {
	return s.transition(ctx, transitionRequest{
		orderID: orderID,
		target:  enums.OrderStatusCancelled,
		note:    note,
		actor:   actor,
		guard: func(order *models.Order) error {
			if actor.IsStaff() {
				return nil
			}
			if actor.Role != enums.RoleCustomer || order.UserID != actor.UserID {
				return notFound(order.ID)
			}
			if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusConfirmed && order.Status != enums.OrderStatusCancelled {
				return invalidTransition(order.Status, enums.OrderStatusCancelled)
			}
			return nil
		},
	})
}

func (s *service) AssignDeliveryPartner(ctx context.Context, orderID, partnerID uuid.UUID, actor auth.Actor) (*OrderView, error) {
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}
	if partnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery partner id required")
	}
	return s.transition(ctx, transitionRequest{
		orderID: orderID,
		target:  enums.OrderStatusOutForDelivery,
		actor:   actor,
		apply: func(_ *models.Order, updates map[string]any) {
			updates["delivery_partner_id"] = partnerID
		},
	})
}

// ConfirmDelivery is the doorstep handoff. Cash orders must present the delivery OTP.
func (s *service) ConfirmDelivery(ctx context.Context, orderID uuid.UUID, otp string, actor auth.Actor) (*OrderView, error) {
	if !actor.IsStaff() && actor.Role != enums.RoleDeliveryPartner {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery partner role required")
	}
	return s.transition(ctx, transitionRequest{
		orderID: orderID,
		target:  enums.OrderStatusDelivered,
		actor:   actor,
		guard: func(order *models.Order) error {
			if actor.Role == enums.RoleDeliveryPartner {
				if order.DeliveryPartnerID == nil || *order.DeliveryPartnerID != actor.UserID {
					return pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this delivery partner")
				}
			}
			if order.Status == enums.OrderStatusDelivered || !order.PaymentMethod.IsCashOnDelivery() {
				return nil
			}
			if order.DeliveryOTPHash == nil || !VerifyOTP(*order.DeliveryOTPHash, otp) {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery otp").
					WithDetails(map[string]any{"reason": "otp_mismatch"})
			}
			return nil
		},
	})
}

type transitionRequest struct {
	orderID uuid.UUID
	target  enums.OrderStatus
	note    string
	actor   auth.Actor
	guard   func(order *models.Order) error
	apply   func(order *models.Order, updates map[string]any)
}

func (s *service) transition(ctx context.Context, req transitionRequest) (*OrderView, error) {
	if req.orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !req.target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": req.target})
	}

	var (
		view    *OrderView
		from    enums.OrderStatus
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, req.orderID)
		if err != nil {
			return err
		}
		if req.guard != nil {
			if err := req.guard(order); err != nil {
				return err
			}
		}
		from = order.Status
		if from == req.target {
			view = NewOrderView(order)
			return nil
		}
		if !s.fsm.CanTransition(from, req.target) {
			return invalidTransition(from, req.target)
		}

		now := s.now()
		updates := map[string]any{
			"status":     req.target,
			"updated_at": now,
		}
		if req.apply != nil {
			req.apply(order, updates)
		}

		next := *order
		next.Status = req.target
		var points int64
		switch req.target {
		case enums.OrderStatusDelivered:
			updates["actual_delivery_at"] = now
			if order.PaymentMethod.IsCashOnDelivery() {
				updates["payment_status"] = enums.PaymentStatusPaid
			}
			points = PointsForTotal(order.TotalAmount, s.cfg.LoyaltyAmountPerPt)
			updates["loyalty_points_earned"] = points
		case enums.OrderStatusCancelled:
			next.CancelledFromStatus = &from
			refund := CalculateRefund(next)
			updates["cancelled_from_status"] = from
			updates["refund_amount"] = refund
			switch {
			case order.PaymentMethod.IsCashOnDelivery():
				updates["payment_status"] = enums.PaymentStatusVoided
			case refund.IsPositive():
				updates["payment_status"] = enums.PaymentStatusRefundPending
			}
		}

		rows, err := repo.UpdateStatusCAS(ctx, order.ID, from, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "order status changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID, "expected": from})
		}

		if req.target.RestocksInventory() {
			for _, item := range order.Items {
				if _, err := s.stock.AdjustStockTx(ctx, tx, item.VariantID, item.Quantity); err != nil {
					return err
				}
			}
		}

		if points > 0 {
			if err := s.loyalty.CreditTx(ctx, tx, order.UserID, points); err != nil {
				return err
			}
		}

		note := req.note
		if note == "" {
			note = DefaultNote(req.target)
		}
		entry := models.OrderTracking{
			ID:        uuid.New(),
			OrderID:   order.ID,
			Status:    req.target,
			Note:      note,
			UpdatedBy: req.actor.Label(),
			CreatedAt: now,
		}
		if err := repo.AppendTracking(ctx, &entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append order tracking")
		}

		updated, err := s.load(ctx, repo, order.ID)
		if err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: req.actor.UserID, Role: req.actor.Role},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:           updated.ID,
				OrderNumber:       updated.OrderNumber,
				UserID:            updated.UserID,
				From:              from,
				To:                req.target,
				Note:              note,
				DeliveryPartnerID: updated.DeliveryPartnerID,
				RefundAmount:      updated.RefundAmount,
				LoyaltyPoints:     points,
			},
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status event")
		}

		view = NewOrderView(updated)
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.metrics.IncTransition(from.String(), req.target.String())
		logCtx := s.logg.WithOrderID(ctx, req.orderID.String())
		logCtx = s.logg.WithActorRole(logCtx, req.actor.Role.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"from": from, "to": req.target})
		s.logg.Info(logCtx, "order status changed")
	}
	return view, nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

// authorizeRead hides other customers' orders behind NOT_FOUND.
func authorizeRead(order *models.Order, actor auth.Actor) error {
	switch {
	case actor.IsStaff():
		return nil
	case actor.Role == enums.RoleCustomer && order.UserID == actor.UserID:
		return nil
	case actor.Role == enums.RoleDeliveryPartner && order.DeliveryPartnerID != nil && *order.DeliveryPartnerID == actor.UserID:
		return nil
	}
	return notFound(order.ID)
}

func notFound(orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithDetails(map[string]any{"order_id": orderID})
}

func invalidTransition(current, attempted enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "status transition not allowed").
		WithDetails(map[string]any{"current": current, "attempted": attempted})
}

package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/pkg/db"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/pagination"
)

// Eligibility is the outcome of evaluating a code for a customer and basket.
type Eligibility struct {
	Eligible bool
	Reason   enums.CouponReason
	Coupon   *models.Coupon
	Discount decimal.Decimal
}

// Service evaluates and redeems coupons.
type Service interface {
	Validate(ctx context.Context, code string, userID uuid.UUID, subtotal decimal.Decimal) (*Eligibility, error)
	ValidateForItems(ctx context.Context, code string, userID uuid.UUID, subtotal decimal.Decimal, lines []Line) (*Eligibility, error)
	ValidateForItemsTx(ctx context.Context, tx *gorm.DB, code string, userID uuid.UUID, subtotal decimal.Decimal, lines []Line) (*Eligibility, error)
	RecordUsageTx(ctx context.Context, tx *gorm.DB, coupon *models.Coupon, userID, orderID uuid.UUID, amount decimal.Decimal) error
	Create(ctx context.Context, input CreateInput) (*models.Coupon, error)
	Get(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context, params pagination.Params, activeOnly bool) (pagination.Page[models.Coupon], error)
	Deactivate(ctx context.Context, code string) (*models.Coupon, error)
}

// CreateInput carries the admin-supplied coupon definition.
type CreateInput struct {
	Code                 string
	Description          string
	DiscountType         enums.DiscountType
	DiscountValue        decimal.Decimal
	MaxDiscount          *decimal.Decimal
	MinOrderAmount       decimal.Decimal
	UsageLimit           *int
	UserUsageLimit       int
	ValidFrom            time.Time
	ValidUntil           time.Time
	IsFirstOrderOnly     bool
	IsReferralReward     bool
	ApplicableCategories []string
	ApplicableProducts   []string
	ExcludedCategories   []string
	ExcludedProducts     []string
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires the coupon evaluator.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, now: func() time.Time { return time.Now().UTC() }}, nil
}

// IneligibleError is the COUPON_INELIGIBLE error for reason.
func IneligibleError(code string, reason enums.CouponReason) error {
	return pkgerrors.New(pkgerrors.CodeCouponIneligible, reason.Message()).
		WithDetails(map[string]any{"code": code, "reason": reason})
}

func (s *service) Validate(ctx context.Context, code string, userID uuid.UUID, subtotal decimal.Decimal) (*Eligibility, error) {
	return s.evaluate(ctx, s.repo, code, userID, subtotal, nil)
}

func (s *service) ValidateForItems(ctx context.Context, code string, userID uuid.UUID, subtotal decimal.Decimal, lines []Line) (*Eligibility, error) {
	return s.evaluate(ctx, s.repo, code, userID, subtotal, lines)
}

func (s *service) ValidateForItemsTx(ctx context.Context, tx *gorm.DB, code string, userID uuid.UUID, subtotal decimal.Decimal, lines []Line) (*Eligibility, error) {
	return s.evaluate(ctx, s.repo.WithTx(tx), code, userID, subtotal, lines)
}

func (s *service) evaluate(ctx context.Context, repo Repository, code string, userID uuid.UUID, subtotal decimal.Decimal, lines []Line) (*Eligibility, error) {
	code = NormalizeCode(code)
	if code == "" {
		return ineligible(nil, enums.CouponReasonNotFound), nil
	}

	coupon, err := repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ineligible(nil, enums.CouponReasonNotFound), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}

	now := s.now()
	switch {
	case !coupon.IsActive:
		return ineligible(coupon, enums.CouponReasonInactive), nil
	case now.Before(coupon.ValidFrom):
		return ineligible(coupon, enums.CouponReasonNotStarted), nil
	case now.After(coupon.ValidUntil):
		return ineligible(coupon, enums.CouponReasonExpired), nil
	case coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit:
		return ineligible(coupon, enums.CouponReasonUsageLimitReached), nil
	}

	if coupon.IsFirstOrderOnly {
		placed, err := repo.CountPlacedOrders(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count customer orders")
		}
		if placed > 0 {
			return ineligible(coupon, enums.CouponReasonFirstOrderOnly), nil
		}
	}

	used, err := repo.CountUserUsages(ctx, coupon.ID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count coupon usages")
	}
	if used >= int64(coupon.UserUsageLimit) {
		return ineligible(coupon, enums.CouponReasonUserLimitReached), nil
	}

	if subtotal.LessThan(coupon.MinOrderAmount) {
		return ineligible(coupon, enums.CouponReasonBelowMinOrder), nil
	}

	base := subtotal
	if lines != nil && coupon.HasItemRules() {
		base = EligibleSubtotal(*coupon, lines)
		if !base.IsPositive() {
			return ineligible(coupon, enums.CouponReasonNotApplicable), nil
		}
	}

	return &Eligibility{
		Eligible: true,
		Coupon:   coupon,
		Discount: ComputeDiscount(*coupon, base),
	}, nil
}

func ineligible(coupon *models.Coupon, reason enums.CouponReason) *Eligibility {
	return &Eligibility{Reason: reason, Coupon: coupon, Discount: decimal.Zero}
}

func (s *service) RecordUsageTx(ctx context.Context, tx *gorm.DB, coupon *models.Coupon, userID, orderID uuid.UUID, amount decimal.Decimal) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if coupon == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon is required")
	}
	repo := s.repo.WithTx(tx)

	locked, err := repo.LockByID(ctx, coupon.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return IneligibleError(coupon.Code, enums.CouponReasonNotFound)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock coupon")
	}

	used, err := repo.CountUserUsages(ctx, locked.ID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count coupon usages")
	}
	if used >= int64(locked.UserUsageLimit) {
		return IneligibleError(locked.Code, enums.CouponReasonUserLimitReached)
	}

	affected, err := repo.IncrementUsedCount(ctx, locked.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment coupon usage")
	}
	if affected == 0 {
		return IneligibleError(locked.Code, enums.CouponReasonUsageLimitReached)
	}

	usage := &models.CouponUsage{
		ID:             uuid.New(),
		CouponID:       locked.ID,
		UserID:         userID,
		OrderID:        orderID,
		DiscountAmount: amount.Round(2),
		UsedAt:         s.now(),
	}
	if err := repo.InsertUsage(ctx, usage); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, err, "order already redeemed a coupon").
				WithDetails(map[string]any{"order_id": orderID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert coupon usage")
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"coupon_code": locked.Code,
		"user_id":     userID.String(),
		"discount":    usage.DiscountAmount.StringFixed(2),
	})
	s.logg.Info(logCtx, "coupon redeemed")
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Coupon, error) {
	coupon, err := buildCoupon(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "coupon code already exists").
				WithDetails(map[string]any{"code": coupon.Code})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create coupon")
	}
	s.logg.Info(s.logg.WithField(ctx, "coupon_code", coupon.Code), "coupon created")
	return coupon, nil
}

func buildCoupon(input CreateInput) (*models.Coupon, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if !input.DiscountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type")
	}
	if !input.DiscountValue.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	if input.DiscountType == enums.DiscountTypePercentage && input.DiscountValue.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount must not exceed 100")
	}
	if input.MaxDiscount != nil && !input.MaxDiscount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max discount must be positive")
	}
	if input.MinOrderAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min order amount must not be negative")
	}
	if input.UsageLimit != nil && *input.UsageLimit < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit must be at least 1")
	}
	if input.UserUsageLimit == 0 {
		input.UserUsageLimit = 1
	}
	if input.UserUsageLimit < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user usage limit must be at least 1")
	}
	if !input.ValidUntil.After(input.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid_until must be after valid_from")
	}

	return &models.Coupon{
		ID:                   uuid.New(),
		Code:                 code,
		Description:          input.Description,
		DiscountType:         input.DiscountType,
		DiscountValue:        input.DiscountValue,
		MaxDiscount:          input.MaxDiscount,
		MinOrderAmount:       input.MinOrderAmount,
		UsageLimit:           input.UsageLimit,
		UserUsageLimit:       input.UserUsageLimit,
		ValidFrom:            input.ValidFrom.UTC(),
		ValidUntil:           input.ValidUntil.UTC(),
		IsActive:             true,
		IsFirstOrderOnly:     input.IsFirstOrderOnly,
		IsReferralReward:     input.IsReferralReward,
		ApplicableCategories: pq.StringArray(input.ApplicableCategories),
		ApplicableProducts:   pq.StringArray(input.ApplicableProducts),
		ExcludedCategories:   pq.StringArray(input.ExcludedCategories),
		ExcludedProducts:     pq.StringArray(input.ExcludedProducts),
	}, nil
}

func (s *service) Get(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found").
				WithDetails(map[string]any{"code": NormalizeCode(code)})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	return coupon, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, activeOnly bool) (pagination.Page[models.Coupon], error) {
	rows, total, err := s.repo.List(ctx, params, activeOnly)
	if err != nil {
		return pagination.Page[models.Coupon]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coupons")
	}
	return pagination.NewPage(rows, params, total), nil
}

func (s *service) Deactivate(ctx context.Context, code string) (*models.Coupon, error) {
	code = NormalizeCode(code)
	affected, err := s.repo.Deactivate(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate coupon")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found").
			WithDetails(map[string]any{"code": code})
	}
	s.logg.Info(s.logg.WithField(ctx, "coupon_code", code), "coupon deactivated")
	return s.Get(ctx, code)
}

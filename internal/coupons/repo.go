package coupons

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	"github.com/angelmondragon/dailycart-backend/pkg/pagination"
)

// Repository persists coupons and their redemption facts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	CountUserUsages(ctx context.Context, couponID, userID uuid.UUID) (int64, error)
	CountPlacedOrders(ctx context.Context, userID uuid.UUID) (int64, error)
	IncrementUsedCount(ctx context.Context, couponID uuid.UUID) (int64, error)
	InsertUsage(ctx context.Context, usage *models.CouponUsage) error
	Create(ctx context.Context, coupon *models.Coupon) error
	List(ctx context.Context, params pagination.Params, activeOnly bool) ([]models.Coupon, int64, error)
	Deactivate(ctx context.Context, code string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a coupon repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// LockByID reads the coupon under a row lock so per-user counts taken afterwards
// in the same transaction cannot be raced.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) CountUserUsages(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	return count, err
}

func (r *repository) CountPlacedOrders(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ? AND status <> ?", userID, enums.OrderStatusCancelled).
		Count(&count).Error
	return count, err
}

func (r *repository) IncrementUsedCount(ctx context.Context, couponID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", couponID).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) InsertUsage(ctx context.Context, usage *models.CouponUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *repository) List(ctx context.Context, params pagination.Params, activeOnly bool) ([]models.Coupon, int64, error) {
	params = params.Normalize()
	scoped := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.Coupon{})
		if activeOnly {
			query = query.Where("is_active = ?", true)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Coupon
	err := scoped().
		Order("created_at DESC, code ASC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) Deactivate(ctx context.Context, code string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("code = ?", code).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

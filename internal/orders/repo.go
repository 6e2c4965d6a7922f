package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	"github.com/angelmondragon/dailycart-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	AppendTracking(ctx context.Context, entry *models.OrderTracking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error)
	ListByStatus(ctx context.Context, status *enums.OrderStatus, params pagination.Params) ([]models.Order, int64, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "Tracking").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// AppendTracking numbers the entry after the order's latest one. Callers append
// after the status CAS update, whose row lock serializes appends per order.
func (r *repository) AppendTracking(ctx context.Context, entry *models.OrderTracking) error {
	var last int
	err := r.db.WithContext(ctx).
		Model(&models.OrderTracking{}).
		Where("order_id = ?", entry.OrderID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	if err != nil {
		return err
	}
	entry.Sequence = last + 1
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Tracking", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatusCAS applies updates only while the order is still in from.
func (r *repository) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error) {
	return r.list(ctx, params, func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	})
}

func (r *repository) ListByStatus(ctx context.Context, status *enums.OrderStatus, params pagination.Params) ([]models.Order, int64, error) {
	return r.list(ctx, params, func(db *gorm.DB) *gorm.DB {
		if status == nil {
			return db
		}
		return db.Where("status = ?", *status)
	})
}

func (r *repository) list(ctx context.Context, params pagination.Params, scope func(*gorm.DB) *gorm.DB) ([]models.Order, int64, error) {
	params = params.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Order
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("created_at DESC, id DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

package cart

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
)

// Repository persists carts and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	FindItem(ctx context.Context, cartID, productID, variantID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error
	DeleteItem(ctx context.Context, cartID, productID, variantID uuid.UUID) (int64, error)
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	NextPosition(ctx context.Context, cartID uuid.UUID) (int, error)
	SetCoupon(ctx context.Context, cartID uuid.UUID, code *string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Omit("Items").Create(cart).Error
}

func (r *repository) FindItem(ctx context.Context, cartID, productID, variantID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ? AND variant_id = ?", cartID, productID, variantID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{"quantity": qty, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) DeleteItem(ctx context.Context, cartID, productID, variantID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ? AND variant_id = ?", cartID, productID, variantID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

func (r *repository) NextPosition(ctx context.Context, cartID uuid.UUID) (int, error) {
	var highest sql.NullInt64
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ?", cartID).
		Select("MAX(position)").
		Row().
		Scan(&highest)
	if err != nil {
		return 0, err
	}
	if !highest.Valid {
		return 0, nil
	}
	return int(highest.Int64) + 1, nil
}

func (r *repository) SetCoupon(ctx context.Context, cartID uuid.UUID, code *string) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{"coupon_code": code, "updated_at": time.Now().UTC()}).Error
}

package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
)

// Repository persists catalog variants and their stock counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	FindVariants(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error)
	AddStock(ctx context.Context, id uuid.UUID, delta int) (int64, error)
	CreateVariant(ctx context.Context, variant *models.ProductVariant) error
	SaveVariant(ctx context.Context, variant *models.ProductVariant) error
	ClearDefault(ctx context.Context, productID, keepID uuid.UUID) error
	SetDefault(ctx context.Context, variantID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) FindVariants(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var variants []models.ProductVariant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC, id ASC").
		Find(&variants).Error
	if err != nil {
		return nil, err
	}
	return variants, nil
}

// AddStock applies delta only when the result stays non-negative and reports
// how many rows moved.
func (r *repository) AddStock(ctx context.Context, id uuid.UUID, delta int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Create(variant).Error
}

func (r *repository) SaveVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Save(variant).Error
}

func (r *repository) ClearDefault(ctx context.Context, productID, keepID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("product_id = ? AND id <> ? AND is_default = ?", productID, keepID, true).
		Update("is_default", false).Error
}

func (r *repository) SetDefault(ctx context.Context, variantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("is_default", true).Error
}

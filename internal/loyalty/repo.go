package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
)

// Repository persists loyalty balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, userID uuid.UUID) (*models.LoyaltyAccount, error)
	Credit(ctx context.Context, userID uuid.UUID, points int64) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, userID uuid.UUID) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// Credit adds points to both the spendable balance and the lifetime total,
// opening the account on first credit.
func (r *repository) Credit(ctx context.Context, userID uuid.UUID, points int64) error {
	now := time.Now().UTC()
	account := models.LoyaltyAccount{
		UserID:         userID,
		PointsBalance:  points,
		LifetimePoints: points,
		UpdatedAt:      now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"points_balance":  gorm.Expr("loyalty_accounts.points_balance + ?", points),
				"lifetime_points": gorm.Expr("loyalty_accounts.lifetime_points + ?", points),
				"updated_at":      now,
			}),
		}).
		Create(&account).Error
}

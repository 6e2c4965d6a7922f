package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

// Account is the customer-facing loyalty summary.
type Account struct {
	UserID         uuid.UUID         `json:"user_id"`
	PointsBalance  int64             `json:"points_balance"`
	LifetimePoints int64             `json:"lifetime_points"`
	Tier           enums.LoyaltyTier `json:"tier"`
	NextTierAt     int64             `json:"next_tier_at,omitempty"`
}

type Service interface {
	GetAccount(ctx context.Context, userID uuid.UUID) (*Account, error)
	CreditTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int64) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) GetAccount(ctx context.Context, userID uuid.UUID) (*Account, error) {
	account := &Account{UserID: userID}
	row, err := s.repo.Find(ctx, userID)
	switch {
	case err == nil:
		account.PointsBalance = row.PointsBalance
		account.LifetimePoints = row.LifetimePoints
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load loyalty account")
	}
	account.Tier = enums.TierForPoints(account.LifetimePoints)
	account.NextTierAt = account.Tier.NextTierAt()
	return account, nil
}

func (s *service) CreditTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int64) error {
	if points <= 0 {
		return nil
	}
	if err := s.repo.WithTx(tx).Credit(ctx, userID, points); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "credit loyalty points")
	}
	logCtx := s.logg.WithUserID(ctx, userID.String())
	s.logg.Info(s.logg.WithField(logCtx, "points", points), "loyalty points credited")
	return nil
}

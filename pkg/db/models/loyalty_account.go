package models

import (
	"time"

	"github.com/google/uuid"
)

type LoyaltyAccount struct {
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	PointsBalance  int64     `gorm:"column:points_balance;not null;default:0"`
	LifetimePoints int64     `gorm:"column:lifetime_points;not null;default:0"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog entry customers browse; purchasable units live on ProductVariant.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string           `gorm:"column:name;not null"`
	Category    string           `gorm:"column:category;not null"`
	Brand       *string          `gorm:"column:brand"`
	Description *string          `gorm:"column:description"`
	IsActive    bool             `gorm:"column:is_active;not null"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

// OrderTracking is one append-only status history entry.
type OrderTracking struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	Sequence  int               `gorm:"column:sequence;not null"`
	Status    enums.OrderStatus `gorm:"column:status;not null"`
	Note      string            `gorm:"column:note;not null"`
	UpdatedBy string            `gorm:"column:updated_by;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;not null"`
}

// TableName pins the history table name.
func (OrderTracking) TableName() string {
	return "order_tracking"
}

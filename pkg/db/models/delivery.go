package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Delivery is a fulfillment worker: a stock handler or a driver. Its current
// orders are the picked-up orders whose delivery_id points at it.
type Delivery struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name             string           `gorm:"column:name;not null"`
	Phone            string           `gorm:"column:phone;not null;uniqueIndex"`
	PasswordHash     string           `gorm:"column:password_hash;not null"`
	Role             enums.WorkerRole `gorm:"column:role;not null"`
	DateOfAssignment *time.Time       `gorm:"column:date_of_assignment"`
	IsDeleted        bool             `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Delivery) TableName() string {
	return "deliveries"
}

func (d *Delivery) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Voucher carries exactly one of DiscountPercentage or DiscountValue.
type Voucher struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name               string           `gorm:"column:name;not null;uniqueIndex"`
	DiscountPercentage *decimal.Decimal `gorm:"column:discount_percentage;type:numeric(5,2)"`
	DiscountValue      *decimal.Decimal `gorm:"column:discount_value;type:numeric(10,2)"`
	StartDate          time.Time        `gorm:"column:start_date;not null"`
	EndDate            *time.Time       `gorm:"column:end_date"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *Voucher) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}

// ActiveAt reports whether at falls inside [StartDate, EndDate].
func (v Voucher) ActiveAt(at time.Time) bool {
	if at.Before(v.StartDate) {
		return false
	}
	return v.EndDate == nil || !at.After(*v.EndDate)
}

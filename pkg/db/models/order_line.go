package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLine freezes a cart line at purchase time. ProductID is kept for
// reference only; later catalog edits do not reach the line.
type OrderLine struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID          uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName        string          `gorm:"column:product_name;not null"`
	UnitPrice          decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	DiscountPercentage decimal.Decimal `gorm:"column:discount_percentage;type:numeric(5,2);not null"`
	EffectiveUnitPrice decimal.Decimal `gorm:"column:effective_unit_price;type:numeric(10,2);not null"`
	Quantity           int             `gorm:"column:quantity;not null"`
	LineTotal          decimal.Decimal `gorm:"column:line_total;type:numeric(10,2);not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

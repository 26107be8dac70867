package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is the snapshot produced by checkout. Lines and amounts never change
// after creation; only the fulfillment fields move.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	User            *User             `gorm:"foreignKey:UserID"`
	AddressID       *uuid.UUID        `gorm:"column:address_id;type:uuid"`
	ShippingAddress string            `gorm:"column:shipping_address;not null"`
	VoucherName     *string           `gorm:"column:voucher_name"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(10,2);not null"`
	Discount        decimal.Decimal   `gorm:"column:discount;type:numeric(10,2);not null"`
	Price           decimal.Decimal   `gorm:"column:price;type:numeric(10,2);not null"`
	Status          enums.OrderStatus `gorm:"column:status;not null;index"`
	Lines           []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	DeliveryID      *uuid.UUID        `gorm:"column:delivery_id;type:uuid;index"`
	Delivery        *Delivery         `gorm:"foreignKey:DeliveryID"`
	ScheduledFor    *time.Time        `gorm:"column:scheduled_for"`
	AssignedAt      *time.Time        `gorm:"column:assigned_at"`
	DeliveredAt     *time.Time        `gorm:"column:delivered_at"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

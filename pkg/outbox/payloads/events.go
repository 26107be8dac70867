package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLine is the purchased quantity of one product.
type OrderLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderCreatedEvent is emitted by checkout.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID       `json:"order_id"`
	UserID       uuid.UUID       `json:"user_id"`
	AddressID    *uuid.UUID      `json:"address_id,omitempty"`
	VoucherName  *string         `json:"voucher_name,omitempty"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Price        decimal.Decimal `json:"price"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
	Lines        []OrderLine     `json:"lines"`
}

// OrderStatusChangedEvent is emitted by every accepted delivery transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
	WorkerID   uuid.UUID         `json:"worker_id"`
	WorkerRole enums.WorkerRole  `json:"worker_role"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// OrderDeletedEvent is emitted when an admin removes an order.
type OrderDeletedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	Status  enums.OrderStatus `json:"status"`
}

// VoucherExpiredEvent is emitted by the voucher_expiry cron job.
type VoucherExpiredEvent struct {
	VoucherID       uuid.UUID `json:"voucher_id"`
	Name            string    `json:"name"`
	EndDate         time.Time `json:"end_date"`
	DetachedWallets int64     `json:"detached_wallets"`
}

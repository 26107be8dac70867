package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// LineDTO is the JSON view of an order line snapshot.
type LineDTO struct {
	ID                 uuid.UUID       `json:"id"`
	ProductID          uuid.UUID       `json:"productId"`
	ProductName        string          `json:"productName"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	EffectiveUnitPrice decimal.Decimal `json:"effectiveUnitPrice"`
	Quantity           int             `json:"quantity"`
	LineTotal          decimal.Decimal `json:"lineTotal"`
}

// OrderDTO is the JSON view of an order.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"userId"`
	AddressID       *uuid.UUID        `json:"addressId,omitempty"`
	ShippingAddress string            `json:"shippingAddress"`
	VoucherName     *string           `json:"voucherName,omitempty"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Discount        decimal.Decimal   `json:"discount"`
	Price           decimal.Decimal   `json:"price"`
	Status          enums.OrderStatus `json:"status"`
	DeliveryID      *uuid.UUID        `json:"deliveryId,omitempty"`
	ScheduledFor    *time.Time        `json:"scheduledFor,omitempty"`
	AssignedAt      *time.Time        `json:"assignedAt,omitempty"`
	DeliveredAt     *time.Time        `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	Lines           []LineDTO         `json:"lines"`
}

// UpdateInput is the admin patch. Status is owned by the delivery workflow.
type UpdateInput struct {
	ScheduledFor  *time.Time
	ClearSchedule bool
}

// FromModel maps an order row to its DTO.
func FromModel(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		AddressID:       o.AddressID,
		ShippingAddress: o.ShippingAddress,
		VoucherName:     o.VoucherName,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		Price:           o.Price,
		Status:          o.Status,
		DeliveryID:      o.DeliveryID,
		ScheduledFor:    o.ScheduledFor,
		AssignedAt:      o.AssignedAt,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Lines:           make([]LineDTO, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		dto.Lines = append(dto.Lines, LineDTO{
			ID:                 l.ID,
			ProductID:          l.ProductID,
			ProductName:        l.ProductName,
			UnitPrice:          l.UnitPrice,
			DiscountPercentage: l.DiscountPercentage,
			EffectiveUnitPrice: l.EffectiveUnitPrice,
			Quantity:           l.Quantity,
			LineTotal:          l.LineTotal,
		})
	}
	return dto
}

// FromModels maps a slice of orders.
func FromModels(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for _, o := range rows {
		out = append(out, FromModel(o))
	}
	return out
}

func cursorKey(o models.Order) pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

func toPage(rows []models.Order, limit int) pagination.Page[OrderDTO] {
	page := pagination.Build(rows, limit, cursorKey)
	return pagination.Page[OrderDTO]{Items: FromModels(page.Items), NextCursor: page.NextCursor}
}

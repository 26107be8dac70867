package vouchers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// VoucherDTO is the JSON shape of a voucher.
type VoucherDTO struct {
	ID                 uuid.UUID        `json:"id"`
	Name               string           `json:"name"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage,omitempty"`
	DiscountValue      *decimal.Decimal `json:"discountValue,omitempty"`
	StartDate          time.Time        `json:"startDate"`
	EndDate            *time.Time       `json:"endDate,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
}

func ToDTO(v models.Voucher) VoucherDTO {
	return VoucherDTO{
		ID:                 v.ID,
		Name:               v.Name,
		DiscountPercentage: v.DiscountPercentage,
		DiscountValue:      v.DiscountValue,
		StartDate:          v.StartDate,
		EndDate:            v.EndDate,
		CreatedAt:          v.CreatedAt,
	}
}

func ToDTOs(rows []models.Voucher) []VoucherDTO {
	out := make([]VoucherDTO, 0, len(rows))
	for _, v := range rows {
		out = append(out, ToDTO(v))
	}
	return out
}

// CreateInput is the admin payload for a new voucher.
type CreateInput struct {
	Name               string
	DiscountPercentage *decimal.Decimal
	DiscountValue      *decimal.Decimal
	StartDate          *time.Time
	EndDate            *time.Time
}

// UpdateInput changes the provided fields only. Supplying one discount kind
// replaces the other.
type UpdateInput struct {
	Name               *string
	DiscountPercentage *decimal.Decimal
	DiscountValue      *decimal.Decimal
	StartDate          *time.Time
	EndDate            *time.Time
}

// ExpiryResult summarises one voucher_expiry sweep.
type ExpiryResult struct {
	Vouchers        int
	DetachedWallets int64
}

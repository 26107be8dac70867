package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Exactly one discount kind is accepted per voucher.
type createVoucherRequest struct {
	Name               string           `json:"name" validate:"required,min=1,max=64"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage" validate:"required_without=DiscountValue,excluded_with=DiscountValue"`
	DiscountValue      *decimal.Decimal `json:"discountValue"`
	StartDate          *time.Time       `json:"startDate"`
	EndDate            *time.Time       `json:"endDate"`
}

type updateVoucherRequest struct {
	Name               *string          `json:"name" validate:"omitempty,min=1,max=64"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage" validate:"excluded_with=DiscountValue"`
	DiscountValue      *decimal.Decimal `json:"discountValue"`
	StartDate          *time.Time       `json:"startDate"`
	EndDate            *time.Time       `json:"endDate"`
}

func AdminCreateVoucher(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("voucher service"))
			return
		}
		var req createVoucherRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.Create(r.Context(), vouchers.CreateInput{
			Name:               req.Name,
			DiscountPercentage: req.DiscountPercentage,
			DiscountValue:      req.DiscountValue,
			StartDate:          req.StartDate,
			EndDate:            req.EndDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, vouchers.ToDTO(*created))
	}
}

func AdminUpdateVoucher(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("voucher service"))
			return
		}
		id, err := validators.PathUUID(r, "voucherId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateVoucherRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.Update(r.Context(), id, vouchers.UpdateInput{
			Name:               req.Name,
			DiscountPercentage: req.DiscountPercentage,
			DiscountValue:      req.DiscountValue,
			StartDate:          req.StartDate,
			EndDate:            req.EndDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vouchers.ToDTO(*updated))
	}
}

func AdminListVouchers(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("voucher service"))
			return
		}
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vouchers.ToDTOs(rows))
	}
}

func AdminGetVoucher(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("voucher service"))
			return
		}
		id, err := validators.PathUUID(r, "voucherId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		found, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vouchers.ToDTO(*found))
	}
}

// AdminDeleteVoucher removes the voucher and detaches it from every wallet.
func AdminDeleteVoucher(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("voucher service"))
			return
		}
		id, err := validators.PathUUID(r, "voucherId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

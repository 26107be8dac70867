package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// checkoutRequest selects the shipping address either by id or by its
// 1-based position in the caller's address book.
type checkoutRequest struct {
	AddressID    *uuid.UUID `json:"addressId" validate:"required_without=AddressIndex,excluded_with=AddressIndex"`
	AddressIndex *int       `json:"addressIndex" validate:"omitempty,gte=1"`
	VoucherName  *string    `json:"voucherName" validate:"omitempty,min=1,max=64"`
	ScheduledFor *time.Time `json:"scheduledFor"`
}

// Checkout converts the caller's cart into an order.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("checkout service"))
			return
		}
		p, err := customer(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Checkout(r.Context(), checkout.Input{
			UserID:       p.ID,
			AddressID:    req.AddressID,
			AddressIndex: req.AddressIndex,
			VoucherName:  req.VoucherName,
			ScheduledFor: req.ScheduledFor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, orders.FromModel(*order))
	}
}

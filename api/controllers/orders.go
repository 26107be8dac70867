package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type orderPage = pagination.Page[orders.OrderDTO]

type updateOrderRequest struct {
	ScheduledFor  *time.Time `json:"scheduledFor" validate:"excluded_with=ClearSchedule"`
	ClearSchedule bool       `json:"clearSchedule"`
}

// MyOrders lists the caller's orders, newest first.
func MyOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		p, err := customer(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListByUser(r.Context(), p.ID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// MyOrder returns one of the caller's orders. Orders of other users are
// reported as not found.
func MyOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		p, err := customer(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetForUser(r.Context(), p.ID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func AdminOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderPage(svc, logg, func(r *http.Request, params pagination.Params) (orderPage, error) {
		return svc.List(r.Context(), params)
	})
}

func AdminDeliveredOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderPage(svc, logg, func(r *http.Request, params pagination.Params) (orderPage, error) {
		return svc.ListDelivered(r.Context(), params)
	})
}

func AdminPendingOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderPage(svc, logg, func(r *http.Request, params pagination.Params) (orderPage, error) {
		return svc.ListPending(r.Context(), params)
	})
}

// AdminOrdersByStatus filters on {status}. Spaces may be written as "-" or
// "_" in the path, so "picked-up" selects picked up orders.
func AdminOrdersByStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderPage(svc, logg, func(r *http.Request, params pagination.Params) (orderPage, error) {
		return svc.ListByStatus(r.Context(), chi.URLParam(r, "status"), params)
	})
}

func AdminUserOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminOrderPage(svc, logg, func(r *http.Request, params pagination.Params) (orderPage, error) {
		userID, err := validators.PathUUID(r, "userId")
		if err != nil {
			return orderPage{}, err
		}
		return svc.ListByUser(r.Context(), userID, params)
	})
}

func AdminGetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		id, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminUpdateOrder reschedules an order or clears its schedule.
func AdminUpdateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		id, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Update(r.Context(), id, orders.UpdateInput{
			ScheduledFor:  req.ScheduledFor,
			ClearSchedule: req.ClearSchedule,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func AdminDeleteOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		p, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id, actorRef(p)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func adminOrderPage(svc orders.Service, logg *logger.Logger, list func(*http.Request, pagination.Params) (orderPage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders service"))
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := list(r, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

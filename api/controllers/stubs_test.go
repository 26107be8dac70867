package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/delivery"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard, Format: "json"})
}

func newRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func asPrincipal(req *http.Request, kind enums.PrincipalKind, role enums.UserRole, id uuid.UUID) *http.Request {
	ctx := middleware.WithPrincipal(req.Context(), middleware.Principal{ID: id, Kind: kind, Role: role, AccessID: "access-1"})
	return req.WithContext(ctx)
}

func asCustomer(req *http.Request, id uuid.UUID) *http.Request {
	return asPrincipal(req, enums.PrincipalUser, enums.UserRoleCustomer, id)
}

func withURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return env
}

type stubCheckout struct {
	calls int
	input checkout.Input
	order *models.Order
	err   error
}

func (s *stubCheckout) Checkout(_ context.Context, input checkout.Input) (*models.Order, error) {
	s.calls++
	s.input = input
	return s.order, s.err
}

type stubCart struct {
	cart.Service
	userID uuid.UUID
	lineID uuid.UUID
	line   *cart.LineView
	err    error
}

func (s *stubCart) IncrementCounter(_ context.Context, userID, lineID uuid.UUID) (*cart.LineView, error) {
	s.userID, s.lineID = userID, lineID
	return s.line, s.err
}

func (s *stubCart) RemoveFromCart(_ context.Context, userID, productID uuid.UUID) (*cart.CartView, error) {
	s.userID = userID
	return &cart.CartView{UserID: userID}, s.err
}

type stubOrders struct {
	orders.Service
	status  string
	params  pagination.Params
	deleted uuid.UUID
	actor   *outbox.ActorRef
	err     error
}

func (s *stubOrders) ListByStatus(_ context.Context, status string, params pagination.Params) (pagination.Page[orders.OrderDTO], error) {
	s.status, s.params = status, params
	return pagination.Page[orders.OrderDTO]{Items: []orders.OrderDTO{}}, s.err
}

func (s *stubOrders) Delete(_ context.Context, id uuid.UUID, actor *outbox.ActorRef) error {
	s.deleted, s.actor = id, actor
	return s.err
}

type stubDelivery struct {
	delivery.Service
	workerID   uuid.UUID
	orderID    uuid.UUID
	transition *delivery.Transition
	err        error
}

func (s *stubDelivery) ChangeOrderStatus(_ context.Context, workerID, orderID uuid.UUID) (*delivery.Transition, error) {
	s.workerID, s.orderID = workerID, orderID
	return s.transition, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// stubVouchers panics if any method is reached.
type stubVouchers struct {
	vouchers.Service
}

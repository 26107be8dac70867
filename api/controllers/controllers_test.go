package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/delivery"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestCheckoutPassesSelectionAndReturnsCreated(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	svc := &stubCheckout{order: &models.Order{
		ID:       orderID,
		UserID:   userID,
		Status:   enums.OrderStatusOrdered,
		Subtotal: decimal.NewFromInt(20),
		Price:    decimal.NewFromInt(18),
	}}

	req := asCustomer(newRequest(http.MethodPost, "/api/v1/checkout", `{"addressIndex":2,"voucherName":"SAVE10"}`), userID)
	rec := httptest.NewRecorder()
	Checkout(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, userID, svc.input.UserID)
	require.NotNil(t, svc.input.AddressIndex)
	assert.Equal(t, 2, *svc.input.AddressIndex)
	assert.Nil(t, svc.input.AddressID)
	require.NotNil(t, svc.input.VoucherName)
	assert.Equal(t, "SAVE10", *svc.input.VoucherName)

	var dto orders.OrderDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &dto))
	assert.Equal(t, orderID, dto.ID)
	assert.Equal(t, enums.OrderStatusOrdered, dto.Status)
	assert.True(t, dto.Price.Equal(decimal.NewFromInt(18)))
}

func TestCheckoutRejectsAmbiguousOrMissingAddress(t *testing.T) {
	bodies := map[string]string{
		"both":    `{"addressId":"` + uuid.NewString() + `","addressIndex":1}`,
		"neither": `{"voucherName":"SAVE10"}`,
		"zero":    `{"addressIndex":0}`,
		"unknown": `{"addressIndex":1,"coupon":"x"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			svc := &stubCheckout{}
			rec := httptest.NewRecorder()
			Checkout(svc, testLogger()).ServeHTTP(rec, asCustomer(newRequest(http.MethodPost, "/api/v1/checkout", body), uuid.New()))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, rec).Error.Code)
			assert.Zero(t, svc.calls)
		})
	}
}

func TestCheckoutRequiresUserAccount(t *testing.T) {
	svc := &stubCheckout{}
	body := `{"addressIndex":1}`

	rec := httptest.NewRecorder()
	Checkout(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/checkout", body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := asPrincipal(newRequest(http.MethodPost, "/api/v1/checkout", body), enums.PrincipalWorker, enums.UserRoleDelivery, uuid.New())
	Checkout(svc, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestCheckoutMapsOutOfStock(t *testing.T) {
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeOutOfStock, "Widget is out of stock")}
	rec := httptest.NewRecorder()
	Checkout(svc, testLogger()).ServeHTTP(rec, asCustomer(newRequest(http.MethodPost, "/api/v1/checkout", `{"addressIndex":1}`), uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "OUT_OF_STOCK", env.Error.Code)
	assert.Equal(t, "Widget is out of stock", env.Error.Message)
}

func TestCartIncrementUsesLineParam(t *testing.T) {
	userID, lineID := uuid.New(), uuid.New()
	svc := &stubCart{line: &cart.LineView{ID: lineID, Counter: 3}}

	req := withURLParams(asCustomer(newRequest(http.MethodPost, "/", ""), userID), "cartItemId", lineID.String())
	rec := httptest.NewRecorder()
	CartIncrement(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, svc.userID)
	assert.Equal(t, lineID, svc.lineID)
	var line cart.LineView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &line))
	assert.Equal(t, 3, line.Counter)
}

func TestCartRemoveRejectsMalformedID(t *testing.T) {
	svc := &stubCart{}
	req := withURLParams(asCustomer(newRequest(http.MethodDelete, "/", ""), uuid.New()), "productId", "not-a-uuid")
	rec := httptest.NewRecorder()
	CartRemoveItem(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, uuid.Nil, svc.userID)
}

func TestDeliveryAdvanceOrder(t *testing.T) {
	workerID, orderID := uuid.New(), uuid.New()
	svc := &stubDelivery{transition: &delivery.Transition{
		From:  enums.OrderStatusInProgress,
		To:    enums.OrderStatusPickedUp,
		Order: orders.OrderDTO{ID: orderID, Status: enums.OrderStatusPickedUp},
	}}

	req := asPrincipal(newRequest(http.MethodPost, "/", ""), enums.PrincipalWorker, enums.UserRoleDelivery, workerID)
	req = withURLParams(req, "orderId", orderID.String())
	rec := httptest.NewRecorder()
	DeliveryAdvanceOrder(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, workerID, svc.workerID)
	assert.Equal(t, orderID, svc.orderID)
	var tr delivery.Transition
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &tr))
	assert.Equal(t, enums.OrderStatusPickedUp, tr.To)
}

func TestDeliveryAdvanceOrderRefusesCustomers(t *testing.T) {
	svc := &stubDelivery{}
	req := withURLParams(asCustomer(newRequest(http.MethodPost, "/", ""), uuid.New()), "orderId", uuid.NewString())
	rec := httptest.NewRecorder()
	DeliveryAdvanceOrder(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, uuid.Nil, svc.orderID)
}

func TestDeliveryAdvanceOrderMapsStateConflict(t *testing.T) {
	svc := &stubDelivery{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order already delivered")}
	req := asPrincipal(newRequest(http.MethodPost, "/", ""), enums.PrincipalWorker, enums.UserRoleDelivery, uuid.New())
	req = withURLParams(req, "orderId", uuid.NewString())
	rec := httptest.NewRecorder()
	DeliveryAdvanceOrder(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdminOrdersByStatusPassesPathAndPaging(t *testing.T) {
	svc := &stubOrders{}
	req := withURLParams(newRequest(http.MethodGet, "/?limit=5", ""), "status", "picked-up")
	rec := httptest.NewRecorder()
	AdminOrdersByStatus(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "picked-up", svc.status)
	assert.Equal(t, 5, svc.params.Limit)
}

func TestAdminOrdersRejectsOversizedLimit(t *testing.T) {
	svc := &stubOrders{}
	req := withURLParams(newRequest(http.MethodGet, "/?limit=1000", ""), "status", "ordered")
	rec := httptest.NewRecorder()
	AdminOrdersByStatus(svc, testLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.status)
}

func TestAdminDeleteOrderRecordsActor(t *testing.T) {
	adminID, orderID := uuid.New(), uuid.New()
	svc := &stubOrders{}
	req := asPrincipal(newRequest(http.MethodDelete, "/", ""), enums.PrincipalUser, enums.UserRoleAdmin, adminID)
	req = withURLParams(req, "orderId", orderID.String())
	rec := httptest.NewRecorder()
	AdminDeleteOrder(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, orderID, svc.deleted)
	require.NotNil(t, svc.actor)
	assert.Equal(t, adminID, svc.actor.ID)
	assert.Equal(t, enums.UserRoleAdmin, svc.actor.Role)
}

func TestCreateVoucherRequiresExactlyOneDiscountKind(t *testing.T) {
	for name, body := range map[string]string{
		"both": `{"name":"SAVE","discountPercentage":10,"discountValue":"5.00"}`,
		"none": `{"name":"SAVE"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			AdminCreateVoucher(stubVouchers{}, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/", body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestNilServiceAnswersInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	CartGet(nil, testLogger()).ServeHTTP(rec, asCustomer(newRequest(http.MethodGet, "/", ""), uuid.New()))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, testLogger(), ReadinessCheck{Name: "db", Pinger: stubPinger{}}).ServeHTTP(rec, newRequest(http.MethodGet, "/health/ready", ""))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthReady(cfg, testLogger(),
		ReadinessCheck{Name: "db", Pinger: stubPinger{}},
		ReadinessCheck{Name: "redis", Pinger: stubPinger{err: errors.New("dial tcp: refused")}},
	).ServeHTTP(rec, newRequest(http.MethodGet, "/health/ready", ""))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DEPENDENCY_ERROR", decodeEnvelope(t, rec).Error.Code)
}

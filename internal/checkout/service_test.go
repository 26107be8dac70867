package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type fixture struct {
	client   *db.Client
	svc      Service
	vouchers vouchers.Service
	registry *prometheus.Registry
	user     models.User
	addrs    []models.Address
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

func newFixture(t *testing.T, emitter outbox.Emitter) *fixture {
	t.Helper()
	client := dbtest.NewClient(t)
	realEmitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	if emitter == nil {
		emitter = realEmitter
	}

	addrSvc, err := address.NewService(address.NewRepository(client.DB()))
	require.NoError(t, err)
	voucherSvc, err := vouchers.NewService(vouchers.NewRepository(client.DB()), client, realEmitter)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(client.DB()),
		Tx:         client,
		Addresses:  addrSvc,
		Vouchers:   voucherSvc,
		Outbox:     emitter,
		Metrics:    metrics.NewCheckoutMetrics(reg),
	})
	require.NoError(t, err)

	user := dbtest.User(t, client.DB())
	base := time.Now().UTC().Add(-time.Hour)
	addrs := []models.Address{
		dbtest.Address(t, client.DB(), user.ID, base),
		dbtest.Address(t, client.DB(), user.ID, base.Add(time.Minute)),
	}
	return &fixture{client: client, svc: svc, vouchers: voucherSvc, registry: reg, user: user, addrs: addrs}
}

func (f *fixture) stockOf(t *testing.T, id uuid.UUID) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, f.client.DB().First(&p, "id = ?", id).Error)
	return p
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.client.DB().Model(model).Count(&n).Error)
	return n
}

func intPtr(v int) *int { return &v }

func TestNewServiceValidatesParams(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCheckoutHappyPath(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	product := dbtest.Product(t, f.client.DB(), "100", "20", 5)
	dbtest.CartLine(t, f.client.DB(), f.user.ID, product.ID, 2)

	order, err := f.svc.Checkout(ctx, Input{UserID: f.user.ID, AddressID: &f.addrs[1].ID})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusOrdered, order.Status)
	assert.True(t, order.Price.Equal(decimal.NewFromInt(160)), "price %s", order.Price)
	assert.True(t, order.Discount.IsZero())
	require.NotNil(t, order.AddressID)
	assert.Equal(t, f.addrs[1].ID, *order.AddressID)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 2, order.Lines[0].Quantity)
	assert.True(t, order.Lines[0].EffectiveUnitPrice.Equal(decimal.NewFromInt(80)))

	stored := f.stockOf(t, product.ID)
	assert.Equal(t, 3, stored.Stock)
	assert.Equal(t, 2, stored.NumberOfSales)
	assert.Zero(t, f.count(t, &models.CartItem{}))

	var persisted models.Order
	require.NoError(t, f.client.DB().Preload("Lines").First(&persisted, "id = ?", order.ID).Error)
	assert.True(t, persisted.Price.Equal(order.Price))
	assert.Len(t, persisted.Lines, 1)

	var event models.OutboxEvent
	require.NoError(t, f.client.DB().First(&event).Error)
	assert.Equal(t, enums.EventOrderCreated, event.EventType)
	assert.Equal(t, order.ID, event.AggregateID)
	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(event.Payload, &envelope))
	var data payloads.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, f.user.ID, data.UserID)
	require.Len(t, data.Lines, 1)
}

func TestCheckoutAddressIndexBounds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	product := dbtest.Product(t, f.client.DB(), "10", "0", 100)

	for _, idx := range []int{0, 3} {
		dbtest.CartLine(t, f.client.DB(), f.user.ID, product.ID, 1)
		_, err := f.svc.Checkout(ctx, Input{UserID: f.user.ID, AddressIndex: intPtr(idx)})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "index %d: %v", idx, err)
		assert.Equal(t, "Invalid address index. User has 2 address(es).", pkgerrors.As(err).Message())
		require.NoError(t, f.client.DB().Where("user_id = ?", f.user.ID).Delete(&models.CartItem{}).Error)
	}

	for idx, want := range map[int]uuid.UUID{1: f.addrs[0].ID, 2: f.addrs[1].ID} {
		dbtest.CartLine(t, f.client.DB(), f.user.ID, product.ID, 1)
		order, err := f.svc.Checkout(ctx, Input{UserID: f.user.ID, AddressIndex: intPtr(idx)})
		require.NoError(t, err, "index %d", idx)
		assert.Equal(t, want, *order.AddressID)
	}
	assert.Equal(t, int64(2), f.count(t, &models.Order{}))
}

func TestCheckoutOutOfStockLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	empty := dbtest.Product(t, f.client.DB(), "10", "0", 0)
	other := dbtest.Product(t, f.client.DB(), "10", "0", 5)
	dbtest.CartLine(t, f.client.DB(), f.user.ID, empty.ID, 1)
	dbtest.CartLine(t, f.client.DB(), f.user.ID, other.ID, 2)

	_, err := f.svc.Checkout(ctx, Input{UserID: f.user.ID, AddressIndex: intPtr(1)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock), "got %v", err)
	assert.Equal(t, outOfStockMessage, pkgerrors.As(err).Message())

	assert.Zero(t, f.count(t, &models.Order{}))
	assert.Zero(t, f.count(t, &models.OutboxEvent{}))
	assert.Equal(t, 5, f.stockOf(t, other.ID).Stock)
	assert.Equal(t, int64(2), f.count(t, &models.CartItem{}))
	assert.Equal(t, 1.0, counterValue(t, f.registry, metrics.OutcomeOutOfStock))
}

func TestCheckoutLosingStockRaceRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	plenty := dbtest.Product(t, f.client.DB(), "5", "0", 50)
	scarce := dbtest.Product(t, f.client.DB(), "5", "0", 1)
	dbtest.CartLine(t, f.client.DB(), f.user.ID, plenty.ID, 3)
	dbtest.CartLine(t, f.client.DB(), f.user.ID, scarce.ID, 2)

	_, err := f.svc.Checkout(ctx, Input{UserID: f.user.ID, AddressIndex: intPtr(1)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock), "got %v", err)

	assert.Zero(t, f.count(t, &models.Order{}))
	assert.Zero(t, f.count(t, &models.OrderLine{}))
	assert.Zero(t, f.count(t, &models.OutboxEvent{}))
	assert.Equal(t, 50, f.stockOf(t, plenty.ID).Stock)
	assert.Equal(t, 0, f.stockOf(t, plenty.ID).NumberOfSales)
	assert.Equal(t, 1, f.stockOf(t, scarce.ID).Stock)
	assert.Equal(t, int64(2), f.count(t, &models.CartItem{}))
}

func TestCheckoutPreconditions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, Input{UserID: uuid.New(), AddressIndex: intPtr(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "unknown user: %v", err)

	_, err = f.svc.Checkout(ctx, Input{UserID: f.user.ID, AddressIndex: intPtr(1)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "empty cart: %v", err)
	assert.Equal(t, "cart is empty", pkgerrors.As(err).Message())

	missing := uuid.New()
	_, err = f.svc.Checkout(ctx, Input{UserID: f.user.ID, AddressID: &missing})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "foreign address: %v", err)

	past := time.Now().Add(-time.Hour)
	_, err = f.svc.Checkout(ctx, Input{UserID: f.user.ID, AddressIndex: intPtr(1), ScheduledFor: &past})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "past schedule: %v", err)

	product := dbtest.Product(t, f.client.DB(), "10", "0", 5)
	dbtest.CartLine(t, f.client.DB(), f.user.ID, product.ID, 1)
	name := "NOPE"
	_, err = f.svc.Checkout(ctx, Input{UserID: f.user.ID, AddressIndex: intPtr(1), VoucherName: &name})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "unknown voucher: %v", err)
	assert.Equal(t, 5, f.stockOf(t, product.ID).Stock)
}

func TestCheckoutAppliesVoucher(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	value := decimal.NewFromInt(25)
	_, err := f.vouchers.Create(ctx, vouchers.CreateInput{Name: "FLAT25", DiscountValue: &value})
	require.NoError(t, err)

	product := dbtest.Product(t, f.client.DB(), "100", "20", 5)
	dbtest.CartLine(t, f.client.DB(), f.user.ID, product.ID, 3)
	name := "FLAT25"
	scheduled := time.Now().Add(24 * time.Hour).UTC()

	order, err := f.svc.Checkout(ctx, Input{UserID: f.user.ID, AddressIndex: intPtr(2), VoucherName: &name, ScheduledFor: &scheduled})
	require.NoError(t, err)
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(240)), "subtotal %s", order.Subtotal)
	assert.True(t, order.Discount.Equal(decimal.NewFromInt(25)), "discount %s", order.Discount)
	assert.True(t, order.Price.Equal(decimal.NewFromInt(215)), "price %s", order.Price)
	require.NotNil(t, order.VoucherName)
	assert.Equal(t, "FLAT25", *order.VoucherName)
	require.NotNil(t, order.ScheduledFor)
}

func TestCheckoutRollsBackWhenOutboxFails(t *testing.T) {
	f := newFixture(t, failingEmitter{})
	product := dbtest.Product(t, f.client.DB(), "10", "0", 5)
	dbtest.CartLine(t, f.client.DB(), f.user.ID, product.ID, 1)

	_, err := f.svc.Checkout(context.Background(), Input{UserID: f.user.ID, AddressIndex: intPtr(1)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal), "got %v", err)
	assert.Zero(t, f.count(t, &models.Order{}))
	assert.Equal(t, 5, f.stockOf(t, product.ID).Stock)
	assert.Equal(t, int64(1), f.count(t, &models.CartItem{}))
}

func counterValue(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "storefront_checkout_attempts_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, vouchers.Service, *db.Client) {
	t.Helper()
	client := dbtest.NewClient(t)
	voucherSvc, err := vouchers.NewService(vouchers.NewRepository(client.DB()), client, outbox.NewService(outbox.NewRepository(client.DB()), nil))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(client.DB()), voucherSvc)
	require.NoError(t, err)
	return svc, voucherSvc, client
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, pkgerrors.CodeOf(err), err.Error())
}

func TestWishlistIsIdempotent(t *testing.T) {
	svc, _, client := newTestService(t)
	ctx := context.Background()
	user := dbtest.User(t, client.DB())
	product := dbtest.Product(t, client.DB(), "10", "0", 1)

	require.NoError(t, svc.AddToWishlist(ctx, user.ID, product.ID))
	require.NoError(t, svc.AddToWishlist(ctx, user.ID, product.ID))

	list, err := svc.Wishlist(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, product.ID, list[0].ID)

	requireCode(t, svc.AddToWishlist(ctx, user.ID, uuid.New()), pkgerrors.CodeNotFound)
	requireCode(t, svc.AddToWishlist(ctx, uuid.New(), product.ID), pkgerrors.CodeNotFound)

	require.NoError(t, svc.RemoveFromWishlist(ctx, user.ID, product.ID))
	require.NoError(t, svc.RemoveFromWishlist(ctx, user.ID, product.ID))
	list, err = svc.Wishlist(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestVoucherWallet(t *testing.T) {
	svc, voucherSvc, client := newTestService(t)
	ctx := context.Background()
	user := dbtest.User(t, client.DB())

	pct := decimal.NewFromInt(10)
	start := time.Now().UTC().Add(-time.Hour)
	created, err := voucherSvc.Create(ctx, vouchers.CreateInput{Name: "WELCOME", DiscountPercentage: &pct, StartDate: &start})
	require.NoError(t, err)

	claimed, err := svc.AddVoucher(ctx, user.ID, "WELCOME")
	require.NoError(t, err)
	assert.Equal(t, created.ID, claimed.ID)
	_, err = svc.AddVoucher(ctx, user.ID, "WELCOME")
	require.NoError(t, err)

	wallet, err := svc.Vouchers(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, wallet, 1)
	assert.Equal(t, "WELCOME", wallet[0].Name)

	_, err = svc.AddVoucher(ctx, user.ID, "NOPE")
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = svc.AddVoucher(ctx, user.ID, " ")
	requireCode(t, err, pkgerrors.CodeValidation)

	require.NoError(t, svc.RemoveVoucher(ctx, user.ID, created.ID))
	requireCode(t, svc.RemoveVoucher(ctx, user.ID, created.ID), pkgerrors.CodeNotFound)
}

func TestStats(t *testing.T) {
	svc, _, client := newTestService(t)
	ctx := context.Background()
	conn := client.DB()

	empty, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalCustomers)
	assert.True(t, empty.OrderedUsersPercentage.IsZero())

	buyer := dbtest.User(t, conn)
	dbtest.User(t, conn)
	dbtest.User(t, conn)
	dbtest.Order(t, conn, buyer.ID, enums.OrderStatusOrdered)
	dbtest.Order(t, conn, buyer.ID, enums.OrderStatusDelivered)

	admin := models.User{Name: "Admin", Email: "admin@example.com", PasswordHash: "x", Role: enums.UserRoleAdmin}
	require.NoError(t, conn.Create(&admin).Error)
	dbtest.Order(t, conn, admin.ID, enums.OrderStatusOrdered)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalCustomers)
	assert.True(t, stats.OrderedUsersPercentage.Equal(decimal.RequireFromString("33.33")), stats.OrderedUsersPercentage.String())
}

func TestProfileLookups(t *testing.T) {
	svc, _, client := newTestService(t)
	ctx := context.Background()
	conn := client.DB()

	phone := "+15550100"
	user := dbtest.User(t, conn)
	require.NoError(t, conn.Model(&models.User{}).Where("id = ?", user.ID).Update("phone", phone).Error)

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	byPhone, err := svc.FindByPhone(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byPhone.ID)

	_, err = svc.FindByPhone(ctx, "+1999")
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = svc.Get(ctx, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestListCustomersSkipsStaff(t *testing.T) {
	svc, _, client := newTestService(t)
	ctx := context.Background()
	conn := client.DB()

	for i := 0; i < 3; i++ {
		dbtest.User(t, conn)
	}
	admin := models.User{Name: "Admin", Email: "root@example.com", PasswordHash: "x", Role: enums.UserRoleAdmin}
	require.NoError(t, conn.Create(&admin).Error)

	first, err := svc.ListCustomers(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListCustomers(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	for _, u := range append(first.Items, second.Items...) {
		assert.Equal(t, enums.UserRoleCustomer, u.Role)
	}
}

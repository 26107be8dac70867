package vouchers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.NewClient(t)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	svc, err := NewService(NewRepository(client.DB()), client, emitter)
	require.NoError(t, err)
	return svc, client
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestCreateRequiresExactlyOneDiscount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "BOTH", DiscountPercentage: decPtr("10"), DiscountValue: decPtr("5")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Equal(t, exclusiveDiscountMessage, pkgerrors.As(err).Message())

	_, err = svc.Create(ctx, CreateInput{Name: "NEITHER"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Equal(t, exclusiveDiscountMessage, pkgerrors.As(err).Message())
}

func TestCreateValidatesRanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	start := time.Now().UTC()

	cases := []CreateInput{
		{Name: "HIGH", DiscountPercentage: decPtr("100.01")},
		{Name: "LOW", DiscountPercentage: decPtr("-1")},
		{Name: "NEG", DiscountValue: decPtr("-0.01")},
		{Name: "DATES", DiscountValue: decPtr("5"), StartDate: &start, EndDate: timePtr(start.Add(-time.Hour))},
		{Name: "  ", DiscountValue: decPtr("5")},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, input)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%q: got %v", input.Name, err)
	}
}

func TestCreateDefaultsStartDateAndRejectsDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "SUMMER", DiscountPercentage: decPtr("15.5")})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), created.StartDate, time.Minute)

	_, err = svc.Create(ctx, CreateInput{Name: "SUMMER", DiscountValue: decPtr("3")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestUpdateMergesAndSwitchesDiscountKind(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInput{Name: "SWITCH", DiscountPercentage: decPtr("10")})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, UpdateInput{DiscountValue: decPtr("4")})
	require.NoError(t, err)
	assert.Nil(t, updated.DiscountPercentage)
	require.NotNil(t, updated.DiscountValue)
	assert.True(t, updated.DiscountValue.Equal(decimal.NewFromInt(4)))

	reloaded, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.DiscountPercentage)
	assert.Equal(t, "SWITCH", reloaded.Name)

	_, err = svc.Update(ctx, created.ID, UpdateInput{DiscountValue: decPtr("1"), DiscountPercentage: decPtr("1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.Update(ctx, uuid.New(), UpdateInput{Name: strPtr("X")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestUpdateRejectsTakenName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateInput{Name: "A", DiscountValue: decPtr("1")})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateInput{Name: "B", DiscountValue: decPtr("1")})
	require.NoError(t, err)

	_, err = svc.Update(ctx, b.ID, UpdateInput{Name: strPtr("A")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = svc.Update(ctx, b.ID, UpdateInput{Name: strPtr("B")})
	assert.NoError(t, err, "keeping its own name is not a conflict")
}

func TestFindActiveByNameChecksWindow(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := svc.Create(ctx, CreateInput{Name: "LIVE", DiscountValue: decPtr("1"), StartDate: timePtr(now.Add(-time.Hour)), EndDate: timePtr(now.Add(time.Hour))})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "OLD", DiscountValue: decPtr("1"), StartDate: timePtr(now.Add(-2 * time.Hour)), EndDate: timePtr(now.Add(-time.Hour))})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "SOON", DiscountValue: decPtr("1"), StartDate: timePtr(now.Add(time.Hour))})
	require.NoError(t, err)

	check := func(name string) error {
		var out error
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			_, out = svc.FindActiveByName(ctx, tx, name, now)
			return nil
		}))
		return out
	}

	assert.NoError(t, check("LIVE"))
	err = check("OLD")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "voucher expired", pkgerrors.As(err).Message())
	err = check("SOON")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "voucher not yet active", pkgerrors.As(err).Message())
	assert.True(t, pkgerrors.IsCode(check("MISSING"), pkgerrors.CodeNotFound))
}

func TestDeleteRemovesVoucherAndWalletEntries(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	user := dbtest.User(t, client.DB())
	voucher, err := svc.Create(ctx, CreateInput{Name: "GONE", DiscountValue: decPtr("2")})
	require.NoError(t, err)
	attach(t, client.DB(), user.ID, voucher.ID)

	require.NoError(t, svc.Delete(ctx, voucher.ID))
	assert.Zero(t, walletCount(t, client.DB()))
	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, voucher.ID), pkgerrors.CodeNotFound))
}

func TestExpireWalletsDetachesAndEmits(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired, err := svc.Create(ctx, CreateInput{Name: "EXPIRED", DiscountValue: decPtr("2"), StartDate: timePtr(now.Add(-48 * time.Hour)), EndDate: timePtr(now.Add(-24 * time.Hour))})
	require.NoError(t, err)
	live, err := svc.Create(ctx, CreateInput{Name: "LIVE", DiscountValue: decPtr("2"), StartDate: timePtr(now.Add(-48 * time.Hour)), EndDate: timePtr(now.Add(24 * time.Hour))})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		user := dbtest.User(t, client.DB())
		attach(t, client.DB(), user.ID, expired.ID)
		attach(t, client.DB(), user.ID, live.ID)
	}

	result, err := svc.ExpireWallets(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, ExpiryResult{Vouchers: 1, DetachedWallets: 2}, result)
	assert.Equal(t, int64(2), walletCount(t, client.DB()))

	var events []models.OutboxEvent
	require.NoError(t, client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventVoucherExpired, events[0].EventType)
	assert.Equal(t, expired.ID, events[0].AggregateID)

	result, err = svc.ExpireWallets(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, result.Vouchers)
}

func attach(t *testing.T, conn *gorm.DB, userID, voucherID uuid.UUID) {
	t.Helper()
	require.NoError(t, conn.Exec("INSERT INTO user_vouchers (user_id, voucher_id) VALUES (?, ?)", userID, voucherID).Error)
}

func walletCount(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Table("user_vouchers").Count(&count).Error)
	return count
}

func strPtr(s string) *string {
	return &s
}

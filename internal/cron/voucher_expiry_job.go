package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type walletExpirer interface {
	ExpireWallets(ctx context.Context, now time.Time) (vouchers.ExpiryResult, error)
}

type VoucherExpiryJobParams struct {
	Logger   *logger.Logger
	Vouchers walletExpirer
	Now      func() time.Time
}

// NewVoucherExpiryJob detaches vouchers past their end date from every
// customer wallet.
func NewVoucherExpiryJob(params VoucherExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &voucherExpiryJob{logg: params.Logger, vouchers: params.Vouchers, now: now}, nil
}

type voucherExpiryJob struct {
	logg     *logger.Logger
	vouchers walletExpirer
	now      func() time.Time
}

func (j *voucherExpiryJob) Name() string { return "voucher-expiry" }

func (j *voucherExpiryJob) Run(ctx context.Context) error {
	result, err := j.vouchers.ExpireWallets(ctx, j.now())
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"vouchers":         result.Vouchers,
		"detached_wallets": result.DetachedWallets,
	})
	if err != nil {
		return fmt.Errorf("voucher expiry: %w", err)
	}
	if result.Vouchers == 0 {
		j.logg.Debug(logCtx, "no expired vouchers in wallets")
		return nil
	}
	j.logg.Info(logCtx, "expired vouchers detached from wallets")
	return nil
}

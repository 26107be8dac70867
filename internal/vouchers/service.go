package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const exclusiveDiscountMessage = "You must provide either discountPercentage or discountValue, but not both."

var hundred = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages vouchers for admins and resolves them for checkout.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Voucher, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Voucher, error)
	List(ctx context.Context) ([]models.Voucher, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindActiveByName(ctx context.Context, tx *gorm.DB, name string, now time.Time) (*models.Voucher, error)
	ExpireWallets(ctx context.Context, now time.Time) (ExpiryResult, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	now    func() time.Time
}

func NewService(repo Repository, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("voucher repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Voucher, error) {
	voucher := &models.Voucher{
		Name:               strings.TrimSpace(input.Name),
		DiscountPercentage: input.DiscountPercentage,
		DiscountValue:      input.DiscountValue,
		EndDate:            input.EndDate,
	}
	if input.StartDate != nil {
		voucher.StartDate = *input.StartDate
	} else {
		voucher.StartDate = s.now().UTC()
	}
	if err := validate(voucher); err != nil {
		return nil, err
	}

	taken, err := s.repo.NameTaken(ctx, voucher.Name, uuid.Nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check voucher name")
	}
	if taken {
		return nil, duplicateName(voucher.Name)
	}
	if err := s.repo.Create(ctx, voucher); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, duplicateName(voucher.Name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create voucher")
	}
	return voucher, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Voucher, error) {
	if input.DiscountPercentage != nil && input.DiscountValue != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, exclusiveDiscountMessage)
	}

	var voucher *models.Voucher
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "load voucher")
		}

		if input.Name != nil {
			current.Name = strings.TrimSpace(*input.Name)
		}
		if input.DiscountPercentage != nil {
			current.DiscountPercentage = input.DiscountPercentage
			current.DiscountValue = nil
		}
		if input.DiscountValue != nil {
			current.DiscountValue = input.DiscountValue
			current.DiscountPercentage = nil
		}
		if input.StartDate != nil {
			current.StartDate = *input.StartDate
		}
		if input.EndDate != nil {
			current.EndDate = input.EndDate
		}
		if err := validate(current); err != nil {
			return err
		}

		taken, err := repo.NameTaken(ctx, current.Name, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check voucher name")
		}
		if taken {
			return duplicateName(current.Name)
		}
		if err := repo.Save(ctx, current); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update voucher")
		}
		voucher = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return voucher, nil
}

func (s *service) List(ctx context.Context) ([]models.Voucher, error) {
	vouchers, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vouchers")
	}
	return vouchers, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	voucher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load voucher")
	}
	return voucher, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		removed, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete voucher")
		}
		if removed == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return nil
	})
}

// FindActiveByName resolves a voucher inside the caller's transaction and
// checks that now falls within its validity window.
func (s *service) FindActiveByName(ctx context.Context, tx *gorm.DB, name string, now time.Time) (*models.Voucher, error) {
	voucher, err := s.repo.WithTx(tx).FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, notFoundOr(err, "load voucher")
	}
	if now.Before(voucher.StartDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher not yet active")
	}
	if !voucher.ActiveAt(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher expired")
	}
	return voucher, nil
}

// ExpireWallets detaches every expired voucher from the wallets still
// holding it. Each voucher is handled in its own transaction so one failure
// does not block the rest.
func (s *service) ExpireWallets(ctx context.Context, now time.Time) (ExpiryResult, error) {
	var result ExpiryResult
	now = now.UTC()
	expired, err := s.repo.ListExpiredInWallets(ctx, now)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired vouchers")
	}

	var errs error
	for _, voucher := range expired {
		voucher := voucher
		var detached int64
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			detached, err = s.repo.WithTx(tx).DetachFromWallets(ctx, voucher.ID)
			if err != nil || detached == 0 {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventVoucherExpired,
				AggregateType: enums.AggregateVoucher,
				AggregateID:   voucher.ID,
				OccurredAt:    now,
				Data: payloads.VoucherExpiredEvent{
					VoucherID:       voucher.ID,
					Name:            voucher.Name,
					EndDate:         *voucher.EndDate,
					DetachedWallets: detached,
				},
			})
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("voucher %s: %w", voucher.ID, err))
			continue
		}
		if detached > 0 {
			result.Vouchers++
			result.DetachedWallets += detached
		}
	}
	return result, errs
}

func validate(v *models.Voucher) error {
	if v.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "voucher name is required")
	}
	if (v.DiscountPercentage == nil) == (v.DiscountValue == nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, exclusiveDiscountMessage)
	}
	if p := v.DiscountPercentage; p != nil && (p.IsNegative() || p.GreaterThan(hundred)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discountPercentage must be between 0 and 100")
	}
	if val := v.DiscountValue; val != nil && val.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discountValue must not be negative")
	}
	if v.EndDate != nil && !v.EndDate.After(v.StartDate) {
		return pkgerrors.New(pkgerrors.CodeValidation, "endDate must be after startDate")
	}
	return nil
}

func duplicateName(name string) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "voucher %q already exists", name)
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

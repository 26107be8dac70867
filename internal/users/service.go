package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/vouchers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type voucherFinder interface {
	FindActiveByName(ctx context.Context, tx *gorm.DB, name string, now time.Time) (*models.Voucher, error)
}

// Service serves profiles, wishlists, voucher wallets and customer stats.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	FindByPhone(ctx context.Context, phone string) (*UserDTO, error)
	ListCustomers(ctx context.Context, params pagination.Params) (pagination.Page[UserDTO], error)
	Stats(ctx context.Context) (*Stats, error)

	AddToWishlist(ctx context.Context, userID, productID uuid.UUID) error
	RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error
	Wishlist(ctx context.Context, userID uuid.UUID) ([]catalog.ProductDTO, error)

	AddVoucher(ctx context.Context, userID uuid.UUID, voucherName string) (*vouchers.VoucherDTO, error)
	RemoveVoucher(ctx context.Context, userID, voucherID uuid.UUID) error
	Vouchers(ctx context.Context, userID uuid.UUID) ([]vouchers.VoucherDTO, error)
}

type service struct {
	repo     Repository
	vouchers voucherFinder
	now      func() time.Time
}

func NewService(repo Repository, finder voucherFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if finder == nil {
		return nil, fmt.Errorf("voucher finder required")
	}
	return &service{repo: repo, vouchers: finder, now: time.Now}, nil
}

// Get also backs the /me endpoint.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "load user")
	}
	return FromModel(user), nil
}

func (s *service) FindByPhone(ctx context.Context, phone string) (*UserDTO, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	user, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "load user")
	}
	return FromModel(user), nil
}

func (s *service) ListCustomers(ctx context.Context, params pagination.Params) (pagination.Page[UserDTO], error) {
	rows, err := s.repo.ListByRole(ctx, enums.UserRoleCustomer, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return pagination.Page[UserDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
		}
		return pagination.Page[UserDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers")
	}
	return toPage(rows, params.Limit), nil
}

// Stats reports the share of customers that placed at least one order.
func (s *service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.repo.CountByRole(ctx, enums.UserRoleCustomer)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count customers")
	}
	stats := &Stats{TotalCustomers: total, OrderedUsersPercentage: decimal.Zero}
	if total == 0 {
		return stats, nil
	}
	ordered, err := s.repo.CountCustomersWithOrders(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count ordering customers")
	}
	stats.OrderedUsersPercentage = decimal.NewFromInt(ordered).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(total), 2)
	return stats, nil
}

// AddToWishlist is idempotent.
func (s *service) AddToWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return err
	}
	if err := s.repo.AddWishlist(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add to wishlist")
	}
	return nil
}

// RemoveFromWishlist is a no-op for a product that is not listed.
func (s *service) RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return err
	}
	if _, err := s.repo.RemoveWishlist(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove from wishlist")
	}
	return nil
}

func (s *service) Wishlist(ctx context.Context, userID uuid.UUID) ([]catalog.ProductDTO, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListWishlist(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist")
	}
	out := make([]catalog.ProductDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, catalog.ToProductDTO(p))
	}
	return out, nil
}

// AddVoucher claims an active voucher by name into the user's wallet.
func (s *service) AddVoucher(ctx context.Context, userID uuid.UUID, voucherName string) (*vouchers.VoucherDTO, error) {
	if strings.TrimSpace(voucherName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher name is required")
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	voucher, err := s.vouchers.FindActiveByName(ctx, nil, voucherName, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddVoucher(ctx, userID, voucher.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add voucher")
	}
	dto := vouchers.ToDTO(*voucher)
	return &dto, nil
}

func (s *service) RemoveVoucher(ctx context.Context, userID, voucherID uuid.UUID) error {
	removed, err := s.repo.RemoveVoucher(ctx, userID, voucherID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove voucher")
	}
	if removed == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "voucher not in wallet")
	}
	return nil
}

func (s *service) Vouchers(ctx context.Context, userID uuid.UUID) ([]vouchers.VoucherDTO, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListVouchers(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vouchers")
	}
	return vouchers.ToDTOs(rows), nil
}

func (s *service) ensureUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return notFoundOr(err, "user not found", "load user")
	}
	return nil
}

func (s *service) ensureProduct(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.ProductExists(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func notFoundOr(err error, notFound, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

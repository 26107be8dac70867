package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository exposes user-related persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByRole(ctx context.Context, role enums.UserRole, params pagination.Params) ([]models.User, error)
	CountByRole(ctx context.Context, role enums.UserRole) (int64, error)
	CountCustomersWithOrders(ctx context.Context) (int64, error)

	ProductExists(ctx context.Context, id uuid.UUID) (bool, error)
	AddWishlist(ctx context.Context, userID, productID uuid.UUID) error
	RemoveWishlist(ctx context.Context, userID, productID uuid.UUID) (int64, error)
	ListWishlist(ctx context.Context, userID uuid.UUID) ([]models.Product, error)

	AddVoucher(ctx context.Context, userID, voucherID uuid.UUID) error
	RemoveVoucher(ctx context.Context, userID, voucherID uuid.UUID) (int64, error)
	ListVouchers(ctx context.Context, userID uuid.UUID) ([]models.Voucher, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID loads a user by their UUID.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail matches case-insensitively; emails are stored lowercased.
func (r *repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

func (r *repository) ListByRole(ctx context.Context, role enums.UserRole, params pagination.Params) ([]models.User, error) {
	q, err := pagination.Apply(r.db.WithContext(ctx).Model(&models.User{}).Where("users.role = ?", role), "users", params)
	if err != nil {
		return nil, err
	}
	var rows []models.User
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountByRole(ctx context.Context, role enums.UserRole) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

// CountCustomersWithOrders counts distinct customers owning at least one order.
func (r *repository) CountCustomersWithOrders(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("users.role = ?", enums.UserRoleCustomer).
		Where("EXISTS (SELECT 1 FROM orders o WHERE o.user_id = users.id)").
		Count(&count).Error
	return count, err
}

func (r *repository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// AddWishlist inserts a wishlist entry and ignores duplicates.
func (r *repository) AddWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Exec(`INSERT INTO user_wishlist (user_id, product_id) VALUES (?, ?) ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID).
		Error
}

func (r *repository) RemoveWishlist(ctx context.Context, userID, productID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM user_wishlist WHERE user_id = ? AND product_id = ?`, userID, productID)
	return res.RowsAffected, res.Error
}

func (r *repository) ListWishlist(ctx context.Context, userID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Brand").Preload("Categories").Preload("Tags").
		Joins("JOIN user_wishlist uw ON uw.product_id = products.id").
		Where("uw.user_id = ?", userID).
		Order("products.name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) AddVoucher(ctx context.Context, userID, voucherID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Exec(`INSERT INTO user_vouchers (user_id, voucher_id) VALUES (?, ?) ON CONFLICT (user_id, voucher_id) DO NOTHING`, userID, voucherID).
		Error
}

func (r *repository) RemoveVoucher(ctx context.Context, userID, voucherID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM user_vouchers WHERE user_id = ? AND voucher_id = ?`, userID, voucherID)
	return res.RowsAffected, res.Error
}

func (r *repository) ListVouchers(ctx context.Context, userID uuid.UUID) ([]models.Voucher, error) {
	var rows []models.Voucher
	err := r.db.WithContext(ctx).
		Joins("JOIN user_vouchers uv ON uv.voucher_id = vouchers.id").
		Where("uv.user_id = ?", userID).
		Order("vouchers.name ASC").
		Find(&rows).Error
	return rows, err
}

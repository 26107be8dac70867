package vouchers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

const walletTable = "user_vouchers"

// Repository persists vouchers and the wallet join table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, voucher *models.Voucher) error
	Save(ctx context.Context, voucher *models.Voucher) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	FindByName(ctx context.Context, name string) (*models.Voucher, error)
	NameTaken(ctx context.Context, name string, exclude uuid.UUID) (bool, error)
	List(ctx context.Context) ([]models.Voucher, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	ListExpiredInWallets(ctx context.Context, now time.Time) ([]models.Voucher, error)
	DetachFromWallets(ctx context.Context, voucherID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, voucher *models.Voucher) error {
	return r.db.WithContext(ctx).Create(voucher).Error
}

// Save writes every column so cleared discounts are persisted as NULL.
func (r *repository) Save(ctx context.Context, voucher *models.Voucher) error {
	return r.db.WithContext(ctx).Save(voucher).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.db.WithContext(ctx).First(&voucher, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) FindByName(ctx context.Context, name string) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) NameTaken(ctx context.Context, name string, exclude uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("name = ? AND id <> ?", name, exclude).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) List(ctx context.Context) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	err := r.db.WithContext(ctx).Order("start_date DESC").Order("name ASC").Find(&vouchers).Error
	return vouchers, err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.db.WithContext(ctx).Exec("DELETE FROM "+walletTable+" WHERE voucher_id = ?", id).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Delete(&models.Voucher{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// ListExpiredInWallets returns vouchers past their end date that are still
// held by at least one user.
func (r *repository) ListExpiredInWallets(ctx context.Context, now time.Time) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	err := r.db.WithContext(ctx).
		Where("end_date IS NOT NULL AND end_date < ?", now).
		Where("EXISTS (SELECT 1 FROM "+walletTable+" uv WHERE uv.voucher_id = vouchers.id)").
		Order("end_date ASC").
		Find(&vouchers).Error
	return vouchers, err
}

func (r *repository) DetachFromWallets(ctx context.Context, voucherID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Exec("DELETE FROM "+walletTable+" WHERE voucher_id = ?", voucherID)
	return res.RowsAffected, res.Error
}

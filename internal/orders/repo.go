package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Filter narrows order listings. Zero values mean "any".
type Filter struct {
	UserID     *uuid.UUID
	DeliveryID *uuid.UUID
	Status     *enums.OrderStatus
}

// Repository reads and administers orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context, filter Filter, params pagination.Params) ([]models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, scheduledFor *time.Time) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// List returns one keyset page (plus a lookahead row), newest first.
func (r *repository) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Lines")
	if filter.UserID != nil {
		q = q.Where("orders.user_id = ?", *filter.UserID)
	}
	if filter.DeliveryID != nil {
		q = q.Where("orders.delivery_id = ?", *filter.DeliveryID)
	}
	if filter.Status != nil {
		q = q.Where("orders.status = ?", *filter.Status)
	}
	q, err := pagination.Apply(q, "orders", params)
	if err != nil {
		return nil, err
	}
	var rows []models.Order
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Lines").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error
	return count > 0, err
}

func (r *repository) UpdateSchedule(ctx context.Context, id uuid.UUID, scheduledFor *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("scheduled_for", scheduledFor).Error
}

// Delete removes the order and its line snapshots.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderLine{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

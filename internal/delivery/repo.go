package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists workers and the order fields they move.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockWorker(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SaveOrderTransition(ctx context.Context, order *models.Order) error
	LoadLines(ctx context.Context, order *models.Order) error
	SetDateOfAssignment(ctx context.Context, workerID uuid.UUID, at time.Time) error

	Create(ctx context.Context, worker *models.Delivery) error
	List(ctx context.Context) ([]models.Delivery, error)
	FindActive(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindActiveByPhone(ctx context.Context, phone string) (*models.Delivery, error)
	PhoneTaken(ctx context.Context, phone string) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ListOrders(ctx context.Context, workerID uuid.UUID, status *enums.OrderStatus) ([]models.Order, error)
	CountOrders(ctx context.Context, workerID uuid.UUID, status enums.OrderStatus) (int64, error)
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

// LockWorker loads an active worker with SELECT ... FOR UPDATE.
func (r *repository) LockWorker(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var worker models.Delivery
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&worker).Error
	if err != nil {
		return nil, err
	}
	return &worker, nil
}

// LockOrder loads an order with SELECT ... FOR UPDATE.
func (r *repository) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SaveOrderTransition writes only the fulfillment columns; lines and
// amounts are never rewritten.
func (r *repository) SaveOrderTransition(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"status":       order.Status,
			"delivery_id":  order.DeliveryID,
			"assigned_at":  order.AssignedAt,
			"delivered_at": order.DeliveredAt,
		}).Error
}

func (r *repository) LoadLines(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Where("order_id = ?", order.ID).
		Order("product_name ASC").
		Find(&order.Lines).Error
}

func (r *repository) SetDateOfAssignment(ctx context.Context, workerID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", workerID).
		Update("date_of_assignment", at).Error
}

func (r *repository) Create(ctx context.Context, worker *models.Delivery) error {
	return r.db.WithContext(ctx).Create(worker).Error
}

func (r *repository) List(ctx context.Context) ([]models.Delivery, error) {
	var workers []models.Delivery
	err := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("name ASC").
		Order("id ASC").
		Find(&workers).Error
	return workers, err
}

func (r *repository) FindActive(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var worker models.Delivery
	if err := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).First(&worker).Error; err != nil {
		return nil, err
	}
	return &worker, nil
}

func (r *repository) FindActiveByPhone(ctx context.Context, phone string) (*models.Delivery, error) {
	var worker models.Delivery
	if err := r.db.WithContext(ctx).Where("phone = ? AND is_deleted = ?", phone, false).First(&worker).Error; err != nil {
		return nil, err
	}
	return &worker, nil
}

// PhoneTaken includes soft-deleted workers; the unique index does too.
func (r *repository) PhoneTaken(ctx context.Context, phone string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Delivery{}).Where("phone = ?", phone).Count(&count).Error
	return count > 0, err
}

func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", id).
		Update("is_deleted", true).Error
}

func (r *repository) ListOrders(ctx context.Context, workerID uuid.UUID, status *enums.OrderStatus) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Preload("Lines").Where("delivery_id = ?", workerID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var rows []models.Order
	err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) CountOrders(ctx context.Context, workerID uuid.UUID, status enums.OrderStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("delivery_id = ? AND status = ?", workerID, status).
		Count(&count).Error
	return count, err
}

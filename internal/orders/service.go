package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the order query surface plus the admin schedule and delete
// operations.
type Service interface {
	List(ctx context.Context, params pagination.Params) (pagination.Page[OrderDTO], error)
	Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*OrderDTO, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[OrderDTO], error)
	ListByStatus(ctx context.Context, status string, params pagination.Params) (pagination.Page[OrderDTO], error)
	ListDelivered(ctx context.Context, params pagination.Params) (pagination.Page[OrderDTO], error)
	ListPending(ctx context.Context, params pagination.Params) (pagination.Page[OrderDTO], error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*OrderDTO, error)
	Delete(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
}

func NewService(repo Repository, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter}, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (pagination.Page[OrderDTO], error) {
	return s.list(ctx, Filter{}, params)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	dto := FromModel(*order)
	return &dto, nil
}

// GetForUser hides other users' orders behind NotFound.
func (s *service) GetForUser(ctx context.Context, userID, id uuid.UUID) (*OrderDTO, error) {
	dto, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if dto.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return dto, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[OrderDTO], error) {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !exists {
		return pagination.Page[OrderDTO]{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return s.list(ctx, Filter{UserID: &userID}, params)
}

func (s *service) ListByStatus(ctx context.Context, status string, params pagination.Params) (pagination.Page[OrderDTO], error) {
	parsed, err := enums.ParseOrderStatus(status)
	if err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	return s.list(ctx, Filter{Status: &parsed}, params)
}

func (s *service) ListDelivered(ctx context.Context, params pagination.Params) (pagination.Page[OrderDTO], error) {
	return s.ListByStatus(ctx, enums.OrderStatusDelivered.String(), params)
}

// ListPending lists orders nobody has started on yet.
func (s *service) ListPending(ctx context.Context, params pagination.Params) (pagination.Page[OrderDTO], error) {
	return s.ListByStatus(ctx, enums.OrderStatusOrdered.String(), params)
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*OrderDTO, error) {
	if input.ScheduledFor == nil && !input.ClearSchedule {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	if input.ScheduledFor != nil && input.ClearSchedule {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduledFor cannot be set and cleared at once")
	}

	var dto OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err)
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already delivered")
		}
		var schedule *time.Time
		if input.ScheduledFor != nil {
			at := input.ScheduledFor.UTC()
			schedule = &at
		}
		if err := repo.UpdateSchedule(ctx, id, schedule); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		order.ScheduledFor = schedule
		dto = FromModel(*order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// Delete removes the order and records order_deleted in the same
// transaction.
func (s *service) Delete(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err)
		}
		if _, err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderDeletedEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				Status:  order.Status,
			},
		})
	})
}

func (s *service) list(ctx context.Context, filter Filter, params pagination.Params) (pagination.Page[OrderDTO], error) {
	rows, err := s.repo.List(ctx, filter, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toPage(rows, params.Limit), nil
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

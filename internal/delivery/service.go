package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
}

// Service runs the order fulfillment state machine and manages workers.
type Service interface {
	ChangeOrderStatus(ctx context.Context, workerID, orderID uuid.UUID) (*Transition, error)
	Create(ctx context.Context, input CreateWorkerInput) (*WorkerDTO, error)
	List(ctx context.Context) ([]WorkerDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*WorkerDTO, error)
	ListOrders(ctx context.Context, workerID uuid.UUID, status string) ([]orders.OrderDTO, error)
	CurrentOrders(ctx context.Context, workerID uuid.UUID) ([]orders.OrderDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ServiceParams wires the delivery service.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outbox.Emitter
	Hasher     passwordHasher
	Metrics    *metrics.DeliveryMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	hasher  passwordHasher
	metrics *metrics.DeliveryMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repository,
		tx:      params.Tx,
		outbox:  params.Outbox,
		hasher:  params.Hasher,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// ChangeOrderStatus advances the order one step for the given worker. The
// worker and order rows stay locked until the transaction ends, so
// concurrent calls for the same order serialize and the loser sees the new
// status.
func (s *service) ChangeOrderStatus(ctx context.Context, workerID, orderID uuid.UUID) (*Transition, error) {
	var result Transition
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		worker, err := repo.LockWorker(ctx, workerID)
		if err != nil {
			return notFoundOr(err, "worker not found", "load worker")
		}
		order, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "order not found", "load order")
		}

		from := order.Status
		to, err := nextStatus(worker, order)
		if err != nil {
			s.metrics.IncRejected(from.String(), worker.Role.String())
			return err
		}

		now := s.now().UTC()
		order.Status = to
		order.DeliveryID = &worker.ID
		switch to {
		case enums.OrderStatusPickedUp:
			order.AssignedAt = &now
			worker.DateOfAssignment = &now
			if err := repo.SetDateOfAssignment(ctx, worker.ID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update worker")
			}
		case enums.OrderStatusDelivered:
			order.DeliveredAt = &now
		}
		if err := repo.SaveOrderTransition(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if err := repo.LoadLines(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{ID: worker.ID, Kind: enums.PrincipalWorker, Role: worker.Role.UserRole()},
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				From:       from,
				To:         to,
				WorkerID:   worker.ID,
				WorkerRole: worker.Role,
				ChangedAt:  now,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record order_status_changed")
		}

		result = Transition{From: from, To: to, Order: orders.FromModel(*order), Worker: ToWorkerDTO(*worker)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(result.From.String(), result.To.String(), result.Worker.Role.String())
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithField(ctx, "worker_id", workerID.String()), orderID.String())
		s.logg.Info(s.logg.WithField(logCtx, "to", result.To.String()), "order status changed")
	}
	return &result, nil
}

func (s *service) Create(ctx context.Context, input CreateWorkerInput) (*WorkerDTO, error) {
	name := strings.TrimSpace(input.Name)
	phone := strings.TrimSpace(input.Phone)
	if name == "" || phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and phone are required")
	}
	role, err := enums.ParseWorkerRole(strings.ToLower(strings.TrimSpace(input.Role)))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	taken, err := s.repo.PhoneTaken(ctx, phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check phone")
	}
	if taken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "phone already registered")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	worker := &models.Delivery{Name: name, Phone: phone, PasswordHash: hash, Role: role}
	if err := s.repo.Create(ctx, worker); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "phone already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create worker")
	}
	dto := ToWorkerDTO(*worker)
	return &dto, nil
}

func (s *service) List(ctx context.Context) ([]WorkerDTO, error) {
	workers, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list workers")
	}
	out := make([]WorkerDTO, 0, len(workers))
	for _, w := range workers {
		out = append(out, ToWorkerDTO(w))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*WorkerDTO, error) {
	worker, err := s.repo.FindActive(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "worker not found", "load worker")
	}
	dto := ToWorkerDTO(*worker)
	return &dto, nil
}

// ListOrders returns the worker's orders, optionally filtered by status.
func (s *service) ListOrders(ctx context.Context, workerID uuid.UUID, status string) ([]orders.OrderDTO, error) {
	var filter *enums.OrderStatus
	if strings.TrimSpace(status) != "" {
		parsed, err := enums.ParseOrderStatus(status)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		filter = &parsed
	}
	if _, err := s.repo.FindActive(ctx, workerID); err != nil {
		return nil, notFoundOr(err, "worker not found", "load worker")
	}
	rows, err := s.repo.ListOrders(ctx, workerID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list worker orders")
	}
	return orders.FromModels(rows), nil
}

// CurrentOrders are the orders the worker has picked up but not delivered.
func (s *service) CurrentOrders(ctx context.Context, workerID uuid.UUID) ([]orders.OrderDTO, error) {
	return s.ListOrders(ctx, workerID, enums.OrderStatusPickedUp.String())
}

// Delete soft-deletes a worker who holds no picked-up orders.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.LockWorker(ctx, id); err != nil {
			return notFoundOr(err, "worker not found", "load worker")
		}
		open, err := repo.CountOrders(ctx, id, enums.OrderStatusPickedUp)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count worker orders")
		}
		if open > 0 {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "worker still holds %d picked-up order(s)", open)
		}
		if err := repo.SoftDelete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete worker")
		}
		return nil
	})
}

func notFoundOr(err error, notFound, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

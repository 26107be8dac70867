package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const outOfStockMessage = "some products are out of stock"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type addressResolver interface {
	Resolve(ctx context.Context, tx *gorm.DB, userID uuid.UUID, sel address.Selector) (*models.Address, error)
}

type voucherFinder interface {
	FindActiveByName(ctx context.Context, tx *gorm.DB, name string, now time.Time) (*models.Voucher, error)
}

// Input is a checkout request. Exactly one of AddressID and AddressIndex
// (1-based) must be set.
type Input struct {
	UserID       uuid.UUID
	AddressID    *uuid.UUID
	AddressIndex *int
	VoucherName  *string
	ScheduledFor *time.Time
}

// Service converts a cart into an order.
type Service interface {
	Checkout(ctx context.Context, input Input) (*models.Order, error)
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Addresses  addressResolver
	Vouchers   voucherFinder
	Outbox     outbox.Emitter
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	addresses addressResolver
	vouchers  voucherFinder
	outbox    outbox.Emitter
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address resolver required")
	}
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher finder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repository,
		tx:        params.Tx,
		addresses: params.Addresses,
		vouchers:  params.Vouchers,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Checkout validates the cart, snapshots it into an order, takes the stock,
// clears the cart and records order_created, all in one transaction.
func (s *service) Checkout(ctx context.Context, input Input) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	now := s.now().UTC()
	if input.ScheduledFor != nil && !input.ScheduledFor.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduledFor must be in the future")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.execute(ctx, tx, input, now)
		return err
	})
	if err != nil {
		s.recordFailure(ctx, input.UserID, err)
		return nil, err
	}

	units := 0
	for _, line := range order.Lines {
		units += line.Quantity
	}
	s.metrics.ObserveOrder(order.Price, units)
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, input.UserID.String()), order.ID.String())
		s.logg.Info(logCtx, "order placed")
	}
	return order, nil
}

func (s *service) execute(ctx context.Context, tx *gorm.DB, input Input, now time.Time) (*models.Order, error) {
	repo := s.repo.WithTx(tx)

	if _, err := repo.FindUser(ctx, input.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	lines, err := repo.CartLines(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	addr, err := s.addresses.Resolve(ctx, tx, input.UserID, address.Selector{
		AddressID: input.AddressID,
		Index:     input.AddressIndex,
	})
	if err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for _, line := range lines {
		if line.Product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if line.Counter <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for %q must be positive", line.Product.Name)
		}
		if line.Product.Stock <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, outOfStockMessage)
		}
	}

	var voucher *models.Voucher
	var voucherName *string
	if input.VoucherName != nil && strings.TrimSpace(*input.VoucherName) != "" {
		voucher, err = s.vouchers.FindActiveByName(ctx, tx, *input.VoucherName, now)
		if err != nil {
			return nil, err
		}
		voucherName = &voucher.Name
	}

	order := buildOrder(input, addr, lines, voucher, voucherName)
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	for _, line := range lines {
		ok, err := repo.DecrementStock(ctx, line.ProductID, line.Counter)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, outOfStockMessage).
				WithDetails(map[string]any{"productId": line.ProductID})
		}
	}

	if err := repo.ClearCart(ctx, input.UserID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}

	if err := s.outbox.Emit(ctx, tx, orderCreated(order, now)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record order_created")
	}
	return order, nil
}

func buildOrder(input Input, addr *models.Address, lines []models.CartItem, voucher *models.Voucher, voucherName *string) *models.Order {
	priced := make([]pricing.Line, 0, len(lines))
	orderLines := make([]models.OrderLine, 0, len(lines))
	for _, item := range lines {
		p := item.Product
		priced = append(priced, pricing.FromCartItem(item))
		orderLines = append(orderLines, models.OrderLine{
			ProductID:          p.ID,
			ProductName:        p.Name,
			UnitPrice:          p.Price,
			DiscountPercentage: p.DiscountPercentage,
			EffectiveUnitPrice: pricing.EffectiveUnitPrice(p.Price, p.DiscountPercentage).Round(2),
			Quantity:           item.Counter,
			LineTotal:          pricing.LineTotal(p.Price, p.DiscountPercentage, item.Counter).Round(2),
		})
	}
	quote := pricing.Quote(priced, pricing.FromVoucher(voucher))

	addressID := addr.ID
	return &models.Order{
		UserID:          input.UserID,
		AddressID:       &addressID,
		ShippingAddress: addr.OneLine(),
		VoucherName:     voucherName,
		Subtotal:        quote.Subtotal,
		Discount:        quote.Discount,
		Price:           quote.Total,
		Status:          enums.OrderStatusOrdered,
		Lines:           orderLines,
		ScheduledFor:    input.ScheduledFor,
	}
}

func orderCreated(order *models.Order, now time.Time) outbox.DomainEvent {
	lines := make([]payloads.OrderLine, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, payloads.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity, LineTotal: l.LineTotal})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{ID: order.UserID, Kind: enums.PrincipalUser, Role: enums.UserRoleCustomer},
		OccurredAt:    now,
		Data: payloads.OrderCreatedEvent{
			OrderID:      order.ID,
			UserID:       order.UserID,
			AddressID:    order.AddressID,
			VoucherName:  order.VoucherName,
			Subtotal:     order.Subtotal,
			Discount:     order.Discount,
			Price:        order.Price,
			ScheduledFor: order.ScheduledFor,
			Lines:        lines,
		},
	}
}

func (s *service) recordFailure(ctx context.Context, userID uuid.UUID, err error) {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeOutOfStock:
		s.metrics.IncOutcome(metrics.OutcomeOutOfStock)
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound:
		s.metrics.IncOutcome(metrics.OutcomeRejected)
	default:
		s.metrics.IncOutcome(metrics.OutcomeError)
		if s.logg != nil {
			s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "checkout failed", err)
		}
	}
}

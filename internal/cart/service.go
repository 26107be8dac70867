package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the cart accumulator.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddToCart(ctx context.Context, userID, productID uuid.UUID) (*CartView, error)
	RemoveFromCart(ctx context.Context, userID, productID uuid.UUID) (*CartView, error)
	IncrementCounter(ctx context.Context, userID, lineID uuid.UUID) (*LineView, error)
	DecrementCounter(ctx context.Context, userID, lineID uuid.UUID) (*LineView, error)
	EmptyCart(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	if err := ensureUser(ctx, s.repo, userID); err != nil {
		return nil, err
	}
	return s.view(ctx, s.repo, userID)
}

// AddToCart merges the product into the user's cart: an existing line gains
// one unit, otherwise a line with counter 1 is created.
func (s *service) AddToCart(ctx context.Context, userID, productID uuid.UUID) (*CartView, error) {
	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := ensureUser(ctx, repo, userID); err != nil {
			return err
		}

		product, err := repo.FindProduct(ctx, productID)
		if err != nil {
			return notFoundOr(err, "product not found", "load product")
		}
		if product.Stock <= 0 {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "product is out of stock")
		}

		line, err := repo.FindLine(ctx, userID, productID)
		switch {
		case err == nil:
			if _, err := repo.AdjustCounter(ctx, userID, line.ID, 1); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment cart line")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := repo.CreateLine(ctx, &models.CartItem{UserID: userID, ProductID: productID, Counter: 1}); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.New(pkgerrors.CodeConflict, "cart changed concurrently, retry")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		view, err = s.view(ctx, repo, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveFromCart deletes the whole line for productID.
func (s *service) RemoveFromCart(ctx context.Context, userID, productID uuid.UUID) (*CartView, error) {
	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := ensureUser(ctx, repo, userID); err != nil {
			return err
		}
		removed, err := repo.DeleteLine(ctx, userID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}
		if removed == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
		}
		view, err = s.view(ctx, repo, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) IncrementCounter(ctx context.Context, userID, lineID uuid.UUID) (*LineView, error) {
	return s.adjust(ctx, userID, lineID, 1)
}

// DecrementCounter has no floor; a line at zero stays in the cart until it
// is removed.
func (s *service) DecrementCounter(ctx context.Context, userID, lineID uuid.UUID) (*LineView, error) {
	return s.adjust(ctx, userID, lineID, -1)
}

// EmptyCart is idempotent.
func (s *service) EmptyCart(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "empty cart")
	}
	return nil
}

func (s *service) adjust(ctx context.Context, userID, lineID uuid.UUID, delta int) (*LineView, error) {
	var view LineView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.AdjustCounter(ctx, userID, lineID, delta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		line, err := repo.FindLineByID(ctx, userID, lineID)
		if err != nil {
			return notFoundOr(err, "cart line not found", "load cart line")
		}
		view = newLineView(*line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *service) view(ctx context.Context, repo Repository, userID uuid.UUID) (*CartView, error) {
	lines, err := repo.ListLines(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}
	return newCartView(userID, lines), nil
}

func ensureUser(ctx context.Context, repo Repository, userID uuid.UUID) error {
	exists, err := repo.UserExists(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func notFoundOr(err error, notFound, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

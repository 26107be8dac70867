package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// CreateInput is a new address-book entry.
type CreateInput struct {
	Label      string
	Line1      string
	Line2      *string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      *string
}

// Selector picks one of a user's addresses, by id or by 1-based position.
// Exactly one field must be set.
type Selector struct {
	AddressID *uuid.UUID
	Index     *int
}

type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Address, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	Resolve(ctx context.Context, tx *gorm.DB, userID uuid.UUID, sel Selector) (*models.Address, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	addrs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return addrs, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Address, error) {
	addr := &models.Address{
		UserID:     userID,
		Label:      strings.TrimSpace(input.Label),
		Line1:      strings.TrimSpace(input.Line1),
		Line2:      trimmed(input.Line2),
		City:       strings.TrimSpace(input.City),
		Region:     strings.TrimSpace(input.Region),
		PostalCode: strings.TrimSpace(input.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(input.Country)),
		Phone:      trimmed(input.Phone),
	}
	if addr.Line1 == "" || addr.City == "" || addr.Country == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line1, city and country are required")
	}
	if addr.Label == "" {
		addr.Label = "home"
	}
	if err := s.repo.Create(ctx, addr); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	return addr, nil
}

func (s *service) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	removed, err := s.repo.Delete(ctx, userID, addressID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	if removed == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return nil
}

// Resolve looks the address up inside tx. An id must belong to the user; an
// index must fall within 1..len(addresses).
func (s *service) Resolve(ctx context.Context, tx *gorm.DB, userID uuid.UUID, sel Selector) (*models.Address, error) {
	if (sel.AddressID == nil) == (sel.Index == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provide exactly one of addressId or addressIndex")
	}
	repo := s.repo.WithTx(tx)

	if sel.AddressID != nil {
		addr, err := repo.FindForUser(ctx, userID, *sel.AddressID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
		}
		return addr, nil
	}

	addrs, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	idx := *sel.Index
	if idx < 1 || idx > len(addrs) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Invalid address index. User has %d address(es).", len(addrs))
	}
	return &addrs[idx-1], nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

var hundred = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the public catalog and its admin management.
type Service interface {
	CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*ProductDTO, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, filter ProductFilter, params pagination.Params) (pagination.Page[ProductDTO], error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	CreateTerm(ctx context.Context, kind TermKind, name string) (*TermDTO, error)
	ListTerms(ctx context.Context, kind TermKind) ([]TermDTO, error)
	DeleteTerm(ctx context.Context, kind TermKind, id uuid.UUID) error

	TopSellingProducts(ctx context.Context, limit int) ([]ProductSalesDTO, error)
	TopSellingCategories(ctx context.Context, limit int) ([]TermSalesDTO, error)
	TopSellingTags(ctx context.Context, limit int) ([]TermSalesDTO, error)
	TopSellingBrands(ctx context.Context, limit int) ([]TermSalesDTO, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error) {
	productType := enums.ProductTypeMain
	if strings.TrimSpace(input.Type) != "" {
		parsed, err := enums.ParseProductType(strings.ToLower(strings.TrimSpace(input.Type)))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		productType = parsed
	}
	product := &models.Product{
		Name:               strings.TrimSpace(input.Name),
		Description:        strings.TrimSpace(input.Description),
		Barcode:            normalizeBarcode(input.Barcode),
		Price:              input.Price,
		Cost:               input.Cost,
		DiscountPercentage: input.DiscountPercentage,
		Stock:              input.Stock,
		Type:               productType,
		MainImage:          input.MainImage,
		Images:             dbtypes.StringList(input.Images),
		BrandID:            input.BrandID,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.checkReferences(ctx, repo, product); err != nil {
			return err
		}
		if err := repo.CreateProduct(ctx, product); err != nil {
			return translateWrite(err, "create product")
		}
		return replaceAssociations(ctx, repo, product, input.CategoryIDs, input.TagIDs, input.LinkedProductIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*ProductDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProduct(ctx, id)
		if err != nil {
			return notFoundOr(err, "product not found", "load product")
		}
		if err := applyPatch(product, patch); err != nil {
			return err
		}
		if err := validateProduct(product); err != nil {
			return err
		}
		if err := s.checkReferences(ctx, repo, product); err != nil {
			return err
		}
		if err := repo.SaveProduct(ctx, product); err != nil {
			return translateWrite(err, "update product")
		}
		return replaceAssociations(ctx, repo, product, patch.CategoryIDs, patch.TagIDs, patch.LinkedProductIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "load product")
	}
	dto := ToProductDTO(*product)
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter, params pagination.Params) (pagination.Page[ProductDTO], error) {
	rows, err := s.repo.ListProducts(ctx, filter, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return pagination.Page[ProductDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
		}
		return pagination.Page[ProductDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return toProductPage(rows, params.Limit), nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := s.repo.WithTx(tx).DeleteProduct(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		if deleted == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil
	})
}

func (s *service) CreateTerm(ctx context.Context, kind TermKind, name string) (*TermDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s name is required", kind)
	}
	var dto TermDTO
	var err error
	switch kind {
	case KindCategory:
		row := &models.Category{Name: name}
		err = s.repo.CreateTerm(ctx, row)
		dto = toTermDTO(row.ID, row.Name, row.CreatedAt)
	case KindBrand:
		row := &models.Brand{Name: name}
		err = s.repo.CreateTerm(ctx, row)
		dto = toTermDTO(row.ID, row.Name, row.CreatedAt)
	case KindTag:
		row := &models.Tag{Name: name}
		err = s.repo.CreateTerm(ctx, row)
		dto = toTermDTO(row.ID, row.Name, row.CreatedAt)
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown taxonomy %q", kind)
	}
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "%s %q already exists", kind, name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create "+string(kind))
	}
	return &dto, nil
}

func (s *service) ListTerms(ctx context.Context, kind TermKind) ([]TermDTO, error) {
	var out []TermDTO
	switch kind {
	case KindCategory:
		var rows []models.Category
		if err := s.repo.ListTerms(ctx, &rows); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
		}
		for _, r := range rows {
			out = append(out, toTermDTO(r.ID, r.Name, r.CreatedAt))
		}
	case KindBrand:
		var rows []models.Brand
		if err := s.repo.ListTerms(ctx, &rows); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list brands")
		}
		for _, r := range rows {
			out = append(out, toTermDTO(r.ID, r.Name, r.CreatedAt))
		}
	case KindTag:
		var rows []models.Tag
		if err := s.repo.ListTerms(ctx, &rows); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tags")
		}
		for _, r := range rows {
			out = append(out, toTermDTO(r.ID, r.Name, r.CreatedAt))
		}
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown taxonomy %q", kind)
	}
	if out == nil {
		out = []TermDTO{}
	}
	return out, nil
}

func (s *service) DeleteTerm(ctx context.Context, kind TermKind, id uuid.UUID) error {
	switch kind {
	case KindCategory, KindBrand, KindTag:
	default:
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown taxonomy %q", kind)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := s.repo.WithTx(tx).DeleteTerm(ctx, kind, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete "+string(kind))
		}
		if deleted == 0 {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", kind)
		}
		return nil
	})
}

// TopSellingProducts ranks products by units sold, best first.
func (s *service) TopSellingProducts(ctx context.Context, limit int) ([]ProductSalesDTO, error) {
	rows, err := s.repo.TopSellingProducts(ctx, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rank products")
	}
	out := make([]ProductSalesDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, ProductSalesDTO{ID: p.ID, Name: p.Name, NumberOfSales: p.NumberOfSales})
	}
	return out, nil
}

func (s *service) TopSellingCategories(ctx context.Context, limit int) ([]TermSalesDTO, error) {
	return s.topSellingTerms(ctx, KindCategory, limit)
}

func (s *service) TopSellingTags(ctx context.Context, limit int) ([]TermSalesDTO, error) {
	return s.topSellingTerms(ctx, KindTag, limit)
}

func (s *service) TopSellingBrands(ctx context.Context, limit int) ([]TermSalesDTO, error) {
	return s.topSellingTerms(ctx, KindBrand, limit)
}

func (s *service) topSellingTerms(ctx context.Context, kind TermKind, limit int) ([]TermSalesDTO, error) {
	rows, err := s.repo.TermSales(ctx, kind, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rank "+string(kind)+" sales")
	}
	out := make([]TermSalesDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, TermSalesDTO{ID: r.ID, Name: r.Name, TotalSales: r.TotalSales})
	}
	return out, nil
}

func (s *service) checkReferences(ctx context.Context, repo Repository, product *models.Product) error {
	if product.Barcode != nil {
		taken, err := repo.BarcodeTaken(ctx, *product.Barcode, product.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check barcode")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "barcode already in use")
		}
	}
	if product.BrandID != nil {
		ok, err := repo.BrandExists(ctx, *product.BrandID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check brand")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "brand not found")
		}
	}
	return nil
}

func replaceAssociations(ctx context.Context, repo Repository, product *models.Product, categories, tags, links []uuid.UUID) error {
	if categories != nil {
		if err := repo.ReplaceCategories(ctx, product, categories); err != nil {
			return notFoundOr(err, "category not found", "replace categories")
		}
	}
	if tags != nil {
		if err := repo.ReplaceTags(ctx, product, tags); err != nil {
			return notFoundOr(err, "tag not found", "replace tags")
		}
	}
	if links != nil {
		for _, id := range links {
			if id == product.ID {
				return pkgerrors.New(pkgerrors.CodeValidation, "a product cannot link to itself")
			}
		}
		if err := repo.ReplaceLinks(ctx, product, links); err != nil {
			return notFoundOr(err, "linked product not found", "replace linked products")
		}
	}
	return nil
}

func applyPatch(product *models.Product, patch ProductPatch) error {
	if patch.Name != nil {
		product.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		product.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Barcode != nil {
		product.Barcode = normalizeBarcode(patch.Barcode)
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.Cost != nil {
		product.Cost = *patch.Cost
	}
	if patch.DiscountPercentage != nil {
		product.DiscountPercentage = *patch.DiscountPercentage
	}
	if patch.Stock != nil {
		product.Stock = *patch.Stock
	}
	if patch.Type != nil {
		parsed, err := enums.ParseProductType(strings.ToLower(strings.TrimSpace(*patch.Type)))
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		product.Type = parsed
	}
	if patch.MainImage != nil {
		product.MainImage = patch.MainImage
	}
	if patch.Images != nil {
		product.Images = dbtypes.StringList(patch.Images)
	}
	if patch.BrandID != nil {
		product.BrandID = patch.BrandID
		product.Brand = nil
	}
	return nil
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case p.Price.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be zero or greater")
	case p.Cost.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "cost must be zero or greater")
	case p.DiscountPercentage.IsNegative() || p.DiscountPercentage.GreaterThan(hundred):
		return pkgerrors.New(pkgerrors.CodeValidation, "discountPercentage must be between 0 and 100")
	case p.Stock < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must be zero or greater")
	}
	return nil
}

func normalizeBarcode(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func translateWrite(err error, action string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "barcode already in use")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func notFoundOr(err error, notFound, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

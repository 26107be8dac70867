package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// TermKind names one of the three product taxonomies.
type TermKind string

const (
	KindCategory TermKind = "category"
	KindBrand    TermKind = "brand"
	KindTag      TermKind = "tag"
)

func (k TermKind) model() any {
	switch k {
	case KindBrand:
		return &models.Brand{}
	case KindTag:
		return &models.Tag{}
	default:
		return &models.Category{}
	}
}

// TermDTO is a category, brand or tag.
type TermDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProductSalesDTO is one row of the best-sellers report.
type ProductSalesDTO struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	NumberOfSales int       `json:"numberOfSales"`
}

// TermSalesDTO is a category, brand or tag with the units sold under it.
type TermSalesDTO struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	TotalSales int64     `json:"totalSales"`
}

// LinkedProductDTO is the short form of a related product.
type LinkedProductDTO struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	MainImage *string         `json:"mainImage,omitempty"`
}

// ProductDTO is the catalog view of a product. Cost stays internal.
type ProductDTO struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	Barcode            *string            `json:"barcode,omitempty"`
	Price              decimal.Decimal    `json:"price"`
	DiscountPercentage decimal.Decimal    `json:"discountPercentage"`
	EffectivePrice     decimal.Decimal    `json:"effectivePrice"`
	Stock              int                `json:"stock"`
	NumberOfSales      int                `json:"numberOfSales"`
	Type               enums.ProductType  `json:"type"`
	MainImage          *string            `json:"mainImage,omitempty"`
	Images             []string           `json:"images"`
	Brand              *TermDTO           `json:"brand,omitempty"`
	Categories         []TermDTO          `json:"categories"`
	Tags               []TermDTO          `json:"tags"`
	LinkedProducts     []LinkedProductDTO `json:"linkedProducts"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// ProductInput creates a product. Update uses ProductPatch.
type ProductInput struct {
	Name               string
	Description        string
	Barcode            *string
	Price              decimal.Decimal
	Cost               decimal.Decimal
	DiscountPercentage decimal.Decimal
	Stock              int
	Type               string
	MainImage          *string
	Images             []string
	BrandID            *uuid.UUID
	CategoryIDs        []uuid.UUID
	TagIDs             []uuid.UUID
	LinkedProductIDs   []uuid.UUID
}

// ProductPatch changes only the non-nil fields. Slices replace the whole
// association when non-nil.
type ProductPatch struct {
	Name               *string
	Description        *string
	Barcode            *string
	Price              *decimal.Decimal
	Cost               *decimal.Decimal
	DiscountPercentage *decimal.Decimal
	Stock              *int
	Type               *string
	MainImage          *string
	Images             []string
	BrandID            *uuid.UUID
	CategoryIDs        []uuid.UUID
	TagIDs             []uuid.UUID
	LinkedProductIDs   []uuid.UUID
}

func toTermDTO(id uuid.UUID, name string, createdAt time.Time) TermDTO {
	return TermDTO{ID: id, Name: name, CreatedAt: createdAt}
}

func ToProductDTO(p models.Product) ProductDTO {
	dto := ProductDTO{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		Barcode:            p.Barcode,
		Price:              p.Price,
		DiscountPercentage: p.DiscountPercentage,
		EffectivePrice:     pricing.EffectiveUnitPrice(p.Price, p.DiscountPercentage).Round(2),
		Stock:              p.Stock,
		NumberOfSales:      p.NumberOfSales,
		Type:               p.Type,
		MainImage:          p.MainImage,
		Images:             append([]string{}, p.Images...),
		Categories:         make([]TermDTO, 0, len(p.Categories)),
		Tags:               make([]TermDTO, 0, len(p.Tags)),
		LinkedProducts:     make([]LinkedProductDTO, 0, len(p.LinkedProducts)),
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.Brand != nil {
		brand := toTermDTO(p.Brand.ID, p.Brand.Name, p.Brand.CreatedAt)
		dto.Brand = &brand
	}
	for _, c := range p.Categories {
		dto.Categories = append(dto.Categories, toTermDTO(c.ID, c.Name, c.CreatedAt))
	}
	for _, t := range p.Tags {
		dto.Tags = append(dto.Tags, toTermDTO(t.ID, t.Name, t.CreatedAt))
	}
	for _, l := range p.LinkedProducts {
		dto.LinkedProducts = append(dto.LinkedProducts, LinkedProductDTO{ID: l.ID, Name: l.Name, Price: l.Price, MainImage: l.MainImage})
	}
	return dto
}

func toProductPage(rows []models.Product, limit int) pagination.Page[ProductDTO] {
	page := pagination.Build(rows, limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	out := pagination.Page[ProductDTO]{Items: make([]ProductDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, p := range page.Items {
		out.Items = append(out.Items, ToProductDTO(p))
	}
	return out
}

package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const maxSearchLength = 100

type createProductRequest struct {
	Name               string          `json:"name" validate:"required,min=1,max=200"`
	Description        string          `json:"description" validate:"max=5000"`
	Barcode            *string         `json:"barcode" validate:"omitempty,max=64"`
	Price              decimal.Decimal `json:"price"`
	Cost               decimal.Decimal `json:"cost"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	Stock              int             `json:"stock" validate:"gte=0"`
	Type               string          `json:"type" validate:"required"`
	MainImage          *string         `json:"mainImage" validate:"omitempty,url"`
	Images             []string        `json:"images" validate:"omitempty,dive,url"`
	BrandID            *uuid.UUID      `json:"brandId"`
	CategoryIDs        []uuid.UUID     `json:"categoryIds"`
	TagIDs             []uuid.UUID     `json:"tagIds"`
	LinkedProductIDs   []uuid.UUID     `json:"linkedProductIds"`
}

type updateProductRequest struct {
	Name               *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description        *string          `json:"description" validate:"omitempty,max=5000"`
	Barcode            *string          `json:"barcode" validate:"omitempty,max=64"`
	Price              *decimal.Decimal `json:"price"`
	Cost               *decimal.Decimal `json:"cost"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage"`
	Stock              *int             `json:"stock" validate:"omitempty,gte=0"`
	Type               *string          `json:"type"`
	MainImage          *string          `json:"mainImage" validate:"omitempty,url"`
	Images             []string         `json:"images" validate:"omitempty,dive,url"`
	BrandID            *uuid.UUID       `json:"brandId"`
	CategoryIDs        []uuid.UUID      `json:"categoryIds"`
	TagIDs             []uuid.UUID      `json:"tagIds"`
	LinkedProductIDs   []uuid.UUID      `json:"linkedProductIds"`
}

type termRequest struct {
	Name string `json:"name" validate:"required,min=1,max=80"`
}

// ListProducts accepts ?search=, ?categoryId=, ?tagId=, ?brandId= and cursor paging.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := validators.QueryUUID(r, "categoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tagID, err := validators.QueryUUID(r, "tagId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		brandID, err := validators.QueryUUID(r, "brandId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := catalog.ProductFilter{
			Search:     validators.SanitizeString(r.URL.Query().Get("search"), maxSearchLength),
			CategoryID: categoryID,
			TagID:      tagID,
			BrandID:    brandID,
		}
		page, err := svc.ListProducts(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func GetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminCreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		var req createProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.CreateProduct(r.Context(), catalog.ProductInput{
			Name:               req.Name,
			Description:        req.Description,
			Barcode:            req.Barcode,
			Price:              req.Price,
			Cost:               req.Cost,
			DiscountPercentage: req.DiscountPercentage,
			Stock:              req.Stock,
			Type:               req.Type,
			MainImage:          req.MainImage,
			Images:             req.Images,
			BrandID:            req.BrandID,
			CategoryIDs:        req.CategoryIDs,
			TagIDs:             req.TagIDs,
			LinkedProductIDs:   req.LinkedProductIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, created)
	}
}

func AdminUpdateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.UpdateProduct(r.Context(), id, catalog.ProductPatch{
			Name:               req.Name,
			Description:        req.Description,
			Barcode:            req.Barcode,
			Price:              req.Price,
			Cost:               req.Cost,
			DiscountPercentage: req.DiscountPercentage,
			Stock:              req.Stock,
			Type:               req.Type,
			MainImage:          req.MainImage,
			Images:             req.Images,
			BrandID:            req.BrandID,
			CategoryIDs:        req.CategoryIDs,
			TagIDs:             req.TagIDs,
			LinkedProductIDs:   req.LinkedProductIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func AdminDeleteProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// ListTerms serves the public category, brand and tag listings.
func ListTerms(svc catalog.Service, kind catalog.TermKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		terms, err := svc.ListTerms(r.Context(), kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, terms)
	}
}

func AdminCreateTerm(svc catalog.Service, kind catalog.TermKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		var req termRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		term, err := svc.CreateTerm(r.Context(), kind, req.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, term)
	}
}

func AdminDeleteTerm(svc catalog.Service, kind catalog.TermKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		id, err := validators.PathUUID(r, "termId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteTerm(r.Context(), kind, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// AdminTopSellingProducts reports best-selling products. ?limit= caps the rows.
func AdminTopSellingProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.TopSellingProducts(r.Context(), params.Limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AdminTopSellingTerms reports categories, brands or tags by units sold.
func AdminTopSellingTerms(svc catalog.Service, kind catalog.TermKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog service"))
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var rows []catalog.TermSalesDTO
		switch kind {
		case catalog.KindCategory:
			rows, err = svc.TopSellingCategories(r.Context(), params.Limit)
		case catalog.KindTag:
			rows, err = svc.TopSellingTags(r.Context(), params.Limit)
		default:
			rows, err = svc.TopSellingBrands(r.Context(), params.Limit)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// ProductFilter narrows the public product listing.
type ProductFilter struct {
	Search     string
	CategoryID *uuid.UUID
	TagID      *uuid.UUID
	BrandID    *uuid.UUID
}

// Repository persists products and their taxonomy.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateProduct(ctx context.Context, product *models.Product) error
	SaveProduct(ctx context.Context, product *models.Product) error
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter, params pagination.Params) ([]models.Product, error)
	BarcodeTaken(ctx context.Context, barcode string, exclude uuid.UUID) (bool, error)
	ReplaceCategories(ctx context.Context, product *models.Product, ids []uuid.UUID) error
	ReplaceTags(ctx context.Context, product *models.Product, ids []uuid.UUID) error
	ReplaceLinks(ctx context.Context, product *models.Product, ids []uuid.UUID) error
	DeleteProduct(ctx context.Context, id uuid.UUID) (int64, error)

	CreateTerm(ctx context.Context, term any) error
	ListTerms(ctx context.Context, dest any) error
	DeleteTerm(ctx context.Context, kind TermKind, id uuid.UUID) (int64, error)
	BrandExists(ctx context.Context, id uuid.UUID) (bool, error)

	TopSellingProducts(ctx context.Context, limit int) ([]models.Product, error)
	TermSales(ctx context.Context, kind TermKind, limit int) ([]TermSales, error)
}

// TermSales is a category, brand or tag with the summed sales of its products.
type TermSales struct {
	ID         uuid.UUID
	Name       string
	TotalSales int64
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

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Categories", "Tags", "LinkedProducts", "Brand").Create(product).Error
}

func (r *repository) SaveProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Categories", "Tags", "LinkedProducts", "Brand").Save(product).Error
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.withRelations(r.db.WithContext(ctx)).
		Where("products.id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListProducts(ctx context.Context, filter ProductFilter, params pagination.Params) ([]models.Product, error) {
	q := r.withRelations(r.db.WithContext(ctx).Model(&models.Product{}))
	if search := strings.TrimSpace(filter.Search); search != "" {
		q = q.Where("LOWER(products.name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if filter.CategoryID != nil {
		q = q.Where("EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = products.id AND pc.category_id = ?)", *filter.CategoryID)
	}
	if filter.TagID != nil {
		q = q.Where("EXISTS (SELECT 1 FROM product_tags pt WHERE pt.product_id = products.id AND pt.tag_id = ?)", *filter.TagID)
	}
	if filter.BrandID != nil {
		q = q.Where("products.brand_id = ?", *filter.BrandID)
	}
	q, err := pagination.Apply(q, "products", params)
	if err != nil {
		return nil, err
	}
	var rows []models.Product
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) BarcodeTaken(ctx context.Context, barcode string, exclude uuid.UUID) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Product{}).Where("barcode = ?", barcode)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *repository) ReplaceCategories(ctx context.Context, product *models.Product, ids []uuid.UUID) error {
	var rows []models.Category
	return r.replace(ctx, product, "Categories", &rows, ids, func() int { return len(rows) })
}

func (r *repository) ReplaceTags(ctx context.Context, product *models.Product, ids []uuid.UUID) error {
	var rows []models.Tag
	return r.replace(ctx, product, "Tags", &rows, ids, func() int { return len(rows) })
}

func (r *repository) ReplaceLinks(ctx context.Context, product *models.Product, ids []uuid.UUID) error {
	var rows []models.Product
	return r.replace(ctx, product, "LinkedProducts", &rows, ids, func() int { return len(rows) })
}

// replace swaps a many2many association. Unknown ids surface as
// gorm.ErrRecordNotFound.
func (r *repository) replace(ctx context.Context, product *models.Product, association string, dest any, ids []uuid.UUID, found func() int) error {
	assoc := r.db.WithContext(ctx).Model(product).Association(association)
	if len(ids) == 0 {
		return assoc.Clear()
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(dest).Error; err != nil {
		return err
	}
	if found() != len(ids) {
		return gorm.ErrRecordNotFound
	}
	return assoc.Replace(dest)
}

// DeleteProduct removes the product together with every row pointing at it.
// Order lines keep their snapshot and are left alone.
func (r *repository) DeleteProduct(ctx context.Context, id uuid.UUID) (int64, error) {
	db := r.db.WithContext(ctx)
	for _, stmt := range []string{
		"DELETE FROM product_categories WHERE product_id = ?",
		"DELETE FROM product_tags WHERE product_id = ?",
		"DELETE FROM product_links WHERE product_id = ? OR linked_product_id = ?",
		"DELETE FROM user_wishlist WHERE product_id = ?",
		"DELETE FROM cart_items WHERE product_id = ?",
	} {
		args := []any{id}
		if strings.Count(stmt, "?") == 2 {
			args = append(args, id)
		}
		if err := db.Exec(stmt, args...).Error; err != nil {
			return 0, err
		}
	}
	res := db.Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected, res.Error
}

func (r *repository) CreateTerm(ctx context.Context, term any) error {
	return r.db.WithContext(ctx).Create(term).Error
}

func (r *repository) ListTerms(ctx context.Context, dest any) error {
	return r.db.WithContext(ctx).Order("name ASC").Find(dest).Error
}

// DeleteTerm removes a category, brand or tag and detaches it from products.
func (r *repository) DeleteTerm(ctx context.Context, kind TermKind, id uuid.UUID) (int64, error) {
	db := r.db.WithContext(ctx)
	var detach string
	switch kind {
	case KindCategory:
		detach = "DELETE FROM product_categories WHERE category_id = ?"
	case KindTag:
		detach = "DELETE FROM product_tags WHERE tag_id = ?"
	case KindBrand:
		detach = "UPDATE products SET brand_id = NULL WHERE brand_id = ?"
	}
	if err := db.Exec(detach, id).Error; err != nil {
		return 0, err
	}
	res := db.Where("id = ?", id).Delete(kind.model())
	return res.RowsAffected, res.Error
}

func (r *repository) BrandExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Brand{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *repository) TopSellingProducts(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Order("number_of_sales DESC").
		Order("name ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// TermSales ranks every term of kind by the sales of the products carrying
// it. Terms without sales are listed with zero.
func (r *repository) TermSales(ctx context.Context, kind TermKind, limit int) ([]TermSales, error) {
	var from string
	switch kind {
	case KindCategory:
		from = "categories t LEFT JOIN product_categories j ON j.category_id = t.id LEFT JOIN products p ON p.id = j.product_id"
	case KindTag:
		from = "tags t LEFT JOIN product_tags j ON j.tag_id = t.id LEFT JOIN products p ON p.id = j.product_id"
	case KindBrand:
		from = "brands t LEFT JOIN products p ON p.brand_id = t.id"
	default:
		return nil, fmt.Errorf("unknown taxonomy %q", kind)
	}
	query := "SELECT t.id AS id, t.name AS name, COALESCE(SUM(p.number_of_sales), 0) AS total_sales FROM " + from +
		" GROUP BY t.id, t.name ORDER BY total_sales DESC, t.name ASC LIMIT ?"

	var rows []TermSales
	if err := r.db.WithContext(ctx).Raw(query, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) withRelations(q *gorm.DB) *gorm.DB {
	return q.Preload("Brand").Preload("Categories").Preload("Tags").Preload("LinkedProducts")
}

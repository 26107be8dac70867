package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// LineView is a cart line priced at current catalog values.
type LineView struct {
	ID                 uuid.UUID       `json:"id"`
	ProductID          uuid.UUID       `json:"productId"`
	ProductName        string          `json:"productName"`
	MainImage          *string         `json:"mainImage,omitempty"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	EffectiveUnitPrice decimal.Decimal `json:"effectiveUnitPrice"`
	Counter            int             `json:"counter"`
	LineTotal          decimal.Decimal `json:"lineTotal"`
	Stock              int             `json:"stock"`
}

// CartView is the full cart returned by every cart mutation.
type CartView struct {
	UserID   uuid.UUID       `json:"userId"`
	Lines    []LineView      `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
}

func newLineView(item models.CartItem) LineView {
	view := LineView{
		ID:        item.ID,
		ProductID: item.ProductID,
		Counter:   item.Counter,
	}
	if p := item.Product; p != nil {
		view.ProductName = p.Name
		view.MainImage = p.MainImage
		view.UnitPrice = p.Price
		view.DiscountPercentage = p.DiscountPercentage
		view.EffectiveUnitPrice = pricing.EffectiveUnitPrice(p.Price, p.DiscountPercentage)
		view.LineTotal = pricing.LineTotal(p.Price, p.DiscountPercentage, item.Counter)
		view.Stock = p.Stock
	}
	return view
}

func newCartView(userID uuid.UUID, items []models.CartItem) *CartView {
	view := &CartView{UserID: userID, Lines: make([]LineView, 0, len(items))}
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		view.Lines = append(view.Lines, newLineView(item))
		lines = append(lines, pricing.FromCartItem(item))
	}
	quote := pricing.Quote(lines, nil)
	view.Subtotal = quote.Subtotal
	view.Total = quote.Total
	return view
}

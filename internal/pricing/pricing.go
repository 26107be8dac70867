// Package pricing holds the money arithmetic shared by the cart view and
// checkout. Every function is pure.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

var hundred = decimal.NewFromInt(100)

// Line is the pricing view of a cart line.
type Line struct {
	UnitPrice          decimal.Decimal
	DiscountPercentage decimal.Decimal
	Quantity           int
}

// Voucher is the pricing view of a voucher. At most one field is expected to
// be set; the percentage wins when both are.
type Voucher struct {
	Percentage *decimal.Decimal
	Value      *decimal.Decimal
}

// Breakdown is the result of Quote.
type Breakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// EffectiveUnitPrice applies the product discount to a unit price.
func EffectiveUnitPrice(price, pct decimal.Decimal) decimal.Decimal {
	if pct.IsPositive() {
		return price.Sub(price.Mul(pct).Div(hundred))
	}
	return price
}

// LineTotal is the effective unit price times the quantity.
func LineTotal(price, pct decimal.Decimal, counter int) decimal.Decimal {
	return EffectiveUnitPrice(price, pct).Mul(decimal.NewFromInt(int64(counter)))
}

// Subtotal sums the line totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineTotal(l.UnitPrice, l.DiscountPercentage, l.Quantity))
	}
	return sum
}

// ApplyVoucher reduces total by the voucher. A nil voucher is a no-op.
func ApplyVoucher(total decimal.Decimal, v *Voucher) decimal.Decimal {
	if v == nil {
		return total
	}
	if v.Percentage != nil {
		return total.Sub(total.Mul(*v.Percentage).Div(hundred))
	}
	if v.Value != nil {
		return total.Sub(*v.Value)
	}
	return total
}

// Total floors amount at zero and rounds it to cents.
func Total(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}

// Quote prices a set of lines with an optional voucher.
func Quote(lines []Line, v *Voucher) Breakdown {
	subtotal := Subtotal(lines)
	total := Total(ApplyVoucher(subtotal, v))
	return Breakdown{
		Subtotal: subtotal.Round(2),
		Discount: subtotal.Round(2).Sub(total),
		Total:    total,
	}
}

// FromVoucher adapts a stored voucher.
func FromVoucher(v *models.Voucher) *Voucher {
	if v == nil {
		return nil
	}
	return &Voucher{Percentage: v.DiscountPercentage, Value: v.DiscountValue}
}

// FromCartItem adapts a cart line with its product preloaded.
func FromCartItem(item models.CartItem) Line {
	if item.Product == nil {
		return Line{Quantity: item.Counter}
	}
	return Line{
		UnitPrice:          item.Product.Price,
		DiscountPercentage: item.Product.DiscountPercentage,
		Quantity:           item.Counter,
	}
}

package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLineTotalAppliesDiscountPerUnit(t *testing.T) {
	got := LineTotal(dec("100"), dec("20"), 3)
	if !got.Equal(dec("240")) {
		t.Fatalf("expected 240, got %s", got)
	}
}

func TestEffectiveUnitPriceIgnoresNonPositiveDiscount(t *testing.T) {
	for _, pct := range []string{"0", "-5"} {
		if got := EffectiveUnitPrice(dec("12.50"), dec(pct)); !got.Equal(dec("12.50")) {
			t.Fatalf("pct %s: expected 12.50, got %s", pct, got)
		}
	}
}

func TestApplyVoucher(t *testing.T) {
	pct := dec("10")
	value := dec("15")
	cases := []struct {
		name string
		v    *Voucher
		want string
	}{
		{"nil voucher", nil, "200"},
		{"percentage", &Voucher{Percentage: &pct}, "180"},
		{"value", &Voucher{Value: &value}, "185"},
		{"percentage wins", &Voucher{Percentage: &pct, Value: &value}, "180"},
		{"empty voucher", &Voucher{}, "200"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ApplyVoucher(dec("200"), tc.v); !got.Equal(dec(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestQuoteFloorsAtZero(t *testing.T) {
	value := dec("500")
	b := Quote([]Line{{UnitPrice: dec("30"), Quantity: 2}}, &Voucher{Value: &value})
	if !b.Total.IsZero() {
		t.Fatalf("expected total 0, got %s", b.Total)
	}
	if !b.Subtotal.Equal(dec("60")) || !b.Discount.Equal(dec("60")) {
		t.Fatalf("unexpected breakdown %+v", b)
	}
}

func TestQuoteRoundsToCents(t *testing.T) {
	pct := dec("33")
	b := Quote([]Line{
		{UnitPrice: dec("9.99"), DiscountPercentage: dec("15"), Quantity: 1},
		{UnitPrice: dec("3.33"), Quantity: 3},
	}, &Voucher{Percentage: &pct})

	// 8.4915 + 9.99 = 18.4815; minus 33% = 12.382605
	if !b.Total.Equal(dec("12.38")) {
		t.Fatalf("expected 12.38, got %s", b.Total)
	}
	if !b.Subtotal.Equal(dec("18.48")) {
		t.Fatalf("expected subtotal 18.48, got %s", b.Subtotal)
	}
	if !b.Discount.Equal(dec("6.10")) {
		t.Fatalf("expected discount 6.10, got %s", b.Discount)
	}
}

func TestAdapters(t *testing.T) {
	if FromVoucher(nil) != nil {
		t.Fatal("nil voucher should adapt to nil")
	}
	line := FromCartItem(models.CartItem{
		Counter: 4,
		Product: &models.Product{Price: dec("5"), DiscountPercentage: dec("50")},
	})
	if got := LineTotal(line.UnitPrice, line.DiscountPercentage, line.Quantity); !got.Equal(dec("10")) {
		t.Fatalf("expected 10, got %s", got)
	}
}

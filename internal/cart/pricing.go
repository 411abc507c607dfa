package cart

import (
	"net/url"
	"sort"
	"strings"

	"cardapio/internal/models"

	"github.com/shopspring/decimal"
)

// Totals are derived from the cart lines and the applied discount; they are never stored.
type Totals struct {
	TotalItems int     `json:"total_items"`
	TotalPrice float64 `json:"total_price"`
	Discount   float64 `json:"discount"`
	FinalPrice float64 `json:"final_price"`
}

// UnitPrice is the base price plus the price of every selected option.
func UnitPrice(base float64, options []models.SelectedOption) decimal.Decimal {
	unit := decimal.NewFromFloat(base)
	for _, o := range options {
		unit = unit.Add(decimal.NewFromFloat(o.Option.Price))
	}
	return unit
}

// LineTotal is (unit price + option prices) * quantity.
func LineTotal(item models.CartItem) decimal.Decimal {
	return UnitPrice(item.Product.Price, item.SelectedOptions).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// ComputeTotals sums the lines and clamps the final price at zero.
func ComputeTotals(items []models.CartItem, discount float64) Totals {
	total := decimal.Zero
	count := 0
	for _, item := range items {
		total = total.Add(LineTotal(item))
		count += item.Quantity
	}
	final := total.Sub(decimal.NewFromFloat(discount))
	if final.IsNegative() {
		final = decimal.Zero
	}
	return Totals{
		TotalItems: count,
		TotalPrice: Money(total),
		Discount:   discount,
		FinalPrice: Money(final),
	}
}

// Money rounds d to cents.
func Money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// LineKey identifies a cart line: the product id alone when no options are selected,
// otherwise the product id followed by the sorted group=option pairs. Every part is
// query-escaped, so names containing the separators cannot collide.
func LineKey(productID string, options []models.SelectedOption) string {
	if len(options) == 0 {
		return url.QueryEscape(productID)
	}
	pairs := selectionOf(options)
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, url.QueryEscape(p.group)+"="+url.QueryEscape(p.option))
	}
	return url.QueryEscape(productID) + "|" + strings.Join(parts, ",")
}

// ItemKey is LineKey for an existing cart item.
func ItemKey(item models.CartItem) string {
	return LineKey(item.Product.ID, item.SelectedOptions)
}

type choice struct {
	group  string
	option string
}

// selectionOf returns the chosen (group, option) pairs in a stable order.
func selectionOf(options []models.SelectedOption) []choice {
	pairs := make([]choice, 0, len(options))
	for _, o := range options {
		pairs = append(pairs, choice{group: o.GroupName, option: o.Option.Name})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].group != pairs[j].group {
			return pairs[i].group < pairs[j].group
		}
		return pairs[i].option < pairs[j].option
	})
	return pairs
}

// sameLine reports whether a and b are the same product with the same option set.
func sameLine(a, b models.CartItem) bool {
	if a.Product.ID != b.Product.ID || len(a.SelectedOptions) != len(b.SelectedOptions) {
		return false
	}
	pa, pb := selectionOf(a.SelectedOptions), selectionOf(b.SelectedOptions)
	for i := range pa {
		if pa[i] != pb[i] {
			return false
		}
	}
	return true
}

// duplicateChoice returns the first (group, option) pair selected more than once.
func duplicateChoice(options []models.SelectedOption) (choice, bool) {
	pairs := selectionOf(options)
	for i := 1; i < len(pairs); i++ {
		if pairs[i] == pairs[i-1] {
			return pairs[i], true
		}
	}
	return choice{}, false
}

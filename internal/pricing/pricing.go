// Package pricing computes quote totals from line items and the active
// discount. GBP and USD are computed independently in whole units.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

// Totals is the priced outcome of a quote.
type Totals struct {
	Subtotal types.Money `json:"subtotal"`
	Discount types.Money `json:"discountAmount"`
	Total    types.Money `json:"total"`
}

var hundred = decimal.NewFromInt(100)

// Calculate prices items under src. A nil src means no discount. Sources are
// validated at construction, so Calculate does not fail.
func Calculate(items types.LineItems, src *discounts.Source) Totals {
	subtotal := Subtotal(items)
	if src == nil {
		return Totals{Subtotal: subtotal, Total: subtotal}
	}

	switch {
	case src.Promo != nil:
		discount := reduction(subtotal, src.Promo.DiscountType, src.Promo.DiscountValue, src.Promo.FixedValue)
		return reduced(subtotal, discount)
	case src.Offer != nil:
		return offerTotals(items, subtotal, src.Offer)
	case src.Package != nil:
		return packageTotals(items, subtotal, src.Package)
	}
	return Totals{Subtotal: subtotal, Total: subtotal}
}

// Subtotal sums unit price times quantity per currency.
func Subtotal(items types.LineItems) types.Money {
	var sum types.Money
	for _, item := range items {
		sum = sum.Add(item.UnitPrice.Times(item.Quantity))
	}
	return sum
}

func offerTotals(items types.LineItems, subtotal types.Money, offer *discounts.SpecialOffer) Totals {
	if offer.Mode == enums.OfferModeBonusItem {
		owner := "offer:" + offer.ID
		var nominal types.Money
		for _, item := range items {
			if item.IsBonus && item.Owner == owner {
				nominal = nominal.Add(item.Nominal.Times(item.Quantity))
			}
		}
		// The bonus is already priced at zero; the nominal value is display only.
		return Totals{Subtotal: subtotal, Discount: nominal, Total: subtotal}
	}

	base := subtotal
	if offer.ApplicableTreatmentID != "" {
		base = types.Money{}
		for _, item := range items {
			if item.TreatmentID == offer.ApplicableTreatmentID {
				base = base.Add(item.UnitPrice.Times(item.Quantity))
			}
		}
	}
	return reduced(subtotal, reduction(base, offer.DiscountType, offer.DiscountValue, offer.FixedValue))
}

// packageTotals replaces the price of the package's own items with its fixed
// price. Items the package did not place on the quote are charged normally.
func packageTotals(items types.LineItems, subtotal types.Money, pkg *discounts.Package) Totals {
	owner := "package:" + pkg.ID

	var portion types.Money
	for _, item := range items {
		if item.Owner == owner {
			portion = portion.Add(item.UnitPrice.Times(item.Quantity))
		}
	}
	rest := subtotal.Sub(portion)
	return Totals{
		Subtotal: subtotal,
		Discount: portion.Sub(pkg.FixedPrice).FloorZero(),
		Total:    pkg.FixedPrice.Add(rest),
	}
}

// IncludedUnits counts package units per treatment id.
func IncludedUnits(pkg *discounts.Package) map[string]int {
	units := make(map[string]int, len(pkg.IncludedTreatments))
	for _, id := range pkg.IncludedTreatments {
		units[id]++
	}
	return units
}

// reduction computes the discount against base without exceeding it.
func reduction(base types.Money, kind enums.DiscountType, value decimal.Decimal, fixed types.Money) types.Money {
	switch kind {
	case enums.DiscountTypePercentage:
		return types.NewMoney(percentOf(base.GBP, value), percentOf(base.USD, value)).Min(base)
	case enums.DiscountTypeFixed:
		return fixed.FloorZero().Min(base.FloorZero())
	}
	return types.Money{}
}

// percentOf rounds half-up to whole units. Amounts here are never negative,
// where decimal's half-away-from-zero rounding is half-up.
func percentOf(amount int64, percent decimal.Decimal) int64 {
	if amount <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(percent).Div(hundred).Round(0).IntPart()
}

func reduced(subtotal, discount types.Money) Totals {
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount).FloorZero(),
	}
}

package enums

import (
	"fmt"
	"strings"
)

// OfferMode selects how a special offer is represented on a quote.
type OfferMode string

const (
	OfferModePriceDiscount OfferMode = "price_discount"
	OfferModeBonusItem     OfferMode = "bonus_item"
)

var validOfferModes = []OfferMode{
	OfferModePriceDiscount,
	OfferModeBonusItem,
}

// String implements fmt.Stringer.
func (o OfferMode) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OfferMode.
func (o OfferMode) IsValid() bool {
	for _, candidate := range validOfferModes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOfferMode converts raw input into a OfferMode.
func ParseOfferMode(value string) (OfferMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validOfferModes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer mode %q", value)
}

package enums

import (
	"fmt"
	"strings"
)

// DiscountState is the quote-level discount state machine position.
type DiscountState string

const (
	DiscountStateNone           DiscountState = "none"
	DiscountStatePromoApplied   DiscountState = "promo_applied"
	DiscountStateOfferApplied   DiscountState = "offer_applied"
	DiscountStatePackageApplied DiscountState = "package_applied"
)

var validDiscountStates = []DiscountState{
	DiscountStateNone,
	DiscountStatePromoApplied,
	DiscountStateOfferApplied,
	DiscountStatePackageApplied,
}

// String implements fmt.Stringer.
func (d DiscountState) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountState.
func (d DiscountState) IsValid() bool {
	for _, candidate := range validDiscountStates {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountState converts raw input into a DiscountState.
func ParseDiscountState(value string) (DiscountState, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDiscountStates {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount state %q", value)
}

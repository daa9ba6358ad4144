package enums

import (
	"fmt"
	"strings"
)

// DiscountKind tags which variant of a discount source is populated.
type DiscountKind string

const (
	DiscountKindPromo   DiscountKind = "promo"
	DiscountKindOffer   DiscountKind = "offer"
	DiscountKindPackage DiscountKind = "package"
)

var validDiscountKinds = []DiscountKind{
	DiscountKindPromo,
	DiscountKindOffer,
	DiscountKindPackage,
}

// String implements fmt.Stringer.
func (d DiscountKind) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountKind.
func (d DiscountKind) IsValid() bool {
	for _, candidate := range validDiscountKinds {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountKind converts raw input into a DiscountKind.
func ParseDiscountKind(value string) (DiscountKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDiscountKinds {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount kind %q", value)
}

package discounts

import "errors"

var (
	// ErrInvalidPromoCode means the code is unknown, inactive, expired or used up.
	ErrInvalidPromoCode = errors.New("invalid promo code")
	// ErrInvalidDiscountSource means a source failed construction-time validation.
	ErrInvalidDiscountSource = errors.New("invalid discount source")
	// ErrDiscountSourceUnavailable means offer or package details could not be fetched.
	ErrDiscountSourceUnavailable = errors.New("discount source unavailable")
	// ErrNotFound is returned by fetchers for unknown offers or packages.
	ErrNotFound = errors.New("discount source not found")
)

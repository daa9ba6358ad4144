package enums

import (
	"fmt"
	"strings"
)

// QuoteAction names an inbound mutation accepted by the quote service.
type QuoteAction string

const (
	QuoteActionAddTreatment    QuoteAction = "addTreatment"
	QuoteActionRemoveTreatment QuoteAction = "removeTreatment"
	QuoteActionUpdateQuantity  QuoteAction = "updateQuantity"
	QuoteActionApplyPromo      QuoteAction = "applyPromo"
	QuoteActionApplyOffer      QuoteAction = "applyOffer"
	QuoteActionApplyPackage    QuoteAction = "applyPackage"
	QuoteActionClearDiscount   QuoteAction = "clearDiscount"
	QuoteActionReset           QuoteAction = "reset"
)

var validQuoteActions = []QuoteAction{
	QuoteActionAddTreatment,
	QuoteActionRemoveTreatment,
	QuoteActionUpdateQuantity,
	QuoteActionApplyPromo,
	QuoteActionApplyOffer,
	QuoteActionApplyPackage,
	QuoteActionClearDiscount,
	QuoteActionReset,
}

// String implements fmt.Stringer.
func (q QuoteAction) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QuoteAction.
func (q QuoteAction) IsValid() bool {
	for _, candidate := range validQuoteActions {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQuoteAction converts raw input into a QuoteAction.
func ParseQuoteAction(value string) (QuoteAction, error) {
	normalized := strings.TrimSpace(value)
	for _, candidate := range validQuoteActions {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quote action %q", value)
}

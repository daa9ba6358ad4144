package quote

import (
	"time"

	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/internal/pricing"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

// State is the single authoritative snapshot of a quote.
type State struct {
	QuoteKey       string              `json:"quoteKey"`
	LineItems      types.LineItems     `json:"lineItems"`
	ActiveDiscount *discounts.Source   `json:"activeDiscount"`
	DiscountState  enums.DiscountState `json:"discountState"`
	Subtotal       types.Money         `json:"subtotal"`
	DiscountAmount types.Money         `json:"discountAmount"`
	Total          types.Money         `json:"total"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// NewState returns an empty quote.
func NewState(key string) State {
	return State{QuoteKey: key, LineItems: types.LineItems{}, DiscountState: enums.DiscountStateNone}
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := s
	out.LineItems = s.LineItems.Clone()
	if out.LineItems == nil {
		out.LineItems = types.LineItems{}
	}
	out.ActiveDiscount = s.ActiveDiscount.Clone()
	return out
}

// DiscountIdentity is the identity of the active discount or empty.
func (s State) DiscountIdentity() string {
	return s.ActiveDiscount.Identity()
}

// IsEmpty reports whether the quote has neither items nor a discount.
func (s State) IsEmpty() bool {
	return len(s.LineItems) == 0 && s.ActiveDiscount == nil
}

func (s *State) recompute() {
	for i := range s.LineItems {
		s.LineItems[i].Recompute()
	}
	s.DiscountState = s.ActiveDiscount.State()
	totals := pricing.Calculate(s.LineItems, s.ActiveDiscount)
	s.Subtotal = totals.Subtotal
	s.DiscountAmount = totals.Discount
	s.Total = totals.Total
}

// clearDiscount drops the active discount and its injected items, and gives
// back any user units a package absorbed.
func (s *State) clearDiscount() {
	if s.ActiveDiscount == nil {
		return
	}
	owner := s.ActiveDiscount.Identity()
	var absorbed types.LineItems
	for _, item := range s.LineItems {
		if item.Owner == owner {
			absorbed = append(absorbed, item.Absorbed...)
		}
	}
	s.LineItems = s.LineItems.WithoutOwner(owner)
	for _, item := range absorbed {
		if i := s.LineItems.Find(item.ID); i >= 0 {
			s.LineItems[i].Quantity += item.Quantity
			continue
		}
		s.LineItems = append(s.LineItems, item)
	}
	s.ActiveDiscount = nil
}

package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/mydentalfly/quote-backend/pkg/enums"
)

// LineItem is one treatment entry within a quote.
type LineItem struct {
	ID          uuid.UUID               `json:"id"`
	TreatmentID string                  `json:"treatmentId"`
	Name        string                  `json:"name"`
	Category    enums.TreatmentCategory `json:"category,omitempty"`
	Quantity    int                     `json:"quantity"`
	UnitPrice   Money                   `json:"unitPrice"`
	Subtotal    Money                   `json:"subtotal"`
	IsLocked    bool                    `json:"isLocked"`
	IsBonus     bool                    `json:"isBonus"`
	// Owner is the identity of the discount that injected the item.
	Owner string `json:"ownerSource,omitempty"`
	// Nominal is the catalog value of a bonus item priced at zero.
	Nominal Money `json:"nominal,omitempty"`
	// Absorbed holds the user units a package item stands in for. They are
	// handed back when the package leaves the quote.
	Absorbed LineItems `json:"absorbed,omitempty"`
}

// Recompute refreshes the derived subtotal from unit price and quantity.
func (l *LineItem) Recompute() {
	l.Subtotal = l.UnitPrice.Times(l.Quantity)
}

// Injected reports whether a discount placed the item on the quote.
func (l LineItem) Injected() bool {
	return l.Owner != ""
}

// LineItems persists as a JSON array.
type LineItems []LineItem

// Clone returns a copy that shares no backing array with the receiver.
func (items LineItems) Clone() LineItems {
	if items == nil {
		return nil
	}
	out := make(LineItems, len(items))
	copy(out, items)
	for i := range out {
		out[i].Absorbed = out[i].Absorbed.Clone()
	}
	return out
}

// Find returns the index of the line item with the given id or -1.
func (items LineItems) Find(id uuid.UUID) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// WithoutOwner drops every item injected by the given discount identity.
func (items LineItems) WithoutOwner(owner string) LineItems {
	if owner == "" {
		return items.Clone()
	}
	out := make(LineItems, 0, len(items))
	for _, item := range items {
		if item.Owner == owner {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Value serializes the line items to JSON.
func (items LineItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes a JSON array into the line items.
func (items *LineItems) Scan(value any) error {
	if value == nil {
		*items = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded LineItems
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*items = decoded
	return nil
}

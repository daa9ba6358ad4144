package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/mydentalfly/quote-backend/pkg/enums"
)

// Money holds parallel whole-unit amounts. GBP and USD are sourced
// independently and are never converted from one another.
type Money struct {
	GBP int64 `json:"gbp"`
	USD int64 `json:"usd"`
}

func NewMoney(gbp, usd int64) Money {
	return Money{GBP: gbp, USD: usd}
}

func (m Money) Add(other Money) Money {
	return Money{GBP: m.GBP + other.GBP, USD: m.USD + other.USD}
}

func (m Money) Sub(other Money) Money {
	return Money{GBP: m.GBP - other.GBP, USD: m.USD - other.USD}
}

// Times multiplies both currencies by a quantity.
func (m Money) Times(n int) Money {
	return Money{GBP: m.GBP * int64(n), USD: m.USD * int64(n)}
}

// Min returns the per-currency minimum.
func (m Money) Min(other Money) Money {
	return Money{GBP: min(m.GBP, other.GBP), USD: min(m.USD, other.USD)}
}

// FloorZero clamps negative amounts to zero per currency.
func (m Money) FloorZero() Money {
	return Money{GBP: max(m.GBP, 0), USD: max(m.USD, 0)}
}

func (m Money) IsZero() bool {
	return m.GBP == 0 && m.USD == 0
}

// IsNegative reports whether either currency is below zero.
func (m Money) IsNegative() bool {
	return m.GBP < 0 || m.USD < 0
}

// In returns the amount for one currency.
func (m Money) In(c enums.Currency) int64 {
	switch c {
	case enums.CurrencyGBP:
		return m.GBP
	case enums.CurrencyUSD:
		return m.USD
	default:
		return 0
	}
}

func (m Money) String() string {
	return fmt.Sprintf("£%d/$%d", m.GBP, m.USD)
}

// Value serializes the amount pair to JSON.
func (m Money) Value() (driver.Value, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes a JSON amount pair.
func (m *Money) Scan(value any) error {
	if value == nil {
		*m = Money{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, m)
}

// README: Money value object in minor units, shared by fares, settlements and expenses.
package types

import (
	"fmt"
	"math"
)

// DefaultCurrency is used when a caller does not specify one.
const DefaultCurrency = "INR"

// MaxUnits bounds any amount accepted from callers or computed from their input,
// keeping minor units well inside int64.
const MaxUnits = 1e12

// Money is an amount in minor units (1/100 of the currency unit).
type Money struct {
	Amount   int64
	Currency string
}

// ValidAmount reports whether v is finite and within MaxUnits in magnitude.
func ValidAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= MaxUnits
}

// MoneyFromFloat rounds v to two decimals, half away from zero. Callers check
// ValidAmount first for values derived from input.
func MoneyFromFloat(v float64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: int64(math.Round(v * 100)), Currency: currency}
}

func (m Money) Float() float64 {
	return float64(m.Amount) / 100
}

func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.currencyOr(o)}
}

// Div splits into n parts rounded to the nearest minor unit.
func (m Money) Div(n int) Money {
	if n <= 0 {
		return Money{Currency: m.Currency}
	}
	return Money{Amount: int64(math.Round(float64(m.Amount) / float64(n))), Currency: m.Currency}
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) String() string {
	sign := ""
	a := uint64(m.Amount)
	if m.Amount < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%02d", sign, a/100, a%100)
}

// MarshalJSON renders the amount as a decimal string, e.g. "125.00".
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m Money) currencyOr(o Money) string {
	if m.Currency != "" {
		return m.Currency
	}
	return o.Currency
}

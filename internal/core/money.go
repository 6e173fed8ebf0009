// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Parsing and rendering go through
// decimal arithmetic so user input like "12.345" rounds predictably.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents and non-positive results are rejected with ErrInvalidAmount.
//
// Examples:
//   ParseDecimalToCents("12.34") -> 1234, nil
//   ParseDecimalToCents("12,34") -> 1234, nil
//   ParseDecimalToCents("12.345") -> 1235, nil
//   ParseDecimalToCents("12.344") -> 1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "+-eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents, err := toCents(d)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// maxCents bounds every amount so sums of many amounts stay inside int64.
var maxCents = decimal.NewFromInt(1 << 62)

// toCents rounds d half-up to whole cents, rejecting magnitudes past maxCents.
func toCents(d decimal.Decimal) (int64, error) {
	cents := d.Shift(2).Round(0)
	if cents.Abs().GreaterThan(maxCents) {
		return 0, ErrAmountOutOfRange
	}
	return cents.IntPart(), nil
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format renders the amount with a currency symbol, e.g. "£12.50" or "£-3.00".
func (m Money) Format(symbol string) string {
	return symbol + m.String()
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Clamp bounds m to [lo, hi].
func (m Money) Clamp(lo, hi Money) Money {
	if m.Cents < lo.Cents {
		return lo
	}
	if m.Cents > hi.Cents {
		return hi
	}
	return m
}

// AtLeastZero floors negative amounts at zero.
func (m Money) AtLeastZero() Money {
	if m.Cents < 0 {
		return Money{}
	}
	return m
}

// MarshalJSON writes the amount as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string. Sign is
// left to the owning type's Validate; zero progress is a legal value.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid amount %s: %w", string(data), err)
	}
	cents, err := toCents(d)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", string(data), err)
	}
	*m = Money{Cents: cents}
	return nil
}

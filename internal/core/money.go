// Package core provides money parsing and handling utilities.
//
// Amounts are carried as integer cents so sums stay exact. Conversion from
// the decimal values the record stores return goes through shopspring/decimal
// with half-up rounding to two places.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a user-entered decimal string to Money.
//
// Both dot (12.34) and comma (12,34) separators are accepted and the value is
// rounded half-up to cents. Empty input is zero; negative or malformed input
// returns ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents
//	ParseAmount("")       -> 0 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, nil
	}
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		// Whichever separator comes last is the decimal one.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d), nil
}

// MoneyFromDecimal rounds d half-up to cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Mul(hundred).IntPart()}
}

// MoneyFromFloat is used for amounts that arrive as spreadsheet numbers.
func MoneyFromFloat(f float64) Money {
	return MoneyFromDecimal(decimal.NewFromFloat(f))
}

// DecodeAmount reads an amount as record stores and seed files write it: a
// JSON number or a numeric string, with dot or comma separators. Null, empty
// and malformed values are zero.
func DecodeAmount(raw []byte) Money {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(raw)), `"`))
	if s == "" || s == "null" {
		return Money{}
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return MoneyFromDecimal(d)
	}
	m, _ := ParseAmount(s)
	return m
}

// Decimal returns the exact decimal value in euros.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Euros returns the euro value as a float64 for display and JSON output.
// Use cents for calculations.
func (m Money) Euros() float64 {
	return m.Decimal().InexactFloat64()
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Format renders the amount the way the dashboard shows it: German
// grouping, comma decimals and a trailing euro sign ("1.234,56 €").
func (m Money) Format() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	fixed := decimal.New(cents, -2).StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	b.WriteString(" €")
	return b.String()
}

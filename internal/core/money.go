// Package core provides the reservation domain model and yen amount handling.
//
// Amounts are whole yen held in int64. This file contains the parsing used
// for raw form and spreadsheet values and the display formatting.
package core

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ErrInvalidAmount = errors.New("invalid amount")

var maxYen = decimal.NewFromInt(math.MaxInt64)

// Upper bounds accepted at the data-entry boundary. They keep
// MaxAmount*MaxPeople plus surcharges inside int64.
const (
	MaxAmount int64 = 999_999_999_999
	MaxPeople int64 = 99_999
)

// AddYen adds two amounts, saturating at the int64 limits instead of wrapping.
func AddYen(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

// mulYen multiplies two non-negative amounts, saturating at math.MaxInt64.
func mulYen(a, b int64) int64 {
	if a != 0 && b > math.MaxInt64/a {
		return math.MaxInt64
	}
	return a * b
}

// ParseYen converts a yen string to whole yen.
//
// A leading ¥ or ￥ sign, thousands separators and surrounding spaces are
// accepted. Fractions are rounded half-up. Negative, non-numeric and
// out-of-range values return ErrInvalidAmount. An empty string is zero.
//
// Examples:
//
//	ParseYen("¥12,000") -> 12000, nil
//	ParseYen("1500.5")  -> 1501, nil
//	ParseYen("")        -> 0, nil
func ParseYen(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "￥")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	d = d.Round(0)
	if d.GreaterThan(maxYen) {
		return 0, ErrInvalidAmount
	}
	return d.IntPart(), nil
}

// NumericOrZero applies the form coercion rule: anything that is not a
// non-negative number becomes 0.
func NumericOrZero(s string) int64 {
	v, err := ParseYen(s)
	if err != nil {
		return 0
	}
	return v
}

// FormatYen renders an amount for display, e.g. ¥1,234.
func FormatYen(yen int64) string {
	p := message.NewPrinter(language.Japanese)
	if yen < 0 {
		return "-" + p.Sprintf("¥%d", -yen)
	}
	return p.Sprintf("¥%d", yen)
}

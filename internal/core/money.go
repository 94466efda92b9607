// Package core provides the request-side domain types of the rewards
// service and money parsing utilities.
package core

import (
	"strconv"
	"strings"
)

// ParseDecimalAmount converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Returns ErrInvalidAmount for
// invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalAmount("12.34")  -> Money{1234}, nil
//	ParseDecimalAmount("12,34")  -> Money{1234}, nil
//	ParseDecimalAmount("12.345") -> Money{1235}, nil (rounds up)
func ParseDecimalAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") {
		return Money{}, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return Money{}, ErrInvalidAmount
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv >= maxSafeInt64 {
		return Money{}, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// allDigits accepts ASCII digits only; callers index the string byte by byte.
func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Units returns the amount in currency units, the form the points engine
// works with.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) String() string {
	return strconv.FormatFloat(m.Units(), 'f', 2, 64)
}

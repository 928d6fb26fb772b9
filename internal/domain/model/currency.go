package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidCurrency = errors.New("invalid currency")

// Currency is an ISO 4217 style label as it appears in the rate table header.
type Currency string

// NewCurrency trims and upper-cases a raw label.
func NewCurrency(raw string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsValid reports whether c is exactly three ASCII letters.
func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

func (c Currency) String() string {
	return string(c)
}

// SplitCurrencies expands repeated and comma separated labels into one list,
// dropping blanks and duplicates while keeping first-seen order.
func SplitCurrencies(values []string) []Currency {
	seen := make(map[Currency]struct{})
	out := make([]Currency, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			c := NewCurrency(part)
			if c == "" {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// ParseCurrencies splits values like SplitCurrencies and rejects any label
// that is not three ASCII letters.
func ParseCurrencies(values []string) ([]Currency, error) {
	currencies := SplitCurrencies(values)
	for _, c := range currencies {
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCurrency, c)
		}
	}
	return currencies, nil
}

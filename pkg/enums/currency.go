package enums

import (
	"fmt"
	"strings"
)

// Currency is the ISO 4217 code attached to orders and payments.
type Currency string

const (
	CurrencyKES Currency = "KES"
	CurrencyUSD Currency = "USD"
)

var validCurrencies = []Currency{
	CurrencyKES,
	CurrencyUSD,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// Lower returns the lowercase form the payment gateway expects.
func (c Currency) Lower() string {
	return strings.ToLower(string(c))
}

// IsValid reports whether the value is a known Currency.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts raw input into a Currency, accepting any case.
func ParseCurrency(value string) (Currency, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validCurrencies {
		if string(candidate) == upper {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}

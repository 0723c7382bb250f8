// Package format renders prices for templates.
package format

import (
	"fmt"
	"math"
	"strings"
)

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"CHF": "CHF",
	"JPY": "¥",
}

// FmtPrice formats a decimal amount with two decimals and a currency suffix,
// e.g. FmtPrice(12.5, "EUR", "fr") => "12.50 €".
func FmtPrice(amount float64, currency, lang string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "EUR"
	}
	sym, ok := currencySymbols[currency]
	if !ok {
		sym = currency
	}
	return fmt.Sprintf("%.2f %s", roundCents(amount), sym)
}

// roundCents rounds to the cent, half away from zero.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

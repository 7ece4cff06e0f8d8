// Package money formats amounts for display in the shop's locale and currency.
package money

import (
	"math"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/pt_BR"

	"github.com/Simplici0/signworks/internal/model"
)

var (
	portuguese = pt_BR.New()
	english    = en.New()
)

func translator(locale string) locales.Translator {
	if model.NormalizeLocale(locale) == "pt-BR" {
		return portuguese
	}
	return english
}

var symbols = map[string]string{
	"BRL": "R$ ",
	"USD": "$",
}

// Format renders amount with two decimals, e.g. "R$ 1.234,50" or "$1,234.50".
// Non-finite amounts render as zero.
func Format(amount float64, currencyCode, locale string) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	sign := ""
	if amount < 0 && math.Round(amount*100) != 0 {
		sign = "-"
	}
	symbol := symbols[model.NormalizeCurrency(currencyCode, locale)]
	return sign + symbol + translator(locale).FmtNumber(math.Abs(amount), 2)
}

// Percent renders a percentage with two decimals in the locale's number format.
func Percent(value float64, locale string) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	return translator(locale).FmtPercent(value, 2)
}

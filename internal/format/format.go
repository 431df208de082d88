// Package format renders amounts, plain numbers and dates in the German
// notation used on quotes and invoices, and parses annotation values
// without ever failing.
package format

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencySuffix is appended to every formatted amount.
const CurrencySuffix = " €"

var printer = message.NewPrinter(language.German)

// numericPrefix matches the longest leading number in an annotation value,
// so "19%" parses as 19 and "2.5 h" as 2.5.
var numericPrefix = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d+)?|\.\d+)(?:[eE][+-]?\d+)?`)

// Currency formats an amount with thousands grouping, exactly two fraction
// digits and the euro suffix: 1234.5 -> "1.234,50 €".
func Currency(d decimal.Decimal) string {
	v := d.Round(2).InexactFloat64()
	return printer.Sprint(number.Decimal(v,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	)) + CurrencySuffix
}

// Number formats a plain quantity with up to two fraction digits and no
// forced trailing zeros: 3 -> "3", 2.5 -> "2,5", 1500 -> "1.500".
func Number(d decimal.Decimal) string {
	v := d.Round(2).InexactFloat64()
	return printer.Sprint(number.Decimal(v,
		number.MinFractionDigits(0),
		number.MaxFractionDigits(2),
	))
}

// Date formats t as DD.MM.YYYY.
func Date(t time.Time) string {
	return t.Format("02.01.2006")
}

// ParseWithDefault reads the leading number of text. Empty or non-numeric
// input yields def; it never returns an error.
func ParseWithDefault(text string, def decimal.Decimal) decimal.Decimal {
	m := numericPrefix.FindString(strings.TrimSpace(text))
	if m == "" {
		return def
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return def
	}
	return d
}

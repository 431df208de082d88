// Package calc derives the computed fields of an annotated document:
// resolved dates, line totals, and the subtotal/VAT/total aggregate.
//
// All passes mutate the tree in place and never fail; malformed
// annotations fall back to documented defaults during doctree.Adapt.
package calc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dgallion1/docpress/internal/doctree"
)

// Totals is the document-wide aggregate across all calculation tables.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	VAT      decimal.Decimal `json:"vat"`
	Total    decimal.Decimal `json:"total"`

	// VATRate is the rate of the last table in document order.
	VATRate decimal.Decimal `json:"vat_rate"`

	Tables []TableTotals `json:"tables"`
}

// TableTotals are the sums of a single calculation table.
type TableTotals struct {
	Order    int             `json:"order"`
	Rows     int             `json:"rows"`
	Subtotal decimal.Decimal `json:"subtotal"`
	VATRate  decimal.Decimal `json:"vat_rate"`
	VAT      decimal.Decimal `json:"vat"`
	Total    decimal.Decimal `json:"total"`
}

// Result reports what Process changed.
type Result struct {
	DatesReplaced int     `json:"dates_replaced"`
	Calculated    bool    `json:"calculated"`
	Totals        *Totals `json:"totals,omitempty"`
}

// Changed reports whether any pass touched the tree. When false the caller
// should emit the original input bytes instead of re-serializing.
func (r Result) Changed() bool {
	return r.DatesReplaced > 0 || r.Calculated
}

// Process resolves dates, aggregates the calculation tables, and writes the
// totals into the totals sinks when there was anything to aggregate.
func Process(tree *doctree.Tree, now time.Time) Result {
	var res Result
	res.DatesReplaced = ResolveDates(tree, now)

	if totals := Aggregate(tree); totals != nil {
		WriteTotals(tree, *totals)
		res.Calculated = true
		res.Totals = totals
	}
	return res
}

package calc

import (
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"github.com/dgallion1/docpress/internal/doctree"
	"github.com/dgallion1/docpress/internal/format"
)

// Aggregate sums every calculation table in document order and fills blank
// quantity, unit price and total cells of each line row. It returns nil when
// the document has no calculation table.
func Aggregate(tree *doctree.Tree) *Totals {
	if len(tree.Tables) == 0 {
		return nil
	}

	totals := &Totals{
		Subtotal: decimal.Zero,
		VAT:      decimal.Zero,
		Total:    decimal.Zero,
		VATRate:  doctree.DefaultVATRate,
	}
	for _, tbl := range tree.Tables {
		tt := sumTable(tbl)
		totals.Subtotal = totals.Subtotal.Add(tt.Subtotal)
		totals.VAT = totals.VAT.Add(tt.VAT)
		totals.Total = totals.Total.Add(tt.Total)
		// Last table wins.
		totals.VATRate = tt.VATRate
		totals.Tables = append(totals.Tables, tt)
	}
	return totals
}

func sumTable(tbl *doctree.CalcTable) TableTotals {
	subtotal := decimal.Zero
	for _, row := range tbl.Rows {
		rowTotal := row.Total()
		subtotal = subtotal.Add(rowTotal)

		// Short rows still count towards the subtotal.
		if !row.HasCells() {
			continue
		}
		fillBlank(row.Cells[doctree.CellQuantity], format.Number(row.Quantity))
		fillBlank(row.Cells[doctree.CellUnitPrice], format.Currency(row.UnitPrice))
		fillBlank(row.Cells[doctree.CellTotal], format.Currency(rowTotal))
	}

	// rate is a percentage; Shift(-2) divides by 100 without rounding.
	vat := subtotal.Mul(tbl.VATRate).Shift(-2)
	return TableTotals{
		Order:    tbl.Order,
		Rows:     len(tbl.Rows),
		Subtotal: subtotal,
		VATRate:  tbl.VATRate,
		VAT:      vat,
		Total:    subtotal.Add(vat),
	}
}

func fillBlank(cell *html.Node, text string) {
	if doctree.IsBlank(cell) {
		doctree.SetText(cell, text)
	}
}

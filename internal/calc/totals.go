package calc

import (
	"github.com/dgallion1/docpress/internal/doctree"
	"github.com/dgallion1/docpress/internal/format"
)

// WriteTotals overwrites the totals block fields and every generic total
// slot with the formatted aggregate. Missing sinks are skipped.
func WriteTotals(tree *doctree.Tree, totals Totals) {
	if b := tree.Totals; b != nil {
		if b.Subtotal != nil {
			doctree.SetText(b.Subtotal, format.Currency(totals.Subtotal))
		}
		if b.VAT != nil {
			doctree.SetText(b.VAT, format.Currency(totals.VAT))
		}
		if b.Total != nil {
			doctree.SetText(b.Total, format.Currency(totals.Total))
		}
	}

	total := format.Currency(totals.Total)
	for _, slot := range tree.TotalSlots {
		doctree.SetText(slot.Node, total)
	}
}

package render

import (
	"fmt"
	"io"
	"os"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docpress/internal/calc"
	"github.com/dgallion1/docpress/internal/doctree"
	"github.com/dgallion1/docpress/internal/format"
)

var docxHeader = []string{"Beschreibung", "Menge", "Einheit", "Einzelpreis", "Gesamt"}

// ExportDOCX writes an editable copy of the computed line items and totals
// of tree. Call it after calc.Process so filled cells carry their values.
func ExportDOCX(w io.Writer, tree *doctree.Tree, totals *calc.Totals) error {
	doc := docx.New().WithDefaultTheme()
	doc.AddParagraph().AddText(tree.Title).Bold()

	for _, t := range tree.Tables {
		rows := make([]*doctree.LineRow, 0, len(t.Rows))
		for _, r := range t.Rows {
			if r.HasCells() {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			continue
		}

		tbl := doc.AddTable(len(rows)+1, doctree.RowCells, 0, nil)
		for j, h := range docxHeader {
			tbl.TableRows[0].TableCells[j].AddParagraph().AddText(h).Bold()
		}
		for i, r := range rows {
			cells := tbl.TableRows[i+1].TableCells
			for j := 0; j < doctree.RowCells; j++ {
				cells[j].AddParagraph().AddText(doctree.TextContent(r.Cells[j]))
			}
		}
	}

	if totals != nil {
		doc.AddParagraph().AddText("Netto: " + format.Currency(totals.Subtotal))
		doc.AddParagraph().AddText(fmt.Sprintf("MwSt. (%s%%): %s",
			format.Number(totals.VATRate), format.Currency(totals.VAT)))
		doc.AddParagraph().AddText("Brutto: " + format.Currency(totals.Total)).Bold()
	}

	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

// ExportDOCXFile is ExportDOCX into a file at path.
func ExportDOCXFile(path string, tree *doctree.Tree, totals *calc.Totals) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create docx: %w", err)
	}
	if err := ExportDOCX(f, tree, totals); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

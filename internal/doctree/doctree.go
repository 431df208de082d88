// Package doctree adapts a parsed HTML document into a tree whose annotated
// nodes (date placeholders, calculation tables, totals sinks) are indexed
// once, in document order, with their annotation values already validated.
package doctree

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"github.com/dgallion1/docpress/internal/format"
)

// Annotation attribute names.
const (
	AttrDate      = "data-date"
	AttrCalc      = "data-calc"
	AttrVAT       = "data-vat"
	AttrQuantity  = "data-quantity"
	AttrUnitPrice = "data-unit-price"
	AttrTotals    = "data-totals"
	AttrField     = "data-field"
	AttrTotal     = "data-total"
)

// Sub-slot names inside the totals block.
const (
	FieldSubtotal = "subtotal"
	FieldVAT      = "vat"
	FieldTotal    = "total"
)

// Presentation cell positions inside a line row.
const (
	CellDescription = iota
	CellQuantity
	CellUnit
	CellUnitPrice
	CellTotal

	RowCells
)

// DefaultVATRate applies when a calculation table has no usable data-vat.
var DefaultVATRate = decimal.NewFromInt(19)

var dayOffset = regexp.MustCompile(`(?i)^([+-]?)(\d+)days?$`)

// Tree is a parsed document plus the index of its annotated nodes.
type Tree struct {
	Title string     // Document title (from <title> or filename)
	Root  *html.Node // Document node as produced by html.Parse

	// Source holds the original markup bytes. It is nil when the document
	// was converted from another format (e.g. Markdown).
	Source []byte

	Dates      []*DatePlaceholder
	Tables     []*CalcTable
	Totals     *TotalsBlock // nil when the document has no totals block
	TotalSlots []*Slot
}

// DatePlaceholder is an element whose text becomes a resolved date.
type DatePlaceholder struct {
	Node  *html.Node
	Order int
	Expr  string // raw data-date value

	// Offset is the signed day offset relative to the resolution date.
	// Unrecognized expressions have Recognized=false and Offset 0.
	Offset     int
	Recognized bool
}

// CalcTable is a <table data-calc="true">.
type CalcTable struct {
	Node    *html.Node
	Order   int
	VATRate decimal.Decimal
	Rows    []*LineRow
}

// LineRow is a table row carrying both quantity and unit price.
type LineRow struct {
	Node      *html.Node
	Order     int
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Cells     []*html.Node // <td> descendants in document order
}

// Total returns quantity × unit price.
func (r *LineRow) Total() decimal.Decimal {
	return r.Quantity.Mul(r.UnitPrice)
}

// HasCells reports whether the row exposes all presentation cells.
func (r *LineRow) HasCells() bool {
	return len(r.Cells) >= RowCells
}

// TotalsBlock is the first element annotated data-totals="true".
type TotalsBlock struct {
	Node     *html.Node
	Order    int
	Subtotal *html.Node
	VAT      *html.Node
	Total    *html.Node
}

// Slot is a generic data-total="true" display element.
type Slot struct {
	Node  *html.Node
	Order int
}

// Adapt walks root once and indexes every annotated element.
func Adapt(root *html.Node, title string) *Tree {
	t := &Tree{Title: title, Root: root}
	order := make(map[*html.Node]int)
	var tables []*html.Node

	n := 0
	walkElements(root, func(el *html.Node) {
		n++
		order[el] = n

		if expr, ok := Attr(el, AttrDate); ok {
			t.Dates = append(t.Dates, newDatePlaceholder(el, n, expr))
		}
		if el.Data == "table" && attrEquals(el, AttrCalc, "true") {
			tables = append(tables, el)
		}
		if t.Totals == nil && attrEquals(el, AttrTotals, "true") {
			t.Totals = &TotalsBlock{Node: el, Order: n}
		}
		if attrEquals(el, AttrTotal, "true") {
			t.TotalSlots = append(t.TotalSlots, &Slot{Node: el, Order: n})
		}
	})

	for _, tbl := range tables {
		t.Tables = append(t.Tables, adaptTable(tbl, order))
	}
	if t.Totals != nil {
		t.Totals.Subtotal = findField(t.Totals.Node, FieldSubtotal)
		t.Totals.VAT = findField(t.Totals.Node, FieldVAT)
		t.Totals.Total = findField(t.Totals.Node, FieldTotal)
	}
	return t
}

// Annotated reports whether the tree carries any date or calculation annotation.
func (t *Tree) Annotated() bool {
	return len(t.Dates) > 0 || len(t.Tables) > 0
}

// Render serializes the tree back to HTML.
func (t *Tree) Render(w io.Writer) error {
	return html.Render(w, t.Root)
}

// Output returns the bytes to publish for this document. An unchanged tree
// with original markup yields that markup verbatim.
func (t *Tree) Output(changed bool) ([]byte, error) {
	if !changed && t.Source != nil {
		return t.Source, nil
	}
	var buf bytes.Buffer
	if err := t.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newDatePlaceholder(el *html.Node, order int, expr string) *DatePlaceholder {
	d := &DatePlaceholder{Node: el, Order: order, Expr: expr}
	if expr == "today" {
		d.Recognized = true
		return d
	}
	m := dayOffset.FindStringSubmatch(expr)
	if m == nil {
		return d
	}
	days, err := strconv.Atoi(m[2])
	if err != nil {
		return d
	}
	if m[1] == "-" {
		days = -days
	}
	d.Offset = days
	d.Recognized = true
	return d
}

func adaptTable(tbl *html.Node, order map[*html.Node]int) *CalcTable {
	ct := &CalcTable{Node: tbl, Order: order[tbl], VATRate: DefaultVATRate}
	if v, ok := Attr(tbl, AttrVAT); ok {
		ct.VATRate = format.ParseWithDefault(v, DefaultVATRate)
	}

	walkElements(tbl, func(el *html.Node) {
		if el == tbl || el.Data != "tr" || !insideTbody(el, tbl) {
			return
		}
		q, hasQ := Attr(el, AttrQuantity)
		p, hasP := Attr(el, AttrUnitPrice)
		if !hasQ || !hasP {
			return
		}
		row := &LineRow{
			Node:      el,
			Order:     order[el],
			Quantity:  format.ParseWithDefault(q, decimal.Zero),
			UnitPrice: format.ParseWithDefault(p, decimal.Zero),
		}
		walkElements(el, func(c *html.Node) {
			if c.Data == "td" {
				row.Cells = append(row.Cells, c)
			}
		})
		ct.Rows = append(ct.Rows, row)
	})
	return ct
}

// insideTbody reports whether a <tbody> sits between el and the table.
func insideTbody(el, tbl *html.Node) bool {
	for p := el.Parent; p != nil && p != tbl; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "tbody" {
			return true
		}
	}
	return false
}

func findField(block *html.Node, name string) *html.Node {
	var found *html.Node
	walkElements(block, func(el *html.Node) {
		if found == nil && el != block && attrEquals(el, AttrField, name) {
			found = el
		}
	})
	return found
}

// walkElements visits n and its element descendants in document order.
func walkElements(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, fn)
	}
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrEquals(n *html.Node, key, want string) bool {
	v, ok := Attr(n, key)
	return ok && v == want
}

// TextContent concatenates all text beneath n.
func TextContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

// IsBlank reports whether n has no visible text.
func IsBlank(n *html.Node) bool {
	return strings.TrimSpace(TextContent(n)) == ""
}

// SetText replaces all children of n with a single text node.
func SetText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

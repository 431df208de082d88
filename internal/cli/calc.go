package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/dgallion1/docpress/internal/calc"
	"github.com/dgallion1/docpress/internal/format"
	"github.com/dgallion1/docpress/internal/parser"
)

type CalcCmd struct {
	Input  string `arg:"" help:"Source document (.html or .md)."`
	Output string `arg:"" help:"Where to write the computed HTML."`
}

func (cmd *CalcCmd) Run(ctx *kong.Context) error {
	return runCalc(ctx.Stdout, cmd.Input, cmd.Output, time.Now())
}

// runCalc computes one document and writes the result. A document without
// annotations is copied byte for byte.
func runCalc(w io.Writer, input, output string, now time.Time) error {
	data, err := os.ReadFile(input)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("Datei nicht gefunden: %s", input)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	p, err := parser.ForFile(input)
	if err != nil {
		return err
	}
	tree, err := p.Parse(bytes.NewReader(data), input)
	if err != nil {
		return fmt.Errorf("parse %s: %w", input, err)
	}

	res := calc.Process(tree, now)
	out, err := tree.Output(res.Changed())
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	if err := os.WriteFile(output, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if res.DatesReplaced > 0 {
		printSuccess(w, fmt.Sprintf("%d Datum(s) aktualisiert", res.DatesReplaced))
	}
	if res.Totals != nil {
		printSuccess(w, "Summen berechnet:")
		_, _ = fmt.Fprintf(w, "  Netto:  %s\n", format.Currency(res.Totals.Subtotal))
		_, _ = fmt.Fprintf(w, "  MwSt.:  %s\n", format.Currency(res.Totals.VAT))
		_, _ = fmt.Fprintf(w, "  Brutto: %s\n", boldStyle.Render(format.Currency(res.Totals.Total)))
	}
	return nil
}

package main

import (
	"github.com/alecthomas/kong"

	"github.com/dgallion1/docpress/internal/cli"
)

func main() {
	var cmds cli.Commands
	ctx := kong.Parse(&cmds,
		kong.Name("docpress"),
		kong.Description("Computes dates and invoice totals in HTML and Markdown documents and renders them to PDF."),
		kong.UsageOnError(),
		kong.Vars{"version": cli.Version},
	)
	ctx.FatalIfErrorf(ctx.Run())
}

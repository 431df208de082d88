package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/dgallion1/docpress/internal/config"
	"github.com/dgallion1/docpress/internal/format"
	"github.com/dgallion1/docpress/internal/pipeline"
	"github.com/dgallion1/docpress/internal/render"
)

type BuildCmd struct {
	Files    []string `arg:"" type:"existingfile" help:"Documents to build."`
	Output   string   `short:"o" help:"Output directory (overrides OUTPUT_DIR)."`
	Renderer string   `help:"Renderer to use, weasyprint or chrome (overrides RENDERER)."`
	DOCX     bool     `help:"Also export a .docx with the computed line items."`
}

func (cmd *BuildCmd) Run(ctx *kong.Context) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd.run(runCtx, ctx.Stdout, ctx.Stderr)
}

func (cmd *BuildCmd) run(ctx context.Context, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(func(c *config.Config) {
		if cmd.Output != "" {
			c.OutputDir = cmd.Output
		}
		if cmd.Renderer != "" {
			c.Renderer = cmd.Renderer
		}
		if cmd.DOCX {
			c.ExportDOCX = true
		}
		c.MaxQueueSize = max(c.MaxQueueSize, len(cmd.Files))
	})
	if err != nil {
		return err
	}
	log := newLogger(cfg, stderr)

	r, err := render.New(cfg.Renderer, render.Options{WeasyPrintBin: cfg.WeasyPrintBin, ChromePath: cfg.ChromePath})
	if err != nil {
		return err
	}
	w := pipeline.NewWorker(r, cfg, pipeline.NewStats(0), nil, log)
	orch := pipeline.NewOrchestrator(cfg, w, nil, log)
	orch.Start(ctx)
	defer orch.Stop()

	snaps, err := orch.SubmitAll(ctx, cmd.Files)
	if err != nil {
		return err
	}

	failed := 0
	for _, s := range snaps {
		switch s.Status {
		case pipeline.StatusCompleted:
			msg := fmt.Sprintf("%s (%d ms)", pathStyle.Render(s.PDFPath), s.DurationMs)
			if s.Totals != nil {
				msg += " Brutto " + format.Currency(s.Totals.Total)
			}
			printSuccess(stdout, msg)
		case pipeline.StatusSkipped:
			printInfof(stdout, "%s übersprungen", s.File)
		default:
			failed++
			printError(stdout, fmt.Sprintf("%s: %v", s.File, s.Errors))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d von %d Dokument(en) fehlgeschlagen", failed, len(snaps))
	}
	return nil
}

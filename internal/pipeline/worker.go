package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docpress/internal/calc"
	"github.com/dgallion1/docpress/internal/config"
	"github.com/dgallion1/docpress/internal/format"
	"github.com/dgallion1/docpress/internal/metrics"
	"github.com/dgallion1/docpress/internal/parser"
	"github.com/dgallion1/docpress/internal/render"
)

// TempPrefix marks intermediate files written next to their source. Files
// with this prefix are never built themselves. Each build appends a random
// suffix so overlapping builds never share a file.
const TempPrefix = "_calc_"

// Worker builds one document at a time: compute, render, inspect.
type Worker struct {
	renderer render.Renderer
	stats    *Stats
	metrics  *metrics.Metrics
	log      *slog.Logger

	outputDir     string
	renderTimeout time.Duration
	exportDOCX    bool

	now     func() time.Time
	backoff func(attempt int) time.Duration

	// Builds of the same document name share output paths and run one at a
	// time.
	namesMu sync.Mutex
	names   map[string]*sync.Mutex
}

func NewWorker(r render.Renderer, cfg config.Config, stats *Stats, m *metrics.Metrics, log *slog.Logger) *Worker {
	return &Worker{
		renderer:      r,
		stats:         stats,
		metrics:       m,
		log:           log,
		outputDir:     cfg.OutputDir,
		renderTimeout: cfg.RenderTimeout,
		exportDOCX:    cfg.ExportDOCX,
		now:           time.Now,
		backoff:       Backoff,
		names:         make(map[string]*sync.Mutex),
	}
}

// lockName serializes builds that write <name>.pdf.
func (w *Worker) lockName(name string) func() {
	w.namesMu.Lock()
	mu, ok := w.names[name]
	if !ok {
		mu = &sync.Mutex{}
		w.names[name] = mu
	}
	w.namesMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Process runs the full build for a job and leaves it in a terminal status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("build_id", job.ID, "file", job.BaseName())

	if strings.HasPrefix(job.BaseName(), "_") {
		log.Debug("skipping underscore file")
		job.SetStatus(StatusSkipped, "skipped")
		return
	}

	unlock := w.lockName(job.Name)
	defer unlock()
	start := time.Now()

	fail := func(phase string, err error) {
		log.Error("build failed", "phase", phase, "error", err)
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		job.SetStatus(StatusFailed, phase)
		d := time.Since(start)
		job.SetDuration(d)
		w.stats.Record(d, true)
		w.metrics.ObserveBuild(string(StatusFailed), d, 0)
	}

	// Phase 1: compute
	job.SetStatus(StatusComputing, "parsing")
	p, err := parser.ForFile(job.File)
	if err != nil {
		fail("parsing", err)
		return
	}
	data, err := os.ReadFile(job.File)
	if err != nil {
		fail("reading", err)
		return
	}
	tree, err := p.Parse(bytes.NewReader(data), job.BaseName())
	if err != nil {
		fail("parsing", err)
		return
	}

	job.SetStatus(StatusComputing, "computing")
	res := calc.Process(tree, w.now())
	job.SetResult(res)
	out, err := tree.Output(res.Changed())
	if err != nil {
		fail("serializing", err)
		return
	}
	if res.DatesReplaced > 0 {
		log.Info("dates resolved", "count", res.DatesReplaced)
	}
	if res.Totals != nil {
		log.Info("totals computed",
			"subtotal", format.Currency(res.Totals.Subtotal),
			"vat", format.Currency(res.Totals.VAT),
			"total", format.Currency(res.Totals.Total))
	}

	// The intermediate file sits next to the source so relative links to
	// stylesheets and images keep resolving.
	tmp, err := writeTemp(filepath.Dir(job.File), job.Name, out)
	if err != nil {
		fail("writing", err)
		return
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			log.Warn("remove temp file", "path", tmp, "error", err)
		}
	}()

	// Phase 2: render
	job.SetStatus(StatusRendering, "rendering")
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		fail("rendering", fmt.Errorf("create output dir: %w", err))
		return
	}
	pdfPath := filepath.Join(w.outputDir, job.Name+".pdf")
	if err := w.render(ctx, log, tmp, pdfPath); err != nil {
		fail("rendering", err)
		return
	}

	// Phase 3: artifacts
	info, err := render.Inspect(pdfPath)
	if err != nil {
		log.Warn("inspect pdf", "error", err)
	}

	var docxPath string
	if w.exportDOCX {
		docxPath = filepath.Join(w.outputDir, job.Name+".docx")
		if err := render.ExportDOCXFile(docxPath, tree, res.Totals); err != nil {
			log.Warn("docx export failed", "error", err)
			job.AddError(fmt.Sprintf("docx: %s", err))
			docxPath = ""
		}
	}

	job.SetArtifacts(pdfPath, docxPath, info.Pages)
	d := time.Since(start)
	job.SetDuration(d)
	job.SetStatus(StatusCompleted, "done")
	w.stats.Record(d, false)
	w.metrics.ObserveBuild(string(StatusCompleted), d, res.DatesReplaced)
	log.Info("pdf written", "path", pdfPath, "pages", info.Pages, "duration_ms", d.Milliseconds())
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, TempPrefix+name+"_*.html")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// render runs the renderer with a per-attempt timeout, retrying failures
// the renderer marks as transient.
func (w *Worker) render(ctx context.Context, log *slog.Logger, src, dst string) error {
	var lastErr error
	for attempt := range MaxRetries {
		attemptCtx, cancel := context.WithTimeout(ctx, w.renderTimeout)
		lastErr = w.renderer.Render(attemptCtx, src, dst)
		cancel()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		log.Warn("retryable render error", "renderer", w.renderer.Name(), "attempt", attempt, "error", lastErr)
		if attempt == MaxRetries-1 {
			break
		}
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", w.renderer.Name(), MaxRetries, lastErr)
}

package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docpress/internal/config"
	"github.com/dgallion1/docpress/internal/render"
)

var refDate = time.Date(2026, time.January, 6, 9, 30, 0, 0, time.UTC)

// fakeRenderer records the HTML it was asked to render and writes a stub
// PDF. failWith, when set, decides the outcome of each call (1-based).
type fakeRenderer struct {
	mu       sync.Mutex
	calls    int
	inputs   []string
	srcs     []string
	failWith func(call int) error
}

func (f *fakeRenderer) Name() string { return "fake" }

func (f *fakeRenderer) Render(_ context.Context, src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	f.inputs = append(f.inputs, string(data))
	f.srcs = append(f.srcs, src)
	if f.failWith != nil {
		if err := f.failWith(f.calls); err != nil {
			return err
		}
	}
	return os.WriteFile(dst, []byte("%PDF-stub"), 0o644)
}

func (f *fakeRenderer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		OutputDir:     filepath.Join(t.TempDir(), "output"),
		RenderTimeout: time.Second,
		WorkerCount:   2,
		MaxQueueSize:  10,
		JobTTL:        time.Hour,
	}
}

func newTestWorker(t *testing.T, r render.Renderer, cfg config.Config) *Worker {
	t.Helper()
	w := NewWorker(r, cfg, NewStats(time.Hour), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.now = func() time.Time { return refDate }
	w.backoff = func(int) time.Duration { return 0 }
	return w
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const invoice = `<html><head><title>Rechnung</title></head><body>
<p>Datum: <span data-date="today"></span></p>
<table data-calc="true" data-vat="19"><tbody>
<tr data-quantity="3" data-unit-price="19.99"><td>Kabel</td><td></td><td>Stk</td><td></td><td></td></tr>
</tbody></table>
<div data-totals="true"><span data-field="subtotal"></span><span data-field="vat"></span><span data-field="total"></span></div>
</body></html>`

func TestWorkerProcess_ComputesAndRenders(t *testing.T) {
	dir := t.TempDir()
	src := writeDoc(t, dir, "rechnung.html", invoice)
	cfg := testConfig(t)
	r := &fakeRenderer{}
	w := newTestWorker(t, r, cfg)

	job := NewJob(src)
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status, "errors: %v", snap.Errors)
	assert.Equal(t, 1, snap.DatesReplaced)
	assert.True(t, snap.Calculated)
	require.NotNil(t, snap.Totals)
	assert.Equal(t, "59.97", snap.Totals.Subtotal.String())
	assert.Equal(t, filepath.Join(cfg.OutputDir, "rechnung.pdf"), snap.PDFPath)
	assert.FileExists(t, snap.PDFPath)

	require.Len(t, r.inputs, 1)
	html := r.inputs[0]
	assert.Contains(t, html, "06.01.2026")
	assert.Contains(t, html, "59,97 €")
	assert.Contains(t, html, "11,39 €")
	assert.Contains(t, html, "71,36 €")

	// The intermediate file lived next to the source and is gone now.
	assert.Equal(t, dir, filepath.Dir(r.srcs[0]))
	assert.True(t, strings.HasPrefix(filepath.Base(r.srcs[0]), TempPrefix+"rechnung_"), r.srcs[0])
	assert.NoFileExists(t, r.srcs[0])

	stats := w.stats.Snapshot()
	assert.Equal(t, 1, stats.Count)
	assert.Zero(t, stats.Failures)
}

func TestWorkerProcess_PassThroughKeepsBytes(t *testing.T) {
	const plain = "<!DOCTYPE html>\n<html><body><P CLASS=x>Hallo &amp; tschüss</P></body></html>\n"
	src := writeDoc(t, t.TempDir(), "brief.html", plain)
	r := &fakeRenderer{}
	w := newTestWorker(t, r, testConfig(t))

	job := NewJob(src)
	w.Process(context.Background(), job)

	require.Equal(t, StatusCompleted, job.Snapshot().Status)
	require.Len(t, r.inputs, 1)
	assert.Equal(t, plain, r.inputs[0])
	assert.False(t, job.Snapshot().Calculated)
}

func TestWorkerProcess_Markdown(t *testing.T) {
	md := "# Angebot\n\nGültig ab <span data-date=\"+14days\"></span>\n"
	src := writeDoc(t, t.TempDir(), "angebot.md", md)
	r := &fakeRenderer{}
	w := newTestWorker(t, r, testConfig(t))

	job := NewJob(src)
	w.Process(context.Background(), job)

	require.Equal(t, StatusCompleted, job.Snapshot().Status)
	require.Len(t, r.inputs, 1)
	assert.Contains(t, r.inputs[0], "<title>Angebot</title>")
	assert.Contains(t, r.inputs[0], "20.01.2026")
}

func TestWorkerProcess_SkipsUnderscoreFiles(t *testing.T) {
	src := writeDoc(t, t.TempDir(), "_calc_rechnung.html", invoice)
	r := &fakeRenderer{}
	w := newTestWorker(t, r, testConfig(t))

	job := NewJob(src)
	w.Process(context.Background(), job)

	assert.Equal(t, StatusSkipped, job.Snapshot().Status)
	assert.Zero(t, r.Calls())
}

func TestWorkerProcess_Failures(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name  string
		path  string
		phase string
	}{
		{"unsupported extension", writeDoc(t, dir, "notes.txt", "hi"), "parsing"},
		{"missing file", filepath.Join(dir, "gone.html"), "reading"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRenderer{}
			w := newTestWorker(t, r, testConfig(t))
			job := NewJob(tc.path)
			w.Process(context.Background(), job)

			snap := job.Snapshot()
			assert.Equal(t, StatusFailed, snap.Status)
			assert.Equal(t, tc.phase, snap.Phase)
			assert.Len(t, snap.Errors, 1)
			assert.Zero(t, r.Calls())
			assert.Equal(t, 1, w.stats.Snapshot().Failures)
		})
	}
}

func TestWorkerProcess_RenderErrorNotRetried(t *testing.T) {
	src := writeDoc(t, t.TempDir(), "rechnung.html", invoice)
	r := &fakeRenderer{failWith: func(int) error { return errors.New("bad css") }}
	w := newTestWorker(t, r, testConfig(t))

	job := NewJob(src)
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "rendering", snap.Phase)
	assert.Equal(t, 1, r.Calls())
	assert.Contains(t, snap.Errors[0], "bad css")
	assert.NoFileExists(t, r.srcs[0])
}

func TestWorkerProcess_RetriesTransientErrors(t *testing.T) {
	src := writeDoc(t, t.TempDir(), "rechnung.html", invoice)
	r := &fakeRenderer{failWith: func(call int) error {
		if call < 3 {
			return &render.RetryableError{Err: errors.New("timed out")}
		}
		return nil
	}}
	w := newTestWorker(t, r, testConfig(t))

	job := NewJob(src)
	w.Process(context.Background(), job)

	assert.Equal(t, StatusCompleted, job.Snapshot().Status)
	assert.Equal(t, 3, r.Calls())
}

func TestWorkerProcess_GivesUpAfterMaxRetries(t *testing.T) {
	src := writeDoc(t, t.TempDir(), "rechnung.html", invoice)
	r := &fakeRenderer{failWith: func(int) error {
		return &render.RetryableError{Err: errors.New("timed out")}
	}}
	w := newTestWorker(t, r, testConfig(t))

	job := NewJob(src)
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, MaxRetries, r.Calls())
	assert.Contains(t, snap.Errors[0], "giving up")
}

func TestWorkerProcess_ExportsDOCX(t *testing.T) {
	src := writeDoc(t, t.TempDir(), "rechnung.html", invoice)
	cfg := testConfig(t)
	cfg.ExportDOCX = true
	w := newTestWorker(t, &fakeRenderer{}, cfg)

	job := NewJob(src)
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "rechnung.docx"), snap.DOCXPath)
	assert.FileExists(t, snap.DOCXPath)
}

// overlapRenderer holds each render open for a while and records how many
// renders ran at once.
type overlapRenderer struct {
	mu     sync.Mutex
	active int
	peak   int
	srcs   []string
}

func (o *overlapRenderer) Name() string { return "overlap" }

func (o *overlapRenderer) Render(_ context.Context, src, dst string) error {
	o.mu.Lock()
	o.active++
	o.peak = max(o.peak, o.active)
	o.srcs = append(o.srcs, src)
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.active--
		o.mu.Unlock()
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := os.ReadFile(src); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte("%PDF-stub"), 0o644)
}

func TestWorkerProcess_SameDocumentBuildsDoNotOverlap(t *testing.T) {
	dir := t.TempDir()
	src := writeDoc(t, dir, "angebot.html", invoice)
	// Same output name from a different source.
	md := writeDoc(t, dir, "angebot.md", "# Angebot\n")
	r := &overlapRenderer{}
	w := newTestWorker(t, r, testConfig(t))

	jobs := []*Job{NewJob(src), NewJob(src), NewJob(md)}
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Process(context.Background(), job)
		}()
	}
	wg.Wait()

	for _, job := range jobs {
		snap := job.Snapshot()
		assert.Equal(t, StatusCompleted, snap.Status, "errors: %v", snap.Errors)
		assert.Empty(t, snap.Errors)
	}
	assert.Equal(t, 1, r.peak)
	require.Len(t, r.srcs, 3)
	assert.NotEqual(t, r.srcs[0], r.srcs[1])
	for _, s := range r.srcs {
		assert.NoFileExists(t, s)
	}
}

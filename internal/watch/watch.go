// Package watch reports document files that were created or modified, once
// they have stopped changing for a settle window.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dgallion1/docpress/internal/parser"
)

// Accept reports whether a file name is a buildable document. Names starting
// with an underscore are intermediate files and never accepted.
func Accept(name string) bool {
	base := filepath.Base(name)
	return !strings.HasPrefix(base, "_") && parser.IsSupportedExtension(base)
}

// Documents lists the accepted files in dir, sorted by name. A missing
// directory yields an empty list.
func Documents(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read documents dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !Accept(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	slices.Sort(out)
	return out, nil
}

// Watcher calls OnSettled for every accepted file in Dir after it has seen
// no further create or write events for Settle.
type Watcher struct {
	dir       string
	settle    time.Duration
	onSettled func(path string)
	log       *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer

	ready chan struct{}
}

func New(dir string, settle time.Duration, onSettled func(path string), log *slog.Logger) *Watcher {
	return &Watcher{
		dir:       dir,
		settle:    settle,
		onSettled: onSettled,
		log:       log.With("dir", dir),
		timers:    make(map[string]*time.Timer),
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is done. The directory is created when missing.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create documents dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()
	defer w.stopTimers()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	close(w.ready)
	w.log.Info("watching documents")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !Accept(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "error", err)
		}
	}
}

// schedule restarts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.log.Info("change detected", "file", filepath.Base(path))
		w.onSettled(path)
	})
	w.timers[path] = t
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

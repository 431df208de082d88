package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docpress/internal/api"
	"github.com/dgallion1/docpress/internal/config"
	"github.com/dgallion1/docpress/internal/format"
	"github.com/dgallion1/docpress/internal/metrics"
	"github.com/dgallion1/docpress/internal/notify"
	"github.com/dgallion1/docpress/internal/pipeline"
	"github.com/dgallion1/docpress/internal/render"
	"github.com/dgallion1/docpress/internal/watch"
)

type ServeCmd struct {
	Port      int    `short:"p" help:"Port to listen on (overrides PORT)."`
	Documents string `short:"d" help:"Documents directory to watch (overrides DOCUMENTS_DIR)."`
	Build     bool   `help:"Build every document once at startup (overrides BUILD_ON_START)."`
}

func (cmd *ServeCmd) Run(ctx *kong.Context) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd.run(runCtx, ctx.Stdout)
}

func (cmd *ServeCmd) run(ctx context.Context, stdout io.Writer) error {
	cfg, err := loadConfig(func(c *config.Config) {
		if cmd.Port != 0 {
			c.Port = cmd.Port
		}
		if cmd.Documents != "" {
			c.DocumentsDir = cmd.Documents
		}
		if cmd.Build {
			c.BuildOnStart = true
		}
	})
	if err != nil {
		return err
	}
	log := newLogger(cfg, os.Stdout)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	r, err := render.New(cfg.Renderer, render.Options{WeasyPrintBin: cfg.WeasyPrintBin, ChromePath: cfg.ChromePath})
	if err != nil {
		return err
	}

	m := metrics.New()
	hub := notify.NewHub(log)
	hub.OnChange = m.SetSubscribers

	w := pipeline.NewWorker(r, cfg, pipeline.NewStats(time.Hour), m, log)
	orch := pipeline.NewOrchestrator(cfg, w, m, log)
	orch.OnComplete(func(s pipeline.JobSnapshot) {
		if ev, ok := eventFor(s); ok {
			hub.Publish(ev)
		}
	})
	orch.Start(ctx)
	defer orch.Stop()

	watcher := watch.New(cfg.DocumentsDir, cfg.SettleWindow, func(path string) {
		if err := orch.Submit(pipeline.NewJob(path)); err != nil {
			log.Warn("build not queued", "file", path, "error", err)
		}
	}, log)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewServer(orch, hub, m, log, cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the event stream stays open
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting docpress", "addr", cfg.Addr(), "renderer", r.Name())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if cfg.BuildOnStart {
		g.Go(func() error {
			select {
			case <-watcher.Ready():
			case <-gctx.Done():
				return nil
			}
			docs, err := watch.Documents(cfg.DocumentsDir)
			if err != nil {
				return err
			}
			snaps, err := orch.SubmitAll(gctx, docs)
			if err != nil && gctx.Err() == nil {
				log.Warn("initial build incomplete", "error", err)
			}
			log.Info("initial build finished", "documents", len(snaps))
			return nil
		})
	}

	printInfof(stdout, "Vorschau:  %s", pathStyle.Render("http://"+cfg.Addr()))
	printInfof(stdout, "Überwache: %s", pathStyle.Render(cfg.DocumentsDir))

	return g.Wait()
}

// eventFor maps a finished build onto a live-reload event. Skipped builds
// produce none.
func eventFor(s pipeline.JobSnapshot) (notify.Event, bool) {
	ev := notify.Event{
		File:      s.Name,
		Timestamp: s.UpdatedAt.UnixMilli(),
		BuildID:   s.ID,
	}
	switch s.Status {
	case pipeline.StatusCompleted:
		ev.Type = notify.TypeUpdate
		ev.Pages = s.Pages
		if s.Totals != nil {
			ev.Total = format.Currency(s.Totals.Total)
		}
		return ev, true
	case pipeline.StatusFailed:
		ev.Type = notify.TypeError
		if n := len(s.Errors); n > 0 {
			ev.Error = s.Errors[n-1]
		}
		return ev, true
	default:
		return notify.Event{}, false
	}
}

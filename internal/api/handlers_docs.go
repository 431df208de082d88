package api

import (
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/dgallion1/docpress/internal/parser"
	"github.com/dgallion1/docpress/internal/pipeline"
	"github.com/dgallion1/docpress/internal/watch"
)

// handleListDocuments returns the sorted document names without extension.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	paths, err := watch.Documents(s.cfg.DocumentsDir)
	if err != nil {
		s.log.Error("list documents", "error", err)
		jsonError(w, r, "failed to list documents", http.StatusInternalServerError)
		return
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, parser.DocumentName(p))
	}
	slices.Sort(names)
	render.JSON(w, r, names)
}

// handleBuildDocument queues a rebuild of one document.
func (s *Server) handleBuildDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, ok, err := s.findDocument(name)
	if err != nil {
		s.log.Error("list documents", "error", err)
		jsonError(w, r, "failed to list documents", http.StatusInternalServerError)
		return
	}
	if !ok {
		jsonError(w, r, "document not found", http.StatusNotFound)
		return
	}

	job := pipeline.NewJob(path)
	if err := s.orchestrator.Submit(job); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrQueueFull) || errors.Is(err, pipeline.ErrStopped) {
			code = http.StatusServiceUnavailable
		}
		jsonError(w, r, err.Error(), code)
		return
	}

	s.log.Info("build queued", "build_id", job.ID, "file", job.BaseName())
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]any{
		"build_id":   job.ID,
		"status":     pipeline.StatusQueued,
		"status_url": "/api/builds/" + job.ID,
	})
}

// findDocument resolves a document name to its file. When several files
// share a name, the first in sorted order wins.
func (s *Server) findDocument(name string) (string, bool, error) {
	paths, err := watch.Documents(s.cfg.DocumentsDir)
	if err != nil {
		return "", false, err
	}
	for _, p := range paths {
		if parser.DocumentName(p) == name {
			return p, true, nil
		}
	}
	return "", false, nil
}

func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "buildID"))
	if job == nil {
		jsonError(w, r, "build not found", http.StatusNotFound)
		return
	}
	render.JSON(w, r, job.Snapshot())
}

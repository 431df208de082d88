package api

import (
	"net/http"

	"github.com/go-chi/render"
)

func (s *Server) handleBuildStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"renderer":    s.cfg.Renderer,
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       s.orchestrator.Stats().Snapshot(),
	})
}

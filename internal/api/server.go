package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/dgallion1/docpress/internal/config"
	"github.com/dgallion1/docpress/internal/metrics"
	"github.com/dgallion1/docpress/internal/notify"
	"github.com/dgallion1/docpress/internal/pipeline"
)

//go:embed preview.html
var defaultPreview []byte

// Server is the HTTP API server for docpress.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	hub          *notify.Hub
	metrics      *metrics.Metrics
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, hub *notify.Hub, m *metrics.Metrics, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		hub:          hub,
		metrics:      m,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/", s.handlePreview)
	r.Get("/health", s.handleHealth)
	r.Get("/events", s.hub.ServeHTTP)
	r.Handle("/metrics", s.metrics.Handler())

	r.With(NoCache).Handle("/output/*",
		http.StripPrefix("/output/", http.FileServer(http.Dir(s.cfg.OutputDir))))
	r.Handle("/assets/*",
		http.StripPrefix("/assets/", http.FileServer(http.Dir(s.cfg.AssetsDir))))

	r.Route("/api", func(r chi.Router) {
		r.Get("/documents", s.handleListDocuments)
		r.Get("/builds/{buildID}", s.handleBuildStatus)
		r.Get("/stats/builds", s.handleBuildStats)

		// Triggering builds is guarded when an API key is configured.
		r.Group(func(r chi.Router) {
			if s.cfg.APIKey != "" {
				r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
			}
			r.Post("/documents/{name}/build", s.handleBuildDocument)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
		"subscribers": s.hub.Len(),
	})
}

// handlePreview serves the live preview page. A configured preview file is
// read on every request so edits show up without a restart.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	page := defaultPreview
	if s.cfg.PreviewFile != "" {
		data, err := os.ReadFile(s.cfg.PreviewFile)
		if err != nil {
			s.log.Error("read preview file", "path", s.cfg.PreviewFile, "error", err)
			jsonError(w, r, "preview unavailable", http.StatusInternalServerError)
			return
		}
		page = data
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func jsonError(w http.ResponseWriter, r *http.Request, msg string, code int) {
	render.Status(r, code)
	render.JSON(w, r, map[string]string{"error": msg})
}

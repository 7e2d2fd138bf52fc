package handlers

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/metrics"
	"github.com/abrezinsky/votosafe/internal/services"
	"github.com/abrezinsky/votosafe/internal/websocket"
)

// NewStaticServer creates a static file server from an fs.FS
func NewStaticServer(staticFS fs.FS) http.Handler {
	return http.FileServer(http.FS(staticFS))
}

// PageData holds the data passed to the landing page template
type PageData struct {
	Title          string
	SessionSeconds int
}

// Templates holds all parsed HTML templates
type Templates struct {
	Index *template.Template
}

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Sessions  services.SessionServicer
	Elections services.ElectionServicer
	Voting    services.VotingServicer
	Stats     services.StatsServicer
	Auth      *auth.Middleware
	Hub       *websocket.Hub
	Log       logger.Logger

	// Optional
	Metrics *metrics.Metrics
	Health  Pinger

	templates    *Templates
	staticServer http.Handler
}

// New creates a new Handlers instance with all dependencies
func New(
	sessions services.SessionServicer,
	elections services.ElectionServicer,
	voting services.VotingServicer,
	stats services.StatsServicer,
	templatesFS fs.FS,
	staticServer http.Handler,
	hub *websocket.Hub,
	log logger.Logger,
) (*Handlers, error) {
	templates, err := loadTemplates(templatesFS)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	return &Handlers{
		Sessions:     sessions,
		Elections:    elections,
		Voting:       voting,
		Stats:        stats,
		Auth:         auth.NewMiddleware(sessions),
		Hub:          hub,
		Log:          log,
		templates:    templates,
		staticServer: staticServer,
	}, nil
}

// NewForTesting creates a Handlers instance without loading templates (for testing API endpoints)
func NewForTesting(
	sessions services.SessionServicer,
	elections services.ElectionServicer,
	voting services.VotingServicer,
	stats services.StatsServicer,
) *Handlers {
	return &Handlers{
		Sessions:  sessions,
		Elections: elections,
		Voting:    voting,
		Stats:     stats,
		Auth:      auth.NewMiddleware(sessions),
		Log:       logger.Discard(),
	}
}

// loadTemplates parses all templates once at startup
func loadTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{}
	var err error

	if t.Index, err = template.ParseFS(templatesFS, "index.html"); err != nil {
		return nil, fmt.Errorf("index template: %w", err)
	}

	return t, nil
}

// handleIndex renders the landing page
func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	if h.templates == nil {
		respondError(w, ErrNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := PageData{
		Title:          "Voto Safe",
		SessionSeconds: int(auth.SessionExpiry.Seconds()),
	}
	if err := h.templates.Index.Execute(w, data); err != nil {
		h.Log.Error("Failed to render index", "error", err)
	}
}

// handleHealth reports store reachability
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Log.Warn("Health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
	}
	respondOK(w, HealthResponse{Status: "ok"})
}

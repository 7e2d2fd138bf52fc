package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abrezinsky/votosafe/internal/models"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Timeout(60 * time.Second))
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	r.Get("/healthz", h.handleHealth)

	// Landing page and static assets (served from embedded filesystem)
	r.Get("/", h.handleIndex)
	if h.staticServer != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", h.staticServer))
	}

	// WebSocket
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}

	// Auth (public)
	r.Post("/api/auth/register", h.handleRegister)
	r.Post("/api/auth/login", h.handleLogin)
	r.Post("/api/auth/verify", h.handleVerify)
	r.Post("/api/auth/logout", h.handleLogout)
	r.Get("/api/terms", h.handleGetTerms)

	// Elections (public)
	r.Get("/api/elections", h.handleListElections)
	r.Get("/api/elections/{id}", h.handleGetElection)

	// Citizen API (protected)
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.RequireAuth)

		r.Get("/api/auth/session", h.handleGetSession)
		r.Patch("/api/auth/me", h.handleUpdateMe)
		r.Post("/api/terms/accept", h.handleAcceptTerms)

		r.Post("/api/elections/{id}/vote", h.handleSubmitVote)
		r.Get("/api/elections/{id}/receipt", h.handleGetReceipt)
		r.Get("/api/elections/{id}/receipt.png", h.handleGetReceiptQR)
	})

	// Admin API (protected)
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.RequireAuth)
		r.Use(h.Auth.RequireRole(models.RoleAdmin))

		r.Get("/api/admin/stats", h.handleGetStats)
		r.Get("/api/admin/users", h.handleSearchUsers)

		r.Post("/api/admin/elections", h.handleCreateElection)
		r.Put("/api/admin/elections/{id}", h.handleUpdateElection)
		r.Delete("/api/admin/elections/{id}", h.handleDeleteElection)
	})

	return r
}

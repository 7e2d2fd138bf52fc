package handlers

import (
	"net/http"
	"strings"

	"github.com/abrezinsky/votosafe/internal/services"
)

// handleGetStats returns turnout and demographic statistics
func (h *Handlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Stats.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, stats)
}

// handleSearchUsers lists users matching ?q=
func (h *Handlers) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	users, err := h.Stats.SearchUsers(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, UsersResponse{Users: users, Count: len(users)})
}

// handleCreateElection creates a new election
func (h *Handlers) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req services.ElectionInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	e, err := h.Elections.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondCreated(w, e)
}

// handleUpdateElection replaces an existing election
func (h *Handlers) handleUpdateElection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var req services.ElectionInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	e, err := h.Elections.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondOK(w, e)
}

// handleDeleteElection deletes an election
func (h *Handlers) handleDeleteElection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.Elections.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}

	respondDeleted(w)
}

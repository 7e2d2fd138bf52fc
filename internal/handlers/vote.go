package handlers

import (
	"net/http"
	"strconv"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/models"
)

// handleListElections lists elections with their status. When the
// request carries a live session each entry says whether that user voted.
func (h *Handlers) handleListElections(w http.ResponseWriter, r *http.Request) {
	elections, err := h.Elections.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var user *models.User
	if token := auth.TokenFromRequest(r); token != "" {
		if sess, err := h.Sessions.Current(r.Context(), token); err == nil {
			user = &sess.User
		}
	}

	out := make([]ElectionSummary, len(elections))
	for i, e := range elections {
		out[i] = ElectionSummary{Election: e, Voted: user != nil && user.HasVotedIn(e.ID)}
	}
	respondOK(w, out)
}

// handleGetElection returns the ballot for an election
func (h *Handlers) handleGetElection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	ballot, err := h.Elections.Ballot(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondOK(w, ballot)
}

// handleSubmitVote handles ballot submissions
func (h *Handlers) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondError(w, ErrUnauthorized)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var req VoteSubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := h.Voting.SubmitVote(r.Context(), sess, id, req.Votos)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if result.Session != nil {
		setSessionCookie(w, result.Session)
	}
	respondCreated(w, result)
}

// handleGetReceipt returns the receipt of the caller's vote
func (h *Handlers) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondError(w, ErrUnauthorized)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	v, err := h.Voting.Receipt(r.Context(), sess.User.DNI, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondOK(w, ReceiptResponse{
		Receipt:    v.Receipt,
		ElectionID: v.ElectionID,
		Fecha:      v.Fecha,
		Votos:      v.Votos,
	})
}

// handleGetReceiptQR returns the caller's receipt as a QR code PNG
func (h *Handlers) handleGetReceiptQR(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondError(w, ErrUnauthorized)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	png, err := h.Voting.ReceiptQR(r.Context(), sess.User.DNI, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(png)
}

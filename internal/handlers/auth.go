package handlers

import (
	"net/http"
	"time"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/services"
)

// handleRegister creates a citizen account
func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req services.Registration
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	user, err := h.Sessions.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondCreated(w, user)
}

// handleLogin checks the DNI and PIN and issues a verification challenge
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	ch, err := h.Sessions.BeginLogin(r.Context(), req.DNI, req.PIN)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondOK(w, ChallengeResponse{ChallengeID: ch.ID, Code: ch.Code})
}

// handleVerify checks the verification code and starts the session
func (h *Handlers) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.ChallengeID == "" {
		respondError(w, BadRequest("Missing challengeId"))
		return
	}

	sess, err := h.Sessions.VerifyChallenge(r.Context(), req.ChallengeID, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	setSessionCookie(w, sess)
	respondOK(w, newSessionResponse(sess))
}

// handleLogout clears the session
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if err := h.Sessions.Logout(r.Context(), token); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	auth.ClearSessionCookie(w)
	respondSuccess(w, "Sesión cerrada")
}

// handleGetSession returns the current session and its remaining time
func (h *Handlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondError(w, ErrUnauthorized)
		return
	}
	respondOK(w, newSessionResponse(sess))
}

// handleUpdateMe merges profile changes into the session user
func (h *Handlers) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondError(w, ErrUnauthorized)
		return
	}

	var req services.ProfileUpdate
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	updated, err := h.Sessions.UpdateUser(r.Context(), sess.Token, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	setSessionCookie(w, updated)
	respondOK(w, newSessionResponse(updated))
}

// handleGetTerms reports whether the terms were accepted
func (h *Handlers) handleGetTerms(w http.ResponseWriter, r *http.Request) {
	accepted, err := h.Sessions.TermsAccepted(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, TermsResponse{Accepted: accepted})
}

// handleAcceptTerms records terms acceptance
func (h *Handlers) handleAcceptTerms(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.AcceptTerms(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, TermsResponse{Accepted: true})
}

func setSessionCookie(w http.ResponseWriter, sess *models.Session) {
	auth.SetSessionCookie(w, sess.Token, sess.Remaining(time.Now()))
}

package handlers

import (
	"time"

	"github.com/abrezinsky/votosafe/internal/models"
)

// HealthResponse is the response for the health check
type HealthResponse struct {
	Status string `json:"status"`
}

// ChallengeResponse is returned by the first login step. The code is
// handed back directly since there is no out-of-band channel.
type ChallengeResponse struct {
	ChallengeID string `json:"challengeId"`
	Code        string `json:"code"`
}

// SessionResponse describes the current session
type SessionResponse struct {
	Session          *models.Session `json:"session"`
	SecondsRemaining int             `json:"secondsRemaining"`
}

func newSessionResponse(sess *models.Session) SessionResponse {
	return SessionResponse{
		Session:          sess,
		SecondsRemaining: int(sess.Remaining(time.Now()).Round(time.Second) / time.Second),
	}
}

// TermsResponse reports the global terms flag
type TermsResponse struct {
	Accepted bool `json:"accepted"`
}

// ElectionSummary is an election as listed for a citizen
type ElectionSummary struct {
	models.Election
	Voted bool `json:"voted"`
}

// ReceiptResponse is the receipt of a recorded vote
type ReceiptResponse struct {
	Receipt    string             `json:"receipt"`
	ElectionID string             `json:"electionId"`
	Fecha      time.Time          `json:"fecha"`
	Votos      []models.Selection `json:"votos"`
}

// UsersResponse is the response for the admin user search
type UsersResponse struct {
	Users []models.User `json:"users"`
	Count int           `json:"count"`
}

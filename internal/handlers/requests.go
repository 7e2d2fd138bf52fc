package handlers

import "github.com/abrezinsky/votosafe/internal/models"

// LoginRequest represents the first login step
type LoginRequest struct {
	DNI string `json:"dni"`
	PIN string `json:"pin"`
}

// VerifyRequest represents the second login step
type VerifyRequest struct {
	ChallengeID string `json:"challengeId"`
	Code        string `json:"code"`
}

// VoteSubmitRequest represents a ballot submission
type VoteSubmitRequest struct {
	Votos []models.Selection `json:"votos"`
}

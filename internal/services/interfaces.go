package services

import (
	"context"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/models"
)

// SessionServicer defines the interface for login and account operations
type SessionServicer interface {
	Login(ctx context.Context, dni, pin string) (string, error)
	BeginLogin(ctx context.Context, dni, pin string) (auth.Challenge, error)
	VerifyChallenge(ctx context.Context, challengeID, code string) (*models.Session, error)
	CompleteLogin(ctx context.Context, dni string) (*models.Session, error)
	Logout(ctx context.Context, token string) error
	Current(ctx context.Context, token string) (*models.Session, error)
	Refresh(ctx context.Context, token string) (*models.Session, error)
	Register(ctx context.Context, in Registration) (*models.User, error)
	UpdateUser(ctx context.Context, token string, p ProfileUpdate) (*models.Session, error)
	PurgeExpired(ctx context.Context) (int, error)
	TermsAccepted(ctx context.Context) (bool, error)
	AcceptTerms(ctx context.Context) error
}

// ElectionServicer defines the interface for election operations
type ElectionServicer interface {
	List(ctx context.Context) ([]models.Election, error)
	Get(ctx context.Context, id string) (*models.Election, error)
	Ballot(ctx context.Context, id string) (*models.Election, error)
	Create(ctx context.Context, in ElectionInput) (*models.Election, error)
	Update(ctx context.Context, id string, in ElectionInput) (*models.Election, error)
	Delete(ctx context.Context, id string) error
}

// VotingServicer defines the interface for voting operations
type VotingServicer interface {
	SubmitVote(ctx context.Context, sess *models.Session, electionID string, selections []models.Selection) (*VoteResult, error)
	Receipt(ctx context.Context, dni, electionID string) (*models.Vote, error)
	ReceiptQR(ctx context.Context, dni, electionID string) ([]byte, error)
}

// StatsServicer defines the interface for admin statistics
type StatsServicer interface {
	Stats(ctx context.Context) (*models.Stats, error)
	SearchUsers(ctx context.Context, query string) ([]models.User, error)
}

// Broadcaster defines the interface for broadcasting messages to clients
type Broadcaster interface {
	BroadcastVoteCast(electionID string, totalVotes int)
	BroadcastElectionsChanged()
}

// Recorder receives domain events for metrics
type Recorder interface {
	LoginAttempt(outcome string)
	VoteRecorded(electionID string)
	SessionsExpired(n int)
}

type nopRecorder struct{}

func (nopRecorder) LoginAttempt(string) {}
func (nopRecorder) VoteRecorded(string) {}
func (nopRecorder) SessionsExpired(int) {}

// Ensure concrete types implement interfaces
var (
	_ SessionServicer      = (*SessionService)(nil)
	_ ElectionServicer     = (*ElectionService)(nil)
	_ VotingServicer       = (*VotingService)(nil)
	_ StatsServicer        = (*StatsService)(nil)
	_ auth.Authenticator   = (*SessionService)(nil)
	_ auth.SessionResolver = (*SessionService)(nil)
)

package repository

import (
	"context"
	"time"

	"github.com/abrezinsky/votosafe/internal/models"
)

// UserRepository defines user data operations
type UserRepository interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, dni string) (*models.User, error)
	CreateUser(ctx context.Context, u models.User) error
	UpdateUser(ctx context.Context, u models.User) error
}

// ElectionRepository defines election data operations
type ElectionRepository interface {
	ListElections(ctx context.Context) ([]models.Election, error)
	GetElection(ctx context.Context, id string) (*models.Election, error)
	CreateElection(ctx context.Context, e models.Election) error
	UpdateElection(ctx context.Context, e models.Election) error
	DeleteElection(ctx context.Context, id string) error
}

// VoteRepository defines vote data operations
type VoteRepository interface {
	ListVotes(ctx context.Context) ([]models.Vote, error)
	GetVote(ctx context.Context, userID, electionID string) (*models.Vote, error)
	RecordVote(ctx context.Context, v models.Vote) (*models.User, error)
}

// SessionRepository defines session data operations
type SessionRepository interface {
	SaveSession(ctx context.Context, s models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// SettingsRepository defines global flag operations
type SettingsRepository interface {
	TermsAccepted(ctx context.Context) (bool, error)
	SetTermsAccepted(ctx context.Context, accepted bool) error
	SchemaVersion(ctx context.Context) (int, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	UserRepository
	ElectionRepository
	VoteRepository
	SessionRepository
	SettingsRepository
	Ping(ctx context.Context) error
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)

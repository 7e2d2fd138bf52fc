package mock

import (
	"context"
	"time"

	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without corrupting a store.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.RecordVoteError = errors.New("database error")
//	svc := services.NewVotingService(log, mockRepo, elections)
//	_, err := svc.SubmitVote(ctx, sess, "e1", selections)
//	// err will now contain the injected error
type Repository struct {
	repository.FullRepository

	// ===== User Errors =====
	ListUsersError  error
	GetUserError    error
	CreateUserError error
	UpdateUserError error

	// ===== Election Errors =====
	ListElectionsError  error
	GetElectionError    error
	CreateElectionError error
	UpdateElectionError error
	DeleteElectionError error

	// ===== Vote Errors =====
	ListVotesError  error
	GetVoteError    error
	RecordVoteError error

	// ===== Session Errors =====
	SaveSessionError           error
	GetSessionError            error
	DeleteSessionError         error
	DeleteExpiredSessionsError error

	// ===== Settings Errors =====
	TermsAcceptedError    error
	SetTermsAcceptedError error
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// ===== User Methods =====

func (m *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	if m.ListUsersError != nil {
		return nil, m.ListUsersError
	}
	return m.FullRepository.ListUsers(ctx)
}

func (m *Repository) GetUser(ctx context.Context, dni string) (*models.User, error) {
	if m.GetUserError != nil {
		return nil, m.GetUserError
	}
	return m.FullRepository.GetUser(ctx, dni)
}

func (m *Repository) CreateUser(ctx context.Context, u models.User) error {
	if m.CreateUserError != nil {
		return m.CreateUserError
	}
	return m.FullRepository.CreateUser(ctx, u)
}

func (m *Repository) UpdateUser(ctx context.Context, u models.User) error {
	if m.UpdateUserError != nil {
		return m.UpdateUserError
	}
	return m.FullRepository.UpdateUser(ctx, u)
}

// ===== Election Methods =====

func (m *Repository) ListElections(ctx context.Context) ([]models.Election, error) {
	if m.ListElectionsError != nil {
		return nil, m.ListElectionsError
	}
	return m.FullRepository.ListElections(ctx)
}

func (m *Repository) GetElection(ctx context.Context, id string) (*models.Election, error) {
	if m.GetElectionError != nil {
		return nil, m.GetElectionError
	}
	return m.FullRepository.GetElection(ctx, id)
}

func (m *Repository) CreateElection(ctx context.Context, e models.Election) error {
	if m.CreateElectionError != nil {
		return m.CreateElectionError
	}
	return m.FullRepository.CreateElection(ctx, e)
}

func (m *Repository) UpdateElection(ctx context.Context, e models.Election) error {
	if m.UpdateElectionError != nil {
		return m.UpdateElectionError
	}
	return m.FullRepository.UpdateElection(ctx, e)
}

func (m *Repository) DeleteElection(ctx context.Context, id string) error {
	if m.DeleteElectionError != nil {
		return m.DeleteElectionError
	}
	return m.FullRepository.DeleteElection(ctx, id)
}

// ===== Vote Methods =====

func (m *Repository) ListVotes(ctx context.Context) ([]models.Vote, error) {
	if m.ListVotesError != nil {
		return nil, m.ListVotesError
	}
	return m.FullRepository.ListVotes(ctx)
}

func (m *Repository) GetVote(ctx context.Context, userID, electionID string) (*models.Vote, error) {
	if m.GetVoteError != nil {
		return nil, m.GetVoteError
	}
	return m.FullRepository.GetVote(ctx, userID, electionID)
}

func (m *Repository) RecordVote(ctx context.Context, v models.Vote) (*models.User, error) {
	if m.RecordVoteError != nil {
		return nil, m.RecordVoteError
	}
	return m.FullRepository.RecordVote(ctx, v)
}

// ===== Session Methods =====

func (m *Repository) SaveSession(ctx context.Context, s models.Session) error {
	if m.SaveSessionError != nil {
		return m.SaveSessionError
	}
	return m.FullRepository.SaveSession(ctx, s)
}

func (m *Repository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if m.GetSessionError != nil {
		return nil, m.GetSessionError
	}
	return m.FullRepository.GetSession(ctx, token)
}

func (m *Repository) DeleteSession(ctx context.Context, token string) error {
	if m.DeleteSessionError != nil {
		return m.DeleteSessionError
	}
	return m.FullRepository.DeleteSession(ctx, token)
}

func (m *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	if m.DeleteExpiredSessionsError != nil {
		return 0, m.DeleteExpiredSessionsError
	}
	return m.FullRepository.DeleteExpiredSessions(ctx, now)
}

// ===== Settings Methods =====

func (m *Repository) TermsAccepted(ctx context.Context) (bool, error) {
	if m.TermsAcceptedError != nil {
		return false, m.TermsAcceptedError
	}
	return m.FullRepository.TermsAccepted(ctx)
}

func (m *Repository) SetTermsAccepted(ctx context.Context, accepted bool) error {
	if m.SetTermsAcceptedError != nil {
		return m.SetTermsAcceptedError
	}
	return m.FullRepository.SetTermsAccepted(ctx, accepted)
}

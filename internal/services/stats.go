package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/repository"
)

// PresidentialCategoryID is the category the party distribution counts
const PresidentialCategoryID = "cat1"

// StatsServiceRepository defines the repository methods needed by StatsService
type StatsServiceRepository interface {
	repository.UserRepository
	repository.VoteRepository
}

// StatsService computes the admin dashboard aggregates
type StatsService struct {
	log  logger.Logger
	repo StatsServiceRepository
	now  func() time.Time
}

// NewStatsService creates a new StatsService
func NewStatsService(log logger.Logger, repo StatsServiceRepository) *StatsService {
	return &StatsService{log: log, repo: repo, now: time.Now}
}

// SetClock replaces the time source used for ages
func (s *StatsService) SetClock(now func() time.Time) {
	s.now = now
}

// Stats loads users and votes and aggregates them
func (s *StatsService) Stats(ctx context.Context) (*models.Stats, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	votes, err := s.repo.ListVotes(ctx)
	if err != nil {
		return nil, translate(err, ErrVoteNotFound)
	}
	stats := ComputeStats(votes, users, s.now())
	return &stats, nil
}

// ComputeStats aggregates votes and users as of now
func ComputeStats(votes []models.Vote, users []models.User, now time.Time) models.Stats {
	st := models.Stats{
		TotalUsers: len(users),
		TotalVotes: len(votes),
		PartyVotes: make(map[string]int),
		AgeGroups:  make(map[string]int, len(models.AgeBuckets)),
	}
	if st.TotalUsers > 0 {
		p := float64(st.TotalVotes) / float64(st.TotalUsers) * 100
		st.Participation = math.Round(p*10) / 10
	}

	for _, v := range votes {
		for _, sel := range v.Votos {
			if sel.Categoria == PresidentialCategoryID {
				st.PartyVotes[sel.Partido]++
			}
		}
	}

	for _, b := range models.AgeBuckets {
		st.AgeGroups[b] = 0
	}
	for _, u := range users {
		switch u.Sexo {
		case "M":
			st.Gender.M++
		case "F":
			st.Gender.F++
		}
		st.AgeGroups[AgeBucket(u.FechaNacimiento, now)]++
	}
	return st
}

// AgeBucket classifies a birth date by calendar-year difference.
// Unparseable dates land in the oldest bucket.
func AgeBucket(birth string, now time.Time) string {
	t, err := time.Parse(models.DateLayout, birth)
	if err != nil {
		return models.AgeBuckets[3]
	}
	age := now.Year() - t.Year()
	switch {
	case age <= 30:
		return models.AgeBuckets[0]
	case age <= 45:
		return models.AgeBuckets[1]
	case age <= 60:
		return models.AgeBuckets[2]
	default:
		return models.AgeBuckets[3]
	}
}

// SearchUsers matches nombre and apellidos case-insensitively and dni by
// substring. An empty query returns every user.
func (s *StatsService) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if q == "" ||
			strings.Contains(strings.ToLower(u.Nombre), q) ||
			strings.Contains(strings.ToLower(u.Apellidos), q) ||
			strings.Contains(u.DNI, q) {
			out = append(out, u.Redacted())
		}
	}
	return out, nil
}

package services_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/repository"
	"github.com/abrezinsky/votosafe/internal/services"
	"github.com/abrezinsky/votosafe/internal/testutil"
	"github.com/abrezinsky/votosafe/pkg/reniec"
)

// electionDay is inside the seeded election window
var electionDay = time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	repo      *repository.Repository
	clock     *clock
	registry  *reniec.MockClient
	sessions  *services.SessionService
	elections *services.ElectionService
	voting    *services.VotingService
	stats     *services.StatsService
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()
	return setupServicesWithRepo(t, testutil.NewTestRepository(t))
}

func setupServicesWithRepo(t *testing.T, repo repository.FullRepository) *testEnv {
	t.Helper()
	log := logger.Discard()
	clk := &clock{now: electionDay}
	registry := reniec.NewMockClient()

	sessions := services.NewSessionService(log, repo, auth.FastArgon2(), registry, auth.SessionExpiry)
	sessions.SetClock(clk.Now)
	elections := services.NewElectionService(log, repo)
	elections.SetClock(clk.Now)
	voting := services.NewVotingService(log, repo, elections, sessions)
	voting.SetClock(clk.Now)
	stats := services.NewStatsService(log, repo)
	stats.SetClock(clk.Now)

	env := &testEnv{
		clock:     clk,
		registry:  registry,
		sessions:  sessions,
		elections: elections,
		voting:    voting,
		stats:     stats,
	}
	if r, ok := repo.(*repository.Repository); ok {
		env.repo = r
	}
	return env
}

// login runs the full two-step login for dni/pin
func (e *testEnv) login(t *testing.T, dni, pin string) *models.Session {
	t.Helper()
	ctx := context.Background()
	code, err := e.sessions.Login(ctx, dni, pin)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", dni, err)
	}
	if !e.sessions.VerifyCode(code, code) {
		t.Fatal("expected code to verify")
	}
	sess, err := e.sessions.CompleteLogin(ctx, dni)
	if err != nil {
		t.Fatalf("CompleteLogin(%s) failed: %v", dni, err)
	}
	return sess
}

// fullBallot votes for the first candidate of every category
func fullBallot(t *testing.T, e *testEnv, electionID string) []models.Selection {
	t.Helper()
	ballot, err := e.elections.Ballot(context.Background(), electionID)
	if err != nil {
		t.Fatalf("Ballot failed: %v", err)
	}
	sels := make([]models.Selection, 0, len(ballot.Categorias))
	for _, c := range ballot.Categorias {
		sels = append(sels, models.Selection{Categoria: c.ID, CandidatoID: c.Candidatos[0].ID})
	}
	return sels
}

// fixedCodes yields code 1000+n for each 4-byte big-endian n
func fixedCodes(ns ...byte) *bytes.Reader {
	var buf []byte
	for _, n := range ns {
		buf = append(buf, 0, 0, 0, n)
	}
	return bytes.NewReader(buf)
}

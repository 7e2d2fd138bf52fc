package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/handlers"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/repository"
	"github.com/abrezinsky/votosafe/internal/services"
	"github.com/abrezinsky/votosafe/internal/testutil"
	"github.com/abrezinsky/votosafe/pkg/reniec"
)

const (
	citizenDNI = "12345678"
	citizenPIN = "1234"
	adminDNI   = "87654321"
	adminPIN   = "4321"
)

type testSetup struct {
	repo     *repository.Repository
	sessions *services.SessionService
	handlers *handlers.Handlers
	router   chi.Router
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	log := logger.Discard()

	sessions := services.NewSessionService(log, repo, auth.FastArgon2(), reniec.NewMockClient(), auth.SessionExpiry)
	elections := services.NewElectionService(log, repo)
	voting := services.NewVotingService(log, repo, elections, sessions)
	stats := services.NewStatsService(log, repo)

	h := handlers.NewForTesting(sessions, elections, voting, stats)
	h.Health = repo
	return &testSetup{
		repo:     repo,
		sessions: sessions,
		handlers: h,
		router:   h.Router(),
	}
}

// do sends a request through the router. body is JSON-encoded unless nil.
func (s *testSetup) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// login runs both login steps over HTTP and returns the session cookie
func (s *testSetup) login(t *testing.T, dni, pin string) *http.Cookie {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login", handlers.LoginRequest{DNI: dni, PIN: pin}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ch handlers.ChallengeResponse
	decode(t, rec, &ch)

	rec = s.do(t, http.MethodPost, "/api/auth/verify", handlers.VerifyRequest{ChallengeID: ch.ChallengeID, Code: ch.Code}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(rec)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected session cookie after verify")
	}
	return cookie
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v (%s)", err, rec.Body.String())
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body handlers.APIError
	decode(t, rec, &body)
	return body.Code
}

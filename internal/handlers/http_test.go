package handlers_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abrezinsky/votosafe/internal/errors"
	"github.com/abrezinsky/votosafe/internal/handlers"
	"github.com/abrezinsky/votosafe/internal/services"
)

func TestAPIError_Error(t *testing.T) {
	err := handlers.NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "test message")

	if err.Error() != "test message" {
		t.Errorf("expected 'test message', got %q", err.Error())
	}
	if err.Code != "BAD_REQUEST" {
		t.Errorf("expected code 'BAD_REQUEST', got %q", err.Code)
	}
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"api error passes through", handlers.BadRequest("bad"), http.StatusBadRequest, handlers.ErrCodeBadRequest},
		{"invalid credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"duplicate id", services.ErrDuplicateID, http.StatusConflict, "DUPLICATE_ID"},
		{"incomplete ballot", services.ErrIncompleteBallot, http.StatusBadRequest, "INCOMPLETE_BALLOT"},
		{"user not found", services.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
		{"election not found", services.ErrElectionNotFound, http.StatusNotFound, "ELECTION_NOT_FOUND"},
		{"already voted", services.ErrAlreadyVoted, http.StatusConflict, "ALREADY_VOTED"},
		{"session expired", services.ErrSessionExpired, http.StatusUnauthorized, "SESSION_EXPIRED"},
		{"code mismatch", services.ErrCodeMismatch, http.StatusUnauthorized, "CODE_MISMATCH"},
		{"uncoded validation", errors.Validation("nope"), http.StatusBadRequest, handlers.ErrCodeValidation},
		{"uncoded invalid input", errors.InvalidInput("nope"), http.StatusBadRequest, handlers.ErrCodeValidation},
		{"uncoded not found", errors.NotFound("gone"), http.StatusNotFound, handlers.ErrCodeNotFound},
		{"uncoded conflict", errors.Conflict("clash"), http.StatusConflict, handlers.ErrCodeConflict},
		{"corrupt", errors.Corrupt("users", fmt.Errorf("bad json")), http.StatusInternalServerError, handlers.ErrCodeStorageParse},
		{"internal", errors.Internal(fmt.Errorf("boom")), http.StatusInternalServerError, handlers.ErrCodeInternalServer},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, handlers.ErrCodeInternalServer},
		{"wrapped app error", fmt.Errorf("ctx: %w", services.ErrAlreadyVoted), http.StatusConflict, "ALREADY_VOTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := handlers.ToAPIError(tt.err)
			if apiErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, apiErr.Status)
			}
			if apiErr.Code != tt.code {
				t.Errorf("expected code %q, got %q", tt.code, apiErr.Code)
			}
		})
	}
}

func TestToAPIError_InternalHidesDetails(t *testing.T) {
	apiErr := handlers.ToAPIError(errors.Internal(fmt.Errorf("sqlite: disk I/O error")))
	if strings.Contains(apiErr.Message, "sqlite") {
		t.Errorf("internal error leaked details: %q", apiErr.Message)
	}
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	setup := newTestSetup(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	setup.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != handlers.ErrCodeBadRequest {
		t.Errorf("expected BAD_REQUEST, got %q", code)
	}
}

func TestDecodeJSON_Malformed(t *testing.T) {
	setup := newTestSetup(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	setup.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	setup := newTestSetup(t)

	rec := setup.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body handlers.HealthResponse
	decode(t, rec, &body)
	if body.Status != "ok" {
		t.Errorf("expected ok, got %q", body.Status)
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return fmt.Errorf("store closed") }

func TestHealth_StoreDown(t *testing.T) {
	setup := newTestSetup(t)
	setup.handlers.Health = downPinger{}
	router := setup.handlers.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestIndex_WithoutTemplates(t *testing.T) {
	setup := newTestSetup(t)

	rec := setup.do(t, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without templates, got %d", rec.Code)
	}
}

package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abrezinsky/votosafe/internal/models"
)

type fakeResolver struct {
	sessions map[string]*models.Session
}

func (f *fakeResolver) Current(_ context.Context, token string) (*models.Session, error) {
	if s, ok := f.sessions[token]; ok {
		return s, nil
	}
	return nil, errors.New("no session")
}

func newResolver() *fakeResolver {
	return &fakeResolver{sessions: map[string]*models.Session{
		"citizen-token": {Token: "citizen-token", User: models.User{DNI: "12345678", Role: models.RoleCitizen}},
		"admin-token":   {Token: "admin-token", User: models.User{DNI: "87654321", Role: models.RoleAdmin}},
	}}
}

func TestGenerateToken_Format(t *testing.T) {
	token := GenerateToken()
	if len(token) != 64 { // 32 bytes = 64 hex chars
		t.Errorf("expected 64-char token, got %d chars", len(token))
	}
	if token == GenerateToken() {
		t.Error("expected tokens to differ")
	}
}

func TestGenerateCode_Range(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n, err := strconv.Atoi(code)
		if err != nil || n < 1000 || n > 9999 {
			t.Fatalf("code %q out of range", code)
		}
	}
}

func TestGenerateCode_Deterministic(t *testing.T) {
	// 0x00000000 maps to the lowest code
	code, err := GenerateCode(bytes.NewReader([]byte{0, 0, 0, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if code != "1000" {
		t.Errorf("expected 1000, got %s", code)
	}

	// 8999 maps to the highest code
	code, _ = GenerateCode(bytes.NewReader([]byte{0, 0, 0x23, 0x27}))
	if code != "9999" {
		t.Errorf("expected 9999, got %s", code)
	}
}

func TestGenerateCode_RejectsBiasedSample(t *testing.T) {
	src := bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 1})
	code, err := GenerateCode(src)
	if err != nil {
		t.Fatal(err)
	}
	if code != "1001" {
		t.Errorf("expected out-of-range sample skipped, got %s", code)
	}
}

func TestGenerateCode_ReadError(t *testing.T) {
	if _, err := GenerateCode(bytes.NewReader(nil)); err == nil {
		t.Error("expected error from empty source")
	}
}

func TestVerifyCode(t *testing.T) {
	tests := []struct {
		entered, expected string
		want              bool
	}{
		{"1234", "1234", true},
		{"1235", "1234", false},
		{"", "", false},
		{"1234", "", false},
	}
	for _, tt := range tests {
		if got := VerifyCode(tt.entered, tt.expected); got != tt.want {
			t.Errorf("VerifyCode(%q, %q) = %v, want %v", tt.entered, tt.expected, got, tt.want)
		}
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := TokenFromRequest(req); got != "" {
		t.Errorf("expected empty token, got %q", got)
	}

	req.Header.Set("Authorization", "Bearer abc")
	if got := TokenFromRequest(req); got != "abc" {
		t.Errorf("expected bearer token, got %q", got)
	}

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie"})
	if got := TokenFromRequest(req); got != "cookie" {
		t.Errorf("expected cookie to win, got %q", got)
	}
}

func TestRequireAuth_AllowsValidSession(t *testing.T) {
	m := NewMiddleware(newResolver())

	var seen *models.Session
	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/elections", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "citizen-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if seen == nil || seen.User.DNI != "12345678" {
		t.Errorf("expected session in context, got %+v", seen)
	}
}

func TestRequireAuth_Returns401WithoutSession(t *testing.T) {
	m := NewMiddleware(newResolver())
	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/elections", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"code":"UNAUTHORIZED"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestRequireAuth_UnknownTokenClearsCookie(t *testing.T) {
	m := NewMiddleware(newResolver())
	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "stale"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Errorf("expected cleared cookie, got %+v", cookies)
	}
}

func TestRequireRole(t *testing.T) {
	m := NewMiddleware(newResolver())
	handler := m.RequireAuth(m.RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		token string
		want  int
	}{
		{"admin-token", http.StatusNoContent},
		{"citizen-token", http.StatusForbidden},
		{"", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/api/admin/stats", nil)
		if tt.token != "" {
			req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.token})
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("token %q: expected %d, got %d", tt.token, tt.want, rec.Code)
		}
	}
}

func TestRequireRole_WithoutRequireAuth(t *testing.T) {
	m := NewMiddleware(newResolver())
	handler := m.RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestSetSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "test-token", SessionExpiry)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName || c.Value != "test-token" {
		t.Errorf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly {
		t.Error("expected HttpOnly cookie")
	}
	if c.MaxAge != 300 {
		t.Errorf("expected MaxAge 300, got %d", c.MaxAge)
	}
}

func TestClearSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSessionCookie(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].Value != "" || cookies[0].MaxAge != -1 {
		t.Errorf("expected expired empty cookie, got %+v", cookies[0])
	}
}

func TestChallenges_IssueVerify(t *testing.T) {
	c := NewChallenges()
	ch := c.Issue("12345678", "4321")
	if ch.ID == "" || !c.Pending(ch.ID) {
		t.Fatal("expected pending challenge")
	}

	if _, ok := c.Verify(ch.ID, "0000"); ok {
		t.Error("expected wrong code rejected")
	}
	if !c.Pending(ch.ID) {
		t.Error("expected challenge kept after wrong code")
	}

	got, ok := c.Verify(ch.ID, "4321")
	if !ok || got.DNI != "12345678" {
		t.Errorf("expected match for 12345678, got %+v ok=%v", got, ok)
	}
	if c.Pending(ch.ID) || c.Len() != 0 {
		t.Error("expected challenge consumed")
	}
}

func TestChallenges_ReissueReplaces(t *testing.T) {
	c := NewChallenges()
	first := c.Issue("12345678", "1111")
	second := c.Issue("12345678", "2222")

	if c.Len() != 1 {
		t.Errorf("expected one challenge per DNI, got %d", c.Len())
	}
	if _, ok := c.Verify(first.ID, "1111"); ok {
		t.Error("expected replaced challenge to be gone")
	}
	if _, ok := c.Verify(second.ID, "2222"); !ok {
		t.Error("expected latest challenge to verify")
	}
}

func TestChallenges_Concurrent(t *testing.T) {
	c := NewChallenges()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dni := strconv.Itoa(10000000 + i)
			ch := c.Issue(dni, "1234")
			c.Verify(ch.ID, "1234")
		}(i)
	}
	wg.Wait()
	if c.Len() != 0 {
		t.Errorf("expected all challenges consumed, got %d", c.Len())
	}
}

func TestSessionFromContext_Missing(t *testing.T) {
	if _, ok := SessionFromContext(context.Background()); ok {
		t.Error("expected no session")
	}
	ctx := WithSession(context.Background(), &models.Session{Token: "x", ExpiresAt: time.Now()})
	if s, ok := SessionFromContext(ctx); !ok || s.Token != "x" {
		t.Error("expected stored session")
	}
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abrezinsky/votosafe/internal/models"
)

const (
	CookieName    = "votosafe_session"
	SessionExpiry = 5 * time.Minute
)

// SessionResolver looks up a live session by token. It must fail for
// unknown or expired tokens.
type SessionResolver interface {
	Current(ctx context.Context, token string) (*models.Session, error)
}

type ctxKey struct{}

// WithSession stores s in ctx
func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SessionFromContext returns the session stored by RequireAuth
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*models.Session)
	return s, ok && s != nil
}

// Middleware guards routes with the session cookie
type Middleware struct {
	sessions SessionResolver
}

// NewMiddleware creates a Middleware resolving tokens through sessions
func NewMiddleware(sessions SessionResolver) *Middleware {
	return &Middleware{sessions: sessions}
}

// TokenFromRequest extracts the session token from the cookie or a bearer header
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// RequireAuth middleware for API endpoints (returns 401)
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized - please log in")
			return
		}
		sess, err := m.sessions.Current(r.Context(), token)
		if err != nil {
			ClearSessionCookie(w)
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Session expired - please log in")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequireRole middleware rejects authenticated users without role (returns 403).
// It must run after RequireAuth.
func (m *Middleware) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized - please log in")
				return
			}
			if sess.User.Role != role {
				writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"code":%q,"error":%q}`, code, msg)
}

// SetSessionCookie sets the session cookie on the response
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// GenerateToken creates a random session token
func GenerateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GenerateCode returns a 4-digit verification code in [1000, 9999]
// drawn from src. Pass nil for crypto/rand.
func GenerateCode(src io.Reader) (string, error) {
	if src == nil {
		src = rand.Reader
	}
	var buf [4]byte
	// Rejection sampling keeps the distribution uniform.
	const span = 9000
	const limit = uint64(1<<32) / span * span
	for {
		if _, err := io.ReadFull(src, buf[:]); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		n := binary.BigEndian.Uint32(buf[:])
		if uint64(n) < limit {
			return fmt.Sprintf("%d", 1000+n%span), nil
		}
	}
}

// VerifyCode reports whether the entered code matches the expected one.
// No attempt limit and no expiry apply.
func VerifyCode(entered, expected string) bool {
	return expected != "" && entered == expected
}

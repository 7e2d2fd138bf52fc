package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/models"
)

// fakeSessions resolves tokens from a map; deleting a token or letting
// ExpiresAt pass expires it
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	calls    int
}

func (f *fakeSessions) Current(_ context.Context, token string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	s, ok := f.sessions[token]
	if !ok || !time.Now().Before(s.ExpiresAt) {
		return nil, errors.New("session expired")
	}
	return s, nil
}

func (f *fakeSessions) resolved() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSessions) expire(token string) {
	f.mu.Lock()
	delete(f.sessions, token)
	f.mu.Unlock()
}

type countingGauge struct {
	mu sync.Mutex
	n  int
}

func (g *countingGauge) SetClients(n int) {
	g.mu.Lock()
	g.n = n
	g.mu.Unlock()
}

func (g *countingGauge) get() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func newSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]*models.Session{
		"tok": {Token: "tok", ExpiresAt: time.Now().Add(auth.SessionExpiry)},
	}}
}

// startHub runs a hub behind an httptest server and returns a stop func
func startHub(t *testing.T, sessions auth.SessionResolver, tick time.Duration, opts ...func(*Hub)) (*Hub, *httptest.Server, func()) {
	t.Helper()
	hub := New(logger.Discard(), sessions)
	hub.SetTickInterval(tick)
	for _, opt := range opts {
		opt(hub)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	return hub, server, func() {
		cancel()
		<-done
		server.Close()
	}
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{}
	if token != "" {
		header.Set("Cookie", auth.CookieName+"="+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, want string) models.WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg models.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg
		}
	}
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := New(logger.Discard(), newSessions())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// Broadcasting after stop must not block
	hub.BroadcastElectionsChanged()
}

func TestHub_BroadcastWithoutRunDoesNotBlock(t *testing.T) {
	hub := New(logger.Discard(), newSessions())
	for i := 0; i < 100; i++ {
		hub.BroadcastVoteCast("e1", i)
	}
}

func TestHub_SessionCountdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sessions := newSessions()
	hub, server, stop := startHub(t, sessions, 20*time.Millisecond)
	defer stop()

	conn := dial(t, server, "tok")
	defer conn.Close()

	msg := readType(t, conn, TypeSessionCountdown)
	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("unexpected payload %T", msg.Payload)
	}
	secs, _ := payload["seconds_remaining"].(float64)
	if secs < 298 || secs > 300 {
		t.Errorf("expected about 300 seconds, got %v", secs)
	}

	// The cached expiry is still in the future, a vote forces a lookup
	sessions.expire("tok")
	hub.BroadcastVoteCast("e1", 1)
	readType(t, conn, TypeSessionExpired)
}

func TestHub_CountdownUsesCachedExpiry(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sessions := newSessions()
	hub, server, stop := startHub(t, sessions, 5*time.Millisecond)
	defer stop()

	conn := dial(t, server, "tok")
	defer conn.Close()

	for i := 0; i < 5; i++ {
		readType(t, conn, TypeSessionCountdown)
	}
	if got := sessions.resolved(); got != 1 {
		t.Errorf("expected one session lookup across ticks, got %d", got)
	}

	hub.BroadcastVoteCast("e1", 1)
	readType(t, conn, TypeVoteCast)
	readType(t, conn, TypeSessionCountdown)
	if got := sessions.resolved(); got != 2 {
		t.Errorf("expected vote_cast to force a second lookup, got %d", got)
	}
}

func TestHub_CountdownReresolves(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Duration
		resync  time.Duration
		logout  bool
	}{
		{name: "cached expiry lapses", expires: 60 * time.Millisecond, resync: time.Hour},
		{name: "resync sees logout", expires: auth.SessionExpiry, resync: 30 * time.Millisecond, logout: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

			sessions := &fakeSessions{sessions: map[string]*models.Session{
				"tok": {Token: "tok", ExpiresAt: time.Now().Add(tt.expires)},
			}}
			_, server, stop := startHub(t, sessions, 10*time.Millisecond, func(h *Hub) {
				h.SetResyncInterval(tt.resync)
			})
			defer stop()

			conn := dial(t, server, "tok")
			defer conn.Close()

			readType(t, conn, TypeSessionCountdown)
			if tt.logout {
				sessions.expire("tok")
			}
			readType(t, conn, TypeSessionExpired)
		})
	}
}

func TestHub_AnonymousClientGetsNoCountdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub, server, stop := startHub(t, newSessions(), 10*time.Millisecond)
	defer stop()

	conn := dial(t, server, "")
	defer conn.Close()

	// Give the hub a few ticks, then broadcast
	time.Sleep(50 * time.Millisecond)
	hub.BroadcastVoteCast("e1", 3)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg models.WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != TypeVoteCast {
		t.Errorf("expected vote_cast first, got %s", msg.Type)
	}
	payload := msg.Payload.(map[string]any)
	if payload["election_id"] != "e1" || payload["total_votes"] != float64(3) {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub, server, stop := startHub(t, newSessions(), time.Hour)
	defer stop()
	gauge := &countingGauge{}
	hub.SetGauge(gauge)

	a := dial(t, server, "")
	defer a.Close()
	b := dial(t, server, "")
	defer b.Close()

	deadline := time.Now().Add(2 * time.Second)
	for gauge.get() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.BroadcastElectionsChanged()
	readType(t, a, TypeElectionsUpdated)
	readType(t, b, TypeElectionsUpdated)
}

func TestHub_ServeWsRejectsPlainHTTP(t *testing.T) {
	hub := New(logger.Discard(), newSessions())
	rec := httptest.NewRecorder()
	hub.ServeWs(rec, httptest.NewRequest("GET", "/ws", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-upgrade request, got %d", rec.Code)
	}
}

package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"go.uber.org/goleak"

	"github.com/abrezinsky/votosafe/internal/config"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/pkg/reniec"
)

func TestNew_InitializesApp(t *testing.T) {
	app := createTestApp(t, testConfig())

	if app.handlers == nil {
		t.Error("expected handlers to be initialized")
	}
	if app.repo == nil {
		t.Error("expected repo to be initialized")
	}
	if app.metrics == nil {
		t.Error("expected metrics to be enabled by default")
	}
}

func TestNew_FailsWithBadDBPath(t *testing.T) {
	cfg := testConfig()
	cfg.DatabasePath = "/nonexistent/path/db.sqlite"

	_, err := New(cfg, logger.Discard(), reniec.NewMockClient(), createTestTemplatesFS(), fstest.MapFS{})
	if err == nil {
		t.Error("expected error for invalid db path")
	}
}

func TestNew_FailsWithMissingTemplates(t *testing.T) {
	_, err := New(testConfig(), logger.Discard(), reniec.NewMockClient(), fstest.MapFS{}, fstest.MapFS{})
	if err == nil {
		t.Error("expected error for missing templates")
	}
}

func TestNew_BadgerInMemory(t *testing.T) {
	cfg := testConfig()
	cfg.Store = config.StoreBadger
	cfg.DatabasePath = ""

	app := createTestApp(t, cfg)
	server := httptest.NewServer(app.Router())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/elections")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestApp_Router_ServesRequests(t *testing.T) {
	app := createTestApp(t, testConfig())
	server := httptest.NewServer(app.Router())
	defer server.Close()

	for _, path := range []string{"/", "/healthz", "/api/elections", "/api/terms"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("request %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestApp_MetricsEndpoint(t *testing.T) {
	app := createTestApp(t, testConfig())
	server := httptest.NewServer(app.Router())
	defer server.Close()

	// Generate one failed login so the counter has a sample
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", strings.NewReader(`{"dni":"12345678","pin":"0000"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`votosafe_login_attempts_total{outcome="invalid_credentials"} 1`,
		"votosafe_http_requests_total",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}

func TestApp_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics = false
	app := createTestApp(t, cfg)
	server := httptest.NewServer(app.Router())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 with metrics disabled, got %d", resp.StatusCode)
	}
}

func TestApp_Close_StopsWorkers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	app, err := New(testConfig(), logger.Discard(), reniec.NewMockClient(), createTestTemplatesFS(), fstest.MapFS{})
	if err != nil {
		t.Fatal(err)
	}

	if err := app.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	// Calling Close multiple times should be safe
	app.Close()
}

func TestApp_Run_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 0
	app := createTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestGetPreferredIP_ReturnsValidIP(t *testing.T) {
	ip := getPreferredIP(realNetworkProvider{})

	if ip == "" {
		t.Error("expected non-empty IP")
	}
	if ip != "localhost" && net.ParseIP(ip) == nil {
		t.Errorf("expected valid IP, got: %s", ip)
	}
}

func TestIsPrivate172(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.15.0.1", false},
		{"172.32.0.1", false},
		{"192.168.1.1", false},
		{"::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := isPrivate172(net.ParseIP(tt.ip)); got != tt.expected {
				t.Errorf("isPrivate172(%s) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}
}

// mockInterface implements networkInterface for testing
type mockInterface struct {
	flags net.Flags
	addrs []net.Addr
	err   error
}

func (m mockInterface) Flags() net.Flags {
	return m.flags
}

func (m mockInterface) Addrs() ([]net.Addr, error) {
	return m.addrs, m.err
}

// mockNetworkProvider implements networkProvider for testing
type mockNetworkProvider struct {
	interfaces []networkInterface
	err        error
}

func (m mockNetworkProvider) Interfaces() ([]networkInterface, error) {
	return m.interfaces, m.err
}

func TestGetPreferredIP(t *testing.T) {
	ipNet := func(s string) net.Addr {
		return &net.IPNet{IP: net.ParseIP(s), Mask: net.CIDRMask(24, 32)}
	}

	tests := []struct {
		name     string
		provider mockNetworkProvider
		want     string
	}{
		{"network error", mockNetworkProvider{err: net.ErrClosed}, "localhost"},
		{"addrs error", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: net.FlagUp, err: net.ErrClosed},
		}}, "localhost"},
		{"ip addr", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: net.FlagUp, addrs: []net.Addr{&net.IPAddr{IP: net.ParseIP("192.168.1.100")}}},
		}}, "192.168.1.100"},
		{"public fallback", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: net.FlagUp, addrs: []net.Addr{ipNet("8.8.8.8")}},
		}}, "8.8.8.8"},
		{"private preferred", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: net.FlagUp, addrs: []net.Addr{ipNet("8.8.8.8"), ipNet("10.0.0.7")}},
		}}, "10.0.0.7"},
		{"loopback skipped", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: net.FlagUp, addrs: []net.Addr{ipNet("127.0.0.1"), ipNet("192.168.1.50")}},
		}}, "192.168.1.50"},
		{"down interface skipped", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: 0, addrs: []net.Addr{ipNet("192.168.1.50")}},
		}}, "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getPreferredIP(tt.provider); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// Helper functions

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DatabasePath = ":memory:"
	cfg.SweepInterval = 10 * time.Millisecond
	return cfg
}

func createTestTemplatesFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html": &fstest.MapFile{
			Data: []byte(`<html><body>{{.Title}}</body></html>`),
		},
	}
}

func createTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := New(cfg, logger.Discard(), reniec.NewMockClient(), createTestTemplatesFS(), fstest.MapFS{})
	if err != nil {
		t.Fatalf("failed to create test app: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

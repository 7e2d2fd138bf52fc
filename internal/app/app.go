package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/config"
	"github.com/abrezinsky/votosafe/internal/handlers"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/metrics"
	"github.com/abrezinsky/votosafe/internal/repository"
	"github.com/abrezinsky/votosafe/internal/services"
	"github.com/abrezinsky/votosafe/internal/store"
	"github.com/abrezinsky/votosafe/internal/websocket"
	"github.com/abrezinsky/votosafe/pkg/reniec"
)

const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	cfg      *config.Config
	log      logger.Logger
	handlers *handlers.Handlers
	repo     *repository.Repository
	sessions *services.SessionService
	metrics  *metrics.Metrics
	hub      *websocket.Hub

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New opens the store and wires services, the websocket hub and the
// HTTP handlers. Background workers start immediately; Close stops them.
func New(cfg *config.Config, log logger.Logger, registry reniec.Client, templatesFS, staticFS fs.FS) (*App, error) {
	st, err := store.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics {
		m = metrics.New()
	}

	repo := repository.New(st,
		repository.WithLogger(log.With("component", "repository")),
		repository.WithRecoveryHook(func(key string, _ error) {
			if m != nil {
				m.StoreRecovered(key)
			}
		}),
	)
	if err := repo.Init(context.Background()); err != nil {
		st.Close()
		return nil, err
	}

	// Initialize services
	sessionService := services.NewSessionService(log, repo, auth.NewArgon2(), registry, cfg.SessionTimeout)
	electionService := services.NewElectionService(log, repo)
	votingService := services.NewVotingService(log, repo, electionService, sessionService)
	statsService := services.NewStatsService(log, repo)

	// Initialize WebSocket hub with DI
	hub := websocket.New(log.With("component", "websocket"), sessionService)
	electionService.SetBroadcaster(hub)
	votingService.SetBroadcaster(hub)
	if m != nil {
		hub.SetGauge(m)
		sessionService.SetRecorder(m)
		votingService.SetRecorder(m)
	}

	h, err := handlers.New(
		sessionService,
		electionService,
		votingService,
		statsService,
		templatesFS,
		handlers.NewStaticServer(staticFS),
		hub,
		log,
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}
	h.Metrics = m
	h.Health = repo

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:      cfg,
		log:      log,
		handlers: h,
		repo:     repo,
		sessions: sessionService,
		metrics:  m,
		hub:      hub,
		cancel:   cancel,
	}

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.sweepSessions(ctx)
	}()

	return a, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Close stops background workers and closes the store. It is safe to
// call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.cancel()
		a.wg.Wait()
		a.closeErr = a.repo.Close()
	})
	return a.closeErr
}

// sweepSessions deletes expired sessions every SweepInterval
func (a *App) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.sessions.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn("Session sweep failed", "error", err)
			}
		}
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Address(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	baseURL := a.cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s%s", getPreferredIP(realNetworkProvider{}), a.cfg.Address())
	}
	a.log.Info("Server starting", "url", baseURL, "store", a.cfg.Store)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IP address for LAN access, so voters on
// other devices can reach the demo. Private ranges win; localhost is the
// fallback.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		ipStr := ip.String()
		if strings.HasPrefix(ipStr, "192.168.") ||
			strings.HasPrefix(ipStr, "10.") ||
			isPrivate172(ip) {
			return ipStr
		}
	}

	if len(candidates) > 0 {
		return candidates[0].String()
	}
	return "localhost"
}

// isPrivate172 checks if IP is in 172.16.0.0/12 range
func isPrivate172(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31
	}
	return false
}

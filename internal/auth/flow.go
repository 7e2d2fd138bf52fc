package auth

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/abrezinsky/votosafe/internal/errors"
	"github.com/abrezinsky/votosafe/internal/models"
)

// State is a step of the interactive login flow
type State int

const (
	StateAnonymous State = iota
	StateCredentialsPending
	StateCodePending
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateCredentialsPending:
		return "credentials_pending"
	case StateCodePending:
		return "code_pending"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

var (
	ErrCodeMismatch = apperrors.Unauthorized("Código de verificación incorrecto").WithCode("CODE_MISMATCH")
	ErrInvalidState = apperrors.InvalidInput("operation not allowed in current login state").WithCode("INVALID_STATE")
)

// Authenticator is the server side of the flow
type Authenticator interface {
	Login(ctx context.Context, dni, pin string) (code string, err error)
	CompleteLogin(ctx context.Context, dni string) (*models.Session, error)
	Logout(ctx context.Context, token string) error
}

// Flow drives one client through login, code verification and the
// session countdown. It is safe for concurrent use.
type Flow struct {
	mu        sync.Mutex
	auth      Authenticator
	timeout   time.Duration
	state     State
	dni       string
	code      string
	session   *models.Session
	remaining int
	onExpire  func()
	now       func() time.Time
}

// NewFlow creates a flow in the anonymous state
func NewFlow(a Authenticator, timeout time.Duration) *Flow {
	if timeout <= 0 {
		timeout = SessionExpiry
	}
	return &Flow{auth: a, timeout: timeout, now: time.Now}
}

// SetClock replaces the time source used to restart the countdown
func (f *Flow) SetClock(now func() time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// OnExpire registers fn to run after the countdown logs the user out
func (f *Flow) OnExpire(fn func()) {
	f.mu.Lock()
	f.onExpire = fn
	f.mu.Unlock()
}

// Begin opens the credentials form
func (f *Flow) Begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAnonymous && f.state != StateCredentialsPending {
		return ErrInvalidState
	}
	f.state = StateCredentialsPending
	return nil
}

// SubmitCredentials checks dni and pin. On success the flow waits for
// the code, which is returned for out-of-band display.
func (f *Flow) SubmitCredentials(ctx context.Context, dni, pin string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAnonymous && f.state != StateCredentialsPending {
		return "", ErrInvalidState
	}
	f.state = StateCredentialsPending

	code, err := f.auth.Login(ctx, dni, pin)
	if err != nil {
		return "", err
	}
	f.dni, f.code = dni, code
	f.state = StateCodePending
	return code, nil
}

// SubmitCode completes the login when code matches
func (f *Flow) SubmitCode(ctx context.Context, code string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateCodePending {
		return nil, ErrInvalidState
	}
	if !VerifyCode(code, f.code) {
		return nil, ErrCodeMismatch
	}

	sess, err := f.auth.CompleteLogin(ctx, f.dni)
	if err != nil {
		return nil, err
	}
	f.session = sess
	f.code = ""
	f.state = StateAuthenticated
	f.remaining = int(f.timeout / time.Second)
	return sess, nil
}

// Cancel abandons a pending login
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateCredentialsPending || f.state == StateCodePending {
		f.reset()
	}
}

// Logout ends the session and returns to anonymous
func (f *Flow) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutLocked(ctx)
}

func (f *Flow) logoutLocked(ctx context.Context) error {
	var err error
	if f.session != nil {
		err = f.auth.Logout(ctx, f.session.Token)
	}
	f.reset()
	return err
}

func (f *Flow) reset() {
	f.state = StateAnonymous
	f.dni, f.code = "", ""
	f.session = nil
	f.remaining = 0
}

// Tick advances the countdown by one second and returns the seconds
// left. When the last second elapses the session is logged out.
func (f *Flow) Tick(ctx context.Context) int {
	f.mu.Lock()
	if f.state != StateAuthenticated {
		f.mu.Unlock()
		return 0
	}
	if f.remaining > 1 {
		f.remaining--
		left := f.remaining
		f.mu.Unlock()
		return left
	}
	f.logoutLocked(ctx)
	fn := f.onExpire
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
	return 0
}

// Run ticks once per second until ctx is done
func (f *Flow) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Tick(ctx)
		}
	}
}

// Refresh replaces the session snapshot and restarts the countdown, as
// after a vote or profile update.
func (f *Flow) Refresh(sess *models.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAuthenticated || sess == nil {
		return
	}
	f.session = sess
	f.remaining = int(sess.Remaining(f.now()) / time.Second)
	if f.remaining <= 0 {
		f.remaining = int(f.timeout / time.Second)
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Session returns the current session, nil unless authenticated
func (f *Flow) Session() *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

// Remaining returns the countdown seconds left
func (f *Flow) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remaining
}

func (f *Flow) IsAuthenticated() bool {
	return f.State() == StateAuthenticated
}

package services

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/errors"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/repository"
	"github.com/abrezinsky/votosafe/pkg/reniec"
)

// SessionServiceRepository defines the repository methods needed by SessionService
type SessionServiceRepository interface {
	repository.UserRepository
	repository.SessionRepository
	repository.SettingsRepository
}

// SessionService handles login, registration and session lifetime
type SessionService struct {
	log        logger.Logger
	repo       SessionServiceRepository
	hasher     auth.PINHasher
	registry   reniec.Client
	challenges *auth.Challenges
	timeout    time.Duration
	now        func() time.Time
	codes      io.Reader
	recorder   Recorder
}

// NewSessionService creates a new SessionService. registry may be nil,
// in which case registration does not autofill profiles.
func NewSessionService(log logger.Logger, repo SessionServiceRepository, hasher auth.PINHasher, registry reniec.Client, timeout time.Duration) *SessionService {
	if timeout <= 0 {
		timeout = auth.SessionExpiry
	}
	return &SessionService{
		log:        log,
		repo:       repo,
		hasher:     hasher,
		registry:   registry,
		challenges: auth.NewChallenges(),
		timeout:    timeout,
		now:        time.Now,
		recorder:   nopRecorder{},
	}
}

// SetClock replaces the time source
func (s *SessionService) SetClock(now func() time.Time) {
	s.now = now
}

// SetCodeSource replaces the randomness used for verification codes
func (s *SessionService) SetCodeSource(r io.Reader) {
	s.codes = r
}

// SetRecorder sets the metrics recorder
func (s *SessionService) SetRecorder(r Recorder) {
	s.recorder = r
}

// Timeout returns the session lifetime
func (s *SessionService) Timeout() time.Duration {
	return s.timeout
}

// Challenges returns the pending verification table
func (s *SessionService) Challenges() *auth.Challenges {
	return s.challenges
}

// Login checks dni and pin and returns a fresh verification code.
// No session exists until CompleteLogin.
func (s *SessionService) Login(ctx context.Context, dni, pin string) (string, error) {
	user, err := s.repo.GetUser(ctx, dni)
	if stderrors.Is(err, repository.ErrNotFound) {
		s.recorder.LoginAttempt("invalid_credentials")
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", translate(err, ErrInvalidCredentials)
	}

	ok, err := s.hasher.Verify(pin, user.PINHash)
	if err != nil {
		s.log.Warn("Unreadable PIN hash", "dni", dni, "error", err)
	}
	if !ok {
		s.recorder.LoginAttempt("invalid_credentials")
		return "", ErrInvalidCredentials
	}

	code, err := auth.GenerateCode(s.codes)
	if err != nil {
		return "", errors.Internal(err)
	}
	s.recorder.LoginAttempt("code_sent")
	s.log.Info("Verification code issued", "dni", dni)
	return code, nil
}

// BeginLogin is Login with the code held server-side under a challenge id
func (s *SessionService) BeginLogin(ctx context.Context, dni, pin string) (auth.Challenge, error) {
	code, err := s.Login(ctx, dni, pin)
	if err != nil {
		return auth.Challenge{}, err
	}
	return s.challenges.Issue(dni, code), nil
}

// VerifyChallenge checks code against a pending challenge and logs the
// user in on a match. A wrong code leaves the challenge pending.
func (s *SessionService) VerifyChallenge(ctx context.Context, challengeID, code string) (*models.Session, error) {
	ch, ok := s.challenges.Verify(challengeID, code)
	if !ok {
		s.recorder.LoginAttempt("code_mismatch")
		return nil, ErrCodeMismatch
	}
	return s.CompleteLogin(ctx, ch.DNI)
}

// VerifyCode compares an entered code with the issued one
func (s *SessionService) VerifyCode(entered, expected string) bool {
	return auth.VerifyCode(entered, expected)
}

// CompleteLogin creates and persists a session for dni
func (s *SessionService) CompleteLogin(ctx context.Context, dni string) (*models.Session, error) {
	user, err := s.repo.GetUser(ctx, dni)
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}

	now := s.now()
	sess := models.Session{
		Token:     auth.GenerateToken(),
		User:      user.Redacted(),
		LoginTime: now,
		ExpiresAt: now.Add(s.timeout),
	}
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return nil, translate(err, ErrUserNotFound)
	}

	s.recorder.LoginAttempt("success")
	s.log.Info("User logged in", "dni", dni, "role", user.Role)
	return &sess, nil
}

// Logout deletes the session for token
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if err := s.repo.DeleteSession(ctx, token); err != nil {
		return translate(err, nil)
	}
	s.log.Debug("Session closed")
	return nil
}

// Current returns the live session for token. An expired session is
// deleted and reported as ErrSessionExpired.
func (s *SessionService) Current(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrSessionExpired
	}
	sess, err := s.repo.GetSession(ctx, token)
	if err != nil {
		return nil, translate(err, ErrSessionExpired)
	}
	if sess.Expired(s.now()) {
		if err := s.repo.DeleteSession(ctx, token); err != nil {
			s.log.Warn("Failed to delete expired session", "error", err)
		}
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// Refresh reloads the session user and restarts the expiry window
func (s *SessionService) Refresh(ctx context.Context, token string) (*models.Session, error) {
	sess, err := s.Current(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUser(ctx, sess.User.DNI)
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	return s.persist(ctx, sess, *user)
}

func (s *SessionService) persist(ctx context.Context, sess *models.Session, user models.User) (*models.Session, error) {
	sess.User = user.Redacted()
	sess.ExpiresAt = s.now().Add(s.timeout)
	if err := s.repo.SaveSession(ctx, *sess); err != nil {
		return nil, translate(err, ErrSessionExpired)
	}
	return sess, nil
}

// Registration is a new account request
type Registration struct {
	DNI             string `json:"dni"`
	PIN             string `json:"pin"`
	ConfirmPIN      string `json:"confirmPin"`
	Nombre          string `json:"nombre"`
	Apellidos       string `json:"apellidos"`
	Correo          string `json:"correo"`
	Celular         string `json:"celular"`
	Direccion       string `json:"direccion"`
	Sexo            string `json:"sexo"`
	FechaNacimiento string `json:"fechaNacimiento"`
}

// Validate checks the registration form rules
func (r *Registration) Validate() error {
	if !isDigits(r.DNI, 8) {
		return ErrInvalidDNI
	}
	if !isDigits(r.PIN, 4) {
		return ErrInvalidPIN
	}
	if r.ConfirmPIN != "" && r.ConfirmPIN != r.PIN {
		return ErrPINMismatch
	}
	if r.Celular != "" && !isDigits(r.Celular, 9) {
		return ErrInvalidCelular
	}
	if r.Sexo != "" && r.Sexo != "M" && r.Sexo != "F" {
		return invalid("INVALID_SEXO", "sexo debe ser M o F")
	}
	if r.FechaNacimiento != "" {
		if _, err := time.Parse(models.DateLayout, r.FechaNacimiento); err != nil {
			return invalid("INVALID_DATE", "fecha de nacimiento inválida: %s", r.FechaNacimiento)
		}
	}
	return nil
}

// Register creates a citizen account. Empty profile fields are filled
// from the civil registry when one is configured.
func (s *SessionService) Register(ctx context.Context, in Registration) (*models.User, error) {
	in.DNI = strings.TrimSpace(in.DNI)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetUser(ctx, in.DNI); err == nil {
		return nil, ErrDuplicateID
	} else if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, translate(err, ErrUserNotFound)
	}

	s.autofill(ctx, &in)

	hash, err := s.hasher.Hash(in.PIN)
	if err != nil {
		return nil, errors.Internal(err)
	}

	user := models.User{
		DNI:              in.DNI,
		PINHash:          hash,
		Nombre:           in.Nombre,
		Apellidos:        in.Apellidos,
		Correo:           in.Correo,
		Celular:          in.Celular,
		Direccion:        in.Direccion,
		Sexo:             in.Sexo,
		FechaNacimiento:  in.FechaNacimiento,
		Role:             models.RoleCitizen,
		VotedElectionIDs: []string{},
		TermsAccepted:    true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateID
		}
		return nil, translate(err, ErrUserNotFound)
	}

	s.log.Info("User registered", "dni", user.DNI)
	out := user.Redacted()
	return &out, nil
}

func (s *SessionService) autofill(ctx context.Context, in *Registration) {
	if s.registry == nil {
		return
	}
	if in.Nombre != "" && in.Apellidos != "" && in.Direccion != "" && in.Sexo != "" && in.FechaNacimiento != "" {
		return
	}
	p, err := s.registry.LookupDNI(ctx, in.DNI)
	if err != nil {
		s.log.Warn("Registry lookup failed", "dni", in.DNI, "error", err)
		return
	}
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&in.Nombre, p.Nombre)
	fill(&in.Apellidos, p.Apellidos)
	fill(&in.Direccion, p.Direccion)
	fill(&in.Sexo, p.Sexo)
	fill(&in.FechaNacimiento, p.FechaNacimiento)
}

// ProfileUpdate carries the fields a user may change. Empty fields are
// left untouched.
type ProfileUpdate struct {
	Nombre          string `json:"nombre"`
	Apellidos       string `json:"apellidos"`
	Correo          string `json:"correo"`
	Celular         string `json:"celular"`
	Direccion       string `json:"direccion"`
	Sexo            string `json:"sexo"`
	FechaNacimiento string `json:"fechaNacimiento"`
	PIN             string `json:"pin"`
	TermsAccepted   *bool  `json:"termsAccepted"`
}

// UpdateUser merges p into the session user and the stored user, and
// restarts the session expiry.
func (s *SessionService) UpdateUser(ctx context.Context, token string, p ProfileUpdate) (*models.Session, error) {
	sess, err := s.Current(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUser(ctx, sess.User.DNI)
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}

	if p.Celular != "" && !isDigits(p.Celular, 9) {
		return nil, ErrInvalidCelular
	}
	if p.Sexo != "" && p.Sexo != "M" && p.Sexo != "F" {
		return nil, invalid("INVALID_SEXO", "sexo debe ser M o F")
	}
	merge := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	merge(&user.Nombre, p.Nombre)
	merge(&user.Apellidos, p.Apellidos)
	merge(&user.Correo, p.Correo)
	merge(&user.Celular, p.Celular)
	merge(&user.Direccion, p.Direccion)
	merge(&user.Sexo, p.Sexo)
	merge(&user.FechaNacimiento, p.FechaNacimiento)
	if p.TermsAccepted != nil {
		user.TermsAccepted = *p.TermsAccepted
	}
	if p.PIN != "" {
		if !isDigits(p.PIN, 4) {
			return nil, ErrInvalidPIN
		}
		hash, err := s.hasher.Hash(p.PIN)
		if err != nil {
			return nil, errors.Internal(err)
		}
		user.PINHash = hash
	}

	if err := s.repo.UpdateUser(ctx, *user); err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	s.log.Info("User updated", "dni", user.DNI)
	return s.persist(ctx, sess, *user)
}

// PurgeExpired deletes every expired session and returns how many
func (s *SessionService) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, translate(err, nil)
	}
	if n > 0 {
		s.recorder.SessionsExpired(n)
		s.log.Debug("Expired sessions purged", "count", n)
	}
	return n, nil
}

// TermsAccepted reports the global terms flag
func (s *SessionService) TermsAccepted(ctx context.Context) (bool, error) {
	ok, err := s.repo.TermsAccepted(ctx)
	return ok, translate(err, nil)
}

// AcceptTerms sets the global terms flag
func (s *SessionService) AcceptTerms(ctx context.Context) error {
	if err := s.repo.SetTermsAccepted(ctx, true); err != nil {
		return translate(err, nil)
	}
	s.log.Info("Terms accepted")
	return nil
}

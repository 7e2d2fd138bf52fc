package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/errors"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/seed"
	"github.com/abrezinsky/votosafe/internal/store"
)

// Store keys. The layout mirrors the browser storage the demo started from.
const (
	keyUsers         = "users"
	keyElections     = "elections"
	keyVotes         = "votes"
	keyTerms         = "termsAccepted"
	keySchemaVersion = "schemaVersion"
	keyLegacySession = "authSession"
	sessionPrefix    = "authSession:"
)

// CurrentSchemaVersion is stamped into the store after migration.
const CurrentSchemaVersion = 2

// RecoveryFunc is called when a stored collection is malformed and has
// been replaced with seed data.
type RecoveryFunc func(key string, err error)

// Repository provides data access methods over a key-value store.
// Collections are JSON arrays, one key each.
type Repository struct {
	store     store.Store
	hasher    auth.PINHasher
	log       logger.Logger
	onRecover RecoveryFunc

	initMu sync.Mutex
	ready  bool
}

// Option configures a Repository
type Option func(*Repository)

// WithHasher sets the PIN hasher used for seed users and legacy plaintext PINs.
func WithHasher(h auth.PINHasher) Option {
	return func(r *Repository) { r.hasher = h }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithRecoveryHook registers fn to be told about seed recoveries.
func WithRecoveryHook(fn RecoveryFunc) Option {
	return func(r *Repository) { r.onRecover = fn }
}

// New creates a Repository over st
func New(st store.Store, opts ...Option) *Repository {
	r := &Repository{store: st}
	for _, opt := range opts {
		opt(r)
	}
	if r.hasher == nil {
		r.hasher = auth.NewArgon2()
	}
	if r.log == nil {
		r.log = logger.Discard()
	}
	return r
}

// Store returns the underlying store
func (r *Repository) Store() store.Store {
	return r.store
}

// Close closes the underlying store
func (r *Repository) Close() error {
	return r.store.Close()
}

// Ping checks if the store is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Init migrates stored data to the current schema and seeds empty
// collections. It runs once; every repository method calls it first.
func (r *Repository) Init(ctx context.Context) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()
	if r.ready {
		return nil
	}

	// Hash seed PINs before opening the transaction; argon2 is slow.
	seedUsers, err := seed.Users(r.hasher)
	if err != nil {
		return errors.Internal(err)
	}

	var report MigrationReport
	err = r.store.Update(ctx, func(tx store.Tx) error {
		rep, err := migrate(tx, r.hasher)
		if err != nil {
			return err
		}
		report = rep
		return seedMissing(tx, seedUsers)
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "initialize store")
	}

	if report.FromVersion != CurrentSchemaVersion {
		r.log.Info("Store migrated",
			"from", report.FromVersion,
			"to", CurrentSchemaVersion,
			"users", report.Users,
			"elections", report.Elections,
			"sessions", report.Sessions)
	}
	r.ready = true
	return nil
}

// seedMissing writes seed collections for keys that have no value yet
func seedMissing(tx store.Tx, seedUsers []models.User) error {
	defaults := map[string]any{
		keyUsers:     seedUsers,
		keyElections: seed.Elections(),
		keyVotes:     []models.Vote{},
	}
	for key, v := range defaults {
		if _, err := tx.Get(key); err == nil {
			continue
		} else if !stderrors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := putJSON(tx, key, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) view(ctx context.Context, fn func(store.Tx) error) error {
	if err := r.Init(ctx); err != nil {
		return err
	}
	return r.store.View(ctx, fn)
}

func (r *Repository) update(ctx context.Context, fn func(store.Tx) error) error {
	if err := r.Init(ctx); err != nil {
		return err
	}
	return r.store.Update(ctx, fn)
}

// recovered logs and reports a collection reset
func (r *Repository) recovered(key string, err error) {
	r.log.Warn("Stored collection malformed, resetting to seed data", "key", key, "error", err)
	if r.onRecover != nil {
		r.onRecover(key, err)
	}
}

func putJSON(tx store.Tx, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return tx.Set(key, b)
}

// getJSON decodes key into v. Missing keys return store.ErrNotFound;
// undecodable values return an errors.ErrCorrupt error.
func getJSON(tx store.Tx, key string, v any) error {
	b, err := tx.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Corrupt(key, err)
	}
	return nil
}

func isCorrupt(err error) bool {
	return errors.KindOf(err) == errors.ErrCorrupt
}

// loadCollection decodes and validates a JSON array collection. Missing
// or malformed collections yield fallback(); malformed ones are reported
// and, in write transactions, rewritten.
func loadCollection[T any](r *Repository, tx store.Tx, key string, writable bool, validate func(T) error, fallback func() ([]T, error)) ([]T, error) {
	var items []T
	err := getJSON(tx, key, &items)
	if err == nil {
		for i, it := range items {
			if verr := validate(it); verr != nil {
				err = errors.Corrupt(key, fmt.Errorf("record %d: %w", i, verr))
				break
			}
		}
		if err == nil {
			return items, nil
		}
	}

	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return fallback()
	case isCorrupt(err):
		r.recovered(key, err)
		items, ferr := fallback()
		if ferr != nil {
			return nil, ferr
		}
		if writable {
			if perr := putJSON(tx, key, items); perr != nil {
				return nil, perr
			}
		}
		return items, nil
	default:
		return nil, err
	}
}

func (r *Repository) seedUsers() ([]models.User, error) {
	return seed.Users(r.hasher)
}

func seedElections() ([]models.Election, error) {
	return seed.Elections(), nil
}

func noVotes() ([]models.Vote, error) {
	return []models.Vote{}, nil
}

func (r *Repository) loadUsers(tx store.Tx, writable bool) ([]models.User, error) {
	return loadCollection(r, tx, keyUsers, writable, validateUser, r.seedUsers)
}

func (r *Repository) loadElections(tx store.Tx, writable bool) ([]models.Election, error) {
	return loadCollection(r, tx, keyElections, writable, validateElection, seedElections)
}

func (r *Repository) loadVotes(tx store.Tx, writable bool) ([]models.Vote, error) {
	return loadCollection(r, tx, keyVotes, writable, validateVote, noVotes)
}

// sessionKey returns the store key for a session token
func sessionKey(token string) string {
	return sessionPrefix + token
}

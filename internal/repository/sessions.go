package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/abrezinsky/votosafe/internal/errors"
	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/store"
)

// ==================== Session Methods ====================

// SaveSession stores s under its token, replacing any previous value.
// The user snapshot is stored without the PIN hash.
func (r *Repository) SaveSession(ctx context.Context, s models.Session) error {
	s.User = s.User.Redacted()
	if err := validateSession(s); err != nil {
		return err
	}
	return r.update(ctx, func(tx store.Tx) error {
		return putJSON(tx, sessionKey(s.Token), s)
	})
}

// GetSession retrieves a session by token. Expiry is the caller's concern.
// A malformed session record is deleted and reported as ErrNotFound.
func (r *Repository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var s models.Session
	err := r.view(ctx, func(tx store.Tx) error {
		if err := getJSON(tx, sessionKey(token), &s); err != nil {
			return err
		}
		if err := validateSession(s); err != nil {
			return errors.Corrupt(sessionKey(token), err)
		}
		return nil
	})
	switch {
	case err == nil:
		return &s, nil
	case stderrors.Is(err, store.ErrNotFound):
		return nil, ErrNotFound
	case isCorrupt(err):
		r.recovered(sessionKey(token), err)
		if derr := r.DeleteSession(ctx, token); derr != nil {
			return nil, derr
		}
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

// DeleteSession removes a session. Deleting a missing token is not an error.
func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	return r.update(ctx, func(tx store.Tx) error {
		return tx.Delete(sessionKey(token))
	})
}

// DeleteExpiredSessions removes sessions that expired at or before now
// and returns how many were removed.
func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	err := r.update(ctx, func(tx store.Tx) error {
		keys, err := tx.Keys(sessionPrefix)
		if err != nil {
			return err
		}
		for _, key := range keys {
			var s models.Session
			err := getJSON(tx, key, &s)
			if err != nil && !isCorrupt(err) {
				return err
			}
			if err == nil && !s.Expired(now) {
				continue
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

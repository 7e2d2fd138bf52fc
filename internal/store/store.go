// Package store is the persistent key-value layer. Values are opaque
// byte slices; the repository package owns their encoding.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/abrezinsky/votosafe/internal/config"
	"github.com/abrezinsky/votosafe/internal/logger"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("key not found")

// Tx is a read or read-write view of the store inside a transaction.
type Tx interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Keys lists keys starting with prefix in ascending order.
	Keys(prefix string) ([]string, error)
}

// Store runs transactions against a backend. Update commits fn's writes
// atomically or not at all. Callers must not start a transaction from
// inside another one.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the backend selected by cfg.Store.
func Open(cfg *config.Config, log logger.Logger) (Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return NewSQLite(cfg.DatabasePath)
	case config.StoreBadger:
		return NewBadger(cfg.DatabasePath, log)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// Reset removes every key. Used by the seed command.
func Reset(ctx context.Context, s Store) error {
	return s.Update(ctx, func(tx Tx) error {
		keys, err := tx.Keys("")
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := tx.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

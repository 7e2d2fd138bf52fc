package testutil

import (
	"context"
	"testing"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/repository"
	"github.com/abrezinsky/votosafe/internal/store"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh SQLite database, migrated and seeded.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	st, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return initRepo(t, st)
}

// NewBadgerTestRepository is NewTestRepository over an in-memory badger store.
func NewBadgerTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	st, err := store.NewBadger("", logger.Discard())
	if err != nil {
		t.Fatalf("failed to create badger store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return initRepo(t, st)
}

func initRepo(t *testing.T, st store.Store) *repository.Repository {
	t.Helper()
	repo := repository.New(st, repository.WithHasher(auth.FastArgon2()))
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("failed to initialize test repository: %v", err)
	}
	return repo
}

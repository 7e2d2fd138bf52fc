package repository

import (
	"context"
	"slices"

	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/store"
)

// ==================== User Methods ====================

// ListUsers returns every stored user
func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.view(ctx, func(tx store.Tx) error {
		var err error
		users, err = r.loadUsers(tx, false)
		return err
	})
	return users, err
}

// GetUser retrieves a user by DNI
func (r *Repository) GetUser(ctx context.Context, dni string) (*models.User, error) {
	var found *models.User
	err := r.view(ctx, func(tx store.Tx) error {
		users, err := r.loadUsers(tx, false)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(users, func(u models.User) bool { return u.DNI == dni })
		if i < 0 {
			return ErrNotFound
		}
		found = &users[i]
		return nil
	})
	return found, err
}

// CreateUser appends a user. Returns ErrDuplicate if the DNI is taken.
func (r *Repository) CreateUser(ctx context.Context, u models.User) error {
	if err := validateUser(u); err != nil {
		return err
	}
	return r.update(ctx, func(tx store.Tx) error {
		users, err := r.loadUsers(tx, true)
		if err != nil {
			return err
		}
		if slices.ContainsFunc(users, func(x models.User) bool { return x.DNI == u.DNI }) {
			return ErrDuplicate
		}
		if u.VotedElectionIDs == nil {
			u.VotedElectionIDs = []string{}
		}
		return putJSON(tx, keyUsers, append(users, u))
	})
}

// UpdateUser replaces the stored user with the same DNI
func (r *Repository) UpdateUser(ctx context.Context, u models.User) error {
	if err := validateUser(u); err != nil {
		return err
	}
	return r.update(ctx, func(tx store.Tx) error {
		users, err := r.loadUsers(tx, true)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(users, func(x models.User) bool { return x.DNI == u.DNI })
		if i < 0 {
			return ErrNotFound
		}
		users[i] = u
		return putJSON(tx, keyUsers, users)
	})
}

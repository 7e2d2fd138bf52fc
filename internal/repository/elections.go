package repository

import (
	"context"
	"slices"

	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/store"
)

// ==================== Election Methods ====================

// ListElections returns stored elections. Estado is never persisted.
func (r *Repository) ListElections(ctx context.Context) ([]models.Election, error) {
	var elections []models.Election
	err := r.view(ctx, func(tx store.Tx) error {
		var err error
		elections, err = r.loadElections(tx, false)
		return err
	})
	return elections, err
}

// GetElection retrieves an election by id
func (r *Repository) GetElection(ctx context.Context, id string) (*models.Election, error) {
	var found *models.Election
	err := r.view(ctx, func(tx store.Tx) error {
		elections, err := r.loadElections(tx, false)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(elections, func(e models.Election) bool { return e.ID == id })
		if i < 0 {
			return ErrNotFound
		}
		found = &elections[i]
		return nil
	})
	return found, err
}

// CreateElection appends an election. Returns ErrDuplicate on id clash.
func (r *Repository) CreateElection(ctx context.Context, e models.Election) error {
	if err := validateElection(e); err != nil {
		return err
	}
	e.Estado = ""
	return r.update(ctx, func(tx store.Tx) error {
		elections, err := r.loadElections(tx, true)
		if err != nil {
			return err
		}
		if slices.ContainsFunc(elections, func(x models.Election) bool { return x.ID == e.ID }) {
			return ErrDuplicate
		}
		return putJSON(tx, keyElections, append(elections, e))
	})
}

// UpdateElection replaces the stored election with the same id
func (r *Repository) UpdateElection(ctx context.Context, e models.Election) error {
	if err := validateElection(e); err != nil {
		return err
	}
	e.Estado = ""
	return r.update(ctx, func(tx store.Tx) error {
		elections, err := r.loadElections(tx, true)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(elections, func(x models.Election) bool { return x.ID == e.ID })
		if i < 0 {
			return ErrNotFound
		}
		elections[i] = e
		return putJSON(tx, keyElections, elections)
	})
}

// DeleteElection removes an election. Votes already cast are kept.
func (r *Repository) DeleteElection(ctx context.Context, id string) error {
	return r.update(ctx, func(tx store.Tx) error {
		elections, err := r.loadElections(tx, true)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(elections, func(x models.Election) bool { return x.ID == id })
		if i < 0 {
			return ErrNotFound
		}
		return putJSON(tx, keyElections, slices.Delete(elections, i, i+1))
	})
}

package repository

import (
	"context"
	"slices"

	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/store"
)

// ==================== Vote Methods ====================

// ListVotes returns the append-only vote log
func (r *Repository) ListVotes(ctx context.Context) ([]models.Vote, error) {
	var votes []models.Vote
	err := r.view(ctx, func(tx store.Tx) error {
		var err error
		votes, err = r.loadVotes(tx, false)
		return err
	})
	return votes, err
}

// GetVote returns the vote a user cast in an election
func (r *Repository) GetVote(ctx context.Context, userID, electionID string) (*models.Vote, error) {
	var found *models.Vote
	err := r.view(ctx, func(tx store.Tx) error {
		votes, err := r.loadVotes(tx, false)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(votes, func(v models.Vote) bool {
			return v.UserID == userID && v.ElectionID == electionID
		})
		if i < 0 {
			return ErrNotFound
		}
		found = &votes[i]
		return nil
	})
	return found, err
}

// RecordVote appends v to the log and v.ElectionID to the voter's list in
// one transaction. Returns ErrAlreadyVoted if either side already records
// the (user, election) pair, and the updated user on success.
func (r *Repository) RecordVote(ctx context.Context, v models.Vote) (*models.User, error) {
	if err := validateVote(v); err != nil {
		return nil, err
	}

	var updated models.User
	err := r.update(ctx, func(tx store.Tx) error {
		users, err := r.loadUsers(tx, true)
		if err != nil {
			return err
		}
		ui := slices.IndexFunc(users, func(u models.User) bool { return u.DNI == v.UserID })
		if ui < 0 {
			return ErrNotFound
		}

		votes, err := r.loadVotes(tx, true)
		if err != nil {
			return err
		}
		dup := slices.ContainsFunc(votes, func(x models.Vote) bool {
			return x.UserID == v.UserID && x.ElectionID == v.ElectionID
		})
		if dup || users[ui].HasVotedIn(v.ElectionID) {
			return ErrAlreadyVoted
		}

		users[ui].VotedElectionIDs = append(slices.Clone(users[ui].VotedElectionIDs), v.ElectionID)
		if err := putJSON(tx, keyVotes, append(votes, v)); err != nil {
			return err
		}
		if err := putJSON(tx, keyUsers, users); err != nil {
			return err
		}
		updated = users[ui]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

package repository

import (
	"context"
	stderrors "errors"
	"strconv"

	"github.com/abrezinsky/votosafe/internal/store"
)

// ==================== Settings Methods ====================

// TermsAccepted reports the global terms flag. It is shared by every
// user of the store, not tracked per user.
func (r *Repository) TermsAccepted(ctx context.Context) (bool, error) {
	var accepted bool
	err := r.view(ctx, func(tx store.Tx) error {
		b, err := tx.Get(keyTerms)
		if stderrors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		accepted, _ = strconv.ParseBool(string(b))
		return nil
	})
	return accepted, err
}

// SetTermsAccepted sets the global terms flag
func (r *Repository) SetTermsAccepted(ctx context.Context, accepted bool) error {
	return r.update(ctx, func(tx store.Tx) error {
		return tx.Set(keyTerms, []byte(strconv.FormatBool(accepted)))
	})
}

// SchemaVersion returns the stamped schema version
func (r *Repository) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := r.view(ctx, func(tx store.Tx) error {
		var err error
		v, err = readSchemaVersion(tx)
		return err
	})
	return v, err
}

package repository

import (
	stderrors "errors"
	"fmt"

	"github.com/abrezinsky/votosafe/internal/models"
)

// Structural checks applied to every record decoded from the store.
// Business rules (PIN length, name length) belong to the services.

func validateUser(u models.User) error {
	if u.DNI == "" {
		return stderrors.New("user without dni")
	}
	if u.PINHash == "" {
		return fmt.Errorf("user %s without pin", u.DNI)
	}
	switch u.Role {
	case models.RoleCitizen, models.RoleAdmin:
	default:
		return fmt.Errorf("user %s has unknown role %q", u.DNI, u.Role)
	}
	return nil
}

func validateElection(e models.Election) error {
	if e.ID == "" {
		return stderrors.New("election without id")
	}
	seen := make(map[string]bool, len(e.Categorias))
	for _, c := range e.Categorias {
		if c.ID == "" {
			return fmt.Errorf("election %s has a category without id", e.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("election %s repeats category %s", e.ID, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

func validateVote(v models.Vote) error {
	if v.UserID == "" || v.ElectionID == "" {
		return stderrors.New("vote without user or election")
	}
	for _, s := range v.Votos {
		if s.Categoria == "" || s.CandidatoID == "" {
			return fmt.Errorf("vote %s/%s has an empty selection", v.UserID, v.ElectionID)
		}
	}
	return nil
}

func validateSession(s models.Session) error {
	if s.Token == "" {
		return stderrors.New("session without token")
	}
	if s.ExpiresAt.IsZero() {
		return stderrors.New("session without expiry")
	}
	// Session snapshots are redacted, so no pin check here.
	if s.User.DNI == "" {
		return stderrors.New("session without user")
	}
	return nil
}

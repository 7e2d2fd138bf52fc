package repository

import (
	stderrors "errors"
	"strconv"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/store"
)

// MigrationReport summarizes what a migration run touched
type MigrationReport struct {
	FromVersion int
	Users       int
	Elections   int
	Sessions    int
}

type migration func(tx store.Tx, h auth.PINHasher, rep *MigrationReport) error

// migrations[i] upgrades a store from version i+1 to i+2
var migrations = []migration{
	migrateV1ToV2,
}

// migrate brings the stored records up to CurrentSchemaVersion and stamps it.
// Every step is idempotent so a crash before the stamp is harmless.
func migrate(tx store.Tx, h auth.PINHasher) (MigrationReport, error) {
	version, err := readSchemaVersion(tx)
	if err != nil {
		return MigrationReport{}, err
	}
	rep := MigrationReport{FromVersion: version}
	if version >= CurrentSchemaVersion {
		return rep, nil
	}

	for v := version; v < CurrentSchemaVersion; v++ {
		if err := migrations[v-1](tx, h, &rep); err != nil {
			return rep, err
		}
	}
	return rep, tx.Set(keySchemaVersion, []byte(strconv.Itoa(CurrentSchemaVersion)))
}

// readSchemaVersion returns the stamped version. An unstamped store with
// data in it predates versioning (1); an empty one is fresh.
func readSchemaVersion(tx store.Tx) (int, error) {
	b, err := tx.Get(keySchemaVersion)
	if err == nil {
		v, perr := strconv.Atoi(string(b))
		if perr != nil || v < 1 {
			return 1, nil
		}
		return v, nil
	}
	if !stderrors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	for _, key := range []string{keyUsers, keyElections, keyVotes, keyLegacySession} {
		if _, err := tx.Get(key); err == nil {
			return 1, nil
		} else if !stderrors.Is(err, store.ErrNotFound) {
			return 0, err
		}
	}
	sessions, err := tx.Keys(sessionPrefix)
	if err != nil {
		return 0, err
	}
	if len(sessions) > 0 {
		return 1, nil
	}
	return CurrentSchemaVersion, nil
}

// migrateV1ToV2 replaces the boolean voted flag with the voted-election
// list, renames the election flags and hashes plaintext PINs.
func migrateV1ToV2(tx store.Tx, h auth.PINHasher, rep *MigrationReport) error {
	var users []map[string]any
	if err := getJSON(tx, keyUsers, &users); err == nil {
		changed := false
		for _, u := range users {
			c, err := upgradeUser(u, h)
			if err != nil {
				return err
			}
			if c {
				rep.Users++
				changed = true
			}
		}
		if changed {
			if err := putJSON(tx, keyUsers, users); err != nil {
				return err
			}
		}
	} else if !stderrors.Is(err, store.ErrNotFound) && !isCorrupt(err) {
		return err
	}

	var elections []map[string]any
	if err := getJSON(tx, keyElections, &elections); err == nil {
		changed := false
		for _, e := range elections {
			if upgradeElection(e) {
				rep.Elections++
				changed = true
			}
		}
		if changed {
			if err := putJSON(tx, keyElections, elections); err != nil {
				return err
			}
		}
	} else if !stderrors.Is(err, store.ErrNotFound) && !isCorrupt(err) {
		return err
	}

	// The single browser session has no token and cannot be addressed.
	if err := tx.Delete(keyLegacySession); err != nil {
		return err
	}

	keys, err := tx.Keys(sessionPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		var sess map[string]any
		if err := getJSON(tx, key, &sess); err != nil {
			if isCorrupt(err) {
				if err := tx.Delete(key); err != nil {
					return err
				}
				continue
			}
			return err
		}
		u, ok := sess["user"].(map[string]any)
		if !ok {
			continue
		}
		c, err := upgradeUser(u, nil)
		if err != nil {
			return err
		}
		if c {
			rep.Sessions++
			if err := putJSON(tx, key, sess); err != nil {
				return err
			}
		}
	}
	return nil
}

// upgradeUser rewrites a raw user record in place and reports whether it
// changed. With a nil hasher plaintext PINs are dropped instead of hashed.
func upgradeUser(u map[string]any, h auth.PINHasher) (bool, error) {
	changed := false

	if _, ok := u["hasVoted"].(bool); ok {
		delete(u, "hasVoted")
		u["votedElectionIds"] = []any{}
		changed = true
	}
	if v, ok := u["votedIn"]; ok {
		if _, has := u["votedElectionIds"]; !has {
			if ids, ok := v.([]any); ok {
				u["votedElectionIds"] = ids
			}
		}
		delete(u, "votedIn")
		changed = true
	}
	if ids, ok := u["votedElectionIds"]; !ok || ids == nil {
		u["votedElectionIds"] = []any{}
		changed = true
	}
	if u["role"] == "ciudadano" {
		u["role"] = "citizen"
		changed = true
	}
	if pin, ok := u["pin"].(string); ok {
		if hash, _ := u["pinHash"].(string); hash == "" && h != nil {
			if auth.IsHashed(pin) {
				u["pinHash"] = pin
			} else {
				hashed, err := h.Hash(pin)
				if err != nil {
					return false, err
				}
				u["pinHash"] = hashed
			}
		}
		delete(u, "pin")
		changed = true
	}
	return changed, nil
}

// upgradeElection rewrites a raw election record in place
func upgradeElection(e map[string]any) bool {
	changed := false
	if v, ok := e["permiteVotoNulo"].(bool); ok {
		if _, has := e["allowNullVote"]; !has {
			e["allowNullVote"] = v
		}
		delete(e, "permiteVotoNulo")
		changed = true
	}
	if v, ok := e["permiteVotoIncompleto"].(bool); ok {
		if _, has := e["requireAllCategories"]; !has {
			e["requireAllCategories"] = !v
		}
		delete(e, "permiteVotoIncompleto")
		changed = true
	}
	// Status is derived from dates on read.
	for _, k := range []string{"estado", "activa"} {
		if _, ok := e[k]; ok {
			delete(e, k)
			changed = true
		}
	}
	return changed
}

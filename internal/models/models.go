package models

import (
	"slices"
	"time"
)

// Role is a user's authorization level
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
)

// User represents a registered voter or administrator, keyed by DNI
type User struct {
	DNI              string   `json:"dni"`
	PINHash          string   `json:"pinHash,omitempty"`
	Nombre           string   `json:"nombre"`
	Apellidos        string   `json:"apellidos"`
	Correo           string   `json:"correo"`
	Celular          string   `json:"celular"`
	Direccion        string   `json:"direccion"`
	Sexo             string   `json:"sexo"`            // "M" or "F"
	FechaNacimiento  string   `json:"fechaNacimiento"` // YYYY-MM-DD
	Role             Role     `json:"role"`
	VotedElectionIDs []string `json:"votedElectionIds"`
	TermsAccepted    bool     `json:"termsAccepted"`
}

// HasVotedIn reports whether electionID is in the user's voted list
func (u *User) HasVotedIn(electionID string) bool {
	return slices.Contains(u.VotedElectionIDs, electionID)
}

// Redacted returns a copy safe to hand to clients
func (u User) Redacted() User {
	u.PINHash = ""
	u.VotedElectionIDs = slices.Clone(u.VotedElectionIDs)
	if u.VotedElectionIDs == nil {
		u.VotedElectionIDs = []string{}
	}
	return u
}

// FullName joins nombre and apellidos
func (u *User) FullName() string {
	if u.Apellidos == "" {
		return u.Nombre
	}
	return u.Nombre + " " + u.Apellidos
}

// Candidate is a ballot option within a category
type Candidate struct {
	ID         string   `json:"id"`
	Nombre     string   `json:"nombre"`
	Partido    string   `json:"partido"`
	Simbolo    string   `json:"simbolo"`
	Foto       string   `json:"foto"`
	Propuestas []string `json:"propuestas"`
}

// Category is one race on the ballot (Presidencia, Senado, ...)
type Category struct {
	ID         string      `json:"id"`
	Nombre     string      `json:"nombre"`
	Candidatos []Candidate `json:"candidatos"`
}

// FindCandidate returns the candidate with the given id
func (c *Category) FindCandidate(id string) (Candidate, bool) {
	for _, cand := range c.Candidatos {
		if cand.ID == id {
			return cand, true
		}
	}
	return Candidate{}, false
}

type ElectionType string

const (
	ElectionPresidencial ElectionType = "Presidencial"
	ElectionRegional     ElectionType = "Regional"
	ElectionMunicipal    ElectionType = "Municipal"
	ElectionOtros        ElectionType = "Otros"
)

// Valid reports whether t is one of the known election types
func (t ElectionType) Valid() bool {
	switch t {
	case ElectionPresidencial, ElectionRegional, ElectionMunicipal, ElectionOtros:
		return true
	}
	return false
}

type ElectionStatus string

const (
	StatusPending  ElectionStatus = "pending"
	StatusActive   ElectionStatus = "active"
	StatusFinished ElectionStatus = "finished"
)

// DateLayout is the calendar date format used for election and birth dates
const DateLayout = "2006-01-02"

// Election is a ballot definition. Estado is derived from the dates on
// every read and is never trusted from storage.
type Election struct {
	ID                   string         `json:"id"`
	Nombre               string         `json:"nombre"`
	Tipo                 ElectionType   `json:"tipo"`
	Categorias           []Category     `json:"categorias"`
	FechaInicio          string         `json:"fechaInicio"`
	FechaFin             string         `json:"fechaFin"`
	AllowNullVote        bool           `json:"allowNullVote"`
	RequireAllCategories bool           `json:"requireAllCategories"`
	Estado               ElectionStatus `json:"estado,omitempty"`
}

// Window returns the instant voting opens and the instant it closes.
// A date-only end covers the whole day.
func (e *Election) Window() (start, end time.Time, err error) {
	start, _, err = parseDate(e.FechaInicio)
	if err != nil {
		return
	}
	end, dateOnly, err := parseDate(e.FechaFin)
	if err != nil {
		return
	}
	if dateOnly {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, nil
}

// Status derives the election state at now
func (e *Election) Status(now time.Time) ElectionStatus {
	start, end, err := e.Window()
	if err != nil {
		return StatusPending
	}
	switch {
	case now.Before(start):
		return StatusPending
	case now.After(end):
		return StatusFinished
	default:
		return StatusActive
	}
}

// WithStatus returns a copy with Estado filled in for now
func (e Election) WithStatus(now time.Time) Election {
	e.Estado = e.Status(now)
	return e
}

// FindCategory returns the category with the given id
func (e *Election) FindCategory(id string) (*Category, bool) {
	for i := range e.Categorias {
		if e.Categorias[i].ID == id {
			return &e.Categorias[i], true
		}
	}
	return nil, false
}

func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err = time.Parse(DateLayout, s)
	return t, true, err
}

// Null vote sentinel values
const (
	NullCandidateID = "NULO"
	NullParty       = "Voto Nulo/Blanco"
)

// Selection is one category choice inside a cast vote. Partido is the
// party at submission time and does not follow later candidate edits.
type Selection struct {
	Categoria   string `json:"categoria"`
	CandidatoID string `json:"candidatoId"`
	Partido     string `json:"partido"`
}

// IsNull reports whether this is a null/blank vote
func (s Selection) IsNull() bool {
	return s.CandidatoID == NullCandidateID
}

// Vote is an immutable cast ballot
type Vote struct {
	UserID     string      `json:"userId"`
	ElectionID string      `json:"electionId"`
	Fecha      time.Time   `json:"fecha"`
	Votos      []Selection `json:"votos"`
	Receipt    string      `json:"receipt,omitempty"`
}

// Session is an authenticated user's login
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	LoginTime time.Time `json:"loginTime"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session has passed its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Remaining returns the time left at now, never negative
func (s *Session) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Age bucket labels in display order
var AgeBuckets = []string{"18-30", "31-45", "46-60", "60+"}

// GenderStats counts users by sex
type GenderStats struct {
	M int `json:"M"`
	F int `json:"F"`
}

// Stats is the admin dashboard aggregate
type Stats struct {
	TotalUsers    int            `json:"totalUsers"`
	TotalVotes    int            `json:"totalVotes"`
	Participation float64        `json:"participation"`
	PartyVotes    map[string]int `json:"partyVotes"`
	Gender        GenderStats    `json:"gender"`
	AgeGroups     map[string]int `json:"ageGroups"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/repository"
	"github.com/abrezinsky/votosafe/internal/seed"
)

// ElectionService handles election definitions and ballots
type ElectionService struct {
	log         logger.Logger
	repo        repository.ElectionRepository
	now         func() time.Time
	broadcaster Broadcaster
}

// NewElectionService creates a new ElectionService
func NewElectionService(log logger.Logger, repo repository.ElectionRepository) *ElectionService {
	return &ElectionService{log: log, repo: repo, now: time.Now}
}

// SetClock replaces the time source used for status
func (s *ElectionService) SetClock(now func() time.Time) {
	s.now = now
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *ElectionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// List returns every election with its current status
func (s *ElectionService) List(ctx context.Context) ([]models.Election, error) {
	elections, err := s.repo.ListElections(ctx)
	if err != nil {
		return nil, translate(err, ErrElectionNotFound)
	}
	now := s.now()
	out := make([]models.Election, len(elections))
	for i, e := range elections {
		out[i] = e.WithStatus(now)
	}
	return out, nil
}

// Get returns a single election with its current status
func (s *ElectionService) Get(ctx context.Context, id string) (*models.Election, error) {
	e, err := s.repo.GetElection(ctx, id)
	if err != nil {
		return nil, translate(err, ErrElectionNotFound)
	}
	withStatus := e.WithStatus(s.now())
	return &withStatus, nil
}

// Ballot returns the election with every category holding candidates.
// Categories without their own candidates get the shared demo list.
func (s *ElectionService) Ballot(ctx context.Context, id string) (*models.Election, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return resolveBallot(e), nil
}

func resolveBallot(e *models.Election) *models.Election {
	out := *e
	out.Categorias = make([]models.Category, len(e.Categorias))
	for i, c := range e.Categorias {
		if len(c.Candidatos) == 0 {
			shared := seed.Candidates()
			for j := range shared {
				shared[j].ID = fmt.Sprintf("%s-%s-%s", e.ID, c.ID, shared[j].ID)
			}
			c.Candidatos = shared
		}
		out.Categorias[i] = c
	}
	return &out
}

// ElectionInput is an election as submitted by an administrator
type ElectionInput struct {
	Nombre               string              `json:"nombre"`
	Tipo                 models.ElectionType `json:"tipo"`
	Categorias           []models.Category   `json:"categorias"`
	FechaInicio          string              `json:"fechaInicio"`
	FechaFin             string              `json:"fechaFin"`
	AllowNullVote        bool                `json:"allowNullVote"`
	RequireAllCategories bool                `json:"requireAllCategories"`
}

// Validate checks the election form rules
func (in *ElectionInput) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(in.Nombre)) < 5 {
		return invalid("INVALID_ELECTION", "El nombre debe tener al menos 5 caracteres")
	}
	if !in.Tipo.Valid() {
		return invalid("INVALID_ELECTION", "Tipo de elección inválido: %q", in.Tipo)
	}
	if len(in.Categorias) == 0 {
		return invalid("INVALID_ELECTION", "Debe haber al menos una categoría")
	}
	seen := make(map[string]bool, len(in.Categorias))
	for _, c := range in.Categorias {
		if c.ID != "" {
			if seen[c.ID] {
				return invalid("INVALID_ELECTION", "Categoría repetida: %s", c.ID)
			}
			seen[c.ID] = true
		}
		if utf8.RuneCountInString(strings.TrimSpace(c.Nombre)) < 3 {
			return invalid("INVALID_ELECTION", "El nombre de la categoría debe tener al menos 3 caracteres")
		}
	}
	if in.FechaInicio == "" || in.FechaFin == "" {
		return invalid("INVALID_ELECTION", "Las fechas de inicio y fin son obligatorias")
	}
	probe := models.Election{FechaInicio: in.FechaInicio, FechaFin: in.FechaFin}
	start, end, err := probe.Window()
	if err != nil {
		return invalid("INVALID_ELECTION", "Fecha inválida: %v", err)
	}
	if end.Before(start) {
		return invalid("INVALID_ELECTION", "La fecha de fin no puede ser anterior a la de inicio")
	}
	return nil
}

func (in *ElectionInput) build(id string) models.Election {
	cats := make([]models.Category, len(in.Categorias))
	for i, c := range in.Categorias {
		c.Nombre = strings.TrimSpace(c.Nombre)
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.Candidatos = slices.Clone(c.Candidatos)
		for j := range c.Candidatos {
			if c.Candidatos[j].ID == "" {
				c.Candidatos[j].ID = uuid.NewString()
			}
		}
		cats[i] = c
	}
	return models.Election{
		ID:                   id,
		Nombre:               strings.TrimSpace(in.Nombre),
		Tipo:                 in.Tipo,
		Categorias:           cats,
		FechaInicio:          in.FechaInicio,
		FechaFin:             in.FechaFin,
		AllowNullVote:        in.AllowNullVote,
		RequireAllCategories: in.RequireAllCategories,
	}
}

// Create stores a new election under a generated id
func (s *ElectionService) Create(ctx context.Context, in ElectionInput) (*models.Election, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	e := in.build(uuid.NewString())
	if err := s.repo.CreateElection(ctx, e); err != nil {
		return nil, s.writeErr(err)
	}
	s.log.Info("Election created", "id", e.ID, "nombre", e.Nombre)
	s.broadcast()
	out := e.WithStatus(s.now())
	return &out, nil
}

// Update replaces the election with id
func (s *ElectionService) Update(ctx context.Context, id string, in ElectionInput) (*models.Election, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	e := in.build(id)
	if err := s.repo.UpdateElection(ctx, e); err != nil {
		return nil, s.writeErr(err)
	}
	s.log.Info("Election updated", "id", id)
	s.broadcast()
	out := e.WithStatus(s.now())
	return &out, nil
}

// Delete removes the election with id. Votes already cast are kept.
func (s *ElectionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteElection(ctx, id); err != nil {
		return translate(err, ErrElectionNotFound)
	}
	s.log.Info("Election deleted", "id", id)
	s.broadcast()
	return nil
}

func (s *ElectionService) writeErr(err error) error {
	if stderrors.Is(err, repository.ErrDuplicate) {
		return invalid("DUPLICATE_ELECTION", "La elección ya existe")
	}
	return translate(err, ErrElectionNotFound)
}

func (s *ElectionService) broadcast() {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastElectionsChanged()
	}
}

// Package seed holds the built-in demo data used to populate an empty store.
package seed

import (
	"fmt"
	"slices"

	"github.com/abrezinsky/votosafe/internal/models"
)

// Hasher turns a plaintext PIN into its stored form
type Hasher interface {
	Hash(pin string) (string, error)
}

type seedUser struct {
	models.User
	pin string
}

var users = []seedUser{
	{
		pin: "1234",
		User: models.User{
			DNI:             "12345678",
			Nombre:          "Juan Carlos",
			Apellidos:       "Pérez García",
			Correo:          "juan.perez@email.com",
			Celular:         "987654321",
			Direccion:       "Av. La Marina 2000, San Miguel",
			Sexo:            "M",
			FechaNacimiento: "1985-05-15",
			Role:            models.RoleCitizen,
			TermsAccepted:   true,
		},
	},
	{
		pin: "4321",
		User: models.User{
			DNI:             "87654321",
			Nombre:          "María Elena",
			Apellidos:       "Torres Ramírez",
			Correo:          "maria.torres@email.com",
			Celular:         "976543210",
			Direccion:       "Jr. Junín 450, Miraflores",
			Sexo:            "F",
			FechaNacimiento: "1990-08-22",
			Role:            models.RoleAdmin,
			TermsAccepted:   true,
		},
	},
}

// Users returns the two built-in accounts with PINs hashed by h.
func Users(h Hasher) ([]models.User, error) {
	out := make([]models.User, 0, len(users))
	for _, su := range users {
		u := su.User
		hash, err := h.Hash(su.pin)
		if err != nil {
			return nil, fmt.Errorf("hash pin for %s: %w", u.DNI, err)
		}
		u.PINHash = hash
		u.VotedElectionIDs = []string{}
		out = append(out, u)
	}
	return out, nil
}

// Candidates returns the shared demo candidates.
func Candidates() []models.Candidate {
	return []models.Candidate{
		{
			ID:         "c1",
			Nombre:     "Alberto Sánchez",
			Partido:    "Partido Democrático",
			Foto:       "https://images.unsplash.com/photo-1560250097-0b93528c311a?w=400",
			Simbolo:    "🦅",
			Propuestas: []string{"Educación gratuita", "Salud universal", "Trabajo digno"},
		},
		{
			ID:         "c2",
			Nombre:     "Carmen López",
			Partido:    "Alianza Nacional",
			Foto:       "https://images.unsplash.com/photo-1573496359142-b8d87734a5a2?w=400",
			Simbolo:    "🌟",
			Propuestas: []string{"Inversión en infraestructura", "Seguridad ciudadana", "Desarrollo rural"},
		},
	}
}

// candidatesWithSuffix copies Candidates with suffix appended to every id
func candidatesWithSuffix(suffix string) []models.Candidate {
	cs := Candidates()
	for i := range cs {
		cs[i].ID += suffix
		cs[i].Propuestas = slices.Clone(cs[i].Propuestas)
	}
	return cs
}

// Election returns the sample general election e1.
func Election() models.Election {
	return models.Election{
		ID:                   "e1",
		Tipo:                 models.ElectionPresidencial,
		Nombre:               "Elecciones Generales 2025",
		FechaInicio:          "2025-04-10",
		FechaFin:             "2025-04-10",
		AllowNullVote:        true,
		RequireAllCategories: true,
		Categorias: []models.Category{
			{ID: "cat1", Nombre: "Presidencia", Candidatos: candidatesWithSuffix("")},
			{ID: "cat2", Nombre: "Senado Nacional", Candidatos: candidatesWithSuffix("-sn")},
			{ID: "cat3", Nombre: "Senado Regional", Candidatos: candidatesWithSuffix("-sr")},
			{ID: "cat4", Nombre: "Diputado", Candidatos: candidatesWithSuffix("-d")},
			{ID: "cat5", Nombre: "Parlamento Andino", Candidatos: candidatesWithSuffix("-pa")},
		},
	}
}

// Elections returns the seeded election list.
func Elections() []models.Election {
	return []models.Election{Election()}
}

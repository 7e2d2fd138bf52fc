package reniec

import (
	"context"
	"fmt"
	"hash/fnv"
)

var (
	nombres           = []string{"Juan", "María", "Carlos", "Ana", "Luis", "Rosa", "Pedro", "Carmen"}
	apellidosPaternos = []string{"García", "López", "Martínez", "Rodríguez", "Pérez", "González"}
	apellidosMaternos = []string{"Silva", "Torres", "Flores", "Ramírez", "Castro", "Vargas"}
)

const mockAddress = "Av. Principal 123, Lima"

// MockClient answers every lookup with a record derived from the DNI.
// The same DNI always yields the same person.
type MockClient struct {
	records   map[string]Person
	lookupErr error
	calls     int
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithPerson returns p for its DNI instead of a generated record
func WithPerson(p Person) MockOption {
	return func(m *MockClient) {
		m.records[p.DNI] = p
	}
}

// WithLookupError sets an error to return from LookupDNI
func WithLookupError(err error) MockOption {
	return func(m *MockClient) {
		m.lookupErr = err
	}
}

// NewMockClient creates a new mock registry client
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{records: make(map[string]Person)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LookupDNI returns the configured or generated record
func (m *MockClient) LookupDNI(ctx context.Context, dni string) (*Person, error) {
	m.calls++
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p, ok := m.records[dni]; ok {
		return &p, nil
	}
	p := Generate(dni)
	return &p, nil
}

// Calls returns how many lookups were made
func (m *MockClient) Calls() int {
	return m.calls
}

// Generate builds a plausible registry record from dni
func Generate(dni string) Person {
	h := fnv.New64a()
	h.Write([]byte(dni))
	seed := h.Sum64()

	pick := func(n int) int {
		v := int(seed % uint64(n))
		seed /= uint64(n)
		return v
	}

	nombre := nombres[pick(len(nombres))]
	paterno := apellidosPaternos[pick(len(apellidosPaternos))]
	materno := apellidosMaternos[pick(len(apellidosMaternos))]
	sexo := "F"
	if pick(2) == 1 {
		sexo = "M"
	}
	year := 1970 + pick(35)
	month := 1 + pick(12)
	day := 1 + pick(28)

	return Person{
		DNI:             dni,
		Nombre:          nombre,
		Apellidos:       paterno + " " + materno,
		Direccion:       mockAddress,
		Sexo:            sexo,
		FechaNacimiento: fmt.Sprintf("%04d-%02d-%02d", year, month, day),
	}
}

var _ Client = (*MockClient)(nil)

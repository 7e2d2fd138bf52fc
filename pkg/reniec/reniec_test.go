package reniec

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/abrezinsky/votosafe/internal/logger"
)

func TestHTTPClient_LookupDNI_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/dni/12345678" {
			t.Errorf("expected path /dni/12345678, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Person{
			Nombre:    "Juan Carlos",
			Apellidos: "Pérez García",
			Sexo:      "M",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/", logger.Discard())
	p, err := client.LookupDNI(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Nombre != "Juan Carlos" || p.Apellidos != "Pérez García" {
		t.Errorf("unexpected person %+v", p)
	}
	if p.DNI != "12345678" {
		t.Errorf("expected DNI filled from request, got %q", p.DNI)
	}
	if client.BaseURL() != server.URL {
		t.Errorf("expected trailing slash trimmed, got %s", client.BaseURL())
	}
}

func TestHTTPClient_LookupDNI_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, logger.Discard()).LookupDNI(context.Background(), "00000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTPClient_LookupDNI_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, logger.Discard()).LookupDNI(context.Background(), "12345678")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("expected status 500 error, got %v", err)
	}
}

func TestHTTPClient_LookupDNI_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, logger.Discard()).LookupDNI(context.Background(), "12345678")
	if err == nil || !strings.Contains(err.Error(), "failed to parse response") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestHTTPClient_LookupDNI_ConnectionError(t *testing.T) {
	client := NewHTTPClientWithHTTPClient("http://127.0.0.1:1", &http.Client{Timeout: time.Second}, logger.Discard())
	_, err := client.LookupDNI(context.Background(), "12345678")
	if err == nil || !strings.Contains(err.Error(), "failed to connect") {
		t.Errorf("expected connection error, got %v", err)
	}
}

func TestHTTPClient_LookupDNI_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Person{})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHTTPClient(server.URL, logger.Discard()).LookupDNI(ctx, "12345678"); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate("12345678")
	b := Generate("12345678")
	if a != b {
		t.Errorf("expected same record for same DNI, got %+v and %+v", a, b)
	}

	if !slices.Contains(nombres, a.Nombre) {
		t.Errorf("unexpected nombre %q", a.Nombre)
	}
	parts := strings.Split(a.Apellidos, " ")
	if len(parts) != 2 || !slices.Contains(apellidosPaternos, parts[0]) || !slices.Contains(apellidosMaternos, parts[1]) {
		t.Errorf("unexpected apellidos %q", a.Apellidos)
	}
	if a.Direccion != mockAddress {
		t.Errorf("unexpected direccion %q", a.Direccion)
	}
	if a.Sexo != "M" && a.Sexo != "F" {
		t.Errorf("unexpected sexo %q", a.Sexo)
	}
	birth, err := time.Parse("2006-01-02", a.FechaNacimiento)
	if err != nil {
		t.Fatalf("bad birth date %q: %v", a.FechaNacimiento, err)
	}
	if birth.Year() < 1970 || birth.Year() > 2004 || birth.Day() > 28 {
		t.Errorf("birth date out of range: %s", a.FechaNacimiento)
	}
}

func TestGenerate_Varies(t *testing.T) {
	seen := make(map[string]bool)
	for _, dni := range []string{"11111111", "22222222", "33333333", "44444444", "55555555", "66666666"} {
		seen[Generate(dni).FechaNacimiento] = true
	}
	if len(seen) < 2 {
		t.Error("expected different DNIs to produce different records")
	}
}

func TestMockClient_Options(t *testing.T) {
	custom := Person{DNI: "12345678", Nombre: "Custom"}
	m := NewMockClient(WithPerson(custom))

	p, err := m.LookupDNI(context.Background(), "12345678")
	if err != nil || p.Nombre != "Custom" {
		t.Errorf("expected configured person, got %+v (%v)", p, err)
	}
	p, _ = m.LookupDNI(context.Background(), "99999999")
	if p.DNI != "99999999" || p.Nombre == "" {
		t.Errorf("expected generated person, got %+v", p)
	}
	if m.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", m.Calls())
	}

	boom := errors.New("registry down")
	m = NewMockClient(WithLookupError(boom))
	if _, err := m.LookupDNI(context.Background(), "12345678"); !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
}

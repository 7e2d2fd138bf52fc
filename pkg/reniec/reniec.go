// Package reniec provides a client for looking up citizens in the civil registry.
package reniec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abrezinsky/votosafe/internal/logger"
)

// ErrNotFound is returned when the registry has no record for a DNI
var ErrNotFound = errors.New("dni not found in registry")

// Person is the public registry record for a DNI
type Person struct {
	DNI             string `json:"dni"`
	Nombre          string `json:"nombre"`
	Apellidos       string `json:"apellidos"`
	Direccion       string `json:"direccion"`
	Sexo            string `json:"sexo"`
	FechaNacimiento string `json:"fechaNacimiento"`
}

// Client defines the interface for registry lookups
type Client interface {
	// LookupDNI returns the registry record for dni
	LookupDNI(ctx context.Context, dni string) (*Person, error)
}

// HTTPClient is a real HTTP client for a registry service
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

// NewHTTPClient creates a new registry HTTP client
func NewHTTPClient(baseURL string, log logger.Logger) *HTTPClient {
	return NewHTTPClientWithHTTPClient(baseURL, &http.Client{Timeout: 10 * time.Second}, log)
}

// NewHTTPClientWithHTTPClient creates a new registry client with a custom http.Client
func NewHTTPClientWithHTTPClient(baseURL string, httpClient *http.Client, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

// BaseURL returns the configured registry base URL
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// LookupDNI fetches GET {base}/dni/{dni}
func (c *HTTPClient) LookupDNI(ctx context.Context, dni string) (*Person, error) {
	apiURL := fmt.Sprintf("%s/dni/%s", c.baseURL, url.PathEscape(dni))
	c.log.Debug("Registry request", "method", "GET", "url", apiURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to registry: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("Registry response", "status", resp.StatusCode, "bytes", len(body))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("registry returned status %d: %s", resp.StatusCode, string(body))
	}

	var p Person
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if p.DNI == "" {
		p.DNI = dni
	}
	return &p, nil
}

var _ Client = (*HTTPClient)(nil)

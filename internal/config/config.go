package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	StoreSQLite = "sqlite"
	StoreBadger = "badger"

	DefaultSessionTimeout = 5 * time.Minute
	envPrefix             = "votosafe"
)

// Config holds runtime settings. Precedence, lowest first: defaults,
// YAML file, .env file, process environment, command-line flags.
type Config struct {
	Port           int           `yaml:"port"           envconfig:"PORT"`
	BaseURL        string        `yaml:"baseURL"        split_words:"true"`
	Store          string        `yaml:"store"          envconfig:"STORE"`
	DatabasePath   string        `yaml:"databasePath"   split_words:"true"`
	LogLevel       string        `yaml:"logLevel"       split_words:"true"`
	LogFormat      string        `yaml:"logFormat"      split_words:"true"`
	HTTPLogging    bool          `yaml:"httpLogging"    envconfig:"HTTP_LOGGING"`
	SessionTimeout time.Duration `yaml:"sessionTimeout" split_words:"true"`
	SweepInterval  time.Duration `yaml:"sweepInterval"  split_words:"true"`
	RegistryURL    string        `yaml:"registryURL"    envconfig:"REGISTRY_URL"`
	Metrics        bool          `yaml:"metrics"        envconfig:"METRICS"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:           8000,
		Store:          StoreSQLite,
		DatabasePath:   "votosafe.db",
		LogLevel:       "info",
		LogFormat:      "text",
		SessionTimeout: DefaultSessionTimeout,
		SweepInterval:  time.Minute,
		Metrics:        true,
	}
}

// Load builds a Config from defaults, an optional YAML file and the
// environment. A missing .env file is not an error.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreBadger:
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreSQLite, StoreBadger)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SessionTimeout <= 0 {
		return errors.New("session timeout must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	return nil
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// PublicURL returns BaseURL or a localhost URL derived from Port.
func (c *Config) PublicURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return fmt.Sprintf("http://localhost:%d", c.Port)
}

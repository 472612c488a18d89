// Package config loads and validates the houndsync YAML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// ServerURL is the base URL of the Hound server (e.g. "https://api.hound.example").
	ServerURL string `yaml:"server_url"`

	// APIToken is the bearer token used to authenticate with the server.
	APIToken string `yaml:"api_token"`

	// DogIDs lists the dogs whose reminders are synchronized and scheduled.
	DogIDs []int64 `yaml:"dog_ids"`

	// PollInterval controls how often the server is polled for reminder
	// changes. Minimum 10s, maximum 15m. Defaults to 60s if unset.
	PollInterval time.Duration `yaml:"poll_interval"`

	// DBPath overrides the state database location. Defaults to
	// ~/.local/share/houndsync/state.db.
	DBPath string `yaml:"db_path,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "houndsync".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request. Equivalent to the OTEL_EXPORTER_OTLP_HEADERS environment
	// variable. Use this for authentication tokens, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/houndsync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "houndsync", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required fields are present and well-formed.
func (c *Config) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	u, err := url.ParseRequestURI(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("server_url %q must be a valid http or https URL", c.ServerURL)
	}

	if c.APIToken == "" {
		return fmt.Errorf("api_token is required")
	}

	if len(c.DogIDs) == 0 {
		return fmt.Errorf("dog_ids must contain at least one entry")
	}
	seen := make(map[int64]bool, len(c.DogIDs))
	for _, id := range c.DogIDs {
		if id <= 0 {
			return fmt.Errorf("dog_ids contains invalid id %d", id)
		}
		if seen[id] {
			return fmt.Errorf("dog_ids contains duplicate id %d", id)
		}
		seen[id] = true
	}

	if c.PollInterval == 0 {
		c.PollInterval = 60 * time.Second
	}
	if c.PollInterval < 10*time.Second {
		return fmt.Errorf("poll_interval %v is too short (minimum 10s)", c.PollInterval)
	}
	if c.PollInterval > 15*time.Minute {
		return fmt.Errorf("poll_interval %v is too long (maximum 15m)", c.PollInterval)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

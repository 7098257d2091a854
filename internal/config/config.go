// Package config loads and validates the teesync YAML configuration.
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
	// APIURL is the base URL of the Three Putt backend (e.g. "https://api.threeputt.golf").
	APIURL string `yaml:"api_url"`

	// PollInterval controls how often the backend is polled for changes.
	// Minimum 30s, maximum 1h. Defaults to 1m if unset.
	PollInterval time.Duration `yaml:"poll_interval"`

	// CalendarName selects the device calendar events are written to.
	// Empty means the system default calendar.
	CalendarName string `yaml:"calendar_name"`

	// EventDuration is the length of created calendar events. Defaults to
	// 4h (an eighteen-hole round) if unset.
	EventDuration time.Duration `yaml:"event_duration"`

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

	// ServiceName overrides the OTel service.name attribute. Defaults to "teesync".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request. Equivalent to the OTEL_EXPORTER_OTLP_HEADERS environment
	// variable. Use this for authentication tokens, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/teesync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "teesync", "config.yaml"), nil
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
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	u, err := url.ParseRequestURI(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api_url %q must be a valid http or https URL", c.APIURL)
	}

	if c.PollInterval == 0 {
		c.PollInterval = time.Minute
	}
	if c.PollInterval < 30*time.Second {
		return fmt.Errorf("poll_interval %v is too short (minimum 30s)", c.PollInterval)
	}
	if c.PollInterval > time.Hour {
		return fmt.Errorf("poll_interval %v is too long (maximum 1h)", c.PollInterval)
	}

	if c.EventDuration == 0 {
		c.EventDuration = 4 * time.Hour
	}
	if c.EventDuration < 30*time.Minute {
		return fmt.Errorf("event_duration %v is too short (minimum 30m)", c.EventDuration)
	}
	if c.EventDuration > 12*time.Hour {
		return fmt.Errorf("event_duration %v is too long (maximum 12h)", c.EventDuration)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("creating temp config: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
api_url: "https://api.threeputt.golf"
poll_interval: 45s
calendar_name: "Golf"
event_duration: 5h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "https://api.threeputt.golf" {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, "https://api.threeputt.golf")
	}
	if cfg.PollInterval != 45*time.Second {
		t.Errorf("PollInterval = %v, want 45s", cfg.PollInterval)
	}
	if cfg.CalendarName != "Golf" {
		t.Errorf("CalendarName = %q, want Golf", cfg.CalendarName)
	}
	if cfg.EventDuration != 5*time.Hour {
		t.Errorf("EventDuration = %v, want 5h", cfg.EventDuration)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
api_url: "https://api.threeputt.golf"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PollInterval != time.Minute {
		t.Errorf("PollInterval = %v, want default 1m", cfg.PollInterval)
	}
	if cfg.EventDuration != 4*time.Hour {
		t.Errorf("EventDuration = %v, want default 4h", cfg.EventDuration)
	}
	if cfg.CalendarName != "" {
		t.Errorf("CalendarName = %q, want empty (system default)", cfg.CalendarName)
	}
}

func TestLoad_MissingAPIURL(t *testing.T) {
	path := writeConfig(t, `
poll_interval: 1m
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing api_url, got nil")
	}
}

func TestLoad_InvalidAPIURL(t *testing.T) {
	path := writeConfig(t, `
api_url: "not-a-url"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid api_url, got nil")
	}
}

func TestLoad_PollIntervalTooShort(t *testing.T) {
	path := writeConfig(t, `
api_url: "https://api.threeputt.golf"
poll_interval: 5s
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for poll_interval < 30s, got nil")
	}
}

func TestLoad_PollIntervalTooLong(t *testing.T) {
	path := writeConfig(t, `
api_url: "https://api.threeputt.golf"
poll_interval: 2h
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for poll_interval > 1h, got nil")
	}
}

func TestLoad_EventDurationTooShort(t *testing.T) {
	path := writeConfig(t, `
api_url: "https://api.threeputt.golf"
event_duration: 5m
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for event_duration < 30m, got nil")
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
api_url: "https://api.threeputt.golf"
unknown_field: oops
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown config key, got nil")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path == "" {
		t.Error("DefaultPath returned empty string")
	}
}

func TestLoad_TelemetryValid(t *testing.T) {
	path := writeConfig(t, `
api_url: "https://api.threeputt.golf"
telemetry:
  otlp_endpoint: "localhost:4317"
  insecure: true
  service_name: "my-teesync"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry == nil {
		t.Fatal("expected Telemetry to be non-nil")
	}
	if cfg.Telemetry.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.Telemetry.OTLPEndpoint, "localhost:4317")
	}
	if !cfg.Telemetry.Insecure {
		t.Error("Insecure = false, want true")
	}
	if cfg.Telemetry.ServiceName != "my-teesync" {
		t.Errorf("ServiceName = %q, want %q", cfg.Telemetry.ServiceName, "my-teesync")
	}
}

func TestLoad_TelemetryOmitted(t *testing.T) {
	path := writeConfig(t, `
api_url: "https://api.threeputt.golf"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry != nil {
		t.Error("expected Telemetry to be nil when block is omitted")
	}
}

func TestLoad_TelemetryMissingEndpoint(t *testing.T) {
	path := writeConfig(t, `
api_url: "https://api.threeputt.golf"
telemetry:
  insecure: true
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for telemetry missing otlp_endpoint, got nil")
	}
}

func TestLoad_TelemetryHeaders(t *testing.T) {
	path := writeConfig(t, `
api_url: "https://api.threeputt.golf"
telemetry:
  otlp_endpoint: "otelcol.example.com:4317"
  headers:
    Authorization: "Bearer secret"
    x-dataset: "test"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Telemetry.Headers) != 2 {
		t.Fatalf("Headers len = %d, want 2", len(cfg.Telemetry.Headers))
	}
	if cfg.Telemetry.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Authorization header = %q, want %q", cfg.Telemetry.Headers["Authorization"], "Bearer secret")
	}
	if cfg.Telemetry.Headers["x-dataset"] != "test" {
		t.Errorf("x-dataset header = %q, want %q", cfg.Telemetry.Headers["x-dataset"], "test")
	}
}

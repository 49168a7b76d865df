package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			APIKey: "test-api-key",
		},
		Backend: BackendConfig{
			BaseURL: "https://backend.example.org",
		},
		Tracker: TrackerConfig{
			PollInterval:     10 * time.Second,
			MaxFetchFailures: 5,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing server API key", func(c *Config) { c.Server.APIKey = "" }, true},
		{"missing backend base URL", func(c *Config) { c.Backend.BaseURL = "" }, true},
		{"zero poll interval", func(c *Config) { c.Tracker.PollInterval = 0 }, true},
		{"negative poll interval", func(c *Config) { c.Tracker.PollInterval = -time.Second }, true},
		{"zero failure budget", func(c *Config) { c.Tracker.MaxFetchFailures = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() should pass, got %v", err)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 9613}
	if got := cfg.Address(); got != "127.0.0.1:9613" {
		t.Errorf("Address() = %q, want %q", got, "127.0.0.1:9613")
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  api_key: "yaml-api-key"
backend:
  base_url: "https://backend.example.org"
tracker:
  poll_interval: 15s
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	// envconfig applies tag defaults after the YAML pass, so only values
	// without a default tag can be asserted straight from the file.
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIKey != "yaml-api-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Server.APIKey, "yaml-api-key")
	}
	if cfg.Backend.BaseURL != "https://backend.example.org" {
		t.Errorf("BaseURL = %q, want %q", cfg.Backend.BaseURL, "https://backend.example.org")
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  api_key: "yaml-api-key"
backend:
  base_url: "https://yaml.example.org"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("API_KEY", "env-api-key")
	t.Setenv("BACKEND_BASE_URL", "https://env.example.org")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIKey != "env-api-key" {
		t.Errorf("APIKey should be from env, got %q", cfg.Server.APIKey)
	}
	if cfg.Backend.BaseURL != "https://env.example.org" {
		t.Errorf("BaseURL should be from env, got %q", cfg.Backend.BaseURL)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("API_KEY", "test-api-key")
	t.Setenv("BACKEND_BASE_URL", "https://backend.example.org")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIKey != "test-api-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Server.APIKey, "test-api-key")
	}
	if cfg.Tracker.PollInterval != 10*time.Second {
		t.Errorf("PollInterval default = %v, want %v", cfg.Tracker.PollInterval, 10*time.Second)
	}
	if cfg.Tracker.MaxFetchFailures != 5 {
		t.Errorf("MaxFetchFailures default = %d, want 5", cfg.Tracker.MaxFetchFailures)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
server:
  host: "localhost
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load should fail for invalid YAML")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load should fail for nonexistent file")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("API_KEY", "")
	t.Setenv("BACKEND_BASE_URL", "")

	if _, err := Load(""); err == nil {
		t.Error("Load should fail validation without required values")
	}
}

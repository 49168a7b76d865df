package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Tracker TrackerConfig `yaml:"tracker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9613"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
}

// BackendConfig holds the connection settings for the backend that owns the
// exportable objects.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"BACKEND_BASE_URL"`
	APIKey  string        `yaml:"api_key" envconfig:"BACKEND_API_KEY"`
	Timeout time.Duration `yaml:"timeout" envconfig:"BACKEND_TIMEOUT" default:"30s"`
}

// TrackerConfig holds export tracker configuration. The poll interval and
// failure budget are deliberately configurable; the defaults are
// conservative.
type TrackerConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval" envconfig:"TRACKER_POLL_INTERVAL" default:"10s"`
	MaxFetchFailures int           `yaml:"max_fetch_failures" envconfig:"TRACKER_MAX_FETCH_FAILURES" default:"5"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if c.Tracker.PollInterval <= 0 {
		return fmt.Errorf("TRACKER_POLL_INTERVAL must be positive")
	}
	if c.Tracker.MaxFetchFailures <= 0 {
		return fmt.Errorf("TRACKER_MAX_FETCH_FAILURES must be positive")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort          = 8080
	DefaultRequestsPerMinute = 100
	DefaultRetention         = 24 * time.Hour
	DefaultFeedInterval      = 5 * time.Second
	DefaultAPIKeyHeader      = "X-API-Key"
)

// Config is the top-level configuration parsed from server.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket feed listen on.
	HTTPPort int `yaml:"http_port"`

	// Auth configures API-key authentication for incoming requests.
	Auth AuthConfig `yaml:"auth"`

	// RateLimit configures per-caller request limiting.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Retention is how long activities are kept before eviction.
	Retention time.Duration `yaml:"retention"`

	// FeedInterval controls how often the WebSocket feed broadcasts.
	FeedInterval time.Duration `yaml:"feed_interval"`
}

// AuthConfig configures API-key authentication.
type AuthConfig struct {
	// Header is the HTTP header name the key is expected in.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the expected
	// API key. Empty disables authentication (local development).
	KeyEnv string `yaml:"key_env"`
}

// Key returns the server API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// RateLimitConfig configures the per-caller sliding-window limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the per-identity cap. Zero disables limiting.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Auth: AuthConfig{
				Header: DefaultAPIKeyHeader,
			},
			RateLimit: RateLimitConfig{
				RequestsPerMinute: DefaultRequestsPerMinute,
			},
			Retention:    DefaultRetention,
			FeedInterval: DefaultFeedInterval,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be in 1..65535")
	}
	if s.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("server.rate_limit.requests_per_minute must not be negative")
	}
	if s.Retention <= 0 {
		return fmt.Errorf("server.retention must be positive")
	}
	if s.FeedInterval <= 0 {
		return fmt.Errorf("server.feed_interval must be positive")
	}
	return nil
}

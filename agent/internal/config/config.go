package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval        = 60 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultBacklogPath     = "offline_queue.jsonl"
	DefaultBacklogCapacity = 1000
	DefaultMaxAttempts     = 3
	DefaultRetryDelay      = 5 * time.Second
	DefaultThreshold       = 5
	DefaultAPIKeyHeader    = "X-API-Key"
	DefaultClientType      = "host"
)

// Config is the top-level configuration parsed from agent.yaml.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerURL is the base URL of sentinel-server, e.g. "https://collector:8080".
	ServerURL string `yaml:"server_url"`

	// ClientID uniquely identifies this endpoint. When empty it is derived
	// as "<client_type>-<hostname>" at load time.
	ClientID string `yaml:"client_id"`

	// ClientType describes the endpoint class reported in every snapshot.
	ClientType string `yaml:"client_type"`

	// Interval is the capture-and-report tick period.
	Interval time.Duration `yaml:"interval"`

	// RequestTimeout bounds a single HTTP delivery attempt.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// StatusAddr, when set, exposes a local read-only /status endpoint
	// (e.g. "127.0.0.1:9321"). Empty disables it.
	StatusAddr string `yaml:"status_addr"`

	// Auth configures how the agent authenticates to sentinel-server.
	Auth AuthConfig `yaml:"auth"`

	// Backlog configures the durable offline queue.
	Backlog BacklogConfig `yaml:"backlog"`

	// Retry configures the per-item delivery attempt cycle.
	Retry RetryConfig `yaml:"retry"`

	// Escalation configures the extended cool-down after repeated failed
	// delivery cycles.
	Escalation EscalationConfig `yaml:"escalation"`

	// Collector selects and configures the snapshot collector.
	Collector CollectorConfig `yaml:"collector"`
}

// AuthConfig specifies API-key authentication to the collector.
type AuthConfig struct {
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable that holds the key
	// value. The key itself is never stored in the config file.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// BacklogConfig configures the durable offline queue.
type BacklogConfig struct {
	// Path is the filesystem path of the backlog record file.
	Path string `yaml:"path"`

	// Capacity bounds the number of queued snapshots. When full the oldest
	// entry is evicted.
	Capacity int `yaml:"capacity"`
}

// RetryConfig configures the per-item attempt cycle.
type RetryConfig struct {
	// MaxAttempts is the number of delivery attempts per item per cycle.
	MaxAttempts int `yaml:"max_attempts"`

	// Delay is the fixed sleep between attempts.
	Delay time.Duration `yaml:"delay"`
}

// EscalationConfig configures the extended cool-down that kicks in after
// several consecutive failed delivery cycles.
type EscalationConfig struct {
	// Threshold is the consecutive-failure count that triggers a cool-down.
	Threshold uint `yaml:"threshold"`

	// Cooldown is the extended sleep duration. Defaults to twice the tick
	// interval when unset.
	Cooldown time.Duration `yaml:"cooldown"`
}

// CollectorConfig selects the snapshot collector implementation.
type CollectorConfig struct {
	// Type is one of: host | node.
	Type string `yaml:"type"`

	// Endpoint is the Prometheus exposition endpoint scraped by the node
	// collector, e.g. "http://localhost:9100/metrics".
	Endpoint string `yaml:"endpoint"`

	// Metrics lists the metric family names the node collector folds into
	// the snapshot's system_metrics map. Empty means a node_exporter
	// default set.
	Metrics []string `yaml:"metrics"`
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

	applyDerived(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ClientType:     DefaultClientType,
			Interval:       DefaultInterval,
			RequestTimeout: DefaultRequestTimeout,
			Auth: AuthConfig{
				Header: DefaultAPIKeyHeader,
			},
			Backlog: BacklogConfig{
				Path:     DefaultBacklogPath,
				Capacity: DefaultBacklogCapacity,
			},
			Retry: RetryConfig{
				MaxAttempts: DefaultMaxAttempts,
				Delay:       DefaultRetryDelay,
			},
			Escalation: EscalationConfig{
				Threshold: DefaultThreshold,
			},
		},
	}
}

// applyDerived fills fields whose defaults depend on other fields.
func applyDerived(cfg *Config) {
	a := &cfg.Agent
	if a.ClientID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "unknown"
		}
		host = strings.ReplaceAll(strings.ToLower(host), " ", "-")
		a.ClientID = a.ClientType + "-" + host
	}
	if a.Escalation.Cooldown <= 0 {
		a.Escalation.Cooldown = 2 * a.Interval
	}
	if a.Collector.Type == "" {
		a.Collector.Type = "host"
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerURL == "" {
		return fmt.Errorf("agent.server_url is required")
	}
	if a.Interval <= 0 {
		return fmt.Errorf("agent.interval must be positive")
	}
	if a.RequestTimeout <= 0 {
		return fmt.Errorf("agent.request_timeout must be positive")
	}
	if a.Backlog.Capacity <= 0 {
		return fmt.Errorf("agent.backlog.capacity must be positive")
	}
	if a.Backlog.Path == "" {
		return fmt.Errorf("agent.backlog.path is required")
	}
	if a.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("agent.retry.max_attempts must be positive")
	}
	if a.Retry.Delay < 0 {
		return fmt.Errorf("agent.retry.delay must not be negative")
	}
	if a.Escalation.Threshold == 0 {
		return fmt.Errorf("agent.escalation.threshold must be positive")
	}
	switch a.Collector.Type {
	case "host":
	case "node":
		if a.Collector.Endpoint == "" {
			return fmt.Errorf("agent.collector.endpoint is required for type %q", a.Collector.Type)
		}
	default:
		return fmt.Errorf("agent.collector.type: unknown type %q", a.Collector.Type)
	}
	return nil
}

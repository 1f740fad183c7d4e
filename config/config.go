// Package config provides layered configuration for the standards
// service: defaults, user config, project config, then environment
// overrides. Secrets are never read from files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	NATS     NATSConfig     `yaml:"nats"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	LLM      LLMConfig      `yaml:"llm"`
	Cache    CacheConfig    `yaml:"cache"`
	Sync     SyncConfig     `yaml:"sync"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Research ResearchConfig `yaml:"research"`
}

// ServerConfig configures the HTTP front.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr string `yaml:"addr"`

	// RequestsPerMinute is the global per-client rate limit. 0 rejects
	// every request; a negative value disables limiting.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// EndpointLimits override the global limit per request path.
	EndpointLimits map[string]int `yaml:"endpoint_limits"`

	// SlowThresholdMs flags slower requests at warning level. 0 disables.
	SlowThresholdMs int `yaml:"slow_threshold_ms"`

	// APIKeyHeader names the API key header. Empty uses X-API-Key.
	APIKeyHeader string `yaml:"api_key_header"`

	// TokenTTLHours is the default lifetime of issued JWTs.
	TokenTTLHours int `yaml:"token_ttl_hours"`
}

// SlowThreshold returns the slow-request threshold as a duration.
func (s ServerConfig) SlowThreshold() time.Duration {
	return time.Duration(s.SlowThresholdMs) * time.Millisecond
}

// TokenTTL returns the JWT lifetime as a duration.
func (s ServerConfig) TokenTTL() time.Duration {
	return time.Duration(s.TokenTTLHours) * time.Hour
}

// NATSConfig configures the JetStream connection.
type NATSConfig struct {
	// URL is the NATS server URL.
	URL string `yaml:"url"`
}

// GatewayConfig configures the graph query gateway.
type GatewayConfig struct {
	// URL is the GraphQL gateway base URL.
	URL string `yaml:"url"`
}

// ProviderConfig configures one LLM provider. API keys come from each
// provider's environment variable, never from this file.
type ProviderConfig struct {
	// URL overrides the provider's default endpoint.
	URL string `yaml:"url"`

	// Models maps tier (fast, balanced, advanced) to model name.
	Models map[string]string `yaml:"models"`

	// MaxTokens caps completion length. 0 uses the provider default.
	MaxTokens int `yaml:"max_tokens"`
}

// LLMConfig configures the provider manager.
type LLMConfig struct {
	// Order is the provider preference order for fallback.
	Order []string `yaml:"order"`

	// Providers holds per-provider settings keyed by provider name.
	Providers map[string]ProviderConfig `yaml:"providers"`

	// TimeoutSeconds bounds each provider call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the per-call timeout as a duration.
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// CacheConfig selects and sizes the response cache.
type CacheConfig struct {
	// Backend is "memory" or "nats".
	Backend string `yaml:"backend"`

	// Capacity is the memory backend's entry cap.
	Capacity int `yaml:"capacity"`
}

// SyncConfig configures the filesystem sync engine.
type SyncConfig struct {
	// Root is the standards directory tree. Empty disables sync.
	Root string `yaml:"root"`

	// IntervalMinutes is the scheduled sync period. 0 disables the loop.
	IntervalMinutes int `yaml:"interval_minutes"`

	// Excludes are doublestar glob patterns of files to skip.
	Excludes []string `yaml:"excludes"`

	// Watch enables filesystem-event triggered syncs.
	Watch bool `yaml:"watch"`
}

// Interval returns the scheduled sync period as a duration.
func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// WorkflowConfig configures the workflow orchestrator.
type WorkflowConfig struct {
	// OutputDir is the filesystem deployment sink. Empty disables it.
	OutputDir string `yaml:"output_dir"`
}

// ResearchConfig configures web reference fetching.
type ResearchConfig struct {
	// FetchTimeoutSeconds bounds each reference fetch.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`

	// MaxContentBytes caps fetched page size.
	MaxContentBytes int64 `yaml:"max_content_bytes"`
}

// FetchTimeout returns the fetch timeout as a duration.
func (r ResearchConfig) FetchTimeout() time.Duration {
	return time.Duration(r.FetchTimeoutSeconds) * time.Second
}

// Default returns a Config with working defaults for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			RequestsPerMinute: 120,
			SlowThresholdMs:   5000,
			TokenTTLHours:     24,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Gateway: GatewayConfig{
			URL: "http://localhost:8081",
		},
		LLM: LLMConfig{
			Order:          []string{"anthropic", "openai", "ollama"},
			TimeoutSeconds: 60,
		},
		Cache: CacheConfig{
			Backend:  "memory",
			Capacity: 1000,
		},
		Sync: SyncConfig{
			IntervalMinutes: 5,
		},
		Workflow: WorkflowConfig{
			OutputDir: "standards-output",
		},
		Research: ResearchConfig{
			FetchTimeoutSeconds: 30,
			MaxContentBytes:     5 * 1024 * 1024,
		},
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	if len(c.LLM.Order) == 0 {
		return fmt.Errorf("llm.order must name at least one provider")
	}
	switch c.Cache.Backend {
	case "memory", "nats":
	default:
		return fmt.Errorf("cache.backend must be memory or nats, got %q", c.Cache.Backend)
	}
	return nil
}

// LoadFromFile reads a YAML config file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// SaveToFile writes the config as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Merge overlays another config; non-zero values in other win.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.RequestsPerMinute != 0 {
		c.Server.RequestsPerMinute = other.Server.RequestsPerMinute
	}
	if len(other.Server.EndpointLimits) > 0 {
		c.Server.EndpointLimits = other.Server.EndpointLimits
	}
	if other.Server.SlowThresholdMs != 0 {
		c.Server.SlowThresholdMs = other.Server.SlowThresholdMs
	}
	if other.Server.APIKeyHeader != "" {
		c.Server.APIKeyHeader = other.Server.APIKeyHeader
	}
	if other.Server.TokenTTLHours != 0 {
		c.Server.TokenTTLHours = other.Server.TokenTTLHours
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.Gateway.URL != "" {
		c.Gateway.URL = other.Gateway.URL
	}

	if len(other.LLM.Order) > 0 {
		c.LLM.Order = other.LLM.Order
	}
	if len(other.LLM.Providers) > 0 {
		c.LLM.Providers = other.LLM.Providers
	}
	if other.LLM.TimeoutSeconds != 0 {
		c.LLM.TimeoutSeconds = other.LLM.TimeoutSeconds
	}

	if other.Cache.Backend != "" {
		c.Cache.Backend = other.Cache.Backend
	}
	if other.Cache.Capacity != 0 {
		c.Cache.Capacity = other.Cache.Capacity
	}

	if other.Sync.Root != "" {
		c.Sync.Root = other.Sync.Root
	}
	if other.Sync.IntervalMinutes != 0 {
		c.Sync.IntervalMinutes = other.Sync.IntervalMinutes
	}
	if len(other.Sync.Excludes) > 0 {
		c.Sync.Excludes = other.Sync.Excludes
	}
	if other.Sync.Watch {
		c.Sync.Watch = true
	}

	if other.Workflow.OutputDir != "" {
		c.Workflow.OutputDir = other.Workflow.OutputDir
	}

	if other.Research.FetchTimeoutSeconds != 0 {
		c.Research.FetchTimeoutSeconds = other.Research.FetchTimeoutSeconds
	}
	if other.Research.MaxContentBytes != 0 {
		c.Research.MaxContentBytes = other.Research.MaxContentBytes
	}
}

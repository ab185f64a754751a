package gate

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the gateway's YAML configuration.
type Config struct {
	// Policy is the routing policy name or alias
	Policy string `yaml:"policy"`

	// LocalProviders are the on-premises provider names, in preference order
	LocalProviders []string `yaml:"local_providers"`

	// CloudProvider is the hosted provider name
	CloudProvider string `yaml:"cloud_provider"`

	// MaxBatchTokens is the scheduler's per-batch token budget
	MaxBatchTokens int `yaml:"max_batch_tokens"`

	// MaxDequeue is the worker's per-poll dequeue size
	MaxDequeue int `yaml:"max_dequeue"`

	// PollIntervalMS is the worker's idle poll interval in milliseconds
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// StopTimeoutMS bounds how long Stop waits for the worker loop
	StopTimeoutMS int `yaml:"stop_timeout_ms"`

	// Audit selects and configures the audit sink
	Audit AuditConfig `yaml:"audit"`

	// Providers configures the execution backends
	Providers ProvidersConfig `yaml:"providers"`
}

// AuditConfig selects the audit backend.
type AuditConfig struct {
	// Backend is one of "none", "slog", "memory", "sqlite"
	Backend string `yaml:"backend"`

	// Path is the database file for the sqlite backend
	Path string `yaml:"path"`
}

// ProvidersConfig holds per-backend settings.
type ProvidersConfig struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Ollama    OllamaConfig    `yaml:"ollama"`
}

// AnthropicConfig configures the cloud backend.
type AnthropicConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// OllamaConfig configures the local backend.
type OllamaConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// DefaultConfig returns a runnable configuration: default-local-first
// routing over the stock providers, slog auditing, and the worker
// defaults.
func DefaultConfig() Config {
	providers := DefaultProviderSet()
	return Config{
		Policy:         PolicyDefault,
		LocalProviders: providers.Local,
		CloudProvider:  providers.Cloud,
		MaxBatchTokens: 4096,
		MaxDequeue:     DefaultMaxDequeue,
		PollIntervalMS: int(DefaultPollInterval / time.Millisecond),
		StopTimeoutMS:  int(DefaultStopTimeout / time.Millisecond),
		Audit: AuditConfig{
			Backend: "slog",
		},
	}
}

// LoadConfig reads and validates a YAML config file. Missing fields keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate fails fast on values that would otherwise surface as
// construction errors deep in the composition root.
func (c Config) Validate() error {
	if c.MaxBatchTokens <= 0 {
		return fmt.Errorf("max_batch_tokens: %w", ErrInvalidBatchTokens)
	}
	if c.MaxDequeue <= 0 {
		return fmt.Errorf("max_dequeue: %w", ErrInvalidMaxDequeue)
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("poll_interval_ms: %w", ErrInvalidPollInterval)
	}
	if _, err := ResolvePolicy(c.Policy, c.ProviderSet()); err != nil {
		return err
	}

	switch c.Audit.Backend {
	case "", "none", "slog", "memory":
	case "sqlite":
		if c.Audit.Path == "" {
			return fmt.Errorf("audit: sqlite backend requires a path")
		}
	default:
		return fmt.Errorf("audit: unknown backend %q", c.Audit.Backend)
	}
	return nil
}

// ProviderSet returns the configured provider names.
func (c Config) ProviderSet() ProviderSet {
	return ProviderSet{
		Local: c.LocalProviders,
		Cloud: c.CloudProvider,
	}
}

// PollInterval returns the worker poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// StopTimeout returns the worker stop timeout as a duration.
func (c Config) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMS) * time.Millisecond
}

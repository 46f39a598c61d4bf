// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the engine configuration.
type Config struct {
	Engine    EngineConfig           `toml:"engine"`
	LLM       LLMConfig              `toml:"llm"`       // Default LLM settings
	Retry     map[string]RetryPolicy `toml:"retry"`     // Per-tool retry settings
	Storage   StorageConfig          `toml:"storage"`   // Persistent storage settings
	Skills    SkillsConfig           `toml:"skills"`    // Agent Skills
	Telemetry TelemetryConfig        `toml:"telemetry"` // Tracing settings
	Timeouts  TimeoutsConfig         `toml:"timeouts"`  // Network operation timeouts
	Logging   LoggingConfig          `toml:"logging"`
}

// EngineConfig contains the execution-loop feature flags.
type EngineConfig struct {
	EnablePlanning       bool `toml:"enable_planning"`
	EnableReflection     bool `toml:"enable_reflection"`
	EnableRetry          bool `toml:"enable_retry"`
	EnableToolTracking   bool `toml:"enable_tool_tracking"`
	EnableMemory         bool `toml:"enable_memory"`
	EnableAgentSelection bool `toml:"enable_agent_selection"`
	MaxIterations        int  `toml:"max_iterations"` // Model turns per task (default 50)
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"` // Custom API endpoint (OpenRouter, LiteLLM, Ollama, LMStudio)
}

// RetryPolicy configures tool-call retry behavior for one tool.
type RetryPolicy struct {
	MaxRetries    int     `toml:"max_retries"`
	BackoffFactor float64 `toml:"backoff_factor"`
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	Path string `toml:"path"` // Base directory for all persistent data
}

// SkillsConfig contains Agent Skills configuration.
type SkillsConfig struct {
	Paths []string `toml:"paths"` // Directories to search for skills
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled bool `toml:"enabled"`
}

// TimeoutsConfig contains timeout settings for network operations.
type TimeoutsConfig struct {
	Bash      int `toml:"bash"`       // bash command timeout in seconds (default 120)
	WebSearch int `toml:"web_search"` // web_search timeout in seconds (default 30)
	WebFetch  int `toml:"web_fetch"`  // web_fetch timeout in seconds (default 60)
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `toml:"level"` // debug|info|warn|error
}

// DefaultRetryPolicies returns the built-in per-tool retry table.
// Tools without an entry are invoked once with no retries.
func DefaultRetryPolicies() map[string]RetryPolicy {
	return map[string]RetryPolicy{
		"bash":       {MaxRetries: 3, BackoffFactor: 2.0},
		"read":       {MaxRetries: 2, BackoffFactor: 1.5},
		"write":      {MaxRetries: 2, BackoffFactor: 1.5},
		"web_search": {MaxRetries: 2, BackoffFactor: 2.0},
	}
}

// New creates a new config with defaults. All engine features are on.
// Approval gating is not configurable and has no flag here.
func New() *Config {
	return &Config{
		Engine: EngineConfig{
			EnablePlanning:       true,
			EnableReflection:     true,
			EnableRetry:          true,
			EnableToolTracking:   true,
			EnableMemory:         true,
			EnableAgentSelection: true,
			MaxIterations:        50,
		},
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		Retry: DefaultRetryPolicies(),
		Storage: StorageConfig{
			Path: "~/.bladerunner",
		},
		Timeouts: TimeoutsConfig{
			Bash:      120,
			WebSearch: 30,
			WebFetch:  60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file. Retry entries in the
// file are merged over the built-in table; absent tools keep defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	fileRetry := make(map[string]RetryPolicy)
	cfg.Retry = fileRetry
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	merged := DefaultRetryPolicies()
	for name, policy := range fileRetry {
		merged[name] = policy
	}
	cfg.Retry = merged
	if cfg.Engine.MaxIterations <= 0 {
		cfg.Engine.MaxIterations = 50
	}
	return cfg, nil
}

// LoadDefault loads bladerunner.toml from the current directory, or
// returns defaults if the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	path := filepath.Join(cwd, "bladerunner.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// RetryFor returns the retry policy for a tool. ok is false when the
// tool has no entry, in which case the call is made exactly once.
func (c *Config) RetryFor(tool string) (RetryPolicy, bool) {
	p, ok := c.Retry[tool]
	if !ok {
		return RetryPolicy{}, false
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = 1
	}
	return p, true
}

// StoragePath expands the configured storage directory, resolving a
// leading ~ against the user's home.
func (c *Config) StoragePath() string {
	p := c.Storage.Path
	if p == "" {
		p = "~/.bladerunner"
	}
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.LLM.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}

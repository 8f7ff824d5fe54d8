// Package config holds all reflex configuration.
// Configuration is loaded from a YAML file with environment variable
// overrides for secrets, and falls back to safe defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all reflex configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM plan generator configuration
	LLM LLMConfig `yaml:"llm"`

	// Semantic memory configuration
	Memory MemoryConfig `yaml:"memory"`

	// Per-request budget configuration
	Budget BudgetConfig `yaml:"budget"`

	// Guardrail policy configuration
	Guardrail GuardrailConfig `yaml:"guardrail"`

	// Tool registry configuration
	Tools ToolsConfig `yaml:"tools"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the external plan generator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // genai (Gemini) is the only built-in provider
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// MemoryConfig configures the semantic memory store.
type MemoryConfig struct {
	// SQLite database path. Empty means in-memory only (no durability).
	DatabasePath string `yaml:"database_path"`

	// FastPathThreshold: similarity at or above this returns the cached
	// answer directly, bypassing generation and execution.
	FastPathThreshold float64 `yaml:"fast_path_threshold"`

	// FewShotThreshold: similarity in [few_shot, fast_path) attaches the
	// matched plan as a worked example for the generator.
	FewShotThreshold float64 `yaml:"few_shot_threshold"`
}

// BudgetConfig configures the per-request step and retry budget.
type BudgetConfig struct {
	// MaxSteps bounds planning attempts per request.
	MaxSteps int `yaml:"max_steps"`

	// MaxLifelines bounds retries after guardrail rejections or
	// execution failures. Shared across the whole request.
	MaxLifelines int `yaml:"max_lifelines"`

	// MaxToolCallsPerRun is the dispatcher call ceiling per sandbox run.
	MaxToolCallsPerRun int `yaml:"max_tool_calls_per_run"`

	// ExecutionTimeout bounds a single sandbox run (e.g. "30s").
	ExecutionTimeout string `yaml:"execution_timeout"`
}

// GuardrailConfig configures the plan screening rules.
type GuardrailConfig struct {
	// MaxCallBudget is the static ceiling on tool-reference occurrences.
	MaxCallBudget int `yaml:"max_call_budget"`

	// DomainWhitelist lists domains that literal URLs may reference.
	DomainWhitelist []string `yaml:"domain_whitelist"`

	// MaxPlanBytes caps generated plan source size. 0 disables the check.
	MaxPlanBytes int `yaml:"max_plan_bytes"`

	// AllowedImports is the stdlib import allowlist for plans.
	// Empty means the built-in default allowlist.
	AllowedImports []string `yaml:"allowed_imports"`

	// DisallowedKeywords maps keyword -> severity ("warn" or "block").
	DisallowedKeywords map[string]string `yaml:"disallowed_keywords"`

	// PIIScan toggles the credit-card / id-number pattern scan.
	PIIScan bool `yaml:"pii_scan"`
}

// ToolsConfig configures the tool registry.
type ToolsConfig struct {
	// ManifestDir holds YAML tool manifests for external tool servers.
	ManifestDir string `yaml:"manifest_dir"`

	// WatchManifests enables fsnotify hot reload of the manifest dir.
	WatchManifests bool `yaml:"watch_manifests"`

	// EnableBuiltins registers the built-in local tools.
	EnableBuiltins bool `yaml:"enable_builtins"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "reflex",
		Version: "0.3.0",
		LLM: LLMConfig{
			Provider: "genai",
			Model:    "gemini-2.0-flash",
			Timeout:  "60s",
		},
		Memory: MemoryConfig{
			DatabasePath:      ".reflex/memory.db",
			FastPathThreshold: 0.85,
			FewShotThreshold:  0.50,
		},
		Budget: BudgetConfig{
			MaxSteps:           3,
			MaxLifelines:       3,
			MaxToolCallsPerRun: 5,
			ExecutionTimeout:   "30s",
		},
		Guardrail: GuardrailConfig{
			MaxCallBudget:   8,
			DomainWhitelist: []string{"wikipedia.org", "example.com"},
			MaxPlanBytes:    32 * 1024,
			DisallowedKeywords: map[string]string{
				"os.Remove":    "block",
				"exec.Command": "block",
				"unsafe":       "block",
				"reflect":      "warn",
			},
			PIIScan: true,
		},
		Tools: ToolsConfig{
			ManifestDir:    ".reflex/tools",
			WatchManifests: false,
			EnableBuiltins: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML config file, merging it over the defaults.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				cfg.applyEnvOverrides()
				return cfg, nil
			}
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables override file settings.
// Secrets in particular should come from the environment.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REFLEX_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("REFLEX_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("REFLEX_DB_PATH"); v != "" {
		c.Memory.DatabasePath = v
	}
	if v := os.Getenv("REFLEX_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Budget.MaxSteps = n
		}
	}
	if v := os.Getenv("REFLEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks threshold ordering and budget sanity.
func (c *Config) Validate() error {
	m := c.Memory
	if m.FastPathThreshold < 0 || m.FastPathThreshold > 1 {
		return fmt.Errorf("memory.fast_path_threshold must be in [0,1], got %v", m.FastPathThreshold)
	}
	if m.FewShotThreshold < 0 || m.FewShotThreshold > 1 {
		return fmt.Errorf("memory.few_shot_threshold must be in [0,1], got %v", m.FewShotThreshold)
	}
	if m.FewShotThreshold > m.FastPathThreshold {
		return fmt.Errorf("memory.few_shot_threshold (%v) must not exceed fast_path_threshold (%v)",
			m.FewShotThreshold, m.FastPathThreshold)
	}
	if c.Budget.MaxSteps < 1 {
		return fmt.Errorf("budget.max_steps must be at least 1, got %d", c.Budget.MaxSteps)
	}
	if c.Budget.MaxLifelines < 0 {
		return fmt.Errorf("budget.max_lifelines must not be negative, got %d", c.Budget.MaxLifelines)
	}
	if c.Budget.MaxToolCallsPerRun < 1 {
		return fmt.Errorf("budget.max_tool_calls_per_run must be at least 1, got %d", c.Budget.MaxToolCallsPerRun)
	}
	for kw, sev := range c.Guardrail.DisallowedKeywords {
		if sev != "warn" && sev != "block" {
			return fmt.Errorf("guardrail.disallowed_keywords[%s]: severity must be warn or block, got %q", kw, sev)
		}
	}
	return nil
}

// ExecutionTimeout parses the sandbox timeout, falling back to 30s.
func (c *Config) ExecutionTimeout() time.Duration {
	return parseDuration(c.Budget.ExecutionTimeout, 30*time.Second)
}

// LLMTimeout parses the generator timeout, falling back to 60s.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Provider names understood by the adapters.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// ProviderSettings configures one model provider.
type ProviderSettings struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
	// APIKeyEnv names the environment variable holding the key. APIKey, when
	// set, takes precedence.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`

	RequestTimeout  int `yaml:"request_timeout"`  // seconds
	ResourceTimeout int `yaml:"resource_timeout"` // seconds

	MinOutputTokens      int     `yaml:"min_output_tokens"`
	MaxOutputTokens      int     `yaml:"max_output_tokens"`
	FallbackOutputTokens int     `yaml:"fallback_output_tokens,omitempty"`
	ContextTokens        int     `yaml:"context_tokens"`
	CharsPerToken        float64 `yaml:"chars_per_token"`
}

// PipelineConfig tunes the retry loop.
type PipelineConfig struct {
	RetryBudget          int     `yaml:"retry_budget"`
	Temperature          float64 `yaml:"temperature"`
	RetryTemperatureStep float64 `yaml:"retry_temperature_step"`
	MaxTemperature       float64 `yaml:"max_temperature"`
	OutputTokens         int     `yaml:"output_tokens"`
	RetryOutputFactor    float64 `yaml:"retry_output_factor"`
}

type ValidationConfig struct {
	MinVisibleArea float64 `yaml:"min_visible_area"`
}

// PromptConfig controls the system prompt.
type PromptConfig struct {
	Instructions     string `yaml:"instructions,omitempty"`
	InstructionsFile string `yaml:"instructions_file,omitempty"`
	// MaxWindows caps the inventory listed in the prompt (0 = all).
	MaxWindows int `yaml:"max_windows"`
	// CompactMaxWindows is the inventory kept by the token-limit fallback.
	// At least one window is always kept.
	CompactMaxWindows int `yaml:"compact_max_windows"`
}

// LoggingConfig controls where structured logs go. An empty File logs to
// stderr.
type LoggingConfig struct {
	File      string `yaml:"file,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// Config holds the effective winpilot configuration.
type Config struct {
	Provider  string                      `yaml:"provider"`
	Providers map[string]ProviderSettings `yaml:"providers"`

	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Validation ValidationConfig `yaml:"validation"`
	Prompt     PromptConfig     `yaml:"prompt"`

	// Preferences are standing user statements such as
	// "always put Slack on the right".
	Preferences []string `yaml:"preferences,omitempty"`
	// ToolsFile replaces the built-in tool catalog.
	ToolsFile string `yaml:"tools_file,omitempty"`

	// Display overrides $DISPLAY for the X11 backend.
	Display string `yaml:"display,omitempty"`

	LogLevel string        `yaml:"log_level"`
	Logging  LoggingConfig `yaml:"logging"`
}

// ValidationError is a config error tied to a YAML path. Source is filled
// in by the loader when the path was set in a file.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DefaultProviders returns the stock settings for every known provider.
func DefaultProviders() map[string]ProviderSettings {
	base := ProviderSettings{
		RequestTimeout:  60,
		ResourceTimeout: 150,
		MinOutputTokens: 1024,
		MaxOutputTokens: 8192,
		ContextTokens:   128000,
		CharsPerToken:   4,
	}
	openai := base
	openai.Model = "gpt-4o-mini"
	openai.APIKeyEnv = "OPENAI_API_KEY"

	anthropic := base
	anthropic.Model = "claude-sonnet-4-5"
	anthropic.APIKeyEnv = "ANTHROPIC_API_KEY"
	anthropic.ContextTokens = 200000

	gemini := base
	gemini.Model = "gemini-2.5-flash"
	gemini.APIKeyEnv = "GEMINI_API_KEY"
	gemini.ContextTokens = 1000000

	return map[string]ProviderSettings{
		ProviderOpenAI:    openai,
		ProviderAnthropic: anthropic,
		ProviderGemini:    gemini,
	}
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:  ProviderOpenAI,
		Providers: DefaultProviders(),
		Pipeline: PipelineConfig{
			RetryBudget:          2,
			Temperature:          0.2,
			RetryTemperatureStep: 0.15,
			MaxTemperature:       1.0,
			OutputTokens:         4096,
			RetryOutputFactor:    0.75,
		},
		Validation: ValidationConfig{MinVisibleArea: 10000},
		Prompt: PromptConfig{
			MaxWindows:        0,
			CompactMaxWindows: 10,
		},
		LogLevel: "info",
		Logging: LoggingConfig{
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
	}
}

// DefaultConfigPath returns ~/.config/winpilot/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "winpilot", "config.yaml"), nil
}

// ProviderNames returns the configured provider names, sorted.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveProvider returns the settings of the selected provider.
func (c *Config) ActiveProvider() (string, ProviderSettings, error) {
	p, ok := c.Providers[c.Provider]
	if !ok {
		return "", ProviderSettings{}, fmt.Errorf("provider %q is not configured", c.Provider)
	}
	return c.Provider, p, nil
}

// Validate checks the effective configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider) == "" {
		return &ValidationError{Path: "provider", Err: fmt.Errorf("provider is required")}
	}
	if !knownProvider(c.Provider) {
		return &ValidationError{Path: "provider", Err: fmt.Errorf("provider must be one of: openai, anthropic, gemini")}
	}
	if _, ok := c.Providers[c.Provider]; !ok {
		return &ValidationError{Path: "providers." + c.Provider, Err: fmt.Errorf("selected provider has no settings")}
	}
	for _, name := range c.ProviderNames() {
		if err := validateProvider(name, c.Providers[name]); err != nil {
			return err
		}
	}

	p := c.Pipeline
	if p.RetryBudget < 0 {
		return &ValidationError{Path: "pipeline.retry_budget", Err: fmt.Errorf("retry_budget must be >= 0")}
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return &ValidationError{Path: "pipeline.temperature", Err: fmt.Errorf("temperature must be within 0-2")}
	}
	if p.RetryTemperatureStep < 0 {
		return &ValidationError{Path: "pipeline.retry_temperature_step", Err: fmt.Errorf("retry_temperature_step must be >= 0")}
	}
	if p.MaxTemperature < p.Temperature || p.MaxTemperature > 2 {
		return &ValidationError{Path: "pipeline.max_temperature", Err: fmt.Errorf("max_temperature must be within temperature-2")}
	}
	if p.OutputTokens < 0 {
		return &ValidationError{Path: "pipeline.output_tokens", Err: fmt.Errorf("output_tokens must be >= 0")}
	}
	if p.RetryOutputFactor <= 0 || p.RetryOutputFactor > 1 {
		return &ValidationError{Path: "pipeline.retry_output_factor", Err: fmt.Errorf("retry_output_factor must be within (0, 1]")}
	}

	if c.Validation.MinVisibleArea <= 0 {
		return &ValidationError{Path: "validation.min_visible_area", Err: fmt.Errorf("min_visible_area must be > 0")}
	}
	if c.Prompt.MaxWindows < 0 {
		return &ValidationError{Path: "prompt.max_windows", Err: fmt.Errorf("max_windows must be >= 0")}
	}
	if c.Prompt.CompactMaxWindows < 1 {
		return &ValidationError{Path: "prompt.compact_max_windows", Err: fmt.Errorf("compact_max_windows must be >= 1")}
	}
	if c.Prompt.Instructions != "" && c.Prompt.InstructionsFile != "" {
		return &ValidationError{Path: "prompt.instructions_file", Err: fmt.Errorf("set either instructions or instructions_file, not both")}
	}
	for i, pref := range c.Preferences {
		if strings.TrimSpace(pref) == "" {
			return &ValidationError{Path: "preferences", Err: fmt.Errorf("preference %d is empty", i)}
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if c.Logging.MaxSizeMB < 0 {
		return &ValidationError{Path: "logging.max_size_mb", Err: fmt.Errorf("max_size_mb must be >= 0")}
	}
	if c.Logging.MaxFiles < 0 {
		return &ValidationError{Path: "logging.max_files", Err: fmt.Errorf("max_files must be >= 0")}
	}
	return nil
}

func validateProvider(name string, p ProviderSettings) error {
	path := "providers." + name
	if !knownProvider(name) {
		return &ValidationError{Path: path, Err: fmt.Errorf("unknown provider %q", name)}
	}
	if strings.TrimSpace(p.Model) == "" {
		return &ValidationError{Path: path + ".model", Err: fmt.Errorf("model is required")}
	}
	if p.RequestTimeout <= 0 {
		return &ValidationError{Path: path + ".request_timeout", Err: fmt.Errorf("request_timeout must be > 0")}
	}
	if p.ResourceTimeout < p.RequestTimeout {
		return &ValidationError{Path: path + ".resource_timeout", Err: fmt.Errorf("resource_timeout must be >= request_timeout")}
	}
	if p.MinOutputTokens <= 0 {
		return &ValidationError{Path: path + ".min_output_tokens", Err: fmt.Errorf("min_output_tokens must be > 0")}
	}
	if p.MaxOutputTokens < p.MinOutputTokens {
		return &ValidationError{Path: path + ".max_output_tokens", Err: fmt.Errorf("max_output_tokens must be >= min_output_tokens")}
	}
	if p.FallbackOutputTokens < 0 {
		return &ValidationError{Path: path + ".fallback_output_tokens", Err: fmt.Errorf("fallback_output_tokens must be >= 0")}
	}
	if p.ContextTokens <= p.MaxOutputTokens {
		return &ValidationError{Path: path + ".context_tokens", Err: fmt.Errorf("context_tokens must exceed max_output_tokens")}
	}
	if p.CharsPerToken <= 0 {
		return &ValidationError{Path: path + ".chars_per_token", Err: fmt.Errorf("chars_per_token must be > 0")}
	}
	return nil
}

func knownProvider(name string) bool {
	switch name {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		return true
	}
	return false
}

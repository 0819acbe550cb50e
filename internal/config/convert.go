package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/1broseidon/winpilot/internal/llm"
	"github.com/1broseidon/winpilot/internal/logging"
	"github.com/1broseidon/winpilot/internal/pipeline"
)

// ResolveAPIKey returns the inline key or the one named by APIKeyEnv.
func (p ProviderSettings) ResolveAPIKey() string {
	if key := strings.TrimSpace(p.APIKey); key != "" {
		return key
	}
	if p.APIKeyEnv != "" {
		return strings.TrimSpace(os.Getenv(p.APIKeyEnv))
	}
	return ""
}

// LLMConfig converts the settings of the named provider into adapter
// configuration. A provider without a usable API key is an error.
func (c *Config) LLMConfig(name string) (llm.ProviderConfig, error) {
	p, ok := c.Providers[name]
	if !ok {
		return llm.ProviderConfig{}, fmt.Errorf("provider %q is not configured", name)
	}
	key := p.ResolveAPIKey()
	if key == "" {
		hint := "providers." + name + ".api_key"
		if p.APIKeyEnv != "" {
			hint = "$" + p.APIKeyEnv + " or " + hint
		}
		return llm.ProviderConfig{}, fmt.Errorf("%s: no API key (set %s)", name, hint)
	}
	return llm.ProviderConfig{
		Model:           p.Model,
		BaseURL:         p.BaseURL,
		APIKey:          key,
		RequestTimeout:  time.Duration(p.RequestTimeout) * time.Second,
		ResourceTimeout: time.Duration(p.ResourceTimeout) * time.Second,
		Budget: llm.Budget{
			Floor:         p.MinOutputTokens,
			Ceiling:       p.MaxOutputTokens,
			Total:         p.ContextTokens,
			CharsPerToken: p.CharsPerToken,
		},
		FallbackOutputTokens: p.FallbackOutputTokens,
		CompactWindows:       c.Prompt.CompactMaxWindows,
	}.WithDefaults(), nil
}

// PipelineOptions converts the pipeline section into retry options.
func (c *Config) PipelineOptions() pipeline.Options {
	p := c.Pipeline
	return pipeline.Options{
		RetryBudget:       p.RetryBudget,
		Temperature:       p.Temperature,
		TemperatureStep:   p.RetryTemperatureStep,
		MaxTemperature:    p.MaxTemperature,
		OutputTokens:      p.OutputTokens,
		RetryOutputFactor: p.RetryOutputFactor,
		ForceToolCall:     true,
	}
}

// LoggingOptions converts the logging settings.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:     c.LogLevel,
		File:      c.Logging.File,
		MaxSizeMB: c.Logging.MaxSizeMB,
		MaxFiles:  c.Logging.MaxFiles,
	}
}

// Instructions returns the configured system instructions, reading
// instructions_file when set. Empty means the built-in text.
func (c *Config) Instructions() (string, error) {
	if c.Prompt.InstructionsFile == "" {
		return c.Prompt.Instructions, nil
	}
	data, err := os.ReadFile(c.Prompt.InstructionsFile)
	if err != nil {
		return "", &ValidationError{Path: "prompt.instructions_file", Err: err}
	}
	return string(data), nil
}

// Redacted returns a copy safe to print or log.
func (c *Config) Redacted() *Config {
	out := *c
	out.Providers = make(map[string]ProviderSettings, len(c.Providers))
	for name, p := range c.Providers {
		p.APIKey = logging.RedactValue(p.APIKey)
		out.Providers[name] = p
	}
	out.Preferences = append([]string(nil), c.Preferences...)
	return &out
}

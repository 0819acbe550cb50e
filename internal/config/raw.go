package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

// Raw* mirror the effective types with pointer fields so a merge can tell
// "unset" from "zero".

type RawProvider struct {
	Model                *string  `yaml:"model"`
	BaseURL              *string  `yaml:"base_url"`
	APIKeyEnv            *string  `yaml:"api_key_env"`
	APIKey               *string  `yaml:"api_key"`
	RequestTimeout       *int     `yaml:"request_timeout"`
	ResourceTimeout      *int     `yaml:"resource_timeout"`
	MinOutputTokens      *int     `yaml:"min_output_tokens"`
	MaxOutputTokens      *int     `yaml:"max_output_tokens"`
	FallbackOutputTokens *int     `yaml:"fallback_output_tokens"`
	ContextTokens        *int     `yaml:"context_tokens"`
	CharsPerToken        *float64 `yaml:"chars_per_token"`
}

type RawPipeline struct {
	RetryBudget          *int     `yaml:"retry_budget"`
	Temperature          *float64 `yaml:"temperature"`
	RetryTemperatureStep *float64 `yaml:"retry_temperature_step"`
	MaxTemperature       *float64 `yaml:"max_temperature"`
	OutputTokens         *int     `yaml:"output_tokens"`
	RetryOutputFactor    *float64 `yaml:"retry_output_factor"`
}

type RawValidation struct {
	MinVisibleArea *float64 `yaml:"min_visible_area"`
}

type RawPrompt struct {
	Instructions      *string `yaml:"instructions"`
	InstructionsFile  *string `yaml:"instructions_file"`
	MaxWindows        *int    `yaml:"max_windows"`
	CompactMaxWindows *int    `yaml:"compact_max_windows"`
}

type RawLogging struct {
	File      *string `yaml:"file"`
	MaxSizeMB *int    `yaml:"max_size_mb"`
	MaxFiles  *int    `yaml:"max_files"`
}

type RawConfig struct {
	Include     IncludeList            `yaml:"include"`
	Provider    *string                `yaml:"provider"`
	Providers   map[string]RawProvider `yaml:"providers"`
	Pipeline    *RawPipeline           `yaml:"pipeline"`
	Validation  *RawValidation         `yaml:"validation"`
	Prompt      *RawPrompt             `yaml:"prompt"`
	Preferences []string               `yaml:"preferences"`
	ToolsFile   *string                `yaml:"tools_file"`
	Display     *string                `yaml:"display"`
	LogLevel    *string                `yaml:"log_level"`
	Logging     *RawLogging            `yaml:"logging"`
}

func set[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// merge applies overlay on top of c. Scalars are replaced, provider
// entries merge field by field, and preferences accumulate in load order.
func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	set(&out.Provider, overlay.Provider)
	if overlay.Providers != nil {
		providers := make(map[string]RawProvider, len(out.Providers)+len(overlay.Providers))
		for name, p := range out.Providers {
			providers[name] = p
		}
		for name, p := range overlay.Providers {
			providers[name] = mergeRawProvider(providers[name], p)
		}
		out.Providers = providers
	}
	if overlay.Pipeline != nil {
		merged := RawPipeline{}
		if out.Pipeline != nil {
			merged = *out.Pipeline
		}
		set(&merged.RetryBudget, overlay.Pipeline.RetryBudget)
		set(&merged.Temperature, overlay.Pipeline.Temperature)
		set(&merged.RetryTemperatureStep, overlay.Pipeline.RetryTemperatureStep)
		set(&merged.MaxTemperature, overlay.Pipeline.MaxTemperature)
		set(&merged.OutputTokens, overlay.Pipeline.OutputTokens)
		set(&merged.RetryOutputFactor, overlay.Pipeline.RetryOutputFactor)
		out.Pipeline = &merged
	}
	if overlay.Validation != nil {
		merged := RawValidation{}
		if out.Validation != nil {
			merged = *out.Validation
		}
		set(&merged.MinVisibleArea, overlay.Validation.MinVisibleArea)
		out.Validation = &merged
	}
	if overlay.Prompt != nil {
		merged := RawPrompt{}
		if out.Prompt != nil {
			merged = *out.Prompt
		}
		set(&merged.Instructions, overlay.Prompt.Instructions)
		set(&merged.InstructionsFile, overlay.Prompt.InstructionsFile)
		set(&merged.MaxWindows, overlay.Prompt.MaxWindows)
		set(&merged.CompactMaxWindows, overlay.Prompt.CompactMaxWindows)
		out.Prompt = &merged
	}
	if len(overlay.Preferences) > 0 {
		prefs := make([]string, 0, len(out.Preferences)+len(overlay.Preferences))
		prefs = append(prefs, out.Preferences...)
		out.Preferences = append(prefs, overlay.Preferences...)
	}
	set(&out.ToolsFile, overlay.ToolsFile)
	set(&out.Display, overlay.Display)
	set(&out.LogLevel, overlay.LogLevel)
	if overlay.Logging != nil {
		merged := RawLogging{}
		if out.Logging != nil {
			merged = *out.Logging
		}
		set(&merged.File, overlay.Logging.File)
		set(&merged.MaxSizeMB, overlay.Logging.MaxSizeMB)
		set(&merged.MaxFiles, overlay.Logging.MaxFiles)
		out.Logging = &merged
	}
	return out
}

func mergeRawProvider(base, overlay RawProvider) RawProvider {
	out := base
	set(&out.Model, overlay.Model)
	set(&out.BaseURL, overlay.BaseURL)
	set(&out.APIKeyEnv, overlay.APIKeyEnv)
	set(&out.APIKey, overlay.APIKey)
	set(&out.RequestTimeout, overlay.RequestTimeout)
	set(&out.ResourceTimeout, overlay.ResourceTimeout)
	set(&out.MinOutputTokens, overlay.MinOutputTokens)
	set(&out.MaxOutputTokens, overlay.MaxOutputTokens)
	set(&out.FallbackOutputTokens, overlay.FallbackOutputTokens)
	set(&out.ContextTokens, overlay.ContextTokens)
	set(&out.CharsPerToken, overlay.CharsPerToken)
	return out
}

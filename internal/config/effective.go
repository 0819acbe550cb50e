package config

func apply[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// BuildEffectiveConfig overlays the merged raw config on DefaultConfig.
// The result is not validated.
func BuildEffectiveConfig(raw RawConfig) *Config {
	cfg := DefaultConfig()

	apply(&cfg.Provider, raw.Provider)
	for name, rp := range raw.Providers {
		p := cfg.Providers[name]
		apply(&p.Model, rp.Model)
		apply(&p.BaseURL, rp.BaseURL)
		apply(&p.APIKeyEnv, rp.APIKeyEnv)
		apply(&p.APIKey, rp.APIKey)
		apply(&p.RequestTimeout, rp.RequestTimeout)
		apply(&p.ResourceTimeout, rp.ResourceTimeout)
		apply(&p.MinOutputTokens, rp.MinOutputTokens)
		apply(&p.MaxOutputTokens, rp.MaxOutputTokens)
		apply(&p.FallbackOutputTokens, rp.FallbackOutputTokens)
		apply(&p.ContextTokens, rp.ContextTokens)
		apply(&p.CharsPerToken, rp.CharsPerToken)
		cfg.Providers[name] = p
	}

	if rp := raw.Pipeline; rp != nil {
		apply(&cfg.Pipeline.RetryBudget, rp.RetryBudget)
		apply(&cfg.Pipeline.Temperature, rp.Temperature)
		apply(&cfg.Pipeline.RetryTemperatureStep, rp.RetryTemperatureStep)
		apply(&cfg.Pipeline.MaxTemperature, rp.MaxTemperature)
		apply(&cfg.Pipeline.OutputTokens, rp.OutputTokens)
		apply(&cfg.Pipeline.RetryOutputFactor, rp.RetryOutputFactor)
	}
	if rv := raw.Validation; rv != nil {
		apply(&cfg.Validation.MinVisibleArea, rv.MinVisibleArea)
	}
	if rp := raw.Prompt; rp != nil {
		apply(&cfg.Prompt.Instructions, rp.Instructions)
		apply(&cfg.Prompt.InstructionsFile, rp.InstructionsFile)
		apply(&cfg.Prompt.MaxWindows, rp.MaxWindows)
		apply(&cfg.Prompt.CompactMaxWindows, rp.CompactMaxWindows)
	}
	if len(raw.Preferences) > 0 {
		cfg.Preferences = append([]string(nil), raw.Preferences...)
	}
	apply(&cfg.ToolsFile, raw.ToolsFile)
	apply(&cfg.Display, raw.Display)
	apply(&cfg.LogLevel, raw.LogLevel)
	if rl := raw.Logging; rl != nil {
		apply(&cfg.Logging.File, rl.File)
		apply(&cfg.Logging.MaxSizeMB, rl.MaxSizeMB)
		apply(&cfg.Logging.MaxFiles, rl.MaxFiles)
	}
	return cfg
}

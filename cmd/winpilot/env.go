package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/1broseidon/winpilot/internal/anthropic"
	"github.com/1broseidon/winpilot/internal/config"
	"github.com/1broseidon/winpilot/internal/constraint"
	"github.com/1broseidon/winpilot/internal/gemini"
	"github.com/1broseidon/winpilot/internal/llm"
	"github.com/1broseidon/winpilot/internal/logging"
	"github.com/1broseidon/winpilot/internal/mcp"
	"github.com/1broseidon/winpilot/internal/openai"
	"github.com/1broseidon/winpilot/internal/pipeline"
	"github.com/1broseidon/winpilot/internal/platform"
	"github.com/1broseidon/winpilot/internal/prefs"
	"github.com/1broseidon/winpilot/internal/prompt"
	"github.com/1broseidon/winpilot/internal/toolschema"
)

type commonFlags struct {
	configPath   string
	snapshotPath string
	format       string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "Config file path (default: ~/.config/winpilot/config.yaml)")
	fs.StringVar(&c.snapshotPath, "snapshot", "", "Read windows from a YAML snapshot instead of X11; operations are printed, not performed")
	fs.StringVar(&c.format, "format", formatAuto, "Output format: auto, table, yaml or json")
	return c
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	logger, err := logging.New(cfg.LoggingOptions(), os.Stderr)
	if err != nil {
		return logger, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger, nil
}

// newAdapter builds the client for the configured provider.
func newAdapter(cfg *config.Config, logger *slog.Logger) (llm.Adapter, error) {
	name, _, err := cfg.ActiveProvider()
	if err != nil {
		return nil, err
	}
	pc, err := cfg.LLMConfig(name)
	if err != nil {
		return nil, err
	}
	switch name {
	case config.ProviderOpenAI:
		return openai.NewClient(pc, logger), nil
	case config.ProviderAnthropic:
		return anthropic.NewClient(pc, logger), nil
	case config.ProviderGemini:
		return gemini.NewClient(pc, logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", name)
	}
}

func loadCatalog(cfg *config.Config) (toolschema.Catalog, error) {
	if cfg.ToolsFile == "" {
		return toolschema.DefaultCatalog(), nil
	}
	return toolschema.LoadCatalog(cfg.ToolsFile)
}

func newValidator(cfg *config.Config) constraint.Validator {
	return constraint.New(cfg.Validation.MinVisibleArea)
}

// buildEnvironment derives everything a run needs from the configuration.
// Unrecognised preferences are logged and skipped.
func buildEnvironment(cfg *config.Config, logger *slog.Logger) (mcp.Environment, error) {
	adapter, err := newAdapter(cfg, logger)
	if err != nil {
		return mcp.Environment{}, err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return mcp.Environment{}, err
	}
	instructions, err := cfg.Instructions()
	if err != nil {
		return mcp.Environment{}, err
	}
	preferences, err := prefs.ParseAll(cfg.Preferences)
	if err != nil {
		logger.Warn("ignoring preferences", "error", err)
	}

	validator := newValidator(cfg)
	opts := cfg.PipelineOptions()
	p, err := pipeline.New(pipeline.Config{
		Adapter:   adapter,
		Validator: validator,
		Catalog:   catalog,
		Options:   &opts,
		Logger:    logger,
	})
	if err != nil {
		return mcp.Environment{}, err
	}
	return mcp.Environment{
		Pipeline: p,
		Prompt: prompt.Builder{
			Instructions: instructions,
			MaxWindows:   cfg.Prompt.MaxWindows,
			Preferences:  preferences,
		},
		Validator: validator,
	}, nil
}

// openBackend returns a file-backed recorder when snapshotPath is set and
// the X11 backend otherwise.
func openBackend(snapshotPath, display string) (platform.Backend, func(), error) {
	if snapshotPath != "" {
		return &platform.FileBackend{Path: snapshotPath}, func() {}, nil
	}
	b, err := platform.NewX11Backend(display)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	return b, b.Disconnect, nil
}

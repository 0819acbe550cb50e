package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/config"
	"github.com/1broseidon/winpilot/internal/pipeline"
	"github.com/1broseidon/winpilot/internal/platform"
	"github.com/1broseidon/winpilot/internal/simulator"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitNotPassed = 3
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(exitOK)
	}

	switch os.Args[1] {
	case "arrange":
		os.Exit(runArrange(os.Args[2:]))
	case "check":
		os.Exit(runCheck(os.Args[2:]))
	case "snapshot":
		os.Exit(runSnapshot(os.Args[2:]))
	case "tools":
		os.Exit(runTools(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(exitUsage)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: winpilot <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  arrange <instruction>   Ask the model for a layout, validate it and apply it")
	fmt.Fprintln(w, "  check <commands.yaml>   Simulate and validate a command list (no model)")
	fmt.Fprintln(w, "  snapshot                Print the current displays and windows as YAML")
	fmt.Fprintln(w, "  tools                   Print the tool catalog offered to the model")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate         Validate configuration")
	fmt.Fprintln(w, "  config print            Print configuration")
	fmt.Fprintln(w, "  config explain          Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve               Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'winpilot <command> --help' for command-specific options.")
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseFlags(fs *flag.FlagSet, args []string) (ok bool, code int) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, exitOK
		}
		return false, exitUsage
	}
	return true, exitOK
}

func runArrange(args []string) int {
	fs := flag.NewFlagSet("arrange", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	common := addCommonFlags(fs)
	provider := fs.String("provider", "", "Override the configured provider (openai, anthropic, gemini)")
	dryRun := fs.Bool("dry-run", false, "Plan and validate only; do not touch any window")
	force := fs.Bool("force", false, "Apply the best candidate even when it failed validation")
	confirm := fs.Bool("confirm", false, "Ask before applying (requires a terminal)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winpilot arrange [options] <instruction>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Exit status is 3 when no candidate passed validation.")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	instruction := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if instruction == "" {
		fmt.Fprintln(os.Stderr, "arrange requires an instruction")
		fs.Usage()
		return exitUsage
	}

	out := newPrinter(os.Stdout, common.format)
	if *confirm && !out.interactive() {
		fmt.Fprintln(os.Stderr, "--confirm needs an interactive terminal and table output")
		return exitUsage
	}

	res, err := loadConfig(common.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	cfg := res.Config
	if *provider != "" {
		cfg.Provider = *provider
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer logger.Close()

	env, err := buildEnvironment(cfg, logger.Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	backend, closeBackend, err := openBackend(common.snapshotPath, cfg.Display)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer closeBackend()

	ctx, cancel := signalContext()
	defer cancel()

	snap, err := backend.Snapshot(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	result, err := env.Pipeline.Run(ctx, pipeline.Input{
		Instruction: instruction,
		System:      env.Prompt.Build(snap.Windows, snap.Displays),
		Windows:     snap.Windows,
		Displays:    snap.Displays,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}

	if err := out.arrangement(result); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}

	apply := !*dryRun && (result.Passed || *force)
	if !*dryRun && !result.Passed && !*force {
		fmt.Fprintln(os.Stderr, "layout failed validation; nothing applied (use --force to apply anyway)")
	}
	if apply && (*confirm || (!result.Passed && out.interactive())) {
		ok, err := confirmApply(len(result.Commands), result.Passed)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
		apply = ok
	}
	if apply {
		steps, execErr := platform.Execute(ctx, backend, result.Commands, snap)
		if err := out.steps(steps); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
		if recorder, ok := backend.(*platform.FileBackend); ok {
			if err := out.operations(recorder.Ops()); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return exitFailure
			}
		}
		if execErr != nil {
			fmt.Fprintln(os.Stderr, execErr)
			return exitFailure
		}
	}

	if !result.Passed {
		return exitNotPassed
	}
	return exitOK
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	common := addCommonFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winpilot check [options] <commands.yaml>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Simulate a YAML list of canonical commands against the current windows")
		fmt.Fprintln(os.Stderr, "and report violations. Use '-' to read stdin. Exit status is 3 when the")
		fmt.Fprintln(os.Stderr, "predicted layout fails validation.")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	cmds, err := readCommands(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	res, err := loadConfig(common.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	backend, closeBackend, err := openBackend(common.snapshotPath, res.Config.Display)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer closeBackend()

	ctx, cancel := signalContext()
	defer cancel()
	snap, err := backend.Snapshot(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}

	predicted := simulator.Apply(cmds, snap.Windows, snap.Displays)
	validation := newValidator(res.Config).Validate(predicted, snap.Displays)
	if err := newPrinter(os.Stdout, common.format).check(predicted, validation); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	if !validation.Valid {
		return exitNotPassed
	}
	return exitOK
}

// readCommands parses a YAML list of commands and validates each one.
func readCommands(path string) ([]command.Command, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var cmds []command.Command
	if err := yaml.Unmarshal(data, &cmds); err != nil {
		return nil, fmt.Errorf("%s: failed to parse yaml: %w", path, err)
	}
	var errs []error
	for i, c := range cmds {
		if err := c.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: command %d: %w", path, i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cmds, nil
}

func runSnapshot(args []string) int {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Config file path (default: ~/.config/winpilot/config.yaml)")
	outPath := fs.String("out", "", "Write to this file instead of stdout")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}

	res, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	backend, closeBackend, err := openBackend("", res.Config.Display)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer closeBackend()

	ctx, cancel := signalContext()
	defer cancel()
	snap, err := backend.Snapshot(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	if *outPath != "" {
		if err := platform.SaveSnapshot(*outPath, snap); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
		return exitOK
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	fmt.Print(string(data))
	return exitOK
}

func runTools(args []string) int {
	fs := flag.NewFlagSet("tools", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Config file path (default: ~/.config/winpilot/config.yaml)")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	res, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	catalog, err := loadCatalog(res.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	if err := writeCatalog(os.Stdout, catalog); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	return exitOK
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  winpilot config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  winpilot config print [--path PATH] [--defaults]")
		fmt.Fprintln(os.Stderr, "  winpilot config explain [--path PATH] <yaml.path>")
		return exitUsage
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/winpilot/config.yaml)")
		if ok, code := parseFlags(fs, args[1:]); !ok {
			return code
		}
		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
		if _, err := res.Config.LLMConfig(res.Config.Provider); err != nil {
			fmt.Printf("warning: %v\n", err)
		}
		fmt.Println("config: ok")
		return exitOK

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/winpilot/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if ok, code := parseFlags(fs, args[1:]); !ok {
			return code
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return exitFailure
			}
			for _, f := range res.Files {
				fmt.Printf("# loaded: %s\n", f)
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
		fmt.Print(string(data))
		return exitOK

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/winpilot/config.yaml)")
		if ok, code := parseFlags(fs, args[1:]); !ok {
			return code
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return exitUsage
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return exitOK

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return exitUsage
	}
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		return "default"
	default:
		return string(src.Kind)
	}
}

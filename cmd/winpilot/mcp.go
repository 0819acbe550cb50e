package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/1broseidon/winpilot/internal/config"
	"github.com/1broseidon/winpilot/internal/mcp"
)

func printMCPUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: winpilot mcp <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve    Start the MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'winpilot mcp <command> --help' for command-specific options.")
}

func runMCP(args []string) int {
	if len(args) == 0 {
		printMCPUsage(os.Stderr)
		return exitUsage
	}

	switch args[0] {
	case "serve":
		return runMCPServe(args[1:])
	case "help", "-h", "--help":
		printMCPUsage(os.Stdout)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "Unknown mcp command: %s\n\n", args[0])
		printMCPUsage(os.Stderr)
		return exitUsage
	}
}

func runMCPServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Config file path (default: ~/.config/winpilot/config.yaml)")
	snapshotPath := fs.String("snapshot", "", "Serve a YAML snapshot instead of the X server; operations are recorded, not performed")
	watch := fs.Bool("watch", true, "Reload the configuration when the file changes")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winpilot mcp serve [options]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Start the MCP server on stdio. Designed to be invoked by MCP clients,")
		fmt.Fprintln(os.Stderr, "for example:")
		fmt.Fprintln(os.Stderr, "  claude mcp add winpilot -- winpilot mcp serve")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}

	path := *configPath
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
		path = p
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitFailure
	}

	// stdout carries the protocol, so logs only ever go to stderr or a file.
	logger, err := newLogger(res.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer logger.Close()

	env, err := buildEnvironment(res.Config, logger.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure pipeline: %v\n", err)
		return exitFailure
	}
	backend, closeBackend, err := openBackend(*snapshotPath, res.Config.Display)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer closeBackend()

	planDir, err := mcp.DefaultPlanDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	server, err := mcp.NewServer(mcp.Options{
		Backend:     backend,
		Environment: env,
		Plans:       mcp.NewPlanStore(planDir, mcp.DefaultMaxPlans),
		Logger:      logger.Logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create MCP server: %v\n", err)
		return exitFailure
	}

	ctx, cancel := signalContext()
	defer cancel()

	if *watch {
		go func() {
			err := config.Watch(ctx, path, logger.Logger, func(res *config.LoadResult, err error) {
				if err != nil {
					logger.Warn("config reload failed; keeping previous settings", "error", err)
					return
				}
				env, err := buildEnvironment(res.Config, logger.Logger)
				if err != nil {
					logger.Warn("config reload failed; keeping previous settings", "error", err)
					return
				}
				server.SetEnvironment(env)
				logger.Info("config reloaded", "provider", res.Config.Provider)
			})
			if err != nil {
				logger.Warn("config watch stopped", "error", err)
			}
		}()
	}

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

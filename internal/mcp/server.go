// Package mcp exposes the arrangement pipeline as Model Context Protocol
// tools over stdio.
package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/winpilot/internal/pipeline"
	"github.com/1broseidon/winpilot/internal/platform"
	"github.com/1broseidon/winpilot/internal/prompt"
)

const (
	ServerName    = "winpilot"
	ServerVersion = "0.1.0"
)

// Environment is the reloadable part of the server: everything derived
// from the configuration file.
type Environment struct {
	Pipeline  *pipeline.Pipeline
	Prompt    prompt.Builder
	Validator pipeline.Validator
}

// Options wires a Server. Backend and Environment.Pipeline are required.
type Options struct {
	Backend     platform.Backend
	Environment Environment
	Plans       *PlanStore
	Logger      *slog.Logger
}

// Server is the MCP server for window arrangement.
type Server struct {
	mcpServer *mcpsdk.Server
	backend   platform.Backend
	plans     *PlanStore
	logger    *slog.Logger

	mu  sync.RWMutex
	env Environment
}

// NewServer creates a server and registers its tools.
func NewServer(opts Options) (*Server, error) {
	if opts.Backend == nil {
		return nil, errors.New("mcp: backend is required")
	}
	if opts.Environment.Pipeline == nil {
		return nil, errors.New("mcp: pipeline is required")
	}
	s := &Server{
		backend: opts.Backend,
		plans:   opts.Plans,
		logger:  opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.SetEnvironment(opts.Environment)

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// SetEnvironment swaps the configuration-derived parts. Calls already in
// flight finish with the environment they started with.
func (s *Server) SetEnvironment(env Environment) {
	if env.Validator == nil {
		env.Validator = env.Pipeline.Validator()
	}
	s.mu.Lock()
	s.env = env
	s.mu.Unlock()
}

func (s *Server) environment() Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "arrange_windows",
		Description: "Turn a natural-language instruction into window commands. The model's commands are simulated against the current windows and re-requested until every window keeps a usable visible area or the retry budget runs out. Set execute to apply them. The result carries a plan_id that apply_plan can apply later.",
	}, s.handleArrangeWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "check_layout",
		Description: "Simulate a list of canonical window commands against the current windows and report the predicted layout and any window whose visible area falls below the minimum. Does not call a model or move anything.",
	}, s.handleCheckLayout)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List the displays and windows the arrangement tools see, in stacking order from bottom to top.",
	}, s.handleListWindows)

	if s.plans != nil {
		mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
			Name:        "apply_plan",
			Description: "Apply the commands of a plan previously returned by arrange_windows to the current windows.",
		}, s.handleApplyPlan)
	}
}

func stepInfos(steps []platform.Step) []StepInfo {
	out := make([]StepInfo, 0, len(steps))
	for _, st := range steps {
		info := StepInfo{
			Command: st.Command.String(),
			Window:  st.Window,
			Skipped: st.Skipped,
		}
		if st.Err != nil {
			info.Error = st.Err.Error()
		}
		out = append(out, info)
	}
	return out
}

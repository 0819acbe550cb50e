package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/winpilot/internal/logging"
	"github.com/1broseidon/winpilot/internal/pipeline"
	"github.com/1broseidon/winpilot/internal/platform"
	"github.com/1broseidon/winpilot/internal/simulator"
)

const instructionPreviewLength = 80

func (s *Server) handleArrangeWindows(ctx context.Context, _ *mcpsdk.CallToolRequest, args ArrangeWindowsInput) (*mcpsdk.CallToolResult, ArrangeWindowsOutput, error) {
	instruction := strings.TrimSpace(args.Instruction)
	if instruction == "" {
		return nil, ArrangeWindowsOutput{}, errors.New("instruction is required")
	}
	env := s.environment()
	log := s.logger.With(
		"tool", "arrange_windows",
		"instruction_length", len(instruction),
		"instruction_preview", logging.Truncate(instruction, instructionPreviewLength),
	)

	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		log.Warn("snapshot failed", "error", err)
		return nil, ArrangeWindowsOutput{}, fmt.Errorf("failed to read windows: %w", err)
	}

	res, err := env.Pipeline.Run(ctx, pipeline.Input{
		Instruction: instruction,
		System:      env.Prompt.Build(snap.Windows, snap.Displays),
		Windows:     snap.Windows,
		Displays:    snap.Displays,
	})
	if err != nil {
		log.Warn("arrangement failed", "error", err)
		return nil, ArrangeWindowsOutput{}, err
	}

	out := ArrangeWindowsOutput{
		Passed:      res.Passed,
		Attempts:    res.Attempts,
		Commands:    res.Commands,
		Violations:  nonNil(res.Violations),
		Diagnostics: nonNil(res.Diagnostics),
		Truncated:   res.Truncated,
	}
	if res.LastError != nil {
		out.Warning = res.LastError.Error()
	}

	if s.plans != nil {
		plan := NewPlan(instruction, res.Passed, res.Commands)
		if err := s.plans.Save(plan); err != nil {
			log.Warn("failed to store plan", "error", err)
		} else {
			out.PlanID = plan.ID
		}
	}

	if args.Execute {
		if !res.Passed && !args.Force {
			out.Warning = joinWarning(out.Warning, "layout failed validation; not executed (set force to apply anyway)")
		} else {
			steps, err := platform.Execute(ctx, s.backend, res.Commands, snap)
			out.Executed = true
			out.Steps = stepInfos(steps)
			if err != nil {
				out.Warning = joinWarning(out.Warning, err.Error())
			}
		}
	}

	log.Info("arrangement finished",
		"passed", out.Passed,
		"attempts", out.Attempts,
		"commands", len(out.Commands),
		"executed", out.Executed,
	)
	return nil, out, nil
}

func (s *Server) handleCheckLayout(ctx context.Context, _ *mcpsdk.CallToolRequest, args CheckLayoutInput) (*mcpsdk.CallToolResult, CheckLayoutOutput, error) {
	for i, cmd := range args.Commands {
		if err := cmd.Validate(); err != nil {
			return nil, CheckLayoutOutput{}, fmt.Errorf("command %d: %w", i, err)
		}
	}
	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		return nil, CheckLayoutOutput{}, fmt.Errorf("failed to read windows: %w", err)
	}

	predicted := simulator.Apply(args.Commands, snap.Windows, snap.Displays)
	result := s.environment().Validator.Validate(predicted, snap.Displays)
	s.logger.Debug("layout checked",
		"tool", "check_layout",
		"commands", len(args.Commands),
		"valid", result.Valid,
		"violations", len(result.Violations),
	)
	return nil, CheckLayoutOutput{
		Valid:      result.Valid,
		Violations: nonNil(result.Violations),
		Predicted:  predicted,
	}, nil
}

func (s *Server) handleListWindows(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		return nil, ListWindowsOutput{}, fmt.Errorf("failed to read windows: %w", err)
	}
	return nil, ListWindowsOutput{
		Displays: nonNil(snap.Displays),
		Windows:  nonNil(snap.Windows),
	}, nil
}

func (s *Server) handleApplyPlan(ctx context.Context, _ *mcpsdk.CallToolRequest, args ApplyPlanInput) (*mcpsdk.CallToolResult, ApplyPlanOutput, error) {
	plan, err := s.plans.Load(strings.TrimSpace(args.PlanID))
	if err != nil {
		return nil, ApplyPlanOutput{}, err
	}
	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		return nil, ApplyPlanOutput{}, fmt.Errorf("failed to read windows: %w", err)
	}

	out := ApplyPlanOutput{PlanID: plan.ID, CreatedAt: plan.CreatedAt}
	if !plan.Passed {
		out.Warning = "plan failed validation when it was created"
	}
	steps, err := platform.Execute(ctx, s.backend, plan.Commands, snap)
	out.Steps = stepInfos(steps)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ApplyPlanOutput{}, err
		}
		out.Warning = joinWarning(out.Warning, err.Error())
	}
	s.logger.Info("plan applied", "tool", "apply_plan", "plan_id", plan.ID, "steps", len(out.Steps))
	return nil, out, nil
}

func joinWarning(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "; " + next
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

package mcp

import (
	"time"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/constraint"
	"github.com/1broseidon/winpilot/internal/tiling"
)

// ArrangeWindowsInput is the input for the arrange_windows tool.
type ArrangeWindowsInput struct {
	Instruction string `json:"instruction" jsonschema:"What the user wants done with their windows, e.g. put the browser on the left and the terminal on the right"`
	Execute     bool   `json:"execute,omitempty" jsonschema:"Apply the commands once the predicted layout passes validation (default: false)"`
	// Force only matters together with Execute.
	Force bool `json:"force,omitempty" jsonschema:"Apply the best candidate even when it failed validation. Only used when execute is true."`
}

// ArrangeWindowsOutput is the output for the arrange_windows tool.
type ArrangeWindowsOutput struct {
	PlanID      string                 `json:"plan_id"`
	Passed      bool                   `json:"passed"`
	Attempts    int                    `json:"attempts"`
	Commands    []command.Command      `json:"commands"`
	Violations  []constraint.Violation `json:"violations"`
	Diagnostics []string               `json:"diagnostics"`
	Truncated   bool                   `json:"truncated,omitempty"`
	Executed    bool                   `json:"executed"`
	Steps       []StepInfo             `json:"steps,omitempty"`
	Warning     string                 `json:"warning,omitempty"`
}

// StepInfo reports what happened to one command during execution.
type StepInfo struct {
	Command string `json:"command"`
	Window  string `json:"window,omitempty"`
	Skipped string `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CheckLayoutInput is the input for the check_layout tool.
type CheckLayoutInput struct {
	Commands []command.Command `json:"commands" jsonschema:"Canonical commands to simulate against the current windows, in order"`
}

// CheckLayoutOutput is the output for the check_layout tool.
type CheckLayoutOutput struct {
	Valid      bool                   `json:"valid"`
	Violations []constraint.Violation `json:"violations"`
	Predicted  []tiling.WindowState   `json:"predicted"`
}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct{}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Displays []tiling.Display     `json:"displays"`
	Windows  []tiling.WindowState `json:"windows"`
}

// ApplyPlanInput is the input for the apply_plan tool.
type ApplyPlanInput struct {
	PlanID string `json:"plan_id" jsonschema:"Plan id returned by arrange_windows"`
}

// ApplyPlanOutput is the output for the apply_plan tool.
type ApplyPlanOutput struct {
	PlanID    string     `json:"plan_id"`
	Steps     []StepInfo `json:"steps"`
	Warning   string     `json:"warning,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

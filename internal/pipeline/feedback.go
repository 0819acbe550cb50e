package pipeline

import (
	"fmt"
	"strings"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/constraint"
)

const correctiveBlock = `Your previous tool calls produced a layout where some windows are not usable.
Issue a complete new set of tool calls for the whole request. Every window that stays open must keep at least the required visible area: make small windows larger, move overlapping windows apart, lower or raise layers, or minimize windows the user did not ask to see.`

const callToolsBlock = `Your previous reply did not perform any window operation.
Respond only with tool calls from the provided tools. Do not explain the layout in prose.`

// feedback is what one attempt teaches the next.
type feedback struct {
	previous   []command.ToolInvocation
	violations []constraint.Violation
	noTools    bool
	failure    string
}

func (f feedback) empty() bool {
	return len(f.previous) == 0 && len(f.violations) == 0 && !f.noTools && f.failure == ""
}

// augment appends the correction for the next attempt to the user
// instruction. The system prompt is left untouched.
func augment(instruction string, f feedback, describe func(command.ToolInvocation) string) string {
	if f.empty() {
		return instruction
	}
	var sb strings.Builder
	sb.WriteString(instruction)
	sb.WriteString("\n\n")

	if len(f.previous) > 0 {
		sb.WriteString("Last layout attempt:\n")
		for _, inv := range f.previous {
			sb.WriteString("- ")
			sb.WriteString(describe(inv))
			sb.WriteByte('\n')
		}
	}
	if len(f.violations) > 0 {
		sb.WriteString("Violations:\n")
		for _, v := range f.violations {
			fmt.Fprintf(&sb, "- %s: visible %.0f px², required %.0f px²\n", v.WindowKey, v.ActualArea, v.RequiredArea)
		}
		switch {
		case f.failure != "":
			fmt.Fprintf(&sb, "The most recent attempt then failed: %s\n", f.failure)
		case f.noTools:
			sb.WriteString("The most recent attempt made no tool calls.\n")
		}
		sb.WriteByte('\n')
		sb.WriteString(correctiveBlock)
		return sb.String()
	}
	if f.noTools {
		sb.WriteString(callToolsBlock)
		return sb.String()
	}
	if f.failure != "" {
		sb.WriteString("The previous attempt failed: ")
		sb.WriteString(f.failure)
		sb.WriteString("\nTry again with valid tool calls.")
	}
	return strings.TrimRight(sb.String(), "\n")
}

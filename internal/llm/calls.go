package llm

import (
	"fmt"
	"strings"

	"github.com/1broseidon/winpilot/internal/command"
)

// RawCall is a tool call as it came off the wire, before argument parsing.
type RawCall struct {
	ID        string
	Name      string
	Arguments []byte
}

// SkippedCall is a tool call whose name or arguments could not be read.
type SkippedCall struct {
	Index int
	Name  string
	Err   error
}

// SkippedCallsError is returned by Invocations together with the calls
// that did parse. It never means the whole reply is unusable.
type SkippedCallsError struct {
	Provider string
	Calls    []SkippedCall
}

func (e *SkippedCallsError) Error() string {
	parts := make([]string, len(e.Calls))
	for i, c := range e.Calls {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("#%d", c.Index)
		}
		parts[i] = fmt.Sprintf("%s: %v", name, c.Err)
	}
	return fmt.Sprintf("%s: skipped %d tool call(s): %s", e.Provider, len(e.Calls), strings.Join(parts, "; "))
}

// ParseCalls converts raw calls into invocations. A call without a name or
// with unreadable arguments is left out. When the reply was cut off at the
// token limit the last call is expected to be partial and is dropped
// silently; otherwise every dropped call is listed in a *SkippedCallsError
// returned alongside the rest.
func ParseCalls(provider string, calls []RawCall, truncated bool) ([]command.ToolInvocation, error) {
	out := make([]command.ToolInvocation, 0, len(calls))
	var skipped []SkippedCall
	for i, call := range calls {
		if call.Name == "" {
			skipped = append(skipped, SkippedCall{Index: i, Err: fmt.Errorf("tool call has no name")})
			continue
		}
		args, err := command.ParseArgs(call.Arguments)
		if err != nil {
			skipped = append(skipped, SkippedCall{Index: i, Name: call.Name, Err: err})
			continue
		}
		out = append(out, command.ToolInvocation{ID: call.ID, Name: call.Name, Args: args})
	}
	if len(skipped) == 0 || truncated {
		return out, nil
	}
	return out, &SkippedCallsError{Provider: provider, Calls: skipped}
}

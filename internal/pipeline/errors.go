package pipeline

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the caller's context ends mid-run. The
// context error is wrapped alongside it.
var ErrCancelled = errors.New("pipeline cancelled")

// NoToolsUsedError means the model answered in prose instead of calling a
// tool.
type NoToolsUsedError struct {
	Text string
}

func (e *NoToolsUsedError) Error() string {
	text := e.Text
	if len(text) > 120 {
		text = text[:120] + "..."
	}
	return fmt.Sprintf("model returned text without tool calls: %q", text)
}

// NoCommandsGeneratedError means the reply held neither usable tool calls
// nor text. Skipped counts tool calls that failed translation.
type NoCommandsGeneratedError struct {
	Skipped int
}

func (e *NoCommandsGeneratedError) Error() string {
	if e.Skipped > 0 {
		return fmt.Sprintf("no commands generated: all %d tool calls were rejected", e.Skipped)
	}
	return "no commands generated"
}

// AttemptError is the terminal error of a run that never produced a
// candidate layout. It records the failing attempt and stage.
type AttemptError struct {
	Attempt int
	Stage   State
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt %d (%s): %v", e.Attempt, e.Stage, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

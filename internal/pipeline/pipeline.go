// Package pipeline turns an instruction into a validated command list: it
// asks a model for tool calls, predicts the resulting layout, checks it
// and re-prompts with the violations until the layout passes or the retry
// budget runs out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/constraint"
	"github.com/1broseidon/winpilot/internal/llm"
	"github.com/1broseidon/winpilot/internal/simulator"
	"github.com/1broseidon/winpilot/internal/tiling"
	"github.com/1broseidon/winpilot/internal/toolschema"
)

// State names a step of one run. Transitions are logged at debug level.
type State string

const (
	StateBuilding   State = "building"
	StateSent       State = "sent"
	StateTranslated State = "translated"
	StateSimulated  State = "simulated"
	StateValidated  State = "validated"
	StateRetrying   State = "retrying"
	StateDone       State = "done"
)

// Validator checks a predicted layout.
type Validator interface {
	Validate(windows []tiling.WindowState, displays []tiling.Display) constraint.ValidationResult
}

// Options tune the retry loop.
type Options struct {
	// RetryBudget is the number of attempts after the first.
	RetryBudget       int
	Temperature       float64
	TemperatureStep   float64
	MaxTemperature    float64
	OutputTokens      int
	RetryOutputFactor float64
	ForceToolCall     bool
}

// DefaultOptions returns the stock retry policy: three attempts, sampling
// temperature rising by 0.15 per retry and the output budget shrinking to
// three quarters each time.
func DefaultOptions() Options {
	return Options{
		RetryBudget:       2,
		Temperature:       0.2,
		TemperatureStep:   0.15,
		MaxTemperature:    1.0,
		OutputTokens:      4096,
		RetryOutputFactor: 0.75,
		ForceToolCall:     true,
	}
}

// generation returns the sampling settings for a 1-based attempt number.
func (o Options) generation(attempt int) llm.Generation {
	retries := float64(attempt - 1)
	temp := math.Min(o.MaxTemperature, o.Temperature+o.TemperatureStep*retries)
	tokens := o.OutputTokens
	if tokens > 0 && retries > 0 {
		tokens = int(math.Round(float64(o.OutputTokens) * math.Pow(o.RetryOutputFactor, retries)))
	}
	return llm.Generation{
		Temperature:     temp,
		MaxOutputTokens: tokens,
		ForceToolCall:   o.ForceToolCall,
	}
}

// Config wires a Pipeline. Only Adapter is required.
type Config struct {
	Adapter   llm.Adapter
	Validator Validator
	Catalog   toolschema.Catalog
	Options   *Options
	Logger    *slog.Logger
}

// Pipeline is safe for concurrent use; every Run owns its own state.
type Pipeline struct {
	adapter   llm.Adapter
	validator Validator
	catalog   toolschema.Catalog
	opts      Options
	logger    *slog.Logger
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Adapter == nil {
		return nil, errors.New("pipeline: adapter is required")
	}
	p := &Pipeline{
		adapter:   cfg.Adapter,
		validator: cfg.Validator,
		catalog:   cfg.Catalog,
		opts:      DefaultOptions(),
		logger:    cfg.Logger,
	}
	if p.validator == nil {
		p.validator = constraint.Validator{}
	}
	if len(p.catalog) == 0 {
		p.catalog = toolschema.DefaultCatalog()
	}
	if cfg.Options != nil {
		p.opts = *cfg.Options
	}
	if p.opts.RetryBudget < 0 {
		p.opts.RetryBudget = 0
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p, nil
}

// Catalog returns the tools offered to the model.
func (p *Pipeline) Catalog() toolschema.Catalog { return p.catalog }

// Validator returns the layout checker runs use.
func (p *Pipeline) Validator() Validator { return p.validator }

// Input is one arrangement request.
type Input struct {
	Instruction string
	System      llm.SystemPrompt
	Windows     []tiling.WindowState
	Displays    []tiling.Display
}

// Result is the outcome of a run that produced at least one candidate.
type Result struct {
	Commands   []command.Command
	Passed     bool
	Attempts   int
	Violations []constraint.Violation
	// Predicted is the simulated layout of Commands.
	Predicted []tiling.WindowState
	// Diagnostics collects model prose and rejected tool calls.
	Diagnostics []string
	Truncated   bool
	// LastError is set when the final attempt failed after an earlier
	// attempt had already produced the returned candidate.
	LastError error
}

type candidate struct {
	commands    []command.Command
	invocations []command.ToolInvocation
	predicted   []tiling.WindowState
	validation  constraint.ValidationResult
	truncated   bool
}

// Run executes the retry loop. It returns a Result with Passed=false when
// the budget runs out after at least one candidate, a *AttemptError when no
// attempt ever produced one, and ErrCancelled when ctx ends first.
func (p *Pipeline) Run(ctx context.Context, in Input) (Result, error) {
	maxAttempts := 1 + p.opts.RetryBudget
	var (
		best        *candidate
		lastErr     error
		fb          feedback
		diagnostics []string
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, cancelled(err)
		}
		p.transition(attempt, StateBuilding)
		req := llm.Request{
			Instruction: augment(in.Instruction, fb, toolschema.Describe),
			System:      in.System,
			Tools:       p.catalog,
			Generation:  p.opts.generation(attempt),
		}

		p.transition(attempt, StateSent)
		resp, err := p.adapter.Send(ctx, req)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, cancelled(ctxErr)
		}
		if err != nil {
			p.logger.Warn("provider call failed", append([]any{"attempt", attempt, "provider", p.adapter.Name()}, failureAttrs(err)...)...)
			lastErr = &AttemptError{Attempt: attempt, Stage: StateSent, Err: err}
			fb = best.feedback()
			fb.failure = err.Error()
			p.retryOrStop(attempt, maxAttempts)
			continue
		}
		p.logger.Debug("provider reply",
			"attempt", attempt,
			"finish_reason", resp.FinishReason(),
			"truncated", resp.Truncated(),
			"degraded", resp.Degraded(),
		)
		if text := resp.Text(); text != "" {
			diagnostics = append(diagnostics, fmt.Sprintf("attempt %d: model said: %s", attempt, text))
		}

		cmds, invs, skipped, err := p.translate(resp)
		diagnostics = append(diagnostics, prefix(attempt, skipped)...)
		if err != nil {
			p.logger.Warn("translation failed", append([]any{"attempt", attempt}, failureAttrs(err)...)...)
			lastErr = &AttemptError{Attempt: attempt, Stage: StateTranslated, Err: err}
			fb = best.feedback()
			var noTools *NoToolsUsedError
			var noCmds *NoCommandsGeneratedError
			if errors.As(err, &noTools) || errors.As(err, &noCmds) {
				fb.noTools = true
			} else {
				fb.failure = err.Error()
			}
			p.retryOrStop(attempt, maxAttempts)
			continue
		}
		p.transition(attempt, StateTranslated, "commands", len(cmds))

		if err := ctx.Err(); err != nil {
			return Result{}, cancelled(err)
		}
		predicted := simulator.Apply(cmds, in.Windows, in.Displays)
		p.transition(attempt, StateSimulated, "windows", len(predicted))

		validation := p.validator.Validate(predicted, in.Displays)
		p.transition(attempt, StateValidated, "valid", validation.Valid, "violations", len(validation.Violations))

		best = &candidate{
			commands:    cmds,
			invocations: invs,
			predicted:   predicted,
			validation:  validation,
			truncated:   resp.Truncated(),
		}
		lastErr = nil
		if validation.Valid {
			p.transition(attempt, StateDone, "passed", true)
			return best.result(attempt, true, diagnostics, nil), nil
		}
		fb = best.feedback()
		p.retryOrStop(attempt, maxAttempts)
	}

	if best == nil {
		p.transition(maxAttempts, StateDone, "passed", false, "error", lastErr)
		return Result{}, lastErr
	}
	p.logger.Info("retry budget exhausted",
		"attempts", maxAttempts,
		"violations", len(best.validation.Violations),
	)
	p.transition(maxAttempts, StateDone, "passed", false)
	return best.result(maxAttempts, false, diagnostics, lastErr), nil
}

// feedback carries the candidate's calls and violations into the next
// prompt. A nil candidate teaches nothing.
func (c *candidate) feedback() feedback {
	if c == nil {
		return feedback{}
	}
	return feedback{previous: c.invocations, violations: c.validation.Violations}
}

func (c *candidate) result(attempts int, passed bool, diagnostics []string, lastErr error) Result {
	return Result{
		Commands:    c.commands,
		Passed:      passed,
		Attempts:    attempts,
		Violations:  c.validation.Violations,
		Predicted:   c.predicted,
		Diagnostics: diagnostics,
		Truncated:   c.truncated,
		LastError:   lastErr,
	}
}

// translate extracts commands. Invalid individual calls are skipped and
// reported; an answer with nothing usable is an error.
func (p *Pipeline) translate(resp llm.Response) ([]command.Command, []command.ToolInvocation, []string, error) {
	invs, err := resp.Invocations()
	var skipped []string
	var unreadable *llm.SkippedCallsError
	if errors.As(err, &unreadable) {
		for _, c := range unreadable.Calls {
			name := c.Name
			if name == "" {
				name = fmt.Sprintf("call %d", c.Index)
			}
			skipped = append(skipped, fmt.Sprintf("skipped %s: %v", name, c.Err))
		}
		err = nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if len(invs) == 0 {
		if len(skipped) > 0 {
			return nil, nil, skipped, &NoCommandsGeneratedError{Skipped: len(skipped)}
		}
		if text := resp.Text(); text != "" {
			return nil, nil, nil, &NoToolsUsedError{Text: text}
		}
		return nil, nil, nil, &NoCommandsGeneratedError{}
	}

	cmds := make([]command.Command, 0, len(invs))
	kept := make([]command.ToolInvocation, 0, len(invs))
	for _, inv := range invs {
		cmd, err := p.catalog.Translate(inv)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("skipped %s: %v", toolschema.Describe(inv), err))
			continue
		}
		cmds = append(cmds, cmd)
		kept = append(kept, inv)
	}
	if len(cmds) == 0 {
		return nil, nil, skipped, &NoCommandsGeneratedError{Skipped: len(skipped)}
	}
	return cmds, kept, skipped, nil
}

func (p *Pipeline) retryOrStop(attempt, maxAttempts int) {
	if attempt < maxAttempts {
		p.transition(attempt, StateRetrying)
	}
}

func (p *Pipeline) transition(attempt int, s State, attrs ...any) {
	args := append([]any{"attempt", attempt, "state", string(s)}, attrs...)
	p.logger.Debug("pipeline state", args...)
}

// failureAttrs describes a failed attempt for the log.
func failureAttrs(err error) []any {
	attrs := []any{"retryable", llm.IsRetryable(err), "error", err}
	var netErr *llm.NetworkError
	if errors.As(err, &netErr) {
		attrs = append(attrs, "timeout", netErr.Timeout())
	}
	return attrs
}

func prefix(attempt int, lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = fmt.Sprintf("attempt %d: %s", attempt, l)
	}
	return out
}

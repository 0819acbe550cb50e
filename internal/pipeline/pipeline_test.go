package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/constraint"
	"github.com/1broseidon/winpilot/internal/llm"
	"github.com/1broseidon/winpilot/internal/tiling"
)

type stubResponse struct {
	llm.Meta
	invs []command.ToolInvocation
	err  error
}

func (r stubResponse) Invocations() ([]command.ToolInvocation, error) { return r.invs, r.err }

func toolReply(invs ...command.ToolInvocation) stubResponse {
	return stubResponse{Meta: llm.NewMeta("stub", "", "stop", false, false), invs: invs}
}

func textReply(text string) stubResponse {
	return stubResponse{Meta: llm.NewMeta("stub", text, "stop", false, false)}
}

type step struct {
	resp llm.Response
	err  error
}

// stubAdapter replays steps in order and records every request. The last
// step repeats once the script runs out.
type stubAdapter struct {
	mu       sync.Mutex
	steps    []step
	requests []llm.Request
	onSend   func(n int)
}

func (a *stubAdapter) Name() string { return "stub" }

func (a *stubAdapter) Send(ctx context.Context, req llm.Request) (llm.Response, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	n := len(a.requests)
	s := a.steps[min(n, len(a.steps))-1]
	hook := a.onSend
	a.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return s.resp, s.err
}

func (a *stubAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

type alwaysViolating struct{}

func (alwaysViolating) Validate(windows []tiling.WindowState, _ []tiling.Display) constraint.ValidationResult {
	return constraint.ValidationResult{Valid: false, Violations: []constraint.Violation{
		{WindowKey: "Safari", RequiredArea: 10000, ActualArea: 42},
	}}
}

var laptop = []tiling.Display{{Index: 0, Name: "eDP-1", Bounds: tiling.Rect{Width: 1440, Height: 900}}}

func baseInput() Input {
	return Input{
		Instruction: "put safari on the left and terminal on the right",
		System:      llm.SystemPrompt{Instructions: "arrange"},
		Windows: []tiling.WindowState{
			{AppID: "Safari", Frame: tiling.Rect{Width: 1440, Height: 900}},
			{AppID: "Terminal", Frame: tiling.Rect{X: 100, Y: 100, Width: 600, Height: 400}, Layer: 1},
		},
		Displays: laptop,
	}
}

func move(app, pos string) command.ToolInvocation {
	return command.ToolInvocation{Name: "move_window", Args: command.Args{
		{Key: "app", Value: command.StringValue(app)},
		{Key: "position", Value: command.StringValue(pos)},
		{Key: "size", Value: command.StringValue("half")},
	}}
}

func tiny(app string) command.ToolInvocation {
	return command.ToolInvocation{Name: "move_window", Args: command.Args{
		{Key: "app", Value: command.StringValue(app)},
		{Key: "x", Value: command.IntValue(0)},
		{Key: "y", Value: command.IntValue(0)},
		{Key: "width", Value: command.IntValue(3)},
		{Key: "height", Value: command.IntValue(3)},
	}}
}

func newPipeline(t *testing.T, adapter llm.Adapter, v Validator) *Pipeline {
	t.Helper()
	p, err := New(Config{Adapter: adapter, Validator: v})
	require.NoError(t, err)
	return p
}

func TestRunPassesFirstAttempt(t *testing.T) {
	adapter := &stubAdapter{steps: []step{{resp: toolReply(move("Safari", "left"), move("Terminal", "right"))}}}
	res, err := newPipeline(t, adapter, nil).Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.True(t, res.Passed)
	require.Equal(t, 1, res.Attempts)
	require.Len(t, res.Commands, 2)
	require.Equal(t, tiling.Rect{X: 720, Width: 720, Height: 900}, res.Predicted[1].Frame)
	require.Equal(t, 1, adapter.calls())

	gen := adapter.requests[0].Generation
	require.InDelta(t, 0.2, gen.Temperature, 1e-9)
	require.Equal(t, 4096, gen.MaxOutputTokens)
	require.True(t, gen.ForceToolCall)
	require.Equal(t, baseInput().Instruction, adapter.requests[0].Instruction)
}

func TestRunExhaustsBudgetWithoutError(t *testing.T) {
	adapter := &stubAdapter{steps: []step{
		{resp: toolReply(move("Safari", "left"))},
		{resp: toolReply(move("Safari", "right"))},
		{resp: toolReply(move("Safari", "top"))},
	}}
	res, err := newPipeline(t, adapter, alwaysViolating{}).Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.False(t, res.Passed)
	require.Equal(t, 3, adapter.calls())
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, command.PositionTop, res.Commands[0].Position)
	require.Len(t, res.Violations, 1)
	require.NoError(t, res.LastError)
}

func TestRunRetryBudgetIsConfigurable(t *testing.T) {
	adapter := &stubAdapter{steps: []step{{resp: toolReply(move("Safari", "left"))}}}
	opts := DefaultOptions()
	opts.RetryBudget = 4
	p, err := New(Config{Adapter: adapter, Validator: alwaysViolating{}, Options: &opts})
	require.NoError(t, err)
	res, err := p.Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.False(t, res.Passed)
	require.Equal(t, 5, adapter.calls())
}

func TestRunRetryAugmentsPromptAndRelaxesGeneration(t *testing.T) {
	adapter := &stubAdapter{steps: []step{
		{resp: toolReply(tiny("Safari"))},
		{resp: toolReply(move("Safari", "left"))},
	}}
	res, err := newPipeline(t, adapter, constraint.Validator{}).Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.True(t, res.Passed)
	require.Equal(t, 2, res.Attempts)

	retry := adapter.requests[1]
	require.True(t, strings.HasPrefix(retry.Instruction, baseInput().Instruction))
	require.Contains(t, retry.Instruction, "Safari: visible 1166 px², required 10000 px²")
	require.Contains(t, retry.Instruction, `move_window(app="Safari", x=0, y=0, width=3, height=3)`)
	require.Contains(t, retry.Instruction, correctiveBlock)
	require.InDelta(t, 0.35, retry.Generation.Temperature, 1e-9)
	require.Equal(t, 3072, retry.Generation.MaxOutputTokens)
	require.Equal(t, adapter.requests[0].System, retry.System)
}

func TestRunTemperatureIsCapped(t *testing.T) {
	opts := DefaultOptions()
	opts.Temperature = 0.9
	gen := opts.generation(3)
	require.InDelta(t, 1.0, gen.Temperature, 1e-9)
	require.Equal(t, 2304, gen.MaxOutputTokens)
}

func TestRunFreeTextOnlyIsTerminalAfterBudget(t *testing.T) {
	adapter := &stubAdapter{steps: []step{{resp: textReply("I would put Safari on the left.")}}}
	_, err := newPipeline(t, adapter, nil).Run(context.Background(), baseInput())
	require.Error(t, err)
	require.Equal(t, 3, adapter.calls())

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	require.Equal(t, 3, attemptErr.Attempt)
	var noTools *NoToolsUsedError
	require.ErrorAs(t, err, &noTools)
	require.Contains(t, noTools.Text, "Safari")

	require.Contains(t, adapter.requests[1].Instruction, callToolsBlock)
}

func TestRunFreeTextThenTools(t *testing.T) {
	adapter := &stubAdapter{steps: []step{
		{resp: textReply("Sure, here's my plan.")},
		{resp: toolReply(move("Safari", "left"))},
	}}
	res, err := newPipeline(t, adapter, nil).Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.True(t, res.Passed)
	require.Equal(t, 2, res.Attempts)
	require.NotEmpty(t, res.Diagnostics)
}

func TestRunEmptyReplyIsNoCommands(t *testing.T) {
	adapter := &stubAdapter{steps: []step{{resp: toolReply()}}}
	_, err := newPipeline(t, adapter, nil).Run(context.Background(), baseInput())
	var noCmds *NoCommandsGeneratedError
	require.ErrorAs(t, err, &noCmds)
}

func TestRunAllCallsRejected(t *testing.T) {
	bad := command.ToolInvocation{Name: "teleport_window", Args: command.Args{{Key: "app", Value: command.StringValue("Safari")}}}
	adapter := &stubAdapter{steps: []step{{resp: toolReply(bad)}}}
	_, err := newPipeline(t, adapter, nil).Run(context.Background(), baseInput())
	var noCmds *NoCommandsGeneratedError
	require.ErrorAs(t, err, &noCmds)
	require.Equal(t, 1, noCmds.Skipped)
}

func TestRunSkipsInvalidCallsAndKeepsRest(t *testing.T) {
	bad := command.ToolInvocation{Name: "move_window", Args: command.Args{{Key: "app", Value: command.StringValue("Safari")}}}
	adapter := &stubAdapter{steps: []step{{resp: toolReply(bad, move("Terminal", "right"))}}}
	res, err := newPipeline(t, adapter, nil).Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.Len(t, res.Commands, 1)
	require.Len(t, res.Diagnostics, 1)
	require.Contains(t, res.Diagnostics[0], "skipped move_window")
}

func TestRunKeepsCallsBesideUnreadableOnes(t *testing.T) {
	reply := toolReply(move("Safari", "left"), move("Terminal", "right"))
	reply.err = &llm.SkippedCallsError{Provider: "stub", Calls: []llm.SkippedCall{
		{Index: 2, Name: "focus_window", Err: command.ErrUnsupportedValue},
	}}
	adapter := &stubAdapter{steps: []step{{resp: reply}}}
	res, err := newPipeline(t, adapter, nil).Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.True(t, res.Passed)
	require.Len(t, res.Commands, 2)
	require.Equal(t, 1, adapter.calls())
	require.Len(t, res.Diagnostics, 1)
	require.Contains(t, res.Diagnostics[0], "skipped focus_window")
}

func TestRunOnlyUnreadableCallsIsNoCommands(t *testing.T) {
	reply := toolReply()
	reply.err = &llm.SkippedCallsError{Provider: "stub", Calls: []llm.SkippedCall{
		{Index: 0, Name: "move_window", Err: command.ErrUnsupportedValue},
		{Index: 1, Err: errors.New("tool call has no name")},
	}}
	adapter := &stubAdapter{steps: []step{{resp: reply}}}
	_, err := newPipeline(t, adapter, nil).Run(context.Background(), baseInput())
	var noCmds *NoCommandsGeneratedError
	require.ErrorAs(t, err, &noCmds)
	require.Equal(t, 2, noCmds.Skipped)
	require.Equal(t, 3, adapter.calls())
	require.Contains(t, adapter.requests[1].Instruction, callToolsBlock)
}

func TestRunRetryKeepsViolationsAcrossFailedAttempt(t *testing.T) {
	adapter := &stubAdapter{steps: []step{
		{resp: toolReply(tiny("Safari"))},
		{err: &llm.HTTPError{Provider: "stub", StatusCode: 502}},
		{resp: toolReply(move("Safari", "left"))},
	}}
	res, err := newPipeline(t, adapter, constraint.Validator{}).Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.True(t, res.Passed)
	require.Equal(t, 3, res.Attempts)

	third := adapter.requests[2].Instruction
	require.Contains(t, third, "Safari: visible 1166 px², required 10000 px²")
	require.Contains(t, third, `move_window(app="Safari", x=0, y=0, width=3, height=3)`)
	require.Contains(t, third, "http 502")
	require.Contains(t, third, correctiveBlock)
}

func TestRunLogsFailureKind(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	adapter := &stubAdapter{steps: []step{
		{err: &llm.NetworkError{Provider: "stub", Err: context.DeadlineExceeded}},
		{resp: toolReply(move("Safari", "left"))},
	}}
	p, err := New(Config{Adapter: adapter, Logger: logger})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.True(t, res.Passed)

	out := buf.String()
	require.Contains(t, out, "retryable=true")
	require.Contains(t, out, "timeout=true")
	require.Contains(t, out, "finish_reason=stop")
}

func TestRunAdapterErrorThenSuccess(t *testing.T) {
	adapter := &stubAdapter{steps: []step{
		{err: &llm.HTTPError{Provider: "stub", StatusCode: 502}},
		{resp: toolReply(move("Safari", "left"))},
	}}
	res, err := newPipeline(t, adapter, nil).Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.True(t, res.Passed)
	require.Contains(t, adapter.requests[1].Instruction, "http 502")
}

func TestRunAdapterErrorsOnEveryAttempt(t *testing.T) {
	adapter := &stubAdapter{steps: []step{{err: &llm.NetworkError{Provider: "stub", Err: errors.New("connection refused")}}}}
	_, err := newPipeline(t, adapter, nil).Run(context.Background(), baseInput())
	var netErr *llm.NetworkError
	require.ErrorAs(t, err, &netErr)
	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	require.Equal(t, StateSent, attemptErr.Stage)
	require.Equal(t, 3, adapter.calls())
}

func TestRunFinalAttemptErrorKeepsEarlierCandidate(t *testing.T) {
	adapter := &stubAdapter{steps: []step{
		{resp: toolReply(tiny("Safari"))},
		{resp: toolReply(tiny("Safari"))},
		{err: &llm.InvalidResponseError{Provider: "stub", Reason: "no choices"}},
	}}
	res, err := newPipeline(t, adapter, nil).Run(context.Background(), baseInput())
	require.NoError(t, err)
	require.False(t, res.Passed)
	require.Len(t, res.Commands, 1)
	require.Equal(t, 3, res.Attempts)
	var invErr *llm.InvalidResponseError
	require.ErrorAs(t, res.LastError, &invErr)
}

func TestRunCancelledDuringSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapter := &stubAdapter{
		steps:  []step{{resp: toolReply(move("Safari", "left"))}},
		onSend: func(int) { cancel() },
	}
	res, err := newPipeline(t, adapter, nil).Run(ctx, baseInput())
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, res.Commands)
	require.Equal(t, 1, adapter.calls())
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	adapter := &stubAdapter{steps: []step{{resp: toolReply(move("Safari", "left"))}}}
	_, err := newPipeline(t, adapter, nil).Run(ctx, baseInput())
	require.ErrorIs(t, err, ErrCancelled)
	require.Zero(t, adapter.calls())
}

func TestNewRequiresAdapter(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

// perAppAdapter answers each instruction with a move for the app it names.
type perAppAdapter struct {
	inflight atomic.Int32
	peak     atomic.Int32
}

func (a *perAppAdapter) Name() string { return "per-app" }

func (a *perAppAdapter) Send(ctx context.Context, req llm.Request) (llm.Response, error) {
	n := a.inflight.Add(1)
	defer a.inflight.Add(-1)
	for {
		peak := a.peak.Load()
		if n <= peak || a.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	app := strings.Fields(req.Instruction)[0]
	return toolReply(move(app, "left")), nil
}

func TestRunAllKeepsOrderAndLimit(t *testing.T) {
	adapter := &perAppAdapter{}
	p := newPipeline(t, adapter, nil)

	var inputs []Input
	for i := 0; i < 6; i++ {
		in := baseInput()
		app := fmt.Sprintf("App%d", i)
		in.Instruction = app + " to the left"
		in.Windows = []tiling.WindowState{{AppID: app, Frame: tiling.Rect{Width: 300, Height: 300}}}
		inputs = append(inputs, in)
	}
	outcomes := p.RunAll(context.Background(), inputs, 2)
	require.Len(t, outcomes, 6)
	for i, out := range outcomes {
		require.NoError(t, out.Err)
		require.True(t, out.Result.Passed)
		require.Equal(t, fmt.Sprintf("App%d", i), out.Result.Commands[0].Target)
	}
	require.LessOrEqual(t, adapter.peak.Load(), int32(2))
}

package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/simulator"
	"github.com/1broseidon/winpilot/internal/tiling"
)

// Step records what Execute did for one command.
type Step struct {
	Command command.Command
	Window  string
	// Skipped explains why nothing was sent; empty when the command ran.
	Skipped string
	Err     error
}

// Execute carries out cmds in order. Target resolution and geometry come
// from the simulator, so commands act on the windows and frames the
// validator saw. A failing command is recorded and the rest still run;
// the returned error joins every failure.
func Execute(ctx context.Context, d Driver, cmds []command.Command, snap Snapshot) ([]Step, error) {
	state := tiling.CloneWindows(snap.Windows)
	steps := make([]Step, 0, len(cmds))
	var errs []error

	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		step := Step{Command: cmd}
		idx := simulator.FindTarget(state, cmd.Target)
		if idx < 0 {
			step.Skipped = "no matching window"
			steps = append(steps, step)
			continue
		}
		w := state[idx]
		step.Window = w.Key()
		if w.WindowID == "" {
			step.Skipped = "window has no id"
			steps = append(steps, step)
			continue
		}

		next := simulator.Apply([]command.Command{cmd}, state, snap.Displays)
		if err := apply(d, cmd, w, next, idx, snap.Displays); err != nil {
			step.Err = err
			errs = append(errs, fmt.Errorf("%s: %w", cmd, err))
		} else {
			state = next
		}
		steps = append(steps, step)
	}
	return steps, errors.Join(errs...)
}

func apply(d Driver, cmd command.Command, before tiling.WindowState, next []tiling.WindowState, idx int, displays []tiling.Display) error {
	id := before.WindowID
	switch cmd.Action {
	case command.ActionClose:
		return d.Close(id)
	case command.ActionMinimize:
		return d.Minimize(id)
	case command.ActionRestore, command.ActionFocus:
		if err := d.Activate(id); err != nil {
			return err
		}
		return raiseIfTop(d, cmd, next, idx)
	}

	after := next[idx]
	if before.Minimized {
		if err := d.Activate(id); err != nil {
			return err
		}
	}
	display, ok := tiling.FindDisplay(displays, after.DisplayIndex)
	if !ok {
		return fmt.Errorf("unknown display %d", after.DisplayIndex)
	}
	global := after.Frame
	global.X += display.Bounds.X
	global.Y += display.Bounds.Y
	if err := d.MoveResize(id, global); err != nil {
		return err
	}
	if cmd.Focus != nil && *cmd.Focus {
		if err := d.Activate(id); err != nil {
			return err
		}
	}
	return raiseIfTop(d, cmd, next, idx)
}

// raiseIfTop raises the window when the command moved it to the highest
// layer on its display.
func raiseIfTop(d Driver, cmd command.Command, windows []tiling.WindowState, idx int) error {
	if cmd.Layer == nil {
		return nil
	}
	w := windows[idx]
	for i, other := range windows {
		if i != idx && other.DisplayIndex == w.DisplayIndex && !other.Minimized && other.Layer > w.Layer {
			return nil
		}
	}
	return d.Raise(w.WindowID)
}

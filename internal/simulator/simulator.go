// Package simulator predicts the window layout that results from applying
// canonical commands to a snapshot. It performs no I/O and never mutates
// its inputs, so concurrent callers may share snapshots freely.
package simulator

import (
	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/tiling"
)

// Apply runs commands in order against a copy of baseline and returns the
// predicted snapshot. Later commands for the same window override earlier
// ones. Commands whose target matches no window are skipped: they usually
// refer to a window that does not exist yet.
func Apply(commands []command.Command, baseline []tiling.WindowState, displays []tiling.Display) []tiling.WindowState {
	working := tiling.CloneWindows(baseline)
	for _, cmd := range commands {
		working = step(working, cmd, displays)
	}
	if working == nil {
		return []tiling.WindowState{}
	}
	return working
}

func step(windows []tiling.WindowState, cmd command.Command, displays []tiling.Display) []tiling.WindowState {
	idx := FindTarget(windows, cmd.Target)
	if idx < 0 {
		return windows
	}

	if cmd.Action == command.ActionClose {
		out := make([]tiling.WindowState, 0, len(windows)-1)
		out = append(out, windows[:idx]...)
		return append(out, windows[idx+1:]...)
	}

	next := transform(windows[idx], cmd, displays)
	out := tiling.CloneWindows(windows)
	out[idx] = next
	return out
}

// FindTarget returns the index of the first window matching target, or -1.
// A target of the form "app#window" must match both parts.
func FindTarget(windows []tiling.WindowState, target string) int {
	appID, windowID := command.SplitTarget(target)
	for i, w := range windows {
		if windowID != "" && w.WindowID == windowID && w.AppID == appID {
			return i
		}
	}
	for i, w := range windows {
		if w.AppID == target {
			return i
		}
	}
	if windowID != "" {
		return -1
	}
	for i, w := range windows {
		if w.AppID == appID {
			return i
		}
	}
	return -1
}

// transform returns the window as it looks after cmd. w is a copy.
func transform(w tiling.WindowState, cmd command.Command, displays []tiling.Display) tiling.WindowState {
	if cmd.Layer != nil {
		w.Layer = *cmd.Layer
	}

	switch cmd.Action {
	case command.ActionMove, command.ActionCompositePosition:
		if cmd.Display != nil {
			if _, ok := tiling.FindDisplay(displays, *cmd.Display); ok {
				w.DisplayIndex = *cmd.Display
			}
		}
		bounds, ok := displayBounds(displays, w.DisplayIndex)
		if !ok {
			return w
		}
		if frame, ok := placementFrame(w.Frame, bounds, cmd); ok {
			w.Frame = frame
		}
		w.Minimized = false

	case command.ActionResize:
		bounds, ok := displayBounds(displays, w.DisplayIndex)
		if !ok {
			return w
		}
		w.Frame = resizedFrame(w.Frame, bounds, cmd)

	case command.ActionMinimize:
		w.Minimized = true

	case command.ActionRestore:
		w.Minimized = false

	case command.ActionFocus:
		// Focus changes input routing only; stacking is driven by Layer.
	}
	return w
}

func displayBounds(displays []tiling.Display, index int) (tiling.Rect, bool) {
	d, ok := tiling.FindDisplay(displays, index)
	if !ok {
		return tiling.Rect{}, false
	}
	return d.LocalBounds(), true
}

// placementFrame computes a move target. Custom components win over
// symbolic ones; a custom position alone keeps the current size and a
// custom size alone keeps the current origin.
func placementFrame(current, bounds tiling.Rect, cmd command.Command) (tiling.Rect, bool) {
	if cmd.HasCustom() {
		frame := current
		if p := cmd.CustomPosition; p != nil {
			at := tiling.Resolve(bounds, tiling.Percent{X: p.X, Y: p.Y})
			frame.X, frame.Y = at.X, at.Y
		}
		if e := cmd.CustomSize; e != nil {
			ext := tiling.Resolve(bounds, tiling.Percent{Width: e.Width, Height: e.Height})
			frame.Width, frame.Height = ext.Width, ext.Height
		}
		return frame, true
	}
	pct, err := tiling.SymbolicPlacement(cmd.Position, cmd.Size)
	if err != nil {
		return current, false
	}
	return tiling.Resolve(bounds, pct), true
}

func resizedFrame(current, bounds tiling.Rect, cmd command.Command) tiling.Rect {
	frame := current
	if e := cmd.CustomSize; e != nil {
		frame.Width = bounds.Width * e.Width / 100
		frame.Height = bounds.Height * e.Height / 100
		return frame
	}
	if cmd.Position != "" {
		if pct, err := tiling.SymbolicPlacement(cmd.Position, cmd.Size); err == nil {
			return tiling.Resolve(bounds, pct)
		}
		return frame
	}
	if f, err := tiling.SizeFraction(cmd.Size); err == nil {
		frame.Width = bounds.Width * f / 100
	}
	return frame
}

// Package prompt assembles the system prompt handed to the model from the
// configured instructions, the current displays and windows, and the
// user's standing preferences.
package prompt

import (
	"fmt"
	"strings"

	"github.com/1broseidon/winpilot/internal/llm"
	"github.com/1broseidon/winpilot/internal/prefs"
	"github.com/1broseidon/winpilot/internal/tiling"
)

// DefaultInstructions is used when the configuration supplies none.
const DefaultInstructions = `You arrange application windows on the user's displays.
Use only the provided tools. Issue one tool call per window you change, in the order they should be applied.
Refer to applications by the identifier shown in the window list; add window_id when an application has several windows.
Positions and sizes are relative to the window's display. Custom x, y, width and height are percentages from 0 to 100.
Every visible window must keep a usable area: do not stack windows on top of each other unless asked, and minimize windows that should get out of the way.`

// Builder renders system prompts. The zero value uses DefaultInstructions
// and lists every window.
type Builder struct {
	Instructions string
	// MaxWindows caps the inventory (0 = all).
	MaxWindows  int
	Preferences []prefs.Preference
}

// Build returns the system prompt for one request.
func (b Builder) Build(windows []tiling.WindowState, displays []tiling.Display) llm.SystemPrompt {
	instructions := strings.TrimSpace(b.Instructions)
	if instructions == "" {
		instructions = DefaultInstructions
	}

	lines := make([]string, 0, len(windows))
	for _, w := range windows {
		lines = append(lines, WindowLine(w))
	}
	if b.MaxWindows > 0 && len(lines) > b.MaxWindows {
		omitted := len(lines) - b.MaxWindows
		lines = append(lines[:b.MaxWindows:b.MaxWindows], fmt.Sprintf("(%d more windows omitted)", omitted))
	}

	return llm.SystemPrompt{
		Instructions: instructions,
		Geometry:     Geometry(displays),
		Windows:      lines,
		Context:      prefs.Render(b.Preferences),
	}
}

// Geometry describes each display on its own line.
func Geometry(displays []tiling.Display) string {
	var sb strings.Builder
	for i, d := range displays {
		if i > 0 {
			sb.WriteByte('\n')
		}
		x, y, w, h := d.Bounds.Pixels()
		fmt.Fprintf(&sb, "- display %d", d.Index)
		if d.Name != "" {
			fmt.Fprintf(&sb, " (%s)", d.Name)
		}
		fmt.Fprintf(&sb, ": %dx%d at %+d%+d", w, h, x, y)
	}
	return sb.String()
}

// WindowLine renders one inventory entry, e.g.
// "- Safari#12 display=0 at 0,0 size 720x900 layer=2".
func WindowLine(w tiling.WindowState) string {
	x, y, width, height := w.Frame.Pixels()
	line := fmt.Sprintf("- %s display=%d at %d,%d size %dx%d layer=%d",
		w.Key(), w.DisplayIndex, x, y, width, height, w.Layer)
	if w.Minimized {
		line += " minimized"
	}
	return line
}

package tiling

// Display describes one output. Bounds are in the window system's global
// coordinate space; window frames are relative to Bounds' origin.
type Display struct {
	Index  int    `yaml:"index" json:"index"`
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Bounds Rect   `yaml:"bounds" json:"bounds"`
}

// LocalBounds returns the display area in display-local coordinates.
func (d Display) LocalBounds() Rect {
	return Rect{Width: d.Bounds.Width, Height: d.Bounds.Height}
}

// FindDisplay returns the display with the given index.
func FindDisplay(displays []Display, index int) (Display, bool) {
	for _, d := range displays {
		if d.Index == index {
			return d, true
		}
	}
	return Display{}, false
}

// WindowState is an immutable snapshot of one window.
type WindowState struct {
	AppID        string `yaml:"app_id" json:"app_id"`
	WindowID     string `yaml:"window_id,omitempty" json:"window_id,omitempty"`
	Frame        Rect   `yaml:"frame" json:"frame"`
	Layer        int    `yaml:"layer" json:"layer"`
	DisplayIndex int    `yaml:"display" json:"display"`
	Minimized    bool   `yaml:"minimized,omitempty" json:"minimized,omitempty"`
}

// Key identifies the window in violations and prompts.
func (w WindowState) Key() string {
	if w.WindowID == "" {
		return w.AppID
	}
	return w.AppID + "#" + w.WindowID
}

// CloneWindows copies a snapshot so callers can derive a new one without
// touching the original.
func CloneWindows(windows []WindowState) []WindowState {
	if windows == nil {
		return nil
	}
	out := make([]WindowState, len(windows))
	copy(out, windows)
	return out
}

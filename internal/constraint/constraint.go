// Package constraint checks that every window in a predicted layout keeps a
// usable visible area once stacking order is taken into account.
package constraint

import (
	"fmt"
	"strings"

	"github.com/1broseidon/winpilot/internal/tiling"
)

// DefaultMinVisibleArea is a 100x100 px clickable surface.
const DefaultMinVisibleArea = 10000.0

// Violation records one window that fell below the visible-area floor.
type Violation struct {
	WindowKey    string  `json:"window" yaml:"window"`
	RequiredArea float64 `json:"required_area" yaml:"required_area"`
	ActualArea   float64 `json:"actual_area" yaml:"actual_area"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: visible %.0f px² < required %.0f px²", v.WindowKey, v.ActualArea, v.RequiredArea)
}

// ValidationResult is the outcome of Validate. Violations follow the order
// of the input snapshot.
type ValidationResult struct {
	Valid      bool        `json:"valid" yaml:"valid"`
	Violations []Violation `json:"violations,omitempty" yaml:"violations,omitempty"`
}

// Summary renders violations one per line.
func (r ValidationResult) Summary() string {
	if r.Valid {
		return "ok"
	}
	lines := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		lines = append(lines, v.String())
	}
	return strings.Join(lines, "\n")
}

// Validator checks snapshots against a minimum visible area. The zero
// value uses DefaultMinVisibleArea.
type Validator struct {
	MinVisibleArea float64
}

// New returns a validator with the given floor; non-positive values fall
// back to DefaultMinVisibleArea.
func New(minVisibleArea float64) Validator {
	return Validator{MinVisibleArea: minVisibleArea}
}

func (v Validator) floor() float64 {
	if v.MinVisibleArea <= 0 {
		return DefaultMinVisibleArea
	}
	return v.MinVisibleArea
}

// Validate computes the visible area of every non-minimized window and
// reports each one below the floor.
func (v Validator) Validate(windows []tiling.WindowState, displays []tiling.Display) ValidationResult {
	required := v.floor()
	result := ValidationResult{Valid: true}
	for i, w := range windows {
		if w.Minimized {
			continue
		}
		actual := VisibleArea(windows, displays, i)
		if actual < required {
			result.Valid = false
			result.Violations = append(result.Violations, Violation{
				WindowKey:    w.Key(),
				RequiredArea: required,
				ActualArea:   actual,
			})
		}
	}
	return result
}

// VisibleArea returns the on-screen area of windows[i] not covered by any
// window in front of it on the same display. A window is in front when its
// layer is higher, or equal with a later index. Minimized windows neither
// occlude nor are measured (they report 0).
func VisibleArea(windows []tiling.WindowState, displays []tiling.Display, i int) float64 {
	if i < 0 || i >= len(windows) {
		return 0
	}
	w := windows[i]
	if w.Minimized {
		return 0
	}
	d, ok := tiling.FindDisplay(displays, w.DisplayIndex)
	if !ok {
		return 0
	}
	visible := w.Frame.Intersect(d.LocalBounds())
	if visible.Empty() {
		return 0
	}

	pieces := []tiling.Rect{visible}
	for j, other := range windows {
		if j == i || other.Minimized || other.DisplayIndex != w.DisplayIndex {
			continue
		}
		if !inFront(other, j, w, i) {
			continue
		}
		pieces = subtractAll(pieces, other.Frame)
		if len(pieces) == 0 {
			return 0
		}
	}
	return tiling.TotalArea(pieces)
}

func inFront(a tiling.WindowState, ai int, b tiling.WindowState, bi int) bool {
	if a.Layer != b.Layer {
		return a.Layer > b.Layer
	}
	return ai > bi
}

// subtractAll removes hole from every piece. The pieces stay disjoint
// because each one is split independently.
func subtractAll(pieces []tiling.Rect, hole tiling.Rect) []tiling.Rect {
	out := make([]tiling.Rect, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, p.Subtract(hole)...)
	}
	return out
}

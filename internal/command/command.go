package command

import (
	"fmt"
	"strings"
)

// Action identifies the window operation a Command requests.
type Action string

const (
	ActionMove              Action = "move"
	ActionResize            Action = "resize"
	ActionFocus             Action = "focus"
	ActionMinimize          Action = "minimize"
	ActionRestore           Action = "restore"
	ActionClose             Action = "close"
	ActionCompositePosition Action = "composite-position"
)

// Position is a symbolic screen anchor.
type Position string

const (
	PositionLeft        Position = "left"
	PositionRight       Position = "right"
	PositionTop         Position = "top"
	PositionBottom      Position = "bottom"
	PositionCenter      Position = "center"
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
	PositionFull        Position = "full"
)

// Size is a symbolic fraction of the display.
type Size string

const (
	SizeFull      Size = "full"
	SizeHalf      Size = "half"
	SizeThird     Size = "third"
	SizeTwoThirds Size = "two-thirds"
	SizeQuarter   Size = "quarter"
)

// Positions lists every symbolic position in declaration order.
func Positions() []Position {
	return []Position{
		PositionLeft, PositionRight, PositionTop, PositionBottom, PositionCenter,
		PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight,
		PositionFull,
	}
}

// Sizes lists every symbolic size in declaration order.
func Sizes() []Size {
	return []Size{SizeFull, SizeHalf, SizeThird, SizeTwoThirds, SizeQuarter}
}

// Valid reports whether p is a known position.
func (p Position) Valid() bool {
	for _, known := range Positions() {
		if p == known {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known size.
func (s Size) Valid() bool {
	for _, known := range Sizes() {
		if s == known {
			return true
		}
	}
	return false
}

// Point is a top-left corner expressed in percent (0-100) of the display.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Extent is a width/height pair expressed in percent (0-100) of the display.
type Extent struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Command is one requested window operation in provider-neutral form.
type Command struct {
	Action Action `yaml:"action" json:"action"`
	// Target is an application identifier, optionally suffixed with
	// "#<window id>" to pin a specific window.
	Target string `yaml:"target" json:"target"`

	Position Position `yaml:"position,omitempty" json:"position,omitempty"`
	Size     Size     `yaml:"size,omitempty" json:"size,omitempty"`

	CustomPosition *Point  `yaml:"custom_position,omitempty" json:"custom_position,omitempty"`
	CustomSize     *Extent `yaml:"custom_size,omitempty" json:"custom_size,omitempty"`

	Layer   *int  `yaml:"layer,omitempty" json:"layer,omitempty"`
	Focus   *bool `yaml:"focus,omitempty" json:"focus,omitempty"`
	Display *int  `yaml:"display,omitempty" json:"display,omitempty"`
}

// HasSymbolic reports whether a symbolic position or size is set.
func (c Command) HasSymbolic() bool {
	return c.Position != "" || c.Size != ""
}

// HasCustom reports whether any custom percentage component is set.
func (c Command) HasCustom() bool {
	return c.CustomPosition != nil || c.CustomSize != nil
}

// Validate checks the structural invariants of a command.
func (c Command) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("%s: target is required", c.Action)
	}
	switch c.Action {
	case ActionMove, ActionCompositePosition:
		if !c.HasSymbolic() && !c.HasCustom() {
			return fmt.Errorf("%s %s: needs a symbolic position/size or a custom rectangle", c.Action, c.Target)
		}
		if c.HasSymbolic() && c.HasCustom() {
			return fmt.Errorf("%s %s: symbolic and custom placement are mutually exclusive", c.Action, c.Target)
		}
	case ActionResize:
		if c.Size == "" && c.CustomSize == nil {
			return fmt.Errorf("resize %s: needs a size", c.Target)
		}
	case ActionFocus, ActionMinimize, ActionRestore, ActionClose:
	default:
		return fmt.Errorf("unknown action %q", c.Action)
	}
	if c.Position != "" && !c.Position.Valid() {
		return fmt.Errorf("%s %s: unknown position %q", c.Action, c.Target, c.Position)
	}
	if c.Size != "" && !c.Size.Valid() {
		return fmt.Errorf("%s %s: unknown size %q", c.Action, c.Target, c.Size)
	}
	if p := c.CustomPosition; p != nil {
		if !inPercent(p.X) || !inPercent(p.Y) {
			return fmt.Errorf("%s %s: custom position must be within 0-100", c.Action, c.Target)
		}
	}
	if e := c.CustomSize; e != nil {
		if e.Width <= 0 || e.Height <= 0 || !inPercent(e.Width) || !inPercent(e.Height) {
			return fmt.Errorf("%s %s: custom size must be within (0, 100]", c.Action, c.Target)
		}
	}
	return nil
}

// String renders a compact one-line description used in logs and prompts.
func (c Command) String() string {
	var sb strings.Builder
	sb.WriteString(string(c.Action))
	sb.WriteString(" ")
	sb.WriteString(c.Target)
	if c.Position != "" {
		sb.WriteString(" position=")
		sb.WriteString(string(c.Position))
	}
	if c.Size != "" {
		sb.WriteString(" size=")
		sb.WriteString(string(c.Size))
	}
	if p := c.CustomPosition; p != nil {
		fmt.Fprintf(&sb, " at=%g%%,%g%%", p.X, p.Y)
	}
	if e := c.CustomSize; e != nil {
		fmt.Fprintf(&sb, " extent=%g%%x%g%%", e.Width, e.Height)
	}
	if c.Layer != nil {
		fmt.Fprintf(&sb, " layer=%d", *c.Layer)
	}
	if c.Focus != nil && *c.Focus {
		sb.WriteString(" focus")
	}
	if c.Display != nil {
		fmt.Fprintf(&sb, " display=%d", *c.Display)
	}
	return sb.String()
}

// SplitTarget separates "app#window" into its parts. windowID is empty
// when the target names an application only.
func SplitTarget(target string) (appID, windowID string) {
	if i := strings.LastIndex(target, "#"); i > 0 {
		return target[:i], target[i+1:]
	}
	return target, ""
}

func inPercent(v float64) bool {
	return v >= 0 && v <= 100
}

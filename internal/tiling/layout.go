package tiling

import (
	"fmt"

	"github.com/1broseidon/winpilot/internal/command"
)

// Percent is a rectangle expressed in percent (0-100) of a display.
type Percent struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// fraction returns the percentage a symbolic size covers along one axis.
func fraction(size command.Size) (float64, error) {
	switch size {
	case command.SizeFull:
		return 100, nil
	case command.SizeHalf:
		return 50, nil
	case command.SizeThird:
		return 100.0 / 3, nil
	case command.SizeTwoThirds:
		return 200.0 / 3, nil
	case command.SizeQuarter:
		return 25, nil
	default:
		return 0, fmt.Errorf("unsupported size %q", size)
	}
}

// DefaultSize is the size used when a placement names only a position.
func DefaultSize(pos command.Position) command.Size {
	if pos == command.PositionFull {
		return command.SizeFull
	}
	return command.SizeHalf
}

// SymbolicPlacement maps a position+size pair to a percent rectangle.
//
// Side anchors apply the size along one axis and span the other
// (left+half is 0,0,50,100). Corners and center apply it along both.
// An empty position with a size centers the window; an empty size takes
// DefaultSize.
func SymbolicPlacement(pos command.Position, size command.Size) (Percent, error) {
	if pos == "" {
		pos = command.PositionCenter
	}
	if size == "" {
		size = DefaultSize(pos)
	}
	f, err := fraction(size)
	if err != nil {
		return Percent{}, err
	}
	rest := 100 - f

	switch pos {
	case command.PositionFull:
		return Percent{Width: 100, Height: 100}, nil
	case command.PositionLeft:
		return Percent{X: 0, Y: 0, Width: f, Height: 100}, nil
	case command.PositionRight:
		return Percent{X: rest, Y: 0, Width: f, Height: 100}, nil
	case command.PositionTop:
		return Percent{X: 0, Y: 0, Width: 100, Height: f}, nil
	case command.PositionBottom:
		return Percent{X: 0, Y: rest, Width: 100, Height: f}, nil
	case command.PositionCenter:
		return Percent{X: rest / 2, Y: rest / 2, Width: f, Height: f}, nil
	case command.PositionTopLeft:
		return Percent{X: 0, Y: 0, Width: f, Height: f}, nil
	case command.PositionTopRight:
		return Percent{X: rest, Y: 0, Width: f, Height: f}, nil
	case command.PositionBottomLeft:
		return Percent{X: 0, Y: rest, Width: f, Height: f}, nil
	case command.PositionBottomRight:
		return Percent{X: rest, Y: rest, Width: f, Height: f}, nil
	default:
		return Percent{}, fmt.Errorf("unsupported position %q", pos)
	}
}

// SizeFraction returns the width fraction a symbolic size occupies when
// resizing in place.
func SizeFraction(size command.Size) (float64, error) {
	return fraction(size)
}

// Resolve converts a percent rectangle to pixels inside bounds.
func Resolve(bounds Rect, p Percent) Rect {
	return Rect{
		X:      bounds.X + bounds.Width*p.X/100,
		Y:      bounds.Y + bounds.Height*p.Y/100,
		Width:  bounds.Width * p.Width / 100,
		Height: bounds.Height * p.Height / 100,
	}
}

// ToPercent expresses r as a percentage of bounds. It is the inverse of
// Resolve and is used when describing a snapshot to the model.
func ToPercent(bounds Rect, r Rect) Percent {
	if bounds.Empty() {
		return Percent{}
	}
	return Percent{
		X:      (r.X - bounds.X) * 100 / bounds.Width,
		Y:      (r.Y - bounds.Y) * 100 / bounds.Height,
		Width:  r.Width * 100 / bounds.Width,
		Height: r.Height * 100 / bounds.Height,
	}
}

package tiling

import "math"

// Rect represents a window frame or display area. Coordinates are in
// pixels; fractional values come from percentage placement.
type Rect struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Empty reports whether the rectangle covers no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns Width*Height, or 0 for empty rectangles.
func (r Rect) Area() float64 {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

func (r Rect) right() float64  { return r.X + r.Width }
func (r Rect) bottom() float64 { return r.Y + r.Height }

// Intersect returns the overlap of r and o. The result is empty when they
// do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.right(), o.right())
	y1 := math.Min(r.bottom(), o.bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Subtract returns r minus o as at most four disjoint rectangles: a full
// width band above the overlap, a full width band below it, and the left
// and right slivers beside it.
func (r Rect) Subtract(o Rect) []Rect {
	if r.Empty() {
		return nil
	}
	cut := r.Intersect(o)
	if cut.Empty() {
		return []Rect{r}
	}

	pieces := make([]Rect, 0, 4)
	if cut.Y > r.Y {
		pieces = append(pieces, Rect{X: r.X, Y: r.Y, Width: r.Width, Height: cut.Y - r.Y})
	}
	if cut.bottom() < r.bottom() {
		pieces = append(pieces, Rect{X: r.X, Y: cut.bottom(), Width: r.Width, Height: r.bottom() - cut.bottom()})
	}
	if cut.X > r.X {
		pieces = append(pieces, Rect{X: r.X, Y: cut.Y, Width: cut.X - r.X, Height: cut.Height})
	}
	if cut.right() < r.right() {
		pieces = append(pieces, Rect{X: cut.right(), Y: cut.Y, Width: r.right() - cut.right(), Height: cut.Height})
	}
	return pieces
}

// Pixels rounds the rectangle to whole pixels for a window-system call.
// Width and height never drop below 1.
func (r Rect) Pixels() (x, y, width, height int) {
	x = int(math.Round(r.X))
	y = int(math.Round(r.Y))
	width = int(math.Round(r.Width))
	height = int(math.Round(r.Height))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return x, y, width, height
}

// TotalArea sums the areas of disjoint rectangles.
func TotalArea(rects []Rect) float64 {
	total := 0.0
	for _, r := range rects {
		total += r.Area()
	}
	return total
}

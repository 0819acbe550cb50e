package tiling

import "testing"

func TestIntersect(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	b := Rect{X: 50, Y: 60, Width: 100, Height: 100}
	got := a.Intersect(b)
	if got != (Rect{X: 50, Y: 60, Width: 50, Height: 40}) {
		t.Fatalf("unexpected intersection %+v", got)
	}
	if !a.Intersect(Rect{X: 100, Y: 0, Width: 10, Height: 10}).Empty() {
		t.Fatalf("expected touching rectangles not to intersect")
	}
}

func TestSubtract_CenterHoleYieldsFourPieces(t *testing.T) {
	outer := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	hole := Rect{X: 25, Y: 25, Width: 50, Height: 50}
	pieces := outer.Subtract(hole)
	if len(pieces) != 4 {
		t.Fatalf("expected 4 pieces, got %d: %+v", len(pieces), pieces)
	}
	if got := TotalArea(pieces); !approx(got, 10000-2500) {
		t.Fatalf("expected remaining area 7500, got %g", got)
	}
	for i := range pieces {
		for j := i + 1; j < len(pieces); j++ {
			if !pieces[i].Intersect(pieces[j]).Empty() {
				t.Fatalf("pieces %d and %d overlap: %+v %+v", i, j, pieces[i], pieces[j])
			}
		}
	}
}

func TestSubtract_Edges(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 100, Height: 50}

	if got := r.Subtract(Rect{X: 200, Y: 200, Width: 10, Height: 10}); len(got) != 1 || got[0] != r {
		t.Fatalf("expected disjoint subtract to return r, got %+v", got)
	}
	if got := r.Subtract(Rect{X: -10, Y: -10, Width: 200, Height: 200}); len(got) != 0 {
		t.Fatalf("expected full cover to leave nothing, got %+v", got)
	}
	left := r.Subtract(Rect{X: 50, Y: 0, Width: 50, Height: 50})
	if len(left) != 1 || left[0] != (Rect{X: 0, Y: 0, Width: 50, Height: 50}) {
		t.Fatalf("expected left half to remain, got %+v", left)
	}
}

func TestPixels_ClampsToOne(t *testing.T) {
	x, y, w, h := Rect{X: 10.4, Y: 10.6, Width: 0.2, Height: 43.2}.Pixels()
	if x != 10 || y != 11 || w != 1 || h != 43 {
		t.Fatalf("unexpected pixels %d,%d %dx%d", x, y, w, h)
	}
}

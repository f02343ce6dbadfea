package feed

import "math"

// Geometry is a snapshot of a scrollable container. Units are whatever the
// container measures in (terminal rows for the TUI).
type Geometry struct {
	Offset  float64 // current scroll offset from the top
	Total   float64 // total scrollable extent
	Visible float64 // visible extent
}

// Degenerate reports whether the geometry cannot be scrolled meaningfully:
// zero, negative or non-finite total extent.
func (g Geometry) Degenerate() bool {
	return !(g.Total > 0) || math.IsInf(g.Total, 0)
}

// Fraction returns how far down the container the bottom edge of the
// viewport sits, clamped into [0, 1]. Degenerate geometry and NaN results
// resolve to 1 (fully visible).
func (g Geometry) Fraction() float64 {
	if g.Degenerate() {
		return 1
	}
	f := (g.Offset + g.Visible) / g.Total
	switch {
	case math.IsNaN(f):
		return 1
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// MaxOffset returns the largest valid scroll offset (the tail).
func (g Geometry) MaxOffset() float64 {
	if g.Degenerate() {
		return 0
	}
	visible := g.Visible
	if math.IsNaN(visible) || visible < 0 {
		visible = 0
	}
	m := g.Total - visible
	if m < 0 || math.IsNaN(m) {
		return 0
	}
	return m
}

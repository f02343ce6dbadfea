package ui

import (
	"math"
	"time"

	"github.com/charmbracelet/harmonica"

	"github.com/abelbrown/tailfeed/internal/feed"
)

const (
	frameRate     = 60
	springFreq    = 6.0
	springDamp    = 0.8
	settleEpsilon = 0.05
)

// surface is the scrollable area of a FeedView, measured in terminal rows.
// It implements follow.Container. A smooth scroll drives one spring toward
// one target; a newer target replaces the old so animations never compete.
type surface struct {
	offset  float64
	total   float64
	visible float64

	spring    harmonica.Spring
	velocity  float64
	target    float64
	animating bool
}

func newSurface() *surface {
	return &surface{
		spring: harmonica.NewSpring(harmonica.FPS(frameRate), springFreq, springDamp),
	}
}

// Geometry implements follow.Container.
func (s *surface) Geometry() feed.Geometry {
	return feed.Geometry{Offset: s.offset, Total: s.total, Visible: s.visible}
}

// SetOffset implements follow.Container. It stops any animation.
func (s *surface) SetOffset(offset float64) {
	s.animating = false
	s.velocity = 0
	s.offset = s.clamp(offset)
	s.target = s.offset
}

// SmoothScrollTo implements follow.Container.
func (s *surface) SmoothScrollTo(offset float64) {
	s.target = s.clamp(offset)
	if math.Abs(s.target-s.offset) < settleEpsilon {
		s.SetOffset(s.target)
		return
	}
	s.animating = true
}

// step advances the spring one frame and reports whether it is still moving.
func (s *surface) step() bool {
	if !s.animating {
		return false
	}
	s.offset, s.velocity = s.spring.Update(s.offset, s.velocity, s.target)
	if math.Abs(s.offset-s.target) < settleEpsilon && math.Abs(s.velocity) < settleEpsilon {
		s.SetOffset(s.target)
		return false
	}
	return true
}

// scrollBy moves the viewport by delta rows, as a reader would.
func (s *surface) scrollBy(delta float64) {
	s.SetOffset(s.offset + delta)
}

// resize updates the extents. The offset is clamped to the new range and
// an in-flight animation is retargeted into it.
func (s *surface) resize(total, visible float64) {
	s.total = math.Max(total, 0)
	s.visible = math.Max(visible, 0)
	s.offset = s.clamp(s.offset)
	if s.animating {
		s.target = s.clamp(s.target)
	}
}

// row returns the first visible content row.
func (s *surface) row() int {
	return int(math.Round(s.offset))
}

func (s *surface) clamp(offset float64) float64 {
	limit := s.Geometry().MaxOffset()
	if math.IsNaN(offset) || offset < 0 {
		return 0
	}
	if offset > limit {
		return limit
	}
	return offset
}

// frameInterval is the delay between animation frames.
var frameInterval = time.Second / frameRate

// Package render decides how a feed should be laid out. A Planner turns an
// item sequence into a Plan: whether the feed is long enough to switch to
// virtualized layout, and an estimated height for every item.
package render

import "github.com/abelbrown/tailfeed/internal/feed"

// Default estimation constants, in layout units.
const (
	DefaultThreshold      = 300 // items above which the feed virtualizes
	DefaultBaseHeight     = 80  // padding and chrome per item
	DefaultCharsPerLine   = 80  // characters per wrapped visual line
	DefaultLineHeight     = 20  // units per visual line
	DefaultImageAllowance = 200 // extra units for an embedded image
)

// Config holds the planner's tuning.
type Config struct {
	Threshold      int
	BaseHeight     int
	CharsPerLine   int
	LineHeight     int
	ImageAllowance int
}

// DefaultConfig returns the stock estimation model.
func DefaultConfig() Config {
	return Config{
		Threshold:      DefaultThreshold,
		BaseHeight:     DefaultBaseHeight,
		CharsPerLine:   DefaultCharsPerLine,
		LineHeight:     DefaultLineHeight,
		ImageAllowance: DefaultImageAllowance,
	}
}

// Plan is the layout decision for one item sequence. Heights has the same
// order and length as the input.
type Plan struct {
	Virtualize bool
	Heights    []int

	total    int
	hasTotal bool
}

// Total returns the summed estimated height. It is only present when the
// plan virtualizes; otherwise the real layout is measured instead.
func (p Plan) Total() (int, bool) {
	return p.total, p.hasTotal
}

// Len returns the number of planned items.
func (p Plan) Len() int { return len(p.Heights) }

// Planner is a pure, stateless estimator. The zero value is not useful;
// use NewPlanner.
type Planner struct {
	cfg Config
}

// NewPlanner returns a Planner. Non-positive line geometry falls back to
// the defaults so estimates never divide by zero; a negative threshold
// falls back to the default threshold.
func NewPlanner(cfg Config) Planner {
	if cfg.CharsPerLine <= 0 {
		cfg.CharsPerLine = DefaultCharsPerLine
	}
	if cfg.LineHeight <= 0 {
		cfg.LineHeight = DefaultLineHeight
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.BaseHeight < 0 {
		cfg.BaseHeight = 0
	}
	if cfg.ImageAllowance < 0 {
		cfg.ImageAllowance = 0
	}
	return Planner{cfg: cfg}
}

// Config returns the planner's effective configuration.
func (p Planner) Config() Config { return p.cfg }

// Estimate returns the estimated rendered height of one item:
// base + ceil(length/charsPerLine)*lineHeight + image allowance.
func (p Planner) Estimate(it feed.Item) int {
	return p.estimate(it.ContentLength(), it.HasImage)
}

func (p Planner) estimate(contentLength int, hasImage bool) int {
	if contentLength < 0 {
		contentLength = 0
	}
	lines := (contentLength + p.cfg.CharsPerLine - 1) / p.cfg.CharsPerLine
	h := p.cfg.BaseHeight + lines*p.cfg.LineHeight
	if hasImage {
		h += p.cfg.ImageAllowance
	}
	return h
}

// Plan computes the layout decision for items. Same input, same output.
func (p Planner) Plan(items []feed.Item) Plan {
	heights := make([]int, len(items))
	total := 0
	for i, it := range items {
		heights[i] = p.Estimate(it)
		total += heights[i]
	}

	plan := Plan{
		Virtualize: len(items) > p.cfg.Threshold,
		Heights:    heights,
	}
	if plan.Virtualize {
		plan.total = total
		plan.hasTotal = true
	}
	return plan
}

// Build plans items with the default estimation model and the given
// virtualization threshold.
func Build(items []feed.Item, threshold int) Plan {
	cfg := DefaultConfig()
	cfg.Threshold = threshold
	return NewPlanner(cfg).Plan(items)
}

// Estimate returns the default-model height for content of the given length.
func Estimate(contentLength int, hasImage bool) int {
	return NewPlanner(DefaultConfig()).estimate(contentLength, hasImage)
}

// Package follow decides whether a feed view tracks the tail of its content.
//
// A Controller watches scroll geometry and item-count changes for one feed
// view. While the reader sits near the bottom (Following) new items schedule
// a deferred scroll-to-tail; once the reader scrolls away (Detached) new
// items raise a "new messages" indicator instead of moving the viewport.
package follow

import (
	"sync"
	"time"

	"github.com/abelbrown/tailfeed/internal/feed"
	"github.com/abelbrown/tailfeed/internal/logging"
	"github.com/abelbrown/tailfeed/internal/otel"
	"github.com/charmbracelet/log"
)

// State is the follow state of a feed view.
type State int

const (
	// Following means the viewport is at the tail and should track arrivals.
	Following State = iota
	// Detached means the reader scrolled away; arrivals must not move the view.
	Detached
)

func (s State) String() string {
	switch s {
	case Following:
		return "following"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}

// Default tuning. These are heuristics, kept configurable through Config.
const (
	DefaultThreshold   = 0.9
	DefaultSettleDelay = 100 * time.Millisecond
)

// Config tunes a Controller.
type Config struct {
	// Threshold is the viewport-bottom fraction at or above which the view
	// counts as being at the tail.
	Threshold float64
	// SettleDelay is how long a scroll-to-tail waits after an arrival so the
	// new item's layout is included in the container's total extent.
	SettleDelay time.Duration
	// Smooth selects SmoothScrollTo over SetOffset for deferred scrolls.
	Smooth bool
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		SettleDelay: DefaultSettleDelay,
		Smooth:      true,
	}
}

func (c Config) normalized() Config {
	if !(c.Threshold > 0 && c.Threshold <= 1) {
		c.Threshold = DefaultThreshold
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	return c
}

// Container is the scrollable surface a Controller drives.
// Implementations must not call back into the Controller synchronously.
type Container interface {
	Geometry() feed.Geometry
	SetOffset(offset float64)
	SmoothScrollTo(offset float64)
}

// Stats counts what a Controller has done since it was mounted. Every
// scheduled scroll ends up in exactly one of Superseded, Fired or Dropped,
// or is still pending.
type Stats struct {
	Scheduled  int // deferred scrolls scheduled
	Superseded int // pending scrolls cancelled by a newer arrival
	Fired      int // deferred scrolls applied to the container
	Dropped    int // pending scrolls cancelled by a detach, a jump or Close
	Jumps      int // explicit jump-to-tail actions
}

// Controller owns the follow state of one feed view.
// Safe for concurrent use; the mutex serializes timer callbacks with the
// host's event handling.
type Controller struct {
	mu        sync.Mutex
	cfg       Config
	container Container
	sched     Scheduler
	events    *otel.Logger
	log       *log.Logger
	feedID    string

	state     State
	lastCount int
	indicator bool
	ticket    uint64 // ticket of the pending deferred scroll; 0 when none
	nextTick  uint64
	cancel    func()
	closed    bool
	stats     Stats
}

// New mounts a Controller over container with the item count present at
// mount time. The controller starts Following.
func New(cfg Config, container Container, sched Scheduler, initialCount int) *Controller {
	if sched == nil {
		sched = TimerScheduler{}
	}
	if initialCount < 0 {
		initialCount = 0
	}
	return &Controller{
		cfg:       cfg.normalized(),
		container: container,
		sched:     sched,
		log:       logging.WithPrefix("follow"),
		state:     Following,
		lastCount: initialCount,
	}
}

// SetEvents attaches a structured event sink. feedID tags every event.
func (c *Controller) SetEvents(events *otel.Logger, feedID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = events
	c.feedID = feedID
}

// ObserveScroll updates the follow state from a geometry snapshot.
// At or above the threshold the view follows and the indicator clears;
// below it the view detaches, leaving the indicator as is and dropping any
// pending scroll-to-tail.
func (c *Controller) ObserveScroll(g feed.Geometry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	prev := c.state
	fraction := g.Fraction()
	if fraction >= c.cfg.Threshold {
		c.state = Following
		c.indicator = false
	} else {
		c.state = Detached
	}

	if c.state == prev {
		return
	}
	if c.state == Following {
		c.emit(otel.KindFollowAttach, fraction)
	} else {
		c.emit(otel.KindFollowDetach, fraction)
		// A detached view only moves on user intent.
		c.dropPendingLocked(fraction)
	}
	c.log.Debug("follow state changed", "feed", c.feedID, "state", c.state, "fraction", fraction)
}

// OnItemCountChanged reacts to a new snapshot size. Decreases only reset the
// baseline. Increases schedule a deferred scroll-to-tail while Following,
// superseding any pending one, or raise the indicator while Detached.
func (c *Controller) OnItemCountChanged(newCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if newCount < 0 {
		newCount = 0
	}

	if newCount <= c.lastCount {
		if newCount < c.lastCount {
			c.emitCount(otel.KindFollowBaselineDown, newCount)
		}
		c.lastCount = newCount
		return
	}

	switch c.state {
	case Following:
		c.scheduleTailLocked(newCount)
	case Detached:
		if !c.indicator {
			c.emitCount(otel.KindIndicatorShown, newCount-c.lastCount)
		}
		c.indicator = true
	}
	c.lastCount = newCount
}

// JumpToTail moves the container to its maximum offset immediately, resumes
// following and clears the indicator. Any pending deferred scroll is
// cancelled so the two never compete. Idempotent.
func (c *Controller) JumpToTail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.dropPendingLocked(1)
	if c.container != nil {
		c.container.SetOffset(c.container.Geometry().MaxOffset())
	}
	c.state = Following
	c.indicator = false
	c.stats.Jumps++
	c.emit(otel.KindJumpToTail, 1)
}

// Close unmounts the controller. A pending deferred scroll is cancelled and
// every later call is ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.dropPendingLocked(0)
	c.closed = true
}

// IsFollowing reports whether the view is tracking the tail.
func (c *Controller) IsFollowing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Following
}

// ShouldShowNewMessagesIndicator reports whether unseen items arrived while
// the view was detached.
func (c *Controller) ShouldShowNewMessagesIndicator() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indicator
}

// State returns the current follow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastItemCount returns the tracked baseline.
func (c *Controller) LastItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCount
}

// Pending reports whether a deferred scroll-to-tail is waiting to fire.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticket != 0
}

// Stats returns a copy of the controller's counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Controller) scheduleTailLocked(count int) {
	if c.ticket != 0 {
		c.stats.Superseded++
		c.emitCount(otel.KindScrollSuperseded, count)
	}
	c.cancelPendingLocked()

	c.nextTick++
	t := c.nextTick
	c.ticket = t
	c.cancel = c.sched.After(c.cfg.SettleDelay, func() { c.fire(t) })
	c.stats.Scheduled++
	c.emitCount(otel.KindScrollScheduled, count)
}

func (c *Controller) cancelPendingLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = nil
	c.ticket = 0
}

// dropPendingLocked cancels a pending scroll and counts it as dropped.
func (c *Controller) dropPendingLocked(fraction float64) {
	if c.ticket == 0 {
		return
	}
	c.cancelPendingLocked()
	c.stats.Dropped++
	c.emit(otel.KindScrollDropped, fraction)
}

// fire applies the deferred scroll identified by t, unless it was cancelled
// in the meantime. A timer that fired while its cancellation held the lock
// lands here with a stale ticket; it was already counted when cancelled.
func (c *Controller) fire(t uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || t != c.ticket {
		c.log.Debug("stale follow scroll ignored", "feed", c.feedID, "ticket", t)
		return
	}
	c.ticket = 0
	c.cancel = nil

	if c.container == nil {
		return
	}
	// Measured now, after the settle delay, so the new item is included.
	target := c.container.Geometry().MaxOffset()
	if c.cfg.Smooth {
		c.container.SmoothScrollTo(target)
	} else {
		c.container.SetOffset(target)
	}
	c.stats.Fired++
	c.emit(otel.KindScrollFired, 1)
}

func (c *Controller) emit(kind otel.EventKind, fraction float64) {
	if c.events == nil {
		return
	}
	c.events.Emit(otel.Event{
		Level: otel.LevelDebug,
		Kind:  kind,
		Comp:  "follow",
		Feed:  c.feedID,
		Extra: map[string]any{"fraction": fraction, "state": c.state.String()},
	})
}

func (c *Controller) emitCount(kind otel.EventKind, count int) {
	if c.events == nil {
		return
	}
	c.events.Emit(otel.Event{
		Level: otel.LevelDebug,
		Kind:  kind,
		Comp:  "follow",
		Feed:  c.feedID,
		Count: count,
	})
}

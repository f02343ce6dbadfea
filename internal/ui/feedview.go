package ui

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/tailfeed/internal/feed"
	"github.com/abelbrown/tailfeed/internal/follow"
	"github.com/abelbrown/tailfeed/internal/otel"
	"github.com/abelbrown/tailfeed/internal/render"
)

// wheelRows is how far one mouse-wheel notch scrolls.
const wheelRows = 3

// viewSeq hands out FeedView generations. Ticks carry the generation of
// the view that scheduled them.
var viewSeq atomic.Uint64

// ViewOptions configures the FeedViews an App mounts.
type ViewOptions struct {
	Follow follow.Config
	Render render.Config
	Events *otel.Logger
}

// DefaultViewOptions returns stock tuning with no event sink.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{Follow: follow.DefaultConfig(), Render: render.DefaultConfig()}
}

// FeedView shows one conversation. It owns one follow Controller, one
// scheduler and one scrollable surface; nothing is shared across views.
//
// Every snapshot is re-planned. A virtualizing plan lays items out by
// their estimated heights and renders only what is on screen; otherwise
// every item is rendered and measured.
type FeedView struct {
	id      uint64
	convID  string
	keys    keyMap
	planner render.Planner
	ctrl    *follow.Controller
	surf    *surface
	sched   *teaScheduler
	events  *otel.Logger

	items  []feed.Item
	plan   render.Plan
	rows   []int // rows per item
	starts []int // first content row of each item
	cache  map[string][]string

	// count is the item count reported to the controller. It grows by the
	// items past the previous tail, so a capped window that slides still
	// registers arrivals.
	count int

	width, height int
	frameQueued   bool
	detachedAt    int // count when the reader last detached
	closed        bool
}

// NewFeedView mounts a view over an initial snapshot, positioned at the tail.
func NewFeedView(convID string, items []feed.Item, width, height int, opts ViewOptions) *FeedView {
	id := viewSeq.Add(1)
	v := &FeedView{
		id:      id,
		convID:  convID,
		keys:    defaultKeyMap(),
		planner: render.NewPlanner(opts.Render),
		surf:    newSurface(),
		sched:   newTeaScheduler(id),
		events:  opts.Events,
		items:   items,
		count:   len(items),
		cache:   make(map[string][]string),
		width:   width,
		height:  max(height, 1),
	}
	v.ctrl = follow.New(opts.Follow, v.surf, v.sched, len(items))
	v.ctrl.SetEvents(opts.Events, convID)

	v.layout()
	v.emitPlan()
	v.surf.SetOffset(v.surf.Geometry().MaxOffset())
	v.events.Debug(otel.KindFeedMounted, "ui", convID, fmt.Sprintf("%d items", len(items)))
	return v
}

// ID returns the view generation.
func (v *FeedView) ID() uint64 { return v.id }

// Conversation returns the conversation shown.
func (v *FeedView) Conversation() string { return v.convID }

// Items returns the current snapshot.
func (v *FeedView) Items() []feed.Item { return v.items }

// Plan returns the plan of the current snapshot.
func (v *FeedView) Plan() render.Plan { return v.plan }

// Controller exposes the follow controller (for the status bar and tests).
func (v *FeedView) Controller() *follow.Controller { return v.ctrl }

// Offset returns the current first visible row.
func (v *FeedView) Offset() float64 { return v.surf.offset }

// TotalRows returns the laid-out content height.
func (v *FeedView) TotalRows() int { return int(v.surf.total) }

// Animating reports whether a smooth scroll is in flight.
func (v *FeedView) Animating() bool { return v.surf.animating }

// Unseen returns how many items arrived since the reader detached, while
// the indicator is up.
func (v *FeedView) Unseen() int {
	if !v.ctrl.ShouldShowNewMessagesIndicator() {
		return 0
	}
	return max(v.count-v.detachedAt, 0)
}

// SetItems replaces the snapshot. Layout runs first so the controller's
// deferred scroll measures the grown surface.
func (v *FeedView) SetItems(items []feed.Item) tea.Cmd {
	if v.closed {
		return nil
	}
	prev := v.items
	v.items = items
	v.pruneCache()
	v.layout()
	v.emitPlan()

	switch arrived := arrivals(prev, items); {
	case len(items) == 0:
		v.count = 0
	case arrived > 0:
		v.count += arrived
	case len(items) < len(prev):
		v.count = max(v.count-(len(prev)-len(items)), len(items))
	}
	v.ctrl.OnItemCountChanged(v.count)
	if v.detachedAt > v.count {
		v.detachedAt = v.count
	}
	return v.sched.drain()
}

// arrivals counts the items of next ordered after the last item of prev.
// Snapshots are ordered by Seq, so the scan stops at the old tail.
func arrivals(prev, next []feed.Item) int {
	if len(prev) == 0 {
		return len(next)
	}
	tail := prev[len(prev)-1].Seq
	n := 0
	for i := len(next) - 1; i >= 0 && next[i].Seq > tail; i-- {
		n++
	}
	return n
}

// SetSize relayouts for a new terminal size. A following view stays
// pinned to the tail.
func (v *FeedView) SetSize(width, height int) {
	if width != v.width {
		v.cache = make(map[string][]string)
	}
	v.width = width
	v.height = max(height, 1)
	following := v.ctrl.IsFollowing()
	v.layout()
	if following && !v.surf.animating {
		v.surf.SetOffset(v.surf.Geometry().MaxOffset())
	}
}

// Close unmounts the view. Pending scrolls and frames are dropped.
func (v *FeedView) Close() {
	if v.closed {
		return
	}
	v.closed = true
	v.ctrl.Close()
	v.events.Debug(otel.KindFeedClosed, "ui", v.convID, "")
}

// Update handles messages addressed to this view.
func (v *FeedView) Update(msg tea.Msg) tea.Cmd {
	if v.closed {
		return nil
	}

	switch msg := msg.(type) {
	case scrollDueMsg:
		if msg.view != v.id {
			return nil
		}
		v.sched.fire(msg.id)
		return tea.Batch(v.sched.drain(), v.animate())

	case animFrameMsg:
		if msg.view != v.id {
			return nil
		}
		v.frameQueued = false
		if v.surf.step() {
			return v.animate()
		}
		// Settled. Frames in between are not observations, and a settle
		// that a newer follow scroll will overtake is not one either.
		if !v.ctrl.Pending() {
			v.observe()
		}
		return nil

	case tea.KeyMsg:
		return v.handleKey(msg)

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			v.userScroll(-wheelRows)
		case tea.MouseButtonWheelDown:
			v.userScroll(wheelRows)
		}
		return nil
	}
	return nil
}

func (v *FeedView) handleKey(msg tea.KeyMsg) tea.Cmd {
	page := float64(max(v.height-1, 1))
	switch {
	case key.Matches(msg, v.keys.Up):
		v.userScroll(-1)
	case key.Matches(msg, v.keys.Down):
		v.userScroll(1)
	case key.Matches(msg, v.keys.PageUp):
		v.userScroll(-page)
	case key.Matches(msg, v.keys.PageDown):
		v.userScroll(page)
	case key.Matches(msg, v.keys.Top):
		v.userScroll(-v.surf.offset)
	case key.Matches(msg, v.keys.Tail):
		v.ctrl.JumpToTail()
		v.detachedAt = v.count
	}
	return nil
}

// userScroll moves the viewport delta rows on the reader's behalf and
// reports the resulting geometry to the controller.
func (v *FeedView) userScroll(delta float64) {
	v.surf.scrollBy(delta)
	v.observe()
}

func (v *FeedView) observe() {
	wasFollowing := v.ctrl.IsFollowing()
	v.ctrl.ObserveScroll(v.surf.Geometry())
	if wasFollowing && !v.ctrl.IsFollowing() {
		v.detachedAt = v.count
	}
}

// animate queues the next spring frame if one is needed and none is queued.
func (v *FeedView) animate() tea.Cmd {
	if !v.surf.animating || v.frameQueued {
		return nil
	}
	v.frameQueued = true
	id := v.id
	return tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return animFrameMsg{view: id}
	})
}

// layout recomputes the plan and every item's row span, then resizes the
// surface.
func (v *FeedView) layout() {
	v.plan = v.planner.Plan(v.items)
	lineHeight := v.planner.Config().LineHeight

	v.rows = make([]int, len(v.items))
	v.starts = make([]int, len(v.items))
	total := 0
	for i := range v.items {
		var r int
		if v.plan.Virtualize {
			r = (v.plan.Heights[i] + lineHeight - 1) / lineHeight
		} else {
			r = len(v.block(i))
		}
		r = max(r, 1)
		v.starts[i] = total
		v.rows[i] = r
		total += r
	}
	v.surf.resize(float64(total), float64(v.height))
}

func (v *FeedView) emitPlan() {
	if v.events == nil {
		return
	}
	total, ok := v.plan.Total()
	extra := map[string]any{"virtualize": v.plan.Virtualize, "rows": int(v.surf.total)}
	if ok {
		extra["estimated_total"] = total
	}
	v.events.Emit(otel.Event{
		Level: otel.LevelDebug,
		Kind:  otel.KindPlan,
		Comp:  "render",
		Feed:  v.convID,
		Count: v.plan.Len(),
		Extra: extra,
	})
}

// block returns the rendered lines of item i, cached per width.
func (v *FeedView) block(i int) []string {
	it := v.items[i]
	if lines, ok := v.cache[it.ID]; ok {
		return lines
	}
	lines := renderItem(it, v.width, v.imageRows())
	v.cache[it.ID] = lines
	return lines
}

func (v *FeedView) imageRows() int {
	cfg := v.planner.Config()
	return max(cfg.ImageAllowance/cfg.LineHeight, 3)
}

// pruneCache drops rendered blocks for items no longer in the snapshot.
func (v *FeedView) pruneCache() {
	if len(v.cache) <= 2*len(v.items)+16 {
		return
	}
	keep := make(map[string][]string, len(v.items))
	for _, it := range v.items {
		if lines, ok := v.cache[it.ID]; ok {
			keep[it.ID] = lines
		}
	}
	v.cache = keep
}

// View renders exactly height lines.
func (v *FeedView) View() string {
	out := make([]string, 0, v.height)

	if len(v.items) == 0 {
		help := HelpStyle.Render("No messages yet. Post one with: tfctl post " + v.convID + " <text>")
		out = append(out, strings.Split(help, "\n")...)
		if len(out) > v.height {
			out = out[:v.height]
		}
	}

	top := v.surf.row()
	i := sort.Search(len(v.starts), func(i int) bool {
		return v.starts[i]+v.rows[i] > top
	})
	for ; i < len(v.items) && len(out) < v.height; i++ {
		lines := v.block(i)
		if v.plan.Virtualize {
			lines = fitRows(lines, v.rows[i])
		}
		skip := max(top-v.starts[i], 0)
		for _, l := range lines[min(skip, len(lines)):] {
			if len(out) == v.height {
				break
			}
			out = append(out, l)
		}
	}
	for len(out) < v.height {
		out = append(out, "")
	}

	if v.ctrl.ShouldShowNewMessagesIndicator() {
		out[len(out)-1] = v.indicatorBar()
	}
	return strings.Join(out, "\n")
}

func (v *FeedView) indicatorBar() string {
	label := "↓ New messages"
	if n := v.Unseen(); n > 0 {
		noun := "messages"
		if n == 1 {
			noun = "message"
		}
		label = fmt.Sprintf("↓ %d new %s", n, noun)
	}
	return IndicatorBar.Render(label + "  ·  G to jump")
}

// renderItem renders one message: header, padding, wrapped body, an image
// placeholder when present, padding and a separator.
func renderItem(it feed.Item, width, imageRows int) []string {
	width = max(width, 10)

	author := it.Author
	if author == "" {
		author = "anonymous"
	}
	stamp := ""
	if !it.Created.IsZero() {
		stamp = it.Created.Local().Format("Jan 2 15:04")
	}
	author = runewidth.Truncate(author, max(width-runewidth.StringWidth(stamp)-3, 4), "…")
	header := " " + AuthorStyle.Render(author) + "  " + TimestampStyle.Render(stamp)

	lines := []string{header, ""}
	if body := strings.TrimRight(it.Body, "\n"); body != "" {
		rendered := BodyStyle.Width(width).Render(body)
		lines = append(lines, strings.Split(rendered, "\n")...)
	}
	if it.HasImage {
		box := ImagePlaceholder.
			Width(max(min(width-4, 40), 8)).
			Height(max(imageRows-2, 1)).
			Render("▣ image")
		lines = append(lines, strings.Split(box, "\n")...)
	}
	lines = append(lines, "", Separator.Render(strings.Repeat("─", width)))
	return lines
}

// fitRows pads or clips a block to exactly n rows, keeping its last line
// (the separator) in place.
func fitRows(lines []string, n int) []string {
	switch {
	case n <= 0:
		return nil
	case len(lines) == 0:
		return make([]string, n)
	case len(lines) == n:
		return lines
	case len(lines) > n:
		out := append([]string(nil), lines[:n-1]...)
		return append(out, lines[len(lines)-1])
	}
	out := make([]string, 0, n)
	out = append(out, lines[:len(lines)-1]...)
	for len(out) < n-1 {
		out = append(out, "")
	}
	return append(out, lines[len(lines)-1])
}

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/tailfeed/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugOverlay renders the debug panel: the mounted view's follow and layout
// state, event counters and recent events. Returns empty string when there
// is nothing to show.
func debugOverlay(ring *otel.RingBuffer, view *FeedView, width, height int) string {
	if ring == nil && view == nil {
		return ""
	}

	var lines []string

	if view != nil {
		ctrl := view.Controller()
		st := ctrl.Stats()
		lines = append(lines, DebugHeaderStyle.Render("Follow · "+view.Conversation()))
		lines = append(lines, fmt.Sprintf("  State:      %s  pending=%v  indicator=%v",
			ctrl.State(), ctrl.Pending(), ctrl.ShouldShowNewMessagesIndicator()))
		lines = append(lines, fmt.Sprintf("  Scrolls:    %d scheduled, %d fired, %d superseded, %d dropped",
			st.Scheduled, st.Fired, st.Superseded, st.Dropped))
		lines = append(lines, fmt.Sprintf("  Jumps:      %d  queued ticks=%d", st.Jumps, view.sched.pendingCount()))

		plan := view.Plan()
		mode := "measured"
		if plan.Virtualize {
			mode = "virtualized"
		}
		est := "-"
		if total, ok := plan.Total(); ok {
			est = fmt.Sprintf("%d units", total)
		}
		g := view.surf.Geometry()
		lines = append(lines, fmt.Sprintf("  Layout:     %d items, %s, estimate %s", plan.Len(), mode, est))
		lines = append(lines, fmt.Sprintf("  Geometry:   offset %.1f / %.0f rows, visible %.0f (%.0f%%)",
			g.Offset, g.Total, g.Visible, g.Fraction()*100))
		lines = append(lines, "")
	}

	if ring != nil {
		stats := ring.Counts()
		lines = append(lines, DebugHeaderStyle.Render("Pipeline Stats"))
		lines = append(lines, fmt.Sprintf("  Fetches:    %d complete, %d errors",
			stats[otel.KindFetchComplete], stats[otel.KindFetchError]))
		lines = append(lines, fmt.Sprintf("  Follow:     %d attach, %d detach, %d indicator",
			stats[otel.KindFollowAttach], stats[otel.KindFollowDetach], stats[otel.KindIndicatorShown]))
		lines = append(lines, fmt.Sprintf("  Plans:      %d", stats[otel.KindPlan]))
		lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
		lines = append(lines, "")

		recentFollow := otel.Query{Subsystem: "follow", N: 6}
		if view != nil {
			recentFollow.Feed = view.Conversation()
		}
		lines = append(lines, DebugHeaderStyle.Render("Recent Follow Events"))
		lines = append(lines, eventLines(ring.Recent(recentFollow))...)
		lines = append(lines, "")

		lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
		lines = append(lines, eventLines(ring.Recent(otel.Query{N: 12}))...)
	}

	// Truncate to fit terminal height (subtract chrome added by DebugPanel border/padding)
	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 84
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

func eventLines(events []otel.Event) []string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		line := fmt.Sprintf("  %6s  %-26s", formatAge(time.Since(e.Time)), string(e.Kind))
		if e.Feed != "" {
			line += "  " + truncateRunes(e.Feed, 16)
		}
		if e.Count != 0 {
			line += fmt.Sprintf("  n=%d", e.Count)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 30)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		lines = append(lines, line)
	}
	return lines
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// truncateRunes shortens s to n runes with a trailing ellipsis.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("D") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}

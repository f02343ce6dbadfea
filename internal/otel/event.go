// Package otel provides structured observability for tailfeed.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
// An optional RingBuffer keeps recent events in memory for the debug overlay.
package otel

import (
	"encoding/json"
	"strings"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an observability event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Follow controller
	KindFollowAttach       EventKind = "follow.attach"
	KindFollowDetach       EventKind = "follow.detach"
	KindIndicatorShown     EventKind = "follow.indicator"
	KindJumpToTail         EventKind = "follow.jump"
	KindScrollScheduled    EventKind = "follow.scroll_scheduled"
	KindScrollSuperseded   EventKind = "follow.scroll_superseded"
	KindScrollFired        EventKind = "follow.scroll_fired"
	KindScrollDropped      EventKind = "follow.scroll_dropped"
	KindFollowBaselineDown EventKind = "follow.baseline_reset"

	// Planner
	KindPlan EventKind = "render.plan"

	// Ingest
	KindFetchStart    EventKind = "fetch.start"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"

	// Store events
	KindStoreError EventKind = "store.error"

	// UI events
	KindKeyPress    EventKind = "ui.key"
	KindViewRender  EventKind = "ui.render"
	KindFeedMounted EventKind = "ui.mount"
	KindFeedClosed  EventKind = "ui.unmount"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"

	// Trace events
	KindMsgReceived EventKind = "trace.msg_received"
	KindMsgHandled  EventKind = "trace.msg_handled"
)

// Subsystem returns the part of the kind before the first dot.
func (k EventKind) Subsystem() string {
	s := string(k)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// Event is the universal observability record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // component: "follow", "ui", "fetch", "main"
	SessionID string         `json:"session_id,omitempty"` // random hex, same for entire app run
	Feed      string         `json:"feed,omitempty"`       // conversation the event belongs to
	Dur       time.Duration  `json:"-"`                    // not serialized directly
	DurMs     float64        `json:"dur_ms,omitempty"`     // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Source    string         `json:"source,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`   // free text
	Extra     map[string]any `json:"extra,omitempty"` // escape hatch for unusual fields
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

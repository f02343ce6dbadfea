package otel

import (
	"maps"
	"slices"
	"sync"
)

// DefaultRingSize is the capacity used when NewRingBuffer is given none.
const DefaultRingSize = 1024

// RingBuffer keeps the most recent events in memory for the debug overlay,
// with a running tally of the kinds it currently holds.
type RingBuffer struct {
	mu     sync.Mutex
	events []Event
	next   int // slot the next Push writes
	full   bool
	kinds  map[EventKind]int
}

// NewRingBuffer creates a ring holding up to size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{
		events: make([]Event, size),
		kinds:  make(map[EventKind]int),
	}
}

// Push records e, evicting the oldest event once the ring is full.
// Extra is cloned so the emitter can keep mutating its map.
func (r *RingBuffer) Push(e Event) {
	e.Extra = maps.Clone(e.Extra)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full {
		evicted := r.events[r.next].Kind
		r.kinds[evicted]--
		if r.kinds[evicted] == 0 {
			delete(r.kinds, evicted)
		}
	}
	r.events[r.next] = e
	r.kinds[e.Kind]++

	r.next++
	if r.next == len(r.events) {
		r.next = 0
		r.full = true
	}
}

// Query selects buffered events. Empty fields match everything.
type Query struct {
	Subsystem string // kind prefix, e.g. "follow" or "fetch"
	Feed      string // conversation
	N         int    // newest N matches; <= 0 for all
}

func (q Query) matches(e Event) bool {
	if q.Subsystem != "" && e.Kind.Subsystem() != q.Subsystem {
		return false
	}
	return q.Feed == "" || e.Feed == q.Feed
}

// Recent returns the newest events matching q, oldest first.
func (r *RingBuffer) Recent(q Query) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for i := 0; i < r.lenLocked(); i++ {
		if q.N > 0 && len(out) == q.N {
			break
		}
		if e := r.newestLocked(i); q.matches(e) {
			out = append(out, e)
		}
	}
	slices.Reverse(out)
	return out
}

// Counts returns the number of buffered events of each kind.
func (r *RingBuffer) Counts() map[EventKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.kinds)
}

// Len returns the number of buffered events.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

// Cap returns the ring capacity.
func (r *RingBuffer) Cap() int {
	return len(r.events)
}

func (r *RingBuffer) lenLocked() int {
	if r.full {
		return len(r.events)
	}
	return r.next
}

// newestLocked returns the i-th most recent event; 0 is the latest.
func (r *RingBuffer) newestLocked(i int) Event {
	size := len(r.events)
	return r.events[(r.next-1-i+size)%size]
}

package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// teaScheduler is a follow.Scheduler for the Bubble Tea event loop.
// After only records the callback and queues a tea.Tick; the callback runs
// later on the Update goroutine when the matching scrollDueMsg arrives, so
// controller and surface are never touched concurrently.
type teaScheduler struct {
	view    uint64
	nextID  uint64
	pending map[uint64]func()
	outbox  []tea.Cmd
}

func newTeaScheduler(view uint64) *teaScheduler {
	return &teaScheduler{view: view, pending: make(map[uint64]func())}
}

// After implements follow.Scheduler.
func (s *teaScheduler) After(d time.Duration, fn func()) func() {
	s.nextID++
	id := s.nextID
	s.pending[id] = fn

	view := s.view
	s.outbox = append(s.outbox, tea.Tick(d, func(time.Time) tea.Msg {
		return scrollDueMsg{view: view, id: id}
	}))
	return func() { delete(s.pending, id) }
}

// fire runs the callback for id if it is still pending.
func (s *teaScheduler) fire(id uint64) bool {
	fn, ok := s.pending[id]
	if !ok {
		return false
	}
	delete(s.pending, id)
	fn()
	return true
}

// drain returns the ticks queued since the last drain.
func (s *teaScheduler) drain() tea.Cmd {
	if len(s.outbox) == 0 {
		return nil
	}
	cmds := s.outbox
	s.outbox = nil
	return tea.Batch(cmds...)
}

// pendingCount returns the number of callbacks still waiting.
func (s *teaScheduler) pendingCount() int {
	return len(s.pending)
}

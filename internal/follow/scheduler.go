package follow

import "time"

// Scheduler runs a callback once after a delay. The returned cancel func
// prevents the callback from running if it has not started yet; calling it
// more than once is harmless. Implementations must never invoke fn from
// inside After.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler schedules callbacks on runtime timers. Callbacks run on
// their own goroutine, so the Container they reach must tolerate that.
type TimerScheduler struct{}

// After implements Scheduler.
func (TimerScheduler) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

package otel

import (
	"os"
	"strconv"
	"sync/atomic"
)

// traceEnabled is read on the UI goroutine for every message, so it is
// resolved once at init.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(traceRequested(os.Getenv("TAILFEED_TRACE")))
}

// TraceEnabled reports whether per-message tracing was requested through
// TAILFEED_TRACE.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// traceRequested interprets TAILFEED_TRACE. Booleans mean what they say;
// any other non-empty value turns tracing on.
func traceRequested(v string) bool {
	if v == "" {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return true
}

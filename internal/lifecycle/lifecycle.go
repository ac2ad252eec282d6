// Package lifecycle tracks process-wide serving state for health reporting.
package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	startedAt    atomic.Int64 // unix nanoseconds; 0 until MarkStarted
)

// MarkStarted records the moment the server began accepting traffic.
func MarkStarted(t time.Time) {
	startedAt.Store(t.UnixNano())
}

// Uptime returns the time since MarkStarted, or 0 if the server has not started.
func Uptime(now time.Time) time.Duration {
	ns := startedAt.Load()
	if ns == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, ns))
}

// SetShuttingDown sets the drain flag. Call when SIGTERM/SIGINT is received.
// The health handler returns 503 with status shutting-down while it is set.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

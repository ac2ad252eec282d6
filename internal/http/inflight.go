package http

import (
	"context"
	"sync/atomic"
	"time"
)

// InFlightTracker counts requests currently being served so shutdown can drain them.
type InFlightTracker struct {
	count atomic.Int64
}

// Increment adds one to the in-flight count. Call when a request starts.
func (t *InFlightTracker) Increment() { t.count.Add(1) }

// Decrement subtracts one from the in-flight count. Call when a request completes.
func (t *InFlightTracker) Decrement() { t.count.Add(-1) }

// Count returns the current in-flight count.
func (t *InFlightTracker) Count() int64 { return t.count.Load() }

// WaitForZero blocks until the in-flight count reaches zero or ctx is cancelled,
// re-checking every checkInterval.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if t.Count() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// inFlight is the process-wide counter maintained by MetricsMiddleware.
var inFlight = &InFlightTracker{}

// InFlightCount returns the number of requests MetricsMiddleware is serving.
func InFlightCount() int64 {
	return inFlight.Count()
}

// WaitForInFlight blocks until MetricsMiddleware has no requests in flight or ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return inFlight.WaitForZero(ctx, checkInterval)
}

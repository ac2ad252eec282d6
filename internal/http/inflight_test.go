package http

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestInFlightTracker_Count(t *testing.T) {
	tracker := &InFlightTracker{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Increment()
		}()
	}
	wg.Wait()
	if got := tracker.Count(); got != 50 {
		t.Errorf("Count() = %d, want 50", got)
	}

	for i := 0; i < 50; i++ {
		tracker.Decrement()
	}
	if got := tracker.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestInFlightTracker_WaitForZero(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- tracker.WaitForZero(ctx, 5*time.Millisecond) }()

	time.Sleep(10 * time.Millisecond)
	tracker.Decrement()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForZero() error = %v, want nil", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitForZero did not return after count reached zero")
	}
}

func TestInFlightTracker_WaitForZero_ContextCanceled(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.WaitForZero(ctx, 5*time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForZero() error = %v, want context.Canceled", err)
	}
}

func TestWaitForInFlight_Idle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := WaitForInFlight(ctx, time.Millisecond); err != nil {
		t.Errorf("WaitForInFlight() with no requests = %v, want nil", err)
	}
}

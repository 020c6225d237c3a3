package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/durapensa/ksi-sub008/core"
)

// EventRecorder captures routed events for assertions. It is safe for
// concurrent use, so tests exercising detached async emissions can share
// one recorder across goroutines.
//
// Example:
//
//	rec := testutil.NewEventRecorder()
//	rt.RegisterHandler("monitor:*", rec.Handler())
type EventRecorder struct {
	mu     sync.Mutex
	events []core.Event
}

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder { return &EventRecorder{} }

// Handler returns a core.Handler that records every event it receives.
func (r *EventRecorder) Handler() core.Handler {
	return func(_ context.Context, ev core.Event) error {
		r.Record(ev)
		return nil
	}
}

// Record appends one event directly.
func (r *EventRecorder) Record(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// All returns every recorded event in arrival order.
func (r *EventRecorder) All() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events with the given name, in order.
func (r *EventRecorder) Named(name string) []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Event
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Count returns how many events with the given name were recorded.
func (r *EventRecorder) Count(name string) int {
	return len(r.Named(name))
}

// Clear drops everything recorded so far.
func (r *EventRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// WaitFor polls until at least n events with the given name have been
// recorded or the timeout passes, reporting whether the count was
// reached. Use it to rendezvous with detached async emissions.
func (r *EventRecorder) WaitFor(name string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if r.Count(name) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(2 * time.Millisecond)
	}
}

package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the primary unit of communication between transformers, handlers
// and external clients. After emission it should be treated as immutable. It
// captures:
//   - Identity (Name, the routing key such as "agent:spawned")
//   - Payload (Data, an arbitrary string-keyed mapping)
//   - Lineage (ContextRef, a reference resolvable through the context store)
//   - High precision UTC timestamp
//
// Data may be nil for signal-only events. The full lineage context is never
// embedded; the router resolves ContextRef on dispatch so events stay cheap
// to copy and to serialize.
type Event struct {
	Name       string         `json:"name"`
	Data       map[string]any `json:"data,omitempty"`
	ContextRef string         `json:"context_ref,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewEvent creates an event carrying the given payload. The context reference
// is attached later by whichever component emits it.
func NewEvent(name string, data map[string]any) Event {
	return Event{
		Name:      name,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewID generates a new unique identifier for events, contexts and requests.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }

// Clone returns a copy of the event with a shallowly copied data mapping, so
// a consumer can annotate its copy without racing other consumers.
func (e Event) Clone() Event {
	c := e
	if e.Data != nil {
		c.Data = make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			c.Data[k] = v
		}
	}
	return c
}

// String returns the data field named key as a string, or "" when absent or
// not a string. Convenience for handlers picking ids out of payloads.
func (e Event) String(key string) string {
	if e.Data == nil {
		return ""
	}
	s, _ := e.Data[key].(string)
	return s
}

// Emitter is the contract modules use to put events on the bus. Emit blocks
// until the synchronous portion of the resulting cascade has completed;
// transformers marked async detach and do not hold up the return.
type Emitter interface {
	Emit(ctx context.Context, name string, data map[string]any) error
}

// Handler consumes events whose name matches the pattern it was registered
// under. Handlers run inline on the dispatching goroutine; a returned error
// is reported and isolated, it never stops sibling handlers.
type Handler func(ctx context.Context, event Event) error

package router

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Emit after Shutdown has been called.
	ErrClosed = errors.New("router is closed")
)

// DepthExceededError reports a cascade that passed the configured depth
// limit. The lineage it names is halted: its first over-limit event still
// reaches subscribed handlers, deeper emissions are refused.
type DepthExceededError struct {
	// EventName is the event whose emission tripped the guard.
	EventName string

	// Depth is the lineage depth the emission would have had.
	Depth int

	// MaxDepth is the configured limit.
	MaxDepth int

	// CorrelationID identifies the cascade that was halted.
	CorrelationID string
}

// Error implements the error interface.
func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("cascade depth exceeded for event %q: depth %d > max %d (correlation %s)",
		e.EventName, e.Depth, e.MaxDepth, e.CorrelationID)
}

// IsDepthExceededError reports whether err is (or wraps) a
// DepthExceededError.
func IsDepthExceededError(err error) bool {
	var de *DepthExceededError
	return errors.As(err, &de)
}

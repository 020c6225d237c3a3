package orchestration

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no orchestration exists under the
	// given id (or its record has already been dropped after retention).
	ErrNotFound = errors.New("orchestration not found")

	// ErrUnauthorizedTermination is returned when a terminate request
	// comes from anyone but the orchestration's coordinator agent. The
	// orchestration's state is untouched.
	ErrUnauthorizedTermination = errors.New("termination rejected: requester is not the coordinator agent")

	// ErrTerminalState is returned by operations that require a live
	// orchestration when the target is already completed, errored, or
	// terminated.
	ErrTerminalState = errors.New("orchestration is in a terminal state")

	// ErrClosed is returned by Start after the coordinator has been
	// closed.
	ErrClosed = errors.New("coordinator is closed")
)

// SpawnError reports a failed agent spawn during Start. The
// orchestration it names is in StatusError with FailedAgent set.
type SpawnError struct {
	OrchestrationID string
	AgentID         string
	Cause           error
}

// Error implements the error interface.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn failed for agent %q in orchestration %q: %v",
		e.AgentID, e.OrchestrationID, e.Cause)
}

// Unwrap exposes the underlying spawner error.
func (e *SpawnError) Unwrap() error { return e.Cause }

// IsSpawnError reports whether err is (or wraps) a SpawnError.
func IsSpawnError(err error) bool {
	var se *SpawnError
	return errors.As(err, &se)
}

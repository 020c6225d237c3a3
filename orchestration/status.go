package orchestration

// Status is the lifecycle state of an orchestration.
type Status string

const (
	// StatusCreated is the birth state, before any agent is spawned.
	StatusCreated Status = "created"

	// StatusInitializing covers the spawn phase.
	StatusInitializing Status = "initializing"

	// StatusRunning means every agent spawned and routing is live.
	StatusRunning Status = "running"

	// StatusCompleted is the successful terminal state.
	StatusCompleted Status = "completed"

	// StatusError is the terminal state after a spawn or agent failure.
	StatusError Status = "error"

	// StatusTerminated is the terminal state after an authorized
	// termination request.
	StatusTerminated Status = "terminated"
)

// Terminal reports whether s is one of the three end states. Terminal
// states are sticky: no operation transitions out of them.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusTerminated:
		return true
	}
	return false
}

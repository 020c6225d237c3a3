package orchestration

import "context"

// SpawnRequest carries everything a Spawner needs to start one agent:
// the addressing from its AgentSpec, its hierarchy position, and its
// merged variables.
type SpawnRequest struct {
	OrchestrationID string
	AgentID         string
	Component       string
	Profile         string
	Parent          string
	Depth           int
	Vars            map[string]any
}

// Spawner starts agent processes on behalf of the coordinator. The
// coordinator treats it as synchronous: a nil return means the agent is
// up (or durably starting), an error means the spawn failed and the
// orchestration goes to StatusError.
//
// Implementations range from in-process goroutine agents to external
// process launchers; the default used when none is supplied accepts
// every request, which suits purely event-driven (logical) agents.
type Spawner interface {
	Spawn(ctx context.Context, req SpawnRequest) error
}

// SpawnerFunc adapts a function to the Spawner interface.
type SpawnerFunc func(ctx context.Context, req SpawnRequest) error

// Spawn implements Spawner.
func (f SpawnerFunc) Spawn(ctx context.Context, req SpawnRequest) error {
	return f(ctx, req)
}

// acceptAllSpawner is the default Spawner: every agent is logical, no
// process is started.
type acceptAllSpawner struct{}

func (acceptAllSpawner) Spawn(context.Context, SpawnRequest) error { return nil }

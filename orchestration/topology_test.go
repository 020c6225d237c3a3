package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologyValidate(t *testing.T) {
	valid := Topology{
		CoordinatorAgentID: "coord",
		Agents: []AgentSpec{
			{ID: "coord", Component: "components/coordinator"},
			{ID: "worker", Profile: "profiles/worker", Parent: "coord"},
		},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name     string
		mutate   func(top *Topology)
		contains string
	}{
		{
			name:     "MissingCoordinator",
			mutate:   func(top *Topology) { top.CoordinatorAgentID = "" },
			contains: "coordinator",
		},
		{
			name:     "NoAgents",
			mutate:   func(top *Topology) { top.Agents = nil },
			contains: "at least one agent",
		},
		{
			name:     "MissingAgentID",
			mutate:   func(top *Topology) { top.Agents[1].ID = "" },
			contains: "requires an id",
		},
		{
			name:     "DuplicateAgentID",
			mutate:   func(top *Topology) { top.Agents[1].ID = "coord" },
			contains: "duplicate agent id",
		},
		{
			name: "MissingAddressing",
			mutate: func(top *Topology) {
				top.Agents[1].Profile = ""
			},
			contains: "component or profile",
		},
		{
			name:     "SelfParent",
			mutate:   func(top *Topology) { top.Agents[0].Parent = "coord" },
			contains: "own parent",
		},
		{
			name:     "ParentDeclaredLater",
			mutate:   func(top *Topology) { top.Agents[0].Parent = "worker" },
			contains: "before it is declared",
		},
		{
			name:     "UnknownParent",
			mutate:   func(top *Topology) { top.Agents[1].Parent = "ghost" },
			contains: "before it is declared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			top := Topology{
				CoordinatorAgentID: valid.CoordinatorAgentID,
				Agents:             append([]AgentSpec(nil), valid.Agents...),
			}
			tt.mutate(&top)
			err := top.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestMergeVars(t *testing.T) {
	shared := map[string]any{"model": "sonnet", "retries": 2}
	overrides := map[string]any{"model": "haiku"}

	merged := mergeVars(shared, overrides)
	assert.Equal(t, "haiku", merged["model"])
	assert.Equal(t, 2, merged["retries"])

	// The result must be detached from both inputs.
	merged["retries"] = 99
	assert.Equal(t, 2, shared["retries"])
	assert.NotContains(t, overrides, "retries")
}

func TestMergeVarsNilInputs(t *testing.T) {
	merged := mergeVars(nil, nil)
	require.NotNil(t, merged)
	assert.Empty(t, merged)

	merged = mergeVars(nil, map[string]any{"k": "v"})
	assert.Equal(t, "v", merged["k"])
}

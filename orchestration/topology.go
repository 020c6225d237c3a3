package orchestration

import "fmt"

// AgentSpec declares one agent in a topology.
//
// Addressing is by component (a concrete implementation path) or by
// profile (a named configuration the spawner resolves); at least one
// must be set. Parent names another agent declared earlier in the same
// topology, which fixes the hierarchy as a DAG at declaration time: a
// child can never precede (or be) its own ancestor.
type AgentSpec struct {
	// ID uniquely identifies the agent within its orchestration.
	ID string `yaml:"id" json:"id"`

	// Component addresses the agent implementation to spawn.
	Component string `yaml:"component,omitempty" json:"component,omitempty"`

	// Profile addresses a named agent profile to spawn.
	Profile string `yaml:"profile,omitempty" json:"profile,omitempty"`

	// Parent is the id of this agent's parent in the hierarchy. Empty
	// means the agent is a hierarchy root.
	Parent string `yaml:"parent,omitempty" json:"parent,omitempty"`

	// SubscriptionLevel controls how far below itself the agent hears:
	// messages from a descendant at distance d are delivered when
	// d <= SubscriptionLevel, and a negative level means unlimited.
	// Zero means "use the default" of 1 (direct children only).
	SubscriptionLevel int `yaml:"subscription_level,omitempty" json:"subscription_level,omitempty"`

	// Vars are per-agent variables merged over the topology's shared
	// vars, with the per-agent value winning on key collision.
	Vars map[string]any `yaml:"vars,omitempty" json:"vars,omitempty"`
}

// Topology declares the shape of an orchestration: its agents, their
// hierarchy, the shared variables, and the coordinator agent that is
// authorized to control the orchestration's lifecycle.
type Topology struct {
	// ID optionally fixes the orchestration id. Empty mints one.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	// CoordinatorAgentID names the agent (or external identity) that
	// receives completion/error notifications and may terminate the
	// orchestration.
	CoordinatorAgentID string `yaml:"coordinator_agent_id" json:"coordinator_agent_id"`

	// Vars are shared across every agent in the orchestration.
	Vars map[string]any `yaml:"vars,omitempty" json:"vars,omitempty"`

	// Agents are spawned in declaration order.
	Agents []AgentSpec `yaml:"agents" json:"agents"`
}

// Validate checks structural soundness: non-empty coordinator, at least
// one agent, unique ids, component-or-profile addressing, and parents
// declared before their children.
func (t Topology) Validate() error {
	if t.CoordinatorAgentID == "" {
		return fmt.Errorf("orchestration: topology requires a coordinator agent id")
	}
	if len(t.Agents) == 0 {
		return fmt.Errorf("orchestration: topology requires at least one agent")
	}

	seen := make(map[string]bool, len(t.Agents))
	for i, spec := range t.Agents {
		if spec.ID == "" {
			return fmt.Errorf("orchestration: agent %d requires an id", i)
		}
		if seen[spec.ID] {
			return fmt.Errorf("orchestration: duplicate agent id %q", spec.ID)
		}
		if spec.Component == "" && spec.Profile == "" {
			return fmt.Errorf("orchestration: agent %q requires a component or profile", spec.ID)
		}
		if spec.Parent != "" {
			if spec.Parent == spec.ID {
				return fmt.Errorf("orchestration: agent %q cannot be its own parent", spec.ID)
			}
			if !seen[spec.Parent] {
				return fmt.Errorf("orchestration: agent %q declares parent %q before it is declared", spec.ID, spec.Parent)
			}
		}
		seen[spec.ID] = true
	}
	return nil
}

// mergeVars layers per-agent overrides over shared vars. Always returns
// a fresh map so agents never share mutable state.
func mergeVars(shared, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(shared)+len(overrides))
	for k, v := range shared {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

package orchestration

import "time"

// AgentNode is an agent's runtime position in an orchestration: its spec
// addressing plus the resolved hierarchy placement.
type AgentNode struct {
	ID                string         `json:"id"`
	Component         string         `json:"component,omitempty"`
	Profile           string         `json:"profile,omitempty"`
	Parent            string         `json:"parent,omitempty"`
	Children          []string       `json:"children,omitempty"`
	Depth             int            `json:"depth"`
	SubscriptionLevel int            `json:"subscription_level"`
	Vars              map[string]any `json:"vars,omitempty"`
	SpawnedAt         time.Time      `json:"spawned_at"`
}

func (n *AgentNode) clone() AgentNode {
	cp := *n
	if n.Children != nil {
		cp.Children = append([]string(nil), n.Children...)
	}
	if n.Vars != nil {
		cp.Vars = make(map[string]any, len(n.Vars))
		for k, v := range n.Vars {
			cp.Vars[k] = v
		}
	}
	return cp
}

// Orchestration is a point-in-time snapshot of one orchestration's
// state, safe to hold after the call that produced it. Agents appear in
// spawn order; after the first cleanup phase the slice is empty and only
// identity, status, and final results remain.
type Orchestration struct {
	ID                 string         `json:"id"`
	Status             Status         `json:"status"`
	CoordinatorAgentID string         `json:"coordinator_agent_id"`
	Vars               map[string]any `json:"vars,omitempty"`
	Agents             []AgentNode    `json:"agents,omitempty"`
	FailedAgent        string         `json:"failed_agent,omitempty"`
	Error              string         `json:"error,omitempty"`
	Result             map[string]any `json:"result,omitempty"`
	HistorySize        int            `json:"history_size"`
	CreatedAt          time.Time      `json:"created_at"`
	LastActivity       time.Time      `json:"last_activity"`
}

// record is the live, coordinator-private state of one orchestration.
// Every field is guarded by the coordinator's mutex.
type record struct {
	id          string
	status      Status
	coordinator string
	vars        map[string]any
	agents      map[string]*AgentNode
	order       []string
	history     *ring
	failedAgent string
	errMsg      string
	result      map[string]any
	createdAt   time.Time
	activity    time.Time
	cleaned     bool

	idleTimer    *time.Timer
	cleanupTimer *time.Timer
	dropTimer    *time.Timer
}

func (rec *record) snapshotLocked() Orchestration {
	o := Orchestration{
		ID:                 rec.id,
		Status:             rec.status,
		CoordinatorAgentID: rec.coordinator,
		FailedAgent:        rec.failedAgent,
		Error:              rec.errMsg,
		CreatedAt:          rec.createdAt,
		LastActivity:       rec.activity,
	}
	if rec.vars != nil {
		o.Vars = make(map[string]any, len(rec.vars))
		for k, v := range rec.vars {
			o.Vars[k] = v
		}
	}
	if rec.result != nil {
		o.Result = make(map[string]any, len(rec.result))
		for k, v := range rec.result {
			o.Result[k] = v
		}
	}
	if rec.history != nil {
		o.HistorySize = rec.history.len()
	}
	for _, id := range rec.order {
		if n, ok := rec.agents[id]; ok {
			o.Agents = append(o.Agents, n.clone())
		}
	}
	return o
}

// stopTimersLocked halts pending idle and cleanup work, used when the
// coordinator closes before the timers fire.
func (rec *record) stopTimersLocked() {
	if rec.idleTimer != nil {
		rec.idleTimer.Stop()
		rec.idleTimer = nil
	}
	if rec.cleanupTimer != nil {
		rec.cleanupTimer.Stop()
		rec.cleanupTimer = nil
	}
	if rec.dropTimer != nil {
		rec.dropTimer.Stop()
		rec.dropTimer = nil
	}
}

package orchestration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/durapensa/ksi-sub008/core"
	"github.com/durapensa/ksi-sub008/logging"
	"github.com/durapensa/ksi-sub008/router"
	"github.com/durapensa/ksi-sub008/template"
)

// Event names the coordinator emits. Everything the coordinator does is
// observable through these, so monitors and transformers can follow an
// orchestration without touching coordinator state.
const (
	// EventStarted marks entry into the spawn phase.
	EventStarted = "orchestration:started"

	// EventRunning marks a fully spawned topology.
	EventRunning = "orchestration:running"

	// EventMessage is one hierarchical message delivery: data carries
	// orchestration_id, from, to, event, and the original payload.
	EventMessage = "orchestration:message"

	// EventCompleted marks the successful terminal transition.
	EventCompleted = "orchestration:completed"

	// EventFailed marks the error terminal transition, with the failing
	// agent named.
	EventFailed = "orchestration:error"

	// EventTerminated marks an authorized termination.
	EventTerminated = "orchestration:terminated"

	// EventEscalation reports an orchestration idle past the configured
	// deadline.
	EventEscalation = "orchestration:escalation"

	// EventStateQuery is the request event StateQueryHandler answers.
	EventStateQuery = "orchestration:state"

	// EventStateResult carries the answer to a state query.
	EventStateResult = "orchestration:state:result"

	// EventAgentSpawned is emitted per agent as the topology comes up.
	EventAgentSpawned = "agent:spawned"

	// EventAgentShutdown signals one member to shut down during
	// termination. Cooperative: dispatched messages are not recalled.
	EventAgentShutdown = "agent:shutdown"
)

// Config defines tuning parameters for orchestration lifecycle behavior.
type Config struct {
	// HistoryCapacity bounds each orchestration's event history ring.
	// When full, the oldest entry is evicted.
	HistoryCapacity int

	// CleanupDelay is how long after a terminal state the hierarchy and
	// history bookkeeping is retained before being released.
	CleanupDelay time.Duration

	// RetentionWindow is how long after a terminal state the record
	// itself (identity, status, final results) stays queryable before
	// being dropped.
	RetentionWindow time.Duration

	// IdleTimeout, when positive, bounds how long a running
	// orchestration may sit without agent activity before an
	// EventEscalation is emitted. Zero disables the check.
	IdleTimeout time.Duration
}

// DefaultConfig provides production-ready defaults: a hundred-entry
// history, half a minute of post-terminal bookkeeping, an hour of result
// retention, and no idle escalation.
var DefaultConfig = Config{
	HistoryCapacity: 100,
	CleanupDelay:    30 * time.Second,
	RetentionWindow: time.Hour,
}

// Options configures a Coordinator instance using the functional options
// pattern.
type Options struct {
	// Config contains lifecycle tuning parameters. Defaults to
	// DefaultConfig if not specified.
	Config Config

	// Emitter routes the coordinator's events. Defaults to a
	// self-contained router so a bare New() works in tests.
	Emitter core.Emitter

	// Spawner starts agents during Start. Defaults to an accept-all
	// spawner for purely logical agents.
	Spawner Spawner

	// Logger provides structured logging. Defaults to a no-op logger.
	Logger logging.Logger
}

// Coordinator owns every orchestration in the daemon, keyed by id in a
// flat table. It is the single mutator of orchestration state; one mutex
// guards the table and the records, and no event is emitted while it is
// held, so handlers may freely call back into the coordinator.
type Coordinator struct {
	config  Config
	emitter core.Emitter
	spawner Spawner
	logger  logging.Logger

	mu      sync.Mutex
	records map[string]*record
	closed  bool
}

// New creates a Coordinator.
//
// Example:
//
//	coord := orchestration.New(func(o *orchestration.Options) {
//	    o.Emitter = rt
//	    o.Spawner = mySpawner
//	    o.Logger = myLogger
//	})
func New(optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Emitter == nil {
		opts.Emitter = router.New()
	}
	if opts.Spawner == nil {
		opts.Spawner = acceptAllSpawner{}
	}

	return &Coordinator{
		config:  opts.Config,
		emitter: opts.Emitter,
		spawner: opts.Spawner,
		logger:  opts.Logger,
		records: make(map[string]*record),
	}
}

// Start validates the topology, registers the orchestration, and spawns
// its agents in declaration order. Each agent's variables are the shared
// vars overlaid with its per-agent overrides.
//
// The first spawn failure stops everything: remaining spawns are
// abandoned, the orchestration transitions to StatusError with
// FailedAgent set, the coordinator agent is notified, and the returned
// error is a SpawnError. There is no silent partial topology.
//
// On success the orchestration is StatusRunning and the returned id
// addresses it in every other call.
func (c *Coordinator) Start(ctx context.Context, top Topology) (string, error) {
	if err := top.Validate(); err != nil {
		return "", err
	}

	id := top.ID
	if id == "" {
		id = "orch_" + uuid.NewString()
	}

	now := time.Now().UTC()
	rec := &record{
		id:          id,
		status:      StatusCreated,
		coordinator: top.CoordinatorAgentID,
		vars:        cloneMap(top.Vars),
		agents:      make(map[string]*AgentNode, len(top.Agents)),
		history:     newRing(c.config.HistoryCapacity),
		createdAt:   now,
		activity:    now,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if _, exists := c.records[id]; exists {
		c.mu.Unlock()
		return "", fmt.Errorf("orchestration: id %q already exists", id)
	}
	rec.status = StatusInitializing
	c.records[id] = rec
	c.mu.Unlock()

	c.logger.Info("orchestration starting",
		"orchestration_id", id,
		"agents", len(top.Agents),
		"coordinator", top.CoordinatorAgentID,
	)
	c.emit(ctx, EventStarted, map[string]any{
		"orchestration_id": id,
		"coordinator":      top.CoordinatorAgentID,
		"agents":           len(top.Agents),
	})

	for _, spec := range top.Agents {
		c.mu.Lock()
		if rec.status.Terminal() {
			// Terminated (or failed) while initializing: abandon the
			// remaining spawns.
			c.mu.Unlock()
			return id, ErrTerminalState
		}
		depth := 0
		if spec.Parent != "" {
			if pn := rec.agents[spec.Parent]; pn != nil {
				depth = pn.Depth + 1
			}
		}
		c.mu.Unlock()

		req := SpawnRequest{
			OrchestrationID: id,
			AgentID:         spec.ID,
			Component:       spec.Component,
			Profile:         spec.Profile,
			Parent:          spec.Parent,
			Depth:           depth,
			Vars:            mergeVars(top.Vars, spec.Vars),
		}
		if err := c.spawner.Spawn(ctx, req); err != nil {
			serr := &SpawnError{OrchestrationID: id, AgentID: spec.ID, Cause: err}
			_ = c.Fail(ctx, id, spec.ID, serr, nil)
			return id, serr
		}

		level := spec.SubscriptionLevel
		if level == 0 {
			level = 1
		}
		node := &AgentNode{
			ID:                spec.ID,
			Component:         spec.Component,
			Profile:           spec.Profile,
			Parent:            spec.Parent,
			Depth:             depth,
			SubscriptionLevel: level,
			Vars:              req.Vars,
			SpawnedAt:         time.Now().UTC(),
		}

		c.mu.Lock()
		rec.agents[spec.ID] = node
		rec.order = append(rec.order, spec.ID)
		if spec.Parent != "" {
			if pn := rec.agents[spec.Parent]; pn != nil {
				pn.Children = append(pn.Children, spec.ID)
			}
		}
		rec.activity = time.Now().UTC()
		c.mu.Unlock()

		c.emit(ctx, EventAgentSpawned, map[string]any{
			"orchestration_id": id,
			"agent_id":         spec.ID,
			"parent":           spec.Parent,
			"depth":            depth,
			"component":        spec.Component,
			"profile":          spec.Profile,
		})
	}

	c.mu.Lock()
	if rec.status.Terminal() {
		c.mu.Unlock()
		return id, ErrTerminalState
	}
	rec.status = StatusRunning
	c.armIdleLocked(rec)
	c.mu.Unlock()

	c.emit(ctx, EventRunning, map[string]any{
		"orchestration_id": id,
		"agents":           len(top.Agents),
	})
	c.logger.Info("orchestration running", "orchestration_id", id)
	return id, nil
}

// Get returns a snapshot of the orchestration's current state.
func (c *Coordinator) Get(id string) (Orchestration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok {
		return Orchestration{}, ErrNotFound
	}
	return rec.snapshotLocked(), nil
}

// List returns snapshots of every tracked orchestration, oldest first.
func (c *Coordinator) List() []Orchestration {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Orchestration, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec.snapshotLocked())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// History returns the retained agent events, oldest first. After the
// first cleanup phase the history is gone and the result is empty.
func (c *Coordinator) History(id string) ([]HistoryEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.history == nil {
		return nil, nil
	}
	return rec.history.snapshot(), nil
}

// RouteMessage delivers one message within the orchestration's
// hierarchy and returns how many targets it was delivered to.
//
// Targets are the sender's ancestors whose subscription level covers the
// distance, unless the payload carries an explicit "to" (a string or a
// list of strings), which overrides resolution entirely. Each delivery
// is one EventMessage emission through the routing engine.
//
// After a terminal state no deliveries happen and the count is zero;
// that is suppression, not an error.
func (c *Coordinator) RouteMessage(ctx context.Context, id, from, event string, payload map[string]any) (int, error) {
	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return 0, ErrNotFound
	}
	if rec.status.Terminal() {
		c.mu.Unlock()
		c.logger.Debug("message suppressed after terminal state",
			"orchestration_id", id,
			"from", from,
			"event", event,
		)
		return 0, nil
	}
	targets, overridden := explicitTargets(payload)
	if !overridden {
		targets = rec.routeTargetsLocked(from)
	}
	rec.activity = time.Now().UTC()
	c.armIdleLocked(rec)
	c.mu.Unlock()

	for _, to := range targets {
		c.emit(ctx, EventMessage, map[string]any{
			"orchestration_id": id,
			"from":             from,
			"to":               to,
			"event":            event,
			"payload":          payload,
		})
	}
	if len(targets) == 0 {
		c.logger.Debug("message resolved to no targets",
			"orchestration_id", id,
			"from", from,
			"event", event,
		)
	}
	return len(targets), nil
}

// OnAgentEvent records one agent event into the orchestration's bounded
// history and refreshes last-activity. Trailing events arriving after a
// terminal state are still recorded until cleanup releases the history.
func (c *Coordinator) OnAgentEvent(id, agentID, event string, result map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.history == nil {
		return ErrTerminalState
	}
	rec.history.push(HistoryEntry{
		AgentID:   agentID,
		Event:     event,
		Result:    cloneMap(result),
		Timestamp: time.Now().UTC(),
	})
	rec.activity = time.Now().UTC()
	if rec.status == StatusRunning {
		c.armIdleLocked(rec)
	}
	return nil
}

// Complete transitions the orchestration to StatusCompleted, stores the
// final result, notifies the coordinator agent, and schedules cleanup.
func (c *Coordinator) Complete(ctx context.Context, id string, result map[string]any) error {
	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	if rec.status.Terminal() {
		c.mu.Unlock()
		return ErrTerminalState
	}
	rec.status = StatusCompleted
	rec.result = cloneMap(result)
	rec.activity = time.Now().UTC()
	coordinatorID := rec.coordinator
	c.scheduleCleanupLocked(rec)
	c.mu.Unlock()

	data := map[string]any{"orchestration_id": id}
	if result != nil {
		data["result"] = result
	}
	c.emit(ctx, EventCompleted, data)
	c.notifyCoordinator(ctx, id, coordinatorID, EventCompleted, data)
	c.logger.Info("orchestration completed", "orchestration_id", id)
	return nil
}

// Fail transitions the orchestration to StatusError, records the failing
// agent and cause, preserves any partial results, notifies the
// coordinator agent, and schedules cleanup.
func (c *Coordinator) Fail(ctx context.Context, id, failedAgent string, cause error, partial map[string]any) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	if rec.status.Terminal() {
		c.mu.Unlock()
		return ErrTerminalState
	}
	rec.status = StatusError
	rec.failedAgent = failedAgent
	rec.errMsg = msg
	rec.result = cloneMap(partial)
	rec.activity = time.Now().UTC()
	coordinatorID := rec.coordinator
	c.scheduleCleanupLocked(rec)
	c.mu.Unlock()

	data := map[string]any{
		"orchestration_id": id,
		"failed_agent":     failedAgent,
		"error":            msg,
	}
	if partial != nil {
		data["partial_result"] = partial
	}
	c.emit(ctx, EventFailed, data)
	c.notifyCoordinator(ctx, id, coordinatorID, EventFailed, data)
	c.logger.Error("orchestration failed",
		"orchestration_id", id,
		"failed_agent", failedAgent,
		"error", msg,
	)
	return nil
}

// Terminate requests a graceful shutdown of the orchestration.
//
// Only the orchestration's coordinator agent may terminate it; any other
// requester gets ErrUnauthorizedTermination and the orchestration is
// untouched. On acceptance every member is signaled with an
// EventAgentShutdown, the status becomes StatusTerminated, future
// routing is suppressed, and cleanup is scheduled. Messages already
// dispatched are not recalled.
func (c *Coordinator) Terminate(ctx context.Context, id, reason, requester string) error {
	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	if requester != rec.coordinator {
		c.mu.Unlock()
		c.logger.Warn("unauthorized termination rejected",
			"orchestration_id", id,
			"requester", requester,
		)
		return ErrUnauthorizedTermination
	}
	if rec.status.Terminal() {
		c.mu.Unlock()
		return ErrTerminalState
	}
	rec.status = StatusTerminated
	rec.activity = time.Now().UTC()
	members := append([]string(nil), rec.order...)
	c.scheduleCleanupLocked(rec)
	c.mu.Unlock()

	for _, agentID := range members {
		c.emit(ctx, EventAgentShutdown, map[string]any{
			"orchestration_id": id,
			"agent_id":         agentID,
			"reason":           reason,
		})
	}
	c.emit(ctx, EventTerminated, map[string]any{
		"orchestration_id": id,
		"reason":           reason,
		"requester":        requester,
	})
	c.logger.Info("orchestration terminated",
		"orchestration_id", id,
		"reason", reason,
	)
	return nil
}

// Close stops every pending idle and cleanup timer and refuses further
// Starts. It does not transition orchestration states; the daemon is
// going away, not the orchestrations.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for _, rec := range c.records {
		rec.stopTimersLocked()
	}
	return nil
}

// StateQueryHandler answers EventStateQuery events by emitting an
// EventStateResult with the orchestration's current status. Register it
// on the router to make orchestrations introspectable over the bus.
func (c *Coordinator) StateQueryHandler() core.Handler {
	return func(ctx context.Context, ev core.Event) error {
		id := ev.String("orchestration_id")
		if id == "" {
			return fmt.Errorf("orchestration: state query requires an orchestration_id")
		}
		o, err := c.Get(id)
		if err != nil {
			return err
		}

		data := map[string]any{
			"orchestration_id": o.ID,
			"status":           string(o.Status),
			"coordinator":      o.CoordinatorAgentID,
			"agents":           len(o.Agents),
			"history_size":     o.HistorySize,
		}
		if o.FailedAgent != "" {
			data["failed_agent"] = o.FailedAgent
		}
		c.emit(ctx, EventStateResult, data)
		return nil
	}
}

// RegisterTemplateFuncs installs the orchestration-domain resolver
// functions into a template evaluator, so transformer mappings can
// compute routing targets and hierarchy membership:
//
//	targets: "{{route_targets(orchestration_id, from)}}"
//	children: "{{hierarchy_children(orchestration_id, agent_id)}}"
func (c *Coordinator) RegisterTemplateFuncs(ev *template.Evaluator) error {
	if err := ev.RegisterFunc("route_targets", c.routeTargetsFunc); err != nil {
		return err
	}
	return ev.RegisterFunc("hierarchy_children", c.hierarchyChildrenFunc)
}

func (c *Coordinator) routeTargetsFunc(args ...any) (any, error) {
	id, from, err := twoStringArgs("route_targets", args)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	targets := rec.routeTargetsLocked(from)
	out := make([]any, len(targets))
	for i, t := range targets {
		out[i] = t
	}
	return out, nil
}

func (c *Coordinator) hierarchyChildrenFunc(args ...any) (any, error) {
	id, agentID, err := twoStringArgs("hierarchy_children", args)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	node := rec.agents[agentID]
	if node == nil {
		return []any{}, nil
	}
	out := make([]any, len(node.Children))
	for i, child := range node.Children {
		out[i] = child
	}
	return out, nil
}

func twoStringArgs(fn string, args []any) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("%s expects 2 arguments, got %d", fn, len(args))
	}
	a, ok := args[0].(string)
	if !ok {
		return "", "", fmt.Errorf("%s: first argument must be a string", fn)
	}
	b, ok := args[1].(string)
	if !ok {
		return "", "", fmt.Errorf("%s: second argument must be a string", fn)
	}
	return a, b, nil
}

// routeTargetsLocked resolves hierarchy targets for a message from the
// given agent: its ancestors, nearest first, filtered by each ancestor's
// subscription level against the distance.
func (rec *record) routeTargetsLocked(from string) []string {
	node := rec.agents[from]
	if node == nil {
		return nil
	}
	var out []string
	d := 1
	for p := node.Parent; p != ""; d++ {
		pn := rec.agents[p]
		if pn == nil {
			break
		}
		if pn.SubscriptionLevel < 0 || d <= pn.SubscriptionLevel {
			out = append(out, p)
		}
		p = pn.Parent
	}
	return out
}

// explicitTargets extracts a "to" override from the payload. The second
// result reports whether an override was present at all, so an explicit
// empty list means "deliver to nobody" rather than "resolve normally".
func explicitTargets(payload map[string]any) ([]string, bool) {
	v, ok := payload["to"]
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, true
		}
		return []string{t}, true
	case []string:
		return append([]string(nil), t...), true
	case []any:
		out := make([]string, 0, len(t))
		for _, el := range t {
			if s, ok := el.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

// notifyCoordinator routes a lifecycle notification to the coordinator
// agent as a directed EventMessage. System notifications carry no
// "from".
func (c *Coordinator) notifyCoordinator(ctx context.Context, id, coordinatorID, event string, payload map[string]any) {
	c.emit(ctx, EventMessage, map[string]any{
		"orchestration_id": id,
		"to":               coordinatorID,
		"event":            event,
		"payload":          payload,
	})
}

// scheduleCleanupLocked arms the two-phase cleanup after a terminal
// transition: bookkeeping release after CleanupDelay, record drop after
// RetentionWindow. Idempotent; the idle timer is cancelled since a
// terminal orchestration cannot escalate.
func (c *Coordinator) scheduleCleanupLocked(rec *record) {
	if rec.idleTimer != nil {
		rec.idleTimer.Stop()
		rec.idleTimer = nil
	}
	if c.closed || rec.cleanupTimer != nil || rec.dropTimer != nil {
		return
	}
	id := rec.id
	rec.cleanupTimer = time.AfterFunc(c.config.CleanupDelay, func() { c.releaseBookkeeping(id) })
	rec.dropTimer = time.AfterFunc(c.config.RetentionWindow, func() { c.dropRecord(id) })
}

// releaseBookkeeping is cleanup phase one: hierarchy and history go,
// identity and final results stay.
func (c *Coordinator) releaseBookkeeping(id string) {
	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok || rec.cleaned {
		c.mu.Unlock()
		return
	}
	rec.agents = make(map[string]*AgentNode)
	rec.order = nil
	rec.history = nil
	rec.cleaned = true
	c.mu.Unlock()

	c.logger.Debug("orchestration bookkeeping released", "orchestration_id", id)
}

// dropRecord is cleanup phase two: the record disappears entirely.
func (c *Coordinator) dropRecord(id string) {
	c.mu.Lock()
	delete(c.records, id)
	c.mu.Unlock()

	c.logger.Debug("orchestration record dropped", "orchestration_id", id)
}

// armIdleLocked (re)starts the idle escalation timer for a running
// orchestration.
func (c *Coordinator) armIdleLocked(rec *record) {
	if c.config.IdleTimeout <= 0 || c.closed {
		return
	}
	if rec.idleTimer != nil {
		rec.idleTimer.Stop()
	}
	id := rec.id
	rec.idleTimer = time.AfterFunc(c.config.IdleTimeout, func() { c.idleExpired(id) })
}

// idleExpired fires from the idle timer: if the orchestration is still
// running and genuinely idle, an escalation event is emitted. The timer
// re-arms only on new activity, so one idle period escalates once.
func (c *Coordinator) idleExpired(id string) {
	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok || rec.status != StatusRunning {
		c.mu.Unlock()
		return
	}
	idle := time.Since(rec.activity)
	if idle < c.config.IdleTimeout {
		// Activity raced the timer; wait out the remainder.
		remaining := c.config.IdleTimeout - idle
		rec.idleTimer = time.AfterFunc(remaining, func() { c.idleExpired(id) })
		c.mu.Unlock()
		return
	}
	rec.idleTimer = nil
	coordinatorID := rec.coordinator
	c.mu.Unlock()

	c.logger.Warn("orchestration idle past deadline",
		"orchestration_id", id,
		"idle_seconds", idle.Seconds(),
	)
	c.emit(context.Background(), EventEscalation, map[string]any{
		"orchestration_id": id,
		"coordinator":      coordinatorID,
		"idle_seconds":     idle.Seconds(),
	})
}

// emit sends one event through the routing engine; emission failures are
// logged, never propagated, since coordinator state has already moved.
func (c *Coordinator) emit(ctx context.Context, name string, data map[string]any) {
	if err := c.emitter.Emit(ctx, name, data); err != nil {
		c.logger.Error("orchestration event emission failed",
			"event", name,
			"error", err.Error(),
		)
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

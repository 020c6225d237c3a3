package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durapensa/ksi-sub008/internal/testutil"
	"github.com/durapensa/ksi-sub008/router"
	"github.com/durapensa/ksi-sub008/template"
)

var _ Spawner = SpawnerFunc(nil)

// newTestCoordinator wires a coordinator to a real router with a
// catch-all recorder, so tests observe exactly what the rest of the
// daemon would.
func newTestCoordinator(t *testing.T, optFns ...func(o *Options)) (*Coordinator, *router.Router, *testutil.EventRecorder) {
	t.Helper()

	rec := testutil.NewEventRecorder()
	rt := router.New()
	require.NoError(t, rt.RegisterHandler("*", rec.Handler()))

	all := append([]func(o *Options){func(o *Options) { o.Emitter = rt }}, optFns...)
	return New(all...), rt, rec
}

// testTopology is a three-level chain: coord supervises worker1, which
// supervises worker2. The coordinator listens at unlimited depth,
// worker1 at the default (direct children only).
func testTopology() Topology {
	return Topology{
		CoordinatorAgentID: "coord",
		Vars:               map[string]any{"model": "sonnet", "retries": 2},
		Agents: []AgentSpec{
			{ID: "coord", Component: "components/coordinator", SubscriptionLevel: -1},
			{ID: "worker1", Component: "components/worker", Parent: "coord", Vars: map[string]any{"model": "haiku"}},
			{ID: "worker2", Profile: "profiles/researcher", Parent: "worker1"},
		},
	}
}

func TestCoordinatorStartLifecycle(t *testing.T) {
	coord, _, rec := newTestCoordinator(t)
	ctx := context.Background()

	id, err := coord.Start(ctx, testTopology())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "orch_"))

	o, err := coord.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, o.Status)
	assert.Equal(t, "coord", o.CoordinatorAgentID)
	assert.Equal(t, map[string]any{"model": "sonnet", "retries": 2}, o.Vars)
	assert.Equal(t, 0, o.HistorySize)
	assert.False(t, o.LastActivity.IsZero())

	require.Len(t, o.Agents, 3)
	assert.Equal(t, "coord", o.Agents[0].ID)
	assert.Equal(t, "worker1", o.Agents[1].ID)
	assert.Equal(t, "worker2", o.Agents[2].ID)
	assert.Equal(t, 0, o.Agents[0].Depth)
	assert.Equal(t, 1, o.Agents[1].Depth)
	assert.Equal(t, 2, o.Agents[2].Depth)
	assert.Equal(t, []string{"worker1"}, o.Agents[0].Children)
	assert.Equal(t, []string{"worker2"}, o.Agents[1].Children)

	// Subscription levels: explicit -1 kept, zero normalized to 1.
	assert.Equal(t, -1, o.Agents[0].SubscriptionLevel)
	assert.Equal(t, 1, o.Agents[1].SubscriptionLevel)

	// Per-agent vars override the shared ones.
	assert.Equal(t, "haiku", o.Agents[1].Vars["model"])
	assert.Equal(t, 2, o.Agents[1].Vars["retries"])
	assert.Equal(t, "sonnet", o.Agents[2].Vars["model"])

	assert.Equal(t, 1, rec.Count(EventStarted))
	assert.Equal(t, 3, rec.Count(EventAgentSpawned))
	assert.Equal(t, 1, rec.Count(EventRunning))

	spawned := rec.Named(EventAgentSpawned)
	assert.Equal(t, "coord", spawned[0].String("agent_id"))
	assert.Equal(t, 0, spawned[0].Data["depth"])
	assert.Equal(t, "worker2", spawned[2].String("agent_id"))
	assert.Equal(t, "worker1", spawned[2].String("parent"))
	assert.Equal(t, 2, spawned[2].Data["depth"])
}

func TestCoordinatorStartValidatesTopology(t *testing.T) {
	coord, _, rec := newTestCoordinator(t)

	_, err := coord.Start(context.Background(), Topology{Agents: []AgentSpec{{ID: "a", Component: "c"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coordinator")

	assert.Empty(t, coord.List())
	assert.Empty(t, rec.All())
}

func TestCoordinatorDuplicateID(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	top := testTopology()
	top.ID = "orch_fixed"
	_, err := coord.Start(ctx, top)
	require.NoError(t, err)

	_, err = coord.Start(ctx, top)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestCoordinatorSpawnFailure(t *testing.T) {
	errBoom := errors.New("sandbox unavailable")

	var mu sync.Mutex
	var requests []SpawnRequest
	spawner := SpawnerFunc(func(_ context.Context, req SpawnRequest) error {
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		if req.AgentID == "worker1" {
			return errBoom
		}
		return nil
	})

	coord, _, rec := newTestCoordinator(t, func(o *Options) { o.Spawner = spawner })
	ctx := context.Background()

	id, err := coord.Start(ctx, testTopology())
	require.Error(t, err)
	require.True(t, IsSpawnError(err))
	assert.True(t, errors.Is(err, errBoom))

	var serr *SpawnError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, id, serr.OrchestrationID)
	assert.Equal(t, "worker1", serr.AgentID)

	// The failing spawn stops the rollout: worker2 is never attempted.
	require.Len(t, requests, 2)
	assert.Equal(t, "coord", requests[0].AgentID)
	assert.Equal(t, 0, requests[0].Depth)
	assert.Equal(t, map[string]any{"model": "sonnet", "retries": 2}, requests[0].Vars)
	assert.Equal(t, "worker1", requests[1].AgentID)
	assert.Equal(t, 1, requests[1].Depth)
	assert.Equal(t, "haiku", requests[1].Vars["model"])

	o, err := coord.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusError, o.Status)
	assert.Equal(t, "worker1", o.FailedAgent)
	assert.Contains(t, o.Error, "sandbox unavailable")

	assert.Equal(t, 1, rec.Count(EventAgentSpawned))
	assert.Equal(t, 0, rec.Count(EventRunning))
	require.Equal(t, 1, rec.Count(EventFailed))
	failed := rec.Named(EventFailed)[0]
	assert.Equal(t, "worker1", failed.String("failed_agent"))

	// The coordinator agent is notified of the failure.
	require.Equal(t, 1, rec.Count(EventMessage))
	assert.Equal(t, "coord", rec.Named(EventMessage)[0].String("to"))

	// A failed orchestration routes nothing.
	n, err := coord.RouteMessage(ctx, id, "coord", "retry", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCoordinatorRouteMessageHierarchy(t *testing.T) {
	coord, _, rec := newTestCoordinator(t)
	ctx := context.Background()

	id, err := coord.Start(ctx, testTopology())
	require.NoError(t, err)
	rec.Clear()

	// worker2 bubbles to worker1 (distance 1, level 1) and coord
	// (distance 2, unlimited), nearest first.
	n, err := coord.RouteMessage(ctx, id, "worker2", "progress", map[string]any{"pct": 50})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs := rec.Named(EventMessage)
	require.Len(t, msgs, 2)
	assert.Equal(t, "worker1", msgs[0].String("to"))
	assert.Equal(t, "coord", msgs[1].String("to"))
	for _, m := range msgs {
		assert.Equal(t, id, m.String("orchestration_id"))
		assert.Equal(t, "worker2", m.String("from"))
		assert.Equal(t, "progress", m.String("event"))
		payload, ok := m.Data["payload"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 50, payload["pct"])
	}

	rec.Clear()
	n, err = coord.RouteMessage(ctx, id, "worker1", "status", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "coord", rec.Named(EventMessage)[0].String("to"))

	// The root has no ancestors.
	n, err = coord.RouteMessage(ctx, id, "coord", "status", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// An unknown sender resolves to nobody rather than erroring.
	n, err = coord.RouteMessage(ctx, id, "ghost", "status", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = coord.RouteMessage(ctx, "orch_unknown", "worker2", "status", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCoordinatorRouteMessageSubscriptionLevel(t *testing.T) {
	chain := func(rootLevel int) Topology {
		return Topology{
			CoordinatorAgentID: "root",
			Agents: []AgentSpec{
				{ID: "root", Component: "c", SubscriptionLevel: rootLevel},
				{ID: "mid", Component: "c", Parent: "root"},
				{ID: "leaf", Component: "c", Parent: "mid"},
			},
		}
	}

	t.Run("DefaultLevelHearsDirectChildrenOnly", func(t *testing.T) {
		coord, _, rec := newTestCoordinator(t)
		ctx := context.Background()
		id, err := coord.Start(ctx, chain(0))
		require.NoError(t, err)
		rec.Clear()

		n, err := coord.RouteMessage(ctx, id, "leaf", "tick", nil)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		assert.Equal(t, "mid", rec.Named(EventMessage)[0].String("to"))
	})

	t.Run("WiderLevelHearsGrandchildren", func(t *testing.T) {
		coord, _, rec := newTestCoordinator(t)
		ctx := context.Background()
		id, err := coord.Start(ctx, chain(2))
		require.NoError(t, err)
		rec.Clear()

		n, err := coord.RouteMessage(ctx, id, "leaf", "tick", nil)
		require.NoError(t, err)
		require.Equal(t, 2, n)
		msgs := rec.Named(EventMessage)
		assert.Equal(t, "mid", msgs[0].String("to"))
		assert.Equal(t, "root", msgs[1].String("to"))
	})
}

func TestCoordinatorRouteMessageExplicitTo(t *testing.T) {
	coord, _, rec := newTestCoordinator(t)
	ctx := context.Background()

	id, err := coord.Start(ctx, testTopology())
	require.NoError(t, err)

	t.Run("String", func(t *testing.T) {
		rec.Clear()
		n, err := coord.RouteMessage(ctx, id, "worker2", "report", map[string]any{"to": "coord"})
		require.NoError(t, err)
		require.Equal(t, 1, n)
		assert.Equal(t, "coord", rec.Named(EventMessage)[0].String("to"))
	})

	t.Run("List", func(t *testing.T) {
		rec.Clear()
		payload := map[string]any{"to": []any{"worker1", "worker2"}}
		n, err := coord.RouteMessage(ctx, id, "coord", "fanout", payload)
		require.NoError(t, err)
		require.Equal(t, 2, n)
		msgs := rec.Named(EventMessage)
		assert.Equal(t, "worker1", msgs[0].String("to"))
		assert.Equal(t, "worker2", msgs[1].String("to"))
	})

	t.Run("StringSlice", func(t *testing.T) {
		rec.Clear()
		payload := map[string]any{"to": []string{"worker2"}}
		n, err := coord.RouteMessage(ctx, id, "coord", "direct", payload)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("EmptyListDeliversToNobody", func(t *testing.T) {
		rec.Clear()
		n, err := coord.RouteMessage(ctx, id, "worker2", "quiet", map[string]any{"to": []any{}})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Empty(t, rec.Named(EventMessage))
	})

	t.Run("EmptyStringDeliversToNobody", func(t *testing.T) {
		rec.Clear()
		n, err := coord.RouteMessage(ctx, id, "worker2", "quiet", map[string]any{"to": ""})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestCoordinatorAgentEventHistory(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, func(o *Options) { o.Config.HistoryCapacity = 2 })
	ctx := context.Background()

	id, err := coord.Start(ctx, testTopology())
	require.NoError(t, err)

	require.NoError(t, coord.OnAgentEvent(id, "worker1", "task:claimed", nil))
	require.NoError(t, coord.OnAgentEvent(id, "worker2", "task:done", map[string]any{"ok": true}))

	entries, err := coord.History(id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "worker1", entries[0].AgentID)
	assert.Equal(t, "task:claimed", entries[0].Event)
	assert.Equal(t, "worker2", entries[1].AgentID)
	assert.Equal(t, true, entries[1].Result["ok"])
	assert.False(t, entries[1].Timestamp.IsZero())

	// The third event evicts the oldest.
	require.NoError(t, coord.OnAgentEvent(id, "coord", "summary", nil))
	entries, err = coord.History(id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "task:done", entries[0].Event)
	assert.Equal(t, "summary", entries[1].Event)

	o, err := coord.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 2, o.HistorySize)

	assert.ErrorIs(t, coord.OnAgentEvent("orch_unknown", "a", "e", nil), ErrNotFound)
}

func TestCoordinatorComplete(t *testing.T) {
	coord, _, rec := newTestCoordinator(t)
	ctx := context.Background()

	id, err := coord.Start(ctx, testTopology())
	require.NoError(t, err)
	rec.Clear()

	result := map[string]any{"answer": 42}
	require.NoError(t, coord.Complete(ctx, id, result))

	o, err := coord.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, 42, o.Result["answer"])

	require.Equal(t, 1, rec.Count(EventCompleted))
	completed := rec.Named(EventCompleted)[0]
	assert.Equal(t, id, completed.String("orchestration_id"))
	res, ok := completed.Data["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 42, res["answer"])

	// The coordinator agent gets a directed notification without a
	// sender: lifecycle messages come from the system, not an agent.
	require.Equal(t, 1, rec.Count(EventMessage))
	msg := rec.Named(EventMessage)[0]
	assert.Equal(t, "coord", msg.String("to"))
	assert.Equal(t, EventCompleted, msg.String("event"))
	_, hasFrom := msg.Data["from"]
	assert.False(t, hasFrom)

	// Terminal states are sticky.
	assert.ErrorIs(t, coord.Complete(ctx, id, nil), ErrTerminalState)
	assert.ErrorIs(t, coord.Terminate(ctx, id, "late", "coord"), ErrTerminalState)

	// Routing is suppressed, but trailing agent events still land in
	// history until cleanup releases it.
	rec.Clear()
	n, err := coord.RouteMessage(ctx, id, "worker2", "late", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, rec.All())

	require.NoError(t, coord.OnAgentEvent(id, "worker2", "late:result", nil))
	entries, err := coord.History(id)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCoordinatorFailRecordsPartialResult(t *testing.T) {
	coord, _, rec := newTestCoordinator(t)
	ctx := context.Background()

	id, err := coord.Start(ctx, testTopology())
	require.NoError(t, err)
	rec.Clear()

	partial := map[string]any{"draft": "incomplete analysis"}
	require.NoError(t, coord.Fail(ctx, id, "worker2", errors.New("model refused"), partial))

	o, err := coord.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusError, o.Status)
	assert.Equal(t, "worker2", o.FailedAgent)
	assert.Equal(t, "model refused", o.Error)
	assert.Equal(t, "incomplete analysis", o.Result["draft"])

	require.Equal(t, 1, rec.Count(EventFailed))
	failed := rec.Named(EventFailed)[0]
	assert.Equal(t, "worker2", failed.String("failed_agent"))
	assert.Equal(t, "model refused", failed.String("error"))
	pr, ok := failed.Data["partial_result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "incomplete analysis", pr["draft"])

	assert.ErrorIs(t, coord.Fail(ctx, id, "worker1", errors.New("again"), nil), ErrTerminalState)
}

func TestCoordinatorTerminateAuthorization(t *testing.T) {
	coord, _, rec := newTestCoordinator(t)
	ctx := context.Background()

	id, err := coord.Start(ctx, testTopology())
	require.NoError(t, err)
	rec.Clear()

	// Only the declared coordinator agent may terminate.
	err = coord.Terminate(ctx, id, "mutiny", "worker1")
	assert.ErrorIs(t, err, ErrUnauthorizedTermination)

	o, err := coord.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, o.Status)
	assert.Empty(t, rec.All())

	require.NoError(t, coord.Terminate(ctx, id, "objective met", "coord"))

	o, err = coord.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusTerminated, o.Status)

	// Every member gets a shutdown signal in spawn order, then the
	// terminated event closes it out.
	shutdowns := rec.Named(EventAgentShutdown)
	require.Len(t, shutdowns, 3)
	assert.Equal(t, "coord", shutdowns[0].String("agent_id"))
	assert.Equal(t, "worker1", shutdowns[1].String("agent_id"))
	assert.Equal(t, "worker2", shutdowns[2].String("agent_id"))
	assert.Equal(t, "objective met", shutdowns[0].String("reason"))

	require.Equal(t, 1, rec.Count(EventTerminated))
	term := rec.Named(EventTerminated)[0]
	assert.Equal(t, "objective met", term.String("reason"))
	assert.Equal(t, "coord", term.String("requester"))

	n, err := coord.RouteMessage(ctx, id, "worker1", "late", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.ErrorIs(t, coord.Terminate(ctx, id, "again", "coord"), ErrTerminalState)
	assert.ErrorIs(t, coord.Terminate(ctx, "orch_unknown", "r", "coord"), ErrNotFound)
}

func TestCoordinatorCleanupPhases(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, func(o *Options) {
		o.Config.CleanupDelay = 25 * time.Millisecond
		o.Config.RetentionWindow = 120 * time.Millisecond
	})
	ctx := context.Background()

	id, err := coord.Start(ctx, testTopology())
	require.NoError(t, err)
	require.NoError(t, coord.OnAgentEvent(id, "worker1", "partial", nil))
	require.NoError(t, coord.Complete(ctx, id, map[string]any{"answer": 42}))

	// Before phase one everything is still queryable.
	o, err := coord.Get(id)
	require.NoError(t, err)
	assert.Len(t, o.Agents, 3)
	assert.Equal(t, 1, o.HistorySize)

	// Phase one: hierarchy and history released, identity and result
	// retained.
	time.Sleep(60 * time.Millisecond)
	o, err = coord.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Empty(t, o.Agents)
	assert.Equal(t, 0, o.HistorySize)
	assert.Equal(t, 42, o.Result["answer"])

	entries, err := coord.History(id)
	require.NoError(t, err)
	assert.Nil(t, entries)
	assert.ErrorIs(t, coord.OnAgentEvent(id, "worker1", "too:late", nil), ErrTerminalState)

	// Phase two: the record is gone entirely.
	time.Sleep(140 * time.Millisecond)
	_, err = coord.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = coord.History(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCoordinatorIdleEscalation(t *testing.T) {
	coord, _, rec := newTestCoordinator(t, func(o *Options) {
		o.Config.IdleTimeout = 30 * time.Millisecond
	})
	ctx := context.Background()

	id, err := coord.Start(ctx, testTopology())
	require.NoError(t, err)

	require.True(t, rec.WaitFor(EventEscalation, 1, 2*time.Second))
	esc := rec.Named(EventEscalation)[0]
	assert.Equal(t, id, esc.String("orchestration_id"))
	assert.Equal(t, "coord", esc.String("coordinator"))
	assert.NotNil(t, esc.Data["idle_seconds"])

	// One idle period escalates once; without new activity the timer
	// stays quiet.
	time.Sleep(90 * time.Millisecond)
	assert.Equal(t, 1, rec.Count(EventEscalation))

	// Activity re-arms the deadline.
	require.NoError(t, coord.OnAgentEvent(id, "worker1", "heartbeat", nil))
	require.True(t, rec.WaitFor(EventEscalation, 2, 2*time.Second))

	// Terminal states stop escalation.
	require.NoError(t, coord.Complete(ctx, id, nil))
	time.Sleep(90 * time.Millisecond)
	assert.Equal(t, 2, rec.Count(EventEscalation))
}

func TestCoordinatorStateQueryHandler(t *testing.T) {
	coord, rt, rec := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, rt.RegisterHandler(EventStateQuery, coord.StateQueryHandler()))

	id, err := coord.Start(ctx, testTopology())
	require.NoError(t, err)
	rec.Clear()

	require.NoError(t, rt.Emit(ctx, EventStateQuery, map[string]any{"orchestration_id": id}))

	require.Equal(t, 1, rec.Count(EventStateResult))
	res := rec.Named(EventStateResult)[0]
	assert.Equal(t, id, res.String("orchestration_id"))
	assert.Equal(t, "running", res.String("status"))
	assert.Equal(t, "coord", res.String("coordinator"))
	assert.Equal(t, 3, res.Data["agents"])
	assert.Equal(t, 0, res.Data["history_size"])
	_, hasFailed := res.Data["failed_agent"]
	assert.False(t, hasFailed)

	// A query without an id is a handler failure, surfaced on the bus.
	rec.Clear()
	require.NoError(t, rt.Emit(ctx, EventStateQuery, nil))
	assert.Equal(t, 0, rec.Count(EventStateResult))
	assert.Equal(t, 1, rec.Count(router.EventRoutingError))
}

func TestCoordinatorTemplateFuncs(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	ev := template.New()
	require.NoError(t, coord.RegisterTemplateFuncs(ev))

	id, err := coord.Start(ctx, testTopology())
	require.NoError(t, err)

	sc := &template.Scope{Data: map[string]any{"orchestration_id": id, "from": "worker2"}}

	targets, err := ev.Eval("route_targets(orchestration_id, from)", sc)
	require.NoError(t, err)
	assert.Equal(t, []any{"worker1", "coord"}, targets)

	children, err := ev.Eval("hierarchy_children(orchestration_id, 'coord')", sc)
	require.NoError(t, err)
	assert.Equal(t, []any{"worker1"}, children)

	children, err = ev.Eval("hierarchy_children(orchestration_id, 'worker2')", sc)
	require.NoError(t, err)
	assert.Equal(t, []any{}, children)

	_, err = ev.Eval("route_targets('orch_unknown', 'worker2')", sc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ev.Eval("route_targets(orchestration_id)", sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 arguments")
}

func TestCoordinatorList(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	assert.Empty(t, coord.List())

	alpha := testTopology()
	alpha.ID = "orch_alpha"
	_, err := coord.Start(ctx, alpha)
	require.NoError(t, err)

	beta := testTopology()
	beta.ID = "orch_beta"
	_, err = coord.Start(ctx, beta)
	require.NoError(t, err)

	list := coord.List()
	require.Len(t, list, 2)
	assert.Equal(t, "orch_alpha", list[0].ID)
	assert.Equal(t, "orch_beta", list[1].ID)
}

func TestCoordinatorClose(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	require.NoError(t, coord.Close())
	_, err := coord.Start(context.Background(), testTopology())
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, coord.Close())
}

func TestSpawnErrorHelpers(t *testing.T) {
	cause := errors.New("no capacity")
	err := &SpawnError{OrchestrationID: "orch_1", AgentID: "w1", Cause: cause}

	assert.Contains(t, err.Error(), "orch_1")
	assert.Contains(t, err.Error(), "w1")
	assert.True(t, IsSpawnError(err))
	assert.False(t, IsSpawnError(errors.New("plain")))
	assert.ErrorIs(t, err, cause)
}

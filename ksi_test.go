package ksi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durapensa/ksi-sub008/completion"
	"github.com/durapensa/ksi-sub008/internal/testutil"
	"github.com/durapensa/ksi-sub008/orchestration"
	"github.com/durapensa/ksi-sub008/transformer"
)

func TestNewDefaults(t *testing.T) {
	d, err := New()
	require.NoError(t, err)

	assert.NotNil(t, d.Router())
	assert.NotNil(t, d.Coordinator())
	assert.NotNil(t, d.Completions())
	assert.NotNil(t, d.Registry())
	assert.NotNil(t, d.Lineage())

	assert.Zero(t, d.Registry().Len())
	assert.Equal(t, "mock", d.Completions().Backend().Info().Provider)

	require.NoError(t, d.Shutdown(context.Background()))
	assert.NoError(t, d.Shutdown(context.Background()), "shutdown is idempotent")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(func(o *Options) {
		o.Config.HistoryCapacity = 0
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history capacity")
}

func TestDaemonTransformerFlow(t *testing.T) {
	const doc = `
transformers:
  - name: high_load_alert
    source: "agent:status"
    target: "monitor:alert"
    condition: severity == "high"
    mapping:
      agent: "{{agent_id}}"
      message: "{{agent_id}} is at {{value}}"
`
	d, err := New()
	require.NoError(t, err)
	defer d.Shutdown(context.Background())

	n, err := d.LoadTransformers(transformer.ScopeApplication, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, d.Registry().Len())

	rec := testutil.NewEventRecorder()
	require.NoError(t, d.RegisterHandler("monitor:alert", rec.Handler()))

	ctx := context.Background()
	require.NoError(t, d.Emit(ctx, "agent:status", map[string]any{
		"agent_id": "worker_1", "value": 93, "severity": "high",
	}))
	require.NoError(t, d.Emit(ctx, "agent:status", map[string]any{
		"agent_id": "worker_2", "value": 7, "severity": "low",
	}))

	alerts := rec.Named("monitor:alert")
	require.Len(t, alerts, 1, "the low severity event must be filtered")
	assert.Equal(t, "worker_1", alerts[0].Data["agent"])
	assert.Equal(t, "worker_1 is at 93", alerts[0].Data["message"])

	// The routed event descends from the triggering one.
	require.NotEmpty(t, alerts[0].ContextRef)
	lc, err := d.Lineage().Resolve(alerts[0].ContextRef)
	require.NoError(t, err)
	assert.Equal(t, 1, lc.Depth)
	assert.NotEmpty(t, lc.ParentEventID)
}

func TestDaemonRegisterTransformer(t *testing.T) {
	d, err := New()
	require.NoError(t, err)
	defer d.Shutdown(context.Background())

	def := testutil.NewDefinitionBuilder("echo").
		Source("ping:sent").
		Target("pong:sent").
		MapField("reply_to", "{{sender}}").
		Build()
	require.NoError(t, d.RegisterTransformer(def))

	// Unscoped definitions land in the application scope.
	got, err := d.Registry().Get(transformer.ScopeApplication, "echo")
	require.NoError(t, err)
	assert.Equal(t, "pong:sent", got.Target)
}

func TestDaemonCompletionOverBus(t *testing.T) {
	backend := completion.NewMockBackend()
	backend.AddResponse("ping", "pong")

	d, err := New(func(o *Options) {
		o.Backend = backend
	})
	require.NoError(t, err)

	rec := testutil.NewEventRecorder()
	require.NoError(t, d.RegisterHandler(completion.EventResult, rec.Handler()))

	ctx := context.Background()
	require.NoError(t, d.Emit(ctx, completion.EventRequest, map[string]any{
		"prompt": "ping",
	}))

	require.True(t, rec.WaitFor(completion.EventResult, 1, 2*time.Second))
	res := rec.Named(completion.EventResult)[0]
	assert.Equal(t, "pong", res.String("text"))
	assert.Equal(t, "mock", res.String("provider"))

	require.NoError(t, d.Shutdown(ctx))
}

func TestDaemonStateQueryOverBus(t *testing.T) {
	var spawned []string
	d, err := New(func(o *Options) {
		o.Spawner = orchestration.SpawnerFunc(func(ctx context.Context, req orchestration.SpawnRequest) error {
			spawned = append(spawned, req.AgentID)
			return nil
		})
	})
	require.NoError(t, err)
	defer d.Shutdown(context.Background())

	ctx := context.Background()
	id, err := d.Coordinator().Start(ctx, orchestration.Topology{
		CoordinatorAgentID: "lead",
		Agents: []orchestration.AgentSpec{
			{ID: "lead", Component: "components/coordinator"},
			{ID: "worker", Component: "components/worker", Parent: "lead"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lead", "worker"}, spawned)

	rec := testutil.NewEventRecorder()
	require.NoError(t, d.RegisterHandler(orchestration.EventStateResult, rec.Handler()))

	require.NoError(t, d.Emit(ctx, orchestration.EventStateQuery, map[string]any{
		"orchestration_id": id,
	}))

	results := rec.Named(orchestration.EventStateResult)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].String("orchestration_id"))
	assert.Equal(t, "running", results[0].String("status"))
	assert.Equal(t, 2, results[0].Data["agents"])
}

func TestDaemonLoadsTransformerDir(t *testing.T) {
	dir := t.TempDir()
	doc := []byte(`
transformers:
  - name: spawn_monitor
    source: "agent:spawned"
    target: "monitor:entity_created"
    mapping:
      entity_id: "{{agent_id}}"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "monitor.yaml"), doc, 0o600))

	d, err := New(func(o *Options) {
		o.Config.TransformerDir = dir
	})
	require.NoError(t, err)
	defer d.Shutdown(context.Background())

	got, err := d.Registry().Get(transformer.ScopeSystem, "spawn_monitor")
	require.NoError(t, err)
	assert.Equal(t, "monitor:entity_created", got.Target)
}

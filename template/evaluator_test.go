package template

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScope(data map[string]any) *Scope {
	return &Scope{Data: data}
}

func TestRenderString_NoMarkersPassthrough(t *testing.T) {
	e := New()

	out, err := e.RenderString("plain text", testScope(nil))

	assert.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestRenderString_SingleExpressionPreservesType(t *testing.T) {
	e := New()
	sc := testScope(map[string]any{"bar": 5, "flag": true, "ratio": 0.5})

	out, err := e.RenderString("{{bar}}", sc)
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	out, err = e.RenderString("{{flag}}", sc)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.RenderString("{{ratio}}", sc)
	require.NoError(t, err)
	assert.Equal(t, 0.5, out)
}

func TestRenderString_Interpolation(t *testing.T) {
	e := New()
	sc := testScope(map[string]any{"name": "worker-1", "count": 3})

	out, err := e.RenderString("agent {{name}} has {{count}} tasks", sc)

	assert.NoError(t, err)
	assert.Equal(t, "agent worker-1 has 3 tasks", out)
}

func TestRenderString_NestedPathAndIndex(t *testing.T) {
	e := New()
	sc := testScope(map[string]any{
		"agent": map[string]any{"profile": map[string]any{"role": "analyst"}},
		"steps": []any{"plan", "execute", "report"},
	})

	out, err := e.RenderString("{{agent.profile.role}}", sc)
	require.NoError(t, err)
	assert.Equal(t, "analyst", out)

	out, err = e.RenderString("{{steps.1}}", sc)
	require.NoError(t, err)
	assert.Equal(t, "execute", out)
}

func TestRenderString_WildcardMapsSequence(t *testing.T) {
	e := New()
	sc := testScope(map[string]any{
		"items": []any{
			map[string]any{"id": "a"},
			map[string]any{"id": "b"},
			map[string]any{"other": true},
		},
	})

	out, err := e.RenderString("{{items.*.id}}", sc)

	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestRenderString_Fallback(t *testing.T) {
	e := New()
	sc := testScope(map[string]any{"present": "value", "empty": nil})

	out, err := e.RenderString("{{missing|'default'}}", sc)
	require.NoError(t, err)
	assert.Equal(t, "default", out)

	out, err = e.RenderString("{{empty|42}}", sc)
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	out, err = e.RenderString("{{present|'default'}}", sc)
	require.NoError(t, err)
	assert.Equal(t, "value", out)
}

func TestRenderString_MissingPathFails(t *testing.T) {
	e := New()

	_, err := e.RenderString("{{nowhere.to.be.found}}", testScope(map[string]any{}))

	require.Error(t, err)
	assert.True(t, IsResolutionError(err))
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "nowhere.to.be.found", re.Expr)
}

func TestRenderString_Arithmetic(t *testing.T) {
	e := New()
	sc := testScope(map[string]any{"count": 4, "half": 0.5, "label": "task"})

	out, err := e.RenderString("{{count + 1}}", sc)
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	out, err = e.RenderString("{{count * 2 - 3}}", sc)
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	out, err = e.RenderString("{{count / 2}}", sc)
	require.NoError(t, err)
	assert.Equal(t, 2.0, out)

	out, err = e.RenderString("{{count + half}}", sc)
	require.NoError(t, err)
	assert.Equal(t, 4.5, out)

	out, err = e.RenderString("{{label + '-' + count}}", sc)
	require.NoError(t, err)
	assert.Equal(t, "task-4", out)

	_, err = e.RenderString("{{count / 0}}", sc)
	assert.Error(t, err)
}

func TestRenderString_BuiltinFunctions(t *testing.T) {
	e := New()
	sc := testScope(map[string]any{
		"name":  "reporter",
		"base":  map[string]any{"a": 1},
		"extra": map[string]any{"b": 2},
		"tags":  []any{"x", "y"},
	})

	out, err := e.RenderString("{{upper(name)}}", sc)
	require.NoError(t, err)
	assert.Equal(t, "REPORTER", out)

	out, err = e.RenderString("{{merge(base, extra)}}", sc)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, out)

	out, err = e.RenderString("{{join(',', tags)}}", sc)
	require.NoError(t, err)
	assert.Equal(t, "x,y", out)

	out, err = e.RenderString("{{len(tags)}}", sc)
	require.NoError(t, err)
	assert.Equal(t, 2, out)

	out, err = e.RenderString("{{timestamp_utc()}}", sc)
	require.NoError(t, err)
	ts, ok := out.(string)
	require.True(t, ok)
	_, err = time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)
}

func TestRegisterFunc_HostResolver(t *testing.T) {
	e := New()
	err := e.RegisterFunc("route_targets", func(args ...any) (any, error) {
		return []any{"coordinator"}, nil
	})
	require.NoError(t, err)

	out, err := e.RenderString("{{route_targets('orc-1')}}", testScope(nil))

	require.NoError(t, err)
	assert.Equal(t, []any{"coordinator"}, out)
}

func TestRenderString_UnknownFunction(t *testing.T) {
	e := New()

	_, err := e.RenderString("{{never_registered()}}", testScope(nil))

	require.Error(t, err)
	assert.True(t, IsResolutionError(err))
	assert.Contains(t, err.Error(), "unknown function")
}

func TestRegisterFunc_Validation(t *testing.T) {
	e := New()

	assert.Error(t, e.RegisterFunc("", func(...any) (any, error) { return nil, nil }))
	assert.Error(t, e.RegisterFunc("fn", nil))
}

func TestRender_NestedMapping(t *testing.T) {
	e := New()
	sc := testScope(map[string]any{"agent_id": "a1", "status": "ready"})

	tmpl := map[string]any{
		"entity_id": "{{agent_id}}",
		"detail": map[string]any{
			"state":  "{{status}}",
			"static": 7,
		},
		"trail": []any{"{{agent_id}}", "fixed"},
	}

	out, err := e.Render(tmpl, sc)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"entity_id": "a1",
		"detail": map[string]any{
			"state":  "ready",
			"static": 7,
		},
		"trail": []any{"a1", "fixed"},
	}, out)
}

func TestScope_ItemAndContextRoots(t *testing.T) {
	e := New()
	sc := &Scope{
		Data:    map[string]any{"item": "shadowed"},
		Context: map[string]any{"depth": 2, "correlation_id": "corr-1"},
		Item:    map[string]any{"id": "task-9"},
		HasItem: true,
	}

	out, err := e.RenderString("{{item.id}}", sc)
	require.NoError(t, err)
	assert.Equal(t, "task-9", out)

	out, err = e.RenderString("{{_context.depth}}", sc)
	require.NoError(t, err)
	assert.Equal(t, 2, out)

	// without a loop item the data field named "item" is visible again
	noItem := &Scope{Data: map[string]any{"item": "plain"}}
	out, err = e.RenderString("{{item}}", noItem)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestRenderString_Malformed(t *testing.T) {
	e := New()

	_, err := e.RenderString("{{unclosed", testScope(nil))
	assert.Error(t, err)

	_, err = e.RenderString("{{}}", testScope(nil))
	assert.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	e := New()
	sc := testScope(map[string]any{"tasks": []any{"a", "b"}})

	v, ok := e.ResolvePath("tasks", sc)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, v)

	_, ok = e.ResolvePath("absent", sc)
	assert.False(t, ok)

	_, ok = e.ResolvePath("", sc)
	assert.False(t, ok)
}

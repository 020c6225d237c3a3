package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	ev := NewEvent("agent:spawned", map[string]any{"agent_id": "a1"})

	assert.Equal(t, "agent:spawned", ev.Name)
	assert.Equal(t, "a1", ev.Data["agent_id"])
	assert.Empty(t, ev.ContextRef)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, ev.Timestamp, ev.Timestamp.UTC())
}

func TestEventClone(t *testing.T) {
	ev := NewEvent("task:queued", map[string]any{"task": "parse", "attempt": 1})

	c := ev.Clone()
	c.Data["attempt"] = 2

	assert.Equal(t, 1, ev.Data["attempt"])
	assert.Equal(t, 2, c.Data["attempt"])
	assert.Equal(t, ev.Name, c.Name)
	assert.Equal(t, ev.Timestamp, c.Timestamp)
}

func TestEventCloneNilData(t *testing.T) {
	ev := NewEvent("system:ready", nil)

	c := ev.Clone()

	assert.Nil(t, c.Data)
	assert.Equal(t, ev.Name, c.Name)
}

func TestEventString(t *testing.T) {
	ev := NewEvent("completion:result", map[string]any{
		"request_id":  "req_1",
		"duration_ms": int64(42),
	})

	assert.Equal(t, "req_1", ev.String("request_id"))
	assert.Empty(t, ev.String("duration_ms"), "non-string values read as empty")
	assert.Empty(t, ev.String("missing"))

	var empty Event
	assert.Empty(t, empty.String("anything"))
}

func TestNewID(t *testing.T) {
	a := NewID()
	b := NewID()

	require.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

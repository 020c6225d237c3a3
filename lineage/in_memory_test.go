package lineage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_SetGet(t *testing.T) {
	s := NewInMemoryStore()
	c := &Context{EventID: "e1", CorrelationID: "corr", RootEventID: "e1"}

	require.NoError(t, s.Set("ctx_e1", c, 0))

	got, err := s.Get("ctx_e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", got.EventID)
}

func TestInMemoryStore_MissingRef(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.Get("ctx_absent")
	assert.ErrorIs(t, err, ErrRefNotFound)
}

func TestInMemoryStore_TTLExpiry(t *testing.T) {
	s := NewInMemoryStore()
	c := &Context{EventID: "e1"}

	require.NoError(t, s.Set("ctx_e1", c, 10*time.Millisecond))

	got, err := s.Get("ctx_e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", got.EventID)

	time.Sleep(25 * time.Millisecond)

	_, err = s.Get("ctx_e1")
	assert.ErrorIs(t, err, ErrRefNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestInMemoryStore_ReturnsClones(t *testing.T) {
	s := NewInMemoryStore()
	c := &Context{EventID: "e1", Tags: map[string]string{"k": "v"}}
	require.NoError(t, s.Set("ctx_e1", c, 0))

	got, err := s.Get("ctx_e1")
	require.NoError(t, err)
	got.Tags["k"] = "mutated"
	got.EventID = "mutated"

	again, err := s.Get("ctx_e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", again.EventID)
	assert.Equal(t, "v", again.Tags["k"])
}

package lineage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStoreImpl for testing reference store collaboration
type MockStoreImpl struct{ mock.Mock }

var _ Store = (*MockStoreImpl)(nil)

func (m *MockStoreImpl) Get(ref string) (*Context, error) {
	args := m.Called(ref)
	if c, ok := args.Get(0).(*Context); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStoreImpl) Set(ref string, c *Context, ttl time.Duration) error {
	args := m.Called(ref, c, ttl)
	return args.Error(0)
}

func TestCreate_Root(t *testing.T) {
	m := NewManager()

	c := m.Create("client:request", nil)

	require.NotNil(t, c)
	assert.NotEmpty(t, c.EventID)
	assert.NotEmpty(t, c.CorrelationID)
	assert.Equal(t, c.EventID, c.RootEventID)
	assert.Empty(t, c.ParentEventID)
	assert.Equal(t, 0, c.Depth)
	assert.True(t, c.IsRoot())
	assert.Equal(t, "client:request", c.EventName)
}

func TestCreate_ChildInvariants(t *testing.T) {
	m := NewManager()
	root := m.Create("a:x", nil).WithAgent("agent-1").WithSession("sess-1").WithTag("team", "alpha")

	child := m.Create("b:y", root)

	assert.Equal(t, root.Depth+1, child.Depth)
	assert.Equal(t, root.CorrelationID, child.CorrelationID)
	assert.Equal(t, root.RootEventID, child.RootEventID)
	assert.Equal(t, root.EventID, child.ParentEventID)
	assert.NotEqual(t, root.EventID, child.EventID)
	assert.False(t, child.IsRoot())

	// identity and tags inherit
	assert.Equal(t, "agent-1", child.AgentID)
	assert.Equal(t, "sess-1", child.SessionID)
	assert.Equal(t, "alpha", child.Tags["team"])

	grandchild := m.Create("c:z", child)
	assert.Equal(t, 2, grandchild.Depth)
	assert.Equal(t, root.CorrelationID, grandchild.CorrelationID)
	assert.Equal(t, root.RootEventID, grandchild.RootEventID)
}

func TestCreate_AppendOnly(t *testing.T) {
	m := NewManager()
	root := m.Create("a:x", nil)
	rootID := root.EventID
	rootDepth := root.Depth

	child := m.Create("b:y", root)
	child.Tags = map[string]string{"mutated": "yes"}

	// deriving and mutating the child leaves the ancestor untouched
	assert.Equal(t, rootID, root.EventID)
	assert.Equal(t, rootDepth, root.Depth)
	assert.Nil(t, root.Tags)
}

func TestWithHelpers_CopyNotMutate(t *testing.T) {
	m := NewManager()
	base := m.Create("a:x", nil)

	tagged := base.WithAgent("a9").WithTag("k", "v")

	assert.Empty(t, base.AgentID)
	assert.Nil(t, base.Tags)
	assert.Equal(t, "a9", tagged.AgentID)
	assert.Equal(t, "v", tagged.Tags["k"])
}

func TestStoreAndResolve(t *testing.T) {
	m := NewManager()
	c := m.Create("a:x", nil)

	ref, err := m.Store(c)
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	got, err := m.Resolve(ref)
	require.NoError(t, err)
	assert.Equal(t, c.EventID, got.EventID)
	assert.Equal(t, c.CorrelationID, got.CorrelationID)
}

func TestResolve_Unknown(t *testing.T) {
	m := NewManager()

	_, err := m.Resolve("ctx_never-stored")
	assert.ErrorIs(t, err, ErrRefNotFound)

	_, err = m.Resolve("")
	assert.ErrorIs(t, err, ErrRefNotFound)
}

func TestStore_DelegatesWithRefAndTTL(t *testing.T) {
	store := &MockStoreImpl{}
	m := NewManager(func(o *Options) {
		o.Store = store
		o.TTL = 10 * time.Minute
	})
	c := m.Create("a:x", nil)

	store.On("Set", "ctx_"+c.EventID, mock.MatchedBy(func(stored *Context) bool {
		return stored.EventID == c.EventID
	}), 10*time.Minute).Return(nil)

	ref, err := m.Store(c)
	require.NoError(t, err)
	assert.Equal(t, "ctx_"+c.EventID, ref)
	store.AssertExpectations(t)
}

func TestStore_WrapsBackingError(t *testing.T) {
	store := &MockStoreImpl{}
	store.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	m := NewManager(func(o *Options) { o.Store = store })

	_, err := m.Store(m.Create("a:x", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	store.AssertExpectations(t)
}

func TestResolveOrRoot_BackendErrorDegradesToRoot(t *testing.T) {
	store := &MockStoreImpl{}
	store.On("Get", "ctx_lost").Return(nil, errors.New("backend down"))
	m := NewManager(func(o *Options) { o.Store = store })

	c := m.ResolveOrRoot("a:x", "ctx_lost")

	require.NotNil(t, c)
	assert.True(t, c.IsRoot())
	store.AssertExpectations(t)
}

func TestResolveOrRoot_FallsBackToFreshRoot(t *testing.T) {
	m := NewManager()

	c := m.ResolveOrRoot("a:x", "ctx_gone")

	require.NotNil(t, c)
	assert.True(t, c.IsRoot())
	assert.Equal(t, 0, c.Depth)
}

func TestResolveOrRoot_DerivesFromStored(t *testing.T) {
	m := NewManager()
	parent := m.Create("a:x", nil)
	ref, err := m.Store(parent)
	require.NoError(t, err)

	child := m.ResolveOrRoot("b:y", ref)

	assert.Equal(t, parent.EventID, child.ParentEventID)
	assert.Equal(t, parent.CorrelationID, child.CorrelationID)
	assert.Equal(t, 1, child.Depth)
}

func TestManager_TTLOption(t *testing.T) {
	m := NewManager(func(o *Options) { o.TTL = 5 * time.Minute })

	assert.Equal(t, 5*time.Minute, m.TTL())
}

func TestAsMap(t *testing.T) {
	m := NewManager()
	c := m.Create("a:x", nil).WithAgent("a1")

	fields := c.AsMap()

	assert.Equal(t, c.EventID, fields["event_id"])
	assert.Equal(t, c.CorrelationID, fields["correlation_id"])
	assert.Equal(t, 0, fields["depth"])
	assert.Equal(t, "a1", fields["agent_id"])
	_, hasParent := fields["parent_event_id"]
	assert.False(t, hasParent)
}

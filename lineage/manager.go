package lineage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/durapensa/ksi-sub008/logging"
)

// DefaultTTL is how long stored context references stay resolvable unless
// configured otherwise.
const DefaultTTL = time.Hour

// refPrefix namespaces context references in the store.
const refPrefix = "ctx_"

// Options configures a Manager instance using the functional options pattern.
type Options struct {
	// Store holds context records between emission and consumption.
	// Defaults to the in-memory implementation.
	Store Store

	// TTL bounds how long stored references stay resolvable.
	// Defaults to DefaultTTL.
	TTL time.Duration

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Manager creates, derives, stores and resolves lineage contexts. It owns
// the invariants: depth increments by one per derivation, correlation and
// root identifiers are inherited or minted, records are never mutated in
// place.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger logging.Logger
}

// NewManager creates a Manager with an in-memory store unless one is
// provided.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{
		Store:  NewInMemoryStore(),
		TTL:    DefaultTTL,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{store: opts.Store, ttl: opts.TTL, logger: opts.Logger}
}

// Create derives a context for an emission of eventName. A nil parent starts
// a new chain (depth 0, fresh correlation and root ids); otherwise the child
// inherits correlation, root and identity fields and sits one level deeper.
func (m *Manager) Create(eventName string, parent *Context) *Context {
	id := uuid.NewString()
	if parent == nil {
		return &Context{
			EventID:       id,
			EventName:     eventName,
			CorrelationID: uuid.NewString(),
			RootEventID:   id,
			Depth:         0,
			CreatedAt:     time.Now().UTC(),
		}
	}
	child := &Context{
		EventID:       id,
		EventName:     eventName,
		CorrelationID: parent.CorrelationID,
		ParentEventID: parent.EventID,
		RootEventID:   parent.RootEventID,
		Depth:         parent.Depth + 1,
		AgentID:       parent.AgentID,
		ClientID:      parent.ClientID,
		SessionID:     parent.SessionID,
		CreatedAt:     time.Now().UTC(),
	}
	if parent.Tags != nil {
		child.Tags = make(map[string]string, len(parent.Tags))
		for k, v := range parent.Tags {
			child.Tags[k] = v
		}
	}
	return child
}

// Store persists the context and returns the reference events carry in place
// of the full record.
func (m *Manager) Store(c *Context) (string, error) {
	if c == nil {
		return "", fmt.Errorf("cannot store nil context")
	}
	ref := refPrefix + c.EventID
	if err := m.store.Set(ref, c, m.ttl); err != nil {
		return "", fmt.Errorf("store context %s: %w", c.EventID, err)
	}
	return ref, nil
}

// Resolve returns the context a reference points at.
func (m *Manager) Resolve(ref string) (*Context, error) {
	if ref == "" {
		return nil, ErrRefNotFound
	}
	c, err := m.store.Get(ref)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ResolveOrRoot resolves ref into a parent context for a new emission of
// eventName. An empty or unresolvable reference degrades to a fresh root:
// events whose ancestry is lost keep flowing with best-effort lineage.
func (m *Manager) ResolveOrRoot(eventName, ref string) *Context {
	if ref == "" {
		return m.Create(eventName, nil)
	}
	parent, err := m.Resolve(ref)
	if err != nil {
		m.logger.Warn("context reference unresolvable, starting fresh lineage", "ref", ref, "event", eventName, "error", err)
		return m.Create(eventName, nil)
	}
	return m.Create(eventName, parent)
}

// TTL reports the configured reference lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

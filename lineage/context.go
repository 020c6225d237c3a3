package lineage

import (
	"time"
)

// Context is the causal lineage record attached to a single event emission.
// It is immutable by convention: derivations copy, ancestors are never
// touched.
//
// Invariants:
//   - Depth is parent.Depth+1, or 0 for a root
//   - CorrelationID and RootEventID are inherited from the parent, or minted
//     when the event starts a new chain
//   - ParentEventID links the causal tree; empty only on roots
type Context struct {
	EventID       string            `json:"event_id"`
	EventName     string            `json:"event_name,omitempty"`
	CorrelationID string            `json:"correlation_id"`
	ParentEventID string            `json:"parent_event_id,omitempty"`
	RootEventID   string            `json:"root_event_id"`
	Depth         int               `json:"depth"`
	AgentID       string            `json:"agent_id,omitempty"`
	ClientID      string            `json:"client_id,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// IsRoot reports whether this context starts a new causal chain.
func (c *Context) IsRoot() bool { return c.ParentEventID == "" }

// Clone returns a deep copy safe for independent mutation.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Tags != nil {
		cp.Tags = make(map[string]string, len(c.Tags))
		for k, v := range c.Tags {
			cp.Tags[k] = v
		}
	}
	return &cp
}

// WithAgent returns a copy carrying the given agent identity.
func (c *Context) WithAgent(agentID string) *Context {
	cp := c.Clone()
	cp.AgentID = agentID
	return cp
}

// WithClient returns a copy carrying the given client identity.
func (c *Context) WithClient(clientID string) *Context {
	cp := c.Clone()
	cp.ClientID = clientID
	return cp
}

// WithSession returns a copy carrying the given session identity.
func (c *Context) WithSession(sessionID string) *Context {
	cp := c.Clone()
	cp.SessionID = sessionID
	return cp
}

// WithTag returns a copy with one tag added or replaced.
func (c *Context) WithTag(key, value string) *Context {
	cp := c.Clone()
	if cp.Tags == nil {
		cp.Tags = map[string]string{}
	}
	cp.Tags[key] = value
	return cp
}

// AsMap exposes the lineage fields for template scopes, where mappings
// reference them as _context.<field>.
func (c *Context) AsMap() map[string]any {
	if c == nil {
		return nil
	}
	m := map[string]any{
		"event_id":       c.EventID,
		"correlation_id": c.CorrelationID,
		"root_event_id":  c.RootEventID,
		"depth":          c.Depth,
	}
	if c.EventName != "" {
		m["event_name"] = c.EventName
	}
	if c.ParentEventID != "" {
		m["parent_event_id"] = c.ParentEventID
	}
	if c.AgentID != "" {
		m["agent_id"] = c.AgentID
	}
	if c.ClientID != "" {
		m["client_id"] = c.ClientID
	}
	if c.SessionID != "" {
		m["session_id"] = c.SessionID
	}
	if len(c.Tags) > 0 {
		tags := make(map[string]any, len(c.Tags))
		for k, v := range c.Tags {
			tags[k] = v
		}
		m["tags"] = tags
	}
	return m
}

package transformer

import (
	"fmt"
	"strings"
)

// Scope identifies the load scope a definition belongs to. Scopes mirror
// the lifecycle of the component that owns the definitions and are the
// unit of unloading: dropping a service tears down exactly the definitions
// it contributed.
type Scope string

const (
	// ScopeSystem holds definitions loaded at daemon startup. They have no
	// external dependencies and live for the lifetime of the process.
	ScopeSystem Scope = "system"

	// ScopeService holds definitions loaded when an owning subsystem
	// initializes, and unloaded when it shuts down.
	ScopeService Scope = "service"

	// ScopeApplication holds definitions loaded on demand via an explicit
	// load request. This is the default scope for programmatic registration.
	ScopeApplication Scope = "application"
)

// valid reports whether s is one of the three known scopes.
func (s Scope) valid() bool {
	switch s {
	case ScopeSystem, ScopeService, ScopeApplication:
		return true
	}
	return false
}

// Definition is a single declarative routing rule. It is immutable once
// registered: the registry and router treat the struct and its nested
// mapping as read-only, and callers must not mutate a definition after
// handing it to Registry.Register.
//
// Source is an event-name pattern. Patterns are exact event names
// ("agent:spawned") or carry a trailing wildcard segment ("agent:*",
// bare "*"). The wildcard must be the final, complete segment and matches
// one or more remaining segments, so "agent:*" matches "agent:spawned"
// and "agent:status:changed" but not "agent".
//
// Mapping is a template tree: a mapping whose string values may contain
// {{...}} expressions rendered against the triggering event (see package
// template). Condition, when present, is a boolean filter expression (see
// package condition). Foreach, when present, is a path into the event
// data; the mapping is rendered once per element of the value it resolves
// to, with each element bound as "item".
//
// Async selects the emission mode explicitly: false awaits the target's
// full recursive processing inline, true detaches it as background work.
type Definition struct {
	// Name uniquely identifies the definition within its scope.
	Name string `yaml:"name" json:"name"`

	// Source is the event-name pattern this definition matches.
	Source string `yaml:"source" json:"source"`

	// Target is the event name emitted when the definition fires.
	Target string `yaml:"target" json:"target"`

	// Condition optionally gates the definition. Empty means always fire.
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`

	// Mapping is the template tree rendered into the target event's data.
	Mapping map[string]any `yaml:"mapping" json:"mapping"`

	// Foreach optionally names a path whose resolved value is iterated,
	// rendering the mapping once per element.
	Foreach string `yaml:"foreach,omitempty" json:"foreach,omitempty"`

	// Async detaches the target emission from the triggering cascade.
	Async bool `yaml:"async,omitempty" json:"async,omitempty"`

	// Description is free-form documentation carried with the definition.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Scope is assigned by the loader (or defaulted by the registry) and
	// is deliberately not part of the document format: a definition's
	// scope is a property of who loads it, not of the file it lives in.
	Scope Scope `yaml:"-" json:"scope,omitempty"`
}

// Validate checks the definition's required fields and pattern shape.
// It does not parse the condition or mapping expressions; those are
// validated lazily on first evaluation so that a malformed condition
// skips one definition instead of rejecting a whole document.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("transformer: definition requires a name")
	}
	if d.Source == "" {
		return fmt.Errorf("transformer: definition %q requires a source pattern", d.Name)
	}
	if err := ValidatePattern(d.Source); err != nil {
		return fmt.Errorf("transformer: definition %q: %w", d.Name, err)
	}
	if d.Target == "" {
		return fmt.Errorf("transformer: definition %q requires a target event name", d.Name)
	}
	if strings.Contains(d.Target, "*") {
		return fmt.Errorf("transformer: definition %q: target %q must be a concrete event name", d.Name, d.Target)
	}
	if d.Mapping == nil {
		return fmt.Errorf("transformer: definition %q requires a mapping (use {} for an empty payload)", d.Name)
	}
	if d.Scope != "" && !d.Scope.valid() {
		return fmt.Errorf("transformer: definition %q: unknown scope %q", d.Name, d.Scope)
	}
	return nil
}

// ValidatePattern enforces the event pattern grammar shared by transformer
// sources and router handler subscriptions: colon-separated segments where
// "*" may appear only as the final, complete segment.
func ValidatePattern(pattern string) error {
	segs := strings.Split(pattern, ":")
	for i, seg := range segs {
		if seg == "" {
			return fmt.Errorf("source pattern %q has an empty segment", pattern)
		}
		if strings.Contains(seg, "*") {
			if seg != "*" {
				return fmt.Errorf("source pattern %q: wildcard must be a whole segment", pattern)
			}
			if i != len(segs)-1 {
				return fmt.Errorf("source pattern %q: wildcard must be the final segment", pattern)
			}
		}
	}
	return nil
}

// MatchesPattern reports whether an event name matches a pattern under the
// same grammar the registry indexes: exact segment equality, with a
// trailing "*" matching one or more remaining segments.
func MatchesPattern(pattern, name string) bool {
	if pattern == name {
		return true
	}
	psegs := strings.Split(pattern, ":")
	nsegs := strings.Split(name, ":")
	for i, ps := range psegs {
		if ps == "*" && i == len(psegs)-1 {
			return len(nsegs) > i
		}
		if i >= len(nsegs) || nsegs[i] != ps {
			return false
		}
	}
	return len(nsegs) == len(psegs)
}

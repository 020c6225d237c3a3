package testutil

import (
	"github.com/durapensa/ksi-sub008/transformer"
)

// DefinitionBuilder provides a fluent helper for constructing transformer
// definitions in tests.
//
// Example:
//
//	def := testutil.NewDefinitionBuilder("spawn_monitor").
//	    Source("agent:spawned").
//	    Target("monitor:entity_created").
//	    MapField("entity_id", "{{agent_id}}").
//	    Build()
//
// Chain only the parts you need; the mapping defaults to empty rather
// than nil so the result always validates.
type DefinitionBuilder struct {
	def transformer.Definition
}

// NewDefinitionBuilder creates a builder for a definition with the given
// name.
func NewDefinitionBuilder(name string) *DefinitionBuilder {
	return &DefinitionBuilder{def: transformer.Definition{
		Name:    name,
		Mapping: map[string]any{},
	}}
}

// Source sets the source event pattern (chainable).
func (b *DefinitionBuilder) Source(pattern string) *DefinitionBuilder {
	b.def.Source = pattern
	return b
}

// Target sets the target event name (chainable).
func (b *DefinitionBuilder) Target(name string) *DefinitionBuilder {
	b.def.Target = name
	return b
}

// Condition sets the condition expression (chainable).
func (b *DefinitionBuilder) Condition(expr string) *DefinitionBuilder {
	b.def.Condition = expr
	return b
}

// Foreach sets the iteration path (chainable).
func (b *DefinitionBuilder) Foreach(path string) *DefinitionBuilder {
	b.def.Foreach = path
	return b
}

// Async marks the definition as detached (chainable).
func (b *DefinitionBuilder) Async() *DefinitionBuilder {
	b.def.Async = true
	return b
}

// Scope sets the load scope (chainable).
func (b *DefinitionBuilder) Scope(s transformer.Scope) *DefinitionBuilder {
	b.def.Scope = s
	return b
}

// MapField sets one mapping key to a template value (chainable).
func (b *DefinitionBuilder) MapField(key string, tmpl any) *DefinitionBuilder {
	b.def.Mapping[key] = tmpl
	return b
}

// Mapping replaces the whole mapping tree (chainable).
func (b *DefinitionBuilder) Mapping(m map[string]any) *DefinitionBuilder {
	b.def.Mapping = m
	return b
}

// Build returns the assembled definition.
func (b *DefinitionBuilder) Build() transformer.Definition {
	return b.def
}

// Package transformer provides the declarative rule layer of the daemon:
// definitions that rewrite one event into another, a scoped registry with
// indexed pattern lookup, and a YAML loader for definition documents.
//
// A Definition maps a source event pattern to a target event through an
// optional boolean condition, a template mapping rendered against the
// triggering event, an optional foreach iteration path, and an explicit
// async flag that decides whether the target emission detaches from the
// triggering cascade or completes inline.
//
// Definitions are grouped into three load scopes (system, service,
// application) that mirror their lifecycle: system definitions are loaded
// at daemon startup, service definitions when a subsystem initializes, and
// application definitions on demand. Names are unique within a scope;
// the same name may appear in different scopes and both definitions fire.
//
// The Registry keeps definitions in registration order and answers
// "which definitions match this event name" through a segment trie over
// source patterns, so dispatch cost tracks the number of matches rather
// than the number of registered definitions.
package transformer

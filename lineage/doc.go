// Package lineage tracks causal ancestry for every event moving through the
// daemon. Each emission gets a Context record: its own event id, the
// correlation id shared by the whole chain, parent and root event ids, and a
// depth counter that increases by exactly one per derivation. Identity fields
// (agent, client, session) and tags propagate from parent to child unless
// overridden.
//
// Records are append-only: derivation copies, it never mutates an ancestor.
// Walking parent ids reconstructs the full causal tree of a correlation.
//
// Within one synchronous handling chain the current Context rides the
// standard context.Context (NewContext / FromContext). Across process
// boundaries the full record is serialized into a wire envelope
// (EncodeWire / DecodeWire); references held in events resolve through a
// pluggable Store with TTL semantics, and an unresolvable reference degrades
// to a fresh root rather than failing the event.
package lineage

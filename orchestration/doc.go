// Package orchestration implements the hierarchical orchestration
// coordinator: lifecycle management for groups of dynamically spawned
// agents organized in a parent/child hierarchy, with depth-aware message
// routing, bounded event history, and delayed cleanup.
//
// The Coordinator owns a flat id-keyed table of orchestrations and is
// the only mutator of their state. It consumes and produces events
// through the same routing engine as everything else in the daemon:
// spawning, completion, failure, termination, and escalation all surface
// as ordinary events that transformers and handlers can observe.
//
// An orchestration moves through
//
//	created → initializing → running → {completed | error | terminated}
//
// and terminal states are sticky. Message routing follows the hierarchy
// rather than broadcasting: an agent's messages bubble up to ancestors
// whose subscription level covers the distance, unless the payload names
// explicit targets. Termination is authorized only for the coordinator
// agent and is cooperative: messages already dispatched are not
// recalled, future routing is suppressed.
//
// After a terminal state, cleanup runs in two delayed phases: hierarchy
// bookkeeping and history are released first, and the record itself is
// dropped once a retention window passes, keeping final results
// queryable in between.
package orchestration

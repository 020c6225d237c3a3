// Package core provides the foundational domain types and interfaces shared
// by every other package in the daemon. It defines the core abstractions for:
//
//   - Events (ephemeral name + data payload + context reference records)
//   - Emitter (the contract modules use to put events on the bus)
//   - Handler (plain event consumers registered alongside transformers)
//
// The package intentionally keeps implementation concerns (routing, lineage
// bookkeeping, orchestration) out of scope, exposing small interfaces to
// enable custom wiring and extensions.
package core

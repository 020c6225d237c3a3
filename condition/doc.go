// Package condition implements the boolean filter expressions attached to
// transformer definitions. A condition decides whether a matched transformer
// applies to a given event; it can compare fields, test membership, check
// prefixes and probe presence:
//
//	status == "ready"
//	attempt != 3
//	role in ["worker", "analyst"]
//	name starts_with "agent:"
//	result.summary exists
//	status == "ready" and not (role == "observer")
//
// Missing fields are falsy rather than errors: a comparison touching an
// absent path simply evaluates to false. Only malformed input produces an
// EvalError, and the caller skips that transformer while siblings proceed.
// Evaluation is pure and emits nothing.
package condition

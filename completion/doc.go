// Package completion turns LLM calls into bus traffic.
//
// A Service accepts completion requests, runs them against a pluggable
// Backend on detached goroutines, and emits the outcome as correlated
// completion:result or completion:error events. Callers never block on a
// model: Request returns an Ack immediately and the answer arrives on
// the bus as a lineage child of the request, so transformers and
// handlers can react to completions like any other event.
//
// Backends adapt concrete providers (completion/anthropic,
// completion/openai) or canned responses (MockBackend) behind one
// synchronous Complete call.
package completion

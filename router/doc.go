// Package router implements the event routing engine: the pipeline that
// takes an emitted event, derives its causal lineage, delivers it to
// subscribed handlers, and applies every matching transformer definition
// in registration order.
//
// Emission is the only entry point. Each Emit derives a child lineage
// context from the ambient one (or mints a root), so cascades track
// depth, correlation, and parentage without any caller bookkeeping.
// Non-async transformers recurse inline: their target event's entire
// cascade completes before the next matching transformer runs. Async
// transformers detach the target emission as tracked background work
// that Shutdown drains.
//
// Runaway cascades are bounded by a depth guard. The first event past
// the configured limit is still delivered to subscribed handlers and
// surfaced as a router:cascade_depth_exceeded event so the overflow is
// observable; anything deeper on the same lineage is refused outright.
//
// Failures never propagate sideways: a malformed condition, a failed
// render, or a failing handler is logged, surfaced as a router:error
// event, and the rest of the pipeline proceeds. The router retries
// nothing; retry policy belongs to callers.
package router

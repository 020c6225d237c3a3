package router

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/durapensa/ksi-sub008/condition"
	"github.com/durapensa/ksi-sub008/core"
	"github.com/durapensa/ksi-sub008/lineage"
	"github.com/durapensa/ksi-sub008/logging"
	"github.com/durapensa/ksi-sub008/template"
	"github.com/durapensa/ksi-sub008/transformer"
)

// Event names the router emits on its own behalf. Both travel as children
// of the lineage they report on, so observers can correlate them with the
// cascade that produced them.
const (
	// EventRoutingError reports an isolated pipeline failure: a malformed
	// condition, a failed mapping render, a failed target emission, or a
	// handler returning an error.
	EventRoutingError = "router:error"

	// EventDepthExceeded reports a cascade halted by the depth guard.
	EventDepthExceeded = "router:cascade_depth_exceeded"
)

// Config defines tuning parameters for the router's routing behavior.
type Config struct {
	// MaxCascadeDepth bounds how deep a single causal chain may grow.
	// An emission whose derived lineage depth exceeds this limit is
	// halted and surfaced as an EventDepthExceeded event. Set to 0 for
	// unlimited (not recommended: a self-matching transformer then
	// recurses until the stack runs out).
	MaxCascadeDepth int
}

// DefaultConfig provides production-ready defaults.
//
// MaxCascadeDepth 100 is generous for declarative rule chains, which in
// practice stay in single digits, while still catching accidental cycles
// quickly.
var DefaultConfig = Config{
	MaxCascadeDepth: 100,
}

// Options configures a Router instance using the functional options
// pattern. All dependencies have working in-memory defaults so a bare
// New() is immediately usable in tests and examples.
type Options struct {
	// Config contains operational parameters for routing behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Lineage derives and stores causal contexts. Defaults to a manager
	// backed by an in-memory store.
	Lineage *lineage.Manager

	// Registry supplies transformer definitions. Defaults to an empty
	// registry.
	Registry *transformer.Registry

	// Templates renders transformer mappings. Defaults to an evaluator
	// with the builtin function table.
	Templates *template.Evaluator

	// Conditions evaluates transformer condition expressions. Defaults
	// to a fresh evaluator.
	Conditions *condition.Evaluator

	// Logger provides structured logging. Defaults to a no-op logger.
	Logger logging.Logger
}

// subscription pairs a handler with the event pattern it listens on.
type subscription struct {
	pattern string
	fn      core.Handler
}

// Router is the event routing engine. It implements core.Emitter and is
// safe for concurrent use: emissions from different goroutines proceed
// independently, sharing only the read-mostly registry and subscription
// list.
type Router struct {
	config     Config
	lineage    *lineage.Manager
	registry   *transformer.Registry
	templates  *template.Evaluator
	conditions *condition.Evaluator
	logger     logging.Logger

	mu       sync.RWMutex
	handlers []subscription

	wg     sync.WaitGroup
	closed atomic.Bool
}

var _ core.Emitter = (*Router)(nil)

// New creates a Router.
//
// Example:
//
//	reg := transformer.NewRegistry()
//	rt := router.New(func(o *router.Options) {
//	    o.Registry = reg
//	    o.Logger = myLogger
//	})
func New(optFns ...func(o *Options)) *Router {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Lineage == nil {
		opts.Lineage = lineage.NewManager()
	}
	if opts.Registry == nil {
		opts.Registry = transformer.NewRegistry()
	}
	if opts.Templates == nil {
		opts.Templates = template.New()
	}
	if opts.Conditions == nil {
		opts.Conditions = condition.New()
	}

	return &Router{
		config:     opts.Config,
		lineage:    opts.Lineage,
		registry:   opts.Registry,
		templates:  opts.Templates,
		conditions: opts.Conditions,
		logger:     opts.Logger,
	}
}

// Registry returns the transformer registry this router dispatches from.
func (r *Router) Registry() *transformer.Registry { return r.registry }

// Lineage returns the lineage manager this router derives contexts with.
func (r *Router) Lineage() *lineage.Manager { return r.lineage }

// Templates returns the template evaluator, so embedding applications can
// register domain resolver functions for use in mappings.
func (r *Router) Templates() *template.Evaluator { return r.templates }

// RegisterHandler subscribes a handler to every event whose name matches
// pattern (same grammar as transformer sources: exact name, or trailing
// "*" wildcard). Handlers run in registration order, inline on the
// emitting goroutine, before transformer application. A handler error is
// logged and surfaced as an EventRoutingError event; it never stops the
// other handlers or the transformers.
func (r *Router) RegisterHandler(pattern string, h core.Handler) error {
	if err := transformer.ValidatePattern(pattern); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("router: handler for pattern %q must not be nil", pattern)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, subscription{pattern: pattern, fn: h})
	return nil
}

// Emit routes one event through the full pipeline.
//
// A child lineage context is derived from the ambient one carried by ctx
// (a fresh root is minted when there is none), the event is delivered to
// matching handlers, and every matching transformer definition is applied
// in registration order. The data map must not be mutated after the call.
//
// The returned error is nil for normal processing, including processing
// in which individual transformers or handlers failed; those failures
// are isolated and observable as EventRoutingError events. A non-nil
// error means the emission itself was refused: ErrClosed after Shutdown,
// or a DepthExceededError when the derived lineage passes the depth
// guard.
func (r *Router) Emit(ctx context.Context, name string, data map[string]any) error {
	if r.closed.Load() {
		return ErrClosed
	}

	parent, _ := lineage.FromContext(ctx)
	lc := r.lineage.Create(name, parent)
	return r.route(ctx, name, data, lc)
}

// EmitWithRef routes an event whose causal parent is named by a stored
// context reference instead of ambient lineage. This is the re-entry
// point for events coming back from an externally managed agent: the
// reference it carried out restores correlation and depth on the way
// in. An empty or unresolvable reference degrades to a fresh root
// rather than failing the emission.
func (r *Router) EmitWithRef(ctx context.Context, name string, data map[string]any, ref string) error {
	if r.closed.Load() {
		return ErrClosed
	}

	lc := r.lineage.ResolveOrRoot(name, ref)
	return r.route(ctx, name, data, lc)
}

// route runs the pipeline for an event whose lineage is already derived.
func (r *Router) route(ctx context.Context, name string, data map[string]any, lc *lineage.Context) error {
	ref, err := r.lineage.Store(lc)
	if err != nil {
		// The event still routes; only cross-boundary re-association is
		// degraded.
		r.logger.Warn("failed to store lineage context",
			"event", name,
			"error", err.Error(),
		)
	}

	ev := core.NewEvent(name, data)
	ev.ContextRef = ref
	cctx := lineage.NewContext(ctx, lc)

	r.logger.Debug("event emitted",
		"event", name,
		"depth", lc.Depth,
		"correlation_id", lc.CorrelationID,
	)

	if max := r.config.MaxCascadeDepth; max > 0 && lc.Depth > max {
		derr := &DepthExceededError{
			EventName:     name,
			Depth:         lc.Depth,
			MaxDepth:      max,
			CorrelationID: lc.CorrelationID,
		}
		r.logger.Warn("cascade depth exceeded",
			"event", name,
			"depth", lc.Depth,
			"max_depth", max,
			"correlation_id", lc.CorrelationID,
		)
		// The first event past the limit stays observable: handlers see
		// it and the overflow is surfaced as an event. Anything deeper is
		// refused outright, which keeps a handler that re-emits from the
		// halted lineage from looping forever.
		if lc.Depth == max+1 {
			r.dispatchHandlers(cctx, ev)
			r.emitDepthExceeded(ctx, lc, derr)
		}
		return derr
	}

	r.dispatchHandlers(cctx, ev)

	for _, def := range r.registry.Match(name) {
		r.applyTransformer(cctx, ev, lc, def)
	}
	return nil
}

// dispatchHandlers delivers ev to every matching subscription in
// registration order. Handler failures are reported after the loop so
// every handler sees the original event first.
func (r *Router) dispatchHandlers(ctx context.Context, ev core.Event) {
	r.mu.RLock()
	subs := make([]subscription, len(r.handlers))
	copy(subs, r.handlers)
	r.mu.RUnlock()

	type failure struct {
		pattern string
		err     error
	}
	var failures []failure

	for _, sub := range subs {
		if !transformer.MatchesPattern(sub.pattern, ev.Name) {
			continue
		}
		if err := sub.fn(ctx, ev); err != nil {
			r.logger.Error("event handler failed",
				"event", ev.Name,
				"pattern", sub.pattern,
				"error", err.Error(),
			)
			failures = append(failures, failure{pattern: sub.pattern, err: err})
		}
	}

	for _, f := range failures {
		r.reportError(ctx, map[string]any{
			"stage":   "handler",
			"event":   ev.Name,
			"pattern": f.pattern,
			"error":   f.err.Error(),
		})
	}
}

// reportError surfaces an isolated pipeline failure as an
// EventRoutingError event, emitted as a child of the ambient lineage so
// it correlates with the cascade it reports on. Error events routed this
// way pass through the full pipeline (transformers may match them); a
// transformer that fails on its own error event deepens the lineage each
// round and is stopped by the depth guard.
func (r *Router) reportError(ctx context.Context, data map[string]any) {
	if err := r.Emit(ctx, EventRoutingError, data); err != nil {
		r.logger.Warn("failed to emit routing error event",
			"error", err.Error(),
		)
	}
}

// emitDepthExceeded surfaces a halted cascade to subscribed handlers.
// The notification is delivered directly rather than through Emit: its
// own depth is already past the guard, so the normal pipeline would
// refuse it.
func (r *Router) emitDepthExceeded(ctx context.Context, lc *lineage.Context, derr *DepthExceededError) {
	child := r.lineage.Create(EventDepthExceeded, lc)
	ref, err := r.lineage.Store(child)
	if err != nil {
		r.logger.Warn("failed to store lineage context",
			"event", EventDepthExceeded,
			"error", err.Error(),
		)
	}

	ev := core.NewEvent(EventDepthExceeded, map[string]any{
		"event":          derr.EventName,
		"depth":          derr.Depth,
		"max_depth":      derr.MaxDepth,
		"correlation_id": derr.CorrelationID,
	})
	ev.ContextRef = ref

	r.dispatchHandlers(lineage.NewContext(ctx, child), ev)
}

// Shutdown stops accepting new emissions and waits for detached async
// work to drain, up to ctx's deadline. Inline cascades run on their
// caller's goroutine and are not tracked here.
func (r *Router) Shutdown(ctx context.Context) error {
	r.closed.Store(true)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("router shut down")
		return nil
	case <-ctx.Done():
		r.logger.Warn("router shutdown abandoned with async work in flight",
			"error", ctx.Err().Error(),
		)
		return ctx.Err()
	}
}

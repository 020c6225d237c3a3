package transformer

import (
	"sort"
	"sync"

	"github.com/durapensa/ksi-sub008/logging"
)

// Options configures a Registry instance using the functional options
// pattern.
type Options struct {
	// Logger provides structured logging for registration and unload
	// activity. Defaults to a no-op logger if nil.
	Logger logging.Logger
}

// entry pairs a registered definition with its global registration
// sequence number. The sequence establishes the order definitions fire in
// when several match the same event, across scopes and index nodes.
type entry struct {
	def Definition
	seq int
}

// Registry is the scoped, ordered store of transformer definitions.
//
// Registration preserves order: when multiple definitions match one event
// they are applied in the order they were registered, regardless of scope
// or pattern shape. Lookup goes through a segment trie over source
// patterns, so matching an event costs a walk of its name segments plus
// a sort of the (typically small) hit set.
//
// A Registry is safe for concurrent use. The expected profile is
// read-mostly: definitions are loaded at startup or subsystem init and
// matched on every event emission.
type Registry struct {
	mu     sync.RWMutex
	scopes map[Scope]map[string]*entry
	index  *patternIndex
	seq    int
	logger logging.Logger
}

// NewRegistry creates an empty registry.
//
// Example:
//
//	reg := transformer.NewRegistry(func(o *transformer.Options) {
//	    o.Logger = myLogger
//	})
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		scopes: make(map[Scope]map[string]*entry),
		index:  newPatternIndex(),
		logger: opts.Logger,
	}
}

// Register validates def and adds it to the registry.
//
// An empty Scope defaults to ScopeApplication. Registering a name that
// already exists within the same scope fails with a DuplicateError and
// leaves the registry unchanged; the same name in a different scope is a
// distinct definition and both will fire on a match.
func (r *Registry) Register(def Definition) error {
	if def.Scope == "" {
		def.Scope = ScopeApplication
	}
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byName := r.scopes[def.Scope]
	if byName == nil {
		byName = make(map[string]*entry)
		r.scopes[def.Scope] = byName
	}
	if _, exists := byName[def.Name]; exists {
		return &DuplicateError{Name: def.Name, Scope: def.Scope}
	}

	e := &entry{def: def, seq: r.seq}
	r.seq++
	byName[def.Name] = e
	r.index.insert(e)

	r.logger.Debug("transformer registered",
		"name", def.Name,
		"scope", string(def.Scope),
		"source", def.Source,
		"target", def.Target,
		"async", def.Async,
	)
	return nil
}

// Get retrieves a definition by scope and name.
func (r *Registry) Get(scope Scope, name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.scopes[scope][name]; ok {
		return e.def, nil
	}
	return Definition{}, ErrNotFound
}

// Match returns every definition whose source pattern matches the event
// name, in registration order. The returned slice is owned by the caller;
// the definitions inside are shared and must be treated as read-only.
func (r *Registry) Match(eventName string) []Definition {
	r.mu.RLock()
	hits := r.index.match(eventName)
	r.mu.RUnlock()

	if len(hits) == 0 {
		return nil
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })

	defs := make([]Definition, len(hits))
	for i, e := range hits {
		defs[i] = e.def
	}
	return defs
}

// List returns all registered definitions in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*entry, 0, r.len())
	for _, byName := range r.scopes {
		for _, e := range byName {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	defs := make([]Definition, len(all))
	for i, e := range all {
		defs[i] = e.def
	}
	return defs
}

// Len returns the number of registered definitions across all scopes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.len()
}

func (r *Registry) len() int {
	n := 0
	for _, byName := range r.scopes {
		n += len(byName)
	}
	return n
}

// UnloadScope removes every definition in the given scope and returns how
// many were dropped. Definitions in other scopes keep their relative
// registration order. Unloading a scope that was never loaded is a no-op.
func (r *Registry) UnloadScope(scope Scope) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := len(r.scopes[scope])
	if dropped == 0 {
		return 0
	}
	delete(r.scopes, scope)

	// Rebuild the trie from the surviving entries. Unloading is rare and
	// scope-sized, so a rebuild is simpler than per-node removal.
	r.index = newPatternIndex()
	for _, byName := range r.scopes {
		for _, e := range byName {
			r.index.insert(e)
		}
	}

	r.logger.Info("transformer scope unloaded",
		"scope", string(scope),
		"dropped", dropped,
		"remaining", r.len(),
	)
	return dropped
}

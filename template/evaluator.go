package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Func is a host-registered function callable from mapping expressions.
// Functions must be side-effect free with respect to the event being
// rendered; missing arguments arrive as nil.
type Func func(args ...any) (any, error)

// FuncMap maps function names to implementations.
type FuncMap map[string]Func

// Options configures an Evaluator instance using the functional options
// pattern.
type Options struct {
	// Funcs are merged over the builtin function table. Entries with the
	// same name replace builtins.
	Funcs FuncMap
}

// Evaluator renders mapping templates against a Scope. It is safe for
// concurrent use; parsed templates are cached so repeated renders of the
// same definition skip parsing.
type Evaluator struct {
	mu    sync.RWMutex
	funcs FuncMap

	tmplCache sync.Map // string -> []segment
	exprCache sync.Map // string -> node
}

// New creates an Evaluator with the builtin function table and optional
// configuration.
func New(optFns ...func(o *Options)) *Evaluator {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	funcs := Builtins()
	for name, fn := range opts.Funcs {
		funcs[name] = fn
	}
	return &Evaluator{funcs: funcs}
}

// RegisterFunc adds (or replaces) a named function after construction.
// Subsystems use this to contribute resolvers, e.g. the orchestration
// coordinator registering hierarchy lookups.
func (e *Evaluator) RegisterFunc(name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("function name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("function %q must not be nil", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs[name] = fn
	return nil
}

func (e *Evaluator) fn(name string) (Func, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f, ok := e.funcs[name]
	return f, ok
}

// Render walks an arbitrary mapping template (nested maps, sequences,
// strings, scalars) and returns the rendered structure. The first resolution
// failure aborts the whole render; the caller decides how to isolate it.
func (e *Evaluator) Render(tmpl any, sc *Scope) (any, error) {
	switch t := tmpl.(type) {
	case nil:
		return nil, nil
	case string:
		return e.RenderString(t, sc)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			rv, err := e.Render(v, sc)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			rv, err := e.Render(v, sc)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return tmpl, nil
	}
}

// RenderString renders a single template string. A string that is exactly one
// {{expr}} yields the resolved value with its type preserved; any surrounding
// text forces string rendering.
func (e *Evaluator) RenderString(s string, sc *Scope) (any, error) {
	if !strings.Contains(s, "{{") { // fast path: no template markers
		return s, nil
	}
	segs, err := e.templateSegments(s)
	if err != nil {
		return nil, &ResolutionError{Template: s, Expr: s, Reason: "malformed template", Cause: err}
	}
	if len(segs) == 1 && segs[0].expr != nil {
		v, ok, err := segs[0].expr.eval(e, sc)
		if err != nil {
			return nil, &ResolutionError{Template: s, Expr: segs[0].raw, Cause: err}
		}
		if !ok {
			return nil, &ResolutionError{Template: s, Expr: segs[0].raw, Reason: "no value and no fallback"}
		}
		return v, nil
	}
	var sb strings.Builder
	for _, seg := range segs {
		if seg.expr == nil {
			sb.WriteString(seg.text)
			continue
		}
		v, ok, err := seg.expr.eval(e, sc)
		if err != nil {
			return nil, &ResolutionError{Template: s, Expr: seg.raw, Cause: err}
		}
		if !ok {
			return nil, &ResolutionError{Template: s, Expr: seg.raw, Reason: "no value and no fallback"}
		}
		sb.WriteString(stringify(v))
	}
	return sb.String(), nil
}

// Eval evaluates a bare expression (no surrounding braces) against the scope.
func (e *Evaluator) Eval(src string, sc *Scope) (any, error) {
	n, err := e.exprNode(src)
	if err != nil {
		return nil, &ResolutionError{Expr: src, Reason: "malformed expression", Cause: err}
	}
	v, ok, err := n.eval(e, sc)
	if err != nil {
		return nil, &ResolutionError{Expr: src, Cause: err}
	}
	if !ok {
		return nil, &ResolutionError{Expr: src, Reason: "no value and no fallback"}
	}
	return v, nil
}

// ResolvePath resolves a plain dotted path (no operators, no functions)
// against the scope. Used for foreach sources and other places that want a
// lookup rather than a render.
func (e *Evaluator) ResolvePath(path string, sc *Scope) (any, bool) {
	if path == "" {
		return nil, false
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return nil, false
		}
	}
	return sc.Resolve(segs)
}

func (e *Evaluator) templateSegments(s string) ([]segment, error) {
	if cached, ok := e.tmplCache.Load(s); ok {
		return cached.([]segment), nil
	}
	segs, err := parseTemplate(s)
	if err != nil {
		return nil, err
	}
	e.tmplCache.Store(s, segs)
	return segs, nil
}

func (e *Evaluator) exprNode(src string) (node, error) {
	if cached, ok := e.exprCache.Load(src); ok {
		return cached.(node), nil
	}
	n, err := parseExpr(src)
	if err != nil {
		return nil, err
	}
	e.exprCache.Store(src, n)
	return n, nil
}

// stringify converts a resolved value for splicing into string output.
// Nil renders empty, floats drop trailing zeros, and composite values render
// as compact JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case map[string]any, []any:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}

package condition

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/durapensa/ksi-sub008/internal/expr"
	"github.com/durapensa/ksi-sub008/template"
)

// Evaluator parses and evaluates transformer conditions. It is safe for
// concurrent use; parsed conditions are cached by source text.
type Evaluator struct {
	cache sync.Map // string -> boolNode
}

// New creates a condition Evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Eval evaluates a condition against the scope. An empty condition is true
// by definition (transformers without a condition always apply). Missing
// fields make the enclosing comparison false; only malformed input returns
// an error.
func (e *Evaluator) Eval(src string, sc *template.Scope) (bool, error) {
	if strings.TrimSpace(src) == "" {
		return true, nil
	}
	n, err := e.parsed(src)
	if err != nil {
		return false, &EvalError{Condition: src, Cause: err}
	}
	return n.eval(sc), nil
}

func (e *Evaluator) parsed(src string) (boolNode, error) {
	if cached, ok := e.cache.Load(src); ok {
		return cached.(boolNode), nil
	}
	toks, err := expr.Scan(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != expr.EOF {
		return nil, fmt.Errorf("unexpected %q at position %d", p.peek().Text, p.peek().Pos)
	}
	e.cache.Store(src, n)
	return n, nil
}

// boolNode is a parsed condition fragment.
type boolNode interface {
	eval(sc *template.Scope) bool
}

// operand is a value-producing fragment: literal, path or list. The boolean
// result reports presence, mirroring path resolution.
type operand interface {
	value(sc *template.Scope) (any, bool)
}

type litOperand struct{ v any }

func (o *litOperand) value(*template.Scope) (any, bool) { return o.v, true }

type pathOperand struct{ segs []string }

func (o *pathOperand) value(sc *template.Scope) (any, bool) { return sc.Resolve(o.segs) }

type listOperand struct{ items []operand }

func (o *listOperand) value(sc *template.Scope) (any, bool) {
	out := make([]any, 0, len(o.items))
	for _, it := range o.items {
		v, ok := it.value(sc)
		if !ok {
			v = nil
		}
		out = append(out, v)
	}
	return out, true
}

type orNode struct{ parts []boolNode }

func (n *orNode) eval(sc *template.Scope) bool {
	for _, p := range n.parts {
		if p.eval(sc) {
			return true
		}
	}
	return false
}

type andNode struct{ parts []boolNode }

func (n *andNode) eval(sc *template.Scope) bool {
	for _, p := range n.parts {
		if !p.eval(sc) {
			return false
		}
	}
	return true
}

type notNode struct{ child boolNode }

func (n *notNode) eval(sc *template.Scope) bool { return !n.child.eval(sc) }

type cmpOp int

const (
	opEq cmpOp = iota
	opNeq
	opIn
	opNotIn
	opStartsWith
)

type cmpNode struct {
	op          cmpOp
	left, right operand
}

func (n *cmpNode) eval(sc *template.Scope) bool {
	lv, lok := n.left.value(sc)
	rv, rok := n.right.value(sc)
	// Absent operands make the comparison false rather than erroring; "not"
	// and "or" remain available for explicit absence handling.
	if !lok || !rok {
		return false
	}
	switch n.op {
	case opEq:
		return looseEqual(lv, rv)
	case opNeq:
		return !looseEqual(lv, rv)
	case opIn:
		return contains(rv, lv)
	case opNotIn:
		return !contains(rv, lv)
	case opStartsWith:
		ls, lsok := lv.(string)
		rs, rsok := rv.(string)
		return lsok && rsok && strings.HasPrefix(ls, rs)
	default:
		return false
	}
}

type existsNode struct{ child operand }

func (n *existsNode) eval(sc *template.Scope) bool {
	v, ok := n.child.value(sc)
	return ok && v != nil
}

type truthyNode struct{ child operand }

func (n *truthyNode) eval(sc *template.Scope) bool {
	v, ok := n.child.value(sc)
	return truthy(v, ok)
}

func truthy(v any, present bool) bool {
	if !present || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	if f, _, ok := expr.ToNumber(v); ok {
		return f != 0
	}
	return true
}

// looseEqual compares values with numeric coercion, so an int 5 from a Go
// literal equals a float64 5 from a JSON payload.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, _, aok := expr.ToNumber(a)
	bf, _, bok := expr.ToNumber(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// contains implements the "in" operator: sequence membership, or substring
// when both sides are strings.
func contains(container, item any) bool {
	switch c := container.(type) {
	case []any:
		for _, el := range c {
			if looseEqual(el, item) {
				return true
			}
		}
		return false
	case string:
		s, ok := item.(string)
		return ok && strings.Contains(c, s)
	default:
		return false
	}
}

type parser struct {
	toks []expr.Token
	pos  int
}

func (p *parser) peek() expr.Token { return p.toks[p.pos] }

func (p *parser) next() expr.Token {
	t := p.toks[p.pos]
	if t.Kind != expr.EOF {
		p.pos++
	}
	return t
}

func (p *parser) peekKeyword(kw string) bool {
	t := p.peek()
	return t.Kind == expr.Ident && strings.EqualFold(t.Text, kw)
}

func (p *parser) parseOr() (boolNode, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	parts := []boolNode{first}
	for p.peekKeyword("or") {
		p.next()
		n, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		parts = append(parts, n)
	}
	if len(parts) == 1 {
		return first, nil
	}
	return &orNode{parts: parts}, nil
}

func (p *parser) parseAnd() (boolNode, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	parts := []boolNode{first}
	for p.peekKeyword("and") {
		p.next()
		n, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		parts = append(parts, n)
	}
	if len(parts) == 1 {
		return first, nil
	}
	return &andNode{parts: parts}, nil
}

func (p *parser) parseNot() (boolNode, error) {
	if p.peekKeyword("not") {
		p.next()
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{child: child}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (boolNode, error) {
	if p.peek().Kind == expr.LParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next().Kind != expr.RParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	}
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	switch {
	case p.peek().Kind == expr.Eq:
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &cmpNode{op: opEq, left: left, right: right}, nil
	case p.peek().Kind == expr.Neq:
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &cmpNode{op: opNeq, left: left, right: right}, nil
	case p.peekKeyword("in"):
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &cmpNode{op: opIn, left: left, right: right}, nil
	case p.peekKeyword("not"):
		p.next()
		if !p.peekKeyword("in") {
			return nil, fmt.Errorf("expected 'in' after 'not'")
		}
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &cmpNode{op: opNotIn, left: left, right: right}, nil
	case p.peekKeyword("starts_with"):
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &cmpNode{op: opStartsWith, left: left, right: right}, nil
	case p.peekKeyword("exists"):
		p.next()
		return &existsNode{child: left}, nil
	default:
		return &truthyNode{child: left}, nil
	}
}

func (p *parser) parseOperand() (operand, error) {
	t := p.next()
	switch t.Kind {
	case expr.Number:
		return numberOperand(t.Text, false)
	case expr.Minus:
		n := p.next()
		if n.Kind != expr.Number {
			return nil, fmt.Errorf("expected number after '-' at position %d", t.Pos)
		}
		return numberOperand(n.Text, true)
	case expr.String:
		return &litOperand{v: t.Text}, nil
	case expr.LBracket:
		return p.parseList()
	case expr.Ident:
		switch {
		case strings.EqualFold(t.Text, "true"):
			return &litOperand{v: true}, nil
		case strings.EqualFold(t.Text, "false"):
			return &litOperand{v: false}, nil
		case strings.EqualFold(t.Text, "null"), strings.EqualFold(t.Text, "nil"):
			return &litOperand{v: nil}, nil
		}
		segs := []string{t.Text}
		for p.peek().Kind == expr.Dot {
			p.next()
			s := p.next()
			switch s.Kind {
			case expr.Ident, expr.Number:
				segs = append(segs, s.Text)
			case expr.Star:
				segs = append(segs, "*")
			default:
				return nil, fmt.Errorf("invalid path segment %q at position %d", s.Text, s.Pos)
			}
		}
		return &pathOperand{segs: segs}, nil
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", t.Text, t.Pos)
	}
}

func (p *parser) parseList() (operand, error) {
	list := &listOperand{}
	if p.peek().Kind == expr.RBracket {
		p.next()
		return list, nil
	}
	for {
		item, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		list.items = append(list.items, item)
		switch p.next().Kind {
		case expr.Comma:
			continue
		case expr.RBracket:
			return list, nil
		default:
			return nil, fmt.Errorf("malformed list")
		}
	}
}

func numberOperand(text string, negative bool) (operand, error) {
	if strings.Contains(text, ".") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", text)
		}
		if negative {
			f = -f
		}
		return &litOperand{v: f}, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	if negative {
		n = -n
	}
	return &litOperand{v: n}, nil
}

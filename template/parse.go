package template

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/durapensa/ksi-sub008/internal/expr"
)

// node is a parsed expression fragment. eval returns the computed value, a
// presence flag (false when the value hinges on a missing path) and any hard
// failure such as a function error. Missing paths are not errors so that
// fallbacks and presence checks can observe them.
type node interface {
	eval(ev *Evaluator, sc *Scope) (any, bool, error)
}

type literalNode struct {
	val any
}

func (n *literalNode) eval(*Evaluator, *Scope) (any, bool, error) {
	return n.val, true, nil
}

type pathNode struct {
	segs []string
	raw  string
}

func (n *pathNode) eval(_ *Evaluator, sc *Scope) (any, bool, error) {
	v, ok := sc.Resolve(n.segs)
	return v, ok, nil
}

type callNode struct {
	name string
	args []node
}

func (n *callNode) eval(ev *Evaluator, sc *Scope) (any, bool, error) {
	fn, ok := ev.fn(n.name)
	if !ok {
		return nil, false, fmt.Errorf("unknown function %q", n.name)
	}
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, ok, err := a.eval(ev, sc)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			v = nil // missing arguments arrive as null
		}
		args[i] = v
	}
	v, err := fn(args...)
	if err != nil {
		return nil, false, fmt.Errorf("function %s: %w", n.name, err)
	}
	return v, true, nil
}

type binaryNode struct {
	op          expr.Kind
	left, right node
}

func (n *binaryNode) eval(ev *Evaluator, sc *Scope) (any, bool, error) {
	lv, lok, err := n.left.eval(ev, sc)
	if err != nil {
		return nil, false, err
	}
	rv, rok, err := n.right.eval(ev, sc)
	if err != nil {
		return nil, false, err
	}
	// A missing operand makes the whole expression missing, so an enclosing
	// fallback can still catch it.
	if !lok || !rok {
		return nil, false, nil
	}
	return applyBinary(n.op, lv, rv)
}

type negNode struct {
	child node
}

func (n *negNode) eval(ev *Evaluator, sc *Scope) (any, bool, error) {
	v, ok, err := n.child.eval(ev, sc)
	if err != nil || !ok {
		return nil, ok, err
	}
	f, isInt, numeric := toNumber(v)
	if !numeric {
		return nil, false, fmt.Errorf("cannot negate %T", v)
	}
	if isInt {
		return -int(f), true, nil
	}
	return -f, true, nil
}

type fallbackNode struct {
	left, right node
}

func (n *fallbackNode) eval(ev *Evaluator, sc *Scope) (any, bool, error) {
	v, ok, err := n.left.eval(ev, sc)
	if err != nil {
		return nil, false, err
	}
	if ok && v != nil {
		return v, true, nil
	}
	return n.right.eval(ev, sc)
}

func applyBinary(op expr.Kind, lv, rv any) (any, bool, error) {
	if op == expr.Plus {
		if ls, ok := lv.(string); ok {
			return ls + stringify(rv), true, nil
		}
		if rs, ok := rv.(string); ok {
			return stringify(lv) + rs, true, nil
		}
	}
	lf, lInt, lNum := toNumber(lv)
	rf, rInt, rNum := toNumber(rv)
	if !lNum || !rNum {
		return nil, false, fmt.Errorf("non-numeric operands %T and %T", lv, rv)
	}
	bothInt := lInt && rInt
	switch op {
	case expr.Plus:
		if bothInt {
			return int(lf) + int(rf), true, nil
		}
		return lf + rf, true, nil
	case expr.Minus:
		if bothInt {
			return int(lf) - int(rf), true, nil
		}
		return lf - rf, true, nil
	case expr.Star:
		if bothInt {
			return int(lf) * int(rf), true, nil
		}
		return lf * rf, true, nil
	case expr.Slash:
		if rf == 0 {
			return nil, false, fmt.Errorf("division by zero")
		}
		return lf / rf, true, nil
	default:
		return nil, false, fmt.Errorf("unsupported operator")
	}
}

func toNumber(v any) (f float64, isInt bool, ok bool) {
	return expr.ToNumber(v)
}

// parseExpr parses a bare expression (the text between {{ and }}).
func parseExpr(src string) (node, error) {
	toks, err := expr.Scan(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseFallback()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != expr.EOF {
		return nil, fmt.Errorf("unexpected %q at position %d", p.peek().Text, p.peek().Pos)
	}
	return n, nil
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

func (p *parser) parseFallback() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == expr.Pipe {
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &fallbackNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		k := p.peek().Kind
		if k != expr.Plus && k != expr.Minus {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: k, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		k := p.peek().Kind
		if k != expr.Star && k != expr.Slash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: k, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().Kind == expr.Minus {
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.Kind {
	case expr.Number:
		return numberLiteral(t.Text)
	case expr.String:
		return &literalNode{val: t.Text}, nil
	case expr.LParen:
		inner, err := p.parseFallback()
		if err != nil {
			return nil, err
		}
		if p.next().Kind != expr.RParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	case expr.Ident:
		switch t.Text {
		case "true":
			return &literalNode{val: true}, nil
		case "false":
			return &literalNode{val: false}, nil
		case "null", "nil":
			return &literalNode{val: nil}, nil
		}
		if p.peek().Kind == expr.LParen {
			return p.parseCall(t.Text)
		}
		return p.parsePath(t.Text)
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", t.Text, t.Pos)
	}
}

func (p *parser) parseCall(name string) (node, error) {
	p.next() // consume (
	call := &callNode{name: name}
	if p.peek().Kind == expr.RParen {
		p.next()
		return call, nil
	}
	for {
		arg, err := p.parseFallback()
		if err != nil {
			return nil, err
		}
		call.args = append(call.args, arg)
		switch p.next().Kind {
		case expr.Comma:
			continue
		case expr.RParen:
			return call, nil
		default:
			return nil, fmt.Errorf("malformed argument list for %s", name)
		}
	}
}

func (p *parser) parsePath(first string) (node, error) {
	segs := []string{first}
	for p.peek().Kind == expr.Dot {
		p.next()
		t := p.next()
		switch t.Kind {
		case expr.Ident, expr.Number:
			segs = append(segs, t.Text)
		case expr.Star:
			segs = append(segs, "*")
		default:
			return nil, fmt.Errorf("invalid path segment %q at position %d", t.Text, t.Pos)
		}
	}
	return &pathNode{segs: segs, raw: strings.Join(segs, ".")}, nil
}

func numberLiteral(text string) (node, error) {
	if strings.Contains(text, ".") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", text)
		}
		return &literalNode{val: f}, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return &literalNode{val: n}, nil
}

// segment is one piece of a template string: either literal text or a parsed
// expression from a {{...}} span.
type segment struct {
	text string
	expr node
	raw  string
}

// parseTemplate splits a string into literal and expression segments.
func parseTemplate(s string) ([]segment, error) {
	var segs []segment
	rest := s
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			if rest != "" {
				segs = append(segs, segment{text: rest})
			}
			return segs, nil
		}
		if open > 0 {
			segs = append(segs, segment{text: rest[:open]})
		}
		end := strings.Index(rest[open:], "}}")
		if end < 0 {
			return nil, fmt.Errorf("unterminated expression in %q", s)
		}
		inner := strings.TrimSpace(rest[open+2 : open+end])
		if inner == "" {
			return nil, fmt.Errorf("empty expression in %q", s)
		}
		n, err := parseExpr(inner)
		if err != nil {
			return nil, err
		}
		segs = append(segs, segment{expr: n, raw: inner})
		rest = rest[open+end+2:]
	}
}

// Package expr contains the shared token scanner for the expression dialects
// used in mapping templates and transformer conditions. It lives in internal
// to avoid committing to public API stability prematurely.
package expr

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind identifies a token class.
type Kind int

const (
	// EOF marks the end of input.
	EOF Kind = iota
	// Ident is an identifier (field name, function name, keyword).
	Ident
	// Number is an integer or decimal literal.
	Number
	// String is a quoted string literal with quotes removed.
	String
	// Dot separates path segments.
	Dot
	// Pipe is the fallback separator.
	Pipe
	// Plus, Minus, Star, Slash are arithmetic operators. Star doubles as the
	// wildcard path segment when it follows a Dot.
	Plus
	Minus
	Star
	Slash
	// LParen, RParen, LBracket, RBracket, Comma group arguments and lists.
	LParen
	RParen
	LBracket
	RBracket
	Comma
	// Eq, Neq are the comparison operators == and !=.
	Eq
	Neq
)

// Token is a single scanned token.
type Token struct {
	Kind Kind
	Text string
	Pos  int
}

// Scan tokenizes src, returning the token stream or a position-annotated
// error for characters outside the dialect.
func Scan(src string) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '.':
			toks = append(toks, Token{Dot, ".", i})
			i++
		case c == '|':
			toks = append(toks, Token{Pipe, "|", i})
			i++
		case c == '+':
			toks = append(toks, Token{Plus, "+", i})
			i++
		case c == '-':
			toks = append(toks, Token{Minus, "-", i})
			i++
		case c == '*':
			toks = append(toks, Token{Star, "*", i})
			i++
		case c == '/':
			toks = append(toks, Token{Slash, "/", i})
			i++
		case c == '(':
			toks = append(toks, Token{LParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, Token{RParen, ")", i})
			i++
		case c == '[':
			toks = append(toks, Token{LBracket, "[", i})
			i++
		case c == ']':
			toks = append(toks, Token{RBracket, "]", i})
			i++
		case c == ',':
			toks = append(toks, Token{Comma, ",", i})
			i++
		case c == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, Token{Eq, "==", i})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected '=' at position %d (use ==)", i)
			}
		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, Token{Neq, "!=", i})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected '!' at position %d (use !=)", i)
			}
		case c == '\'' || c == '"':
			lit, next, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, Token{String, lit, i})
			i = next
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9') {
				i++
			}
			if i < len(src) && src[i] == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9' {
				i++
				for i < len(src) && (src[i] >= '0' && src[i] <= '9') {
					i++
				}
			}
			toks = append(toks, Token{Number, src[start:i], start})
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			toks = append(toks, Token{Ident, src[start:i], start})
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}
	toks = append(toks, Token{EOF, "", len(src)})
	return toks, nil
}

func scanString(src string, start int) (string, int, error) {
	quote := src[start]
	var sb strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			sb.WriteByte(src[i+1])
			i += 2
			continue
		}
		if c == quote {
			return sb.String(), i + 1, nil
		}
		sb.WriteByte(c)
		i++
	}
	return "", 0, fmt.Errorf("unterminated string starting at position %d", start)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Package expr implements the boolean condition language rules may
// attach to events. Conditions compare fields of the evaluation
// context (tool.name, tool.input.<field>, env.<VAR>, session.id,
// session.project) against string literals with ==, != and =~, and
// combine comparisons with &&, || and ! (short-circuit, parentheses
// allowed). Compile catches every syntax and regex error up front;
// Eval is total and never fails per event.
package expr

import (
	"fmt"
	"regexp"
	"strings"
)

// Context supplies the values a condition can reference. Missing or
// non-scalar fields resolve to the empty string.
type Context struct {
	ToolName       string
	ToolInput      map[string]any
	SessionID      string
	SessionProject string
	LookupEnv      func(string) (string, bool)
}

// resolve maps a dotted path to its context value.
func (c *Context) resolve(path string) string {
	switch {
	case path == "tool.name":
		return c.ToolName
	case strings.HasPrefix(path, "tool.input."):
		return scalar(c.ToolInput[strings.TrimPrefix(path, "tool.input.")])
	case strings.HasPrefix(path, "env."):
		if c.LookupEnv == nil {
			return ""
		}
		v, _ := c.LookupEnv(strings.TrimPrefix(path, "env."))
		return v
	case path == "session.id":
		return c.SessionID
	case path == "session.project":
		return c.SessionProject
	default:
		return ""
	}
}

// scalar renders a tool_input value for comparison. Objects and
// arrays have no string form and resolve empty.
func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return fmt.Sprintf("%v", x)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%v", x)
	default:
		return ""
	}
}

// Expr is a compiled condition. Safe for concurrent use.
type Expr struct {
	src  string
	root node
}

// Source returns the text the expression was compiled from.
func (e *Expr) Source() string { return e.src }

// Eval evaluates the condition against ctx.
func (e *Expr) Eval(ctx *Context) bool { return e.root.eval(ctx) }

// Compile parses a condition. Any syntax error, unknown path root, or
// invalid =~ pattern is reported here so rule loading can reject it;
// evaluation afterwards cannot fail.
func Compile(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf(p.peek().pos, "unexpected %q", p.peek().text)
	}
	return &Expr{src: src, root: root}, nil
}

// --- AST ---

type node interface {
	eval(*Context) bool
}

type orNode struct{ left, right node }

func (n orNode) eval(c *Context) bool { return n.left.eval(c) || n.right.eval(c) }

type andNode struct{ left, right node }

func (n andNode) eval(c *Context) bool { return n.left.eval(c) && n.right.eval(c) }

type notNode struct{ inner node }

func (n notNode) eval(c *Context) bool { return !n.inner.eval(c) }

type cmpNode struct {
	op          string
	left, right operand
	pattern     *regexp.Regexp // =~ only
}

func (n cmpNode) eval(c *Context) bool {
	lv := n.left.value(c)
	switch n.op {
	case "==":
		return lv == n.right.value(c)
	case "!=":
		return lv != n.right.value(c)
	default:
		return n.pattern.MatchString(lv)
	}
}

// operand is either a context path or a string literal.
type operand struct {
	path    string
	literal string
	isPath  bool
}

func (o operand) value(c *Context) string {
	if o.isPath {
		return c.resolve(o.path)
	}
	return o.literal
}

// --- lexer ---

type tokKind int

const (
	tokIdent tokKind = iota
	tokString
	tokOp // == != =~ && || ! ( )
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(' || ch == ')':
			toks = append(toks, token{tokOp, string(ch), i})
			i++
		case ch == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{tokOp, "!=", i})
				i += 2
			} else {
				toks = append(toks, token{tokOp, "!", i})
				i++
			}
		case ch == '=':
			if i+1 < len(src) && (src[i+1] == '=' || src[i+1] == '~') {
				toks = append(toks, token{tokOp, src[i : i+2], i})
				i += 2
			} else {
				return nil, fmt.Errorf("condition %q: stray '=' at offset %d", src, i)
			}
		case ch == '&' || ch == '|':
			if i+1 < len(src) && src[i+1] == ch {
				toks = append(toks, token{tokOp, src[i : i+2], i})
				i += 2
			} else {
				return nil, fmt.Errorf("condition %q: stray %q at offset %d", src, string(ch), i)
			}
		case ch == '"':
			lit, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, lit, i})
			i = next
		case isIdentByte(ch):
			start := i
			for i < len(src) && (isIdentByte(src[i]) || src[i] == '.') {
				i++
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		default:
			return nil, fmt.Errorf("condition %q: unexpected character %q at offset %d", src, string(ch), i)
		}
	}
	return toks, nil
}

func lexString(src string, start int) (lit string, next int, err error) {
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		switch src[i] {
		case '"':
			return b.String(), i + 1, nil
		case '\\':
			if i+1 >= len(src) {
				return "", 0, fmt.Errorf("condition %q: unterminated escape at offset %d", src, i)
			}
			switch src[i+1] {
			case '"', '\\':
				b.WriteByte(src[i+1])
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				return "", 0, fmt.Errorf("condition %q: unknown escape %q at offset %d", src, string(src[i+1]), i)
			}
			i += 2
		default:
			b.WriteByte(src[i])
			i++
		}
	}
	return "", 0, fmt.Errorf("condition %q: unterminated string at offset %d", src, start)
}

func isIdentByte(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' ||
		ch >= '0' && ch <= '9' || ch == '_' || ch == '-'
}

// --- parser ---

type parser struct {
	src  string
	toks []token
	i    int
}

func (p *parser) eof() bool     { return p.i >= len(p.toks) }
func (p *parser) peek() token   { return p.toks[p.i] }
func (p *parser) advance() token { t := p.toks[p.i]; p.i++; return t }

func (p *parser) errorf(pos int, format string, args ...any) error {
	return fmt.Errorf("condition %q: %s at offset %d", p.src, fmt.Sprintf(format, args...), pos)
}

func (p *parser) accept(text string) bool {
	if !p.eof() && p.peek().kind == tokOp && p.peek().text == text {
		p.i++
		return true
	}
	return false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.accept("&&") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.accept("!") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	if p.accept("(") {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, p.errorf(len(p.src), "missing ')'")
		}
		return inner, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.eof() || p.peek().kind != tokOp {
		return nil, p.errorf(len(p.src), "expected comparison operator")
	}
	op := p.peek().text
	if op != "==" && op != "!=" && op != "=~" {
		return nil, p.errorf(p.peek().pos, "expected ==, != or =~, got %q", op)
	}
	p.advance()

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	n := cmpNode{op: op, left: left, right: right}
	if op == "=~" {
		if right.isPath {
			return nil, p.errorf(p.peek().pos, "=~ needs a literal pattern on the right")
		}
		re, err := regexp.Compile(right.literal)
		if err != nil {
			return nil, fmt.Errorf("condition %q: invalid pattern %q: %w", p.src, right.literal, err)
		}
		n.pattern = re
	}
	return n, nil
}

func (p *parser) parseOperand() (operand, error) {
	if p.eof() {
		return operand{}, p.errorf(len(p.src), "expected operand")
	}
	t := p.advance()
	switch t.kind {
	case tokString:
		return operand{literal: t.text}, nil
	case tokIdent:
		if err := checkPath(t.text); err != nil {
			return operand{}, p.errorf(t.pos, "%v", err)
		}
		return operand{path: t.text, isPath: true}, nil
	default:
		return operand{}, p.errorf(t.pos, "unexpected %q", t.text)
	}
}

// checkPath validates an identifier against the allowed context roots.
func checkPath(path string) error {
	switch {
	case path == "tool.name", path == "session.id", path == "session.project":
		return nil
	case strings.HasPrefix(path, "tool.input."):
		if field := strings.TrimPrefix(path, "tool.input."); field == "" || strings.Contains(field, ".") {
			return fmt.Errorf("tool.input takes exactly one field name, got %q", path)
		}
		return nil
	case strings.HasPrefix(path, "env."):
		if strings.TrimPrefix(path, "env.") == "" {
			return fmt.Errorf("env takes a variable name, got %q", path)
		}
		return nil
	default:
		return fmt.Errorf("unknown reference %q (want tool.name, tool.input.<field>, env.<VAR>, session.id or session.project)", path)
	}
}

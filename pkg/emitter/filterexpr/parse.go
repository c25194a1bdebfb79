package filterexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a compiled filter expression. It is immutable and safe for
// concurrent use.
type Expr struct {
	src  string
	root node
}

// Compile parses src into an Expr.
func Compile(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &SyntaxError{Src: src, Msg: "empty expression"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return &Expr{src: src, root: root}, nil
}

// MustCompile is like Compile but panics if the expression cannot be parsed.
func MustCompile(src string) *Expr {
	ex, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return ex
}

// String returns the source text of the expression.
func (e *Expr) String() string {
	return e.src
}

// Match evaluates the expression against vars and reports whether it is truthy.
func (e *Expr) Match(vars map[string]any) bool {
	return IsTruthy(e.root.eval(vars))
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Src: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) keyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	t := p.peek()
	if p.keyword("not") || (t.kind == tokOp && t.text == "!") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	var cmp comparator
	switch {
	case t.kind == tokOp && t.text != "!":
		cmp = comparators[t.text]
	case p.keyword("contains"):
		cmp = contains
	default:
		return left, nil
	}
	p.next()

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return compareNode{op: t.text, cmp: cmp, left: left, right: right}, nil
}

func (p *parser) parseOperand() (node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')'")
		}
		return inner, nil
	case tokString:
		return literal{value: t.text}, nil
	case tokNumber:
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return literal{value: i}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number %q", t.text)
		}
		return literal{value: f}, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return literal{value: true}, nil
		case "false":
			return literal{value: false}, nil
		case "null", "nil":
			return literal{value: nil}, nil
		case "and", "or", "not", "contains":
			return nil, p.errorf(t, "unexpected keyword %q", t.text)
		}
		return path(strings.Split(t.text, ".")), nil
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of expression")
	default:
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
}

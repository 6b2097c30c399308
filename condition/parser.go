package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"logsentry/core"
	"logsentry/ingest"
)

// Compile parses a rule's condition string into a reusable Condition.
// Parse once per rule (scan.go compiles each rule once per file scanned
// and reuses it for every record of that file);
// Eval is cheap and allocation-free beyond the evaluator's own work.
func Compile(expr string) (*Condition, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSyntax, err)
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("%w: empty condition", core.ErrSyntax)
	}
	p := &parser{tokens: toks, src: expr}
	root, err := p.parseOr(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSyntax, err)
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("%w: unexpected token %q at position %d", core.ErrSyntax, p.peek().Value, p.peek().Pos.Offset)
	}
	return &Condition{root: root, source: expr}, nil
}

type parser struct {
	tokens []token
	pos    int
	src    string
}

func (p *parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.atEnd() {
		return token{name: "EOF"}
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) match(name string) bool {
	if p.peek().name == name {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(name string) (token, error) {
	if p.peek().name != name {
		return token{}, fmt.Errorf("expected %s, found %s %q", name, p.peek().name, p.peek().Value)
	}
	return p.advance(), nil
}

// parseOr := parseAnd (KwOr parseAnd)*
func (p *parser) parseOr(depth int) (Expr, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("condition nesting exceeds limit of %d", maxDepth)
	}
	left, err := p.parseAnd(depth)
	if err != nil {
		return nil, err
	}
	for p.match("KwOr") {
		right, err := p.parseAnd(depth)
		if err != nil {
			return nil, err
		}
		left = &binExpr{and: false, left: left, right: right}
	}
	return left, nil
}

// parseAnd := parseNot (KwAnd parseNot)*
func (p *parser) parseAnd(depth int) (Expr, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("condition nesting exceeds limit of %d", maxDepth)
	}
	left, err := p.parseNot(depth)
	if err != nil {
		return nil, err
	}
	for p.match("KwAnd") {
		right, err := p.parseNot(depth)
		if err != nil {
			return nil, err
		}
		left = &binExpr{and: true, left: left, right: right}
	}
	return left, nil
}

// parseNot := KwNot* parsePrimary
func (p *parser) parseNot(depth int) (Expr, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("condition nesting exceeds limit of %d", maxDepth)
	}
	if p.match("KwNot") {
		inner, err := p.parseNot(depth + 1)
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	}
	return p.parsePrimary(depth)
}

// parsePrimary := '(' parseOr ')' | atom
func (p *parser) parsePrimary(depth int) (Expr, error) {
	if p.match("LParen") {
		inner, err := p.parseOr(depth + 1)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("RParen"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parseAtom()
}

// parseAtom := Path ( Operator Literal | KwIn LiteralList | KwNotIn
// LiteralList | KwIsNull | KwIsNotNull )
func (p *parser) parseAtom() (Expr, error) {
	pathTok, err := p.expect("Path")
	if err != nil {
		return nil, fmt.Errorf("expected field path: %w", err)
	}
	path := ingest.ParsePath(pathTok.Value)

	switch p.peek().name {
	case "KwIsNull":
		p.advance()
		return &atom{path: path, op: opIsNull}, nil
	case "KwIsNotNull":
		p.advance()
		return &atom{path: path, op: opIsNotNull}, nil
	case "KwIn":
		p.advance()
		list, err := p.parseLiteralList()
		if err != nil {
			return nil, err
		}
		return &atom{path: path, op: opIN, list: list}, nil
	case "KwNotIn":
		p.advance()
		list, err := p.parseLiteralList()
		if err != nil {
			return nil, err
		}
		return &atom{path: path, op: opNotIN, list: list}, nil
	}

	o, isPattern, err := p.parseOperator()
	if err != nil {
		return nil, err
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	a := &atom{path: path, op: o, lit: lit}
	if isPattern {
		if lit.kind != litString {
			return nil, fmt.Errorf("MATCH/LIKE require a string pattern")
		}
		re, cerr := compilePattern(o, lit.str)
		if cerr != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", lit.str, cerr)
		}
		a.pattern = re
	}
	return a, nil
}

func compilePattern(o op, pattern string) (*regexp.Regexp, error) {
	if o == opMatch {
		return compileWildcard(pattern)
	}
	return compileLike(pattern)
}

func (p *parser) parseOperator() (op, bool, error) {
	t := p.peek()
	switch t.name {
	case "OpEq":
		p.advance()
		return opEQ, false, nil
	case "OpNe":
		p.advance()
		return opNE, false, nil
	case "OpDiamond":
		p.advance()
		return opNE, false, nil
	case "OpLt":
		p.advance()
		return opLT, false, nil
	case "OpLe":
		p.advance()
		return opLE, false, nil
	case "OpGt":
		p.advance()
		return opGT, false, nil
	case "OpGe":
		p.advance()
		return opGE, false, nil
	case "KwNotContains":
		p.advance()
		return opNotContains, false, nil
	case "KwContains":
		p.advance()
		return opContains, false, nil
	case "KwNotStartsWith":
		p.advance()
		return opNotStartsWith, false, nil
	case "KwStartsWith":
		p.advance()
		return opStartsWith, false, nil
	case "KwNotEndsWith":
		p.advance()
		return opNotEndsWith, false, nil
	case "KwEndsWith":
		p.advance()
		return opEndsWith, false, nil
	case "KwMatch":
		p.advance()
		return opMatch, true, nil
	case "KwLike":
		p.advance()
		return opLike, true, nil
	default:
		return 0, false, fmt.Errorf("expected an operator, found %s %q", t.name, t.Value)
	}
}

func (p *parser) parseLiteralList() ([]literal, error) {
	if _, err := p.expect("LParen"); err != nil {
		return nil, fmt.Errorf("expected '(' to open IN list: %w", err)
	}
	var list []literal
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	list = append(list, lit)
	for p.match("Comma") {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		list = append(list, lit)
	}
	if _, err := p.expect("RParen"); err != nil {
		return nil, fmt.Errorf("expected ')' to close IN list: %w", err)
	}
	return list, nil
}

func (p *parser) parseLiteral() (literal, error) {
	t := p.peek()
	switch t.name {
	case "String":
		p.advance()
		return literal{kind: litString, str: unquoteString(t.Value)}, nil
	case "Number":
		p.advance()
		n, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return literal{}, fmt.Errorf("invalid number %q", t.Value)
		}
		return literal{kind: litNumber, num: n}, nil
	case "KwTrue":
		p.advance()
		return literal{kind: litBool, b: true}, nil
	case "KwFalse":
		p.advance()
		return literal{kind: litBool, b: false}, nil
	default:
		return literal{}, fmt.Errorf("expected a literal, found %s %q", t.name, t.Value)
	}
}

// unquoteString strips the surrounding single quotes and unescapes
// doubled single quotes ('' -> ').
func unquoteString(raw string) string {
	inner := raw[1 : len(raw)-1]
	return strings.ReplaceAll(inner, "''", "'")
}

// Package condition implements the Condition Parser & Evaluator (C3):
// tokenizing, parsing (respecting parenthesis nesting and AND/OR/NOT
// precedence) and evaluating a rule's detection.condition string against
// a core.Record.
package condition

import (
	"regexp"

	"logsentry/core"
	"logsentry/ingest"
)

// maxDepth bounds expression nesting to guard against stack blow-up on
// pathological inputs (spec.md §9).
const maxDepth = 64

// Expr is a node of a parsed condition expression tree.
type Expr interface {
	eval(rec core.Record) bool
}

// binExpr is a binary AND/OR node.
type binExpr struct {
	and   bool // true = AND, false = OR
	left  Expr
	right Expr
}

func (b *binExpr) eval(rec core.Record) bool {
	if b.and {
		return b.left.eval(rec) && b.right.eval(rec)
	}
	return b.left.eval(rec) || b.right.eval(rec)
}

// notExpr negates its inner expression.
type notExpr struct {
	inner Expr
}

func (n *notExpr) eval(rec core.Record) bool {
	return !n.inner.eval(rec)
}

// litKind enumerates the literal types an atom's right-hand side can hold.
type litKind int

const (
	litString litKind = iota
	litNumber
	litBool
)

type literal struct {
	kind litKind
	str  string
	num  float64
	b    bool
}

// op enumerates the atomic comparison/test operators of spec.md §4.3.2.
type op int

const (
	opEQ op = iota
	opNE
	opLT
	opLE
	opGT
	opGE
	opIN
	opNotIN
	opContains
	opNotContains
	opStartsWith
	opNotStartsWith
	opEndsWith
	opNotEndsWith
	opMatch
	opLike
	opIsNull
	opIsNotNull
)

// atom is a leaf predicate: <path> <op> <literal-or-list>.
type atom struct {
	path    ingest.Path
	op      op
	lit     literal
	list    []literal
	pattern *regexp.Regexp // precompiled for MATCH/LIKE; parsed once, reused per record
}

func (a *atom) eval(rec core.Record) bool {
	v := a.path.ResolveRecord(rec)
	absent := !ingest.Resolved(v)

	switch a.op {
	case opIsNull:
		return absent || v == nil
	case opIsNotNull:
		return !absent && v != nil
	}

	if absent {
		// Absence invariant (spec.md §4.3.2 and §8): every operator
		// except IS NULL / IS NOT NULL yields false when the field is
		// missing, including the negated forms — "field != 'x'" must
		// not vacuously succeed on records lacking the field.
		return false
	}

	switch a.op {
	case opEQ:
		return equalLiteral(v, a.lit)
	case opNE:
		return !equalLiteral(v, a.lit)
	case opLT, opLE, opGT, opGE:
		return numericCompare(a.op, v, a.lit)
	case opIN:
		return inList(v, a.list)
	case opNotIN:
		return !inList(v, a.list)
	case opContains, opNotContains, opStartsWith, opNotStartsWith, opEndsWith, opNotEndsWith:
		return stringOp(a.op, v, a.lit)
	case opMatch, opLike:
		s, ok := stringifyForMatch(v)
		if !ok {
			return false
		}
		return a.pattern.MatchString(s)
	default:
		return false
	}
}

// Condition is a parsed, reusable condition expression tree; parse once
// (e.g. per rule, per scan) and call Eval for every record.
type Condition struct {
	root   Expr
	source string
}

// Eval reports whether rec satisfies the condition.
func (c *Condition) Eval(rec core.Record) bool {
	return c.root.eval(rec)
}

// String returns the original condition text.
func (c *Condition) String() string {
	return c.source
}

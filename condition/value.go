package condition

import (
	"encoding/json"
	"strconv"
	"strings"
)

// toNumber coerces a resolved JSON value to float64. json.Decoder with
// UseNumber() enabled (as ingest.Load always does) produces json.Number
// for numeric fields; plain float64/int handle values built in-process
// (e.g. by tests).
func toNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// equalLiteral implements the "=" comparison: type-aware, no implicit
// coercion between kinds other than numeric-looking strings.
func equalLiteral(v interface{}, lit literal) bool {
	switch lit.kind {
	case litString:
		s, ok := v.(string)
		return ok && s == lit.str
	case litNumber:
		n, ok := toNumber(v)
		return ok && n == lit.num
	case litBool:
		b, ok := v.(bool)
		return ok && b == lit.b
	default:
		return false
	}
}

// numericCompare implements <, <=, >, >=. Non-numeric values are a type
// mismatch and evaluate false (spec.md §4.3.2).
func numericCompare(o op, v interface{}, lit literal) bool {
	if lit.kind != litNumber {
		return false
	}
	n, ok := toNumber(v)
	if !ok {
		return false
	}
	switch o {
	case opLT:
		return n < lit.num
	case opLE:
		return n <= lit.num
	case opGT:
		return n > lit.num
	case opGE:
		return n >= lit.num
	default:
		return false
	}
}

func inList(v interface{}, list []literal) bool {
	for _, lit := range list {
		if equalLiteral(v, lit) {
			return true
		}
	}
	return false
}

// stringifyForMatch renders a scalar JSON value as a string for
// CONTAINS/STARTSWITH/ENDSWITH/MATCH/LIKE. Collection-typed values
// (arrays, objects) are not coerced and report a type mismatch.
func stringifyForMatch(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func stringOp(o op, v interface{}, lit literal) bool {
	if lit.kind != litString {
		return false
	}
	s, ok := stringifyForMatch(v)
	if !ok {
		return false
	}
	switch o {
	case opContains:
		return strings.Contains(s, lit.str)
	case opNotContains:
		return !strings.Contains(s, lit.str)
	case opStartsWith:
		return strings.HasPrefix(s, lit.str)
	case opNotStartsWith:
		return !strings.HasPrefix(s, lit.str)
	case opEndsWith:
		return strings.HasSuffix(s, lit.str)
	case opNotEndsWith:
		return !strings.HasSuffix(s, lit.str)
	default:
		return false
	}
}

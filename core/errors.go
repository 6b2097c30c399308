package core

import (
	"errors"
	"strconv"
)

// Error taxonomy (spec.md §7). Individual-item failures in batch
// operations are reported, not propagated; store-level I/O failures
// propagate. Check with errors.Is against these sentinels.
var (
	// ErrIO covers unreadable files, permission failures, missing directories.
	ErrIO = errors.New("io error")

	// ErrFormat covers log file parsing failures: bad JSON, missing
	// Records envelope, a malformed NDJSON line.
	ErrFormat = errors.New("format error")

	// ErrSchema covers rule YAML missing or invalid fields.
	ErrSchema = errors.New("schema error")

	// ErrSyntax covers a condition string that fails to parse.
	ErrSyntax = errors.New("syntax error")

	// ErrDuplicateID covers an import colliding with an existing rule id
	// when overwrite is false.
	ErrDuplicateID = errors.New("duplicate rule id")

	// ErrEngine covers an ad-hoc SQL query failure.
	ErrEngine = errors.New("query engine error")

	// ErrNotFound covers a lookup (rule id, log filename) with no match.
	ErrNotFound = errors.New("not found")
)

// FormatError names the offending line, when applicable, in a FlatJson
// NDJSON parse failure.
type FormatError struct {
	File string
	Line int // 0 when not line-addressable
	Err  error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return e.File + ": line " + strconv.Itoa(e.Line) + ": " + e.Err.Error()
	}
	return e.File + ": " + e.Err.Error()
}

func (e *FormatError) Unwrap() error { return ErrFormat }

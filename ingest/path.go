package ingest

import (
	"strconv"
	"strings"
)

// segment is one step of a parsed field path: a key lookup, optionally
// followed by an array index (for "name[0]" segments).
type segment struct {
	key      string
	hasIndex bool
	index    int
}

// Path is a parsed, reusable field path. Parse it once and Resolve it
// against many records.
type Path struct {
	segments []segment
}

// ParsePath splits a dotted path into segments at every '.'; quoting is
// not recognised, so a key that itself contains a '.' cannot be addressed.
// A segment of the form "name[idx]" is split into a key lookup followed by
// an array index.
func ParsePath(path string) Path {
	var segs []segment
	for _, part := range strings.Split(path, ".") {
		segs = append(segs, parseSegment(part))
	}
	return Path{segments: segs}
}

func parseSegment(part string) segment {
	open := strings.IndexByte(part, '[')
	if open < 0 || !strings.HasSuffix(part, "]") {
		return segment{key: part}
	}
	idxStr := part[open+1 : len(part)-1]
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return segment{key: part}
	}
	return segment{key: part[:open], hasIndex: true, index: idx}
}

// Absent is the sentinel for a path that did not resolve, distinct from a
// resolved JSON null.
type absentType struct{}

// Absent is returned by Resolve when the path does not resolve.
var Absent = absentType{}

// Resolved reports whether v is not the Absent sentinel.
func Resolved(v interface{}) bool {
	_, isAbsent := v.(absentType)
	return !isAbsent
}

// Resolve walks root following p's segments. It returns Absent on any
// lookup mismatch: a missing object key, a non-integer array index, an
// out-of-range index, or indexing into a non-container value.
func (p Path) Resolve(root interface{}) interface{} {
	cur := root
	for _, seg := range p.segments {
		if seg.key != "" {
			obj, ok := cur.(map[string]interface{})
			if !ok {
				return Absent
			}
			v, ok := obj[seg.key]
			if !ok {
				return Absent
			}
			cur = v
		}
		if seg.hasIndex {
			arr, ok := cur.([]interface{})
			if !ok || seg.index < 0 || seg.index >= len(arr) {
				return Absent
			}
			cur = arr[seg.index]
		}
	}
	return cur
}

// ResolvePath is a convenience wrapper that parses and resolves in one call.
func ResolvePath(root interface{}, path string) interface{} {
	return ParsePath(path).Resolve(root)
}

// ResolveRecord resolves p against rec. core.Record is a named map type;
// Resolve's first segment lookup requires the underlying
// map[string]interface{} type, so the conversion happens once here.
func (p Path) ResolveRecord(rec map[string]interface{}) interface{} {
	return p.Resolve(map[string]interface{}(rec))
}

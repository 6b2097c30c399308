// Package ingest implements the Record Source (C1) and Path Resolver (C2):
// it turns an on-disk log file into a sequence of core.Record values and
// resolves dotted/indexed field paths against them.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"logsentry/core"
)

// maxScanBuffer bounds the NDJSON line scanner, matching the teacher's own
// parsers' use of an explicit scanner buffer to handle long lines safely.
const maxScanBuffer = 4 * 1024 * 1024

// Load parses the file at path under the given format and returns every
// record it contains, in source-file order. Load always materializes the
// full sequence eagerly; it does not stream, matching Scan's need for two
// passes when aggregation is enabled (spec.md §4.1).
func Load(path string, format core.LogType) (core.Records, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}

	switch format {
	case core.LogTypeCloudTrail:
		return parseCloudTrail(path, data)
	case core.LogTypeFlatJSON:
		return parseFlatJSON(path, data)
	default:
		return nil, fmt.Errorf("%w: unknown log type %q", core.ErrFormat, format)
	}
}

// cloudTrailEnvelope is the top-level CloudTrail JSON shape: an object
// carrying a "Records" array of events.
type cloudTrailEnvelope struct {
	Records []core.Record `json:"Records"`
}

// parseCloudTrail requires a single JSON object with a top-level Records
// array; any other shape is a FormatError.
func parseCloudTrail(path string, data []byte) (core.Records, error) {
	var env cloudTrailEnvelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, &core.FormatError{File: path, Err: fmt.Errorf("not a JSON object: %w", err)}
	}
	if env.Records == nil {
		return nil, &core.FormatError{File: path, Err: fmt.Errorf("missing top-level Records array")}
	}
	return core.Records(env.Records), nil
}

// parseFlatJSON yields a single record when the file is one JSON object,
// otherwise treats it as newline-delimited JSON, skipping blank lines and
// failing with a line-addressed FormatError on the first malformed line.
func parseFlatJSON(path string, data []byte) (core.Records, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if rec, ok := decodeSingleObject(trimmed); ok {
			return core.Records{rec}, nil
		}
	}
	return parseNDJSON(path, data)
}

// decodeSingleObject reports whether trimmed is exactly one JSON object
// followed by nothing but whitespace, decoding it if so.
func decodeSingleObject(trimmed []byte) (core.Record, bool) {
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var rec core.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, false
	}
	if len(bytes.TrimSpace(trimmed[dec.InputOffset():])) != 0 {
		return nil, false
	}
	return rec, true
}

func parseNDJSON(path string, data []byte) (core.Records, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxScanBuffer)

	var records core.Records
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec core.Record
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&rec); err != nil {
			return nil, &core.FormatError{File: path, Line: lineNum, Err: err}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	return records, nil
}

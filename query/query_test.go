package query

import (
	"errors"
	"testing"

	"logsentry/core"
)

func TestRunSelectsAcrossFields(t *testing.T) {
	sources := []Source{
		{
			Table:   "events",
			LogPath: "/tmp/sample.ndjson",
			Records: core.Records{
				core.Record{"user": "root", "errorCode": "AccessDenied"},
				core.Record{"user": "alice", "errorCode": ""},
			},
		},
	}

	result, err := New().Run(`SELECT json_extract(data, '$.user') AS user FROM events WHERE json_extract(data, '$.errorCode') = 'AccessDenied'`, sources)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", result.RowCount)
	}
	if result.Rows[0]["user"] != "root" {
		t.Errorf("row[0][user] = %v, want root", result.Rows[0]["user"])
	}
}

func TestRunPropagatesEngineError(t *testing.T) {
	_, err := New().Run(`SELECT * FROM nonexistent_table`, nil)
	if err == nil {
		t.Fatalf("expected an error for a query against an undeclared table")
	}
	if !errors.Is(err, core.ErrEngine) {
		t.Errorf("error %v does not wrap core.ErrEngine", err)
	}
}

func TestRunAcrossMultipleSources(t *testing.T) {
	sources := []Source{
		{Table: "events", LogPath: "a.ndjson", Records: core.Records{core.Record{"user": "root"}}},
		{Table: "events", LogPath: "b.ndjson", Records: core.Records{core.Record{"user": "alice"}}},
	}
	result, err := New().Run(`SELECT COUNT(*) AS n FROM events`, sources)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", result.RowCount)
	}
}

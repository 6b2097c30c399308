package testharness

import (
	"os"
	"path/filepath"
	"testing"

	"logsentry/core"
)

func writeFlatJSON(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "events.ndjson")
	data := ""
	for _, l := range lines {
		data += l + "\n"
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRunReportsSyntaxErrorWithoutLoadingFile(t *testing.T) {
	result := Run("eventName WHERE 'x'", "/does/not/exist.ndjson", core.LogTypeFlatJSON)
	if result.SyntaxValid {
		t.Fatalf("expected SyntaxValid=false for a malformed condition")
	}
	if result.SyntaxError == "" {
		t.Errorf("expected a non-empty SyntaxError")
	}
}

func TestRunCountsMatchedAndNonMatched(t *testing.T) {
	path := writeFlatJSON(t,
		`{"user":"root"}`,
		`{"user":"alice"}`,
		`{"user":"root"}`,
	)
	result := Run("user = 'root'", path, core.LogTypeFlatJSON)
	if !result.SyntaxValid {
		t.Fatalf("expected SyntaxValid=true, got error %q", result.SyntaxError)
	}
	if result.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", result.TotalCount)
	}
	if result.MatchedCount != 2 {
		t.Errorf("MatchedCount = %d, want 2", result.MatchedCount)
	}
	if len(result.MatchedEvents) != 2 {
		t.Errorf("len(MatchedEvents) = %d, want 2", len(result.MatchedEvents))
	}
	if len(result.SampleNonMatched) != 1 {
		t.Errorf("len(SampleNonMatched) = %d, want 1", len(result.SampleNonMatched))
	}
}

func TestRunSurfacesLoadErrorAfterValidSyntax(t *testing.T) {
	result := Run("user = 'root'", "/does/not/exist.ndjson", core.LogTypeFlatJSON)
	if !result.SyntaxValid {
		t.Fatalf("expected SyntaxValid=true for a well-formed condition")
	}
	if result.SyntaxError == "" {
		t.Errorf("expected the load failure surfaced via SyntaxError")
	}
}

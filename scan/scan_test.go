package scan

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

func simpleRule(condition string) *core.Rule {
	return &core.Rule{
		ID:     "r1",
		Title:  "test rule",
		Status: core.StatusActive,
		Detection: core.Detection{
			Severity:  core.SeverityHigh,
			Condition: condition,
		},
	}
}

func TestScanSingleMatchAlerts(t *testing.T) {
	path := writeFlatJSON(t,
		`{"user":"root"}`,
		`{"user":"alice"}`,
	)
	rule := simpleRule("user = 'root'")

	resp, err := New().Scan(path, core.LogTypeFlatJSON, []*core.Rule{rule})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(resp.Alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(resp.Alerts))
	}
	if resp.Alerts[0].MatchCount != 1 {
		t.Errorf("MatchCount = %d, want 1", resp.Alerts[0].MatchCount)
	}
	if resp.RulesEvaluated != 1 {
		t.Errorf("RulesEvaluated = %d, want 1", resp.RulesEvaluated)
	}
}

func TestScanNoMatchNoAlert(t *testing.T) {
	path := writeFlatJSON(t, `{"user":"alice"}`)
	rule := simpleRule("user = 'root'")

	resp, err := New().Scan(path, core.LogTypeFlatJSON, []*core.Rule{rule})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(resp.Alerts) != 0 {
		t.Fatalf("got %d alerts, want 0", len(resp.Alerts))
	}
}

func TestScanSkipsInactiveRules(t *testing.T) {
	path := writeFlatJSON(t, `{"user":"root"}`)
	rule := simpleRule("user = 'root'")
	rule.Status = core.StatusDisabled

	resp, err := New().Scan(path, core.LogTypeFlatJSON, []*core.Rule{rule})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if resp.RulesEvaluated != 0 || len(resp.Alerts) != 0 {
		t.Fatalf("disabled rule should not be evaluated: %+v", resp)
	}
}

func TestAggregationSlidingWindowByEventTime(t *testing.T) {
	path := writeFlatJSON(t,
		`{"user":"root","eventTime":"2026-01-01T00:00:00Z"}`,
		`{"user":"root","eventTime":"2026-01-01T00:00:30Z"}`,
		`{"user":"root","eventTime":"2026-01-01T00:01:00Z"}`,
		`{"user":"root","eventTime":"2026-01-01T01:00:00Z"}`,
	)
	rule := simpleRule("user = 'root'")
	rule.Detection.Aggregation = &core.Aggregation{
		Enabled:   true,
		Window:    "1m",
		Threshold: ">= 3",
	}

	resp, err := New().Scan(path, core.LogTypeFlatJSON, []*core.Rule{rule})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(resp.Alerts) != 1 {
		t.Fatalf("got %d alerts, want 1 (first 3 events fall within a 1m window)", len(resp.Alerts))
	}
	if resp.Alerts[0].MatchCount != 3 {
		t.Errorf("MatchCount = %d, want 3", resp.Alerts[0].MatchCount)
	}
	if resp.Alerts[0].DegradedAggregation {
		t.Errorf("expected non-degraded aggregation when eventTime is present")
	}
}

func TestAggregationThresholdNotMet(t *testing.T) {
	path := writeFlatJSON(t,
		`{"user":"root","eventTime":"2026-01-01T00:00:00Z"}`,
		`{"user":"root","eventTime":"2026-01-01T01:00:00Z"}`,
	)
	rule := simpleRule("user = 'root'")
	rule.Detection.Aggregation = &core.Aggregation{
		Enabled:   true,
		Window:    "1m",
		Threshold: ">= 3",
	}

	resp, err := New().Scan(path, core.LogTypeFlatJSON, []*core.Rule{rule})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(resp.Alerts) != 0 {
		t.Fatalf("got %d alerts, want 0 when threshold is not met", len(resp.Alerts))
	}
}

func TestAggregationPositionalFallbackWhenEventTimeMissing(t *testing.T) {
	path := writeFlatJSON(t,
		`{"user":"root"}`,
		`{"user":"root"}`,
		`{"user":"root"}`,
	)
	rule := simpleRule("user = 'root'")
	rule.Detection.Aggregation = &core.Aggregation{
		Enabled:   true,
		Window:    "5m",
		Threshold: ">= 3",
	}

	resp, err := New().Scan(path, core.LogTypeFlatJSON, []*core.Rule{rule})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(resp.Alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(resp.Alerts))
	}
	if !resp.Alerts[0].DegradedAggregation {
		t.Errorf("expected DegradedAggregation when matches lack eventTime")
	}
}

func TestScanAllIsolatesPerFileFailures(t *testing.T) {
	goodPath := writeFlatJSON(t, `{"user":"root"}`)
	badDir := t.TempDir()
	badPath := filepath.Join(badDir, "missing.ndjson")

	rule := simpleRule("user = 'root'")
	files := []core.LogFileInfo{
		{Filename: "good.ndjson", LogType: core.LogTypeFlatJSON},
		{Filename: "missing.ndjson", LogType: core.LogTypeFlatJSON},
	}
	paths := map[string]string{
		"good.ndjson":    goodPath,
		"missing.ndjson": badPath,
	}

	resp := New().ScanAll(files, func(lf core.LogFileInfo) string { return paths[lf.Filename] }, []*core.Rule{rule})

	if resp.TotalFilesScanned != 1 {
		t.Errorf("TotalFilesScanned = %d, want 1", resp.TotalFilesScanned)
	}
	if len(resp.FailedFiles) != 1 {
		t.Fatalf("got %d failed files, want 1", len(resp.FailedFiles))
	}
	if resp.FailedFiles[0].LogPath != badPath {
		t.Errorf("FailedFiles[0].LogPath = %q, want %q", resp.FailedFiles[0].LogPath, badPath)
	}
	if resp.TotalAlerts != 1 {
		t.Errorf("TotalAlerts = %d, want 1", resp.TotalAlerts)
	}
}

package core

import "time"

// MaxEvidence caps the number of contributing records attached to an
// Alert. Unbounded evidence would balloon memory on large matches.
const MaxEvidence = 100

// Alert is produced per (rule, scan). Evidence preserves source-file
// record order and is capped at MaxEvidence.
type Alert struct {
	RuleID       string    `json:"rule_id"`
	RuleTitle    string    `json:"rule_title"`
	Severity     Severity  `json:"severity"`
	Timestamp    time.Time `json:"timestamp"`
	MatchCount   int       `json:"match_count"`
	Evidence     Records   `json:"evidence"`
	Truncated    bool      `json:"truncated,omitempty"`
	SourceFile   string    `json:"source_file,omitempty"`

	// DegradedAggregation is set when a rule requested eventTime-based
	// sliding-window aggregation but matches lacked eventTime, forcing a
	// fallback to positional bucketing.
	DegradedAggregation bool `json:"degraded_aggregation,omitempty"`
}

// AppendEvidence appends rec to the alert's evidence, respecting the cap.
func (a *Alert) AppendEvidence(rec Record) {
	if len(a.Evidence) >= MaxEvidence {
		a.Truncated = true
		return
	}
	a.Evidence = append(a.Evidence, rec)
}

// ScanResponse is the result of scanning a single file.
type ScanResponse struct {
	Alerts        []*Alert `json:"alerts"`
	RulesEvaluated int     `json:"rules_evaluated"`
	ScanTimeMs    int64    `json:"scan_time_ms"`
}

// FileScanResult is one file's outcome within a bulk scan.
type FileScanResult struct {
	LogPath string   `json:"log_path"`
	Alerts  []*Alert `json:"alerts"`
}

// FailedFile records a per-file failure within a bulk scan.
type FailedFile struct {
	LogPath string `json:"log_path"`
	Error   string `json:"error"`
}

// BulkScanResponse is the aggregate result of scanning every known log file.
type BulkScanResponse struct {
	TotalAlerts       int              `json:"total_alerts"`
	TotalFilesScanned int              `json:"total_files_scanned"`
	TotalScanTimeMs   int64            `json:"total_scan_time_ms"`
	FileResults       []FileScanResult `json:"file_results"`
	FailedFiles       []FailedFile     `json:"failed_files"`
}

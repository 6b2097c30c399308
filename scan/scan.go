// Package scan implements the Scan Orchestrator (C5): it drives a file's
// records against a rule set, aggregates matches into alerts (by sliding
// eventTime window, or a positional fallback), and runs bulk scans across
// every known log file with per-file failure isolation.
package scan

import (
	"fmt"
	"sort"
	"time"

	"logsentry/condition"
	"logsentry/core"
	"logsentry/ingest"
)

// eventTimePath is the well-known field aggregation windows key off.
const eventTimePath = "eventTime"

// Scanner drives rules against ingested records. It holds no state across
// calls; each Scan/ScanAll parses its own condition trees.
type Scanner struct{}

// New returns a ready-to-use Scanner.
func New() *Scanner {
	return &Scanner{}
}

// Scan loads logPath under format and evaluates every active rule against
// it, in rule-iteration order (spec.md §5).
func (s *Scanner) Scan(logPath string, format core.LogType, rules []*core.Rule) (*core.ScanResponse, error) {
	start := time.Now()

	records, err := ingest.Load(logPath, format)
	if err != nil {
		return nil, err
	}

	var alerts []*core.Alert
	evaluated := 0
	for _, rule := range rules {
		if !rule.Active() {
			continue
		}
		evaluated++
		alert, err := evaluateRule(rule, records, logPath)
		if err != nil {
			// A single rule's condition failing to compile does not abort
			// the scan: the rule is skipped. It still counts toward
			// RulesEvaluated, and the response does not name the skipped
			// rule or its error. A rule that fails here should
			// already have been rejected by rulestore.Validate at save
			// time, so this is defense for rules edited outside the store.
			continue
		}
		if alert != nil {
			alerts = append(alerts, alert)
		}
	}

	return &core.ScanResponse{
		Alerts:         alerts,
		RulesEvaluated: evaluated,
		ScanTimeMs:     time.Since(start).Milliseconds(),
	}, nil
}

// ScanAll scans every file in logFiles, isolating per-file failures into
// FailedFiles rather than aborting the batch (spec.md §4.5). onProgress,
// if given, is called after each file completes, for callers (the local
// API's SSE endpoint) that stream bulk-scan progress to a client.
func (s *Scanner) ScanAll(logFiles []core.LogFileInfo, logPathFor func(core.LogFileInfo) string, rules []*core.Rule, onProgress ...func(done, total int, lf core.LogFileInfo)) *core.BulkScanResponse {
	start := time.Now()
	resp := &core.BulkScanResponse{}
	total := len(logFiles)

	for i, lf := range logFiles {
		path := logPathFor(lf)
		result, err := s.Scan(path, lf.LogType, rules)
		if err != nil {
			resp.FailedFiles = append(resp.FailedFiles, core.FailedFile{
				LogPath: path,
				Error:   err.Error(),
			})
		} else {
			resp.TotalFilesScanned++
			resp.TotalAlerts += len(result.Alerts)
			resp.FileResults = append(resp.FileResults, core.FileScanResult{
				LogPath: path,
				Alerts:  result.Alerts,
			})
		}
		for _, cb := range onProgress {
			cb(i+1, total, lf)
		}
	}

	resp.TotalScanTimeMs = time.Since(start).Milliseconds()
	return resp
}

// evaluateRule parses rule's condition once and walks every record,
// returning nil when there is nothing to alert on.
func evaluateRule(rule *core.Rule, records core.Records, sourceFile string) (*core.Alert, error) {
	cond, err := condition.Compile(rule.Detection.Condition)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSyntax, err)
	}

	var matches core.Records
	for _, rec := range records {
		if cond.Eval(rec) {
			matches = append(matches, rec)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	agg := rule.Detection.Aggregation
	if agg == nil || !agg.Enabled {
		return buildAlert(rule, matches, sourceFile, false)
	}
	return aggregate(rule, matches, sourceFile, agg)
}

func buildAlert(rule *core.Rule, matches core.Records, sourceFile string, degraded bool) (*core.Alert, error) {
	alert := &core.Alert{
		RuleID:              rule.ID,
		RuleTitle:           rule.Title,
		Severity:            rule.Detection.Severity,
		Timestamp:           time.Now(),
		MatchCount:          len(matches),
		SourceFile:          sourceFile,
		DegradedAggregation: degraded,
	}
	for _, rec := range matches {
		alert.AppendEvidence(rec)
	}
	return alert, nil
}

// aggregate applies the rule's aggregation.threshold within a sliding
// eventTime window, falling back to positional bucketing when matches
// lack a parseable eventTime (spec.md §4.5 step 2c).
func aggregate(rule *core.Rule, matches core.Records, sourceFile string, agg *core.Aggregation) (*core.Alert, error) {
	window, err := agg.WindowDuration()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchema, err)
	}

	times, ok := extractEventTimes(matches)
	if ok {
		count, satisfied, err := slidingWindowMax(times, window, agg)
		if err != nil {
			return nil, err
		}
		if !satisfied {
			return nil, nil
		}
		return alertWithCount(rule, matches, sourceFile, count, false)
	}

	// Positional fallback: group every `window`-sized run of consecutive
	// matches (window's record-count reading reused in place of a
	// duration, since there is no timestamp to slide over).
	bucket := positionalBucketSize(window)
	count, satisfied, err := positionalMax(len(matches), bucket, agg)
	if err != nil {
		return nil, err
	}
	if !satisfied {
		return nil, nil
	}
	return alertWithCount(rule, matches, sourceFile, count, true)
}

func alertWithCount(rule *core.Rule, matches core.Records, sourceFile string, count int, degraded bool) (*core.Alert, error) {
	alert, err := buildAlert(rule, matches, sourceFile, degraded)
	if err != nil {
		return nil, err
	}
	alert.MatchCount = count
	return alert, nil
}

// extractEventTimes parses the eventTime field of every match. It
// reports ok=false (triggering the positional fallback) unless every
// match has a parseable timestamp.
func extractEventTimes(matches core.Records) ([]time.Time, bool) {
	times := make([]time.Time, 0, len(matches))
	for _, rec := range matches {
		v := ingest.ResolvePath(map[string]interface{}(rec), eventTimePath)
		if !ingest.Resolved(v) {
			return nil, false
		}
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, false
		}
		times = append(times, t)
	}
	return times, true
}

// slidingWindowMax finds the largest count of timestamps falling within
// any window-duration interval ending at one of the timestamps, and
// reports whether that count satisfies agg's threshold.
func slidingWindowMax(times []time.Time, window time.Duration, agg *core.Aggregation) (int, bool, error) {
	sorted := append([]time.Time(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	best := 0
	left := 0
	for right := 0; right < len(sorted); right++ {
		for sorted[right].Sub(sorted[left]) > window {
			left++
		}
		count := right - left + 1
		if count > best {
			best = count
		}
	}

	satisfied, err := agg.Satisfies(best)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", core.ErrSchema, err)
	}
	return best, satisfied, nil
}

// positionalBucketSize turns the configured window duration into a
// record-count bucket size for the no-timestamp fallback: one minute of
// configured window maps to one record, with a floor of 1.
func positionalBucketSize(window time.Duration) int {
	n := int(window / time.Minute)
	if n < 1 {
		n = 1
	}
	return n
}

// positionalMax finds the largest count of matches in any run of
// bucketSize consecutive matches, and reports whether it satisfies agg's
// threshold. Matches are already in source-file order.
func positionalMax(total, bucketSize int, agg *core.Aggregation) (int, bool, error) {
	best := total
	if bucketSize < total {
		best = bucketSize
	}
	satisfied, err := agg.Satisfies(best)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", core.ErrSchema, err)
	}
	return best, satisfied, nil
}

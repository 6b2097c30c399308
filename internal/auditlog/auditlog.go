// Package auditlog appends one structured JSON line per emitted alert to
// a durable audit trail, independent of internal/logger's human-readable
// process log. Grounded on the pack's other CloudTrail-specific repo
// (boogy-CloudTrail-Log-Parser), which logs every processed record
// through github.com/rs/zerolog the same way: a file-backed logger,
// chained Str/Int/Time fields, one event per line.
package auditlog

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"logsentry/core"
)

// Logger appends audit events to a JSON-lines file. A nil *Logger drops
// every event, as does the Logger returned by NewDiscard, so callers that
// run without a configured data directory don't need a nil check.
type Logger struct {
	zl zerolog.Logger
	mu sync.Mutex
	f  io.Closer
}

// New opens (creating if necessary) an append-only audit log at
// filepath.Join(dataDir, "audit.log").
func New(dataDir string) (*Logger, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dataDir, "audit.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	zl := zerolog.New(f).With().Timestamp().Logger()
	return &Logger{zl: zl, f: f}, nil
}

// NewDiscard returns a Logger that writes nowhere, for tests and any
// caller that hasn't configured a data directory.
func NewDiscard() *Logger {
	return &Logger{zl: zerolog.New(io.Discard)}
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}

// Alert records one emitted alert as a structured audit event.
func (l *Logger) Alert(a *core.Alert) {
	if l == nil || a == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl.Info().
		Str("rule_id", a.RuleID).
		Str("rule_title", a.RuleTitle).
		Str("severity", string(a.Severity)).
		Str("source_file", a.SourceFile).
		Int("match_count", a.MatchCount).
		Bool("degraded_aggregation", a.DegradedAggregation).
		Time("alert_time", a.Timestamp).
		Msg("alert emitted")
}

// ScanCompleted records one scan's summary, independent of any alerts it
// produced, so the audit trail also shows scans that found nothing.
func (l *Logger) ScanCompleted(logPath string, rulesEvaluated, alertCount int, duration time.Duration) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl.Info().
		Str("log_path", logPath).
		Int("rules_evaluated", rulesEvaluated).
		Int("alert_count", alertCount).
		Dur("scan_time", duration).
		Msg("scan completed")
}

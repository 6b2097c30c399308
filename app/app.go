// Package app implements the App surface of spec.md §6: one Go method
// per command the external interfaces (Wails bindings, the local HTTP
// API) bind to, wiring together the Rule Store (C4), the log library,
// the Scan Orchestrator (C5), the Ad-hoc Query Interface (C6) and the
// Rule Test Harness (C7).
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"logsentry/condition"
	"logsentry/core"
	"logsentry/ingest"
	"logsentry/internal/auditlog"
	"logsentry/internal/logger"
	"logsentry/query"
	"logsentry/rulestore"
	"logsentry/scan"
	"logsentry/testharness"
)

// App is the single entry point every transport (Wails bindings, the
// local HTTP API, the CLI) drives. It holds no per-request state; every
// method is safe to call concurrently, delegating the locking discipline
// to its stores (spec.md §5).
type App struct {
	Config      *Config
	rules       *rulestore.Store
	logs        *LogLibrary
	scanner     *scan.Scanner
	queryEngine *query.Engine
	audit       *auditlog.Logger
	configMu    sync.Mutex // serializes updates to Config's recent-files list
}

// New wires a fresh App against the given Config's rules/logs
// directories. Every scan's alerts are appended to an audit trail
// (SPEC_FULL.md §10) at Config.DataDir/audit.log; a Logger that fails to
// open falls back to discarding events rather than blocking startup.
func New(cfg *Config) *App {
	audit, err := auditlog.New(cfg.DataDir)
	if err != nil {
		logger.Warn("audit log unavailable, alerts will not be recorded: %v", err)
		audit = auditlog.NewDiscard()
	}
	return &App{
		Config:      cfg,
		rules:       rulestore.New(cfg.RulesDirectory),
		logs:        NewLogLibrary(cfg.DefaultLogsDirectory),
		scanner:     scan.New(),
		queryEngine: query.New(),
		audit:       audit,
	}
}

// Close releases the App's held resources (currently, the audit log
// file).
func (a *App) Close() error {
	return a.audit.Close()
}

// ListRules returns every rule in the store, in id order.
func (a *App) ListRules() ([]*core.Rule, error) {
	return a.rules.List()
}

// GetRule returns a single rule by id.
func (a *App) GetRule(ruleID string) (*core.Rule, error) {
	return a.rules.Get(ruleID)
}

// SaveRule validates and saves rule, assigning an id if empty.
func (a *App) SaveRule(rule *core.Rule) (*core.Rule, error) {
	if err := a.rules.Save(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule removes a rule by id.
func (a *App) DeleteRule(ruleID string) error {
	return a.rules.Delete(ruleID)
}

// ExportRule writes a single rule's YAML to destPath.
func (a *App) ExportRule(ruleID, destPath string) error {
	f, err := createFile(destPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return a.rules.ExportOne(ruleID, f)
}

// ExportAllRules writes every rule into a zip archive at destPath,
// returning the number of rules written.
func (a *App) ExportAllRules(destPath string) (int, error) {
	rules, err := a.rules.List()
	if err != nil {
		return 0, err
	}
	f, err := createFile(destPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if err := a.rules.ExportAll(f); err != nil {
		return 0, err
	}
	return len(rules), nil
}

// ImportRule imports a single rule YAML file.
func (a *App) ImportRule(sourcePath string, overwrite bool) (*core.Rule, error) {
	return a.rules.ImportOne(sourcePath, overwrite)
}

// ImportMultipleRules imports each of filePaths independently, isolating
// per-file failures into the returned summary (spec.md §7).
func (a *App) ImportMultipleRules(filePaths []string, overwrite bool) (*rulestore.ImportSummary, error) {
	summary := &rulestore.ImportSummary{}
	for _, path := range filePaths {
		if _, err := a.rules.ImportOne(path, overwrite); err != nil {
			if errors.Is(err, core.ErrDuplicateID) {
				summary.Skipped = append(summary.Skipped, path)
				continue
			}
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		summary.SuccessCount++
	}
	return summary, nil
}

// ImportRulesZip imports every rule YAML file inside zipPath.
func (a *App) ImportRulesZip(zipPath string, overwrite bool) (*rulestore.ImportSummary, error) {
	return a.rules.Import(zipPath, overwrite)
}

// ListLogFiles returns every log file in the library.
func (a *App) ListLogFiles() ([]core.LogFileInfo, error) {
	return a.logs.List()
}

// ImportLogFile copies sourcePath into the log library under logType.
func (a *App) ImportLogFile(sourcePath string, logType core.LogType) (*core.LogFileInfo, error) {
	info, err := a.logs.Import(sourcePath, logType)
	if err != nil {
		return nil, err
	}
	a.configMu.Lock()
	a.Config.pushRecentFile(info.Filename)
	saveErr := a.Config.Save()
	a.configMu.Unlock()
	if saveErr != nil {
		logger.Warn("failed to persist recent-files list: %v", saveErr)
	}
	return info, nil
}

// ImportMultipleLogFiles imports each of sourcePaths under logType,
// isolating per-file failures into the returned summary.
func (a *App) ImportMultipleLogFiles(sourcePaths []string, logType core.LogType) (*rulestore.ImportSummary, error) {
	summary := &rulestore.ImportSummary{}
	for _, path := range sourcePaths {
		if _, err := a.ImportLogFile(path, logType); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		summary.SuccessCount++
	}
	return summary, nil
}

// UpdateLogType changes the declared format of an imported log file.
func (a *App) UpdateLogType(filename string, logType core.LogType) error {
	return a.logs.UpdateLogType(filename, logType)
}

// DeleteLogFile removes a log file from the library.
func (a *App) DeleteLogFile(filename string) error {
	return a.logs.Delete(filename)
}

// LoadLogEvents parses and returns every record in a log file.
func (a *App) LoadLogEvents(logPath string, logType core.LogType) (core.Records, error) {
	return ingest.Load(logPath, logType)
}

// ScanLogs runs every active rule against a single log file.
func (a *App) ScanLogs(logPath string, logType core.LogType) (*core.ScanResponse, error) {
	rules, err := a.rules.List()
	if err != nil {
		return nil, err
	}
	resp, err := a.scanner.Scan(logPath, logType, rules)
	if err != nil {
		return nil, err
	}
	a.recordScan(logPath, resp)
	return resp, nil
}

// recordScan appends resp's alerts, and its own summary, to the audit
// trail.
func (a *App) recordScan(logPath string, resp *core.ScanResponse) {
	for _, alert := range resp.Alerts {
		a.audit.Alert(alert)
	}
	a.audit.ScanCompleted(logPath, resp.RulesEvaluated, len(resp.Alerts), time.Duration(resp.ScanTimeMs)*time.Millisecond)
}

// ScanAllLogs runs every active rule against every log file in the
// library, isolating per-file failures (spec.md §4.5).
func (a *App) ScanAllLogs() (*core.BulkScanResponse, error) {
	return a.ScanAllLogsWithProgress(nil)
}

// ScanAllLogsWithProgress is ScanAllLogs with an optional per-file
// progress callback, used by the local API's SSE endpoint to stream
// bulk-scan progress to a client.
func (a *App) ScanAllLogsWithProgress(onProgress func(done, total int, filename string)) (*core.BulkScanResponse, error) {
	rules, err := a.rules.List()
	if err != nil {
		return nil, err
	}
	files, err := a.logs.List()
	if err != nil {
		return nil, err
	}
	logPathFor := func(lf core.LogFileInfo) string { return a.logs.pathFor(lf.Filename) }
	var resp *core.BulkScanResponse
	if onProgress == nil {
		resp = a.scanner.ScanAll(files, logPathFor, rules)
	} else {
		resp = a.scanner.ScanAll(files, logPathFor, rules, func(done, total int, lf core.LogFileInfo) {
			onProgress(done, total, lf.Filename)
		})
	}
	for _, fr := range resp.FileResults {
		for _, alert := range fr.Alerts {
			a.audit.Alert(alert)
		}
	}
	return resp, nil
}

// ValidateLogFile reports whether logPath parses as CloudTrail or
// FlatJson without declaring which.
func (a *App) ValidateLogFile(logPath string) (bool, error) {
	if _, err := ingest.Load(logPath, core.LogTypeCloudTrail); err == nil {
		return true, nil
	}
	if _, err := ingest.Load(logPath, core.LogTypeFlatJSON); err == nil {
		return true, nil
	}
	return false, nil
}

// ValidateCondition checks a condition string's syntax without
// evaluating it against any record.
func (a *App) ValidateCondition(conditionExpr string) condition.ValidationResult {
	return condition.Validate(conditionExpr)
}

// TestRule evaluates a condition against a sample log file before it is
// saved as a rule.
func (a *App) TestRule(conditionExpr, logPath string, logType core.LogType) *core.TestRuleResult {
	return testharness.Run(conditionExpr, logPath, logType)
}

// RunQuery executes an ad-hoc SQL query against every record currently
// in the log library.
func (a *App) RunQuery(queryText string) (*core.QueryResult, error) {
	files, err := a.logs.List()
	if err != nil {
		return nil, err
	}

	var sources []query.Source
	for _, f := range files {
		logType, path, err := a.logs.Get(f.Filename)
		if err != nil {
			continue
		}
		records, err := ingest.Load(path, logType)
		if err != nil {
			logger.Warn("run_query: skipping %s: %v", f.Filename, err)
			continue
		}
		sources = append(sources, query.Source{Table: "events", LogPath: path, Records: records})
	}
	return a.queryEngine.Run(queryText, sources)
}

// createFile creates destPath, making its parent directory first if
// necessary.
func createFile(destPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	return f, nil
}

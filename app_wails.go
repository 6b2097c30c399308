package main

import (
	"context"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"logsentry/app"
	"logsentry/condition"
	"logsentry/core"
	"logsentry/rulestore"
)

// WailsApp is the Wails-bound struct: a thin pass-through to *app.App's
// spec.md §6 command surface, plus the native file-dialog helpers the UI
// needs to gather paths before calling those commands. It carries no
// detection logic of its own.
type WailsApp struct {
	ctx  context.Context
	core *app.App
}

// NewApp wires a WailsApp against an already-configured *app.App.
func NewApp(core *app.App) *WailsApp {
	return &WailsApp{core: core}
}

// startup is called by Wails once the native window is ready.
func (a *WailsApp) startup(ctx context.Context) {
	a.ctx = ctx
}

// shutdown is called by Wails as the window closes, releasing the core
// App's held resources (its audit log file).
func (a *WailsApp) shutdown(ctx context.Context) {
	_ = a.core.Close()
}

// SelectRuleFile opens a native file picker for a rule YAML file.
func (a *WailsApp) SelectRuleFile() (string, error) {
	return wailsruntime.OpenFileDialog(a.ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select Rule File",
		Filters: []wailsruntime.FileFilter{{DisplayName: "YAML Rules", Pattern: "*.yaml;*.yml"}},
	})
}

// SelectRulesZip opens a native file picker for a rule export archive.
func (a *WailsApp) SelectRulesZip() (string, error) {
	return wailsruntime.OpenFileDialog(a.ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select Rules Archive",
		Filters: []wailsruntime.FileFilter{{DisplayName: "Zip Archives", Pattern: "*.zip"}},
	})
}

// SelectLogFile opens a native file picker for a log file to import.
func (a *WailsApp) SelectLogFile() (string, error) {
	return wailsruntime.OpenFileDialog(a.ctx, wailsruntime.OpenDialogOptions{
		Title: "Select Log File",
	})
}

// SelectExportDestination opens a native save dialog for a rule/zip export.
func (a *WailsApp) SelectExportDestination(suggestedName string) (string, error) {
	return wailsruntime.SaveFileDialog(a.ctx, wailsruntime.SaveDialogOptions{
		Title:           "Export Destination",
		DefaultFilename: suggestedName,
	})
}

// ListRules binds list_rules.
func (a *WailsApp) ListRules() ([]*core.Rule, error) { return a.core.ListRules() }

// GetRule binds get_rule.
func (a *WailsApp) GetRule(ruleID string) (*core.Rule, error) { return a.core.GetRule(ruleID) }

// SaveRule binds save_rule.
func (a *WailsApp) SaveRule(rule *core.Rule) (*core.Rule, error) { return a.core.SaveRule(rule) }

// DeleteRule binds delete_rule.
func (a *WailsApp) DeleteRule(ruleID string) error { return a.core.DeleteRule(ruleID) }

// ExportRule binds export_rule.
func (a *WailsApp) ExportRule(ruleID, destPath string) error {
	return a.core.ExportRule(ruleID, destPath)
}

// ExportAllRules binds export_all_rules.
func (a *WailsApp) ExportAllRules(destPath string) (int, error) {
	return a.core.ExportAllRules(destPath)
}

// ImportRule binds import_rule.
func (a *WailsApp) ImportRule(sourcePath string, overwrite bool) (*core.Rule, error) {
	return a.core.ImportRule(sourcePath, overwrite)
}

// ImportMultipleRules binds import_multiple_rules.
func (a *WailsApp) ImportMultipleRules(filePaths []string, overwrite bool) (*rulestore.ImportSummary, error) {
	return a.core.ImportMultipleRules(filePaths, overwrite)
}

// ImportRulesZip binds import_rules_zip.
func (a *WailsApp) ImportRulesZip(zipPath string, overwrite bool) (*rulestore.ImportSummary, error) {
	return a.core.ImportRulesZip(zipPath, overwrite)
}

// ListLogFiles binds list_log_files.
func (a *WailsApp) ListLogFiles() ([]core.LogFileInfo, error) { return a.core.ListLogFiles() }

// ImportLogFile binds import_log_file.
func (a *WailsApp) ImportLogFile(sourcePath string, logType core.LogType) (*core.LogFileInfo, error) {
	return a.core.ImportLogFile(sourcePath, logType)
}

// ImportMultipleLogFiles binds import_multiple_log_files.
func (a *WailsApp) ImportMultipleLogFiles(sourcePaths []string, logType core.LogType) (*rulestore.ImportSummary, error) {
	return a.core.ImportMultipleLogFiles(sourcePaths, logType)
}

// UpdateLogType binds update_log_type.
func (a *WailsApp) UpdateLogType(filename string, logType core.LogType) error {
	return a.core.UpdateLogType(filename, logType)
}

// DeleteLogFile binds delete_log_file.
func (a *WailsApp) DeleteLogFile(filename string) error { return a.core.DeleteLogFile(filename) }

// LoadLogEvents binds load_log_events.
func (a *WailsApp) LoadLogEvents(logPath string, logType core.LogType) (core.Records, error) {
	return a.core.LoadLogEvents(logPath, logType)
}

// ScanLogs binds scan_logs.
func (a *WailsApp) ScanLogs(logPath string, logType core.LogType) (*core.ScanResponse, error) {
	return a.core.ScanLogs(logPath, logType)
}

// ScanAllLogs binds scan_all_logs.
func (a *WailsApp) ScanAllLogs() (*core.BulkScanResponse, error) { return a.core.ScanAllLogs() }

// ValidateLogFile binds validate_log_file.
func (a *WailsApp) ValidateLogFile(logPath string) (bool, error) {
	return a.core.ValidateLogFile(logPath)
}

// ValidateCondition binds validate_condition.
func (a *WailsApp) ValidateCondition(conditionExpr string) condition.ValidationResult {
	return a.core.ValidateCondition(conditionExpr)
}

// TestRule binds test_rule.
func (a *WailsApp) TestRule(conditionExpr, logPath string, logType core.LogType) *core.TestRuleResult {
	return a.core.TestRule(conditionExpr, logPath, logType)
}

// RunQuery binds run_query.
func (a *WailsApp) RunQuery(queryText string) (*core.QueryResult, error) {
	return a.core.RunQuery(queryText)
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"logsentry/app"
	"logsentry/core"
)

// readRuleFromStdin decodes a JSON-encoded core.Rule from stdin, used by
// save-rule since a rule is a structured argument, not a path.
func readRuleFromStdin() (*core.Rule, error) {
	var r core.Rule
	if err := json.NewDecoder(os.Stdin).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decoding rule from stdin: %v", core.ErrSchema, err)
	}
	return &r, nil
}

// Run dispatches cfg.Command against a, printing its result as JSON on
// stdout. This is the CLI's sole entry point into the App surface;
// every command maps onto exactly one app.App method (spec.md §6).
func Run(a *app.App, cfg *Config) error {
	var (
		result interface{}
		err    error
	)

	switch cfg.Command {
	case "list-rules":
		result, err = a.ListRules()
	case "get-rule":
		result, err = a.GetRule(cfg.RuleID)
	case "save-rule":
		var rule *core.Rule
		rule, err = readRuleFromStdin()
		if err == nil {
			result, err = a.SaveRule(rule)
		}
	case "delete-rule":
		err = a.DeleteRule(cfg.RuleID)
	case "export-rule":
		err = a.ExportRule(cfg.RuleID, cfg.DestPath)
	case "export-all-rules":
		result, err = a.ExportAllRules(cfg.DestPath)
	case "import-rule":
		result, err = a.ImportRule(cfg.RulePath, cfg.Overwrite)
	case "import-multiple-rules":
		result, err = a.ImportMultipleRules(cfg.FilePaths, cfg.Overwrite)
	case "import-rules-zip":
		result, err = a.ImportRulesZip(cfg.ZipPath, cfg.Overwrite)
	case "list-log-files":
		result, err = a.ListLogFiles()
	case "import-log-file":
		result, err = a.ImportLogFile(cfg.SourcePath, cfg.logType())
	case "import-multiple-log-files":
		result, err = a.ImportMultipleLogFiles(cfg.SourcePaths, cfg.logType())
	case "update-log-type":
		err = a.UpdateLogType(cfg.Filename, cfg.logType())
	case "delete-log-file":
		err = a.DeleteLogFile(cfg.Filename)
	case "load-log-events":
		result, err = a.LoadLogEvents(cfg.LogPath, cfg.logType())
	case "scan-logs":
		result, err = a.ScanLogs(cfg.LogPath, cfg.logType())
	case "scan-all-logs":
		result, err = a.ScanAllLogs()
	case "validate-log-file":
		result, err = a.ValidateLogFile(cfg.LogPath)
	case "validate-condition":
		result = a.ValidateCondition(cfg.Condition)
	case "test-rule":
		result = a.TestRule(cfg.Condition, cfg.LogPath, cfg.logType())
	case "run-query":
		result, err = a.RunQuery(cfg.Query)
	default:
		return fmt.Errorf("%w: unhandled command %q", core.ErrSchema, cfg.Command)
	}

	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// Package cli implements the command-line front end: a thin flag parser
// and dispatcher over app.App's spec.md §6 command surface, for headless
// use without the Wails GUI or the local HTTP API.
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"logsentry/core"
)

// Config holds one parsed CLI invocation: a command name plus whichever
// of its arguments were supplied.
type Config struct {
	Command string

	RuleID    string
	RulePath  string
	DestPath  string
	FilePaths []string
	ZipPath   string
	Overwrite bool

	Filename  string
	LogPath   string
	LogType   string
	SourcePath string
	SourcePaths []string

	Condition string
	Query     string
}

// commands lists the CLI's supported subcommand names, mirroring
// spec.md §6's command table one-for-one.
var commands = []string{
	"list-rules", "get-rule", "save-rule", "delete-rule",
	"export-rule", "export-all-rules", "import-rule", "import-multiple-rules", "import-rules-zip",
	"list-log-files", "import-log-file", "import-multiple-log-files", "update-log-type", "delete-log-file",
	"load-log-events", "scan-logs", "scan-all-logs", "validate-log-file",
	"validate-condition", "test-rule", "run-query",
}

// ParseFlags parses os.Args[1:] as "<command> [flags]". The command name
// must be the first argument; flags follow it in any order.
func ParseFlags(args []string) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("a command is required")
	}
	cmd := args[0]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	cfg := &Config{Command: cmd}

	var filePaths, sourcePaths string
	fs.StringVar(&cfg.RuleID, "rule-id", "", "rule id")
	fs.StringVar(&cfg.RulePath, "rule-path", "", "path to a rule YAML file")
	fs.StringVar(&cfg.DestPath, "dest", "", "destination path")
	fs.StringVar(&filePaths, "file-paths", "", "comma-separated list of file paths")
	fs.StringVar(&cfg.ZipPath, "zip-path", "", "path to a rule archive (.zip)")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "overwrite an existing id on import")
	fs.StringVar(&cfg.Filename, "filename", "", "log file name, as already imported")
	fs.StringVar(&cfg.LogPath, "log-path", "", "path to a log file")
	fs.StringVar(&cfg.LogType, "log-type", "", "log format: cloudtrail or flatjson")
	fs.StringVar(&cfg.SourcePath, "source-path", "", "path to a file to import")
	fs.StringVar(&sourcePaths, "source-paths", "", "comma-separated list of files to import")
	fs.StringVar(&cfg.Condition, "condition", "", "a detection.condition expression")
	fs.StringVar(&cfg.Query, "query", "", "an ad-hoc SQL query")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if filePaths != "" {
		cfg.FilePaths = strings.Split(filePaths, ",")
	}
	if sourcePaths != "" {
		cfg.SourcePaths = strings.Split(sourcePaths, ",")
	}
	if !knownCommand(cmd) {
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
	return cfg, nil
}

func knownCommand(cmd string) bool {
	for _, c := range commands {
		if c == cmd {
			return true
		}
	}
	return false
}

// logType returns cfg.LogType as a core.LogType.
func (c *Config) logType() core.LogType {
	return core.LogType(c.LogType)
}

// PrintUsage prints the list of supported commands.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, "logsentry - log detection engine\n\n")
	fmt.Fprintf(os.Stderr, "Usage: logsentry <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s\n", c)
	}
}

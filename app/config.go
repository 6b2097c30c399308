package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"logsentry/core"
)

// Common errors.
var (
	ErrInvalidDataDir = errors.New("invalid data directory")
)

// defaultMaxRecentFiles caps the recent-log-files ring (spec.md §6's
// on-disk layout names it but leaves the number to the implementation).
const defaultMaxRecentFiles = 10

// Config holds LogSentry's persisted, process-wide settings: the data
// directory layout (spec.md §6) and the small amount of UI-owned state
// the core merely carries on the caller's behalf.
type Config struct {
	// DataDir is the single mutable global named by spec.md §9: the root
	// under which RulesDirectory/DefaultLogsDirectory are resolved.
	DataDir string `json:"-"`

	RulesDirectory       string                 `json:"rules_directory,omitempty"`
	DefaultLogsDirectory string                 `json:"default_logs_directory,omitempty"`
	RecentLogFiles       []string               `json:"recent_log_files"`
	MaxRecentFiles       int                    `json:"max_recent_files"`
	UIPreferences        map[string]interface{} `json:"ui_preferences,omitempty"`
}

// NewDefaultConfig returns a Config rooted at dataDir with rules/ and
// logs/ resolved beneath it, matching spec.md §6's on-disk layout.
func NewDefaultConfig(dataDir string) *Config {
	return &Config{
		DataDir:              dataDir,
		RulesDirectory:       filepath.Join(dataDir, "rules"),
		DefaultLogsDirectory: filepath.Join(dataDir, "logs"),
		MaxRecentFiles:       defaultMaxRecentFiles,
		UIPreferences:        map[string]interface{}{},
	}
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

// LoadConfig reads config.json from dataDir if present, overlaying it onto the
// defaults; a missing file is not an error (first run).
func LoadConfig(dataDir string) (*Config, error) {
	cfg := NewDefaultConfig(dataDir)
	data, err := os.ReadFile(cfg.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchema, err)
	}
	cfg.DataDir = dataDir
	if cfg.RulesDirectory == "" {
		cfg.RulesDirectory = filepath.Join(dataDir, "rules")
	}
	if cfg.DefaultLogsDirectory == "" {
		cfg.DefaultLogsDirectory = filepath.Join(dataDir, "logs")
	}
	if cfg.MaxRecentFiles <= 0 {
		cfg.MaxRecentFiles = defaultMaxRecentFiles
	}
	return cfg, nil
}

// Save persists the config atomically (write temp, rename), matching
// spec.md §5's requirement for the metadata sidecar.
func (c *Config) Save() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: empty data directory", ErrInvalidDataDir)
	}
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrSchema, err)
	}
	return atomicWriteFile(c.configPath(), data)
}

// pushRecentFile records path as most-recently-used, capped at
// MaxRecentFiles and deduplicated, with the newest entry first.
func (c *Config) pushRecentFile(path string) {
	filtered := c.RecentLogFiles[:0:0]
	for _, p := range c.RecentLogFiles {
		if p != path {
			filtered = append(filtered, p)
		}
	}
	c.RecentLogFiles = append([]string{path}, filtered...)
	if len(c.RecentLogFiles) > c.MaxRecentFiles {
		c.RecentLogFiles = c.RecentLogFiles[:c.MaxRecentFiles]
	}
}

func atomicWriteFile(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	return nil
}

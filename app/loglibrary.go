package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"logsentry/core"
)

// LogLibrary manages the imported log files under a data directory's
// logs/ subdirectory and their logs/metadata.json sidecar (spec.md §6's
// on-disk layout), the log-file analog of rulestore.Store.
type LogLibrary struct {
	dir string
	mu  sync.Mutex
}

// NewLogLibrary returns a LogLibrary rooted at dir.
func NewLogLibrary(dir string) *LogLibrary {
	return &LogLibrary{dir: dir}
}

func (l *LogLibrary) metadataPath() string {
	return filepath.Join(l.dir, "metadata.json")
}

func (l *LogLibrary) pathFor(filename string) string {
	return filepath.Join(l.dir, filename)
}

// readMetadata loads the filename->log_type sidecar, tolerating a
// missing file (empty library).
func (l *LogLibrary) readMetadata() (map[string]core.LogType, error) {
	data, err := os.ReadFile(l.metadataPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]core.LogType{}, nil
		}
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	meta := map[string]core.LogType{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchema, err)
	}
	return meta, nil
}

// writeMetadata rewrites the sidecar atomically (spec.md §5).
func (l *LogLibrary) writeMetadata(meta map[string]core.LogType) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrSchema, err)
	}
	return atomicWriteFile(l.metadataPath(), data)
}

// List returns every imported log file, sorted by filename.
func (l *LogLibrary) List() ([]core.LogFileInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	meta, err := l.readMetadata()
	if err != nil {
		return nil, err
	}
	var files []core.LogFileInfo
	for filename, logType := range meta {
		info := core.LogFileInfo{Filename: filename, LogType: logType}
		if fi, err := os.Stat(l.pathFor(filename)); err == nil {
			info.SizeBytes = fi.Size()
		}
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files, nil
}

// Import copies sourcePath into the library under its own base name,
// recording logType in the sidecar. A name collision is overwritten, a
// choice consistent with spec.md §6 treating filename as the library's
// only identity for a log file.
func (l *LogLibrary) Import(sourcePath string, logType core.LogType) (*core.LogFileInfo, error) {
	if !core.ValidLogType(logType) {
		return nil, fmt.Errorf("%w: unknown log type %q", core.ErrSchema, logType)
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}

	filename := filepath.Base(sourcePath)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	if err := atomicWriteFile(l.pathFor(filename), data); err != nil {
		return nil, err
	}

	meta, err := l.readMetadata()
	if err != nil {
		return nil, err
	}
	meta[filename] = logType
	if err := l.writeMetadata(meta); err != nil {
		return nil, err
	}

	return &core.LogFileInfo{Filename: filename, LogType: logType, SizeBytes: int64(len(data))}, nil
}

// UpdateLogType changes the declared format of an already-imported file.
func (l *LogLibrary) UpdateLogType(filename string, logType core.LogType) error {
	if !core.ValidLogType(logType) {
		return fmt.Errorf("%w: unknown log type %q", core.ErrSchema, logType)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	meta, err := l.readMetadata()
	if err != nil {
		return err
	}
	if _, ok := meta[filename]; !ok {
		return fmt.Errorf("%w: log file %q", core.ErrNotFound, filename)
	}
	meta[filename] = logType
	return l.writeMetadata(meta)
}

// Delete removes a log file and its sidecar entry.
func (l *LogLibrary) Delete(filename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	meta, err := l.readMetadata()
	if err != nil {
		return err
	}
	if _, ok := meta[filename]; !ok {
		return fmt.Errorf("%w: log file %q", core.ErrNotFound, filename)
	}
	delete(meta, filename)
	if err := l.writeMetadata(meta); err != nil {
		return err
	}
	if err := os.Remove(l.pathFor(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	return nil
}

// Get returns the declared log type and on-disk path for filename.
func (l *LogLibrary) Get(filename string) (core.LogType, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	meta, err := l.readMetadata()
	if err != nil {
		return "", "", err
	}
	logType, ok := meta[filename]
	if !ok {
		return "", "", fmt.Errorf("%w: log file %q", core.ErrNotFound, filename)
	}
	return logType, l.pathFor(filename), nil
}

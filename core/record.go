// Package core defines the data model shared by every LogSentry component:
// records parsed from a log file, the rules that match against them, and
// the alerts a scan produces.
package core

// Record is one event after parsing, an unordered mapping from field name
// to JSON-typed value. Records are immutable once parsed; nothing in this
// package mutates a Record after ingest produces it.
type Record map[string]interface{}

// Records is an ordered sequence of Record, preserving source-file order.
type Records []Record

// LogType names an accepted on-disk log format. The caller always
// declares the format explicitly; LogSentry never sniffs it.
type LogType string

const (
	LogTypeCloudTrail LogType = "cloudtrail"
	LogTypeFlatJSON   LogType = "flatjson"
)

// ValidLogType reports whether lt is one of the accepted formats.
func ValidLogType(lt LogType) bool {
	switch lt {
	case LogTypeCloudTrail, LogTypeFlatJSON:
		return true
	default:
		return false
	}
}

// LogFileInfo is the sidecar record for one imported log file: its
// filename and declared format. Owned by the log library (app.LogLibrary);
// app reads the declared format from it and passes it to ingest.Load.
type LogFileInfo struct {
	Filename string  `json:"filename"`
	LogType  LogType `json:"log_type"`
	SizeBytes int64  `json:"size_bytes"`
}

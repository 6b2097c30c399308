package core

// QueryResult is the result of an ad-hoc SQL query against ingested log
// records (C6). Rows preserve the column order of Columns.
type QueryResult struct {
	Columns         []string                 `json:"columns"`
	Rows            []map[string]interface{} `json:"rows"`
	RowCount        int                      `json:"row_count"`
	ExecutionTimeMs int64                    `json:"execution_time_ms"`
}

// TestRuleResult is the result of evaluating a condition against a sample
// log file without saving a rule (C7).
type TestRuleResult struct {
	SyntaxValid     bool     `json:"syntax_valid"`
	SyntaxError     string   `json:"syntax_error,omitempty"`
	MatchedCount    int      `json:"matched_count"`
	TotalCount      int      `json:"total_count"`
	MatchedEvents   Records  `json:"matched_events"`
	SampleNonMatched Records `json:"sample_non_matched"`
	ExecutionTimeMs int64    `json:"execution_time_ms"`
}

// Package query implements the Ad-hoc Query Interface (C6): arbitrary SQL
// against ingested log records, independent of the condition evaluator
// (spec.md §4.6). Backed by an in-memory github.com/mattn/go-sqlite3
// database with the json1 extension, the same driver the teacher uses for
// its on-disk event store (output/sqlite.go), repointed at a throwaway
// in-memory database built fresh per query.
package query

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"logsentry/core"
)

// Source is one named set of records to expose as a queryable table.
// LogPath identifies where it came from, for diagnostics and the
// source_file column.
type Source struct {
	Table   string
	LogPath string
	Records core.Records
}

// Engine runs ad-hoc SQL against a fresh in-memory SQLite database
// populated from the given sources. Each Source's records go into the
// table its Table field names (sources sharing a name share one table),
// with a `source_file` column and a `data` TEXT column holding the
// record's JSON encoding, so a query addresses fields with json1's
// json_extract(data, '$.field').
type Engine struct{}

// New returns a ready-to-use Engine.
func New() *Engine {
	return &Engine{}
}

// Run loads sources into a fresh in-memory database and executes sql
// against it, returning the result set as column/row pairs. Errors from
// the underlying engine are returned verbatim, wrapped in core.ErrEngine,
// matching spec.md §4.6's "errors surface the engine's diagnostic
// verbatim" requirement.
func (e *Engine) Run(sqlText string, sources []Source) (*core.QueryResult, error) {
	start := time.Now()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: opening query engine: %v", core.ErrEngine, err)
	}
	defer db.Close()

	for _, src := range sources {
		if err := loadSource(db, src); err != nil {
			return nil, fmt.Errorf("%w: loading %s: %v", core.ErrEngine, src.LogPath, err)
		}
	}

	rows, err := db.Query(sqlText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEngine, err)
	}
	defer rows.Close()

	result, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEngine, err)
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// loadSource creates src.Table (if not already present) and inserts one
// row per record, with the record's full JSON encoding in `data` plus its
// originating source_file, so a query can filter across multiple loaded
// log files at once.
func loadSource(db *sql.DB, src Source) error {
	if _, err := db.Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (source_file TEXT, data TEXT)`, src.Table,
	)); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %q (source_file, data) VALUES (?, ?)`, src.Table))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range src.Records {
		data, err := json.Marshal(rec)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.Exec(src.LogPath, string(data)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// collect drains rows into a core.QueryResult, scanning each column as an
// interface{} so both TEXT and numeric/json1-extracted values survive
// without a fixed schema.
func collect(rows *sql.Rows) (*core.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &core.QueryResult{Columns: cols}
	for rows.Next() {
		scanTargets := make([]interface{}, len(cols))
		scanPtrs := make([]interface{}, len(cols))
		for i := range scanTargets {
			scanPtrs[i] = &scanTargets[i]
		}
		if err := rows.Scan(scanPtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			row[col] = normalize(scanTargets[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// normalize converts the driver's raw scan value into a JSON-friendly
// one: go-sqlite3 returns []byte for TEXT columns, which json.Marshal
// would otherwise base64-encode.
func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

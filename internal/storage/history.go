// Package storage persists validation run history in a local SQLite
// database, so past verdicts stay queryable after reports are overwritten.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// RunRecord is one stored validation run.
type RunRecord struct {
	ID            string    `json:"id"`
	CodebasePath  string    `json:"codebase_path"`
	OverallStatus string    `json:"overall_status"`
	IsValid       bool      `json:"is_valid"`
	ErrorCount    int       `json:"error_count"`
	WarningCount  int       `json:"warning_count"`
	ExecutionTime float64   `json:"execution_time"`
	Timestamp     time.Time `json:"timestamp"`
	StepSummary   string    `json:"step_summary"`
}

// History is the SQLite-backed run log.
type History struct {
	db *sql.DB
}

// OpenHistory opens (or creates) the history database under basePath.
// The database lives in a dotted directory so codebase walks skip it.
func OpenHistory(basePath string) (*History, error) {
	dbPath := filepath.Join(basePath, ".codegen", "cache", "history.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Single connection avoids writer lock contention.
	db.SetMaxOpenConns(1)

	h := &History{db: db}
	if err := h.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *History) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		codebase_path TEXT NOT NULL,
		overall_status TEXT NOT NULL,
		is_valid INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL,
		execution_time REAL NOT NULL,
		timestamp INTEGER NOT NULL,
		step_summary TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp DESC);
	`
	_, err := h.db.Exec(schema)
	return err
}

// Record stores the outcome of one validation run.
func (h *History) Record(report *types.ValidationReport) error {
	summary := make(map[string]string, len(report.StepResults))
	for _, step := range report.StepResults {
		summary[step.StepName] = string(step.Status)
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	_, err = h.db.Exec(`
		INSERT OR REPLACE INTO runs
		(id, codebase_path, overall_status, is_valid, error_count,
		 warning_count, execution_time, timestamp, step_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.CodebasePath,
		string(report.OverallStatus),
		boolToInt(report.IsValid),
		report.TotalErrorCount(),
		report.TotalWarningCount(),
		report.TotalExecutionTime,
		report.Timestamp.Unix(),
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Recent returns the newest n runs, newest first.
func (h *History) Recent(n int) ([]RunRecord, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := h.db.Query(`
		SELECT id, codebase_path, overall_status, is_valid, error_count,
		       warning_count, execution_time, timestamp, step_summary
		FROM runs ORDER BY timestamp DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var isValid int
		var ts int64
		if err := rows.Scan(&rec.ID, &rec.CodebasePath, &rec.OverallStatus,
			&isValid, &rec.ErrorCount, &rec.WarningCount,
			&rec.ExecutionTime, &ts, &rec.StepSummary); err != nil {
			return nil, err
		}
		rec.IsValid = isValid != 0
		rec.Timestamp = time.Unix(ts, 0).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the database handle.
func (h *History) Close() error {
	return h.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

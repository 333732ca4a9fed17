package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smithers-run/smithers/internal/models"
)

// CreateExecution inserts a new executions row with status=running. Callers
// are responsible for the "exactly one non-terminal Execution" invariant
// — the engine checks OpenExecution before calling this.
func CreateExecution(db *sql.DB, name, sourceLabel string) (string, error) {
	id := generatePrefixedID("exec")
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO executions (id, name, source_label, status, started_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, id, name, sourceLabel, models.ExecutionRunning)
	if err != nil {
		return "", fmt.Errorf("create execution: %w", err)
	}
	return id, nil
}

// OpenExecution returns the id of the current non-terminal execution, if any.
func OpenExecution(db *sql.DB) (id string, ok bool, err error) {
	err = db.QueryRowContext(context.Background(), `
		SELECT id FROM executions WHERE status = ? ORDER BY started_at DESC LIMIT 1
	`, models.ExecutionRunning).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("open execution: %w", err)
	}
	return id, true, nil
}

// EndExecution records the terminal outcome of execId.
func EndExecution(db *sql.DB, execID, status, endSummary, endReason string, exitCode int) error {
	_, err := db.ExecContext(context.Background(), `
		UPDATE executions
		SET status = ?, end_summary = ?, end_reason = ?, exit_code = ?
		WHERE id = ?
	`, status, endSummary, endReason, exitCode, execID)
	if err != nil {
		return fmt.Errorf("end execution %s: %w", execID, err)
	}
	return nil
}

// GetExecution loads a single executions row.
func GetExecution(db *sql.DB, execID string) (models.Execution, error) {
	var e models.Execution
	var exitCode sql.NullInt64
	var endSummary, endReason sql.NullString
	err := db.QueryRowContext(context.Background(), `
		SELECT id, name, source_label, status, exit_code, end_summary, end_reason, started_at
		FROM executions WHERE id = ?
	`, execID).Scan(&e.ID, &e.Name, &e.SourceLabel, &e.Status, &exitCode, &endSummary, &endReason, &e.StartedAt)
	if err != nil {
		return models.Execution{}, fmt.Errorf("get execution %s: %w", execID, err)
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		e.ExitCode = &v
	}
	e.EndSummary = endSummary.String
	e.EndReason = endReason.String
	return e, nil
}

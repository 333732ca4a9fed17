package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smithers-run/smithers/internal/models"
)

// StartTask registers work-in-progress. scopeID may be "" for unscoped tasks.
func StartTask(db *sql.DB, execID string, iteration int, scopeID, componentType, componentName string) (string, error) {
	id := generatePrefixedID("task")
	var scope sql.NullString
	if scopeID != "" {
		scope = sql.NullString{String: scopeID, Valid: true}
	}
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO tasks (id, execution_id, iteration, scope_id, component_type, component_name, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, id, execID, iteration, scope, componentType, componentName, models.TaskRunning)
	if err != nil {
		return "", fmt.Errorf("start task %s/%s: %w", componentType, componentName, err)
	}
	return id, nil
}

// CompleteTask marks a task terminal-successful. Terminal transitions are
// idempotent: completing an already-terminal task is a no-op.
func CompleteTask(db *sql.DB, taskID string) error {
	return transitionTask(db, taskID, models.TaskCompleted)
}

// FailTask marks a task terminal-failed.
func FailTask(db *sql.DB, taskID string) error {
	return transitionTask(db, taskID, models.TaskFailed)
}

func transitionTask(db *sql.DB, taskID, status string) error {
	_, err := db.ExecContext(context.Background(), `
		UPDATE tasks SET status = ?, ended_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, status, taskID, models.TaskRunning)
	if err != nil {
		return fmt.Errorf("transition task %s to %s: %w", taskID, status, err)
	}
	return nil
}

// RunningByIteration counts in-flight, non-scheduling-artifact tasks for iteration.
func RunningByIteration(db *sql.DB, iteration int) (int, error) {
	return countTasks(db, `SELECT COUNT(*) FROM tasks WHERE iteration = ? AND component_type NOT IN ('step','phase') AND status = ?`, iteration, models.TaskRunning)
}

// TotalByIteration counts all non-scheduling-artifact tasks ever started for iteration.
func TotalByIteration(db *sql.DB, iteration int) (int, error) {
	return countTasksAny(db, `SELECT COUNT(*) FROM tasks WHERE iteration = ? AND component_type NOT IN ('step','phase')`, iteration)
}

// RunningByScope counts in-flight, non-scheduling-artifact tasks scoped to scopeID within iteration.
func RunningByScope(db *sql.DB, scopeID string, iteration int) (int, error) {
	var n int
	err := db.QueryRowContext(context.Background(), `
		SELECT COUNT(*) FROM tasks
		WHERE scope_id = ? AND iteration = ? AND component_type NOT IN ('step','phase') AND status = ?
	`, scopeID, iteration, models.TaskRunning).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("running by scope %s: %w", scopeID, err)
	}
	return n, nil
}

// TotalByScope counts all non-scheduling-artifact tasks scoped to scopeID within iteration.
func TotalByScope(db *sql.DB, scopeID string, iteration int) (int, error) {
	var n int
	err := db.QueryRowContext(context.Background(), `
		SELECT COUNT(*) FROM tasks
		WHERE scope_id = ? AND iteration = ? AND component_type NOT IN ('step','phase')
	`, scopeID, iteration).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("total by scope %s: %w", scopeID, err)
	}
	return n, nil
}

func countTasks(db *sql.DB, query string, iteration int, status string) (int, error) {
	var n int
	if err := db.QueryRowContext(context.Background(), query, iteration, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func countTasksAny(db *sql.DB, query string, iteration int) (int, error) {
	var n int
	if err := db.QueryRowContext(context.Background(), query, iteration).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

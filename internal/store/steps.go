package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smithers-run/smithers/internal/models"
)

// StartStep logs a steps row when a Step activates.
func StartStep(db *sql.DB, name string) (string, error) {
	id := generatePrefixedID("step")
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO steps (id, name, status, started_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`, id, name, models.StepActive)
	if err != nil {
		return "", fmt.Errorf("start step %s: %w", name, err)
	}
	return id, nil
}

// CompleteStep finalizes a steps row, attaching any snapshot/commit ids captured along the way.
func CompleteStep(db *sql.DB, stepID, snapshotBefore, snapshotAfter, commitCreated string) error {
	_, err := db.ExecContext(context.Background(), `
		UPDATE steps
		SET status = ?, completed_at = CURRENT_TIMESTAMP,
		    snapshot_before = ?, snapshot_after = ?, commit_created = ?
		WHERE id = ?
	`, models.StepCompleted, nullIfEmpty(snapshotBefore), nullIfEmpty(snapshotAfter), nullIfEmpty(commitCreated), stepID)
	if err != nil {
		return fmt.Errorf("complete step %s: %w", stepID, err)
	}
	return nil
}

// FailStep finalizes a steps row as failed, e.g. on a pre-step snapshot error.
func FailStep(db *sql.DB, stepID string) error {
	_, err := db.ExecContext(context.Background(), `
		UPDATE steps SET status = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?
	`, models.StepFailed, stepID)
	if err != nil {
		return fmt.Errorf("fail step %s: %w", stepID, err)
	}
	return nil
}

// StepIndexKey returns the reserved stepIndex_<phase> key for a sequential StepRegistry.
func StepIndexKey(phase string) string {
	return "stepIndex_" + phase
}

// CurrentStepIndex reads the sequential-mode step cursor, defaulting to 0.
func CurrentStepIndex(db *sql.DB, phase string) (int, error) {
	value, ok, err := GetState(db, StepIndexKey(phase))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return parseIntState(value)
}

// AdvanceStep increments the sequential-mode cursor, capped at totalSteps.
func AdvanceStep(db *sql.DB, phase string, totalSteps int) (int, error) {
	current, err := CurrentStepIndex(db, phase)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if next > totalSteps {
		next = totalSteps
	}
	if err := SetState(db, StepIndexKey(phase), formatIntState(next), "advanceStep"); err != nil {
		return 0, err
	}
	return next, nil
}

// ParallelMarkerKey returns the reserved stepComplete:<registry>:<i> key.
func ParallelMarkerKey(registryID string, index int) string {
	return fmt.Sprintf("stepComplete:%s:%d", registryID, index)
}

// MarkParallelStepComplete writes the parallel-mode completion marker for step index.
func MarkParallelStepComplete(db *sql.DB, registryID string, index int) error {
	return SetState(db, ParallelMarkerKey(registryID, index), "1", "parallel step complete")
}

// IsParallelStepComplete checks whether the parallel-mode completion marker is set.
func IsParallelStepComplete(db *sql.DB, registryID string, index int) (bool, error) {
	value, ok, err := GetState(db, ParallelMarkerKey(registryID, index))
	if err != nil {
		return false, err
	}
	return ok && value == "1", nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smithers-run/smithers/internal/models"
)

// StartPhase logs a phases row when a Phase transitions to active.
func StartPhase(db *sql.DB, name string, iteration int) (string, error) {
	id := generatePrefixedID("phase")
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO phases (id, name, iteration, status, started_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, id, name, iteration, models.PhaseActive)
	if err != nil {
		return "", fmt.Errorf("start phase %s: %w", name, err)
	}
	return id, nil
}

// CompletePhase marks a phases row completed when the Phase transitions away from active.
func CompletePhase(db *sql.DB, phaseID string) error {
	_, err := db.ExecContext(context.Background(), `
		UPDATE phases SET status = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?
	`, models.PhaseCompleted, phaseID)
	if err != nil {
		return fmt.Errorf("complete phase %s: %w", phaseID, err)
	}
	return nil
}

// SkipPhase logs a phases row with status=skipped (skipIf() returned true).
func SkipPhase(db *sql.DB, name string, iteration int) (string, error) {
	id := generatePrefixedID("phase")
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO phases (id, name, iteration, status, started_at, completed_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, id, name, iteration, models.PhaseSkipped)
	if err != nil {
		return "", fmt.Errorf("skip phase %s: %w", name, err)
	}
	return id, nil
}

// ErrorPhase logs that skipIf() threw; the Phase does not advance.
func ErrorPhase(db *sql.DB, name string, iteration int) (string, error) {
	id := generatePrefixedID("phase")
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO phases (id, name, iteration, status, started_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, id, name, iteration, models.PhaseError)
	if err != nil {
		return "", fmt.Errorf("error phase %s: %w", name, err)
	}
	return id, nil
}

// CurrentPhaseIndex reads the currentPhaseIndex cursor, defaulting to 0.
//
// Reserved key "currentPhaseIndex" is used verbatim, so only one loop's PhaseRegistry is
// active in a given process at a time.
func CurrentPhaseIndex(db *sql.DB) (int, error) {
	value, ok, err := GetState(db, models.StateKeyCurrentPhaseIndex)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return parseIntState(value)
}

// AdvancePhase sets currentPhaseIndex = min(current+1, totalPhases).
func AdvancePhase(db *sql.DB, totalPhases int) (int, error) {
	current, err := CurrentPhaseIndex(db)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if next > totalPhases {
		next = totalPhases
	}
	if err := SetState(db, models.StateKeyCurrentPhaseIndex, formatIntState(next), "advancePhase"); err != nil {
		return 0, err
	}
	return next, nil
}

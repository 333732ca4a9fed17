package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smithers-run/smithers/internal/models"
)

// HumanContentHashID derives the stable `human:content:<hash>` identity for a
// Human gate with no explicit id, hashing message+serialized children with
// FNV-1a so the same content always resumes the same row.
func HumanContentHashID(message, serializedChildren string) string {
	return "human:content:" + ContentHash(message, serializedChildren)
}

// HumanStateKey returns the reserved state key a Human gate's interaction id is stored under.
func HumanStateKey(id string) string {
	return "human:" + id
}

// CreateHumanInteraction inserts a pending human_interactions row.
func CreateHumanInteraction(db *sql.DB, prompt string) (string, error) {
	id := generatePrefixedID("human")
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO human_interactions (id, type, prompt, status, created_at)
		VALUES (?, 'confirmation', ?, ?, CURRENT_TIMESTAMP)
	`, id, prompt, models.HumanPending)
	if err != nil {
		return "", fmt.Errorf("create human interaction: %w", err)
	}
	return id, nil
}

// GetHumanInteraction loads a human_interactions row by id.
func GetHumanInteraction(db *sql.DB, id string) (models.HumanInteraction, error) {
	var hi models.HumanInteraction
	var response sql.NullString
	var resolvedAt sql.NullTime
	err := db.QueryRowContext(context.Background(), `
		SELECT id, type, prompt, status, created_at, resolved_at, response
		FROM human_interactions WHERE id = ?
	`, id).Scan(&hi.ID, &hi.Type, &hi.Prompt, &hi.Status, &hi.CreatedAt, &resolvedAt, &response)
	if err != nil {
		return models.HumanInteraction{}, fmt.Errorf("get human interaction %s: %w", id, err)
	}
	hi.Response = response.String
	if resolvedAt.Valid {
		hi.ResolvedAt = &resolvedAt.Time
	}
	return hi, nil
}

// ResolveHumanInteraction flips a pending row to approved/rejected/cancelled,
// recording the response payload. Resolving an already-resolved row is a no-op.
func ResolveHumanInteraction(db *sql.DB, id, status, response string) error {
	_, err := db.ExecContext(context.Background(), `
		UPDATE human_interactions
		SET status = ?, response = ?, resolved_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, status, response, id, models.HumanPending)
	if err != nil {
		return fmt.Errorf("resolve human interaction %s: %w", id, err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smithers-run/smithers/internal/models"
)

// CreateTicket inserts a row in the optional ticket-board table.
// This core ships the table only; no scheduling logic reads it.
func CreateTicket(db *sql.DB, title, description string, priority int) (string, error) {
	id := generatePrefixedID("tkt")
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO tickets (id, title, description, priority, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, id, title, description, priority, models.TicketTodo)
	if err != nil {
		return "", fmt.Errorf("create ticket: %w", err)
	}
	return id, nil
}

// UpdateTicketStatus transitions a ticket's status.
func UpdateTicketStatus(db *sql.DB, id, status string) error {
	_, err := db.ExecContext(context.Background(), `
		UPDATE tickets SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	if err != nil {
		return fmt.Errorf("update ticket %s: %w", id, err)
	}
	return nil
}

// GetTicket loads a ticket row by id.
func GetTicket(db *sql.DB, id string) (models.Ticket, error) {
	var t models.Ticket
	var requiresE2E int
	err := db.QueryRowContext(context.Background(), `
		SELECT id, title, description, acceptance, priority, status, dependencies, progress_notes, requires_e2e, created_at, updated_at
		FROM tickets WHERE id = ?
	`, id).Scan(&t.ID, &t.Title, &t.Description, &t.Acceptance, &t.Priority, &t.Status, &t.Dependencies, &t.ProgressNotes, &requiresE2E, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("get ticket %s: %w", id, err)
	}
	t.RequiresE2E = requiresE2E != 0
	return t, nil
}

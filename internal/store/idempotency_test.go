package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdempotency_BeginCompleteReplay(t *testing.T) {
	db, err := InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	owner := "scheduler"
	requestID := "req_1"
	command := "unit.test"
	result := `{"ok":true}`

	tx, err := db.Begin()
	require.NoError(t, err)
	_, done, err := beginIdempotencyTx(tx, owner, requestID, command)
	require.NoError(t, err)
	require.False(t, done)
	require.NoError(t, completeIdempotencyTx(tx, owner, requestID, result))
	require.NoError(t, tx.Commit())

	tx2, err := db.Begin()
	require.NoError(t, err)
	existing, done, err := beginIdempotencyTx(tx2, owner, requestID, command)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, result, existing)
	require.NoError(t, tx2.Rollback())
}

func TestIdempotency_InProgressIsRetryable(t *testing.T) {
	db, err := InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	owner := "scheduler"
	requestID := "req_inflight"
	command := "unit.inflight"

	// Simulate a broken writer that committed an empty result_json row.
	_, err = db.Exec(`INSERT INTO idempotency (owner, request_id, command, result_json) VALUES (?, ?, ?, '')`, owner, requestID, command)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	_, done, err := beginIdempotencyTx(tx, owner, requestID, command)
	require.Error(t, err)
	require.False(t, done)
	require.ErrorIs(t, err, ErrIdempotencyInProgress)
	require.NoError(t, tx.Rollback())

	require.True(t, isRetryableError(err))
}

func TestRunIdempotent_ReplaySkipsOperation(t *testing.T) {
	db, err := InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	type result struct {
		TicketID string `json:"ticket_id"`
	}

	owner := "scheduler"
	requestID := "req_run_idem"
	command := "unit.run_idempotent"

	first, err := RunIdempotent(db, owner, requestID, command, func(tx *sql.Tx) (result, error) {
		ticketID := generatePrefixedID("tkt")
		_, execErr := tx.Exec(`
			INSERT INTO tickets (id, title, status, created_at, updated_at)
			VALUES (?, ?, 'open', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		`, ticketID, "ticket-a")
		if execErr != nil {
			return result{}, execErr
		}
		return result{TicketID: ticketID}, nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.TicketID)

	second, err := RunIdempotent(db, owner, requestID, command, func(tx *sql.Tx) (result, error) {
		t.Fatalf("operation should not run on replay")
		return result{}, nil
	})
	require.NoError(t, err)
	require.Equal(t, first.TicketID, second.TicketID)

	var ticketCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM tickets`).Scan(&ticketCount))
	require.Equal(t, 1, ticketCount)
}

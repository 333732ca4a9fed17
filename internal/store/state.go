package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetState returns the current JSON value for key, or ("", false, nil) if unset.
func GetState(db *sql.DB, key string) (value string, ok bool, err error) {
	err = db.QueryRowContext(context.Background(), `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %q: %w", key, err)
	}
	return value, true, nil
}

// SetState upserts key=value, appending a state_history row recording the
// transition. Setting a key to its current value still appends history but
// leaves get(key) unchanged in effect.
func SetState(db *sql.DB, key, value, reason string) error {
	return Transact(db, func(tx *sql.Tx) error {
		return setStateTx(tx, key, value, reason)
	})
}

func setStateTx(tx *sql.Tx, key, value, reason string) error {
	var oldValue sql.NullString
	err := tx.QueryRowContext(context.Background(), `SELECT value FROM state WHERE key = ?`, key).Scan(&oldValue)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read previous state %q: %w", key, err)
	}

	_, err = tx.ExecContext(context.Background(), `
		INSERT INTO state (key, value, version, reason, updated_at)
		VALUES (?, ?, 1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			version = state.version + 1,
			reason = excluded.reason,
			updated_at = CURRENT_TIMESTAMP
	`, key, value, reason)
	if err != nil {
		return fmt.Errorf("upsert state %q: %w", key, err)
	}

	_, err = tx.ExecContext(context.Background(), `
		INSERT INTO state_history (key, old_value, new_value, reason, ts)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, key, oldValue.String, value, reason)
	if err != nil {
		return fmt.Errorf("append state history %q: %w", key, err)
	}
	return nil
}

// CompareAndSetState applies value only if the stored version still equals
// expectedVersion (0 means "key must not yet exist"), detecting concurrent
// writers without a distributed lock. The built-in cursors
// (currentPhaseIndex, stepIndex_*, while.*.iteration) are written with
// SetState and do not go through it.
func CompareAndSetState(db *sql.DB, key, value, reason string, expectedVersion int) error {
	return Transact(db, func(tx *sql.Tx) error {
		var currentVersion int
		err := tx.QueryRowContext(context.Background(), `SELECT version FROM state WHERE key = ?`, key).Scan(&currentVersion)
		if errors.Is(err, sql.ErrNoRows) {
			if expectedVersion != 0 {
				return &VersionConflictError{Entity: "state", ID: key, Version: expectedVersion}
			}
			return setStateTx(tx, key, value, reason)
		}
		if err != nil {
			return fmt.Errorf("read state version %q: %w", key, err)
		}
		if currentVersion != expectedVersion {
			return &VersionConflictError{Entity: "state", ID: key, Version: expectedVersion}
		}
		return setStateTx(tx, key, value, reason)
	})
}

// StateHistoryRow mirrors one row of the append-only change log.
type StateHistoryRow struct {
	OldValue string
	NewValue string
	Reason   string
	Ts       string
}

// HistoryState returns up to limit most-recent changes to key, newest first.
func HistoryState(db *sql.DB, key string, limit int) ([]StateHistoryRow, error) {
	rows, err := db.QueryContext(context.Background(), `
		SELECT old_value, new_value, reason, ts
		FROM state_history
		WHERE key = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("history state %q: %w", key, err)
	}
	defer func() { _ = rows.Close() }()

	var out []StateHistoryRow
	for rows.Next() {
		var r StateHistoryRow
		if err := rows.Scan(&r.OldValue, &r.NewValue, &r.Reason, &r.Ts); err != nil {
			return nil, fmt.Errorf("scan state history %q: %w", key, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

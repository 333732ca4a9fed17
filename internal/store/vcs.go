package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordVCSEvent logs a row produced by a Snapshot or Commit leaf.
func RecordVCSEvent(db *sql.DB, vcsType, commitHash, changeID, message string) (int64, error) {
	res, err := db.ExecContext(context.Background(), `
		INSERT INTO vcs_events (vcs_type, commit_hash, change_id, message, ts)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, vcsType, nullIfEmpty(commitHash), nullIfEmpty(changeID), message)
	if err != nil {
		return 0, fmt.Errorf("record vcs event: %w", err)
	}
	return res.LastInsertId()
}

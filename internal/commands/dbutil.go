package commands

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/smithers-run/smithers/internal/reactive"
	"github.com/smithers-run/smithers/internal/store"
)

// DB is an alias so command code doesn't need to import database/sql.
type DB = sql.DB

// printedError marks an error whose details have already been written to
// the JSON response; Execute must not log it again.
type printedError struct {
	err error
}

func (e printedError) Error() string {
	return "error already printed"
}

func openDB() (*DB, func(), error) {
	db, err := store.InitDB()
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = store.CloseDB(db) }, nil
}

// withDB opens the database, runs fn, and always closes it, wrapping any
// error in a printed, already-logged form.
func withDB(fn func(db *DB) error) error {
	db, closeDB, err := openDB()
	if err != nil {
		return cmdErr(err)
	}
	defer closeDB()

	if err := fn(db); err != nil {
		return cmdErr(err)
	}
	return nil
}

// withStore is withDB's Reactive Layer counterpart, used by commands that
// drive an Engine rather than call internal/store directly.
func withStore(fn func(s *reactive.Store) error) error {
	return withDB(func(db *DB) error {
		return fn(reactive.NewStore(db))
	})
}

func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	attrs := []any{"error", err.Error()}
	type slogAttrError interface {
		SlogAttrs() []any
	}
	var detailed slogAttrError
	if errors.As(err, &detailed) {
		attrs = append(attrs, detailed.SlogAttrs()...)
	}
	slog.Error("command error", attrs...)
	return printedError{err: err}
}

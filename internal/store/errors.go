package store

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/smithers-run/smithers/internal/models"
)

// RecoverableError is an alias for models.RecoverableError, retained so
// callers can reference store.RecoverableError without importing models
// directly.
type RecoverableError = models.RecoverableError

// ErrVersionConflict is the sentinel matched by VersionConflictError.Is.
var ErrVersionConflict = errors.New("version conflict: record was modified by another process")

// ErrClosedStore is the sentinel matched by ClosedStoreError.Is.
var ErrClosedStore = errors.New("store is closed")

// ErrConstraintViolation is the sentinel matched by ConstraintViolationError.Is.
var ErrConstraintViolation = errors.New("constraint violation")

// ErrAuthor is the sentinel matched by AuthorError.Is.
var ErrAuthor = errors.New("author error")

// VersionConflictError signals optimistic-concurrency failure on a
// task/phase/step cursor or a state key's version column.
type VersionConflictError struct {
	Entity  string
	ID      string
	Version int
}

func (e *VersionConflictError) Error() string {
	return "version conflict: record was modified by another process"
}
func (e *VersionConflictError) ErrorCode() string { return "VERSION_CONFLICT" }
func (e *VersionConflictError) Context() map[string]string {
	return map[string]string{
		"entity":  e.Entity,
		"id":      e.ID,
		"version": strconv.Itoa(e.Version),
	}
}
func (e *VersionConflictError) SuggestedAction() string {
	return "reload the current value and retry the mutation with a new request id"
}
func (e *VersionConflictError) Is(target error) bool { return target == ErrVersionConflict }

// ClosedStoreError is returned by any store operation attempted after the
// underlying *sql.DB has been closed (engine shutdown, test teardown).
type ClosedStoreError struct {
	Operation string
}

func (e *ClosedStoreError) Error() string { return "store is closed" }
func (e *ClosedStoreError) ErrorCode() string { return "STORE_CLOSED" }
func (e *ClosedStoreError) Context() map[string]string {
	return map[string]string{"operation": e.Operation}
}
func (e *ClosedStoreError) SuggestedAction() string {
	return "do not issue further store operations after Close"
}
func (e *ClosedStoreError) Is(target error) bool { return target == ErrClosedStore }

// ConstraintViolationError wraps a SQLite constraint failure (UNIQUE,
// FOREIGN KEY, CHECK) that is not an idempotency or version conflict.
type ConstraintViolationError struct {
	Table   string
	Detail  string
	Wrapped error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation on %s: %s", e.Table, e.Detail)
}
func (e *ConstraintViolationError) ErrorCode() string { return "CONSTRAINT_VIOLATION" }
func (e *ConstraintViolationError) Context() map[string]string {
	return map[string]string{"table": e.Table, "detail": e.Detail}
}
func (e *ConstraintViolationError) SuggestedAction() string {
	return "check for a duplicate key or a dangling foreign reference before retrying"
}
func (e *ConstraintViolationError) Is(target error) bool { return target == ErrConstraintViolation }
func (e *ConstraintViolationError) Unwrap() error         { return e.Wrapped }

// AuthorError signals render-time misuse of an element: a missing required
// prop, a Phase mounted outside a loop, a Human with no id/message/children.
// These are caller bugs, not runtime/store failures, and are never retried.
type AuthorError struct {
	Element string
	Reason  string
}

func (e *AuthorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Element, e.Reason)
}
func (e *AuthorError) ErrorCode() string { return "AUTHOR_ERROR" }
func (e *AuthorError) Context() map[string]string {
	return map[string]string{"element": e.Element, "reason": e.Reason}
}
func (e *AuthorError) SuggestedAction() string {
	return "fix the workflow tree definition; this is not a transient failure"
}
func (e *AuthorError) Is(target error) bool { return target == ErrAuthor }

// IdempotencyInProgressError is returned when a request is still being
// processed by another owner. RetryWithBackoff treats this as transient.
type IdempotencyInProgressError struct {
	Owner     string
	RequestID string
	Command   string
}

func (e *IdempotencyInProgressError) Error() string { return "idempotency in progress" }
func (e *IdempotencyInProgressError) ErrorCode() string { return "IDEMPOTENCY_IN_PROGRESS" }
func (e *IdempotencyInProgressError) Context() map[string]string {
	return map[string]string{
		"owner":      e.Owner,
		"request_id": e.RequestID,
		"command":    e.Command,
	}
}
func (e *IdempotencyInProgressError) SuggestedAction() string {
	return "wait and retry, or use a new request id"
}
func (e *IdempotencyInProgressError) Is(target error) bool {
	return target == ErrIdempotencyInProgress
}

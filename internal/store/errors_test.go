package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecoverableError_Is verifies each struct type matches its own sentinel
// via errors.Is and does not cross-match other sentinels.
func TestRecoverableError_Is(t *testing.T) {
	version := &VersionConflictError{Entity: "task", ID: "t1", Version: 3}
	closed := &ClosedStoreError{Operation: "tasks.Start"}
	constraint := &ConstraintViolationError{Table: "tasks", Detail: "unique"}
	author := &AuthorError{Element: "Human", Reason: "missing id"}
	inProgress := &IdempotencyInProgressError{Owner: "scheduler", RequestID: "req-1", Command: "task.start"}

	assert.ErrorIs(t, version, ErrVersionConflict)
	assert.ErrorIs(t, closed, ErrClosedStore)
	assert.ErrorIs(t, constraint, ErrConstraintViolation)
	assert.ErrorIs(t, author, ErrAuthor)
	assert.ErrorIs(t, inProgress, ErrIdempotencyInProgress)

	assert.False(t, errors.Is(version, ErrClosedStore), "VersionConflictError should not match ErrClosedStore")
	assert.False(t, errors.Is(version, ErrConstraintViolation), "VersionConflictError should not match ErrConstraintViolation")
	assert.False(t, errors.Is(version, ErrAuthor), "VersionConflictError should not match ErrAuthor")
	assert.False(t, errors.Is(version, ErrIdempotencyInProgress), "VersionConflictError should not match ErrIdempotencyInProgress")

	assert.False(t, errors.Is(closed, ErrVersionConflict), "ClosedStoreError should not match ErrVersionConflict")
	assert.False(t, errors.Is(constraint, ErrAuthor), "ConstraintViolationError should not match ErrAuthor")
	assert.False(t, errors.Is(author, ErrConstraintViolation), "AuthorError should not match ErrConstraintViolation")
}

// TestRecoverableError_ErrorCode verifies each struct returns the correct code string.
func TestRecoverableError_ErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      RecoverableError
		wantCode string
	}{
		{
			name:     "VersionConflictError",
			err:      &VersionConflictError{Entity: "task", ID: "t1", Version: 3},
			wantCode: "VERSION_CONFLICT",
		},
		{
			name:     "ClosedStoreError",
			err:      &ClosedStoreError{Operation: "tasks.Start"},
			wantCode: "STORE_CLOSED",
		},
		{
			name:     "ConstraintViolationError",
			err:      &ConstraintViolationError{Table: "tasks", Detail: "unique"},
			wantCode: "CONSTRAINT_VIOLATION",
		},
		{
			name:     "AuthorError",
			err:      &AuthorError{Element: "Human", Reason: "missing id"},
			wantCode: "AUTHOR_ERROR",
		},
		{
			name:     "IdempotencyInProgressError",
			err:      &IdempotencyInProgressError{Owner: "scheduler", RequestID: "req-1", Command: "task.start"},
			wantCode: "IDEMPOTENCY_IN_PROGRESS",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantCode, tc.err.ErrorCode())
		})
	}
}

// TestRecoverableError_Context verifies each struct returns a context map with expected keys and values.
func TestRecoverableError_Context(t *testing.T) {
	t.Run("VersionConflictError", func(t *testing.T) {
		e := &VersionConflictError{Entity: "task", ID: "t3", Version: 7}
		ctx := e.Context()
		require.Contains(t, ctx, "entity")
		require.Contains(t, ctx, "id")
		require.Contains(t, ctx, "version")
		assert.Equal(t, "task", ctx["entity"])
		assert.Equal(t, "t3", ctx["id"])
		assert.Equal(t, "7", ctx["version"])
	})

	t.Run("ConstraintViolationError", func(t *testing.T) {
		e := &ConstraintViolationError{Table: "tasks", Detail: "unique(id)"}
		ctx := e.Context()
		require.Contains(t, ctx, "table")
		require.Contains(t, ctx, "detail")
		assert.Equal(t, "tasks", ctx["table"])
	})

	t.Run("AuthorError", func(t *testing.T) {
		e := &AuthorError{Element: "Phase", Reason: "mounted outside a loop"}
		ctx := e.Context()
		require.Contains(t, ctx, "element")
		require.Contains(t, ctx, "reason")
		assert.Equal(t, "Phase", ctx["element"])
	})

	t.Run("IdempotencyInProgressError", func(t *testing.T) {
		e := &IdempotencyInProgressError{Owner: "scheduler", RequestID: "req-42", Command: "task.start"}
		ctx := e.Context()
		require.Contains(t, ctx, "owner")
		require.Contains(t, ctx, "request_id")
		require.Contains(t, ctx, "command")
		assert.Equal(t, "scheduler", ctx["owner"])
		assert.Equal(t, "req-42", ctx["request_id"])
		assert.Equal(t, "task.start", ctx["command"])
	})
}

// TestRecoverableError_SuggestedAction verifies each struct returns a non-empty suggested action.
func TestRecoverableError_SuggestedAction(t *testing.T) {
	tests := []struct {
		name string
		err  RecoverableError
	}{
		{name: "VersionConflictError", err: &VersionConflictError{Entity: "task", ID: "t1", Version: 3}},
		{name: "ClosedStoreError", err: &ClosedStoreError{Operation: "tasks.Start"}},
		{name: "ConstraintViolationError", err: &ConstraintViolationError{Table: "tasks", Detail: "unique"}},
		{name: "AuthorError", err: &AuthorError{Element: "Human", Reason: "missing id"}},
		{name: "IdempotencyInProgressError", err: &IdempotencyInProgressError{Owner: "scheduler", RequestID: "req-1", Command: "task.start"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotEmpty(t, tc.err.SuggestedAction())
		})
	}
}

// TestRecoverableError_ErrorMessage verifies each struct's Error() matches its sentinel's message.
func TestRecoverableError_ErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      RecoverableError
		sentinel error
	}{
		{
			name:     "VersionConflictError",
			err:      &VersionConflictError{Entity: "task", ID: "t1", Version: 3},
			sentinel: ErrVersionConflict,
		},
		{
			name:     "ClosedStoreError",
			err:      &ClosedStoreError{Operation: "tasks.Start"},
			sentinel: ErrClosedStore,
		},
		{
			name:     "IdempotencyInProgressError",
			err:      &IdempotencyInProgressError{Owner: "scheduler", RequestID: "req-1", Command: "task.start"},
			sentinel: ErrIdempotencyInProgress,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.sentinel.Error(), tc.err.Error())
		})
	}
}

// TestRecoverableError_WrappedIs verifies errors.Is works through fmt.Errorf %w wrapping chains.
func TestRecoverableError_WrappedIs(t *testing.T) {
	tests := []struct {
		name     string
		wrapped  error
		sentinel error
	}{
		{
			name:     "wrapped VersionConflictError matches ErrVersionConflict",
			wrapped:  fmt.Errorf("outer: %w", &VersionConflictError{Entity: "task", ID: "t1", Version: 3}),
			sentinel: ErrVersionConflict,
		},
		{
			name:     "wrapped IdempotencyInProgressError matches ErrIdempotencyInProgress",
			wrapped:  fmt.Errorf("outer: %w", &IdempotencyInProgressError{Owner: "scheduler", RequestID: "req-1", Command: "task.start"}),
			sentinel: ErrIdempotencyInProgress,
		},
		{
			name:     "double-wrapped ConstraintViolationError matches ErrConstraintViolation",
			wrapped:  fmt.Errorf("level2: %w", fmt.Errorf("level1: %w", &ConstraintViolationError{Table: "tasks", Detail: "unique"})),
			sentinel: ErrConstraintViolation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.wrapped, tc.sentinel)
		})
	}
}

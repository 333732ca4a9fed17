package models

import "time"

// Execution is the top-level run row. Exactly one non-terminal Execution
// exists per running process.
type Execution struct {
	ID          string
	Name        string
	SourceLabel string
	Status      string // running | completed | failed
	ExitCode    *int
	EndSummary  string // opaque JSON blob
	EndReason   string
	StartedAt   time.Time
}

// StateEntry is the latest value of a reactive-store key.
type StateEntry struct {
	Key       string
	Value     string // opaque JSON
	Version   int
	Reason    string
	UpdatedAt time.Time
}

// StateHistoryEntry is one row of a key's append-only change log.
type StateHistoryEntry struct {
	ID       int64
	Key      string
	OldValue string
	NewValue string
	Reason   string
	Ts       time.Time
}

// Task is the unit schedulers use to observe in-flight work.
type Task struct {
	ID            string
	ExecutionID   string
	Iteration     int
	ScopeID       string // empty when unscoped
	ComponentType string
	ComponentName string
	Status        string // running | completed | failed
	StartedAt     time.Time
	EndedAt       *time.Time
}

// Phase is one row per (phase-activation, iteration).
type Phase struct {
	ID          string
	Name        string
	Iteration   int
	Status      string // active | completed | skipped | error
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Step is one row per step activation.
type Step struct {
	ID             string
	Name           string
	Status         string
	StartedAt      time.Time
	CompletedAt    *time.Time
	SnapshotBefore string
	SnapshotAfter  string
	CommitCreated  string
}

// HumanInteraction is a suspended-subtree approval gate row.
type HumanInteraction struct {
	ID         string
	Type       string
	Prompt     string
	Status     string // pending | approved | rejected | cancelled
	CreatedAt  time.Time
	ResolvedAt *time.Time
	Response   string
}

// VCSEvent records a snapshot/commit made by a Snapshot or Commit leaf.
type VCSEvent struct {
	ID         int64
	VCSType    string
	CommitHash string
	ChangeID   string
	Message    string
	Ts         time.Time
}

// Ticket is the optional ticket-board subsystem row; this core
// ships the table but no scheduling logic consumes it.
type Ticket struct {
	ID            string
	Title         string
	Description   string
	Acceptance    string // JSON array
	Priority      int
	Status        string // todo | in_progress | blocked | done
	Dependencies  string // JSON array
	ProgressNotes string // JSON array
	RequiresE2E   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

package reactive

import (
	"database/sql"

	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/store"
)

// Store is the Reactive Layer proper: the Persistent Store plus a Bus that
// tags every write with a change notification naming the table it touched.
// Reads always go straight to the Persistent Store — Subscribe is the only
// thing that caches, and only the last-evaluated result of its own query.
type Store struct {
	DB  *sql.DB
	Bus *Bus
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, Bus: NewBus()}
}

// Get reads the generic key/value table. Returns ok=false if key is unset.
func (s *Store) Get(key string) (string, bool, error) {
	return store.GetState(s.DB, key)
}

// Set upserts key, appends history, and notifies the "state" table.
func (s *Store) Set(key, value, reason string) error {
	if err := store.SetState(s.DB, key, value, reason); err != nil {
		return err
	}
	s.Bus.Notify("state")
	return nil
}

// CompareAndSet performs an optimistic-concurrency write keyed on the
// caller's last-observed version, returning *store.VersionConflictError on
// mismatch.
func (s *Store) CompareAndSet(key, value, reason string, expectedVersion int) error {
	if err := store.CompareAndSetState(s.DB, key, value, reason, expectedVersion); err != nil {
		return err
	}
	s.Bus.Notify("state")
	return nil
}

// History returns the newest-first change log for key.
func (s *Store) History(key string, limit int) ([]store.StateHistoryRow, error) {
	return store.HistoryState(s.DB, key, limit)
}

// CreateExecution starts a new execution row and notifies "executions".
func (s *Store) CreateExecution(name, sourceLabel string) (string, error) {
	id, err := store.CreateExecution(s.DB, name, sourceLabel)
	if err != nil {
		return "", err
	}
	s.Bus.Notify("executions")
	return id, nil
}

// EndExecution closes out an execution with a terminal status and notifies
// "executions".
func (s *Store) EndExecution(execID, status, endSummary, endReason string, exitCode int) error {
	if err := store.EndExecution(s.DB, execID, status, endSummary, endReason, exitCode); err != nil {
		return err
	}
	s.Bus.Notify("executions")
	return nil
}

func (s *Store) OpenExecution() (string, bool, error) {
	return store.OpenExecution(s.DB)
}

func (s *Store) GetExecution(execID string) (models.Execution, error) {
	return store.GetExecution(s.DB, execID)
}

// StartTask records a new running task and notifies "tasks".
func (s *Store) StartTask(execID string, iteration int, scopeID, componentType, componentName string) (string, error) {
	id, err := store.StartTask(s.DB, execID, iteration, scopeID, componentType, componentName)
	if err != nil {
		return "", err
	}
	s.Bus.Notify("tasks")
	return id, nil
}

func (s *Store) CompleteTask(taskID string) error {
	if err := store.CompleteTask(s.DB, taskID); err != nil {
		return err
	}
	s.Bus.Notify("tasks")
	return nil
}

func (s *Store) FailTask(taskID string) error {
	if err := store.FailTask(s.DB, taskID); err != nil {
		return err
	}
	s.Bus.Notify("tasks")
	return nil
}

func (s *Store) RunningByIteration(iteration int) (int, error) {
	return store.RunningByIteration(s.DB, iteration)
}

func (s *Store) TotalByIteration(iteration int) (int, error) {
	return store.TotalByIteration(s.DB, iteration)
}

func (s *Store) RunningByScope(scopeID string, iteration int) (int, error) {
	return store.RunningByScope(s.DB, scopeID, iteration)
}

func (s *Store) TotalByScope(scopeID string, iteration int) (int, error) {
	return store.TotalByScope(s.DB, scopeID, iteration)
}

// StartPhase/CompletePhase/SkipPhase/ErrorPhase mirror the store-level phase
// lifecycle and notify "phases" on every write.

func (s *Store) StartPhase(name string, iteration int) (string, error) {
	id, err := store.StartPhase(s.DB, name, iteration)
	if err != nil {
		return "", err
	}
	s.Bus.Notify("phases")
	return id, nil
}

func (s *Store) CompletePhase(phaseID string) error {
	if err := store.CompletePhase(s.DB, phaseID); err != nil {
		return err
	}
	s.Bus.Notify("phases")
	return nil
}

func (s *Store) SkipPhase(name string, iteration int) (string, error) {
	id, err := store.SkipPhase(s.DB, name, iteration)
	if err != nil {
		return "", err
	}
	s.Bus.Notify("phases")
	return id, nil
}

func (s *Store) ErrorPhase(name string, iteration int) (string, error) {
	id, err := store.ErrorPhase(s.DB, name, iteration)
	if err != nil {
		return "", err
	}
	s.Bus.Notify("phases")
	return id, nil
}

func (s *Store) CurrentPhaseIndex() (int, error) {
	return store.CurrentPhaseIndex(s.DB)
}

// AdvancePhase moves the currentPhaseIndex cursor forward and notifies
// "state", not "phases", since the cursor is a row of the state table.
func (s *Store) AdvancePhase(totalPhases int) (int, error) {
	idx, err := store.AdvancePhase(s.DB, totalPhases)
	if err != nil {
		return 0, err
	}
	s.Bus.Notify("state")
	return idx, nil
}

func (s *Store) StartStep(name string) (string, error) {
	id, err := store.StartStep(s.DB, name)
	if err != nil {
		return "", err
	}
	s.Bus.Notify("steps")
	return id, nil
}

func (s *Store) CompleteStep(stepID, snapshotBefore, snapshotAfter, commitCreated string) error {
	if err := store.CompleteStep(s.DB, stepID, snapshotBefore, snapshotAfter, commitCreated); err != nil {
		return err
	}
	s.Bus.Notify("steps")
	return nil
}

func (s *Store) FailStep(stepID string) error {
	if err := store.FailStep(s.DB, stepID); err != nil {
		return err
	}
	s.Bus.Notify("steps")
	return nil
}

func (s *Store) CurrentStepIndex(phase string) (int, error) {
	return store.CurrentStepIndex(s.DB, phase)
}

func (s *Store) AdvanceStep(phase string, totalSteps int) (int, error) {
	idx, err := store.AdvanceStep(s.DB, phase, totalSteps)
	if err != nil {
		return 0, err
	}
	s.Bus.Notify("state")
	return idx, nil
}

func (s *Store) MarkParallelStepComplete(registryID string, index int) error {
	if err := store.MarkParallelStepComplete(s.DB, registryID, index); err != nil {
		return err
	}
	s.Bus.Notify("state")
	return nil
}

func (s *Store) IsParallelStepComplete(registryID string, index int) (bool, error) {
	return store.IsParallelStepComplete(s.DB, registryID, index)
}

func (s *Store) CreateHumanInteraction(prompt string) (string, error) {
	id, err := store.CreateHumanInteraction(s.DB, prompt)
	if err != nil {
		return "", err
	}
	s.Bus.Notify("human_interactions")
	return id, nil
}

func (s *Store) ResolveHumanInteraction(id, status, response string) error {
	if err := store.ResolveHumanInteraction(s.DB, id, status, response); err != nil {
		return err
	}
	s.Bus.Notify("human_interactions")
	return nil
}

func (s *Store) GetHumanInteraction(id string) (models.HumanInteraction, error) {
	return store.GetHumanInteraction(s.DB, id)
}

func (s *Store) RecordVCSEvent(vcsType, commitHash, changeID, message string) (int64, error) {
	id, err := store.RecordVCSEvent(s.DB, vcsType, commitHash, changeID, message)
	if err != nil {
		return 0, err
	}
	s.Bus.Notify("vcs_events")
	return id, nil
}

func (s *Store) CreateTicket(title, description string, priority int) (string, error) {
	id, err := store.CreateTicket(s.DB, title, description, priority)
	if err != nil {
		return "", err
	}
	s.Bus.Notify("tickets")
	return id, nil
}

func (s *Store) UpdateTicketStatus(id, status string) error {
	if err := store.UpdateTicketStatus(s.DB, id, status); err != nil {
		return err
	}
	s.Bus.Notify("tickets")
	return nil
}

func (s *Store) GetTicket(id string) (models.Ticket, error) {
	return store.GetTicket(s.DB, id)
}

package elements

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/smithers-run/smithers/internal/scope"
)

// StepRegistry assigns each Step a zero-based index by first registration
// within its owning Phase's render, tracks sequential/parallel completion,
// and the zero-Step task-count fallback.
type StepRegistry struct {
	ctx        Ctx
	phaseName  string
	parallel   bool
	names      []string
	index      map[string]int
	onComplete func()
}

// NewStepRegistry constructs a registry for one Phase activation.
// onAllStepsComplete is normally (*PhaseRegistry).AdvancePhase.
func NewStepRegistry(ctx Ctx, phaseName string, parallel bool, onAllStepsComplete func()) *StepRegistry {
	return &StepRegistry{ctx: ctx, phaseName: phaseName, parallel: parallel, index: map[string]int{}, onComplete: onAllStepsComplete}
}

// RegistryID namespaces this registry's parallel-completion markers and
// its "all complete" latch to this phase+iteration.
func (r *StepRegistry) RegistryID() string {
	return fmt.Sprintf("%s:%d", r.phaseName, r.ctx.Iteration)
}

func (r *StepRegistry) indexOf(name string) int {
	if i, ok := r.index[name]; ok {
		return i
	}
	i := len(r.names)
	r.names = append(r.names, name)
	r.index[name] = i
	return i
}

func (r *StepRegistry) TotalSteps() int   { return len(r.names) }
func (r *StepRegistry) IsParallel() bool  { return r.parallel }

func (r *StepRegistry) IsStepActive(i int) (bool, error) {
	if r.parallel {
		return true, nil
	}
	current, err := r.ctx.Store.CurrentStepIndex(r.phaseName)
	if err != nil {
		return false, err
	}
	return i == current, nil
}

func (r *StepRegistry) IsStepCompleted(i int) (bool, error) {
	if r.parallel {
		return r.ctx.Store.IsParallelStepComplete(r.RegistryID(), i)
	}
	current, err := r.ctx.Store.CurrentStepIndex(r.phaseName)
	if err != nil {
		return false, err
	}
	return i < current, nil
}

func (r *StepRegistry) advanceStep() error {
	_, err := r.ctx.Store.AdvanceStep(r.phaseName, r.TotalSteps())
	return err
}

func (r *StepRegistry) markParallelComplete(i int) error {
	return r.ctx.Store.MarkParallelStepComplete(r.RegistryID(), i)
}

// CheckAllComplete fires onAllStepsComplete exactly once, latched through a
// durable state key so a process restart after firing never refires it.
func (r *StepRegistry) CheckAllComplete() error {
	firedKey := "steps." + r.RegistryID() + ".allComplete"
	fired, _, err := r.ctx.Store.Get(firedKey)
	if err != nil {
		return err
	}
	if fired == "1" {
		return nil
	}
	done, err := r.allComplete()
	if err != nil {
		return err
	}
	if !done {
		return nil
	}
	if err := r.ctx.Store.Set(firedKey, "1", "all steps complete"); err != nil {
		return err
	}
	if r.onComplete != nil {
		r.onComplete()
	}
	return nil
}

func (r *StepRegistry) allComplete() (bool, error) {
	total := r.TotalSteps()
	if total == 0 {
		return r.zeroStepFallback()
	}
	if r.parallel {
		completed := 0
		for i := 0; i < total; i++ {
			ok, err := r.IsStepCompleted(i)
			if err != nil {
				return false, err
			}
			if ok {
				completed++
			}
		}
		return completed == total, nil
	}
	current, err := r.ctx.Store.CurrentStepIndex(r.phaseName)
	if err != nil {
		return false, err
	}
	return current >= total, nil
}

// zeroStepFallback lets a Phase whose only children are direct
// work-spawning leaves (no Step) complete once at least one task has been
// seen this iteration and none are still running.
func (r *StepRegistry) zeroStepFallback() (bool, error) {
	totalSeenKey := "steps." + r.RegistryID() + ".totalSeen"
	seen, _, err := r.ctx.Store.Get(totalSeenKey)
	if err != nil {
		return false, err
	}
	if seen != "1" {
		total, err := r.ctx.Store.TotalByIteration(r.ctx.Iteration)
		if err != nil {
			return false, err
		}
		if total == 0 {
			return false, nil
		}
		if err := r.ctx.Store.Set(totalSeenKey, "1", "observed first task"); err != nil {
			return false, err
		}
	}
	running, err := r.ctx.Store.RunningByIteration(r.ctx.Iteration)
	if err != nil {
		return false, err
	}
	return running == 0, nil
}

// StepProps is a Step's author-facing configuration.
type StepProps struct {
	Name           string
	SnapshotBefore bool
	SnapshotAfter  bool
	CommitAfter    bool
	CommitMessage  string
	OnStart        func()
	OnComplete     func()
	OnError        func(error)
	Children       func(ctx Ctx) []reconciler.Element
}

// Steps registers every spec's name against reg before building any Step
// element, so TotalSteps is stable before the first Step body runs (two
// phases: register-all, then build-all).
func Steps(ctx Ctx, reg *StepRegistry, vcs VCS, specs []StepProps) []reconciler.Element {
	for _, s := range specs {
		reg.indexOf(s.Name)
	}
	elements := make([]reconciler.Element, 0, len(specs))
	for _, s := range specs {
		elements = append(elements, Step(ctx, reg, vcs, s))
	}
	return elements
}

// stepState is the durable lifecycle a Step instance moves through; stored
// under "step.<phase>.<iteration>.<name>.stage" so resuming after a
// restart is just re-reading it. The snapshotBefore/committing/
// snapshotAfter stages never invoke the VCS collaborator themselves: each
// renders a Snapshot or Commit leaf as this Step's sole child for as long
// as that leaf's own async dispatch is in flight, and only advances once
// the leaf's OnFinished/OnError callback fires.
const (
	stepStagePending        = ""
	stepStageSnapshotBefore = "snapshotBefore"
	stepStageStarted        = "started"
	stepStageCommitting     = "committing"
	stepStageSnapshotAfter  = "snapshotAfter"
	stepStageCompleted      = "completed"
	stepStageFailed         = "failed"
)

// Step implements the per-step activation/completion machinery: fresh scope
// allocation, snapshot-before/after, the owning `steps` row, and registry
// advancement on completion.
func Step(ctx Ctx, reg *StepRegistry, vcs VCS, p StepProps) reconciler.Element {
	idx := reg.indexOf(p.Name)
	keyPrefix := fmt.Sprintf("step.%s.%d.%s", reg.phaseName, ctx.Iteration, p.Name)
	stageKey := keyPrefix + ".stage"
	scopeKey := keyPrefix + ".scopeId"
	rowKey := keyPrefix + ".rowId"
	taskKey := keyPrefix + ".taskId"
	commitIDKey := keyPrefix + ".commitId"
	snapAfterIDKey := keyPrefix + ".snapshotAfterId"
	// Active/completed are read when the element is built, so every Step
	// built in one pass sees the same cursor and a step advanced while one
	// of them renders activates the next step on the next render.
	active, activeErr := reg.IsStepActive(idx)
	completedAlready, completedErr := reg.IsStepCompleted(idx)

	return reconciler.Element{
		Type:  "Step",
		Key:   p.Name,
		Props: reconciler.Props{"name": p.Name},
		Component: func(c *reconciler.Cursor, props reconciler.Props) (reconciler.Element, error) {
			if activeErr != nil {
				return reconciler.Element{}, activeErr
			}
			if completedErr != nil {
				return reconciler.Element{}, completedErr
			}
			if !ctx.Scope.CanExecute(active, false, completedAlready) {
				return reconciler.Element{}, nil
			}

			stage, _, err := ctx.Store.Get(stageKey)
			if err != nil {
				return reconciler.Element{}, err
			}

			if stage == stepStagePending {
				if err := activateStep(ctx, p, stageKey, scopeKey, rowKey, taskKey); err != nil {
					return reconciler.Element{}, err
				}
				stage, _, err = ctx.Store.Get(stageKey)
				if err != nil {
					return reconciler.Element{}, err
				}
			}

			if stage == stepStageSnapshotBefore {
				return reconciler.Element{Type: "Fragment", Children: []reconciler.Element{
					Snapshot(ctx, vcs, SnapshotProps{
						ID: keyPrefix + ".before",
						OnFinished: func(string) {
							_ = activateStarted(ctx, p, stageKey, rowKey)
						},
						OnError: func(err error) {
							failStep(ctx, p, taskKey, stageKey, err)
						},
					}),
				}}, nil
			}

			if stage != stepStageStarted && stage != stepStageCommitting && stage != stepStageSnapshotAfter {
				return reconciler.Element{}, nil
			}

			stepScope, err := loadStepScope(ctx, scopeKey)
			if err != nil {
				return reconciler.Element{}, err
			}

			c.OnUnmount(func() {
				// Defensive: if the owning loop tears down before this step
				// finished running its children, move it into the finishing
				// sequence so its task does not leak. A step already
				// finishing is left alone; the dispatched Commit/Snapshot
				// leaf resolves on its own regardless of scope/mount state.
				stage, _, _ := ctx.Store.Get(stageKey)
				if stage == stepStageStarted {
					_ = beginFinish(ctx, reg, p, vcs, idx, stageKey, rowKey, taskKey, commitIDKey, snapAfterIDKey)
				}
			})

			if stage == stepStageCommitting {
				return reconciler.Element{Type: "Fragment", Children: []reconciler.Element{
					Commit(ctx, vcs, CommitProps{
						ID:      keyPrefix + ".commit",
						Message: p.CommitMessage,
						OnFinished: func(id string) {
							_ = ctx.Store.Set(commitIDKey, id, "commit-after recorded")
							_ = advanceFromFinishing(ctx, reg, p, idx, stageKey, rowKey, taskKey, commitIDKey, snapAfterIDKey)
						},
						OnError: func(err error) {
							failStep(ctx, p, taskKey, stageKey, err)
						},
					}),
				}}, nil
			}

			if stage == stepStageSnapshotAfter {
				return reconciler.Element{Type: "Fragment", Children: []reconciler.Element{
					Snapshot(ctx, vcs, SnapshotProps{
						ID: keyPrefix + ".after",
						OnFinished: func(id string) {
							_ = ctx.Store.Set(snapAfterIDKey, id, "snapshot-after recorded")
							_ = advanceFromFinishing(ctx, reg, p, idx, stageKey, rowKey, taskKey, commitIDKey, snapAfterIDKey)
						},
						OnError: func(err error) {
							failStep(ctx, p, taskKey, stageKey, err)
						},
					}),
				}}, nil
			}

			running, total, err := stepObservedCounts(ctx, stepScope.ScopeID.String())
			if err != nil {
				return reconciler.Element{}, err
			}
			allowEmpty := p.Children == nil
			if running == 0 && (total > 0 || allowEmpty) {
				if err := beginFinish(ctx, reg, p, vcs, idx, stageKey, rowKey, taskKey, commitIDKey, snapAfterIDKey); err != nil {
					return reconciler.Element{}, err
				}
				return reconciler.Element{}, nil
			}

			if p.Children == nil {
				return reconciler.Element{}, nil
			}
			childCtx := ctx.WithScope(stepScope)
			return reconciler.Element{Type: "Fragment", Children: p.Children(childCtx)}, nil
		},
	}
}

// activateStep allocates the step's scope and task, then routes to either
// the snapshot-before leaf or straight into activateStarted, never calling
// the VCS collaborator itself.
func activateStep(ctx Ctx, p StepProps, stageKey, scopeKey, rowKey, taskKey string) error {
	stepScope := ctx.Scope.WithNewScope()
	taskID, err := ctx.Store.StartTask(ctx.ExecID, ctx.Iteration, stepScope.ScopeID.String(), models.ComponentStep, p.Name)
	if err != nil {
		return err
	}
	if err := ctx.Store.Set(scopeKey, stepScope.ScopeID.String(), "step activated"); err != nil {
		return err
	}
	if err := ctx.Store.Set(taskKey, taskID, "step activated"); err != nil {
		return err
	}
	if p.SnapshotBefore {
		return ctx.Store.Set(stageKey, stepStageSnapshotBefore, "step activated, awaiting pre-step snapshot")
	}
	return activateStarted(ctx, p, stageKey, rowKey)
}

// activateStarted opens the owning steps row and fires OnStart once the
// pre-step snapshot (if any) has already succeeded.
func activateStarted(ctx Ctx, p StepProps, stageKey, rowKey string) error {
	rowID, err := ctx.Store.StartStep(p.Name)
	if err != nil {
		return err
	}
	if err := ctx.Store.Set(rowKey, rowID, "step activated"); err != nil {
		return err
	}
	if err := ctx.Store.Set(stageKey, stepStageStarted, "step activated"); err != nil {
		return err
	}
	if p.OnStart != nil {
		p.OnStart()
	}
	return nil
}

func failStep(ctx Ctx, p StepProps, taskKey, stageKey string, err error) {
	taskID, _, _ := ctx.Store.Get(taskKey)
	if taskID != "" {
		_ = ctx.Store.FailTask(taskID)
	}
	if p.OnError != nil {
		p.OnError(err)
	}
	_ = ctx.Store.Set(stageKey, stepStageFailed, "step failed")
}

// beginFinish decides the first finishing sub-stage this step needs
// (committing, then snapshot-after) or completes it immediately when
// neither applies; none of these transitions call the VCS collaborator.
func beginFinish(ctx Ctx, reg *StepRegistry, p StepProps, vcs VCS, idx int, stageKey, rowKey, taskKey, commitIDKey, snapAfterIDKey string) error {
	if p.CommitAfter && vcs != nil {
		return ctx.Store.Set(stageKey, stepStageCommitting, "step finishing, awaiting commit-after")
	}
	if p.SnapshotAfter && vcs != nil {
		return ctx.Store.Set(stageKey, stepStageSnapshotAfter, "step finishing, awaiting snapshot-after")
	}
	return completeStepNow(ctx, reg, p, idx, stageKey, rowKey, taskKey, commitIDKey, snapAfterIDKey)
}

// advanceFromFinishing moves from committing to snapshot-after, or
// completes the step once both finishing leaves (as configured) have
// resolved.
func advanceFromFinishing(ctx Ctx, reg *StepRegistry, p StepProps, idx int, stageKey, rowKey, taskKey, commitIDKey, snapAfterIDKey string) error {
	stage, _, err := ctx.Store.Get(stageKey)
	if err != nil {
		return err
	}
	if stage == stepStageCommitting && p.SnapshotAfter {
		return ctx.Store.Set(stageKey, stepStageSnapshotAfter, "step finishing, awaiting snapshot-after")
	}
	return completeStepNow(ctx, reg, p, idx, stageKey, rowKey, taskKey, commitIDKey, snapAfterIDKey)
}

func completeStepNow(ctx Ctx, reg *StepRegistry, p StepProps, idx int, stageKey, rowKey, taskKey, commitIDKey, snapAfterIDKey string) error {
	rowID, _, err := ctx.Store.Get(rowKey)
	if err != nil {
		return err
	}
	taskID, _, err := ctx.Store.Get(taskKey)
	if err != nil {
		return err
	}
	commitID, _, err := ctx.Store.Get(commitIDKey)
	if err != nil {
		return err
	}
	snapAfterID, _, err := ctx.Store.Get(snapAfterIDKey)
	if err != nil {
		return err
	}

	if err := ctx.Store.CompleteStep(rowID, "", snapAfterID, commitID); err != nil {
		return err
	}
	if taskID != "" {
		if err := ctx.Store.CompleteTask(taskID); err != nil {
			return err
		}
	}
	if reg.parallel {
		if err := reg.markParallelComplete(idx); err != nil {
			return err
		}
	} else {
		if err := reg.advanceStep(); err != nil {
			return err
		}
	}
	if err := ctx.Store.Set(stageKey, stepStageCompleted, "step completed"); err != nil {
		return err
	}
	if p.OnComplete != nil {
		p.OnComplete()
	}
	return reg.CheckAllComplete()
}

func loadStepScope(ctx Ctx, scopeKey string) (scope.Scope, error) {
	v, ok, err := ctx.Store.Get(scopeKey)
	if err != nil {
		return scope.Scope{}, err
	}
	if !ok {
		return scope.Scope{}, fmt.Errorf("step scope %s not found", scopeKey)
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return scope.Scope{}, err
	}
	return scope.Scope{Enabled: true, ScopeID: id}, nil
}

func stepObservedCounts(ctx Ctx, scopeID string) (running, total int, err error) {
	running, err = ctx.Store.RunningByScope(scopeID, ctx.Iteration)
	if err != nil {
		return 0, 0, err
	}
	total, err = ctx.Store.TotalByScope(scopeID, ctx.Iteration)
	if err != nil {
		return 0, 0, err
	}
	return running, total, nil
}

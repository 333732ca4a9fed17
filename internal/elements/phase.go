package elements

import (
	"strconv"

	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/smithers-run/smithers/internal/store"
)

// PhaseRegistry fixes the ordinal of every named Phase under a loop
// iteration before any Phase body runs, via the same two-pass
// register-then-build discipline as StepRegistry. This is what lets a
// Phase decide "am I active" (ctx.Store.CurrentPhaseIndex() == my index)
// purely from its position, independent of render order.
type PhaseRegistry struct {
	ctx   Ctx
	names []string
	index map[string]int
}

// NewPhaseRegistry constructs a registry scoped to one While iteration.
func NewPhaseRegistry(ctx Ctx) *PhaseRegistry {
	return &PhaseRegistry{ctx: ctx, index: map[string]int{}}
}

func (r *PhaseRegistry) indexOf(name string) int {
	if i, ok := r.index[name]; ok {
		return i
	}
	i := len(r.names)
	r.names = append(r.names, name)
	r.index[name] = i
	return i
}

// TotalPhases is only meaningful after every Phase under this registry has
// been registered via Phases/Phase.
func (r *PhaseRegistry) TotalPhases() int { return len(r.names) }

// CurrentIndex delegates to the reserved currentPhaseIndex key.
func (r *PhaseRegistry) CurrentIndex() (int, error) {
	return r.ctx.Store.CurrentPhaseIndex()
}

// AdvancePhase moves currentPhaseIndex to the next phase, capped at
// TotalPhases. Bound as a Step/StepRegistry's onAllStepsComplete callback
// for whichever Phase is currently active.
func (r *PhaseRegistry) AdvancePhase() {
	_, _ = r.ctx.Store.AdvancePhase(r.TotalPhases())
}

// PhaseProps is a Phase's author-facing configuration.
type PhaseProps struct {
	Name       string
	SkipIf     func() (bool, error)
	Parallel   bool
	OnStart    func()
	OnComplete func()
	VCS        VCS
	OnError    func(error)
	Steps      []StepProps
	// Direct renders leaves straight under the Phase with no Step
	// wrapping, relying on StepRegistry's zero-step task-count fallback
	// to detect completion.
	Direct func(ctx Ctx) []reconciler.Element
}

// Phases registers every spec's name against reg before building any Phase
// element, mirroring Steps' two-pass discipline, so TotalPhases is known
// before the first Phase body computes its active/skip/completed status.
func Phases(ctx Ctx, reg *PhaseRegistry, specs []PhaseProps) []reconciler.Element {
	for _, p := range specs {
		reg.indexOf(p.Name)
	}
	elements := make([]reconciler.Element, 0, len(specs))
	for _, p := range specs {
		elements = append(elements, Phase(ctx, reg, p))
	}
	return elements
}

// Phase always occupies a Node (even when skipped or not-yet-active) so its
// position in the tree, and thus its hook/subscription state, survives
// re-renders; it renders a placeholder with {name,status} attrs and, only
// while active, mounts its own StepRegistry-scoped children.
func Phase(ctx Ctx, reg *PhaseRegistry, p PhaseProps) reconciler.Element {
	idx := reg.indexOf(p.Name)
	rowKey := "phase." + p.Name + "." + strconv.Itoa(ctx.Iteration) + ".rowId"
	loggedKey := "phase." + p.Name + "." + strconv.Itoa(ctx.Iteration) + ".logged"
	// The cursor is read when the element is built, so every Phase built in
	// one pass sees the same value and an advance made while one of them
	// renders takes effect on the next render, not on a later sibling.
	current, currentErr := reg.CurrentIndex()

	return reconciler.Element{
		Type: "Phase",
		Key:  p.Name,
		Component: func(c *reconciler.Cursor, props reconciler.Props) (reconciler.Element, error) {
			if ctx.InPhase {
				return reconciler.Element{}, &store.AuthorError{
					Element: "Phase",
					Reason:  "a Phase cannot mount inside another Phase's subtree; nested loops share one currentPhaseIndex cursor",
				}
			}

			if currentErr != nil {
				return reconciler.Element{}, currentErr
			}

			if p.SkipIf != nil {
				skip, serr := p.SkipIf()
				if serr != nil {
					if p.OnError != nil {
						p.OnError(serr)
					}
					return placeholder(p.Name, models.PhaseError), nil
				}
				if skip {
					return renderSkip(ctx, reg, p, idx, current, loggedKey)
				}
			}

			switch {
			case idx < current:
				return placeholder(p.Name, models.PhaseCompleted), nil
			case idx > current:
				return placeholder(p.Name, models.PhasePending), nil
			default:
				return renderActive(ctx, c, reg, p, idx, rowKey, loggedKey)
			}
		},
	}
}

func renderSkip(ctx Ctx, reg *PhaseRegistry, p PhaseProps, idx, current int, loggedKey string) (reconciler.Element, error) {
	if idx != current {
		if idx < current {
			return placeholder(p.Name, models.PhaseSkipped), nil
		}
		return placeholder(p.Name, models.PhasePending), nil
	}
	logged, _, err := ctx.Store.Get(loggedKey)
	if err != nil {
		return reconciler.Element{}, err
	}
	if logged != "1" {
		if _, err := ctx.Store.SkipPhase(p.Name, ctx.Iteration); err != nil {
			return reconciler.Element{}, err
		}
		if err := ctx.Store.Set(loggedKey, "1", "phase skip logged"); err != nil {
			return reconciler.Element{}, err
		}
		reg.AdvancePhase()
	}
	return placeholder(p.Name, models.PhaseSkipped), nil
}

func renderActive(ctx Ctx, c *reconciler.Cursor, reg *PhaseRegistry, p PhaseProps, idx int, rowKey, loggedKey string) (reconciler.Element, error) {
	logged, _, err := ctx.Store.Get(loggedKey)
	if err != nil {
		return reconciler.Element{}, err
	}
	if logged != "1" {
		rowID, err := ctx.Store.StartPhase(p.Name, ctx.Iteration)
		if err != nil {
			return reconciler.Element{}, err
		}
		if err := ctx.Store.Set(rowKey, rowID, "phase active"); err != nil {
			return reconciler.Element{}, err
		}
		if err := ctx.Store.Set(loggedKey, "1", "phase active logged"); err != nil {
			return reconciler.Element{}, err
		}
		if p.OnStart != nil {
			p.OnStart()
		}
	}

	stepReg := NewStepRegistry(ctx, p.Name, p.Parallel, func() {
		completePhase(ctx, reg, p, rowKey)
	})

	c.OnUnmount(func() {
		// Defensive: a torn-down tree should not leave a phases row open.
		rowID, _, _ := ctx.Store.Get(rowKey)
		if rowID != "" {
			_ = ctx.Store.CompletePhase(rowID)
		}
	})

	phaseCtx := ctx.WithinPhase()
	var children []reconciler.Element
	switch {
	case len(p.Steps) > 0:
		children = Steps(phaseCtx, stepReg, p.VCS, p.Steps)
	default:
		if p.Direct != nil {
			children = p.Direct(phaseCtx)
		}
		// A body that renders no children while no task has been started
		// this iteration has nothing to wait for: it completes in the
		// render that activates it instead of waiting on the fallback.
		if len(children) == 0 {
			total, err := ctx.Store.TotalByIteration(ctx.Iteration)
			if err != nil {
				return reconciler.Element{}, err
			}
			if total == 0 {
				if err := ctx.Store.Set("steps."+stepReg.RegistryID()+".totalSeen", "1", "empty phase body"); err != nil {
					return reconciler.Element{}, err
				}
			}
		}
		if err := stepReg.CheckAllComplete(); err != nil {
			return reconciler.Element{}, err
		}
	}

	node := placeholder(p.Name, models.PhaseActive)
	node.Children = append(node.Children, children...)
	return node, nil
}

func completePhase(ctx Ctx, reg *PhaseRegistry, p PhaseProps, rowKey string) {
	rowID, _, _ := ctx.Store.Get(rowKey)
	if rowID != "" {
		_ = ctx.Store.CompletePhase(rowID)
	}
	if p.OnComplete != nil {
		p.OnComplete()
	}
	reg.AdvancePhase()
}

func placeholder(name, status string) reconciler.Element {
	return reconciler.Element{Type: "Phase", Key: name, Props: reconciler.Props{"name": name, "status": status}}
}


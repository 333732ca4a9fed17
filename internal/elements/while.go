package elements

import (
	"fmt"
	"strconv"

	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/reconciler"
)

const defaultMaxIterations = 10

// WhileProps is the Iteration Driver's author-facing configuration.
// Children receives the iteration-scoped Ctx and a signalComplete callback
// it can hand down to whatever decides when the iteration body is done
// (typically a PhaseRegistry's onAllStepsComplete).
type WhileProps struct {
	ID        string
	Condition func() (bool, error)
	// MaxIterations is a pointer so an unset field (nil) can default to
	// defaultMaxIterations while an explicit 0 is honored as written: a
	// While whose caller deliberately asked for zero iterations completes
	// immediately, without calling Condition, with reason "condition"
	// rather than ever entering the running state.
	MaxIterations *int
	OnIteration   func(iteration int)
	OnComplete    func(iterations int, reason string)
	Children      func(ctx Ctx, signalComplete func()) []reconciler.Element
}

// While is a pure, idempotent projection of `while.<id>.status` /
// `while.<id>.iteration`: every render re-reads that state and transitions
// it if needed, so resuming after a process restart is just rendering
// again with the same props — there is no in-memory "already started"
// flag to lose.
func While(ctx Ctx, p WhileProps) reconciler.Element {
	maxIterations := defaultMaxIterations
	if p.MaxIterations != nil {
		maxIterations = *p.MaxIterations
	}
	statusKey := "while." + p.ID + ".status"
	iterKey := "while." + p.ID + ".iteration"

	return reconciler.Element{
		Type:  "While",
		Key:   p.ID,
		Props: reconciler.Props{"id": p.ID, "maxIterations": maxIterations},
		Component: func(c *reconciler.Cursor, props reconciler.Props) (reconciler.Element, error) {
			status, hasStatus, err := ctx.Store.Get(statusKey)
			if err != nil {
				return reconciler.Element{}, err
			}

			if !hasStatus {
				if maxIterations == 0 {
					if err := transitionWhile(ctx, statusKey, iterKey, models.WhileComplete, 0); err != nil {
						return reconciler.Element{}, err
					}
					if p.OnComplete != nil {
						p.OnComplete(0, "condition")
					}
					return reconciler.Element{}, nil
				}
				ok, err := p.Condition()
				if err != nil {
					return reconciler.Element{}, fmt.Errorf("while %s: condition: %w", p.ID, err)
				}
				if !ok {
					if err := transitionWhile(ctx, statusKey, iterKey, models.WhileComplete, 0); err != nil {
						return reconciler.Element{}, err
					}
					if p.OnComplete != nil {
						p.OnComplete(0, "condition")
					}
					return reconciler.Element{}, nil
				}
				if err := transitionWhile(ctx, statusKey, iterKey, models.WhileRunning, 0); err != nil {
					return reconciler.Element{}, err
				}
				if err := ctx.Store.Set(models.StateKeyRalphCount, "0", "while start"); err != nil {
					return reconciler.Element{}, err
				}
				if p.OnIteration != nil {
					p.OnIteration(0)
				}
				status = models.WhileRunning
			} else if status == models.WhileRunning {
				iter, _, err := ctx.Store.Get(iterKey)
				if err != nil {
					return reconciler.Element{}, err
				}
				if err := ctx.Store.Set(models.StateKeyRalphCount, iter, "while resume"); err != nil {
					return reconciler.Element{}, err
				}
			}

			if status != models.WhileRunning {
				return reconciler.Element{}, nil
			}

			iter, _, err := ctx.Store.Get(iterKey)
			if err != nil {
				return reconciler.Element{}, err
			}
			iteration, err := strconv.Atoi(iter)
			if err != nil {
				iteration = 0
			}

			signalComplete := func() {
				next := iteration + 1
				if next >= maxIterations {
					_ = transitionWhile(ctx, statusKey, iterKey, models.WhileComplete, next)
					if p.OnComplete != nil {
						p.OnComplete(next, "max")
					}
					return
				}
				ok, err := p.Condition()
				if err != nil || !ok {
					_ = transitionWhile(ctx, statusKey, iterKey, models.WhileComplete, next)
					if p.OnComplete != nil {
						p.OnComplete(next, "condition")
					}
					return
				}
				_ = transitionWhile(ctx, statusKey, iterKey, models.WhileRunning, next)
				_ = ctx.Store.Set(models.StateKeyRalphCount, strconv.Itoa(next), "iterate")
				if p.OnIteration != nil {
					p.OnIteration(next)
				}
			}

			if p.Children == nil {
				return reconciler.Element{}, nil
			}
			childCtx := ctx.WithIteration(iteration)
			return reconciler.Element{Type: "Fragment", Children: p.Children(childCtx, signalComplete)}, nil
		},
	}
}

func transitionWhile(ctx Ctx, statusKey, iterKey, status string, iteration int) error {
	if err := ctx.Store.Set(statusKey, status, "while transition"); err != nil {
		return err
	}
	return ctx.Store.Set(iterKey, strconv.Itoa(iteration), "while transition")
}

// Ralph is the always-true-condition specialization of While: a bounded
// iteration loop with no exit condition beyond maxIterations.
func Ralph(ctx Ctx, id string, maxIterations int, onIteration func(int), onComplete func(int, string), children func(Ctx, func()) []reconciler.Element) reconciler.Element {
	return While(ctx, WhileProps{
		ID:            id,
		Condition:     func() (bool, error) { return true, nil },
		MaxIterations: &maxIterations,
		OnIteration:   onIteration,
		OnComplete:    onComplete,
		Children:      children,
	})
}

package elements

import (
	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/reconciler"
)

// EndProps configures the root terminal element: the single place a
// workflow tree declares that the execution is over. Status must be one of
// the models.Execution* values.
type EndProps struct {
	Status   string
	Summary  string
	Reason   string
	ExitCode int
}

// End closes out the current Execution row and requests that the Engine's
// tick loop stop after this render, exactly once. Like While it is a pure,
// idempotent projection of durable state rather than an in-memory latch: a
// workflow can render End unconditionally once its root-level completion
// condition holds, on every tick, and only the first render does anything.
func End(ctx Ctx, p EndProps) reconciler.Element {
	return reconciler.Element{
		Type:  "End",
		Key:   "end",
		Props: reconciler.Props{"status": p.Status},
		Component: func(c *reconciler.Cursor, props reconciler.Props) (reconciler.Element, error) {
			if !ctx.Scope.Enabled {
				return reconciler.Element{}, nil
			}
			doneKey := "end." + ctx.ExecID + ".done"
			done, _, err := ctx.Store.Get(doneKey)
			if err != nil {
				return reconciler.Element{}, err
			}
			if done == "1" {
				return reconciler.Element{}, nil
			}
			if err := ctx.Store.EndExecution(ctx.ExecID, p.Status, p.Summary, p.Reason, p.ExitCode); err != nil {
				return reconciler.Element{}, err
			}
			if err := ctx.Store.Set(models.StateKeyStopRequested, p.Status, p.Reason); err != nil {
				return reconciler.Element{}, err
			}
			if err := ctx.Store.Set(doneKey, "1", "end recorded"); err != nil {
				return reconciler.Element{}, err
			}
			return reconciler.Element{}, nil
		},
	}
}

// Completed is End specialized to a successful terminal status, the common
// case of a root While's OnComplete handler.
func Completed(ctx Ctx, summary, reason string) reconciler.Element {
	return End(ctx, EndProps{Status: models.ExecutionCompleted, Summary: summary, Reason: reason})
}

// Failed is End specialized to a failed terminal status.
func Failed(ctx Ctx, summary, reason string) reconciler.Element {
	return End(ctx, EndProps{Status: models.ExecutionFailed, Summary: summary, Reason: reason, ExitCode: 1})
}

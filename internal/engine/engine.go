// Package engine drives the render loop: each tick flushes the Reactive
// Layer's pending change batch, then re-renders the whole element tree
//.
package engine

import (
	"context"
	"fmt"

	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/reactive"
	"github.com/smithers-run/smithers/internal/reconciler"
)

// BuildRoot constructs the top-level element tree for one tick. It is
// called fresh every tick since the engine always re-renders the whole
// tree; workflow authors close over whatever Ctx/registries they need.
type BuildRoot func() reconciler.Element

// Engine wires the Reactive Layer to the Reconciler and runs the tick
// loop until a stop is requested or ctx is cancelled.
type Engine struct {
	store      *reactive.Store
	reconciler *reconciler.Reconciler
	buildRoot  BuildRoot
	clock      *Clock
}

// New constructs an Engine. onError receives render-time errors (a single
// report per failed tick, per internal/reconciler's error-isolation
// contract); a nil onError is a no-op.
func New(store *reactive.Store, buildRoot BuildRoot, onError func(error)) *Engine {
	return &Engine{
		store:      store,
		reconciler: reconciler.New(store.Bus, onError),
		buildRoot:  buildRoot,
		clock:      NewClock(),
	}
}

// Tick flushes any pending Reactive Layer changes, then performs one full
// re-render.
func (e *Engine) Tick() error {
	e.store.Bus.Flush()
	return e.reconciler.Render(e.buildRoot())
}

// Run ticks until RequestStop has been observed or ctx is cancelled,
// honoring the Clock's minimum inter-tick delay between iterations.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stopped, err := e.StopRequested()
		if err != nil {
			return fmt.Errorf("check stop request: %w", err)
		}
		if stopped {
			e.reconciler.Dispose()
			return nil
		}

		if err := e.Tick(); err != nil {
			return err
		}

		e.clock.Wait(ctx)
	}
}

// RequestStop writes the reserved stop_requested state key,
// observed by the next Run iteration.
func (e *Engine) RequestStop(reason string) error {
	return e.store.Set(models.StateKeyStopRequested, reason, "stop requested")
}

// StopRequested reports whether a stop has been requested.
func (e *Engine) StopRequested() (bool, error) {
	v, ok, err := e.store.Get(models.StateKeyStopRequested)
	if err != nil {
		return false, err
	}
	return ok && v != "", nil
}

// Dispose tears down the current tree without waiting for a stop request,
// e.g. on an unrecoverable outer error.
func (e *Engine) Dispose() {
	e.reconciler.Dispose()
}

// ToSerializedForm renders the current tree's canonical string form, used
// by `smithers tree` and golden tests.
func (e *Engine) ToSerializedForm() string {
	root := e.reconciler.Root()
	if root == nil {
		return ""
	}
	return root.ToSerializedForm()
}

package elements

import (
	"testing"

	"github.com/smithers-run/smithers/internal/reactive"
	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/smithers-run/smithers/internal/scope"
	"github.com/smithers-run/smithers/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestCtx(t *testing.T) Ctx {
	t.Helper()
	db, err := store.InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Ctx{Store: reactive.NewStore(db), Scope: scope.Root(), ExecID: "exec-1"}
}

func TestWhile_ConditionFalseCompletesImmediately(t *testing.T) {
	ctx := newTestCtx(t)
	var completedIterations int
	var completedReason string

	el := While(ctx, WhileProps{
		ID:        "loop1",
		Condition: func() (bool, error) { return false, nil },
		OnComplete: func(iterations int, reason string) {
			completedIterations = iterations
			completedReason = reason
		},
	})

	rec := reconciler.New(nil, nil)
	require.NoError(t, rec.Render(el))
	require.Equal(t, 0, completedIterations)
	require.Equal(t, "condition", completedReason)

	status, ok, err := ctx.Store.Get("while.loop1.status")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "complete", status)
}

func TestWhile_ConditionTrueRunsAndRendersChildren(t *testing.T) {
	ctx := newTestCtx(t)
	var sawIteration int
	rendered := false

	el := While(ctx, WhileProps{
		ID:          "loop2",
		Condition:   func() (bool, error) { return true, nil },
		OnIteration: func(i int) { sawIteration = i },
		Children: func(c Ctx, signalComplete func()) []reconciler.Element {
			rendered = true
			require.Equal(t, 0, c.Iteration)
			return nil
		},
	})

	rec := reconciler.New(nil, nil)
	require.NoError(t, rec.Render(el))
	require.Equal(t, 0, sawIteration)
	require.True(t, rendered)

	status, _, err := ctx.Store.Get("while.loop2.status")
	require.NoError(t, err)
	require.Equal(t, "running", status)
}

func TestWhile_SignalCompleteAdvancesIterationUntilMax(t *testing.T) {
	ctx := newTestCtx(t)
	var signal func()
	var completedReason string
	var completedAt int

	maxIterations := 2
	el := While(ctx, WhileProps{
		ID:            "loop3",
		Condition:     func() (bool, error) { return true, nil },
		MaxIterations: &maxIterations,
		OnComplete: func(iterations int, reason string) {
			completedAt = iterations
			completedReason = reason
		},
		Children: func(c Ctx, signalComplete func()) []reconciler.Element {
			signal = signalComplete
			return nil
		},
	})

	rec := reconciler.New(nil, nil)
	require.NoError(t, rec.Render(el))
	require.NotNil(t, signal)

	signal() // iteration 0 -> 1, still below maxIterations(2)
	status, _, _ := ctx.Store.Get("while.loop3.status")
	require.Equal(t, "running", status)

	// A fresh render re-reads the now-advanced iteration from the store and
	// captures an updated signalComplete closure over it, the same way the
	// engine re-renders once per tick between external signalComplete calls.
	require.NoError(t, rec.Render(el))
	require.NotNil(t, signal)

	signal() // iteration 1 -> 2 == maxIterations -> complete("max")
	require.Equal(t, "max", completedReason)
	require.Equal(t, 2, completedAt)
}

func TestWhile_ExplicitZeroMaxIterationsCompletesImmediately(t *testing.T) {
	ctx := newTestCtx(t)
	var completedIterations int
	var completedReason string
	conditionCalls := 0
	childrenRendered := false

	zero := 0
	el := While(ctx, WhileProps{
		ID:            "loop4",
		Condition:     func() (bool, error) { conditionCalls++; return true, nil },
		MaxIterations: &zero,
		OnComplete: func(iterations int, reason string) {
			completedIterations = iterations
			completedReason = reason
		},
		Children: func(c Ctx, signalComplete func()) []reconciler.Element {
			childrenRendered = true
			return nil
		},
	})

	rec := reconciler.New(nil, nil)
	require.NoError(t, rec.Render(el))
	require.Equal(t, 0, completedIterations)
	require.Equal(t, "condition", completedReason)
	require.False(t, childrenRendered)

	status, ok, err := ctx.Store.Get("while.loop4.status")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "complete", status)
}

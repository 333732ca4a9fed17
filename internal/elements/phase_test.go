package elements

import (
	"testing"

	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/smithers-run/smithers/internal/store"
	"github.com/stretchr/testify/require"
)

func TestPhases_SequentialPhasesAdvanceOneAtATime(t *testing.T) {
	ctx := newTestCtx(t)
	var started []string

	specs := []PhaseProps{
		{Name: "plan", OnStart: func() { started = append(started, "plan") }},
		{Name: "build", OnStart: func() { started = append(started, "build") }},
	}

	rec := reconciler.New(nil, nil)

	render := func() {
		reg := NewPhaseRegistry(ctx)
		els := Phases(ctx, reg, specs)
		require.NoError(t, rec.Render(reconciler.Element{Type: "Fragment", Children: els}))
	}

	render()
	idx, err := ctx.Store.CurrentPhaseIndex()
	require.NoError(t, err)
	require.Equal(t, 1, idx)
	require.Equal(t, []string{"plan"}, started)

	render()
	idx, err = ctx.Store.CurrentPhaseIndex()
	require.NoError(t, err)
	require.Equal(t, 2, idx)
	require.Equal(t, []string{"plan", "build"}, started)
}

func TestPhase_SkipIfAdvancesWithoutRunning(t *testing.T) {
	ctx := newTestCtx(t)
	var ranBuild bool

	specs := []PhaseProps{
		{Name: "optional", SkipIf: func() (bool, error) { return true, nil }},
		{Name: "build", OnStart: func() { ranBuild = true }},
	}

	reg := NewPhaseRegistry(ctx)
	els := Phases(ctx, reg, specs)
	rec := reconciler.New(nil, nil)
	require.NoError(t, rec.Render(reconciler.Element{Type: "Fragment", Children: els}))

	idx, err := ctx.Store.CurrentPhaseIndex()
	require.NoError(t, err)
	require.Equal(t, 1, idx)
	require.False(t, ranBuild)
}

func TestPhase_DirectChildrenCompleteViaZeroStepFallback(t *testing.T) {
	ctx := newTestCtx(t)
	var completed bool

	specs := []PhaseProps{
		{
			Name:       "notify",
			OnComplete: func() { completed = true },
			Direct: func(c Ctx) []reconciler.Element {
				started, _, _ := c.Store.Get("notify.task.started")
				if started != "1" {
					_, _ = c.Store.StartTask("exec-1", c.Iteration, c.Scope.ScopeID.String(), "agent", "ping")
					_ = c.Store.Set("notify.task.started", "1", "spawned once")
				}
				return nil
			},
		},
	}

	reg := NewPhaseRegistry(ctx)
	els := Phases(ctx, reg, specs)
	rec := reconciler.New(nil, nil)
	require.NoError(t, rec.Render(reconciler.Element{Type: "Fragment", Children: els}))
	require.False(t, completed)

	running, err := ctx.Store.RunningByIteration(0)
	require.NoError(t, err)
	require.Equal(t, 1, running)

	// Complete the spawned task out of band, then re-render: the registry's
	// zero-step fallback should now see running==0 and fire onComplete.
	total, err := ctx.Store.TotalByIteration(0)
	require.NoError(t, err)
	require.Equal(t, 1, total)

	reg2 := NewPhaseRegistry(ctx)
	els2 := Phases(ctx, reg2, specs)

	require.NoError(t, completeAllRunningTasksForTest(ctx))
	require.NoError(t, rec.Render(reconciler.Element{Type: "Fragment", Children: els2}))
	require.True(t, completed)
}

func TestPhase_NestedInsideAnotherPhaseIsAuthorError(t *testing.T) {
	ctx := newTestCtx(t)

	specs := []PhaseProps{
		{
			Name: "outer",
			Direct: func(c Ctx) []reconciler.Element {
				innerReg := NewPhaseRegistry(c)
				return Phases(c, innerReg, []PhaseProps{{Name: "inner"}})
			},
		},
	}

	reg := NewPhaseRegistry(ctx)
	els := Phases(ctx, reg, specs)
	rec := reconciler.New(nil, nil)

	err := rec.Render(reconciler.Element{Type: "Fragment", Children: els})
	require.Error(t, err)
	var authorErr *store.AuthorError
	require.ErrorAs(t, err, &authorErr)
	require.Equal(t, "Phase", authorErr.Element)
}

func completeAllRunningTasksForTest(ctx Ctx) error {
	_, err := ctx.Store.DB.Exec(`UPDATE tasks SET status = 'completed', ended_at = CURRENT_TIMESTAMP WHERE status = 'running'`)
	return err
}

package elements

import (
	"context"
	"testing"
	"time"

	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/stretchr/testify/require"
)

type fakeVCS struct {
	snapshotN int
	commitN   int
}

func (f *fakeVCS) Snapshot(ctx context.Context) (string, error) {
	f.snapshotN++
	return "snap-1", nil
}

func (f *fakeVCS) Commit(ctx context.Context, message string) (string, error) {
	f.commitN++
	return "commit-1", nil
}

func TestStepRegistry_SequentialStepsCompleteInOrder(t *testing.T) {
	ctx := newTestCtx(t)
	var completedAll bool
	reg := NewStepRegistry(ctx, "build", false, func() { completedAll = true })

	specs := []StepProps{
		{Name: "compile", Children: nil},
		{Name: "test", Children: nil},
	}

	els := Steps(ctx, reg, nil, specs)
	require.Len(t, els, 2)
	require.Equal(t, 2, reg.TotalSteps())

	rec := reconciler.New(nil, nil)
	root := reconciler.Element{Type: "Fragment", Children: els}

	// First render activates+completes "compile" (allow-empty, no children).
	require.NoError(t, rec.Render(root))
	idx, err := ctx.Store.CurrentStepIndex("build")
	require.NoError(t, err)
	require.Equal(t, 1, idx)
	require.False(t, completedAll)

	// Re-register to get a registry reflecting the same names/order, as the
	// owning Phase would on the next render.
	reg2 := NewStepRegistry(ctx, "build", false, func() { completedAll = true })
	els2 := Steps(ctx, reg2, nil, specs)
	root2 := reconciler.Element{Type: "Fragment", Children: els2}
	require.NoError(t, rec.Render(root2))

	idx2, err := ctx.Store.CurrentStepIndex("build")
	require.NoError(t, err)
	require.Equal(t, 2, idx2)
	require.True(t, completedAll)
}

func TestStepRegistry_ParallelStepsCompleteIndependently(t *testing.T) {
	ctx := newTestCtx(t)
	var completedAll bool
	reg := NewStepRegistry(ctx, "fanout", true, func() { completedAll = true })

	specs := []StepProps{
		{Name: "a"},
		{Name: "b"},
	}
	els := Steps(ctx, reg, nil, specs)
	root := reconciler.Element{Type: "Fragment", Children: els}

	rec := reconciler.New(nil, nil)
	require.NoError(t, rec.Render(root))

	doneA, err := ctx.Store.IsParallelStepComplete(reg.RegistryID(), 0)
	require.NoError(t, err)
	doneB, err := ctx.Store.IsParallelStepComplete(reg.RegistryID(), 1)
	require.NoError(t, err)
	require.True(t, doneA)
	require.True(t, doneB)
	require.True(t, completedAll)
}

func TestStepRegistry_ZeroStepFallbackWaitsForTaskThenRunningZero(t *testing.T) {
	ctx := newTestCtx(t)
	var completedAll bool
	reg := NewStepRegistry(ctx, "direct", false, func() { completedAll = true })

	done, err := reg.allComplete()
	require.NoError(t, err)
	require.False(t, done)

	taskID, err := ctx.Store.StartTask("exec-1", 0, ctx.Scope.ScopeID.String(), "agent", "direct-call")
	require.NoError(t, err)

	done, err = reg.allComplete()
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, ctx.Store.CompleteTask(taskID))

	require.NoError(t, reg.CheckAllComplete())
	require.True(t, completedAll)
}

func TestStep_SnapshotBeforeAndCommitAfterInvokeVCS(t *testing.T) {
	ctx := newTestCtx(t)
	vcs := &fakeVCS{}
	var started, completed bool

	reg := NewStepRegistry(ctx, "release", false, nil)
	el := Step(ctx, reg, vcs, StepProps{
		Name:           "tag",
		SnapshotBefore: true,
		CommitAfter:    true,
		CommitMessage:  "release",
		OnStart:        func() { started = true },
		OnComplete:     func() { completed = true },
	})

	// Snapshot and Commit dispatch from OnMount in a goroutine, so the step
	// needs several renders, with those goroutines finishing in between,
	// to move from snapshot-before through started and commit to completed.
	rec := reconciler.New(nil, nil)
	deadline := time.Now().Add(2 * time.Second)
	for !completed && time.Now().Before(deadline) {
		require.NoError(t, rec.Render(el))
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, started)
	require.True(t, completed)
	require.Equal(t, 1, vcs.snapshotN)
	require.Equal(t, 1, vcs.commitN)
}

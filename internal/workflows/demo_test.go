package workflows

import (
	"testing"
	"time"

	"github.com/smithers-run/smithers/internal/elements"
	"github.com/smithers-run/smithers/internal/engine"
	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/reactive"
	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/smithers-run/smithers/internal/scope"
	"github.com/smithers-run/smithers/internal/store"
	"github.com/stretchr/testify/require"
)

func TestDemoWorkflow_RunsToCompletion(t *testing.T) {
	db, err := store.InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := reactive.NewStore(db)

	execID, err := s.CreateExecution("demo", "test")
	require.NoError(t, err)

	build, ok := Lookup("demo")
	require.True(t, ok)

	ctx := elements.Ctx{Store: s, Scope: scope.Root(), ExecID: execID}
	eng := engine.New(s, func() reconciler.Element {
		return build(ctx)
	}, nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, eng.Tick())
		stopped, err := eng.StopRequested()
		require.NoError(t, err)
		if stopped {
			break
		}
	}

	stopped, err := eng.StopRequested()
	require.NoError(t, err)
	require.True(t, stopped, "demo workflow did not reach a terminal state in time")

	exec, err := s.GetExecution(execID)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionCompleted, exec.Status)
}

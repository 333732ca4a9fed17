// Package test exercises Smithers' scheduling elements end to end: real
// SQLite-backed stores, real reconciler renders, and the mock external
// collaborators in internal/adapters standing in for a live agent, VCS, and
// shell. Each test below narrates one concrete scenario a workflow author
// can hit in production.
package test

import (
	"context"
	"testing"
	"time"

	"github.com/smithers-run/smithers/internal/adapters"
	"github.com/smithers-run/smithers/internal/elements"
	"github.com/smithers-run/smithers/internal/engine"
	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/reactive"
	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/smithers-run/smithers/internal/scope"
	"github.com/smithers-run/smithers/internal/store"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) *reactive.Store {
	t.Helper()
	db, err := store.InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return reactive.NewStore(db)
}

func newExecCtx(t *testing.T, s *reactive.Store, name string) elements.Ctx {
	t.Helper()
	execID, err := s.CreateExecution(name, "test")
	require.NoError(t, err)
	return elements.Ctx{Store: s, Scope: scope.Root(), ExecID: execID}
}

// tickUntilStopped runs the engine's tick loop directly (bypassing the
// inter-tick Clock that Engine.Run honors) up to maxTicks times, returning
// once a stop has been requested.
func tickUntilStopped(t *testing.T, e *engine.Engine, maxTicks int) bool {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		stopped, err := e.StopRequested()
		require.NoError(t, err)
		if stopped {
			return true
		}
		require.NoError(t, e.Tick())
	}
	stopped, err := e.StopRequested()
	require.NoError(t, err)
	return stopped
}

// Scenario (a): three sequential phases with no Step wrapping the first and
// last, a Step-bearing middle phase. Each phase must advance exactly once.
func TestScenario_SequentialPhasesRunInOrder(t *testing.T) {
	s := newMemStore(t)
	ctx := newExecCtx(t, s, "sequential-phases")
	runner := adapters.NewMockCommandRunner()

	var order []string
	build := func() reconciler.Element {
		reg := elements.NewPhaseRegistry(ctx)
		phases := elements.Phases(ctx, reg, []elements.PhaseProps{
			{Name: "collect", OnStart: func() { order = append(order, "collect") }},
			{
				Name:    "build",
				OnStart: func() { order = append(order, "build") },
				Steps: []elements.StepProps{
					{Name: "compile", Children: func(ctx elements.Ctx) []reconciler.Element {
						return []reconciler.Element{elements.Command(ctx, runner, elements.CommandProps{ID: "compile", Cmd: "true"})}
					}},
				},
			},
			{Name: "ship", OnStart: func() { order = append(order, "ship") }},
		})
		if idx, err := reg.CurrentIndex(); err == nil && idx >= reg.TotalPhases() {
			return elements.Completed(ctx, "all phases ran", "phases complete")
		}
		return reconciler.Element{Type: "Fragment", Children: phases}
	}

	e := engine.New(s, build, nil)
	require.True(t, tickUntilStopped(t, e, 20))
	require.Equal(t, []string{"collect", "build", "ship"}, order)

	exec, err := s.GetExecution(ctx.ExecID)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionCompleted, exec.Status)
}

// Scenario (b): a phase with three Steps running in parallel, each gated by
// its own Command, completing only once every Step has finished.
func TestScenario_ParallelStepsAllCompleteBeforePhaseAdvances(t *testing.T) {
	s := newMemStore(t)
	ctx := newExecCtx(t, s, "parallel-steps")

	runners := map[string]*adapters.MockCommandRunner{
		"lint": adapters.NewMockCommandRunner(),
		"test": adapters.NewMockCommandRunner(),
		"vet":  adapters.NewMockCommandRunner(),
	}

	build := func() reconciler.Element {
		reg := elements.NewPhaseRegistry(ctx)
		phases := elements.Phases(ctx, reg, []elements.PhaseProps{
			{
				Name:     "checks",
				Parallel: true,
				Steps: []elements.StepProps{
					{Name: "lint", Children: func(c elements.Ctx) []reconciler.Element {
						return []reconciler.Element{elements.Command(c, runners["lint"], elements.CommandProps{ID: "lint", Cmd: "true"})}
					}},
					{Name: "test", Children: func(c elements.Ctx) []reconciler.Element {
						return []reconciler.Element{elements.Command(c, runners["test"], elements.CommandProps{ID: "test", Cmd: "true"})}
					}},
					{Name: "vet", Children: func(c elements.Ctx) []reconciler.Element {
						return []reconciler.Element{elements.Command(c, runners["vet"], elements.CommandProps{ID: "vet", Cmd: "true"})}
					}},
				},
			},
		})
		if idx, err := reg.CurrentIndex(); err == nil && idx >= reg.TotalPhases() {
			return elements.Completed(ctx, "checks done", "phases complete")
		}
		return reconciler.Element{Type: "Fragment", Children: phases}
	}

	e := engine.New(s, build, nil)
	require.True(t, tickUntilStopped(t, e, 20))

	exec, err := s.GetExecution(ctx.ExecID)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionCompleted, exec.Status)
}

// Scenario (c): a Human approval gate resolved mid-run, in the same
// process, with no crash involved — the render loop simply keeps hitting a
// pending gate until an operator resolves it out of band.
func TestScenario_HumanGateResumesAfterApproval(t *testing.T) {
	s := newMemStore(t)
	ctx := newExecCtx(t, s, "human-gate")

	var approved bool
	build := func() reconciler.Element {
		el, err := elements.Human(ctx, elements.HumanProps{
			ID:      "ship-it",
			Message: "ship to prod?",
			OnApprove: func(response string) {
				approved = true
			},
		})
		require.NoError(t, err)
		if approved {
			return elements.Completed(ctx, "shipped", "approved")
		}
		return el
	}

	e := engine.New(s, build, nil)
	require.NoError(t, e.Tick())
	require.False(t, approved)

	rowID, ok, err := s.Get(store.HumanStateKey("ship-it"))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.ResolveHumanInteraction(rowID, models.HumanApproved, "go"))

	require.True(t, tickUntilStopped(t, e, 10))
	require.True(t, approved)
}

// Scenario (d): a stop request observed mid-iteration. The loop body
// advances through one full iteration, Engine.RequestStop is called
// out-of-band (the same mechanism `smithers stop` uses), and the engine
// must honor it before a further iteration starts even though the While's
// own condition would otherwise keep it running indefinitely.
func TestScenario_StopRequestHaltsRalphMidIteration(t *testing.T) {
	s := newMemStore(t)
	ctx := newExecCtx(t, s, "stop-mid-iteration")

	var iterations int
	build := func() reconciler.Element {
		return elements.Ralph(ctx, "forever", 1000, func(i int) { iterations = i }, nil,
			func(c elements.Ctx, signalComplete func()) []reconciler.Element {
				signalComplete()
				return nil
			})
	}

	e := engine.New(s, build, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Tick())
	}
	require.Greater(t, iterations, 0)

	require.NoError(t, e.RequestStop("operator requested stop"))
	stopped, err := e.StopRequested()
	require.NoError(t, err)
	require.True(t, stopped)

	iterationsAtStop := iterations
	require.NoError(t, e.Tick())
	require.Equal(t, iterationsAtStop, iterations, "a render after stop must not start a further iteration's work")
}

// slowRunner blocks until ctx is cancelled, so Command's Timeout plumbing
// is what ends the invocation rather than the runner returning on its own.
type slowRunner struct{}

func (slowRunner) Run(ctx context.Context, cmd string, args []string, cwd string, env []string) (elements.CommandResult, error) {
	select {
	case <-ctx.Done():
		return elements.CommandResult{Success: false}, ctx.Err()
	case <-time.After(5 * time.Second):
		return elements.CommandResult{Success: true}, nil
	}
}

// Scenario (e): a Command with a short Timeout against a runner that never
// finishes on its own must report failure rather than hang the workflow.
func TestScenario_CommandTimeoutReportsFailure(t *testing.T) {
	s := newMemStore(t)
	ctx := newExecCtx(t, s, "command-timeout")

	var onErrCalled bool
	build := func() reconciler.Element {
		return elements.Command(ctx, slowRunner{}, elements.CommandProps{
			ID:      "slow",
			Cmd:     "sleep-forever",
			Timeout: 50 * time.Millisecond,
			OnError: func(err error) { onErrCalled = true },
		})
	}

	e := engine.New(s, build, nil)
	require.NoError(t, e.Tick())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !onErrCalled {
		require.NoError(t, e.Tick())
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, onErrCalled, "the command's OnError must fire once its context deadline is exceeded")
}

// Scenario (f): a Phase with no Steps at all, its Direct children a single
// Agent call, completing via the zero-step task-count fallback rather than
// any StepRegistry-driven advancement.
func TestScenario_PhaseWithoutStepsCompletesViaSingleAgentCall(t *testing.T) {
	s := newMemStore(t)
	ctx := newExecCtx(t, s, "phase-without-steps")
	agent := adapters.NewMockAgent().WithResponse("summarize the release", "release summary: all green")

	var gotOutput string
	build := func() reconciler.Element {
		reg := elements.NewPhaseRegistry(ctx)
		phases := elements.Phases(ctx, reg, []elements.PhaseProps{
			{
				Name: "summarize",
				Direct: func(c elements.Ctx) []reconciler.Element {
					return []reconciler.Element{
						elements.Agent(c, agent, elements.AgentProps{
							ID:      "summarize",
							Request: elements.AgentRequest{Prompt: "summarize the release"},
							OnFinished: func(r elements.AgentResult) {
								gotOutput = r.Output
							},
						}),
					}
				},
			},
		})
		if idx, err := reg.CurrentIndex(); err == nil && idx >= reg.TotalPhases() {
			return elements.Completed(ctx, "summarized", "phases complete")
		}
		return reconciler.Element{Type: "Fragment", Children: phases}
	}

	e := engine.New(s, build, nil)
	require.True(t, tickUntilStopped(t, e, 20))
	require.Equal(t, "release summary: all green", gotOutput)

	exec, err := s.GetExecution(ctx.ExecID)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionCompleted, exec.Status)
}

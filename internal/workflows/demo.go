package workflows

import (
	"github.com/smithers-run/smithers/internal/adapters"
	"github.com/smithers-run/smithers/internal/elements"
	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/reconciler"
)

func init() {
	Register("demo", buildDemo)
}

// buildDemo is the scripted, fully non-interactive workflow `smithers run
// demo` drives: a three-phase plan/build/ship loop against the mock
// external collaborators in internal/adapters, so it terminates on its own
// without a live LLM, subprocess, or human in the loop. It exercises a
// Phase with no declared Steps (plan), a Phase with sequential Steps that
// snapshot/commit around themselves (build), and a standalone Commit
// (ship), then ends the execution.
func buildDemo(ctx elements.Ctx) reconciler.Element {
	status, _, err := ctx.Store.Get("while.demo.status")
	if err == nil && status == models.WhileComplete {
		return elements.Completed(ctx, "demo workflow finished", "condition")
	}

	agent := adapters.NewMockAgent().WithResponse("plan the release", "plan: auth, tests, deploy")
	runner := adapters.NewMockCommandRunner()
	vcs := adapters.NewMockVCS()

	return elements.Ralph(ctx, "demo", 1, nil, nil, func(ctx elements.Ctx, signalComplete func()) []reconciler.Element {
		reg := elements.NewPhaseRegistry(ctx)
		phases := elements.Phases(ctx, reg, []elements.PhaseProps{
			{
				Name: "plan",
				Direct: func(ctx elements.Ctx) []reconciler.Element {
					return []reconciler.Element{
						elements.Agent(ctx, agent, elements.AgentProps{
							ID:      "plan-release",
							Request: elements.AgentRequest{Prompt: "plan the release"},
						}),
					}
				},
			},
			{
				Name: "build",
				VCS:  vcs,
				Steps: []elements.StepProps{
					{
						Name:           "implement",
						SnapshotBefore: true,
						Children: func(ctx elements.Ctx) []reconciler.Element {
							return []reconciler.Element{
								elements.Command(ctx, runner, elements.CommandProps{
									ID:  "implement",
									Cmd: "true",
								}),
							}
						},
					},
					{
						Name:          "verify",
						CommitAfter:   true,
						CommitMessage: "demo: verify",
						Children: func(ctx elements.Ctx) []reconciler.Element {
							return []reconciler.Element{
								elements.Command(ctx, runner, elements.CommandProps{
									ID:  "verify",
									Cmd: "true",
								}),
							}
						},
					},
				},
			},
			{
				Name: "ship",
				Direct: func(ctx elements.Ctx) []reconciler.Element {
					return []reconciler.Element{
						elements.Commit(ctx, vcs, elements.CommitProps{
							ID:      "ship",
							Message: "demo: ship release",
						}),
					}
				},
			},
		})

		if idx, err := reg.CurrentIndex(); err == nil && idx >= reg.TotalPhases() {
			signalComplete()
		}

		return phases
	})
}

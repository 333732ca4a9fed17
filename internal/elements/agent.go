package elements

import (
	"context"

	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/reconciler"
)

// AgentResult is what an AgentAdapter reports back once an invocation
// resolves.
type AgentResult struct {
	Output  string
	Success bool
}

// AgentAdapter is the external LLM collaborator: the engine
// only ever asks it to run one prompt to completion and records the final
// output, never interpreting intermediate tool calls itself.
type AgentAdapter interface {
	Run(ctx context.Context, req AgentRequest, progress func(AgentProgress)) (AgentResult, error)
}

// AgentRequest configures a single agent invocation.
type AgentRequest struct {
	Prompt       string
	Model        string
	Mode         string
	MaxTurns     int
	SystemPrompt string
}

// AgentProgress is an intermediate notification an AgentAdapter may emit
// while an invocation is still in flight (tool calls, partial output).
type AgentProgress struct {
	ToolCall string
	Partial  string
}

// AgentProps is an Agent leaf's author-facing configuration.
type AgentProps struct {
	ID         string
	Request    AgentRequest
	OnProgress func(AgentProgress)
	OnFinished func(AgentResult)
	OnError    func(error)
}

// Agent runs an AgentAdapter invocation exactly once per durable id,
// following the same live-process-only OnMount plus durable-completion-
// marker shape as Command: the invocation itself cannot be resumed across
// a restart, but a result already recorded before a restart is never
// re-run.
func Agent(ctx Ctx, adapter AgentAdapter, p AgentProps) reconciler.Element {
	keyPrefix := "agent." + p.ID
	stageKey := keyPrefix + ".stage"
	taskKey := keyPrefix + ".taskId"
	firedKey := keyPrefix + ".fired"
	outputKey := keyPrefix + ".output"
	successKey := keyPrefix + ".success"

	return reconciler.Element{
		Type:  "Agent",
		Key:   p.ID,
		Props: reconciler.Props{"id": p.ID, "model": p.Request.Model},
		Component: func(c *reconciler.Cursor, props reconciler.Props) (reconciler.Element, error) {
			if !ctx.Scope.Enabled {
				return reconciler.Element{}, nil
			}

			stage, _, err := ctx.Store.Get(stageKey)
			if err != nil {
				return reconciler.Element{}, err
			}

			switch stage {
			case "":
				c.OnMount(func() {
					go runAgentAsync(ctx, adapter, p, stageKey, taskKey, outputKey, successKey)
				})
				return reconciler.Element{}, nil
			case "done":
				fired, _, err := ctx.Store.Get(firedKey)
				if err != nil {
					return reconciler.Element{}, err
				}
				if fired == "1" {
					return reconciler.Element{}, nil
				}
				if err := ctx.Store.Set(firedKey, "1", "agent result delivered"); err != nil {
					return reconciler.Element{}, err
				}
				output, _, _ := ctx.Store.Get(outputKey)
				successStr, _, _ := ctx.Store.Get(successKey)
				result := AgentResult{Output: output, Success: successStr == "true"}
				if result.Success {
					if p.OnFinished != nil {
						p.OnFinished(result)
					}
				} else if p.OnError != nil {
					p.OnError(&AgentError{ID: p.ID})
				}
				return reconciler.Element{}, nil
			default:
				return reconciler.Element{}, nil
			}
		},
	}
}

// AgentError reports an agent invocation that did not complete
// successfully.
type AgentError struct {
	ID string
}

func (e *AgentError) Error() string {
	return "smithers: agent " + e.ID + " did not complete successfully"
}

func runAgentAsync(ctx Ctx, adapter AgentAdapter, p AgentProps, stageKey, taskKey, outputKey, successKey string) {
	_ = ctx.Store.Set(stageKey, "running", "agent started")
	taskID, err := ctx.Store.StartTask(ctx.ExecID, ctx.Iteration, ctx.Scope.ScopeID.String(), models.ComponentAgent, p.Request.Prompt)
	if err == nil {
		_ = ctx.Store.Set(taskKey, taskID, "agent started")
	}

	result, runErr := adapter.Run(context.Background(), p.Request, func(progress AgentProgress) {
		if p.OnProgress != nil {
			p.OnProgress(progress)
		}
	})
	if runErr != nil {
		result.Success = false
	}

	_ = ctx.Store.Set(outputKey, result.Output, "agent result")
	_ = ctx.Store.Set(successKey, boolString(result.Success), "agent result")

	if taskID != "" {
		if result.Success {
			_ = ctx.Store.CompleteTask(taskID)
		} else {
			_ = ctx.Store.FailTask(taskID)
		}
	}
	_ = ctx.Store.Set(stageKey, "done", "agent finished")
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

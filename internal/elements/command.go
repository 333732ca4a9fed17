package elements

import (
	"context"
	"strconv"
	"time"

	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/reconciler"
)

// CommandResult is what a CommandRunner reports back for one invocation.
type CommandResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMS int64
	Success    bool
}

// CommandRunner is the external shell-command collaborator. It
// is given a deadline via ctx rather than a raw duration so the concrete
// implementation owns the exact escalation (SIGTERM, then SIGKILL).
type CommandRunner interface {
	Run(ctx context.Context, cmd string, args []string, cwd string, env []string) (CommandResult, error)
}

// CommandProps is a Command leaf's author-facing configuration.
type CommandProps struct {
	ID         string
	Cmd        string
	Args       []string
	Cwd        string
	Env        []string
	Timeout    time.Duration
	OnFinished func(CommandResult)
	OnError    func(error)
	Children   func(ctx Ctx, result CommandResult) []reconciler.Element
}

// Command runs an external shell command exactly once per durable id.
// Unlike Step/Phase/While, an in-flight Command cannot be resumed across a
// process restart — the subprocess dies with it — so activation is gated
// by a live-process-only OnMount rather than a restart-durable "started"
// marker; only the *completed* result is durable, so a restarted process
// that finds the command already done will not re-run it, and one that
// finds it not yet done will simply re-invoke it.
func Command(ctx Ctx, runner CommandRunner, p CommandProps) reconciler.Element {
	keyPrefix := "command." + p.ID
	stageKey := keyPrefix + ".stage"
	taskKey := keyPrefix + ".taskId"
	firedKey := keyPrefix + ".fired"
	exitCodeKey := keyPrefix + ".exitCode"
	successKey := keyPrefix + ".success"
	durationKey := keyPrefix + ".durationMs"
	stdoutKey := keyPrefix + ".stdout"
	stderrKey := keyPrefix + ".stderr"

	return reconciler.Element{
		Type:  "Command",
		Key:   p.ID,
		Props: reconciler.Props{"id": p.ID, "cmd": p.Cmd},
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
					go runCommandAsync(ctx, runner, p, stageKey, taskKey, exitCodeKey, successKey, durationKey, stdoutKey, stderrKey)
				})
				return reconciler.Element{}, nil
			case "running":
				return reconciler.Element{}, nil
			case "done":
				result := loadCommandResult(ctx, exitCodeKey, successKey, durationKey, stdoutKey, stderrKey)
				fired, _, err := ctx.Store.Get(firedKey)
				if err != nil {
					return reconciler.Element{}, err
				}
				if fired != "1" {
					if err := ctx.Store.Set(firedKey, "1", "command result delivered"); err != nil {
						return reconciler.Element{}, err
					}
					if result.Success {
						if p.OnFinished != nil {
							p.OnFinished(result)
						}
					} else if p.OnError != nil {
						p.OnError(&CommandError{Cmd: p.Cmd, Result: result})
					}
				}
				if p.Children == nil {
					return reconciler.Element{}, nil
				}
				return reconciler.Element{Type: "Fragment", Children: p.Children(ctx, result)}, nil
			default:
				return reconciler.Element{}, nil
			}
		},
	}
}

// CommandError reports a non-zero-exit or spawn failure.
type CommandError struct {
	Cmd    string
	Result CommandResult
}

func (e *CommandError) Error() string {
	return "smithers: command " + e.Cmd + " exited " + strconv.Itoa(e.Result.ExitCode)
}

func runCommandAsync(ctx Ctx, runner CommandRunner, p CommandProps, stageKey, taskKey, exitCodeKey, successKey, durationKey, stdoutKey, stderrKey string) {
	_ = ctx.Store.Set(stageKey, "running", "command started")
	taskID, err := ctx.Store.StartTask(ctx.ExecID, ctx.Iteration, ctx.Scope.ScopeID.String(), models.ComponentCommand, p.Cmd)
	if err == nil {
		_ = ctx.Store.Set(taskKey, taskID, "command started")
	}

	runCtx := context.Background()
	var cancel context.CancelFunc
	if p.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, p.Timeout)
		defer cancel()
	}

	result, runErr := runner.Run(runCtx, p.Cmd, p.Args, p.Cwd, p.Env)
	if runErr != nil {
		result.Success = false
	}

	_ = ctx.Store.Set(exitCodeKey, strconv.Itoa(result.ExitCode), "command result")
	_ = ctx.Store.Set(successKey, strconv.FormatBool(result.Success), "command result")
	_ = ctx.Store.Set(durationKey, strconv.FormatInt(result.DurationMS, 10), "command result")
	_ = ctx.Store.Set(stdoutKey, result.Stdout, "command result")
	_ = ctx.Store.Set(stderrKey, result.Stderr, "command result")

	if taskID != "" {
		if result.Success {
			_ = ctx.Store.CompleteTask(taskID)
		} else {
			_ = ctx.Store.FailTask(taskID)
		}
	}
	_ = ctx.Store.Set(stageKey, "done", "command finished")
}

func loadCommandResult(ctx Ctx, exitCodeKey, successKey, durationKey, stdoutKey, stderrKey string) CommandResult {
	exitCodeStr, _, _ := ctx.Store.Get(exitCodeKey)
	successStr, _, _ := ctx.Store.Get(successKey)
	durationStr, _, _ := ctx.Store.Get(durationKey)
	stdout, _, _ := ctx.Store.Get(stdoutKey)
	stderr, _, _ := ctx.Store.Get(stderrKey)

	exitCode, _ := strconv.Atoi(exitCodeStr)
	success, _ := strconv.ParseBool(successStr)
	duration, _ := strconv.ParseInt(durationStr, 10, 64)

	return CommandResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode, DurationMS: duration, Success: success}
}

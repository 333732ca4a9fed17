package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smithers-run/smithers/internal/elements"
	"github.com/smithers-run/smithers/internal/engine"
	"github.com/smithers-run/smithers/internal/output"
	"github.com/smithers-run/smithers/internal/reactive"
	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/smithers-run/smithers/internal/scope"
	"github.com/smithers-run/smithers/internal/workflows"
)

// NewRunCmd creates the command that loads a registered workflow by name,
// mounts it against the persistent store, and pumps the engine's tick loop
// until the root End element requests a stop or the process is signaled.
func NewRunCmd() *cobra.Command {
	var sourceLabel string

	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a registered workflow to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			build, ok := workflows.Lookup(name)
			if !ok {
				return cmdErr(fmt.Errorf("run: unknown workflow %q (available: %v)", name, workflows.Names()))
			}
			return runWorkflow(cmd.Context(), name, sourceLabel, build)
		},
	}

	cmd.Flags().StringVar(&sourceLabel, "source", "cli", "Label recorded on the execution row")
	return cmd
}

// runWorkflow resumes the single open execution if one exists (so a killed
// or crashed run picks back up against the same rows on restart, per the
// reconciler's restart-safety contract) or starts a fresh one, then pumps
// Engine.Run until End requests a stop or the process receives SIGINT/SIGTERM.
func runWorkflow(ctx context.Context, name, sourceLabel string, build workflows.Build) error {
	return withStore(func(s *reactive.Store) error {
		execID, resumed, err := resumeOrCreateExecution(s, name, sourceLabel)
		if err != nil {
			return err
		}
		slog.Info("run starting", "workflow", name, "exec_id", execID, "resumed", resumed)

		runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()

		wfCtx := elements.Ctx{Store: s, Scope: scope.Root(), ExecID: execID}
		eng := engine.New(s, func() reconciler.Element {
			return build(wfCtx)
		}, func(err error) {
			slog.Error("render error", "workflow", name, "exec_id", execID, "error", err.Error())
		})

		if err := eng.Run(runCtx); err != nil {
			return fmt.Errorf("run %s: %w", name, err)
		}

		exec, err := s.GetExecution(execID)
		if err != nil {
			return err
		}
		slog.Info("run finished", "workflow", name, "exec_id", execID, "status", exec.Status)

		return output.PrintSuccess(map[string]any{
			"workflow": name,
			"exec_id":  execID,
			"status":   exec.Status,
		})
	})
}

// resumeOrCreateExecution returns the sole currently-open execution if one
// exists, otherwise starts a new one. Mirrors the reconciler's single-open-
// execution-per-run assumption: a restarted process must resume the same
// row its prior invocation was driving, not start a disconnected second one.
func resumeOrCreateExecution(s *reactive.Store, name, sourceLabel string) (string, bool, error) {
	execID, ok, err := s.OpenExecution()
	if err != nil {
		return "", false, err
	}
	if ok {
		return execID, true, nil
	}
	execID, err = s.CreateExecution(name, sourceLabel)
	if err != nil {
		return "", false, err
	}
	return execID, false, nil
}

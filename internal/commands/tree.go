package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smithers-run/smithers/internal/elements"
	"github.com/smithers-run/smithers/internal/reactive"
	"github.com/smithers-run/smithers/internal/reconciler"
	"github.com/smithers-run/smithers/internal/scope"
	"github.com/smithers-run/smithers/internal/workflows"
)

// NewTreeCmd creates the command that renders a registered workflow once
// against the current database and prints its canonical serialized form,
// a read-only diagnostic that never advances any scheduler's cursor since
// one render of an already-mounted tree is itself idempotent.
func NewTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree <workflow>",
		Short: "Print the current serialized form of a workflow's element tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			build, ok := workflows.Lookup(name)
			if !ok {
				return cmdErr(fmt.Errorf("tree: unknown workflow %q (available: %v)", name, workflows.Names()))
			}
			return withStore(func(s *reactive.Store) error {
				execID, ok, err := s.OpenExecution()
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("tree: no open execution; run %q first", name)
				}
				// Deliberately never Dispose: that would unmount every
				// active node and fire their defensive OnUnmount callbacks,
				// which finish in-flight Steps/Phases as if the tree shape
				// had genuinely changed. This render exists only to print a
				// snapshot; the process exits right after.
				wfCtx := elements.Ctx{Store: s, Scope: scope.Root(), ExecID: execID}
				r := reconciler.New(s.Bus, nil)
				if err := r.Render(build(wfCtx)); err != nil {
					return err
				}
				fmt.Println(r.Root().ToSerializedForm())
				return nil
			})
		},
	}
	return cmd
}

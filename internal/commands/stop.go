package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/output"
	"github.com/smithers-run/smithers/internal/reactive"
)

// NewStopCmd creates the command that writes the reserved stop_requested
// state key a running `smithers run` process polls once per tick, the
// out-of-process equivalent of sending it SIGTERM.
func NewStopCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Request that a running execution stop after its current tick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *reactive.Store) error {
				execID, ok, err := s.OpenExecution()
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("stop: no open execution")
				}
				if err := s.Set(models.StateKeyStopRequested, reason, "stop requested via CLI"); err != nil {
					return err
				}
				return output.PrintSuccess(map[string]string{"exec_id": execID, "reason": reason})
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "cli stop", "Reason recorded alongside the stop request")
	return cmd
}

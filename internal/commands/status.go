package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/smithers-run/smithers/internal/app"
	"github.com/smithers-run/smithers/internal/models"
	"github.com/smithers-run/smithers/internal/output"
	"github.com/smithers-run/smithers/internal/store"
)

// NewStatusCmd creates the command that reports the resolved database path,
// the currently open execution (if any) and its phase/iteration cursor, and
// optionally a connectivity check.
func NewStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show smithers database status and the open execution, if any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(check)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Run a database connectivity check (SELECT 1)")
	return cmd
}

type dbStatus struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

type executionStatus struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Status            string `json:"status"`
	CurrentPhaseIndex int    `json:"current_phase_index"`
	RalphCount        int    `json:"ralph_count"`
}

type statusResult struct {
	DB        dbStatus         `json:"db"`
	Execution *executionStatus `json:"execution,omitempty"`
	QueryOK   *bool            `json:"query_ok,omitempty"`
	QueryErr  string           `json:"query_error,omitempty"`
}

func runStatus(check bool) error {
	dbPath, source, err := app.ResolveDBPathDetailed()
	if err != nil {
		return cmdErr(err)
	}

	result := statusResult{DB: dbStatus{Path: dbPath, Source: source}}

	db, closeDB, err := openDB()
	if err != nil {
		result.DB.Error = err.Error()
		return output.PrintSuccess(result)
	}
	defer closeDB()
	result.DB.OK = true

	if execID, ok, err := store.OpenExecution(db); err == nil && ok {
		if exec, err := store.GetExecution(db, execID); err == nil {
			idx, _ := store.CurrentPhaseIndex(db)
			ralph, _, _ := store.GetState(db, models.StateKeyRalphCount)
			result.Execution = &executionStatus{
				ID:                exec.ID,
				Name:              exec.Name,
				Status:            exec.Status,
				CurrentPhaseIndex: idx,
				RalphCount:        atoiOrZero(ralph),
			}
		}
	}

	if check {
		var one int
		qErr := db.QueryRowContext(context.Background(), "SELECT 1").Scan(&one)
		qOK := qErr == nil
		result.QueryOK = &qOK
		if qErr != nil {
			result.QueryErr = qErr.Error()
		}
	}

	return output.PrintSuccess(result)
}

func atoiOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

package cli

import (
	"fmt"
	"strconv"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/overnight"
	"github.com/spf13/cobra"
)

func newOvernightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overnight",
		Short: "Manage overnight runs",
	}
	cmd.AddCommand(newOvernightStatusCmd())
	cmd.AddCommand(newOvernightStartCmd())
	cmd.AddCommand(newOvernightStopCmd())
	cmd.AddCommand(newOvernightCompleteCmd())
	return cmd
}

func parseInt64Arg(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func newOvernightStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show overnight mode and queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			orch := &overnight.Orchestrator{Store: st}
			status, err := orch.Status(cmd.Context())
			if err != nil {
				return err
			}
			mode := "off"
			if status.OvernightMode {
				mode = "on"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Overnight mode: %s, queued: %d\n", mode, status.QueuedCount)
			if status.ActiveRun != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Active run %d since %s\n",
					status.ActiveRun.RunID, status.ActiveRun.StartedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newOvernightStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start an overnight run over the queued suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			orch := &overnight.Orchestrator{Store: st}
			run, err := orch.Start(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Overnight run %d started\n", run.RunID)
			return nil
		},
	}
}

func newOvernightStopCmd() *cobra.Command {
	var runID int64
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the active overnight run (safe to repeat)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			orch := &overnight.Orchestrator{Store: st}
			run, err := orch.Stop(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if run == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No active run; overnight mode cleared")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Run %d stopped\n", run.RunID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&runID, "run", 0, "Run ID (0 = the active run)")
	return cmd
}

func newOvernightCompleteCmd() *cobra.Command {
	var (
		runID          int64
		tasksStarted   int
		tasksCompleted int
		summary        string
	)
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Complete the active overnight run with counters and a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			orch := &overnight.Orchestrator{Store: st}
			run, err := orch.Complete(cmd.Context(), runID, tasksStarted, tasksCompleted, summary)
			if err != nil {
				return err
			}
			if run == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No active run")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Run %d completed (%d/%d tasks)\n",
				run.RunID, run.TasksCompleted, run.TasksStarted)
			return nil
		},
	}
	cmd.Flags().Int64Var(&runID, "run", 0, "Run ID (0 = the active run)")
	cmd.Flags().IntVar(&tasksStarted, "started", 0, "Tasks started during the run")
	cmd.Flags().IntVar(&tasksCompleted, "completed", 0, "Tasks completed during the run")
	cmd.Flags().StringVar(&summary, "summary", "", "Run summary")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/porter"
	"github.com/spf13/cobra"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskStatusCmd())
	cmd.AddCommand(newTaskImportCmd())
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			tasks, err := st.ListTasks(cmd.Context(), status, limit)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				agent := "-"
				if t.AssignedAgent != nil {
					agent = *t.AssignedAgent
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", t.TaskID, t.Status, agent, t.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, active, completed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max tasks to list")
	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var route bool
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task, optionally routed to the best-matching agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			title := args[0]
			var assigned *string
			if route {
				agents, err := st.ListEnabledAgents(cmd.Context())
				if err != nil {
					return err
				}
				decision := porter.New(orchestratorID(agents)).Route(title, agents)
				assigned = &decision.AgentID
			}
			taskID, err := st.CreateTask(cmd.Context(), title, assigned, nil)
			if err != nil {
				return err
			}
			if assigned != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %d (assigned to %s)\n", taskID, *assigned)
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %d\n", taskID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&route, "route", false, "Route the task through the capability matcher")
	return cmd
}

func newTaskStatusCmd() *cobra.Command {
	var taskID int64
	var status string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Set task status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID <= 0 || status == "" {
				return fmt.Errorf("--id and --status are required")
			}
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.UpdateTaskStatus(cmd.Context(), taskID, status); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %d status set to %q\n", taskID, status)
			return nil
		},
	}
	cmd.Flags().Int64Var(&taskID, "id", 0, "Task ID")
	cmd.Flags().StringVar(&status, "status", "", "New status (pending, active, completed)")
	return cmd
}

func newTaskImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <title>...",
		Short: "Bulk-create tasks, each routed to the best-matching agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			agents, err := st.ListEnabledAgents(cmd.Context())
			if err != nil {
				return err
			}
			router := porter.New(orchestratorID(agents))
			for _, title := range args {
				decision := router.Route(title, agents)
				agentID := decision.AgentID
				taskID, err := st.CreateTask(cmd.Context(), title, &agentID, nil)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %d -> %s: %s\n", taskID, agentID, title)
			}
			return nil
		},
	}
	return cmd
}

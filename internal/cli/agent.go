package cli

import (
	"fmt"
	"strings"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/config"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agent capability profiles",
	}
	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentAddCmd())
	cmd.AddCommand(newAgentEnableCmd(true))
	cmd.AddCommand(newAgentEnableCmd(false))
	cmd.AddCommand(newAgentRulesCmd())
	return cmd
}

func openStoreFromCmd(cmd *cobra.Command) (store.Store, error) {
	home := config.MustHomeFrom(cmd.Context())
	st, err := store.Open(home)
	if err != nil {
		return nil, err
	}
	if err := st.SeedDefaults(cmd.Context()); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// orchestratorID finds the routing fallback among the given agents.
func orchestratorID(agents []models.AgentProfile) string {
	for _, a := range agents {
		if a.IsOrchestrator {
			return a.AgentID
		}
	}
	return ""
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents and their handoff rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			agents, err := st.ListAgents(cmd.Context())
			if err != nil {
				return err
			}
			for _, a := range agents {
				state := "enabled"
				if !a.Enabled {
					state = "disabled"
				}
				role := ""
				if a.IsOrchestrator {
					role = " [orchestrator]"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)%s: %s\n",
					a.AgentID, a.Name, state, role, strings.Join(a.HandoffRules, ", "))
			}
			return nil
		},
	}
}

func newAgentAddCmd() *cobra.Command {
	var (
		name           string
		rules          []string
		isOrchestrator bool
	)
	cmd := &cobra.Command{
		Use:   "add <agent-id>",
		Short: "Register an agent profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			agentID := args[0]
			if name == "" {
				name = agentID
			}
			if err := st.CreateAgent(cmd.Context(), agentID, name, rules, isOrchestrator); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added agent %q\n", agentID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the agent ID)")
	cmd.Flags().StringSliceVar(&rules, "rules", nil, "Handoff rules (substrings the router matches)")
	cmd.Flags().BoolVar(&isOrchestrator, "orchestrator", false, "Mark as the orchestrator (router fallback)")
	return cmd
}

func newAgentEnableCmd(enable bool) *cobra.Command {
	use, verb := "enable <agent-id>", "Enabled"
	if !enable {
		use, verb = "disable <agent-id>", "Disabled"
	}
	return &cobra.Command{
		Use:   use,
		Short: verb + " an agent for routing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.SetAgentEnabled(cmd.Context(), args[0], enable); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s agent %q\n", verb, args[0])
			return nil
		},
	}
}

func newAgentRulesCmd() *cobra.Command {
	var rules []string
	cmd := &cobra.Command{
		Use:   "rules <agent-id>",
		Short: "Replace an agent's handoff rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.UpdateAgentRules(cmd.Context(), args[0], rules); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated rules for %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&rules, "rules", nil, "New handoff rules (replaces the old set)")
	return cmd
}

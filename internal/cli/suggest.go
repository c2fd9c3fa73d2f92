package cli

import (
	"fmt"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/suggest"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
	"github.com/spf13/cobra"
)

func newSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Manage suggestions",
	}
	cmd.AddCommand(newSuggestListCmd())
	cmd.AddCommand(newSuggestNewCmd())
	cmd.AddCommand(newSuggestTransitionCmd("approve", models.SuggestionApproved))
	cmd.AddCommand(newSuggestTransitionCmd("queue", models.SuggestionQueued))
	cmd.AddCommand(newSuggestTransitionCmd("dismiss", models.SuggestionDismissed))
	cmd.AddCommand(newSuggestGenerateCmd())
	return cmd
}

func newSuggestListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			suggestions, err := st.ListSuggestions(cmd.Context(), status, limit)
			if err != nil {
				return err
			}
			for _, s := range suggestions {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\tP%d\t%s\t%s/%s\t%s\n",
					s.SuggestionID, s.Priority, s.Status, s.Effort, s.Impact, s.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max suggestions to list")
	return cmd
}

func newSuggestNewCmd() *cobra.Command {
	var (
		why      string
		effort   string
		impact   string
		priority int
	)
	cmd := &cobra.Command{
		Use:   "new <title>",
		Short: "Create a suggestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			id, err := st.CreateSuggestion(cmd.Context(), models.Suggestion{
				Title:    args[0],
				Why:      why,
				Effort:   effort,
				Impact:   impact,
				Priority: priority,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created suggestion %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&why, "why", "", "Rationale for the suggestion")
	cmd.Flags().StringVar(&effort, "effort", models.LevelMedium, "Effort level (low, medium, high)")
	cmd.Flags().StringVar(&impact, "impact", models.LevelMedium, "Impact level (low, medium, high)")
	cmd.Flags().IntVar(&priority, "priority", 3, "Priority 1-4 (1 = most urgent)")
	return cmd
}

func newSuggestTransitionCmd(verb, to string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <suggestion-id>",
		Short: "Move a suggestion to " + to,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInt64Arg(args[0])
			if err != nil {
				return err
			}
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			sg, err := st.TransitionSuggestion(cmd.Context(), id, to)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Suggestion %d is now %s\n", sg.SuggestionID, sg.Status)
			return nil
		},
	}
}

func newSuggestGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate suggestions from unread intel and the standing list",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			gen := &suggest.Generator{Store: st}
			n, err := gen.Generate(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Generated %d suggestions\n", n)
			return nil
		},
	}
}

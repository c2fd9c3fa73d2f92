package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/intel"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/overnight"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/suggest"
	"github.com/spf13/cobra"
)

func newIntelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intel",
		Short: "Manage the intel feed",
	}
	cmd.AddCommand(newIntelListCmd())
	cmd.AddCommand(newIntelRefreshCmd())
	cmd.AddCommand(newIntelArchiveCmd())
	return cmd
}

func newIntelArchiveCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Delete intel items older than the given number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must be >= 0, got %d", days)
			}
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			cutoff := time.Now().UTC().AddDate(0, 0, -days)
			n, err := st.ArchiveIntelBefore(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Archived %d intel items older than %s\n", n, cutoff.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Archive items older than this many days")
	return cmd
}

func newIntelListCmd() *cobra.Command {
	var category string
	var unread bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List intel items",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			items, err := st.ListIntel(cmd.Context(), category, unread, limit)
			if err != nil {
				return err
			}
			for _, it := range items {
				read := " "
				if it.ReadAt == nil {
					read = "*"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %d\t%s\t%d\t%s\n",
					read, it.IntelID, it.Category, it.RelevanceScore, it.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().BoolVar(&unread, "unread", false, "Only unread items")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max items to list")
	return cmd
}

func newIntelRefreshCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Collect intel from configured feeds and regenerate suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			orch := &overnight.Orchestrator{
				Store:     st,
				Collector: &intel.Collector{Store: st, Sources: intel.SourcesFromEnv(os.Getenv("SUPERCLAW_INTEL_FEEDS"))},
				Generator: &suggest.Generator{Store: st},
			}
			res, err := orch.RefreshIntel(cmd.Context(), force)
			if err != nil {
				return err
			}
			if res.Skipped {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Refresh skipped; retry in %s or use --force\n", res.RetryAfter.Round(1e9))
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Collected %d intel items, generated %d suggestions\n", res.Collected, res.Generated)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Bypass the refresh rate limit")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/report"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/models"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Manage reports",
	}
	cmd.AddCommand(newReportListCmd())
	cmd.AddCommand(newReportNewCmd())
	return cmd
}

func newReportListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			reports, err := st.ListReports(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range reports {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n",
					r.ReportID, r.Type, r.CreatedAt.Format("2006-01-02"), r.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Max reports to list")
	return cmd
}

func newReportNewCmd() *cobra.Command {
	var (
		reportType   string
		content      string
		suggestionID int64
		runID        int64
	)
	cmd := &cobra.Command{
		Use:   "new <title>",
		Short: "File a report; a linked suggestion is completed automatically",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreFromCmd(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			r := models.Report{Title: args[0], Type: reportType, Content: content}
			if suggestionID > 0 {
				r.SuggestionID = &suggestionID
			}
			if runID > 0 {
				r.RunID = &runID
			}
			sink := &report.Sink{Store: st}
			created, err := sink.Create(cmd.Context(), r)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Filed report %d\n", created.ReportID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reportType, "type", models.ReportTypeManual, "Report type (overnight, suggestion, manual)")
	cmd.Flags().StringVar(&content, "content", "", "Report body")
	cmd.Flags().Int64Var(&suggestionID, "suggestion", 0, "Linked suggestion ID")
	cmd.Flags().Int64Var(&runID, "run", 0, "Linked overnight run ID")
	return cmd
}

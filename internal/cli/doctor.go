package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/config"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/store"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify the home directory and store are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())

			var problems []string

			if err := os.MkdirAll(home, 0o755); err != nil {
				problems = append(problems, fmt.Sprintf("home %s is not writable: %v", home, err))
			} else {
				st, err := store.Open(home)
				if err != nil {
					problems = append(problems, fmt.Sprintf("store did not open: %v", err))
				} else {
					if _, err := st.ListAgents(cmd.Context()); err != nil {
						problems = append(problems, fmt.Sprintf("store query failed: %v", err))
					}
					_ = st.Close()
				}
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}

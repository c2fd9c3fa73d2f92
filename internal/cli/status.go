package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/skunkceo/superclaw-dashboard-sub001/internal/config"
	"github.com/skunkceo/superclaw-dashboard-sub001/internal/daemon"
	"github.com/skunkceo/superclaw-dashboard-sub001/pkg/client"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Superclaw daemon and overnight status",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			st, err := daemon.Status(cmd.Context(), home)
			if err != nil {
				return err
			}
			if !st.Running {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Superclaw not running")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Superclaw running (pid %d, addr %s)\n", st.PID, st.Addr)

			c := client.New(baseURLFromAddr(st.Addr), os.Getenv("SUPERCLAW_API_KEY"))
			ov, err := c.Overnight(cmd.Context())
			if err != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Overnight status unavailable: %v\n", err)
				return nil
			}
			mode := "off"
			if ov.OvernightMode {
				mode = "on"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Overnight mode: %s, queued suggestions: %d\n", mode, ov.QueuedCount)
			if ov.ActiveRun != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Active run: %d (started %s)\n", ov.ActiveRun.RunID, ov.ActiveRun.StartedAt.Format("15:04:05"))
			}
			return nil
		},
	}
	return cmd
}

// baseURLFromAddr turns the daemon's listen addr into a client base URL.
// The daemon binds 0.0.0.0, which is not dialable as written.
func baseURLFromAddr(addr string) string {
	if strings.HasPrefix(addr, "0.0.0.0:") {
		addr = "localhost:" + strings.TrimPrefix(addr, "0.0.0.0:")
	}
	return "http://" + addr
}

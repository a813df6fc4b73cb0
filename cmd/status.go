// File: cmd/status.go
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/engager-cli/api/schemas"
	"github.com/xkilldash9x/engager-cli/internal/observability"
	"github.com/xkilldash9x/engager-cli/internal/store"
)

// recentActivityLimit bounds how many log entries status prints.
const recentActivityLimit = 15

// newStatusCmd creates the `status` command, which reports the latest
// session and its recent activity without touching the browser.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Shows the most recent session and its activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewSQLiteStore(rootConfig.Storage.Path, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer st.Close()

			state, err := st.LoadLatestSession(cmd.Context())
			if err != nil {
				if errors.Is(err, store.ErrNoSession) {
					cmd.Println("No sessions recorded yet.")
					return nil
				}
				return fmt.Errorf("load latest session: %w", err)
			}

			cmd.Println(formatSession(state))

			events, err := st.RecentActivity(cmd.Context(), state.ID, recentActivityLimit)
			if err != nil {
				return fmt.Errorf("load activity: %w", err)
			}
			if len(events) > 0 {
				cmd.Println("\nRecent activity:")
				for _, e := range events {
					cmd.Println(formatEvent(e))
				}
			}
			return nil
		},
	}
}

func formatSession(s *schemas.SessionState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s\n", s.ID)
	fmt.Fprintf(&b, "  Status:    %s\n", s.Status)
	fmt.Fprintf(&b, "  Progress:  %d/%d processed\n", s.Processed, s.Target)
	fmt.Fprintf(&b, "  Success:   %d\n", s.Success)
	fmt.Fprintf(&b, "  Failed:    %d\n", s.Failed)
	if s.Processed > 0 {
		fmt.Fprintf(&b, "  Rate:      %.0f%%\n", s.SuccessRate()*100)
	}
	fmt.Fprintf(&b, "  Started:   %s\n", s.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  Updated:   %s", s.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	return b.String()
}

func formatEvent(e schemas.ActivityEvent) string {
	line := fmt.Sprintf("  %s  %-18s", e.At.Local().Format("15:04:05"), e.Kind)
	if e.ItemID != "" {
		line += "  item=" + e.ItemID
	}
	if e.Detail != "" {
		line += "  " + e.Detail
	}
	return line
}

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

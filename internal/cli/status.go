package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheBase/TheBase/internal/config"
	"github.com/TheBase/TheBase/internal/logquery"
	"github.com/TheBase/TheBase/internal/status"
	"github.com/TheBase/TheBase/internal/store"
)

var (
	statusSet  string
	statusNote string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "thebase %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the bot's working/idle status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *config.Config, st *store.Store) error {
			ctx := cmd.Context()
			if statusSet != "" {
				if statusSet != store.StateWorking && statusSet != store.StateIdle {
					return fmt.Errorf("state must be 'working' or 'idle'")
				}
				var note *string
				if statusNote != "" {
					note = &statusNote
				}
				if _, err := st.SetStatus(ctx, statusSet, note, time.Now()); err != nil {
					return err
				}
			}

			row, err := st.LatestStatus(ctx)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			d := status.Evaluate(row, time.Now(), cfg.Status.StaleAfter)

			label := color.YellowString(d.Label)
			if d.Working() {
				label = color.GreenString(d.Label)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:  %s\n", label)
			if d.Note != "" {
				fmt.Fprintf(out, "Note:    %s\n", d.Note)
			}
			fmt.Fprintf(out, "Updated: %s\n", logquery.FormatTimestamp(d.UpdatedAt, time.Local))
			return nil
		})
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusSet, "set", "", "Record a new state (working or idle)")
	statusCmd.Flags().StringVar(&statusNote, "note", "", "Note shown while working")
}

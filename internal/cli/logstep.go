package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheBase/TheBase/internal/config"
	"github.com/TheBase/TheBase/internal/ingest"
	"github.com/TheBase/TheBase/internal/store"
)

// logStepProject is the project log-step entries are filed under.
const logStepProject = "theBase"

var logStepCmd = &cobra.Command{
	Use:   `log-step "Title" ["Details"] ["tag1,tag2"] ["link1,link2"]`,
	Short: "Record a finished step in the activity log",
	Args:  cobra.RangeArgs(1, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := logStepEntry(args, time.Now())
		if err != nil {
			return err
		}
		return withStore(func(cfg *config.Config, st *store.Store) error {
			if err := st.InsertLog(cmd.Context(), entry); err != nil {
				return fmt.Errorf("failed to insert log: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Log inserted.")
			return nil
		})
	},
}

// logStepEntry builds the log row from positional arguments.
func logStepEntry(args []string, now time.Time) (*store.LogEntry, error) {
	title := strings.TrimSpace(args[0])
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	source := ingest.DefaultSource
	l := &store.LogEntry{
		Project:    logStepProject,
		Title:      title,
		Status:     store.LogStatusDone,
		Source:     &source,
		Timestamp:  &now,
		FinishedAt: &now,
	}
	if len(args) > 1 && args[1] != "" {
		details := args[1]
		l.Details = &details
	}
	if len(args) > 2 {
		l.Tags = splitCSV(args[2])
	}
	if len(args) > 3 {
		l.Links = splitCSV(args[3])
	}
	return l, nil
}

// splitCSV returns the trimmed non-empty items, or nil when there are none.
func splitCSV(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(logStepCmd)
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheBase/TheBase/internal/calendar"
	"github.com/TheBase/TheBase/internal/config"
	"github.com/TheBase/TheBase/internal/store"
)

var (
	calendarView string
	calendarDate string
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show recent logs on a month, week or day calendar",
	RunE: func(cmd *cobra.Command, args []string) error {
		today := time.Now()
		selected := today
		if calendarDate != "" {
			d, err := time.ParseInLocation("2006-01-02", calendarDate, time.Local)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD")
			}
			selected = d
		}
		return withStore(func(cfg *config.Config, st *store.Store) error {
			logs, err := st.RecentLogs(cmd.Context(), cfg.Status.CalendarLimit)
			if err != nil {
				return err
			}
			idx := calendar.BuildIndex(logs, time.Local)
			out := cmd.OutOrStdout()
			switch calendar.ParseView(calendarView) {
			case calendar.ViewWeek:
				fmt.Fprint(out, calendar.RenderWeek(calendar.WeekView(selected, today, idx)))
			case calendar.ViewDay:
				fmt.Fprint(out, calendar.RenderDay(calendar.DayView(selected, idx), time.Local))
			default:
				fmt.Fprint(out, calendar.RenderMonth(selected, calendar.MonthGrid(selected, today, idx)))
			}
			return nil
		})
	},
}

func init() {
	calendarCmd.Flags().StringVar(&calendarView, "view", string(calendar.ViewMonth), "Calendar view: month, week or day")
	calendarCmd.Flags().StringVar(&calendarDate, "date", "", "Selected date (YYYY-MM-DD, default today)")
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/TheBase/TheBase/internal/config"
	"github.com/TheBase/TheBase/internal/logquery"
	"github.com/TheBase/TheBase/internal/store"
)

var (
	logsFilter logquery.Filter
	logsView   string
	logsOutput string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Query the activity log",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch logsOutput {
		case "text", "json", "yaml":
		default:
			return fmt.Errorf("unknown output %q (expected text, json or yaml)", logsOutput)
		}
		return withStore(func(cfg *config.Config, st *store.Store) error {
			res := logquery.NewEngine(st).Fetch(cmd.Context(), logsFilter)
			if res.Err != "" {
				return errors.New(res.Err)
			}
			view := logquery.ParseView(logsView)
			page := logsPage{
				Filter:    logsFilter.Normalize(),
				View:      view,
				Total:     res.Total,
				Page:      res.Page,
				PageCount: res.PageCount(),
				HasNext:   res.HasNext(),
				Groups:    logquery.Apply(view, res.Filtered, time.Local),
			}
			return writeLogs(cmd.OutOrStdout(), logsOutput, page)
		})
	},
}

// logsPage is the printable result of a logs query.
type logsPage struct {
	Filter    logquery.Filter  `json:"filter" yaml:"filter"`
	View      logquery.View    `json:"view" yaml:"view"`
	Total     *int             `json:"total" yaml:"total"`
	Page      int              `json:"page" yaml:"page"`
	PageCount int              `json:"pageCount" yaml:"pageCount"`
	HasNext   bool             `json:"hasNext" yaml:"hasNext"`
	Groups    []logquery.Group `json:"groups" yaml:"groups"`
}

func writeLogs(w io.Writer, format string, page logsPage) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(page)
	}

	bold := color.New(color.Bold).SprintFunc()
	count := 0
	for _, g := range page.Groups {
		if g.Key != "" {
			fmt.Fprintln(w, bold(g.Key))
		}
		for _, l := range g.Logs {
			when := l.EffectiveTime()
			fmt.Fprintf(w, "  %s  %-5s  %-12s  %s\n",
				logquery.FormatTimestamp(&when, time.Local), l.Status, projectLabel(l.Project), l.Title)
			count++
		}
	}
	if count == 0 {
		fmt.Fprintln(w, "No logs match.")
	}
	if page.Total != nil {
		fmt.Fprintf(w, "Page %d of %d (%d logs)\n", page.Page, page.PageCount, *page.Total)
	} else {
		fmt.Fprintf(w, "Page %d\n", page.Page)
	}
	return nil
}

func projectLabel(p string) string {
	if p == "" {
		return logquery.NoProject
	}
	return p
}

func init() {
	f := logsCmd.Flags()
	f.StringVar(&logsFilter.Project, "project", logquery.All, "Only logs of this project")
	f.StringVar(&logsFilter.Status, "status", logquery.All, "Only logs with this status (todo, doing, done)")
	f.StringVar(&logsFilter.Tag, "tag", "", "Only logs carrying this tag")
	f.StringVar(&logsFilter.Query, "query", "", "Case-insensitive text search within the page")
	f.StringVar(&logsFilter.DateFrom, "from", "", "Earliest finish date (YYYY-MM-DD)")
	f.StringVar(&logsFilter.DateTo, "to", "", "Latest finish date (YYYY-MM-DD)")
	f.IntVar(&logsFilter.Page, "page", 1, "Page number")
	f.IntVar(&logsFilter.PageSize, "page-size", logquery.DefaultPageSize, "Page size (50, 100 or 500)")
	f.StringVar(&logsView, "view", string(logquery.ViewFlat), "Grouping: flat, day or project")
	f.StringVarP(&logsOutput, "output", "o", "text", "Output format: text, json or yaml")
}

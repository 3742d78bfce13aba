package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/TheBase/TheBase/internal/logquery"
)

var (
	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "30", Dark: "45"})
	styleWeekday = lipgloss.NewStyle().Width(8).Foreground(lipgloss.AdaptiveColor{Light: "242", Dark: "240"})
	styleCell    = lipgloss.NewStyle().Width(8)
	styleOutside = styleCell.Copy().Foreground(lipgloss.AdaptiveColor{Light: "250", Dark: "238"})
	styleToday   = styleCell.Copy().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "40"})
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "242", Dark: "240"})
	styleTitle   = lipgloss.NewStyle().Bold(true)
)

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func weekdayHeader() string {
	cols := make([]string, len(weekdays))
	for i, w := range weekdays {
		cols[i] = styleWeekday.Render(w)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func renderCell(c Cell) string {
	label := fmt.Sprintf("%2d", c.Day)
	if c.Count > 0 {
		label += fmt.Sprintf(" (%d)", c.Count)
	}
	switch {
	case c.Today:
		return styleToday.Render(label + "*")
	case !c.InMonth:
		return styleOutside.Render(label)
	default:
		return styleCell.Render(label)
	}
}

// RenderMonth draws the month grid for terminal output.
func RenderMonth(month time.Time, grid [42]Cell) string {
	var b strings.Builder
	b.WriteString(styleHeading.Render(month.Format("January 2006")))
	b.WriteString("\n")
	b.WriteString(weekdayHeader())
	b.WriteString("\n")
	for w := 0; w < 6; w++ {
		row := make([]string, 7)
		for d := 0; d < 7; d++ {
			row[d] = renderCell(grid[w*7+d])
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderWeek draws the week view, one day per block.
func RenderWeek(week [7]WeekCell) string {
	var b strings.Builder
	b.WriteString(styleHeading.Render("Week of " + week[0].Date.Format("Mon 02 Jan 2006")))
	b.WriteString("\n")
	for i, c := range week {
		head := fmt.Sprintf("%s %s", weekdays[i], c.Date.Format("02-01"))
		if c.Today {
			head += " (today)"
		}
		b.WriteString(styleTitle.Render(head))
		b.WriteString("\n")
		if len(c.Preview) == 0 {
			b.WriteString(styleDim.Render("  no logs"))
			b.WriteString("\n")
			continue
		}
		for _, p := range c.Preview {
			project := p.Project
			if project == "" {
				project = logquery.NoProject
			}
			fmt.Fprintf(&b, "  %s %s\n", p.Title, styleDim.Render("· "+project))
		}
		if c.More > 0 {
			b.WriteString(styleDim.Render(fmt.Sprintf("  +%d more", c.More)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderDay draws every log of a day in loc.
func RenderDay(day Day, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(styleHeading.Render(day.Date.Format("Monday 02 January 2006")))
	b.WriteString("\n")
	if len(day.Logs) == 0 {
		b.WriteString(styleDim.Render("No logs on this day."))
		b.WriteString("\n")
		return b.String()
	}
	for _, l := range day.Logs {
		d := Detail(l, loc)
		fmt.Fprintf(&b, "%s  %s %s\n", styleDim.Render(d.When), styleTitle.Render(d.Title), styleDim.Render("["+d.Project+" · "+d.Status+"]"))
		if d.Details != logquery.Placeholder {
			fmt.Fprintf(&b, "    %s\n", d.Details)
		}
		if len(d.Tags) > 0 {
			fmt.Fprintf(&b, "    tags: %s\n", strings.Join(d.Tags, ", "))
		}
		for _, link := range d.Links {
			fmt.Fprintf(&b, "    %s\n", link)
		}
	}
	return b.String()
}

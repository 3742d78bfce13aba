package calendar

import (
	"strings"
	"time"
)

// View is the calendar granularity.
type View string

const (
	ViewMonth View = "month"
	ViewWeek  View = "week"
	ViewDay   View = "day"
)

// ParseView maps a name to a View, defaulting to month.
func ParseView(s string) View {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case ViewWeek:
		return ViewWeek
	case ViewDay:
		return ViewDay
	default:
		return ViewMonth
	}
}

// State is the calendar's view and selected date.
type State struct {
	View     View      `json:"view"`
	Selected time.Time `json:"selected"`
}

// SelectCell selects date. Selecting in the week view also opens the day.
func (s State) SelectCell(date time.Time) State {
	s.Selected = date
	if s.View == ViewWeek {
		s.View = ViewDay
	}
	return s
}

// Prev moves one unit of the current view back.
func (s State) Prev() State {
	switch s.View {
	case ViewDay:
		s.Selected = PrevDay(s.Selected)
	case ViewWeek:
		s.Selected = s.Selected.AddDate(0, 0, -7)
	default:
		s.Selected = s.Selected.AddDate(0, -1, 1-s.Selected.Day())
	}
	return s
}

// Next moves one unit of the current view forward.
func (s State) Next() State {
	switch s.View {
	case ViewDay:
		s.Selected = NextDay(s.Selected)
	case ViewWeek:
		s.Selected = s.Selected.AddDate(0, 0, 7)
	default:
		s.Selected = s.Selected.AddDate(0, 1, 1-s.Selected.Day())
	}
	return s
}

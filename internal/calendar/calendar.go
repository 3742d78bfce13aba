// Package calendar indexes logs by local day and derives the month, week and
// day views of the activity calendar.
package calendar

import (
	"sort"
	"time"

	"github.com/TheBase/TheBase/internal/logquery"
	"github.com/TheBase/TheBase/internal/store"
)

// MaxLogs caps how many recent logs the calendar loads.
const MaxLogs = 500

// PreviewLimit is the number of logs a week cell previews.
const PreviewLimit = 3

const keyLayout = "2006-01-02"

// Index maps local date keys to the logs on that day, ascending by
// effective time.
type Index struct {
	loc  *time.Location
	days map[string][]store.LogEntry
}

// BuildIndex buckets logs by the local date of their effective time. Logs
// without a usable time are skipped.
func BuildIndex(logs []store.LogEntry, loc *time.Location) Index {
	if loc == nil {
		loc = time.Local
	}
	idx := Index{loc: loc, days: map[string][]store.LogEntry{}}
	for _, l := range logs {
		if l.EffectiveTime().IsZero() {
			continue
		}
		k := logquery.DayKey(l, loc)
		idx.days[k] = append(idx.days[k], l)
	}
	for _, list := range idx.days {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].EffectiveTime().Before(list[j].EffectiveTime())
		})
	}
	return idx
}

// Location returns the zone the index was built in.
func (idx Index) Location() *time.Location {
	if idx.loc == nil {
		return time.Local
	}
	return idx.loc
}

// Key is the date key of d in the index's zone.
func (idx Index) Key(d time.Time) string {
	return d.In(idx.Location()).Format(keyLayout)
}

// Logs returns the logs on d's local date.
func (idx Index) Logs(d time.Time) []store.LogEntry {
	return idx.days[idx.Key(d)]
}

// Count returns the number of logs on d's local date.
func (idx Index) Count(d time.Time) int {
	return len(idx.days[idx.Key(d)])
}

// Days returns the number of distinct days with logs.
func (idx Index) Days() int { return len(idx.days) }

// Cell is one day in the month grid.
type Cell struct {
	Date    time.Time `json:"date"`
	Key     string    `json:"key"`
	Day     int       `json:"day"`
	InMonth bool      `json:"inMonth"`
	Today   bool      `json:"today"`
	Count   int       `json:"count"`
}

// Preview is the short form of a log shown in a week cell.
type Preview struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Project string `json:"project"`
}

// WeekCell is one day in the week view.
type WeekCell struct {
	Cell
	Preview []Preview `json:"preview"`
	More    int       `json:"more"`
}

// Day is the full list of logs on one date.
type Day struct {
	Date time.Time        `json:"date"`
	Key  string           `json:"key"`
	Logs []store.LogEntry `json:"logs"`
}

func (idx Index) midnight(d time.Time) time.Time {
	d = d.In(idx.Location())
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, idx.Location())
}

// StartOfWeek returns the Monday on or before d.
func (idx Index) StartOfWeek(d time.Time) time.Time {
	d = idx.midnight(d)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func (idx Index) cell(d time.Time, month time.Month, todayKey string) Cell {
	k := idx.Key(d)
	return Cell{
		Date:    d,
		Key:     k,
		Day:     d.Day(),
		InMonth: d.Month() == month,
		Today:   k == todayKey,
		Count:   len(idx.days[k]),
	}
}

// MonthGrid returns six weeks of cells starting on the Monday on or before
// the first of month.
func MonthGrid(month, today time.Time, idx Index) [42]Cell {
	m := idx.midnight(month)
	first := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, idx.Location())
	start := idx.StartOfWeek(first)
	todayKey := idx.Key(today)

	var grid [42]Cell
	for i := range grid {
		grid[i] = idx.cell(start.AddDate(0, 0, i), first.Month(), todayKey)
	}
	return grid
}

// WeekView returns the seven days of the week containing selected.
func WeekView(selected, today time.Time, idx Index) [7]WeekCell {
	start := idx.StartOfWeek(selected)
	month := idx.midnight(selected).Month()
	todayKey := idx.Key(today)

	var week [7]WeekCell
	for i := range week {
		c := idx.cell(start.AddDate(0, 0, i), month, todayKey)
		logs := idx.days[c.Key]
		wc := WeekCell{Cell: c, Preview: []Preview{}}
		for j, l := range logs {
			if j == PreviewLimit {
				wc.More = len(logs) - PreviewLimit
				break
			}
			wc.Preview = append(wc.Preview, Preview{ID: l.ID, Title: l.Title, Project: l.Project})
		}
		week[i] = wc
	}
	return week
}

// DayView returns the logs on selected, ascending by effective time. A day
// without logs yields an empty list.
func DayView(selected time.Time, idx Index) Day {
	d := idx.midnight(selected)
	logs := idx.days[idx.Key(d)]
	if logs == nil {
		logs = []store.LogEntry{}
	}
	return Day{Date: d, Key: idx.Key(d), Logs: logs}
}

// PrevDay returns the calendar day before d.
func PrevDay(d time.Time) time.Time { return d.AddDate(0, 0, -1) }

// NextDay returns the calendar day after d.
func NextDay(d time.Time) time.Time { return d.AddDate(0, 0, 1) }

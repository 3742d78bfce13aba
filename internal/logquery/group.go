package logquery

import (
	"sort"
	"strings"
	"time"

	"github.com/TheBase/TheBase/internal/store"
)

// Placeholder stands in for a missing value in rendered output.
const Placeholder = "—"

// NoProject is the group key for logs without a project.
const NoProject = Placeholder

// View selects how the filtered rows are presented.
type View string

const (
	ViewFlat    View = "flat"
	ViewDay     View = "day"
	ViewProject View = "project"
)

// ParseView maps a view name to a View, defaulting to flat.
func ParseView(s string) View {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case ViewDay:
		return ViewDay
	case ViewProject:
		return ViewProject
	default:
		return ViewFlat
	}
}

// Group is a keyed bucket of logs.
type Group struct {
	Key  string           `json:"key"`
	Logs []store.LogEntry `json:"logs"`
}

// MatchQuery keeps the rows whose title, details, project, status, tags or
// source contain q, case-insensitively. An empty query keeps every row.
func MatchQuery(rows []store.LogEntry, q string) []store.LogEntry {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return rows
	}
	out := make([]store.LogEntry, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(haystack(r), q) {
			out = append(out, r)
		}
	}
	return out
}

func haystack(r store.LogEntry) string {
	parts := []string{r.Title, deref(r.Details), r.Project, r.Status, strings.Join(r.Tags, " "), deref(r.Source)}
	return strings.ToLower(strings.Join(parts, " "))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// DayKey is the YYYY-MM-DD local date of the log's effective time.
func DayKey(l store.LogEntry, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return l.EffectiveTime().In(loc).Format("2006-01-02")
}

// Flat returns rows unchanged.
func Flat(rows []store.LogEntry) []Group {
	if len(rows) == 0 {
		return []Group{}
	}
	return []Group{{Key: "", Logs: rows}}
}

// ByDay buckets rows by local date key, newest day first. Rows keep their
// relative order inside a bucket.
func ByDay(rows []store.LogEntry, loc *time.Location) []Group {
	groups := bucket(rows, func(l store.LogEntry) string { return DayKey(l, loc) })
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Key > groups[j].Key })
	return groups
}

// ByProject buckets rows by project, ascending by name.
func ByProject(rows []store.LogEntry) []Group {
	groups := bucket(rows, func(l store.LogEntry) string {
		if l.Project == "" {
			return NoProject
		}
		return l.Project
	})
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// Apply returns the groups for view.
func Apply(view View, rows []store.LogEntry, loc *time.Location) []Group {
	switch view {
	case ViewDay:
		return ByDay(rows, loc)
	case ViewProject:
		return ByProject(rows)
	default:
		return Flat(rows)
	}
}

func bucket(rows []store.LogEntry, key func(store.LogEntry) string) []Group {
	index := map[string]int{}
	groups := []Group{}
	for _, r := range rows {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Logs = append(groups[i].Logs, r)
	}
	return groups
}

// Projects returns "all" followed by the sorted distinct non-empty projects
// of rows, for the project selector.
func Projects(rows []store.LogEntry) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, r := range rows {
		if r.Project == "" {
			continue
		}
		if _, ok := seen[r.Project]; ok {
			continue
		}
		seen[r.Project] = struct{}{}
		names = append(names, r.Project)
	}
	sort.Strings(names)
	return append([]string{All}, names...)
}

// FormatTimestamp renders t as "HH-MM DD-MM-YYYY" in loc, or "—" when nil.
func FormatTimestamp(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return Placeholder
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("15-04 02-01-2006")
}

package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/TheBase/TheBase/internal/calendar"
	"github.com/TheBase/TheBase/internal/logquery"
	"github.com/TheBase/TheBase/internal/status"
	"github.com/TheBase/TheBase/internal/store"
)

const (
	overviewRecent   = 8
	overviewCronScan = 50
	overviewLogScan  = 500
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.opts.Indicator != nil {
		writeJSON(w, http.StatusOK, s.opts.Indicator.Current())
		return
	}
	row, err := s.opts.Store.LatestStatus(r.Context())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status.Evaluate(row, s.now(), s.opts.StaleAfter))
}

// logsResponse is one fetched page of the log explorer.
type logsResponse struct {
	Filter    logquery.Filter  `json:"filter"`
	View      logquery.View    `json:"view"`
	Rows      []store.LogEntry `json:"rows"`
	Total     *int             `json:"total"`
	Page      int              `json:"page"`
	PageSize  int              `json:"pageSize"`
	PageCount int              `json:"pageCount"`
	HasNext   bool             `json:"hasNext"`
	HasPrev   bool             `json:"hasPrev"`
	Groups    []logquery.Group `json:"groups"`
	Projects  []string         `json:"projects"`
	Error     string           `json:"error,omitempty"`
}

// filterFromQuery reads the explorer filter from URL parameters.
func filterFromQuery(r *http.Request) logquery.Filter {
	q := r.URL.Query()
	f := logquery.NewFilter()
	f.Project = q.Get("project")
	f.Status = q.Get("status")
	f.Tag = q.Get("tag")
	f.Query = q.Get("q")
	f.DateFrom = q.Get("from")
	f.DateTo = q.Get("to")
	f.PageSize, _ = strconv.Atoi(q.Get("pageSize"))
	f.Page, _ = strconv.Atoi(q.Get("page"))
	return f.Normalize()
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	f := filterFromQuery(r)
	view := logquery.ParseView(r.URL.Query().Get("view"))
	res := s.engine.Fetch(r.Context(), f)

	resp := logsResponse{
		Filter:    f,
		View:      view,
		Rows:      nonNil(res.Filtered),
		Total:     res.Total,
		Page:      res.Page,
		PageSize:  res.PageSize,
		PageCount: res.PageCount(),
		HasNext:   res.HasNext(),
		HasPrev:   res.HasPrev(),
		Groups:    logquery.Apply(view, res.Filtered, s.opts.Location),
		Projects:  logquery.Projects(res.Rows),
		Error:     res.Err,
	}
	code := http.StatusOK
	if res.Err != "" {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, resp)
}

// calendarResponse carries the requested view plus navigation targets.
type calendarResponse struct {
	View     calendar.View        `json:"view"`
	Selected string               `json:"selected"`
	Prev     string               `json:"prev"`
	Next     string               `json:"next"`
	Month    []calendar.Cell      `json:"month,omitempty"`
	Week     []calendar.WeekCell  `json:"week,omitempty"`
	Day      *calendar.Day        `json:"day,omitempty"`
	Details  []calendar.LogDetail `json:"details,omitempty"`
	Total    int                  `json:"total"`
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	loc := s.opts.Location
	today := s.now().In(loc)
	selected := today
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.ParseInLocation("2006-01-02", d, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		selected = parsed
	}
	state := calendar.State{View: calendar.ParseView(r.URL.Query().Get("view")), Selected: selected}

	logs, err := s.opts.Store.RecentLogs(r.Context(), s.opts.CalendarLimit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	idx := calendar.BuildIndex(logs, loc)

	resp := calendarResponse{
		View:     state.View,
		Selected: idx.Key(state.Selected),
		Prev:     idx.Key(state.Prev().Selected),
		Next:     idx.Key(state.Next().Selected),
		Total:    len(logs),
	}
	switch state.View {
	case calendar.ViewWeek:
		week := calendar.WeekView(state.Selected, today, idx)
		resp.Week = week[:]
	case calendar.ViewDay:
		day := calendar.DayView(state.Selected, idx)
		resp.Day = &day
		resp.Details = make([]calendar.LogDetail, 0, len(day.Logs))
		for _, l := range day.Logs {
			resp.Details = append(resp.Details, calendar.Detail(l, loc))
		}
	default:
		grid := calendar.MonthGrid(state.Selected, today, idx)
		resp.Month = grid[:]
	}
	writeJSON(w, http.StatusOK, resp)
}

// overviewResponse backs the landing page cards.
type overviewResponse struct {
	Status        status.Display   `json:"status"`
	LogsToday     int              `json:"logsToday"`
	TodosToday    []store.TodoRow  `json:"todosToday"`
	OpenToday     int              `json:"openToday"`
	CronSnapshots int              `json:"cronSnapshots"`
	Recent        []store.LogEntry `json:"recent"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ctx := r.Context()
	now := s.now().In(s.opts.Location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.opts.Location)
	end := start.AddDate(0, 0, 1)

	var resp overviewResponse
	if s.opts.Indicator != nil {
		resp.Status = s.opts.Indicator.Current()
	} else {
		row, err := s.opts.Store.LatestStatus(ctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeStoreError(w, err)
			return
		}
		resp.Status = status.Evaluate(row, s.now(), s.opts.StaleAfter)
	}

	logs, err := s.opts.Store.RecentLogs(ctx, overviewLogScan)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	for i := range logs {
		t := logs[i].EffectiveTime()
		if !t.Before(start) && t.Before(end) {
			resp.LogsToday++
		}
	}
	resp.Recent = logs[:min(len(logs), overviewRecent)]

	todos, err := s.opts.Store.ListTodos(ctx, store.TodoFilter{DueFrom: &start, DueTo: &end})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp.TodosToday = nonNil(todos)
	for _, t := range todos {
		if t.Status != store.LogStatusDone {
			resp.OpenToday++
		}
	}

	snaps, err := s.opts.Store.ListCronSnapshots(ctx, overviewCronScan)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp.CronSnapshots = len(snaps)
	resp.Recent = nonNil(resp.Recent)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCronLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	snap, err := s.opts.Store.LatestCronSnapshot(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"snapshot": nil})
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshot": snap})
}

func (s *Server) handleMemoryLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	snap, err := s.opts.Store.LatestMemorySnapshot(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"snapshot": nil})
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshot": snap})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

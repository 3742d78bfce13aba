package logquery

import (
	"context"
	"log/slog"

	"github.com/TheBase/TheBase/internal/store"
)

// Store is the query surface the engine needs.
type Store interface {
	QueryLogs(ctx context.Context, f store.LogFilter) ([]store.LogEntry, int, error)
}

// Result is one fetched page. Rows is the page as returned by the store;
// Filtered is Rows narrowed by the free-text query.
type Result struct {
	Rows     []store.LogEntry `json:"rows"`
	Filtered []store.LogEntry `json:"filtered"`
	Total    *int             `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Err      string           `json:"error,omitempty"`
}

// PageCount is ceil(total/pageSize), or 0 while the total is unknown.
func (r Result) PageCount() int {
	if r.Total == nil || r.PageSize <= 0 {
		return 0
	}
	return (*r.Total + r.PageSize - 1) / r.PageSize
}

// HasNext reports whether a following page exists. It is false when the
// total is unknown.
func (r Result) HasNext() bool {
	if r.Total == nil {
		return false
	}
	return r.Page < r.PageCount()
}

// HasPrev reports whether a preceding page exists.
func (r Result) HasPrev() bool {
	return r.Page > 1
}

// Next returns f moved one page forward when r has a next page.
func (r Result) Next(f Filter) Filter {
	if r.HasNext() {
		f.Page = r.Page + 1
	}
	return f
}

// Prev returns f moved one page back when r has a previous page.
func (r Result) Prev(f Filter) Filter {
	if r.HasPrev() {
		f.Page = r.Page - 1
	}
	return f
}

// Engine runs filter sets against a store.
type Engine struct {
	store Store
}

// NewEngine creates an engine over s.
func NewEngine(s Store) *Engine {
	return &Engine{store: s}
}

// Fetch loads the page selected by f. Failures are reported in Result.Err
// with an empty row set; they are never returned as errors.
func (e *Engine) Fetch(ctx context.Context, f Filter) Result {
	f = f.Normalize()
	res := Result{Page: f.Page, PageSize: f.PageSize, Rows: []store.LogEntry{}, Filtered: []store.LogEntry{}}

	sf, err := f.StoreFilter()
	if err != nil {
		res.Err = err.Error()
		return res
	}
	rows, total, err := e.store.QueryLogs(ctx, sf)
	if err != nil {
		slog.Warn("Failed to fetch logs", "error", err)
		res.Err = err.Error()
		return res
	}
	if rows == nil {
		rows = []store.LogEntry{}
	}
	res.Rows = rows
	res.Total = &total
	res.Filtered = MatchQuery(rows, f.Query)
	return res
}

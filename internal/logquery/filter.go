// Package logquery fetches pages of activity logs under a filter set and
// derives the flat, by-day and by-project views over the fetched page.
package logquery

import (
	"fmt"
	"strings"
	"time"

	"github.com/TheBase/TheBase/internal/store"
)

// All is the filter value meaning "no constraint" for project and status.
const All = "all"

// DefaultPageSize is used when no valid page size is given.
const DefaultPageSize = 50

// PageSizeOptions are the accepted page sizes.
var PageSizeOptions = []int{50, 100, 500}

// Filter is the full filter set of the log view. Project, Status, Tag and the
// date bounds are applied by the store; Query only narrows the fetched page.
type Filter struct {
	Project  string `json:"project"`
	Status   string `json:"status"`
	Tag      string `json:"tag"`
	Query    string `json:"query"`
	DateFrom string `json:"dateFrom"` // YYYY-MM-DD, inclusive
	DateTo   string `json:"dateTo"`   // YYYY-MM-DD, inclusive
	PageSize int    `json:"pageSize"`
	Page     int    `json:"page"`
}

// NewFilter returns the initial filter: everything, first page of 50.
func NewFilter() Filter {
	return Filter{Project: All, Status: All, PageSize: DefaultPageSize, Page: 1}
}

// ValidPageSize reports whether n is one of PageSizeOptions.
func ValidPageSize(n int) bool {
	for _, opt := range PageSizeOptions {
		if n == opt {
			return true
		}
	}
	return false
}

// Normalize fills defaults and clamps page and page size.
func (f Filter) Normalize() Filter {
	if strings.TrimSpace(f.Project) == "" {
		f.Project = All
	}
	if strings.TrimSpace(f.Status) == "" {
		f.Status = All
	}
	if !ValidPageSize(f.PageSize) {
		f.PageSize = DefaultPageSize
	}
	if f.Page < 1 {
		f.Page = 1
	}
	return f
}

// WithProject changes the project filter and returns to the first page.
func (f Filter) WithProject(p string) Filter {
	f.Project = p
	f.Page = 1
	return f
}

// WithStatus changes the status filter and returns to the first page.
func (f Filter) WithStatus(s string) Filter {
	f.Status = s
	f.Page = 1
	return f
}

// WithTag changes the tag filter and returns to the first page.
func (f Filter) WithTag(tag string) Filter {
	f.Tag = tag
	f.Page = 1
	return f
}

// WithDateRange changes both date bounds and returns to the first page.
func (f Filter) WithDateRange(from, to string) Filter {
	f.DateFrom = from
	f.DateTo = to
	f.Page = 1
	return f
}

// WithPageSize changes the page size and returns to the first page.
func (f Filter) WithPageSize(n int) Filter {
	f.PageSize = n
	f.Page = 1
	return f
}

// WithQuery changes the free-text query. The page is kept because the query
// never reaches the store.
func (f Filter) WithQuery(q string) Filter {
	f.Query = q
	return f
}

// Offset is the index of the first row of the page.
func (f Filter) Offset() int {
	f = f.Normalize()
	return (f.Page - 1) * f.PageSize
}

// Range returns the inclusive row bounds of the page.
func (f Filter) Range() (from, to int) {
	f = f.Normalize()
	return f.Offset(), f.Page*f.PageSize - 1
}

// StoreFilter converts the server-side part of f into a store.LogFilter.
func (f Filter) StoreFilter() (store.LogFilter, error) {
	f = f.Normalize()
	from, to := f.Range()
	out := store.LogFilter{Limit: to - from + 1, Offset: from}
	if f.Project != All {
		out.Project = f.Project
	}
	if f.Status != All {
		out.Status = f.Status
	}
	out.Tag = strings.TrimSpace(f.Tag)
	if f.DateFrom != "" {
		t, err := time.Parse(time.RFC3339, f.DateFrom+"T00:00:00Z")
		if err != nil {
			return out, fmt.Errorf("invalid dateFrom %q", f.DateFrom)
		}
		out.FinishedFrom = &t
	}
	if f.DateTo != "" {
		t, err := time.Parse(time.RFC3339, f.DateTo+"T23:59:59Z")
		if err != nil {
			return out, fmt.Errorf("invalid dateTo %q", f.DateTo)
		}
		out.FinishedTo = &t
	}
	return out, nil
}

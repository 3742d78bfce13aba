package calendar

import (
	"time"

	"github.com/TheBase/TheBase/internal/logquery"
	"github.com/TheBase/TheBase/internal/store"
)

// LogDetail is the expanded form of a single log.
type LogDetail struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Project  string   `json:"project"`
	Status   string   `json:"status"`
	Details  string   `json:"details"`
	Started  string   `json:"started"`
	Finished string   `json:"finished"`
	When     string   `json:"when"`
	Tags     []string `json:"tags"`
	Links    []string `json:"links"`
}

// Detail formats l for display in loc.
func Detail(l store.LogEntry, loc *time.Location) LogDetail {
	d := LogDetail{
		ID:       l.ID,
		Title:    l.Title,
		Project:  l.Project,
		Status:   l.Status,
		Details:  logquery.Placeholder,
		Started:  logquery.FormatTimestamp(l.StartedAt, loc),
		Finished: logquery.FormatTimestamp(l.FinishedAt, loc),
		Tags:     l.Tags,
		Links:    l.Links,
	}
	if l.Project == "" {
		d.Project = logquery.NoProject
	}
	if l.Details != nil && *l.Details != "" {
		d.Details = *l.Details
	}
	eff := l.EffectiveTime()
	d.When = logquery.FormatTimestamp(&eff, loc)
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if d.Links == nil {
		d.Links = []string{}
	}
	return d
}

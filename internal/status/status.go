// Package status derives the working/idle indicator from the latest
// agent_status row.
package status

import (
	"time"

	"github.com/TheBase/TheBase/internal/store"
)

// Default timings of the indicator.
const (
	StaleAfter   = 10 * time.Minute
	PollInterval = 30 * time.Second
	TickInterval = 60 * time.Second
)

// Display is what the indicator shows.
type Display struct {
	State     string     `json:"state"`
	Stale     bool       `json:"stale"`
	Note      string     `json:"note,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Label     string     `json:"label"`
}

// Working reports whether the effective state is working.
func (d Display) Working() bool { return d.State == store.StateWorking }

// Evaluate derives the display for row at now. A missing row, or one last
// updated more than staleAfter ago, shows as idle regardless of its state.
func Evaluate(row *store.AgentStatus, now time.Time, staleAfter time.Duration) Display {
	if staleAfter <= 0 {
		staleAfter = StaleAfter
	}
	d := Display{State: store.StateIdle}
	stale := true
	if row != nil {
		if row.State != "" {
			d.State = row.State
		}
		if !row.UpdatedAt.IsZero() {
			updated := row.UpdatedAt
			d.UpdatedAt = &updated
			stale = now.Sub(updated) > staleAfter
		}
	}
	if stale {
		d.State = store.StateIdle
		d.Stale = true
	}
	if d.Working() && row.Note != nil {
		d.Note = *row.Note
	}
	d.Label = "Idle"
	if d.Working() {
		d.Label = "Working"
	}
	if d.Stale {
		d.Label += " (stale)"
	}
	return d
}

package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/TheBase/TheBase/internal/bus"
	"github.com/TheBase/TheBase/internal/store"
)

// Source loads the latest status row.
type Source interface {
	LatestStatus(ctx context.Context) (*store.AgentStatus, error)
}

// Config tunes the indicator loop.
type Config struct {
	PollInterval time.Duration
	TickInterval time.Duration
	StaleAfter   time.Duration
}

// DefaultConfig returns the standard 30s poll, 60s tick and 10m staleness.
func DefaultConfig() Config {
	return Config{PollInterval: PollInterval, TickInterval: TickInterval, StaleAfter: StaleAfter}
}

// ChangeFunc is called when the effective state or staleness changes.
type ChangeFunc func(prev, next Display)

// Indicator keeps the current display up to date by polling the store and
// re-evaluating staleness on its own tick.
type Indicator struct {
	src     Source
	cfg     Config
	now     func() time.Time
	refresh chan struct{}

	mu        sync.RWMutex
	row       *store.AgentStatus
	display   Display
	listeners []ChangeFunc
}

// NewIndicator creates an indicator over src.
func NewIndicator(src Source, cfg Config) *Indicator {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	ind := &Indicator{
		src:     src,
		cfg:     cfg,
		now:     time.Now,
		refresh: make(chan struct{}, 1),
	}
	ind.display = Evaluate(nil, ind.now(), cfg.StaleAfter)
	return ind
}

// SetClock replaces the clock used for staleness.
func (i *Indicator) SetClock(now func() time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.now = now
}

// OnChange registers fn for effective state changes.
func (i *Indicator) OnChange(fn ChangeFunc) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.listeners = append(i.listeners, fn)
}

// Attach refreshes the indicator whenever a status.set event is published.
func (i *Indicator) Attach(b *bus.EventBus) {
	b.Subscribe(bus.KindStatusSet, func(*bus.Event) { i.Trigger() })
}

// Trigger asks the running loop to poll now.
func (i *Indicator) Trigger() {
	select {
	case i.refresh <- struct{}{}:
	default:
	}
}

// Current returns the current display.
func (i *Indicator) Current() Display {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.display
}

// Refresh loads the latest row and re-evaluates. A failed load clears the
// row, which shows as idle.
func (i *Indicator) Refresh(ctx context.Context) {
	row, err := i.src.LatestStatus(ctx)
	if err != nil {
		if err != store.ErrNotFound {
			slog.Warn("Failed to load agent status", "error", err)
		}
		row = nil
	}
	i.mu.Lock()
	i.row = row
	i.mu.Unlock()
	i.Tick()
}

// Tick re-evaluates staleness against the clock without reloading.
func (i *Indicator) Tick() {
	i.mu.Lock()
	prev := i.display
	next := Evaluate(i.row, i.now(), i.cfg.StaleAfter)
	i.display = next
	listeners := append([]ChangeFunc(nil), i.listeners...)
	i.mu.Unlock()

	if prev.State != next.State || prev.Stale != next.Stale {
		for _, fn := range listeners {
			fn(prev, next)
		}
	}
}

// Run polls and ticks until ctx is cancelled.
func (i *Indicator) Run(ctx context.Context) error {
	slog.Info("Status indicator started", "poll", i.cfg.PollInterval, "tick", i.cfg.TickInterval)
	i.Refresh(ctx)

	poll := time.NewTicker(i.cfg.PollInterval)
	defer poll.Stop()
	tick := time.NewTicker(i.cfg.TickInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Status indicator stopped")
			return ctx.Err()
		case <-poll.C:
			i.Refresh(ctx)
		case <-i.refresh:
			i.Refresh(ctx)
		case <-tick.C:
			i.Tick()
		}
	}
}

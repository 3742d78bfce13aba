// Package bus provides the in-process event bus that connects ingestion,
// the status indicator, and the optional mirrors.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event kinds published by the ingestion endpoints.
const (
	KindLogIngested    = "log.ingested"
	KindCronIngested   = "cron.ingested"
	KindMemoryIngested = "memory.ingested"
	KindStatusSet      = "status.set"

	// KindAll subscribes to every kind.
	KindAll = "*"
)

// Event is a single notification on the bus.
type Event struct {
	Kind      string    `json:"kind"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBus fans events out to subscribers from a single dispatch loop.
type EventBus struct {
	events  chan *Event
	subs    map[string][]func(*Event)
	running bool
	mu      sync.RWMutex
}

// New creates an event bus.
func New() *EventBus {
	return &EventBus{
		events: make(chan *Event, 100),
		subs:   make(map[string][]func(*Event)),
	}
}

// Publish queues an event. When the queue is full the event is dropped and
// logged so publishers never block a request.
func (b *EventBus) Publish(ev *Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case b.events <- ev:
	default:
		slog.Warn("Event bus full, dropping event", "kind", ev.Kind)
	}
}

// Subscribe registers a callback for kind, or for every kind with KindAll.
func (b *EventBus) Subscribe(kind string, callback func(*Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[kind] = append(b.subs[kind], callback)
}

// Run dispatches queued events until ctx is cancelled.
// This should be run as a goroutine.
func (b *EventBus) Run(ctx context.Context) error {
	b.mu.Lock()
	b.running = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-b.events:
			b.dispatch(ev)
		}
	}
}

func (b *EventBus) dispatch(ev *Event) {
	b.mu.RLock()
	callbacks := append([]func(*Event){}, b.subs[ev.Kind]...)
	if ev.Kind != KindAll {
		callbacks = append(callbacks, b.subs[KindAll]...)
	}
	b.mu.RUnlock()

	for _, cb := range callbacks {
		cb(ev)
	}
}

// Running reports whether the dispatch loop is active.
func (b *EventBus) Running() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Pending returns the number of queued events.
func (b *EventBus) Pending() int {
	return len(b.events)
}

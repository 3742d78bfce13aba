// Package autosave coalesces rapid edits into debounced writes, with at most
// one write in flight per resource.
package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultQuiet is the idle period after the last edit before a write.
const DefaultQuiet = 900 * time.Millisecond

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("autosave: closed")

// SaveFunc persists value for the resource id.
type SaveFunc[T any] func(ctx context.Context, id string, value T) error

type entry[T any] struct {
	timer      *time.Timer
	latest     T // newest value submitted, written or not
	pending    T
	hasPending bool
	inFlight   bool
	due        bool // quiet period elapsed while a write was in flight
	gen        int
}

// Saver debounces edits per resource id. Only the latest pending value is
// kept; the last write wins.
type Saver[T any] struct {
	quiet   time.Duration
	timeout time.Duration
	save    SaveFunc[T]
	onError func(id string, err error)

	mu       sync.Mutex
	entries  map[string]*entry[T]
	closed   bool
	inflight int
	idle     chan struct{} // closed when inflight drops to zero
	seq      int
}

// New creates a saver that calls save after quiet of inactivity.
func New[T any](quiet time.Duration, save SaveFunc[T]) *Saver[T] {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Saver[T]{
		quiet:   quiet,
		timeout: 30 * time.Second,
		save:    save,
		entries: make(map[string]*entry[T]),
		onError: func(id string, err error) {
			slog.Warn("Autosave failed", "id", id, "error", err)
		},
	}
}

// OnError replaces the failure callback. Failed writes are not retried.
func (s *Saver[T]) OnError(fn func(id string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Submit records value as the latest edit of id and restarts its quiet timer.
func (s *Saver[T]) Submit(id string, value T) error {
	return s.Update(id, value, func(cur *T) { *cur = value })
}

// Latest returns the newest value known for id that the store may not hold
// yet: a pending edit or one being written.
func (s *Saver[T]) Latest(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.latest, true
	}
	var zero T
	return zero, false
}

// Update applies fn to the newest value of id, or to base when the saver
// holds nothing for id, and records the result as the latest edit. Partial
// edits arriving inside one quiet period therefore accumulate.
func (s *Saver[T]) Update(id string, base T, fn func(cur *T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	e, ok := s.entries[id]
	if !ok {
		e = &entry[T]{latest: base}
		s.entries[id] = e
	}
	fn(&e.latest)
	e.pending = e.latest
	e.hasPending = true
	s.seq++
	e.gen = s.seq
	if e.timer != nil {
		e.timer.Stop()
	}
	gen := e.gen
	e.timer = time.AfterFunc(s.quiet, func() { s.fire(id, gen) })
	return nil
}

// Pending returns the number of resources with an unwritten edit.
func (s *Saver[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.hasPending {
			n++
		}
	}
	return n
}

func (s *Saver[T]) fire(id string, gen int) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.gen != gen || e.timer == nil {
		s.mu.Unlock()
		return
	}
	e.timer = nil
	v, start := s.takeLocked(e)
	if !start && !e.inFlight && !e.hasPending {
		// An earlier write already carried this edit.
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if start {
		s.run(id, e, v)
	}
}

// takeLocked claims the pending value when no write is in flight. When one
// is, the value is marked due and written once that write finishes.
func (s *Saver[T]) takeLocked(e *entry[T]) (T, bool) {
	var zero T
	if !e.hasPending {
		return zero, false
	}
	if e.inFlight {
		e.due = true
		return zero, false
	}
	v := e.pending
	e.pending = zero
	e.hasPending = false
	e.inFlight = true
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
	return v, true
}

func (s *Saver[T]) run(id string, e *entry[T], v T) {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.save(ctx, id, v)
		cancel()

		s.mu.Lock()
		if err != nil {
			onError := s.onError
			s.mu.Unlock()
			onError(id, err)
			s.mu.Lock()
		}
		if e.due && e.hasPending {
			var zero T
			v = e.pending
			e.pending = zero
			e.hasPending = false
			e.due = false
			s.mu.Unlock()
			continue
		}
		e.inFlight = false
		e.due = false
		s.inflight--
		if s.inflight == 0 {
			close(s.idle)
		}
		if !e.hasPending && e.timer == nil && s.entries[id] == e {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return
	}
}

// Flush writes every pending edit now and waits for all writes to finish or
// ctx to end.
func (s *Saver[T]) Flush(ctx context.Context) error {
	type job struct {
		id string
		e  *entry[T]
		v  T
	}
	var jobs []job

	s.mu.Lock()
	for id, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		if v, ok := s.takeLocked(e); ok {
			jobs = append(jobs, job{id: id, e: e, v: v})
		} else if !e.inFlight {
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	for _, j := range jobs {
		go s.run(j.id, j.e, j.v)
	}

	s.mu.Lock()
	if s.inflight == 0 {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting edits and cancels the quiet timers. Edits still
// pending are kept for a following Flush.
func (s *Saver[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
}

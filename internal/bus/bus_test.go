package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func startBus(t *testing.T) *EventBus {
	t.Helper()
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Run(ctx)
	return b
}

func TestEventBusDispatchesByKindAndWildcard(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 3)
	record := func(tag string) func(*Event) {
		return func(ev *Event) {
			mu.Lock()
			got = append(got, tag+":"+ev.Kind)
			mu.Unlock()
			done <- struct{}{}
		}
	}
	b.Subscribe(KindStatusSet, record("status"))
	b.Subscribe(KindAll, record("all"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.Publish(&Event{Kind: KindStatusSet})
	b.Publish(&Event{Kind: KindLogIngested})

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for dispatch, got %v", got)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	want := map[string]bool{"status:status.set": true, "all:status.set": true, "all:log.ingested": true}
	for _, g := range got {
		if !want[g] {
			t.Errorf("unexpected delivery %s", g)
		}
		delete(want, g)
	}
	if len(want) != 0 {
		t.Errorf("missing deliveries: %v", want)
	}
}

func TestPublishStampsTimestampAndDropsWhenFull(t *testing.T) {
	b := New()
	ev := &Event{Kind: KindLogIngested}
	b.Publish(ev)
	if ev.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
	for i := 0; i < 150; i++ {
		b.Publish(&Event{Kind: KindLogIngested})
	}
	if b.Pending() != 100 {
		t.Fatalf("expected queue capped at 100, got %d", b.Pending())
	}
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
	wrote  chan struct{}
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.wrote <- struct{}{} }()
	if f.fail {
		return errors.New("broker down")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestKafkaMirrorWritesEventsAsJSON(t *testing.T) {
	b := startBus(t)
	w := &fakeWriter{wrote: make(chan struct{}, 10)}
	m := NewKafkaMirrorWithWriter(w, "thebase.events")
	m.Attach(b)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(runDone)
	}()

	b.Publish(&Event{Kind: KindStatusSet, Payload: map[string]string{"state": "idle"}})
	select {
	case <-w.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for kafka write")
	}
	cancel()
	<-runDone

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != KindStatusSet {
		t.Errorf("unexpected key %q", w.msgs[0].Key)
	}
	var decoded Event
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Kind != KindStatusSet {
		t.Errorf("unexpected kind %q", decoded.Kind)
	}
	if !w.closed {
		t.Error("expected writer closed on shutdown")
	}
}

func TestKafkaMirrorSurvivesWriteFailure(t *testing.T) {
	b := startBus(t)
	w := &fakeWriter{fail: true, wrote: make(chan struct{}, 10)}
	m := NewKafkaMirrorWithWriter(w, "t")
	m.Attach(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	b.Publish(&Event{Kind: KindLogIngested})
	b.Publish(&Event{Kind: KindLogIngested})
	for i := 0; i < 2; i++ {
		select {
		case <-w.wrote:
		case <-time.After(2 * time.Second):
			t.Fatalf("write %d never attempted", i)
		}
	}
}

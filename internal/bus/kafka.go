package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the mirror needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMirror copies every bus event to a Kafka topic as JSON. Writes are
// attempted once; failures are logged and dropped.
type KafkaMirror struct {
	writer  MessageWriter
	topic   string
	timeout time.Duration
	queue   chan kafka.Message
}

// NewKafkaMirror creates a mirror producing to topic on the comma-separated brokers.
func NewKafkaMirror(brokers, topic string) *KafkaMirror {
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return NewKafkaMirrorWithWriter(w, topic)
}

// NewKafkaMirrorWithWriter wraps an existing writer.
func NewKafkaMirrorWithWriter(w MessageWriter, topic string) *KafkaMirror {
	return &KafkaMirror{
		writer:  w,
		topic:   topic,
		timeout: 10 * time.Second,
		queue:   make(chan kafka.Message, 100),
	}
}

// Attach subscribes the mirror to every event on b.
func (m *KafkaMirror) Attach(b *EventBus) {
	b.Subscribe(KindAll, m.handle)
}

func (m *KafkaMirror) handle(ev *Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("KafkaMirror: encode failed", "kind", ev.Kind, "error", err)
		return
	}
	msg := kafka.Message{
		Key:     []byte(ev.Kind),
		Value:   value,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(ev.Kind)}},
		Time:    ev.Timestamp,
	}
	select {
	case m.queue <- msg:
	default:
		slog.Warn("KafkaMirror: queue full, dropping event", "kind", ev.Kind)
	}
}

// Run writes queued messages until ctx is cancelled, then closes the writer.
func (m *KafkaMirror) Run(ctx context.Context) error {
	defer m.writer.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-m.queue:
			writeCtx, cancel := context.WithTimeout(ctx, m.timeout)
			err := m.writer.WriteMessages(writeCtx, msg)
			cancel()
			if err != nil {
				slog.Warn("KafkaMirror: write failed", "topic", m.topic, "key", string(msg.Key), "error", err)
			}
		}
	}
}

package musicmarket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// Publish does nothing and returns nil
func (n *NoopEventSink) Publish(ctx context.Context, event Event) error {
	return nil
}

// LoggingEventSink writes every event to a structured logger
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink that logs to logger, or to slog.Default when nil
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) Publish(ctx context.Context, event Event) error {
	attrs := []any{"event_id", event.ID, "type", event.Type}
	if event.TokenID != 0 {
		attrs = append(attrs, "token_id", event.TokenID)
	}
	if event.Message != "" {
		attrs = append(attrs, "message", event.Message)
	}
	if event.IsFailure() {
		l.logger.ErrorContext(ctx, "Operation failed", append(attrs, "err", event.Error)...)
		return nil
	}
	l.logger.InfoContext(ctx, "Operation succeeded", attrs...)
	return nil
}

// Broadcaster fans events out to subscriber channels.
// Slow subscribers miss events instead of blocking publishers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]chan Event
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uuid.UUID]chan Event)}
}

// Subscribe registers a subscriber with the given buffer size.
// The returned function unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	id := uuid.New()
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers the event to every subscriber with room in its buffer
func (b *Broadcaster) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of active subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// MultiSink publishes to every sink in order
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, event Event) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		_ = sink.Publish(ctx, event)
	}
	return nil
}

func emit(ctx context.Context, sink EventSink, t EventType, tokenID uint64, message string, err error) {
	if sink == nil {
		return
	}
	// Event sink errors never fail the operation that produced the event
	_ = sink.Publish(ctx, NewEvent(t, tokenID, message, err))
}

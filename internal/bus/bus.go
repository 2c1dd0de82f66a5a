package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Handler consumes one event. A returned error (or panic) is logged and
// never stops delivery to the remaining subscribers.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is the in-process publish/subscribe dispatcher. Publish fans out
// synchronously in registration order, so a subscriber always observes
// events in publish order. Every accepted event is appended to an
// in-process log queryable by correlation ID or type.
type Bus struct {
	logger  log.Logger
	metrics *Metrics

	mu     sync.Mutex
	nextID uint64
	subs   map[EventType][]subscription
	events []Event
}

// New creates a bus. metrics may be nil.
func New(logger log.Logger, metrics *Metrics) *Bus {
	if logger == nil {
		logger = log.Nop()
	}
	return &Bus{
		logger:  logger,
		metrics: metrics,
		subs:    make(map[EventType][]subscription),
	}
}

// Subscribe registers a handler for an event type (TypeWildcard for all
// events) and returns an unsubscribe function.
func (b *Bus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[t]
		for i, s := range list {
			if s.id == id {
				b.subs[t] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish validates, timestamps, logs and dispatches an event. A missing
// event type is logged and dropped without reaching any subscriber.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.Type == "" || ev.Type == TypeWildcard {
		b.logger.Error(ctx, fmt.Errorf("event missing type"), "dropping malformed event",
			"correlation_id", ev.CorrelationID,
		)
		if b.metrics != nil {
			b.metrics.Dropped.Inc()
		}
		return
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	// Snapshot subscribers under the lock, dispatch outside it so a
	// handler may publish follow-up events re-entrantly.
	b.mu.Lock()
	b.events = append(b.events, ev)
	handlers := make([]subscription, 0, len(b.subs[ev.Type])+len(b.subs[TypeWildcard]))
	handlers = append(handlers, b.subs[ev.Type]...)
	handlers = append(handlers, b.subs[TypeWildcard]...)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.Published.WithLabelValues(string(ev.Type)).Inc()
	}

	for _, s := range handlers {
		b.dispatch(ctx, s, ev)
	}
}

// dispatch invokes one handler, containing errors and panics.
func (b *Bus) dispatch(ctx context.Context, s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(ctx, fmt.Errorf("subscriber panic: %v", r), "event handler panicked",
				"event_type", string(ev.Type),
				"correlation_id", ev.CorrelationID,
			)
			if b.metrics != nil {
				b.metrics.HandlerFailures.WithLabelValues(string(ev.Type)).Inc()
			}
		}
	}()

	if err := s.handler(ctx, ev); err != nil {
		b.logger.Error(ctx, err, "event handler failed",
			"event_type", string(ev.Type),
			"correlation_id", ev.CorrelationID,
		)
		if b.metrics != nil {
			b.metrics.HandlerFailures.WithLabelValues(string(ev.Type)).Inc()
		}
	}
}

// ClaimHistory returns all events for one claim, in publish order.
func (b *Bus) ClaimHistory(correlationID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, ev := range b.events {
		if ev.CorrelationID == correlationID {
			out = append(out, ev)
		}
	}
	return out
}

// EventsByType returns all events of one type, in publish order.
func (b *Bus) EventsByType(t EventType) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, ev := range b.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops the event log. For tests.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

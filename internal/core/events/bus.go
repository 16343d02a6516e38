package events

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/frahmantamala/fitness-content/internal/metrics"
)

// Event is anything published on the bus. Payload is the loggable summary.
type Event interface {
	EventType() string
	EventID() string
	OccurredAt() time.Time
	Payload() map[string]any
}

// BaseEvent carries the envelope fields; concrete events embed it.
type BaseEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

func (e BaseEvent) EventType() string       { return e.Type }
func (e BaseEvent) EventID() string         { return e.ID }
func (e BaseEvent) OccurredAt() time.Time   { return e.Timestamp }
func (e BaseEvent) Payload() map[string]any { return e.Data }

type Handler func(ctx context.Context, event Event) error

// Publisher is the subset of the bus that services depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventBus dispatches events to in-process subscribers. Publish runs handlers in their own
// goroutines detached from the caller's cancellation; PublishSync runs them in order and
// stops at the first failure. A panicking handler is reported as a failure.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	inflight sync.WaitGroup
	logger   *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{handlers: make(map[string][]Handler), logger: logger}
}

func (eb *EventBus) Subscribe(eventType string, handler Handler) {
	eb.mu.Lock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	n := len(eb.handlers[eventType])
	eb.mu.Unlock()

	eb.logger.Debug("event handler registered", "event_type", eventType, "total_handlers", n)
}

func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	handlers := eb.subscribers(event)
	if len(handlers) == 0 {
		return nil
	}

	detached := context.WithoutCancel(ctx)
	for _, h := range handlers {
		eb.inflight.Add(1)
		go func() {
			defer eb.inflight.Done()
			_ = eb.run(detached, h, event)
		}()
	}
	return nil
}

func (eb *EventBus) PublishSync(ctx context.Context, event Event) error {
	for _, h := range eb.subscribers(event) {
		if err := eb.run(ctx, h, event); err != nil {
			return fmt.Errorf("handler failed for event %s: %w", event.EventType(), err)
		}
	}
	return nil
}

// Wait blocks until every asynchronously dispatched handler has returned.
func (eb *EventBus) Wait() {
	eb.inflight.Wait()
}

// subscribers returns a snapshot so handlers may subscribe while an event is dispatched.
func (eb *EventBus) subscribers(event Event) []Handler {
	eb.mu.RLock()
	handlers := slices.Clone(eb.handlers[event.EventType()])
	eb.mu.RUnlock()

	if len(handlers) == 0 {
		eb.logger.Debug("no handlers for event type", "event_type", event.EventType())
		return nil
	}
	eb.logger.Info("publishing event",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"handlers_count", len(handlers))
	return handlers
}

func (eb *EventBus) run(ctx context.Context, h Handler, event Event) (err error) {
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			err = fmt.Errorf("handler panic: %v", r)
			eb.logger.ErrorContext(ctx, "event handler panicked",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		metrics.EventsHandledTotal.WithLabelValues(event.EventType(), result).Inc()
	}()

	if err = h(ctx, event); err != nil {
		result = "error"
		eb.logger.ErrorContext(ctx, "event handler failed",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"error", err)
	}
	return err
}

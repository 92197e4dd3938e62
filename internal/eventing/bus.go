package eventing

import (
	"context"
	"sync"
)

// Handler handles a published envelope.
type Handler func(ctx context.Context, env Envelope) error

// Publisher publishes events.
type Publisher interface {
	Publish(ctx context.Context, event any, meta Meta) error
}

// Bus delivers events to subscribed handlers.
type Bus interface {
	Publisher
	Subscribe(eventType string, handler Handler)
}

// InMemoryBus is a synchronous in-process event bus. Handlers run on the
// publisher's goroutine in subscription order.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	all      []Handler
}

// NewInMemoryBus constructs a new in-memory bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
	}
}

// Publish wraps event and dispatches it to handlers of its type, then to
// handlers subscribed to every type. The first handler error is returned
// after all handlers ran.
func (b *InMemoryBus) Publish(ctx context.Context, event any, meta Meta) error {
	env, err := BuildEnvelope(event, meta)
	if err != nil {
		return err
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[env.EventType]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, env); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe registers a handler for an event type.
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) {
	if eventType == "" || handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// SubscribeAll registers a handler for every event type.
func (b *InMemoryBus) SubscribeAll(handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.all = append(b.all, handler)
	b.mu.Unlock()
}

// Subscribe registers a typed handler on bus.
func Subscribe[T any](bus Bus, handler func(ctx context.Context, event T, env Envelope) error) {
	if bus == nil || handler == nil {
		return
	}
	bus.Subscribe(EventTypeOf[T](), func(ctx context.Context, env Envelope) error {
		switch payload := env.Payload.(type) {
		case T:
			return handler(ctx, payload, env)
		case *T:
			if payload == nil {
				return ErrNilEvent
			}
			return handler(ctx, *payload, env)
		default:
			return ErrInvalidEventType
		}
	})
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, any, Meta) error { return nil }

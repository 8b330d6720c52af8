package events

import (
	"sync"

	"go.uber.org/zap"
)

// Handler receives a published event. Handlers run on their own goroutine
// and must not assume any ordering between events of different types.
type Handler func(Event)

// Bus is an in-process publish/subscribe channel. Delivery is at-least-once
// within the process; there is no replay and no cross-process guarantee.
type Bus struct {
	lg *zap.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[Type]map[int]Handler
}

// NewBus creates a Bus that logs handler panics to lg.
func NewBus(lg *zap.Logger) *Bus {
	return &Bus{
		lg:   lg,
		subs: make(map[Type]map[int]Handler),
	}
}

// Subscribe registers a handler for one event type and returns a function
// that removes the subscription. Unsubscribing twice is harmless.
func (b *Bus) Subscribe(t Type, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[t] == nil {
		b.subs[t] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[t][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[t], id)
	}
}

// Publish delivers the event to every handler subscribed to its type. Each
// handler runs on its own goroutine so a slow or panicking subscriber cannot
// stall the publisher or its peers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.EventType()]))
	for _, h := range b.subs[e.EventType()] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		go b.dispatch(h, e)
	}
}

func (b *Bus) dispatch(h Handler, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.lg.Error("event handler panicked",
				zap.String("event_type", string(e.EventType())),
				zap.String("order_id", e.OrderID()),
				zap.Any("panic", rec),
			)
		}
	}()
	h(e)
}

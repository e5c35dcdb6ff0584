package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler receives an event. Handlers run synchronously on the publishing
// goroutine while territory state is locked; they must not call back into a
// mutating territory operation.
type Handler func(*Event)

type subscription struct {
	id int
	h  Handler
}

// Bus fans events out in two phases. Subscribers see an event before its
// effect is applied and may cancel it; observers see it only once the effect
// has been committed.
type Bus struct {
	mu        sync.RWMutex
	byKind    map[Kind][]subscription
	all       []subscription
	observers []subscription
	nextID    int
	logger    *zap.Logger
	now       func() time.Time
}

// NewBus creates an empty bus.
//
// Precondition: logger must not be nil.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		byKind: make(map[Kind][]subscription),
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers h for events of kind k and returns a function that removes it.
func (b *Bus) Subscribe(k Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byKind[k] = append(b.byKind[k], subscription{id: id, h: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byKind[k] = remove(b.byKind[k], id)
	}
}

// SubscribeAll registers h for every event and returns a function that removes it.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, h: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

// Observe registers h for committed events and returns a function that
// removes it. Observers cannot cancel or alter an event.
func (b *Bus) Observe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.observers = append(b.observers, subscription{id: id, h: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.observers = remove(b.observers, id)
	}
}

// Publish delivers e to kind subscribers first, then to catch-all subscribers.
// Observers are not called; see Notify. A panicking handler is logged and skipped.
//
// Postcondition: ID and At are filled in if zero; returns false if e was cancelled.
func (b *Bus) Publish(e *Event) bool {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = b.now()
	}
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.byKind[e.Kind])+len(b.all))
	subs = append(subs, b.byKind[e.Kind]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s.h, e)
	}
	return !e.Cancelled()
}

// Notify delivers a committed e to observers in subscription order.
//
// Precondition: e was accepted by Publish and its effect has been applied.
func (b *Bus) Notify(e *Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.observers...)
	b.mu.RUnlock()
	for _, s := range subs {
		b.deliver(s.h, e)
	}
}

func (b *Bus) deliver(h Handler, e *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("kind", string(e.Kind)),
				zap.Stringer("event_id", e.ID),
				zap.Any("panic", r),
			)
		}
	}()
	h(e)
}

func remove(subs []subscription, id int) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

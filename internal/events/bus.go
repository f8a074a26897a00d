package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/terrasiaga/coordination/internal/worker"
)

// Handler is an in-process domain consumer (e.g. the disaster registry
// reacting to report validation). Handlers run synchronously in Publish
// order and must not block.
type Handler func(ev Event)

// Sink is an asynchronous consumer fed through the worker pool (journal,
// metrics, notifiers). Sink errors are logged by the pool, not propagated.
type Sink func(ctx context.Context, ev Event) error

// Bus fans domain events out to synchronous handlers, async sinks, and
// channel subscribers. Channel subscribers that fall behind are skipped.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[Type][]Handler
	sinks       []Sink
	subscribers map[uint64]chan Event
	nextID      atomic.Uint64
	pool        *worker.Pool[Event]
}

func NewBus(workers, bufferSize int) *Bus {
	b := &Bus{
		handlers:    make(map[Type][]Handler),
		subscribers: make(map[uint64]chan Event),
	}
	b.pool = worker.NewPool(workers, bufferSize, b.deliver)
	return b
}

func (b *Bus) Start(ctx context.Context) {
	b.pool.Start(ctx)
}

// Stop drains queued deliveries and closes all subscriber channels.
func (b *Bus) Stop() {
	b.pool.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}

// RegisterHandler wires a synchronous domain consumer. Call during setup,
// before Publish traffic starts.
func (b *Bus) RegisterHandler(t Type, h Handler) {
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], h)
	b.mu.Unlock()
}

// RegisterSink wires an asynchronous consumer.
func (b *Bus) RegisterSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Subscribe returns a buffered channel of all future events plus the token
// to unsubscribe with.
func (b *Bus) Subscribe() (uint64, chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, 100)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish stamps the event, runs synchronous handlers, then queues async
// delivery. Callers must not hold entity locks.
func (b *Bus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := b.handlers[ev.Type]
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}

	b.pool.Submit(ev)
}

func (b *Bus) deliver(ctx context.Context, ev Event) error {
	b.mu.RLock()
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	subs := make([]chan Event, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		subs = append(subs, ch)
	}
	b.mu.RUnlock()

	var firstErr error
	for _, s := range sinks {
		if err := s(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			// Skip slow subscribers
		}
	}
	return firstErr
}

// Package eventbus implements the Event Bus (spec §4.3): typed,
// synchronous pub/sub for the seven pipeline events, with listener
// lifecycle tracking and panic isolation.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/kugutsu/pipeline/pkg/models"
)

// Listener receives a dispatched event. A Listener that panics or
// returns an error is auto-unregistered; it is never invoked again.
type Listener func(models.PipelineEvent) error

// Unregister removes the listener it was returned for. Calling it more
// than once is a no-op.
type Unregister func()

// DefaultMaxListeners is the subscriber-count ceiling the Bus warns
// about and refuses to exceed (spec §4.3: "refuses to grow beyond a
// configured ceiling (warn and continue)" — exceeding it does not fail
// the caller, it simply declines to add the new listener).
const DefaultMaxListeners = 256

type subscription struct {
	id       uint64
	listener Listener
}

// Bus is a typed, synchronous, in-process event bus. The zero value is
// not usable; construct with New.
type Bus struct {
	mu          sync.Mutex
	subscribers map[models.EventKind][]subscription
	nextID      uint64
	maxPerKind  int
	log         *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxListeners overrides DefaultMaxListeners for the ceiling
// applied per event kind.
func WithMaxListeners(n int) Option {
	return func(b *Bus) { b.maxPerKind = n }
}

// WithLogger overrides the default slog logger used for refused
// subscriptions and listener failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.log = logger }
}

// New creates an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[models.EventKind][]subscription),
		maxPerKind:  DefaultMaxListeners,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers listener for events of the given kind and returns
// a handle to unregister it. If kind already has maxPerKind live
// listeners, Subscribe logs a warning and returns a no-op Unregister
// without adding the listener.
func (b *Bus) Subscribe(kind models.EventKind, listener Listener) Unregister {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subscribers[kind]) >= b.maxPerKind {
		b.log.Warn("event bus listener ceiling reached, refusing subscription",
			"kind", kind, "ceiling", b.maxPerKind)
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.subscribers[kind] = append(b.subscribers[kind], subscription{id: id, listener: listener})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[kind]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[kind] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount returns the number of live listeners for kind. Intended
// for leak diagnostics.
func (b *Bus) ListenerCount(kind models.EventKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[kind])
}

// Emit dispatches event to every listener subscribed to event.Kind,
// synchronously, in subscription order. Emit returns only after every
// listener has been invoked. A listener that panics or returns an error
// is logged and auto-unregistered; it does not interrupt dispatch to
// the remaining listeners.
func (b *Bus) Emit(event models.PipelineEvent) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subscribers[event.Kind]))
	copy(subs, b.subscribers[event.Kind])
	b.mu.Unlock()

	var faulty []uint64
	for _, sub := range subs {
		if !b.invoke(event, sub) {
			faulty = append(faulty, sub.id)
		}
	}
	if len(faulty) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.subscribers[event.Kind][:0]
	for _, s := range b.subscribers[event.Kind] {
		keep := true
		for _, id := range faulty {
			if s.id == id {
				keep = false
				break
			}
		}
		if keep {
			remaining = append(remaining, s)
		}
	}
	b.subscribers[event.Kind] = remaining
}

// invoke runs a single listener, recovering from panics, and reports
// whether the listener behaved (no panic, no error).
func (b *Bus) invoke(event models.PipelineEvent, sub subscription) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event listener panicked, unregistering",
				"kind", event.Kind, "task_id", event.TaskID, "panic", r)
			ok = false
		}
	}()
	if err := sub.listener(event); err != nil {
		b.log.Error("event listener returned error, unregistering",
			"kind", event.Kind, "task_id", event.TaskID, "error", err)
		return false
	}
	return true
}

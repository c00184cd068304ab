package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler reacts to a published event. A returned error is logged; it never
// reaches the publisher.
type Handler func(ctx context.Context, ev Event) error

// Publisher is the write side used by services.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type subscription struct {
	id      uint64
	types   map[Type]struct{}
	handler Handler
}

func (s *subscription) wants(t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus delivers events synchronously, in subscription order, to the
// subscribers registered for the event's type.
type Bus struct {
	mu     sync.Mutex
	subs   []*subscription
	nextID uint64
	seq    uint64
	now    func() time.Time
	logger *slog.Logger
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		now:    time.Now,
		logger: slog.Default(),
	}
}

func (b *Bus) WithClock(now func() time.Time) *Bus {
	b.now = now
	return b
}

func (b *Bus) WithLogger(logger *slog.Logger) *Bus {
	b.logger = logger
	return b
}

// Subscribe registers handler for the given types; no types means every type.
// The returned func removes the subscription and is safe to call twice.
func (b *Bus) Subscribe(handler Handler, types ...Type) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler, types: make(map[Type]struct{}, len(types))}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}
	b.subs = append(b.subs, sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish stamps ev and hands it to every interested subscriber. Handlers run
// outside the bus lock so they may publish follow-up events.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.Lock()
	b.seq++
	ev.Seq = b.seq
	if ev.At.IsZero() {
		ev.At = b.now().UTC()
	}
	targets := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(ev.Type) {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	for _, s := range targets {
		if err := s.handler(ctx, ev); err != nil {
			b.logger.Error("event handler failed",
				"type", string(ev.Type),
				"seq", ev.Seq,
				"error", err,
			)
		}
	}
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) {}

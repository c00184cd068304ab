package views

import (
	"context"
	"sync"

	"househub/agentcase"
	"househub/cases"
	"househub/events"
)

// Live holds a view snapshot that is recomputed whenever a matching event is
// published. It replaces re-scanning the store on every change.
type Live[T any] struct {
	mu        sync.RWMutex
	snapshot  T
	version   uint64
	listeners map[int]func(T)
	nextID    int
	closed    bool

	compute     func(context.Context) (T, error)
	match       func(events.Event) bool
	unsubscribe func()
}

// NewLive computes the first snapshot and subscribes to types. A nil match
// accepts every event of those types.
func NewLive[T any](ctx context.Context, bus *events.Bus, compute func(context.Context) (T, error), match func(events.Event) bool, types ...events.Type) (*Live[T], error) {
	snap, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	l := &Live[T]{
		snapshot:  snap,
		version:   1,
		listeners: map[int]func(T){},
		compute:   compute,
		match:     match,
	}
	l.unsubscribe = bus.Subscribe(l.handle, types...)
	return l, nil
}

func (l *Live[T]) handle(ctx context.Context, ev events.Event) error {
	if l.match != nil && !l.match(ev) {
		return nil
	}
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return nil
	}

	snap, err := l.compute(ctx)
	if err != nil {
		// keep serving the previous snapshot
		return err
	}

	l.mu.Lock()
	l.snapshot = snap
	l.version++
	listeners := make([]func(T), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

// Snapshot returns the latest computed view.
func (l *Live[T]) Snapshot() T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

// Version counts how many snapshots have been computed.
func (l *Live[T]) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// OnChange registers fn to receive each new snapshot. The returned func
// removes it.
func (l *Live[T]) OnChange(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Close detaches the view from the bus.
func (l *Live[T]) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.listeners = map[int]func(T){}
	l.mu.Unlock()
	l.unsubscribe()
}

var caseEvents = []events.Type{
	events.CaseCreated,
	events.CaseUpdated,
	events.CaseStatusChanged,
	events.CaseDeleted,
	events.OfferSubmitted,
	events.OfferStatusChanged,
	events.ShowingRegistered,
	events.ShowingBooked,
	events.EnvironmentReset,
}

// WatchSellerCases keeps SellerCases(sellerID) current.
func (s *Service) WatchSellerCases(ctx context.Context, bus *events.Bus, sellerID string) (*Live[[]cases.Case], error) {
	return NewLive(ctx, bus,
		func(ctx context.Context) ([]cases.Case, error) { return s.SellerCases(ctx, sellerID) },
		func(ev events.Event) bool {
			return ev.Type == events.EnvironmentReset || ev.SellerID == sellerID
		},
		caseEvents...,
	)
}

// WatchAgentCases keeps AgentCases(agentID, tab) current. Agent state changes
// of other agents are ignored.
func (s *Service) WatchAgentCases(ctx context.Context, bus *events.Bus, agentID string, tab agentcase.Status) (*Live[[]AgentCase], error) {
	types := append([]events.Type{events.AgentCaseChanged}, caseEvents...)
	return NewLive(ctx, bus,
		func(ctx context.Context) ([]AgentCase, error) { return s.AgentCases(ctx, agentID, tab) },
		func(ev events.Event) bool {
			if ev.Type == events.AgentCaseChanged {
				return ev.UserID == "" || ev.UserID == agentID
			}
			return true
		},
		types...,
	)
}

// WatchAdminOverview keeps an admin overview current across case and user
// changes.
func WatchAdminOverview[T any](ctx context.Context, bus *events.Bus, overview func(context.Context) (T, error)) (*Live[T], error) {
	types := append([]events.Type{
		events.UserCreated,
		events.UserUpdated,
		events.UserDeactivated,
		events.UserDeleted,
	}, caseEvents...)
	return NewLive(ctx, bus, overview, nil, types...)
}

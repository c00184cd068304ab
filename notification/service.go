// Package notification turns case events into per-user notifications.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"househub/auth"
	"househub/cases"
	"househub/events"
	"househub/kv"
	"househub/storage"
)

var ErrNotFound = errors.New("notification: not found")

type Kind string

const (
	KindNewCase       Kind = "new_case"
	KindNewOffer      Kind = "new_offer"
	KindStatusChanged Kind = "status_changed"
	KindMessage       Kind = "message"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CaseID    string    `json:"caseId,omitempty"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

// UserLister supplies the recipients of broadcast notifications.
type UserLister interface {
	ListUsers(ctx context.Context) ([]auth.User, error)
}

type Service struct {
	items       *storage.Collection[Notification]
	users       UserLister
	events      events.Publisher
	idGenerator func() string
	now         func() time.Time
}

func NewService(store kv.Store, users UserLister, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{
		items:       storage.NewCollection[Notification](store, storage.KeyNotifications),
		users:       users,
		events:      publisher,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Attach subscribes the service to the events it turns into notifications.
func (s *Service) Attach(bus *events.Bus) func() {
	return bus.Subscribe(s.Handle,
		events.CaseCreated,
		events.OfferSubmitted,
		events.CaseStatusChanged,
		events.MessageSent,
	)
}

// Handle implements events.Handler.
func (s *Service) Handle(ctx context.Context, ev events.Event) error {
	var batch []Notification
	switch ev.Type {
	case events.CaseCreated:
		agents, err := s.activeAgents(ctx)
		if err != nil {
			return err
		}
		text := "Ny sag tilgængelig"
		if addr := ev.String("address"); addr != "" {
			text = "Ny sag tilgængelig: " + addr
		}
		for _, a := range agents {
			batch = append(batch, s.build(a.ID, ev.CaseID, KindNewCase, text))
		}
	case events.OfferSubmitted:
		if ev.SellerID == "" {
			return nil
		}
		text := "Du har modtaget et nyt tilbud"
		if name := ev.String("agentName"); name != "" {
			text = "Nyt tilbud fra " + name
		}
		batch = append(batch, s.build(ev.SellerID, ev.CaseID, KindNewOffer, text))
	case events.CaseStatusChanged:
		if ev.SellerID == "" || ev.ActorID == ev.SellerID {
			return nil
		}
		label := cases.Status(ev.String("status")).Label()
		batch = append(batch, s.build(ev.SellerID, ev.CaseID, KindStatusChanged, "Din sag er nu "+label))
	case events.MessageSent:
		if ev.UserID == "" {
			return nil
		}
		text := "Ny besked"
		if from := ev.String("fromName"); from != "" {
			text = "Ny besked fra " + from
		}
		batch = append(batch, s.build(ev.UserID, ev.CaseID, KindMessage, text))
	}
	if len(batch) == 0 {
		return nil
	}

	err := s.items.Update(ctx, func(items []Notification) ([]Notification, error) {
		return append(items, batch...), nil
	})
	if err != nil {
		return fmt.Errorf("notification: store: %w", err)
	}
	s.events.Publish(ctx, events.Event{
		Type:    events.NotificationsChanged,
		CaseID:  ev.CaseID,
		Payload: map[string]any{"count": len(batch)},
	})
	return nil
}

// ListForUser returns the user's notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	items, err := s.items.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("notification: load: %w", err)
	}
	out := []Notification{}
	for _, n := range items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	list, err := s.ListForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.items.Update(ctx, func(items []Notification) ([]Notification, error) {
		for i := range items {
			if items[i].ID == id && items[i].UserID == userID {
				items[i].Read = true
				return items, nil
			}
		}
		return nil, ErrNotFound
	})
}

// DeleteForUser drops every notification addressed to userID.
func (s *Service) DeleteForUser(ctx context.Context, userID string) (int, error) {
	n := 0
	err := s.items.Update(ctx, func(items []Notification) ([]Notification, error) {
		kept := items[:0]
		for _, item := range items {
			if item.UserID == userID {
				n++
				continue
			}
			kept = append(kept, item)
		}
		return kept, nil
	})
	return n, err
}

func (s *Service) activeAgents(ctx context.Context) ([]auth.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("notification: list users: %w", err)
	}
	var out []auth.User
	for _, u := range users {
		if u.Role == auth.RoleAgent && u.Active() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Service) build(userID, caseID string, kind Kind, text string) Notification {
	return Notification{
		ID:        s.idGenerator(),
		UserID:    userID,
		CaseID:    caseID,
		Kind:      kind,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
}

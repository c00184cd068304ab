// Package messaging keeps the per-case conversation threads between sellers,
// agents and the admin.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"househub/cases"
	"househub/events"
	"househub/kv"
	"househub/storage"
)

var (
	ErrCaseArchived    = errors.New("messaging: case is archived")
	ErrMessageNotFound = errors.New("messaging: message not found")
	ErrEmptyMessage    = errors.New("messaging: message text required")
)

// Message is the stored message record.
type Message = cases.Message

// CaseReader resolves the case a message belongs to.
type CaseReader interface {
	GetByID(ctx context.Context, id string) (cases.Case, error)
}

type SendParams struct {
	CaseID     string
	FromUserID string
	ToUserID   string
	FromName   string
	ToName     string
	Message    string
}

type Service struct {
	messages    *storage.Collection[Message]
	cases       CaseReader
	events      events.Publisher
	idGenerator func() string
	now         func() time.Time
}

func NewService(store kv.Store, caseReader CaseReader, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{
		messages:    storage.NewCollection[Message](store, storage.KeyMessages),
		cases:       caseReader,
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

// Send appends a message to the case thread. Archived cases accept no new
// messages.
func (s *Service) Send(ctx context.Context, params SendParams) (Message, error) {
	text := strings.TrimSpace(params.Message)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if params.FromUserID == "" || params.ToUserID == "" {
		return Message{}, fmt.Errorf("messaging: sender and recipient are required")
	}

	c, err := s.cases.GetByID(ctx, params.CaseID)
	if err != nil {
		return Message{}, fmt.Errorf("messaging: resolve case: %w", err)
	}
	if c.Status == cases.StatusArchived {
		return Message{}, ErrCaseArchived
	}

	msg := Message{
		ID:         s.idGenerator(),
		CaseID:     c.ID,
		FromUserID: params.FromUserID,
		ToUserID:   params.ToUserID,
		FromName:   params.FromName,
		ToName:     params.ToName,
		Message:    text,
		Timestamp:  s.now().UTC(),
	}
	err = s.messages.Update(ctx, func(items []Message) ([]Message, error) {
		return append(items, msg), nil
	})
	if err != nil {
		return Message{}, fmt.Errorf("messaging: send: %w", err)
	}

	s.events.Publish(ctx, events.Event{
		Type:     events.MessageSent,
		ActorID:  msg.FromUserID,
		UserID:   msg.ToUserID,
		CaseID:   msg.CaseID,
		SellerID: c.SellerID,
		Payload: map[string]any{
			"messageId": msg.ID,
			"fromName":  msg.FromName,
		},
	})
	return msg, nil
}

// ListForCase returns the case thread oldest first.
func (s *Service) ListForCase(ctx context.Context, caseID string, includeArchived bool) ([]Message, error) {
	return s.filter(ctx, func(m Message) bool {
		return m.CaseID == caseID && (includeArchived || !m.Archived)
	})
}

// Inbox returns the non-archived messages addressed to userID.
func (s *Service) Inbox(ctx context.Context, userID string) ([]Message, error) {
	return s.filter(ctx, func(m Message) bool {
		return m.ToUserID == userID && !m.Archived
	})
}

// UnreadCount counts unread inbox messages.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	inbox, err := s.Inbox(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range inbox {
		if !m.Read {
			n++
		}
	}
	return n, nil
}

// MarkRead flags a message read. Only the recipient may do so.
func (s *Service) MarkRead(ctx context.Context, userID, messageID string) error {
	return s.messages.Update(ctx, func(items []Message) ([]Message, error) {
		for i := range items {
			if items[i].ID != messageID {
				continue
			}
			if items[i].ToUserID != userID {
				return nil, fmt.Errorf("messaging: message %s not addressed to %s", messageID, userID)
			}
			items[i].Read = true
			return items, nil
		}
		return nil, ErrMessageNotFound
	})
}

// ArchiveForCase hides the whole thread of a closed case.
func (s *Service) ArchiveForCase(ctx context.Context, caseID string) (int, error) {
	n := 0
	err := s.messages.Update(ctx, func(items []Message) ([]Message, error) {
		for i := range items {
			if items[i].CaseID == caseID && !items[i].Archived {
				items[i].Archived = true
				n++
			}
		}
		return items, nil
	})
	if err != nil {
		return 0, fmt.Errorf("messaging: archive: %w", err)
	}
	if n > 0 {
		s.events.Publish(ctx, events.Event{
			Type:    events.MessagesArchived,
			CaseID:  caseID,
			Payload: map[string]any{"count": n},
		})
	}
	return n, nil
}

// DeleteForCases removes the threads of deleted cases.
func (s *Service) DeleteForCases(ctx context.Context, caseIDs []string) (int, error) {
	if len(caseIDs) == 0 {
		return 0, nil
	}
	ids := make(map[string]struct{}, len(caseIDs))
	for _, id := range caseIDs {
		ids[id] = struct{}{}
	}
	n := 0
	err := s.messages.Update(ctx, func(items []Message) ([]Message, error) {
		kept := make([]Message, 0, len(items))
		for _, m := range items {
			if _, ok := ids[m.CaseID]; ok {
				n++
				continue
			}
			kept = append(kept, m)
		}
		return kept, nil
	})
	if err != nil {
		return 0, fmt.Errorf("messaging: delete: %w", err)
	}
	return n, nil
}

// Hydrate fills c.Messages with the visible thread.
func (s *Service) Hydrate(ctx context.Context, c cases.Case) (cases.Case, error) {
	thread, err := s.ListForCase(ctx, c.ID, false)
	if err != nil {
		return cases.Case{}, err
	}
	c.Messages = thread
	return c, nil
}

func (s *Service) filter(ctx context.Context, keep func(Message) bool) ([]Message, error) {
	items, err := s.messages.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("messaging: load: %w", err)
	}
	out := []Message{}
	for _, m := range items {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Package audit keeps the internal system log of administrative changes.
package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"househub/events"
	"househub/kv"
	"househub/storage"
)

type Action string

const (
	ActionUserDeleted       Action = "USER_DELETED"
	ActionUserDeactivated   Action = "USER_DEACTIVATED"
	ActionCaseStatusChanged Action = "CASE_STATUS_CHANGED"
	ActionCaseArchived      Action = "CASE_ARCHIVED"
	ActionCaseDeleted       Action = "CASE_DELETED"
)

type Entry struct {
	ID        string         `json:"id"`
	Action    Action         `json:"action"`
	UserID    string         `json:"userId,omitempty"`
	ActorID   string         `json:"adminId,omitempty"`
	CaseID    string         `json:"caseId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Log appends entries derived from events.
type Log struct {
	entries     *storage.Collection[Entry]
	idGenerator func() string
}

func NewLog(store kv.Store) *Log {
	return &Log{
		entries:     storage.NewCollection[Entry](store, storage.KeyAuditLog),
		idGenerator: func() string { return uuid.NewString() },
	}
}

func (l *Log) WithIDGenerator(gen func() string) *Log {
	l.idGenerator = gen
	return l
}

// Attach subscribes the log to the audited event types.
func (l *Log) Attach(bus *events.Bus) func() {
	return bus.Subscribe(l.Handle,
		events.UserDeleted,
		events.UserDeactivated,
		events.CaseStatusChanged,
		events.CaseDeleted,
	)
}

// Handle implements events.Handler.
func (l *Log) Handle(ctx context.Context, ev events.Event) error {
	entry := Entry{
		UserID:    ev.UserID,
		ActorID:   ev.ActorID,
		CaseID:    ev.CaseID,
		Timestamp: ev.At,
	}
	switch ev.Type {
	case events.UserDeleted:
		entry.Action = ActionUserDeleted
		entry.Details = pick(ev.Payload, "role", "casesRemoved")
	case events.UserDeactivated:
		entry.Action = ActionUserDeactivated
	case events.CaseStatusChanged:
		entry.Action = ActionCaseStatusChanged
		if ev.String("status") == "archived" {
			entry.Action = ActionCaseArchived
		}
		entry.Details = pick(ev.Payload, "previous", "status")
	case events.CaseDeleted:
		entry.Action = ActionCaseDeleted
		entry.Details = pick(ev.Payload, "sagsnummer")
	default:
		return nil
	}
	return l.Append(ctx, entry)
}

// Append stores entry, filling id and timestamp when missing.
func (l *Log) Append(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = l.idGenerator()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	err := l.entries.Update(ctx, func(items []Entry) ([]Entry, error) {
		return append(items, entry), nil
	})
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

// List returns entries oldest first, optionally limited to one action.
func (l *Log) List(ctx context.Context, action Action) ([]Entry, error) {
	items, err := l.entries.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	out := []Entry{}
	for _, e := range items {
		if action == "" || e.Action == action {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func pick(payload map[string]any, keys ...string) map[string]any {
	out := map[string]any{}
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

package audit

import (
	"context"
	"testing"
	"time"

	"househub/events"
	"househub/kv"
)

func TestLog_RecordsAuditedEvents(t *testing.T) {
	store := kv.NewMemoryStore()
	at := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	bus := events.NewBus().WithClock(func() time.Time { return at })
	log := NewLog(store)
	log.Attach(bus)
	ctx := context.Background()

	bus.Publish(ctx, events.Event{Type: events.UserDeleted, ActorID: "admin-test-1", UserID: "seller-1", Payload: map[string]any{"role": "seller"}})
	bus.Publish(ctx, events.Event{Type: events.CaseStatusChanged, ActorID: "admin-test-1", CaseID: "case-1", Payload: map[string]any{"previous": "active", "status": "archived"}})
	bus.Publish(ctx, events.Event{Type: events.CaseStatusChanged, CaseID: "case-2", Payload: map[string]any{"previous": "active", "status": "withdrawn"}})
	bus.Publish(ctx, events.Event{Type: events.MessageSent, CaseID: "case-1"})

	entries, err := log.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Action != ActionUserDeleted || entries[0].ActorID != "admin-test-1" || entries[0].UserID != "seller-1" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if !entries[0].Timestamp.Equal(at) {
		t.Fatalf("expected event time on entry, got %s", entries[0].Timestamp)
	}
	if entries[1].Action != ActionCaseArchived || entries[2].Action != ActionCaseStatusChanged {
		t.Fatalf("unexpected case actions %s %s", entries[1].Action, entries[2].Action)
	}

	archived, _ := log.List(ctx, ActionCaseArchived)
	if len(archived) != 1 || archived[0].CaseID != "case-1" {
		t.Fatalf("expected one archived entry, got %+v", archived)
	}
}

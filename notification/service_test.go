package notification

import (
	"context"
	"errors"
	"testing"

	"househub/auth"
	"househub/cases"
	"househub/events"
	"househub/kv"
)

type fakeUsers []auth.User

func (f fakeUsers) ListUsers(ctx context.Context) ([]auth.User, error) {
	return f, nil
}

func inactive() *bool {
	v := false
	return &v
}

func TestService_NotifiesAgentsAndSeller(t *testing.T) {
	store := kv.NewMemoryStore()
	bus := events.NewBus()
	users := fakeUsers{
		{ID: "admin-test-1", Role: auth.RoleAdmin},
		{ID: "agent-1", Role: auth.RoleAgent},
		{ID: "agent-2", Role: auth.RoleAgent, IsActive: inactive()},
		{ID: "seller-1", Role: auth.RoleSeller},
	}
	svc := NewService(store, users, bus)
	detach := svc.Attach(bus)
	defer detach()

	caseSvc := cases.NewService(cases.NewRepository(store), bus)
	ctx := context.Background()

	c, err := caseSvc.Create(ctx, cases.CreateParams{SellerID: "seller-1", Address: "Strandvejen 45"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	agentList, _ := svc.ListForUser(ctx, "agent-1")
	if len(agentList) != 1 || agentList[0].Kind != KindNewCase || agentList[0].Text != "Ny sag tilgængelig: Strandvejen 45" {
		t.Fatalf("unexpected agent notifications %+v", agentList)
	}
	if inactiveList, _ := svc.ListForUser(ctx, "agent-2"); len(inactiveList) != 0 {
		t.Fatalf("inactive agent must not be notified, got %+v", inactiveList)
	}

	if _, err := caseSvc.SubmitOffer(ctx, c.ID, cases.OfferParams{AgentID: "agent-1", AgentName: "Lars P."}); err != nil {
		t.Fatalf("submit offer: %v", err)
	}
	sellerList, _ := svc.ListForUser(ctx, "seller-1")
	var sawOffer, sawStatus bool
	for _, n := range sellerList {
		switch n.Kind {
		case KindNewOffer:
			sawOffer = n.Text == "Nyt tilbud fra Lars P."
		case KindStatusChanged:
			sawStatus = n.Text == "Din sag er nu tilbud modtaget"
		}
	}
	if !sawOffer || !sawStatus {
		t.Fatalf("expected offer and status notifications, got %+v", sellerList)
	}

	// the seller's own status change is not echoed back
	before := len(sellerList)
	if _, err := caseSvc.Withdraw(ctx, c.ID, "seller-1"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if after, _ := svc.ListForUser(ctx, "seller-1"); len(after) != before {
		t.Fatalf("expected no self notification, got %d -> %d", before, len(after))
	}
}

func TestService_MarkReadAndUnread(t *testing.T) {
	store := kv.NewMemoryStore()
	svc := NewService(store, fakeUsers{}, nil)
	ctx := context.Background()

	err := svc.Handle(ctx, events.Event{
		Type:     events.OfferSubmitted,
		CaseID:   "case-1",
		SellerID: "seller-1",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	list, _ := svc.ListForUser(ctx, "seller-1")
	if len(list) != 1 || list[0].Text != "Du har modtaget et nyt tilbud" {
		t.Fatalf("unexpected list %+v", list)
	}
	if n, _ := svc.UnreadCount(ctx, "seller-1"); n != 1 {
		t.Fatalf("expected 1 unread, got %d", n)
	}
	if err := svc.MarkRead(ctx, "someone-else", list[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}
	if err := svc.MarkRead(ctx, "seller-1", list[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n, _ := svc.UnreadCount(ctx, "seller-1"); n != 0 {
		t.Fatalf("expected 0 unread, got %d", n)
	}

	if n, err := svc.DeleteForUser(ctx, "seller-1"); err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
}

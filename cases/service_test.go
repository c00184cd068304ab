package cases

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"testing"
	"time"

	"househub/events"
	"househub/kv"
	"househub/storage"
)

var testNow = time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *kv.MemoryStore, *events.Recorder) {
	t.Helper()
	store := kv.NewMemoryStore()
	bus := events.NewBus()
	rec := &events.Recorder{}
	bus.Subscribe(rec.Handle)

	n := 0
	svc := NewService(NewRepository(store), bus).
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}).
		WithClock(func() time.Time { return testNow })
	return svc, store, rec
}

func strandvejen() CreateParams {
	return CreateParams{
		SellerID:     "seller-1",
		Address:      "Strandvejen 45",
		Postnummer:   "2900",
		Municipality: "Gentofte",
		Type:         "Villa",
		Size:         180,
		BuildYear:    1962,
		Price:        "8.500.000 kr",
		PriceValue:   8500000,
	}
}

func TestService_CreateThenGetByID(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, strandvejen())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Status != StatusActive || !created.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected defaults: %+v", created)
	}
	if !regexp.MustCompile(`^HH-2025-\d{7}$`).MatchString(created.Sagsnummer) {
		t.Fatalf("unexpected sagsnummer %q", created.Sagsnummer)
	}

	got, err := svc.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, created) {
		t.Fatalf("stored case differs:\n got %+v\nwant %+v", got, created)
	}

	want := NewCase(strandvejen(), testNow)
	want.ID = created.ID
	want.Sagsnummer = created.Sagsnummer
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("case does not match input plus defaults:\n got %+v\nwant %+v", got, want)
	}

	bySag, err := svc.GetBySagsnummer(ctx, created.Sagsnummer)
	if err != nil || bySag.ID != created.ID {
		t.Fatalf("get by sagsnummer: %+v err=%v", bySag, err)
	}

	if types := rec.Types(); len(types) != 1 || types[0] != events.CaseCreated {
		t.Fatalf("expected one case.created event, got %v", types)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{Address: "Vej 1"}); err == nil {
		t.Fatal("expected missing seller error")
	}
	if _, err := svc.Create(ctx, CreateParams{SellerID: "seller-1"}); err == nil {
		t.Fatal("expected missing address error")
	}
	params := strandvejen()
	params.Status = "sold"
	if _, err := svc.Create(ctx, params); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestService_CreateRetriesTakenSagsnummer(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	numbers := []string{"HH-2025-0000001", "HH-2025-0000001", "HH-2025-0000002"}
	svc.WithSagsnummerGenerator(func(time.Time) (string, error) {
		n := numbers[0]
		numbers = numbers[1:]
		return n, nil
	})

	first, err := svc.Create(ctx, strandvejen())
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := svc.Create(ctx, strandvejen())
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.Sagsnummer == second.Sagsnummer {
		t.Fatalf("expected unique sagsnummer, both %s", first.Sagsnummer)
	}
	if second.Sagsnummer != "HH-2025-0000002" {
		t.Fatalf("expected retry to pick next number, got %s", second.Sagsnummer)
	}
}

func TestService_UpdateStatus(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	created, _ := svc.Create(ctx, strandvejen())
	rec.Reset()

	updated, err := svc.UpdateStatus(ctx, created.ID, StatusArchived, "admin-test-1")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := svc.GetByID(ctx, created.ID)
	if updated.Status != StatusArchived || got.Status != StatusArchived {
		t.Fatalf("expected archived, got %s / %s", updated.Status, got.Status)
	}

	evs := rec.Events()
	if len(evs) != 1 || evs[0].Type != events.CaseStatusChanged {
		t.Fatalf("expected case.statusChanged, got %v", rec.Types())
	}
	if evs[0].String("previous") != "active" || evs[0].String("status") != "archived" || evs[0].ActorID != "admin-test-1" {
		t.Fatalf("unexpected event payload %+v", evs[0])
	}

	// no transition table: archived may jump straight back to active
	if _, err := svc.UpdateStatus(ctx, created.ID, StatusActive, ""); err != nil {
		t.Fatalf("jump back to active: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, "missing", StatusArchived, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, created.ID, Status("sold"), ""); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestService_SaveUpserts(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	c := NewCase(strandvejen(), testNow)
	c.ID = "case-legacy"
	c.Sagsnummer = "HH-2025-1234567"

	if _, err := svc.Save(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}
	c.Price = "8.900.000 kr"
	if _, err := svc.Save(ctx, c); err != nil {
		t.Fatalf("resave: %v", err)
	}

	list, _ := svc.List(ctx, Filters{})
	if len(list) != 1 || list[0].Price != "8.900.000 kr" {
		t.Fatalf("expected single updated case, got %+v", list)
	}
	types := rec.Types()
	if len(types) != 2 || types[0] != events.CaseCreated || types[1] != events.CaseUpdated {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestService_ListFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, strandvejen())
	other := strandvejen()
	other.SellerID = "seller-2"
	other.Address = "Nørregade 12"
	b, _ := svc.Create(ctx, other)
	if _, err := svc.UpdateStatus(ctx, b.ID, StatusArchived, ""); err != nil {
		t.Fatalf("archive: %v", err)
	}

	list, _ := svc.List(ctx, Filters{})
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("expected archived case hidden, got %d", len(list))
	}
	list, _ = svc.List(ctx, Filters{IncludeArchived: true})
	if len(list) != 2 {
		t.Fatalf("expected both cases, got %d", len(list))
	}
	list, _ = svc.List(ctx, Filters{Status: StatusArchived})
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("expected archived filter to match, got %+v", list)
	}
	list, _ = svc.List(ctx, Filters{Search: "STRANDVEJ"})
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("expected address search match, got %+v", list)
	}
	list, _ = svc.List(ctx, Filters{Search: b.Sagsnummer, IncludeArchived: true})
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("expected sagsnummer search match, got %+v", list)
	}

	mine, _ := svc.ListBySeller(ctx, "seller-2")
	if len(mine) != 1 || mine[0].ID != b.ID {
		t.Fatalf("ListBySeller should include archived cases, got %+v", mine)
	}
}

func TestService_DeleteBySeller(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	_, _ = svc.Create(ctx, strandvejen())
	_, _ = svc.Create(ctx, strandvejen())
	other := strandvejen()
	other.SellerID = "seller-2"
	kept, _ := svc.Create(ctx, other)
	rec.Reset()

	removed, err := svc.DeleteBySeller(ctx, "seller-1", "admin-test-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %d", len(removed))
	}
	list, _ := svc.List(ctx, Filters{IncludeArchived: true})
	if len(list) != 1 || list[0].ID != kept.ID {
		t.Fatalf("expected only seller-2 case left, got %+v", list)
	}
	if len(rec.Types()) != 2 {
		t.Fatalf("expected one case.deleted per case, got %v", rec.Types())
	}
}

func TestService_SubmitOffer(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	c, _ := svc.Create(ctx, strandvejen())
	rec.Reset()

	offer, err := svc.SubmitOffer(ctx, c.ID, OfferParams{
		AgentID:       "agent-1",
		AgentName:     "Lars P.",
		AgencyName:    "EDC",
		ExpectedPrice: "8.700.000 kr",
		PriceValue:    8700000,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if offer.Status != OfferPending || offer.CaseID != c.ID {
		t.Fatalf("unexpected offer %+v", offer)
	}

	got, _ := svc.GetByID(ctx, c.ID)
	if got.Status != StatusOffersReceived || len(got.Offers) != 1 {
		t.Fatalf("expected offers_received with one offer, got %s/%d", got.Status, len(got.Offers))
	}
	if types := rec.Types(); len(types) != 2 || types[0] != events.OfferSubmitted || types[1] != events.CaseStatusChanged {
		t.Fatalf("unexpected events %v", types)
	}

	if _, err := svc.SubmitOffer(ctx, c.ID, OfferParams{AgentID: "agent-2"}); err != nil {
		t.Fatalf("second offer on offers_received case: %v", err)
	}
}

func TestService_SubmitOfferRejectedStates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, status := range []Status{StatusDraft, StatusWithdrawn, StatusArchived, StatusRealtorSelected} {
		c, _ := svc.Create(ctx, strandvejen())
		if _, err := svc.UpdateStatus(ctx, c.ID, status, ""); err != nil {
			t.Fatalf("set %s: %v", status, err)
		}
		if _, err := svc.SubmitOffer(ctx, c.ID, OfferParams{AgentID: "agent-1"}); !errors.Is(err, ErrInvalidState) {
			t.Errorf("status %s: expected ErrInvalidState, got %v", status, err)
		}
	}

	if _, err := svc.SubmitOffer(ctx, "missing", OfferParams{AgentID: "agent-1"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_AcceptOfferRejectsOthers(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	c, _ := svc.Create(ctx, strandvejen())
	first, _ := svc.SubmitOffer(ctx, c.ID, OfferParams{AgentID: "agent-1"})
	second, _ := svc.SubmitOffer(ctx, c.ID, OfferParams{AgentID: "agent-2"})

	updated, err := svc.SetOfferStatus(ctx, c.ID, second.ID, OfferAccepted, "seller-1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if updated.Status != StatusRealtorSelected {
		t.Fatalf("expected realtor_selected, got %s", updated.Status)
	}
	for _, o := range updated.Offers {
		switch o.ID {
		case first.ID:
			if o.Status != OfferRejected {
				t.Errorf("expected other offer rejected, got %s", o.Status)
			}
		case second.ID:
			if o.Status != OfferAccepted {
				t.Errorf("expected accepted offer, got %s", o.Status)
			}
		}
	}

	if _, err := svc.SetOfferStatus(ctx, c.ID, "nope", OfferRejected, ""); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("expected ErrOfferNotFound, got %v", err)
	}
}

func TestService_ShowingLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	c, _ := svc.Create(ctx, strandvejen())

	agent := AgentRef{ID: "agent-1", Name: "Lars P.", AgencyName: "EDC"}
	first, err := svc.RegisterShowing(ctx, c.ID, agent)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	again, err := svc.RegisterShowing(ctx, c.ID, agent)
	if err != nil {
		t.Fatalf("register again: %v", err)
	}
	if first.ID != again.ID {
		t.Fatalf("expected idempotent registration, got %s and %s", first.ID, again.ID)
	}

	if _, err := svc.CompleteShowing(ctx, c.ID, "seller-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before booking, got %v", err)
	}

	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	booked, err := svc.BookShowing(ctx, c.ID, date, "14:00", "Parkering i indkørslen", "seller-1")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if booked.Status != StatusShowingBooked || booked.ShowingDate == nil || !booked.ShowingDate.Equal(date) {
		t.Fatalf("unexpected booked case %+v", booked)
	}

	done, err := svc.CompleteShowing(ctx, c.ID, "seller-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusShowingCompleted || len(done.ShowingRegistrations) != 1 {
		t.Fatalf("unexpected completed case %+v", done)
	}

	withdrawn, err := svc.Withdraw(ctx, c.ID, "seller-1")
	if err != nil || withdrawn.Status != StatusWithdrawn {
		t.Fatalf("withdraw: %+v err=%v", withdrawn, err)
	}
	if _, err := svc.RegisterShowing(ctx, c.ID, AgentRef{ID: "agent-2"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on withdrawn case, got %v", err)
	}
}

func TestService_BookShowingKeepsOffersReceived(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	c, _ := svc.Create(ctx, strandvejen())
	if _, err := svc.SubmitOffer(ctx, c.ID, OfferParams{AgentID: "agent-1", PriceValue: 8700000}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	rec.Reset()

	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	booked, err := svc.BookShowing(ctx, c.ID, date, "14:00", "", "seller-1")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if booked.Status != StatusOffersReceived || len(booked.Offers) != 1 {
		t.Fatalf("expected offers_received kept, got %s with %d offers", booked.Status, len(booked.Offers))
	}
	if booked.ShowingDate == nil || !booked.ShowingDate.Equal(date) || booked.ShowingTime != "14:00" {
		t.Fatalf("expected showing slot stored, got %+v", booked)
	}
	if types := rec.Types(); len(types) != 1 || types[0] != events.ShowingBooked {
		t.Fatalf("expected only showing.booked, got %v", types)
	}
}

func TestService_CorruptCollection(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	if err := store.Set(ctx, storage.KeyCases, "{not json"); err != nil {
		t.Fatalf("seed corrupt: %v", err)
	}
	if _, err := svc.GetByID(ctx, "any"); !errors.Is(err, storage.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if _, err := svc.Create(ctx, strandvejen()); !errors.Is(err, storage.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt on create, got %v", err)
	}
}

func TestStatus_Labels(t *testing.T) {
	if StatusShowingBooked.Label() != "fremvisning booket" {
		t.Fatalf("unexpected label %q", StatusShowingBooked.Label())
	}
	if _, err := ParseStatus("bogus"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if s, err := ParseStatus(" archived "); err != nil || s != StatusArchived {
		t.Fatalf("parse archived: %s %v", s, err)
	}
	if len(Statuses()) != 8 {
		t.Fatalf("expected 8 statuses, got %d", len(Statuses()))
	}
}

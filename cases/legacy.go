package cases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"househub/kv"
	"househub/storage"
)

// legacyCase is the per-seller record the old wizard wrote under
// "seller_case_<id>".
type legacyCase struct {
	SellerID       string    `json:"sellerId"`
	Address        string    `json:"address"`
	PostalCode     string    `json:"postalCode"`
	Municipality   string    `json:"municipality"`
	PropertyType   string    `json:"propertyType"`
	Size           flexInt   `json:"size"`
	BuildYear      flexInt   `json:"buildYear"`
	EstimatedPrice string    `json:"estimatedPrice"`
	Sagsnummer     string    `json:"sagsnummer"`
	CreatedAt      time.Time `json:"createdAt"`
}

type legacyShowing struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Completed bool   `json:"completed"`
}

type legacyOffer struct {
	AgentID          string            `json:"agentId"`
	AgentName        string            `json:"agentName"`
	AgencyName       string            `json:"agencyName"`
	ExpectedPrice    string            `json:"expectedPrice"`
	PriceValue       int64             `json:"priceValue"`
	Commission       string            `json:"commission"`
	CommissionValue  int64             `json:"commissionValue"`
	BindingPeriod    string            `json:"bindingPeriod"`
	MarketingPackage string            `json:"marketingPackage"`
	SalesStrategy    string            `json:"salesStrategy"`
	MarketingMethods []MarketingMethod `json:"marketingMethods"`
	SubmittedAt      time.Time         `json:"submittedAt"`
}

type legacyRegistration struct {
	ID           string `json:"id"`
	AgentID      string `json:"agentId"`
	AgentName    string `json:"agentName"`
	AgencyName   string `json:"agencyName"`
	RegisteredAt string `json:"registeredAt"`
}

// flexInt accepts both 120 and "120".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	digits := digitsOnly(s)
	if s == "null" || digits == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return fmt.Errorf("cases: parse number %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

// Migrator folds the old per-seller key layout into the unified collection.
type Migrator struct {
	store kv.Store
	svc   *Service
}

func NewMigrator(store kv.Store, svc *Service) *Migrator {
	return &Migrator{store: store, svc: svc}
}

// MigrateLegacy converts every "seller_case_<id>" record into a canonical
// case and removes the legacy keys. A record without an address is dropped.
// It returns the number of cases written.
func (m *Migrator) MigrateLegacy(ctx context.Context) (int, error) {
	keys, err := m.store.ScanKeys(ctx, kv.Prefix(storage.LegacySellerCasePrefix))
	if err != nil {
		return 0, fmt.Errorf("cases: scan legacy keys: %w", err)
	}

	migrated := 0
	for _, key := range keys {
		if strings.HasPrefix(key, storage.LegacySellerCaseStatusPrefix) {
			continue
		}
		id := strings.TrimPrefix(key, storage.LegacySellerCasePrefix)

		var rec legacyCase
		found, err := storage.ReadJSON(ctx, m.store, key, &rec)
		if err != nil && !errors.Is(err, storage.ErrCorrupt) {
			return migrated, err
		}
		if found && err == nil && strings.TrimSpace(rec.Address) != "" {
			ok, err := m.migrateOne(ctx, id, rec)
			if err != nil {
				return migrated, fmt.Errorf("cases: migrate %s: %w", key, err)
			}
			if ok {
				migrated++
			}
		}
		if err := m.removeLegacy(ctx, id); err != nil {
			return migrated, err
		}
	}
	return migrated, nil
}

func (m *Migrator) migrateOne(ctx context.Context, id string, rec legacyCase) (bool, error) {
	if _, err := m.svc.GetByID(ctx, id); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	now := m.svc.now()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	c := NewCase(CreateParams{
		SellerID:     rec.SellerID,
		Address:      rec.Address,
		Postnummer:   rec.PostalCode,
		Municipality: rec.Municipality,
		Type:         rec.PropertyType,
		Size:         int(rec.Size),
		BuildYear:    int(rec.BuildYear),
		Price:        rec.EstimatedPrice,
		PriceValue:   parsePrice(rec.EstimatedPrice),
	}, created)
	c.ID = id

	raw, ok, err := m.store.Get(ctx, storage.LegacySellerCaseStatusPrefix+id)
	if err != nil {
		return false, err
	}
	if ok && raw != "" && strings.Trim(raw, `"`) != string(StatusActive) {
		c.Status = StatusWithdrawn
	}

	var showing legacyShowing
	if found, err := storage.ReadJSON(ctx, m.store, storage.LegacyShowingDataPrefix+id, &showing); err == nil && found {
		if d, perr := time.Parse("2006-01-02", showing.Date); perr == nil {
			c.ShowingDate = &d
			c.ShowingTime = showing.Time
			if c.Status == StatusActive {
				c.Status = StatusShowingBooked
				if showing.Completed {
					c.Status = StatusShowingCompleted
				}
			}
		}
	}

	var offers []legacyOffer
	if found, err := storage.ReadJSON(ctx, m.store, storage.LegacyCaseOffersPrefix+id, &offers); err == nil && found {
		for _, o := range offers {
			c.Offers = append(c.Offers, Offer{
				ID:               m.svc.idGenerator(),
				CaseID:           id,
				AgentID:          o.AgentID,
				AgentName:        o.AgentName,
				AgencyName:       o.AgencyName,
				ExpectedPrice:    o.ExpectedPrice,
				PriceValue:       o.PriceValue,
				Commission:       o.Commission,
				CommissionValue:  o.CommissionValue,
				BindingPeriod:    o.BindingPeriod,
				MarketingPackage: o.MarketingPackage,
				SalesStrategy:    o.SalesStrategy,
				MarketingMethods: append([]MarketingMethod{}, o.MarketingMethods...),
				SubmittedAt:      o.SubmittedAt,
				Status:           OfferPending,
			})
		}
		if len(c.Offers) > 0 && c.Status.AcceptsOffers() {
			c.Status = StatusOffersReceived
		}
	}

	var regs []legacyRegistration
	if found, err := storage.ReadJSON(ctx, m.store, storage.LegacyShowingRegsPrefix+id, &regs); err == nil && found {
		seen := make(map[string]bool, len(regs))
		for _, r := range regs {
			if strings.TrimSpace(r.AgentID) == "" || seen[r.AgentID] {
				continue
			}
			seen[r.AgentID] = true
			regID := r.ID
			if regID == "" {
				regID = m.svc.idGenerator()
			}
			registered, perr := time.Parse(time.RFC3339, r.RegisteredAt)
			if perr != nil {
				registered = created
			}
			c.ShowingRegistrations = append(c.ShowingRegistrations, ShowingRegistration{
				ID:           regID,
				CaseID:       id,
				AgentID:      r.AgentID,
				AgentName:    r.AgentName,
				AgencyName:   r.AgencyName,
				RegisteredAt: registered.UTC(),
			})
		}
	}

	num := rec.Sagsnummer
	taken := true
	if num != "" {
		if taken, err = m.svc.repo.SagsnummerTaken(ctx, num); err != nil {
			return false, err
		}
	}
	for attempt := 0; taken && attempt < maxSagsnummerAttempts; attempt++ {
		if num, err = m.svc.sagsnummer(now); err != nil {
			return false, err
		}
		if taken, err = m.svc.repo.SagsnummerTaken(ctx, num); err != nil {
			return false, err
		}
	}
	if taken {
		return false, fmt.Errorf("cases: could not allocate unique sagsnummer")
	}
	c.Sagsnummer = num

	if _, err := m.svc.Save(ctx, c); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Migrator) removeLegacy(ctx context.Context, id string) error {
	for _, prefix := range storage.LegacyPrefixes() {
		if err := m.store.Remove(ctx, prefix+id); err != nil {
			return fmt.Errorf("cases: remove legacy %s%s: %w", prefix, id, err)
		}
	}
	return nil
}

func parsePrice(raw string) int64 {
	n, err := strconv.ParseInt(digitsOnly(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"househub/events"
)

const maxSagsnummerAttempts = 16

type Service struct {
	repo        Repository
	events      events.Publisher
	idGenerator func() string
	sagsnummer  func(time.Time) (string, error)
	now         func() time.Time
}

func NewService(repo Repository, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{
		repo:        repo,
		events:      publisher,
		idGenerator: func() string { return uuid.NewString() },
		sagsnummer:  GenerateSagsnummer,
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithSagsnummerGenerator(gen func(time.Time) (string, error)) *Service {
	s.sagsnummer = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create stores a new case with a fresh id and a sagsnummer unused by any
// stored case.
func (s *Service) Create(ctx context.Context, params CreateParams) (Case, error) {
	if strings.TrimSpace(params.SellerID) == "" {
		return Case{}, fmt.Errorf("cases: missing seller id")
	}
	if strings.TrimSpace(params.Address) == "" {
		return Case{}, fmt.Errorf("cases: address required")
	}
	if params.Status != "" && !params.Status.Valid() {
		return Case{}, fmt.Errorf("%w: %q", ErrInvalidStatus, params.Status)
	}

	now := s.now()
	c := NewCase(params, now)
	c.ID = s.idGenerator()

	for attempt := 0; attempt < maxSagsnummerAttempts; attempt++ {
		num, err := s.sagsnummer(now)
		if err != nil {
			return Case{}, err
		}
		taken, err := s.repo.SagsnummerTaken(ctx, num)
		if err != nil {
			return Case{}, err
		}
		if taken {
			continue
		}
		c.Sagsnummer = num
		created, err := s.repo.Insert(ctx, c)
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		if err != nil {
			return Case{}, err
		}
		s.publish(ctx, events.CaseCreated, "", created, map[string]any{
			"sagsnummer": created.Sagsnummer,
			"status":     string(created.Status),
			"address":    created.Address,
		})
		return created, nil
	}
	return Case{}, fmt.Errorf("cases: could not allocate unique sagsnummer after %d attempts", maxSagsnummerAttempts)
}

func (s *Service) GetByID(ctx context.Context, id string) (Case, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetBySagsnummer(ctx context.Context, sagsnummer string) (Case, error) {
	return s.repo.GetBySagsnummer(ctx, sagsnummer)
}

func (s *Service) List(ctx context.Context, filters Filters) ([]Case, error) {
	return s.repo.List(ctx, filters)
}

// ListBySeller returns every case of the seller, archived ones included.
func (s *Service) ListBySeller(ctx context.Context, sellerID string) ([]Case, error) {
	return s.repo.List(ctx, Filters{SellerID: sellerID, IncludeArchived: true})
}

// UpdateStatus sets any known status regardless of the current one.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status, actorID string) (Case, error) {
	if !status.Valid() {
		return Case{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var previous Status
	updated, err := s.repo.Mutate(ctx, id, func(c *Case) error {
		previous = c.Status
		c.Status = status
		c.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return Case{}, err
	}

	s.publish(ctx, events.CaseStatusChanged, actorID, updated, map[string]any{
		"previous": string(previous),
		"status":   string(status),
	})
	return updated, nil
}

// Save upserts c by id. Missing child collections are stored empty.
func (s *Service) Save(ctx context.Context, c Case) (Case, error) {
	if c.ID == "" {
		return Case{}, fmt.Errorf("cases: save: missing id")
	}
	if !c.Status.Valid() {
		return Case{}, fmt.Errorf("%w: %q", ErrInvalidStatus, c.Status)
	}
	now := s.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	saved, created, err := s.repo.Upsert(ctx, c)
	if err != nil {
		return Case{}, err
	}
	evType := events.CaseUpdated
	if created {
		evType = events.CaseCreated
	}
	s.publish(ctx, evType, "", saved, map[string]any{
		"sagsnummer": saved.Sagsnummer,
		"status":     string(saved.Status),
	})
	return saved, nil
}

// DeleteBySeller removes every case owned by sellerID.
func (s *Service) DeleteBySeller(ctx context.Context, sellerID, actorID string) ([]Case, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("cases: missing seller id")
	}
	removed, err := s.repo.DeleteWhere(ctx, func(c Case) bool { return c.SellerID == sellerID })
	if err != nil {
		return nil, err
	}
	for _, c := range removed {
		s.publish(ctx, events.CaseDeleted, actorID, c, map[string]any{"sagsnummer": c.Sagsnummer})
	}
	return removed, nil
}

// Withdraw marks the case withdrawn by its seller.
func (s *Service) Withdraw(ctx context.Context, id, actorID string) (Case, error) {
	return s.UpdateStatus(ctx, id, StatusWithdrawn, actorID)
}

func (s *Service) publish(ctx context.Context, t events.Type, actorID string, c Case, payload map[string]any) {
	s.events.Publish(ctx, events.Event{
		Type:     t,
		ActorID:  actorID,
		CaseID:   c.ID,
		SellerID: c.SellerID,
		Payload:  payload,
	})
}

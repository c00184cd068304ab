package cases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"househub/kv"
	"househub/storage"
)

var (
	ErrNotFound      = errors.New("cases: not found")
	ErrInvalidStatus = errors.New("cases: invalid status")
	ErrInvalidState  = errors.New("cases: invalid state for operation")
	ErrDuplicate     = errors.New("cases: duplicate sagsnummer")
)

type Repository interface {
	List(ctx context.Context, filters Filters) ([]Case, error)
	GetByID(ctx context.Context, id string) (Case, error)
	GetBySagsnummer(ctx context.Context, sagsnummer string) (Case, error)
	// Insert appends c; it fails with ErrDuplicate when the sagsnummer is taken.
	Insert(ctx context.Context, c Case) (Case, error)
	// Upsert replaces the case with the same id or appends it. The bool reports
	// whether a new record was created.
	Upsert(ctx context.Context, c Case) (Case, bool, error)
	// Mutate applies fn to the stored case and persists the result.
	Mutate(ctx context.Context, id string, fn func(*Case) error) (Case, error)
	DeleteWhere(ctx context.Context, match func(Case) bool) ([]Case, error)
	SagsnummerTaken(ctx context.Context, sagsnummer string) (bool, error)
}

// KVRepository stores every case in the unified cases collection.
type KVRepository struct {
	cases *storage.Collection[Case]
}

func NewRepository(store kv.Store) *KVRepository {
	return &KVRepository{cases: storage.NewCollection[Case](store, storage.KeyCases)}
}

func (r *KVRepository) load(ctx context.Context) ([]Case, error) {
	items, err := r.cases.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("cases: load: %w", err)
	}
	for i := range items {
		normalize(&items[i])
	}
	return items, nil
}

// List returns matching cases, newest first.
func (r *KVRepository) List(ctx context.Context, filters Filters) ([]Case, error) {
	items, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(filters.Search))

	list := []Case{}
	for _, c := range items {
		if filters.SellerID != "" && c.SellerID != filters.SellerID {
			continue
		}
		if filters.Status != "" {
			if c.Status != filters.Status {
				continue
			}
		} else if !filters.IncludeArchived && c.Status == StatusArchived {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Address), search) &&
			!strings.Contains(strings.ToLower(c.Sagsnummer), search) {
			continue
		}
		list = append(list, c)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (r *KVRepository) GetByID(ctx context.Context, id string) (Case, error) {
	items, err := r.load(ctx)
	if err != nil {
		return Case{}, err
	}
	for _, c := range items {
		if c.ID == id {
			return c, nil
		}
	}
	return Case{}, ErrNotFound
}

func (r *KVRepository) GetBySagsnummer(ctx context.Context, sagsnummer string) (Case, error) {
	items, err := r.load(ctx)
	if err != nil {
		return Case{}, err
	}
	for _, c := range items {
		if c.Sagsnummer == sagsnummer {
			return c, nil
		}
	}
	return Case{}, ErrNotFound
}

func (r *KVRepository) SagsnummerTaken(ctx context.Context, sagsnummer string) (bool, error) {
	_, err := r.GetBySagsnummer(ctx, sagsnummer)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *KVRepository) Insert(ctx context.Context, c Case) (Case, error) {
	normalize(&c)
	err := r.cases.Update(ctx, func(items []Case) ([]Case, error) {
		for _, existing := range items {
			if existing.ID == c.ID {
				return nil, fmt.Errorf("cases: insert: id %s already exists", c.ID)
			}
			if existing.Sagsnummer == c.Sagsnummer {
				return nil, ErrDuplicate
			}
		}
		return append(items, c), nil
	})
	if err != nil {
		return Case{}, err
	}
	return c, nil
}

func (r *KVRepository) Upsert(ctx context.Context, c Case) (Case, bool, error) {
	normalize(&c)
	created := true
	err := r.cases.Update(ctx, func(items []Case) ([]Case, error) {
		for i := range items {
			if items[i].ID == c.ID {
				items[i] = c
				created = false
				return items, nil
			}
		}
		return append(items, c), nil
	})
	if err != nil {
		return Case{}, false, fmt.Errorf("cases: upsert: %w", err)
	}
	return c, created, nil
}

func (r *KVRepository) Mutate(ctx context.Context, id string, fn func(*Case) error) (Case, error) {
	var updated Case
	err := r.cases.Update(ctx, func(items []Case) ([]Case, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			next := items[i]
			normalize(&next)
			if err := fn(&next); err != nil {
				return nil, err
			}
			items[i] = next
			updated = next
			return items, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return Case{}, err
	}
	return updated, nil
}

// DeleteWhere removes every case accepted by match and returns the removed ones.
func (r *KVRepository) DeleteWhere(ctx context.Context, match func(Case) bool) ([]Case, error) {
	var removed []Case
	err := r.cases.Update(ctx, func(items []Case) ([]Case, error) {
		kept := make([]Case, 0, len(items))
		for _, c := range items {
			if match(c) {
				removed = append(removed, c)
				continue
			}
			kept = append(kept, c)
		}
		return kept, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cases: delete: %w", err)
	}
	return removed, nil
}

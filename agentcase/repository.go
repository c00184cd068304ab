package agentcase

import (
	"context"
	"fmt"

	"househub/kv"
	"househub/storage"
)

type Repository interface {
	List(ctx context.Context) ([]State, error)
	Put(ctx context.Context, st State) error
	// UpdateWhere rewrites every state accepted by match.
	UpdateWhere(ctx context.Context, match func(State) bool, fn func(*State)) (int, error)
	DeleteWhere(ctx context.Context, match func(State) bool) (int, error)
}

type KVRepository struct {
	states *storage.Collection[State]
}

func NewRepository(store kv.Store) *KVRepository {
	return &KVRepository{states: storage.NewCollection[State](store, storage.KeyAgentCaseStates)}
}

func (r *KVRepository) List(ctx context.Context) ([]State, error) {
	items, err := r.states.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("agentcase: list: %w", err)
	}
	return items, nil
}

// Put replaces the state for (AgentID, CaseID) or appends it.
func (r *KVRepository) Put(ctx context.Context, st State) error {
	err := r.states.Update(ctx, func(items []State) ([]State, error) {
		for i := range items {
			if items[i].AgentID == st.AgentID && items[i].CaseID == st.CaseID {
				items[i] = st
				return items, nil
			}
		}
		return append(items, st), nil
	})
	if err != nil {
		return fmt.Errorf("agentcase: put: %w", err)
	}
	return nil
}

func (r *KVRepository) UpdateWhere(ctx context.Context, match func(State) bool, fn func(*State)) (int, error) {
	n := 0
	err := r.states.Update(ctx, func(items []State) ([]State, error) {
		for i := range items {
			if match(items[i]) {
				fn(&items[i])
				n++
			}
		}
		return items, nil
	})
	if err != nil {
		return 0, fmt.Errorf("agentcase: update: %w", err)
	}
	return n, nil
}

func (r *KVRepository) DeleteWhere(ctx context.Context, match func(State) bool) (int, error) {
	n := 0
	err := r.states.Update(ctx, func(items []State) ([]State, error) {
		kept := make([]State, 0, len(items))
		for _, st := range items {
			if match(st) {
				n++
				continue
			}
			kept = append(kept, st)
		}
		return kept, nil
	})
	if err != nil {
		return 0, fmt.Errorf("agentcase: delete: %w", err)
	}
	return n, nil
}

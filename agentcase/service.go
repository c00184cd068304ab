package agentcase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"househub/cases"
	"househub/events"
)

var ErrInvalidStatus = errors.New("agentcase: invalid status")

// OfferSubmitter is the part of the case service used when an agent bids.
type OfferSubmitter interface {
	SubmitOffer(ctx context.Context, caseID string, params cases.OfferParams) (cases.Offer, error)
}

type Service struct {
	repo   Repository
	offers OfferSubmitter
	events events.Publisher
	now    func() time.Time
}

func NewService(repo Repository, offers OfferSubmitter, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{repo: repo, offers: offers, events: publisher, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns the stored state or the default active state.
func (s *Service) Get(ctx context.Context, agentID, caseID string) (State, error) {
	states, err := s.repo.List(ctx)
	if err != nil {
		return State{}, err
	}
	for _, st := range states {
		if st.AgentID == agentID && st.CaseID == caseID {
			return st, nil
		}
	}
	return defaultState(agentID, caseID), nil
}

// ForAgent maps case id to the agent's stored state. Cases without an entry
// are absent; callers fall back to the default.
func (s *Service) ForAgent(ctx context.Context, agentID string) (map[string]State, error) {
	states, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]State)
	for _, st := range states {
		if st.AgentID == agentID {
			out[st.CaseID] = st
		}
	}
	return out, nil
}

// ListForAgent returns the agent's stored states.
func (s *Service) ListForAgent(ctx context.Context, agentID string) ([]State, error) {
	states, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []State{}
	for _, st := range states {
		if st.AgentID == agentID {
			out = append(out, st)
		}
	}
	return out, nil
}

// SetStatus records status for the pair. SubmittedAt and RejectedAt are
// stamped when entering those statuses and otherwise kept. An empty offerID
// keeps the previous one.
func (s *Service) SetStatus(ctx context.Context, agentID, caseID string, status Status, offerID string) (State, error) {
	if agentID == "" || caseID == "" {
		return State{}, fmt.Errorf("agentcase: agent id and case id are required")
	}
	if !status.Valid() {
		return State{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	st, err := s.Get(ctx, agentID, caseID)
	if err != nil {
		return State{}, err
	}
	previous := st.Status

	now := s.now().UTC()
	st.Status = status
	switch status {
	case StatusOfferSubmitted:
		st.SubmittedAt = &now
	case StatusRejected:
		st.RejectedAt = &now
	}
	if offerID != "" {
		st.OfferID = offerID
	}
	st.UpdatedAt = now

	if err := s.repo.Put(ctx, st); err != nil {
		return State{}, err
	}

	s.events.Publish(ctx, events.Event{
		Type:    events.AgentCaseChanged,
		ActorID: agentID,
		UserID:  agentID,
		CaseID:  caseID,
		Payload: map[string]any{
			"previous": string(previous),
			"status":   string(status),
		},
	})
	return st, nil
}

// Reject hides the case from the agent's active tab.
func (s *Service) Reject(ctx context.Context, agentID, caseID string) (State, error) {
	return s.SetStatus(ctx, agentID, caseID, StatusRejected, "")
}

// Unreject moves a rejected case back to active.
func (s *Service) Unreject(ctx context.Context, agentID, caseID string) (State, error) {
	return s.SetStatus(ctx, agentID, caseID, StatusActive, "")
}

// SubmitOffer places the offer on the case and marks the agent's state.
func (s *Service) SubmitOffer(ctx context.Context, agentID, caseID string, params cases.OfferParams) (cases.Offer, State, error) {
	params.AgentID = agentID
	offer, err := s.offers.SubmitOffer(ctx, caseID, params)
	if err != nil {
		return cases.Offer{}, State{}, err
	}
	st, err := s.SetStatus(ctx, agentID, caseID, StatusOfferSubmitted, offer.ID)
	if err != nil {
		return offer, State{}, err
	}
	return offer, st, nil
}

// ArchiveForCase marks every stored state of the case archived.
func (s *Service) ArchiveForCase(ctx context.Context, caseID string) (int, error) {
	now := s.now().UTC()
	n, err := s.repo.UpdateWhere(ctx,
		func(st State) bool { return st.CaseID == caseID && st.Status != StatusArchived },
		func(st *State) {
			st.Status = StatusArchived
			st.UpdatedAt = now
		})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.events.Publish(ctx, events.Event{
			Type:    events.AgentCaseChanged,
			CaseID:  caseID,
			Payload: map[string]any{"status": string(StatusArchived), "count": n},
		})
	}
	return n, nil
}

// DeleteForCases drops every state that refers to one of caseIDs.
func (s *Service) DeleteForCases(ctx context.Context, caseIDs []string) (int, error) {
	if len(caseIDs) == 0 {
		return 0, nil
	}
	ids := make(map[string]struct{}, len(caseIDs))
	for _, id := range caseIDs {
		ids[id] = struct{}{}
	}
	return s.repo.DeleteWhere(ctx, func(st State) bool {
		_, ok := ids[st.CaseID]
		return ok
	})
}

// DeleteForAgent drops every state held by agentID.
func (s *Service) DeleteForAgent(ctx context.Context, agentID string) (int, error) {
	return s.repo.DeleteWhere(ctx, func(st State) bool { return st.AgentID == agentID })
}

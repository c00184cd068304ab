// Package views derives the per-role read models from the case, agent state
// and session records. Every view is recomputed from the store on read.
package views

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"househub/agentcase"
	"househub/auth"
	"househub/cases"
	"househub/storage"
)

type CaseLister interface {
	List(ctx context.Context, filters cases.Filters) ([]cases.Case, error)
}

type AgentStates interface {
	ForAgent(ctx context.Context, agentID string) (map[string]agentcase.State, error)
}

type SessionReader interface {
	Current(ctx context.Context) (auth.Session, error)
}

// AgentCase is a case as one agent sees it.
type AgentCase struct {
	Case          cases.Case       `json:"case"`
	AgentStatus   agentcase.Status `json:"agentStatus"`
	SubmittedAt   *time.Time       `json:"submittedAt,omitempty"`
	RejectedAt    *time.Time       `json:"rejectedAt,omitempty"`
	OfferID       string           `json:"offerId,omitempty"`
	Deadline      time.Time        `json:"deadline"`
	TimeRemaining Remaining        `json:"timeRemaining"`
}

type Service struct {
	cases    CaseLister
	states   AgentStates
	sessions SessionReader
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(caseLister CaseLister, states AgentStates, sessions SessionReader) *Service {
	return &Service{
		cases:    caseLister,
		states:   states,
		sessions: sessions,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// SellerCases returns every case of the seller, archived included.
func (s *Service) SellerCases(ctx context.Context, sellerID string) ([]cases.Case, error) {
	if sellerID == "" {
		return []cases.Case{}, nil
	}
	list, err := s.cases.List(ctx, cases.Filters{SellerID: sellerID, IncludeArchived: true})
	if err != nil {
		return []cases.Case{}, s.degrade("seller_cases", err)
	}
	return list, nil
}

// SellerCasesForSession resolves the seller from the current session. Nobody
// logged in yields an empty list.
func (s *Service) SellerCasesForSession(ctx context.Context) ([]cases.Case, error) {
	sess, err := s.sessions.Current(ctx)
	if errors.Is(err, auth.ErrNoSession) {
		return []cases.Case{}, nil
	}
	if err != nil {
		return []cases.Case{}, s.degrade("seller_cases_session", err)
	}
	return s.SellerCases(ctx, sess.UserID)
}

// AgentCases lists every case open to agents, joined with agentID's state. A
// non-empty tab keeps only cases in that agent status.
func (s *Service) AgentCases(ctx context.Context, agentID string, tab agentcase.Status) ([]AgentCase, error) {
	all, err := s.cases.List(ctx, cases.Filters{IncludeArchived: true})
	if err != nil {
		return []AgentCase{}, s.degrade("agent_cases", err)
	}
	states, err := s.states.ForAgent(ctx, agentID)
	if err != nil {
		return []AgentCase{}, s.degrade("agent_cases", err)
	}

	now := s.now()
	out := []AgentCase{}
	for _, c := range all {
		if !visibleToAgents(c.Status) {
			continue
		}
		st, ok := states[c.ID]
		if !ok {
			st = agentcase.State{AgentID: agentID, CaseID: c.ID, Status: agentcase.StatusActive}
		}
		if tab != "" && st.Status != tab {
			continue
		}
		deadline := c.CreatedAt.Add(AgentDeadline)
		out = append(out, AgentCase{
			Case:          c,
			AgentStatus:   st.Status,
			SubmittedAt:   st.SubmittedAt,
			RejectedAt:    st.RejectedAt,
			OfferID:       st.OfferID,
			Deadline:      deadline,
			TimeRemaining: TimeRemaining(deadline, now),
		})
	}
	return out, nil
}

func visibleToAgents(status cases.Status) bool {
	switch status {
	case cases.StatusDraft, cases.StatusWithdrawn, cases.StatusArchived:
		return false
	default:
		return true
	}
}

// degrade swallows corrupt-storage errors so a broken record empties the view
// instead of failing it.
func (s *Service) degrade(view string, err error) error {
	if errors.Is(err, storage.ErrCorrupt) {
		s.logger.Warn("view degraded to empty", "view", view, "error", err)
		return nil
	}
	return err
}

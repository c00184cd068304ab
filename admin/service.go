// Package admin implements the admin console operations that span several
// collections.
package admin

import (
	"context"
	"errors"
	"fmt"

	"househub/auth"
	"househub/cases"
	"househub/events"
)

var (
	ErrSelfDelete     = errors.New("admin: cannot delete own account")
	ErrSelfDeactivate = errors.New("admin: cannot deactivate own account")
)

// UserStore abstracts the user operations the console needs.
type UserStore interface {
	ListUsers(ctx context.Context) ([]auth.User, error)
	GetUserByID(ctx context.Context, userID string) (auth.User, error)
	DeleteUser(ctx context.Context, userID string) (auth.User, error)
	UpdateUser(ctx context.Context, actorID, userID string, upd auth.UserUpdate) (auth.User, error)
	Deactivate(ctx context.Context, actorID, userID string) (auth.User, error)
	Activate(ctx context.Context, actorID, userID string) (auth.User, error)
}

// CaseStore abstracts the case operations the console needs.
type CaseStore interface {
	List(ctx context.Context, filters cases.Filters) ([]cases.Case, error)
	UpdateStatus(ctx context.Context, id string, status cases.Status, actorID string) (cases.Case, error)
	DeleteBySeller(ctx context.Context, sellerID, actorID string) ([]cases.Case, error)
}

// ThreadStore abstracts case message threads.
type ThreadStore interface {
	ArchiveForCase(ctx context.Context, caseID string) (int, error)
	DeleteForCases(ctx context.Context, caseIDs []string) (int, error)
}

// AgentStateStore abstracts agent/case associations.
type AgentStateStore interface {
	ArchiveForCase(ctx context.Context, caseID string) (int, error)
	DeleteForCases(ctx context.Context, caseIDs []string) (int, error)
	DeleteForAgent(ctx context.Context, agentID string) (int, error)
}

// NotificationStore abstracts per-user notifications.
type NotificationStore interface {
	DeleteForUser(ctx context.Context, userID string) (int, error)
}

type Service struct {
	users         UserStore
	cases         CaseStore
	threads       ThreadStore
	agentStates   AgentStateStore
	notifications NotificationStore
	events        events.Publisher
}

func NewService(users UserStore, caseStore CaseStore, threads ThreadStore, agentStates AgentStateStore, notifications NotificationStore, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{
		users:         users,
		cases:         caseStore,
		threads:       threads,
		agentStates:   agentStates,
		notifications: notifications,
		events:        publisher,
	}
}

// Overview splits cases into active and archived and lists sellers and agents.
// Withdrawn cases count towards neither list.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	all, err := s.cases.List(ctx, cases.Filters{IncludeArchived: true})
	if err != nil {
		return Overview{}, fmt.Errorf("admin: list cases: %w", err)
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("admin: list users: %w", err)
	}

	ov := Overview{
		ActiveCases:   []cases.Case{},
		ArchivedCases: []cases.Case{},
		Sellers:       []UserSummary{},
		Agents:        []UserSummary{},
		Stats:         Stats{TotalCases: len(all), ByStatus: map[cases.Status]int{}},
	}
	for _, c := range all {
		ov.Stats.ByStatus[c.Status]++
		switch {
		case c.Status == cases.StatusArchived:
			ov.ArchivedCases = append(ov.ArchivedCases, c)
		case c.Status.Open():
			ov.ActiveCases = append(ov.ActiveCases, c)
		}
	}
	for _, u := range users {
		switch u.Role {
		case auth.RoleSeller:
			ov.Sellers = append(ov.Sellers, summarize(u))
		case auth.RoleAgent:
			ov.Agents = append(ov.Agents, summarize(u))
			if u.Active() {
				ov.Stats.ActiveAgents++
			}
		}
	}
	ov.Stats.ActiveCases = len(ov.ActiveCases)
	ov.Stats.ArchivedCases = len(ov.ArchivedCases)
	ov.Stats.Sellers = len(ov.Sellers)
	ov.Stats.Agents = len(ov.Agents)
	return ov, nil
}

// SearchCases matches query against address or sagsnummer, ignoring case. An
// empty status searches every status.
func (s *Service) SearchCases(ctx context.Context, query string, status cases.Status) ([]cases.Case, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", cases.ErrInvalidStatus, status)
	}
	return s.cases.List(ctx, cases.Filters{Search: query, Status: status, IncludeArchived: true})
}

// ChangeCaseStatus sets the status. Archiving also archives the case's
// messages and every agent's association with it.
func (s *Service) ChangeCaseStatus(ctx context.Context, actorID, caseID string, status cases.Status) (cases.Case, error) {
	updated, err := s.cases.UpdateStatus(ctx, caseID, status, actorID)
	if err != nil {
		return cases.Case{}, err
	}
	if status != cases.StatusArchived {
		return updated, nil
	}
	if _, err := s.threads.ArchiveForCase(ctx, caseID); err != nil {
		return updated, fmt.Errorf("admin: archive messages: %w", err)
	}
	if _, err := s.agentStates.ArchiveForCase(ctx, caseID); err != nil {
		return updated, fmt.Errorf("admin: archive agent states: %w", err)
	}
	return updated, nil
}

// DeleteUser removes the user and everything that would otherwise dangle:
// a seller's cases with their threads and agent states, an agent's states,
// and the user's notifications.
func (s *Service) DeleteUser(ctx context.Context, actorID, userID string) (DeleteResult, error) {
	if actorID != "" && actorID == userID {
		return DeleteResult{}, ErrSelfDelete
	}
	user, err := s.users.DeleteUser(ctx, userID)
	if err != nil {
		return DeleteResult{}, err
	}
	res := DeleteResult{User: summarize(user)}

	switch user.Role {
	case auth.RoleSeller:
		removed, err := s.cases.DeleteBySeller(ctx, userID, actorID)
		if err != nil {
			return res, fmt.Errorf("admin: delete seller cases: %w", err)
		}
		ids := make([]string, 0, len(removed))
		for _, c := range removed {
			ids = append(ids, c.ID)
		}
		res.CasesRemoved = len(removed)
		if res.MessagesRemoved, err = s.threads.DeleteForCases(ctx, ids); err != nil {
			return res, fmt.Errorf("admin: delete seller messages: %w", err)
		}
		if res.AgentStatesRemoved, err = s.agentStates.DeleteForCases(ctx, ids); err != nil {
			return res, fmt.Errorf("admin: delete case agent states: %w", err)
		}
	case auth.RoleAgent:
		if res.AgentStatesRemoved, err = s.agentStates.DeleteForAgent(ctx, userID); err != nil {
			return res, fmt.Errorf("admin: delete agent states: %w", err)
		}
	}

	if res.NotificationsCleared, err = s.notifications.DeleteForUser(ctx, userID); err != nil {
		return res, fmt.Errorf("admin: delete notifications: %w", err)
	}

	s.events.Publish(ctx, events.Event{
		Type:    events.UserDeleted,
		ActorID: actorID,
		UserID:  userID,
		Payload: map[string]any{
			"role":         string(user.Role),
			"casesRemoved": res.CasesRemoved,
		},
	})
	return res, nil
}

// UpdateUser edits profile fields. An admin cannot switch their own account off.
func (s *Service) UpdateUser(ctx context.Context, actorID, userID string, upd auth.UserUpdate) (auth.User, error) {
	if upd.IsActive != nil && !*upd.IsActive && actorID != "" && actorID == userID {
		return auth.User{}, ErrSelfDeactivate
	}
	return s.users.UpdateUser(ctx, actorID, userID, upd)
}

// DeactivateUser blocks the user's future logins.
func (s *Service) DeactivateUser(ctx context.Context, actorID, userID string) (UserSummary, error) {
	if actorID != "" && actorID == userID {
		return UserSummary{}, ErrSelfDeactivate
	}
	u, err := s.users.Deactivate(ctx, actorID, userID)
	if err != nil {
		return UserSummary{}, err
	}
	return summarize(u), nil
}

// ActivateUser lifts a deactivation.
func (s *Service) ActivateUser(ctx context.Context, actorID, userID string) (UserSummary, error) {
	u, err := s.users.Activate(ctx, actorID, userID)
	if err != nil {
		return UserSummary{}, err
	}
	return summarize(u), nil
}

// Users lists every account without credentials.
func (s *Service) Users(ctx context.Context) ([]UserSummary, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, summarize(u))
	}
	return out, nil
}

package cases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"househub/events"
)

// RegisterShowing signs an agent up for the case showing. Registering twice
// returns the existing registration.
func (s *Service) RegisterShowing(ctx context.Context, caseID string, agent AgentRef) (ShowingRegistration, error) {
	if strings.TrimSpace(agent.ID) == "" {
		return ShowingRegistration{}, fmt.Errorf("cases: showing registration missing agent id")
	}

	var (
		reg     ShowingRegistration
		created bool
	)
	updated, err := s.repo.Mutate(ctx, caseID, func(c *Case) error {
		if !c.Status.Open() {
			return fmt.Errorf("%w: cannot register showing on %s case", ErrInvalidState, c.Status)
		}
		for _, existing := range c.ShowingRegistrations {
			if existing.AgentID == agent.ID {
				reg = existing
				return nil
			}
		}
		now := s.now().UTC()
		reg = ShowingRegistration{
			ID:           s.idGenerator(),
			CaseID:       c.ID,
			AgentID:      agent.ID,
			AgentName:    agent.Name,
			AgencyName:   agent.AgencyName,
			RegisteredAt: now,
		}
		c.ShowingRegistrations = append(c.ShowingRegistrations, reg)
		c.UpdatedAt = now
		created = true
		return nil
	})
	if err != nil {
		return ShowingRegistration{}, err
	}

	if created {
		s.publish(ctx, events.ShowingRegistered, agent.ID, updated, map[string]any{
			"agentId":   agent.ID,
			"agentName": agent.Name,
		})
	}
	return reg, nil
}

// BookShowing sets the showing slot and moves the case to showing_booked.
// A case that already has offers keeps offers_received.
func (s *Service) BookShowing(ctx context.Context, caseID string, date time.Time, slot, notes, actorID string) (Case, error) {
	if date.IsZero() {
		return Case{}, fmt.Errorf("cases: showing date required")
	}

	var previous Status
	updated, err := s.repo.Mutate(ctx, caseID, func(c *Case) error {
		if !c.Status.Open() || c.Status == StatusRealtorSelected {
			return fmt.Errorf("%w: cannot book showing on %s case", ErrInvalidState, c.Status)
		}
		d := date.UTC()
		c.ShowingDate = &d
		c.ShowingTime = slot
		c.ShowingNotes = notes
		previous = c.Status
		if c.Status != StatusOffersReceived {
			c.Status = StatusShowingBooked
		}
		c.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return Case{}, err
	}

	s.publish(ctx, events.ShowingBooked, actorID, updated, map[string]any{
		"showingTime": slot,
	})
	if previous != updated.Status {
		s.publish(ctx, events.CaseStatusChanged, actorID, updated, map[string]any{
			"previous": string(previous),
			"status":   string(updated.Status),
		})
	}
	return updated, nil
}

// CompleteShowing marks a booked showing as held.
func (s *Service) CompleteShowing(ctx context.Context, caseID, actorID string) (Case, error) {
	c, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return Case{}, err
	}
	if c.Status != StatusShowingBooked {
		return Case{}, fmt.Errorf("%w: no booked showing on %s case", ErrInvalidState, c.Status)
	}
	return s.UpdateStatus(ctx, caseID, StatusShowingCompleted, actorID)
}

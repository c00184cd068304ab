package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"househub/events"
)

var ErrOfferNotFound = errors.New("cases: offer not found")

// SubmitOffer records a pending offer. The first offer on an active or
// showing-stage case moves it to offers_received.
func (s *Service) SubmitOffer(ctx context.Context, caseID string, params OfferParams) (Offer, error) {
	if strings.TrimSpace(params.AgentID) == "" {
		return Offer{}, fmt.Errorf("cases: offer missing agent id")
	}

	var (
		offer    Offer
		previous Status
	)
	updated, err := s.repo.Mutate(ctx, caseID, func(c *Case) error {
		if !c.Status.AcceptsOffers() {
			return fmt.Errorf("%w: cannot submit offer on %s case", ErrInvalidState, c.Status)
		}
		now := s.now().UTC()
		methods := append([]MarketingMethod{}, params.MarketingMethods...)
		offer = Offer{
			ID:               s.idGenerator(),
			CaseID:           c.ID,
			AgentID:          params.AgentID,
			AgentName:        params.AgentName,
			AgencyName:       params.AgencyName,
			ExpectedPrice:    params.ExpectedPrice,
			PriceValue:       params.PriceValue,
			Commission:       params.Commission,
			CommissionValue:  params.CommissionValue,
			BindingPeriod:    params.BindingPeriod,
			MarketingPackage: params.MarketingPackage,
			SalesStrategy:    params.SalesStrategy,
			MarketingMethods: methods,
			SubmittedAt:      now,
			Status:           OfferPending,
		}
		c.Offers = append(c.Offers, offer)
		previous = c.Status
		c.Status = StatusOffersReceived
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Offer{}, err
	}

	s.publish(ctx, events.OfferSubmitted, params.AgentID, updated, map[string]any{
		"offerId":    offer.ID,
		"agentId":    offer.AgentID,
		"agentName":  offer.AgentName,
		"agencyName": offer.AgencyName,
	})
	if previous != updated.Status {
		s.publish(ctx, events.CaseStatusChanged, params.AgentID, updated, map[string]any{
			"previous": string(previous),
			"status":   string(updated.Status),
		})
	}
	return offer, nil
}

// SetOfferStatus accepts or rejects an offer. Accepting rejects every other
// offer, including one accepted earlier, and moves the case to
// realtor_selected.
func (s *Service) SetOfferStatus(ctx context.Context, caseID, offerID string, status OfferStatus, actorID string) (Case, error) {
	if status != OfferAccepted && status != OfferRejected && status != OfferPending {
		return Case{}, fmt.Errorf("cases: invalid offer status %q", status)
	}

	var previous Status
	updated, err := s.repo.Mutate(ctx, caseID, func(c *Case) error {
		idx := -1
		for i := range c.Offers {
			if c.Offers[i].ID == offerID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrOfferNotFound
		}
		if status == OfferAccepted && !c.Status.AcceptsOffers() {
			return fmt.Errorf("%w: cannot accept offer on %s case", ErrInvalidState, c.Status)
		}

		c.Offers[idx].Status = status
		previous = c.Status
		if status == OfferAccepted {
			for i := range c.Offers {
				if i != idx && c.Offers[i].Status != OfferRejected {
					c.Offers[i].Status = OfferRejected
				}
			}
			c.Status = StatusRealtorSelected
		}
		c.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return Case{}, err
	}

	for _, o := range updated.Offers {
		if o.ID == offerID || (status == OfferAccepted && o.Status == OfferRejected) {
			s.publish(ctx, events.OfferStatusChanged, actorID, updated, map[string]any{
				"offerId": o.ID,
				"agentId": o.AgentID,
				"status":  string(o.Status),
			})
		}
	}
	if previous != updated.Status {
		s.publish(ctx, events.CaseStatusChanged, actorID, updated, map[string]any{
			"previous": string(previous),
			"status":   string(updated.Status),
		})
	}
	return updated, nil
}

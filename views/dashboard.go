package views

import (
	"context"

	"househub/agentcase"
	"househub/cases"
)

type SellerCaseSummary struct {
	Case          cases.Case `json:"case"`
	StatusLabel   string     `json:"statusLabel"`
	Age           string     `json:"age"`
	Offers        int        `json:"offers"`
	PendingOffers int        `json:"pendingOffers"`
	Registrations int        `json:"registrations"`
}

type SellerDashboard struct {
	SellerID    string               `json:"sellerId"`
	Cases       []SellerCaseSummary  `json:"cases"`
	ByStatus    map[cases.Status]int `json:"byStatus"`
	ActiveCases int                  `json:"activeCases"`
	TotalOffers int                  `json:"totalOffers"`
}

type AgentDashboard struct {
	AgentID      string                   `json:"agentId"`
	ByStatus     map[agentcase.Status]int `json:"byStatus"`
	Available    int                      `json:"available"`
	ExpiringSoon int                      `json:"expiringSoon"`
	Cases        []AgentCase              `json:"cases"`
}

// SellerDashboard summarises the seller's cases.
func (s *Service) SellerDashboard(ctx context.Context, sellerID string) (SellerDashboard, error) {
	list, err := s.SellerCases(ctx, sellerID)
	if err != nil {
		return SellerDashboard{}, err
	}

	now := s.now()
	dash := SellerDashboard{
		SellerID: sellerID,
		Cases:    make([]SellerCaseSummary, 0, len(list)),
		ByStatus: map[cases.Status]int{},
	}
	for _, c := range list {
		dash.ByStatus[c.Status]++
		if c.Status.Open() {
			dash.ActiveCases++
		}
		dash.TotalOffers += len(c.Offers)
		dash.Cases = append(dash.Cases, SellerCaseSummary{
			Case:          c,
			StatusLabel:   c.Status.Label(),
			Age:           TimeSince(c.CreatedAt, now),
			Offers:        len(c.Offers),
			PendingOffers: c.PendingOffers(),
			Registrations: len(c.ShowingRegistrations),
		})
	}
	return dash, nil
}

// AgentDashboard counts the agent's cases per agent status.
func (s *Service) AgentDashboard(ctx context.Context, agentID string) (AgentDashboard, error) {
	list, err := s.AgentCases(ctx, agentID, "")
	if err != nil {
		return AgentDashboard{}, err
	}

	dash := AgentDashboard{
		AgentID:  agentID,
		ByStatus: map[agentcase.Status]int{},
		Cases:    list,
	}
	for _, ac := range list {
		dash.ByStatus[ac.AgentStatus]++
		if ac.AgentStatus == agentcase.StatusActive {
			dash.Available++
			if ac.TimeRemaining.Days >= 0 && ac.TimeRemaining.Days <= 2 {
				dash.ExpiringSoon++
			}
		}
	}
	return dash, nil
}

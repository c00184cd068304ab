package agentcase

import "time"

// Status is an agent's private view of a case, independent of the case's own
// lifecycle status.
type Status string

const (
	StatusActive         Status = "active"
	StatusOfferSubmitted Status = "offer_submitted"
	StatusRejected       Status = "rejected"
	StatusArchived       Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusOfferSubmitted, StatusRejected, StatusArchived:
		return true
	default:
		return false
	}
}

// State associates one agent with one case.
type State struct {
	AgentID     string     `json:"agentId"`
	CaseID      string     `json:"caseId"`
	Status      Status     `json:"agentStatus"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	OfferID     string     `json:"offerId,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Stored reports whether the state came from the store rather than the
// default.
func (s State) Stored() bool {
	return !s.UpdatedAt.IsZero()
}

func defaultState(agentID, caseID string) State {
	return State{AgentID: agentID, CaseID: caseID, Status: StatusActive}
}

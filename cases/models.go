package cases

import "time"

// Case is the single canonical case record. JSON names match the records the
// seller wizard writes.
type Case struct {
	ID                   string                `json:"id"`
	Sagsnummer           string                `json:"sagsnummer"`
	SellerID             string                `json:"sellerId"`
	Address              string                `json:"address"`
	Postnummer           string                `json:"postnummer"`
	Municipality         string                `json:"municipality"`
	Type                 string                `json:"type"`
	Size                 int                   `json:"size"`
	BuildYear            int                   `json:"buildYear"`
	Price                string                `json:"price"`
	PriceValue           int64                 `json:"priceValue"`
	ShowingDate          *time.Time            `json:"showingDate,omitempty"`
	ShowingTime          string                `json:"showingTime,omitempty"`
	ShowingNotes         string                `json:"showingNotes,omitempty"`
	Status               Status                `json:"status"`
	CreatedAt            time.Time             `json:"createdAt"`
	UpdatedAt            time.Time             `json:"updatedAt"`
	Offers               []Offer               `json:"offers"`
	ShowingRegistrations []ShowingRegistration `json:"showingRegistrations"`
	Messages             []Message             `json:"messages"`
}

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

type MarketingMethod struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Cost     int64  `json:"cost"`
	Included bool   `json:"included"`
}

type Offer struct {
	ID               string            `json:"id"`
	CaseID           string            `json:"caseId"`
	AgentID          string            `json:"agentId"`
	AgentName        string            `json:"agentName"`
	AgencyName       string            `json:"agencyName"`
	ExpectedPrice    string            `json:"expectedPrice"`
	PriceValue       int64             `json:"priceValue"`
	Commission       string            `json:"commission"`
	CommissionValue  int64             `json:"commissionValue"`
	BindingPeriod    string            `json:"bindingPeriod"`
	MarketingPackage string            `json:"marketingPackage"`
	SalesStrategy    string            `json:"salesStrategy"`
	MarketingMethods []MarketingMethod `json:"marketingMethods"`
	SubmittedAt      time.Time         `json:"submittedAt"`
	Status           OfferStatus       `json:"status"`
}

type ShowingRegistration struct {
	ID           string    `json:"id"`
	CaseID       string    `json:"caseId"`
	AgentID      string    `json:"agentId"`
	AgentName    string    `json:"agentName"`
	AgencyName   string    `json:"agencyName"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Message is one entry of a case conversation. Threads are stored in their own
// collection; Case.Messages is only filled when a caller hydrates a case.
type Message struct {
	ID         string    `json:"id"`
	CaseID     string    `json:"caseId"`
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	FromName   string    `json:"fromName"`
	ToName     string    `json:"toName"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
	Archived   bool      `json:"archived"`
}

// CreateParams holds the wizard output for a new case.
type CreateParams struct {
	SellerID     string
	Address      string
	Postnummer   string
	Municipality string
	Type         string
	Size         int
	BuildYear    int
	Price        string
	PriceValue   int64
	Status       Status
}

// OfferParams is what an agent submits for a case.
type OfferParams struct {
	AgentID          string
	AgentName        string
	AgencyName       string
	ExpectedPrice    string
	PriceValue       int64
	Commission       string
	CommissionValue  int64
	BindingPeriod    string
	MarketingPackage string
	SalesStrategy    string
	MarketingMethods []MarketingMethod
}

// AgentRef identifies the agent registering for a showing.
type AgentRef struct {
	ID         string
	Name       string
	AgencyName string
}

type Filters struct {
	SellerID        string
	Status          Status
	Search          string
	IncludeArchived bool
}

// NewCase builds a case from params with empty child collections. ID and
// Sagsnummer are left to the caller.
func NewCase(params CreateParams, now time.Time) Case {
	status := params.Status
	if status == "" {
		status = StatusActive
	}
	now = now.UTC()
	return Case{
		SellerID:             params.SellerID,
		Address:              params.Address,
		Postnummer:           params.Postnummer,
		Municipality:         params.Municipality,
		Type:                 params.Type,
		Size:                 params.Size,
		BuildYear:            params.BuildYear,
		Price:                params.Price,
		PriceValue:           params.PriceValue,
		Status:               status,
		CreatedAt:            now,
		UpdatedAt:            now,
		Offers:               []Offer{},
		ShowingRegistrations: []ShowingRegistration{},
		Messages:             []Message{},
	}
}

// PendingOffers counts offers still awaiting a decision.
func (c Case) PendingOffers() int {
	n := 0
	for _, o := range c.Offers {
		if o.Status == OfferPending {
			n++
		}
	}
	return n
}

// OfferBy returns the agent's offer on the case, if any.
func (c Case) OfferBy(agentID string) (Offer, bool) {
	for _, o := range c.Offers {
		if o.AgentID == agentID {
			return o, true
		}
	}
	return Offer{}, false
}

func normalize(c *Case) {
	if c.Offers == nil {
		c.Offers = []Offer{}
	}
	if c.ShowingRegistrations == nil {
		c.ShowingRegistrations = []ShowingRegistration{}
	}
	if c.Messages == nil {
		c.Messages = []Message{}
	}
}

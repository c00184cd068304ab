package admin

import (
	"time"

	"househub/auth"
	"househub/cases"
)

// UserSummary is the admin listing of a user without credentials.
type UserSummary struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          auth.Role `json:"role"`
	Phone         string    `json:"phone,omitempty"`
	Company       string    `json:"company,omitempty"`
	PrimaryRegion string    `json:"primaryRegion,omitempty"`
	Active        bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
}

func summarize(u auth.User) UserSummary {
	return UserSummary{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		Phone:         u.Phone,
		Company:       u.Company,
		PrimaryRegion: u.PrimaryRegion,
		Active:        u.Active(),
		CreatedAt:     u.CreatedAt,
	}
}

type Stats struct {
	TotalCases    int                  `json:"totalCases"`
	ActiveCases   int                  `json:"activeCases"`
	ArchivedCases int                  `json:"archivedCases"`
	Sellers       int                  `json:"sellers"`
	Agents        int                  `json:"agents"`
	ActiveAgents  int                  `json:"activeAgents"`
	ByStatus      map[cases.Status]int `json:"byStatus"`
}

// Overview is the admin console landing data.
type Overview struct {
	ActiveCases   []cases.Case  `json:"activeCases"`
	ArchivedCases []cases.Case  `json:"archivedCases"`
	Sellers       []UserSummary `json:"sellers"`
	Agents        []UserSummary `json:"agents"`
	Stats         Stats         `json:"stats"`
}

// DeleteResult reports what a user deletion removed.
type DeleteResult struct {
	User                 UserSummary `json:"user"`
	CasesRemoved         int         `json:"casesRemoved"`
	MessagesRemoved      int         `json:"messagesRemoved"`
	AgentStatesRemoved   int         `json:"agentStatesRemoved"`
	NotificationsCleared int         `json:"notificationsCleared"`
}

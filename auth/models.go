package auth

import "time"

type Role string

const (
	RoleSeller Role = "seller"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

// User is a marketplace account as persisted in the users collection. JSON
// names match the records written by the browser front-end.
type User struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Password            string    `json:"password"`
	Name                string    `json:"name"`
	Role                Role      `json:"role"`
	Phone               string    `json:"phone,omitempty"`
	Company             string    `json:"company,omitempty"`
	AuthorizationNumber string    `json:"authorizationNumber,omitempty"`
	PrimaryRegion       string    `json:"primaryRegion,omitempty"`
	Specialties         []string  `json:"specialties,omitempty"`
	Address             string    `json:"address,omitempty"`
	IsActive            *bool     `json:"isActive,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Active reports whether the user may log in. Only an explicit false blocks.
func (u User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

// Session is the single "current user" record: a copy of the authenticated
// user, never a reference to it.
type Session struct {
	UserID        string    `json:"id"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	Name          string    `json:"name,omitempty"`
	AgencyName    string    `json:"agencyName,omitempty"`
	PrimaryRegion string    `json:"primaryRegion,omitempty"`
	Specialties   []string  `json:"specialties,omitempty"`
	Address       string    `json:"address,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
}

// RegisterRequest contains signup data supplied by the seller or agent wizard.
type RegisterRequest struct {
	Email               string   `json:"email"`
	Password            string   `json:"password"`
	Name                string   `json:"name"`
	Role                Role     `json:"role"`
	Phone               string   `json:"phone"`
	Company             string   `json:"company"`
	AuthorizationNumber string   `json:"authorizationNumber"`
	PrimaryRegion       string   `json:"primaryRegion"`
	Specialties         []string `json:"specialties"`
	Address             string   `json:"address"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserUpdate lists the admin-editable fields; nil means unchanged.
type UserUpdate struct {
	Name          *string   `json:"name,omitempty"`
	Email         *string   `json:"email,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	Company       *string   `json:"company,omitempty"`
	PrimaryRegion *string   `json:"primaryRegion,omitempty"`
	Specialties   *[]string `json:"specialties,omitempty"`
	Address       *string   `json:"address,omitempty"`
	IsActive      *bool     `json:"isActive,omitempty"`
}

func newSession(u User, now time.Time) Session {
	var specialties []string
	if len(u.Specialties) > 0 {
		specialties = append([]string(nil), u.Specialties...)
	}
	return Session{
		UserID:        u.ID,
		Email:         u.Email,
		Role:          u.Role,
		Name:          u.Name,
		AgencyName:    u.Company,
		PrimaryRegion: u.PrimaryRegion,
		Specialties:   specialties,
		Address:       u.Address,
		StartedAt:     now.UTC(),
	}
}

func boolPtr(v bool) *bool { return &v }

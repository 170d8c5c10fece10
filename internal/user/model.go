package user

import (
	"time"

	"programhub/internal/auth"
	"programhub/internal/store"
)

// Status tracks onboarding. Users start Pending and become Active on first login.
type Status string

const (
	StatusPending Status = "Pending"
	StatusActive  Status = "Active"
)

// User is an account. The password hash never leaves the package in JSON.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         auth.Role  `json:"role"`
	Status       Status     `json:"status"`
	IsActive     bool       `json:"isActive"`
	FirstLogin   *time.Time `json:"firstLogin,omitempty"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	PasswordHash string     `json:"-"`
}

// Principal returns the auth identity of u.
func (u User) Principal() auth.Principal {
	return auth.Principal{ID: u.ID, Role: u.Role, Name: u.Name, Email: u.Email}
}

// ListFilter selects users by activity and optional role.
type ListFilter struct {
	Role   auth.Role
	Active bool
}

// OnboardedFilter selects users who have logged in at least once. A non-empty
// ManagerID restricts to members of that manager's programs.
type OnboardedFilter struct {
	Role      auth.Role
	ManagerID string
	Limit     int
	Offset    int
}

// ProgramRef is a program a user belongs to.
type ProgramRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Activity is one item in a user's recent activity feed.
type Activity struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Details is the admin view of a user.
type Details struct {
	User
	Programs     []ProgramRef `json:"programs"`
	ActivityFeed []Activity   `json:"activityFeed"`
}

// Page is a page of users.
type Page struct {
	Data       []User           `json:"data"`
	Pagination store.Pagination `json:"pagination"`
}

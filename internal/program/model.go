package program

import (
	"time"

	"programhub/internal/auth"
)

// Status is a program's lifecycle state.
type Status string

const (
	StatusDraft           Status = "Draft"
	StatusPendingApproval Status = "PendingApproval"
	StatusActive          Status = "Active"
	StatusCompleted       Status = "Completed"
	StatusRejected        Status = "Rejected"
)

// CanRequestApproval reports whether a manager may submit from s.
func (s Status) CanRequestApproval() bool {
	return s == StatusDraft || s == StatusRejected
}

// CanApprove reports whether a super admin may approve from s.
func (s Status) CanApprove() bool {
	return s == StatusPendingApproval || s == StatusRejected
}

// CanReject reports whether a super admin may reject from s.
func (s Status) CanReject() bool {
	return s == StatusPendingApproval
}

// InitialStatus is the status a new program gets from its creator's role.
func InitialStatus(creator auth.Role) Status {
	if creator == auth.RoleSuperAdmin {
		return StatusPendingApproval
	}
	return StatusDraft
}

// Person is a populated user reference.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Program is a training cohort.
type Program struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	Status          Status    `json:"status"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	Managers     []Person `json:"programManagers"`
	Facilitators []Person `json:"facilitators,omitempty"`
	Trainees     []Person `json:"trainees,omitempty"`
}

// ManagedBy reports whether userID is one of the program's managers.
func (p Program) ManagedBy(userID string) bool {
	for _, m := range p.Managers {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// Member is a user enrolled in a program.
type Member struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     auth.Role `json:"role"`
	Status   string    `json:"status"`
	IsActive bool      `json:"isActive"`
}

// Department groups trainees inside a program.
type Department struct {
	ID          string    `json:"id"`
	ProgramID   string    `json:"programId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// StatsWindow is the inclusive date range statistics were computed over.
type StatsWindow struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Stats summarizes enrollment and attendance for a program.
type Stats struct {
	TotalEnrolled               int         `json:"totalEnrolled"`
	TotalFacilitators           int         `json:"totalFacilitators"`
	OverallAttendancePercentage float64     `json:"overallAttendancePercentage"`
	TotalPresentDays            int         `json:"totalPresentDays"`
	TotalExcusedDays            int         `json:"totalExcusedDays"`
	TotalEligibleDays           int         `json:"totalEligibleDays"`
	Window                      StatsWindow `json:"window"`
}

// ListFilter scopes a program listing to the requester.
type ListFilter struct {
	Role            auth.Role
	UserID          string
	IncludeInactive bool
}

// Changes holds the editable fields of Update. Nil fields are left as is.
type Changes struct {
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
}

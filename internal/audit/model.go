package audit

import (
	"time"

	"github.com/google/uuid"
)

// SystemActor attributes entries written by scheduled jobs.
var SystemActor = uuid.Nil.String()

// Action is the closed set of auditable events.
type Action string

const (
	ActionUserLogin              Action = "USER_LOGIN"
	ActionUserCreated            Action = "USER_CREATED"
	ActionUserUpdatedSelf        Action = "USER_UPDATED_SELF"
	ActionUserChangedPassword    Action = "USER_CHANGED_PASSWORD"
	ActionAdminUpdatedUserStatus Action = "ADMIN_UPDATED_USER_STATUS"
	ActionProgramCreated         Action = "PROGRAM_CREATED"
	ActionProgramSubmitted       Action = "PROGRAM_SUBMITTED_FOR_APPROVAL"
	ActionProgramApproved        Action = "PROGRAM_APPROVED"
	ActionProgramRejected        Action = "PROGRAM_REJECTED"
	ActionProgramDeactivated     Action = "PROGRAM_DEACTIVATED"
	ActionProgramCompleted       Action = "PROGRAM_COMPLETED"
	ActionProgramManagersChanged Action = "PROGRAM_MANAGERS_UPDATED"
	ActionDepartmentCreated      Action = "DEPARTMENT_CREATED"
	ActionCourseCreated          Action = "COURSE_CREATED"
	ActionCourseSubmitted        Action = "COURSE_SUBMITTED_FOR_APPROVAL"
	ActionCourseApproved         Action = "COURSE_APPROVED"
	ActionAttendanceMarked       Action = "ATTENDANCE_MARKED"
	ActionAttendanceExcused      Action = "ATTENDANCE_EXCUSED"
	ActionCertificateIssued      Action = "CERTIFICATE_ISSUED"
)

// EntityRef points at the document an entry is about.
type EntityRef struct {
	ID    string `json:"id"`
	Model string `json:"model"`
}

// Entry is what callers append.
type Entry struct {
	Actor   string
	Action  Action
	Details string
	Entity  *EntityRef
}

// Log is a stored, immutable audit record.
type Log struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	UserName  string     `json:"userName,omitempty"`
	UserRole  string     `json:"userRole,omitempty"`
	Action    Action     `json:"action"`
	Details   string     `json:"details"`
	Entity    *EntityRef `json:"entity,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Filter narrows the master log.
type Filter struct {
	Action Action
	UserID string
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

// Page is a slice of the master log.
type Page struct {
	Logs  []Log `json:"docs"`
	Total int   `json:"totalDocs"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// Package program manages the program lifecycle, enrollment, departments and
// program statistics.
package program

import (
	"context"
	"fmt"
	"strings"
	"time"

	"programhub/internal/apperr"
	"programhub/internal/attendance"
	"programhub/internal/audit"
	"programhub/internal/auth"
	"programhub/internal/stats"
)

// Store is the persistence the Service needs.
type Store interface {
	Create(ctx context.Context, p Program, managerIDs []string) (Program, error)
	Get(ctx context.Context, id string, includeInactive bool) (*Program, error)
	List(ctx context.Context, f ListFilter) ([]Program, error)
	Transition(ctx context.Context, id string, from []Status, to Status, reason *string) (bool, error)
	Update(ctx context.Context, id string, c Changes) error
	Deactivate(ctx context.Context, id string) error
	AddMember(ctx context.Context, programID, userID string, role auth.Role) error
	RemoveMember(ctx context.Context, programID, userID string) error
	AddManager(ctx context.Context, programID, userID string) error
	RemoveManager(ctx context.Context, programID, userID string) error
	Members(ctx context.Context, programID string) ([]Member, error)
	MemberCounts(ctx context.Context, programID string) (trainees, facilitators int, err error)
	CompleteEnded(ctx context.Context, today time.Time) ([]Program, error)
	UserRole(ctx context.Context, userID string) (auth.Role, bool, error)
	ManagesMember(ctx context.Context, managerID, userID string) (bool, error)
	RenameUser(ctx context.Context, userID, name string) (Member, error)
	CreateDepartment(ctx context.Context, d Department) (Department, error)
	ListDepartments(ctx context.Context, programID string) ([]Department, error)
}

// AttendanceCounter tallies attendance for statistics.
type AttendanceCounter interface {
	Counts(ctx context.Context, programID, traineeID string, from, to time.Time) (attendance.Counts, error)
}

// Auditor appends audit entries.
type Auditor interface {
	Append(ctx context.Context, e audit.Entry)
}

// Service enforces the program workflow and manager authorization.
type Service struct {
	repo       Store
	attendance AttendanceCounter
	audit      Auditor
	now        func() time.Time
}

// NewService creates a Service.
func NewService(repo Store, counter AttendanceCounter, auditor Auditor) *Service {
	return &Service{repo: repo, attendance: counter, audit: auditor, now: time.Now}
}

var errNotFound = apperr.NotFound("Program not found.")

func (s *Service) load(ctx context.Context, id string) (*Program, error) {
	p, err := s.repo.Get(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errNotFound
	}
	return p, nil
}

// requireManager loads the program and checks that actor manages it.
func (s *Service) requireManager(ctx context.Context, id string, actor auth.Principal) (*Program, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.ManagedBy(actor.ID) {
		return nil, apperr.Forbidden("Forbidden: You are not a manager of this program.")
	}
	return p, nil
}

// requireManagerOrAdmin is requireManager with a SuperAdmin bypass.
func (s *Service) requireManagerOrAdmin(ctx context.Context, id string, actor auth.Principal) (*Program, error) {
	if actor.Role == auth.RoleSuperAdmin {
		return s.load(ctx, id)
	}
	return s.requireManager(ctx, id, actor)
}

func (s *Service) log(ctx context.Context, actor auth.Principal, action audit.Action, p *Program, details string) {
	s.audit.Append(ctx, audit.Entry{
		Actor:   actor.ID,
		Action:  action,
		Details: details,
		Entity:  audit.Ref("Program", p.ID),
	})
}

// CreateInput describes a new program.
type CreateInput struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

func validateDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("Start date and end date are required.")
	}
	if end.Before(start) {
		return apperr.Validation("End date must not be before start date.",
			apperr.FieldError{Field: "endDate", Message: "must be on or after startDate"})
	}
	return nil
}

// Create adds a program. A SuperAdmin's program goes straight to
// PendingApproval; a ProgramManager's starts as Draft and is managed by them.
func (s *Service) Create(ctx context.Context, actor auth.Principal, in CreateInput) (Program, error) {
	if !actor.Role.In(auth.RoleSuperAdmin, auth.RoleProgramManager) {
		return Program{}, apperr.Forbidden("Only super admins and program managers can create programs.")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Program{}, apperr.Validation("Program name is required.",
			apperr.FieldError{Field: "name", Message: "is required"})
	}
	if err := validateDates(in.StartDate, in.EndDate); err != nil {
		return Program{}, err
	}

	var managers []string
	if actor.Role == auth.RoleProgramManager {
		managers = append(managers, actor.ID)
	}
	p, err := s.repo.Create(ctx, Program{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		StartDate:   stats.Day(in.StartDate),
		EndDate:     stats.Day(in.EndDate),
		Status:      InitialStatus(actor.Role),
	}, managers)
	if err != nil {
		return Program{}, err
	}
	s.log(ctx, actor, audit.ActionProgramCreated, &p, fmt.Sprintf("%s %s created program '%s'.", actor.Role, actor.Name, p.Name))
	return p, nil
}

func (s *Service) transition(ctx context.Context, p *Program, from []Status, to Status, reason *string) (*Program, error) {
	ok, err := s.repo.Transition(ctx, p.ID, from, to, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("Program status changed concurrently; reload and retry.")
	}
	return s.load(ctx, p.ID)
}

// RequestApproval submits a Draft or Rejected program. Only its own managers may.
func (s *Service) RequestApproval(ctx context.Context, actor auth.Principal, id string) (*Program, error) {
	p, err := s.requireManager(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanRequestApproval() {
		return nil, apperr.BadRequest("Program cannot be submitted for approval from status %s.", p.Status)
	}
	p, err = s.transition(ctx, p, []Status{StatusDraft, StatusRejected}, StatusPendingApproval, nil)
	if err != nil {
		return nil, err
	}
	s.log(ctx, actor, audit.ActionProgramSubmitted, p, fmt.Sprintf("PM %s submitted program '%s' for approval.", actor.Name, p.Name))
	return p, nil
}

// Approve activates a PendingApproval or Rejected program and clears any rejection reason.
func (s *Service) Approve(ctx context.Context, actor auth.Principal, id string) (*Program, error) {
	if actor.Role != auth.RoleSuperAdmin {
		return nil, apperr.Forbidden("Only super admins can approve programs.")
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanApprove() {
		return nil, apperr.BadRequest("Program cannot be approved from status %s.", p.Status)
	}
	p, err = s.transition(ctx, p, []Status{StatusPendingApproval, StatusRejected}, StatusActive, nil)
	if err != nil {
		return nil, err
	}
	s.log(ctx, actor, audit.ActionProgramApproved, p, fmt.Sprintf("SuperAdmin %s approved program '%s'.", actor.Name, p.Name))
	return p, nil
}

// Reject rejects a PendingApproval program. A reason is mandatory.
func (s *Service) Reject(ctx context.Context, actor auth.Principal, id, reason string) (*Program, error) {
	if actor.Role != auth.RoleSuperAdmin {
		return nil, apperr.Forbidden("Only super admins can reject programs.")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.BadRequest("A reason for rejection is required.")
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanReject() {
		return nil, apperr.BadRequest("Program cannot be rejected from status %s.", p.Status)
	}
	p, err = s.transition(ctx, p, []Status{StatusPendingApproval}, StatusRejected, &reason)
	if err != nil {
		return nil, err
	}
	s.log(ctx, actor, audit.ActionProgramRejected, p,
		fmt.Sprintf("SuperAdmin %s rejected program '%s'. Reason: %s.", actor.Name, p.Name, reason))
	return p, nil
}

func (s *Service) enroll(ctx context.Context, actor auth.Principal, id, userID string, role auth.Role, missing string) (*Program, error) {
	p, err := s.requireManager(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	got, ok, err := s.repo.UserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok || got != role {
		return nil, apperr.NotFound(missing)
	}
	if err := s.repo.AddMember(ctx, p.ID, userID, role); err != nil {
		return nil, err
	}
	return s.Get(ctx, p.ID)
}

// EnrollTrainee adds a trainee. Enrolling twice is a no-op.
func (s *Service) EnrollTrainee(ctx context.Context, actor auth.Principal, id, traineeID string) (*Program, error) {
	return s.enroll(ctx, actor, id, traineeID, auth.RoleTrainee, "Trainee not found or user is not a trainee.")
}

// EnrollFacilitator adds a facilitator. Enrolling twice is a no-op.
func (s *Service) EnrollFacilitator(ctx context.Context, actor auth.Principal, id, facilitatorID string) (*Program, error) {
	return s.enroll(ctx, actor, id, facilitatorID, auth.RoleFacilitator, "Facilitator not found or user is not a facilitator.")
}

// Deactivate soft-deletes a program.
func (s *Service) Deactivate(ctx context.Context, actor auth.Principal, id string) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, p.ID); err != nil {
		return err
	}
	s.log(ctx, actor, audit.ActionProgramDeactivated, p, fmt.Sprintf("SuperAdmin %s deactivated program '%s'.", actor.Name, p.Name))
	return nil
}

// List returns the programs visible to actor. Only a SuperAdmin can include
// deactivated programs.
func (s *Service) List(ctx context.Context, actor auth.Principal, includeInactive bool) ([]Program, error) {
	return s.repo.List(ctx, ListFilter{
		Role:            actor.Role,
		UserID:          actor.ID,
		IncludeInactive: includeInactive && actor.Role == auth.RoleSuperAdmin,
	})
}

// ListForUser returns the programs a user manages or is enrolled in.
func (s *Service) ListForUser(ctx context.Context, userID string, role auth.Role) ([]Program, error) {
	if role == auth.RoleSuperAdmin {
		return []Program{}, nil
	}
	return s.repo.List(ctx, ListFilter{Role: role, UserID: userID})
}

// Get returns a program with managers, facilitators and trainees populated.
func (s *Service) Get(ctx context.Context, id string) (*Program, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.Members(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Facilitators, p.Trainees = []Person{}, []Person{}
	for _, m := range members {
		person := Person{ID: m.ID, Name: m.Name, Email: m.Email}
		switch m.Role {
		case auth.RoleFacilitator:
			p.Facilitators = append(p.Facilitators, person)
		case auth.RoleTrainee:
			p.Trainees = append(p.Trainees, person)
		}
	}
	return p, nil
}

// Update edits name, description and dates. A ProgramManager must manage the program.
func (s *Service) Update(ctx context.Context, actor auth.Principal, id string, c Changes) (*Program, error) {
	p, err := s.requireManagerOrAdmin(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if c.Name != nil {
		name := strings.TrimSpace(*c.Name)
		if name == "" {
			return nil, apperr.Validation("Program name cannot be empty.",
				apperr.FieldError{Field: "name", Message: "cannot be empty"})
		}
		c.Name = &name
	}
	start, end := p.StartDate, p.EndDate
	if c.StartDate != nil {
		d := stats.Day(*c.StartDate)
		c.StartDate, start = &d, d
	}
	if c.EndDate != nil {
		d := stats.Day(*c.EndDate)
		c.EndDate, end = &d, d
	}
	if err := validateDates(start, end); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p.ID, c); err != nil {
		return nil, err
	}
	return s.load(ctx, p.ID)
}

// ManagerAction is the ManageManagers operation.
type ManagerAction string

const (
	ManagerAdd    ManagerAction = "add"
	ManagerRemove ManagerAction = "remove"
)

// ManageManagers adds or removes a program manager.
func (s *Service) ManageManagers(ctx context.Context, actor auth.Principal, id, managerID string, action ManagerAction) (*Program, error) {
	if action != ManagerAdd && action != ManagerRemove {
		return nil, apperr.BadRequest("Invalid action.")
	}
	role, ok, err := s.repo.UserRole(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if !ok || role != auth.RoleProgramManager {
		return nil, apperr.NotFound("Not a valid Program Manager.")
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if action == ManagerAdd {
		err = s.repo.AddManager(ctx, p.ID, managerID)
	} else {
		err = s.repo.RemoveManager(ctx, p.ID, managerID)
	}
	if err != nil {
		return nil, err
	}
	p, err = s.load(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	verb := "added to"
	if action == ManagerRemove {
		verb = "removed from"
	}
	s.log(ctx, actor, audit.ActionProgramManagersChanged, p,
		fmt.Sprintf("Program manager %s %s program '%s'.", managerID, verb, p.Name))
	return p, nil
}

// Members lists the trainees and facilitators of a program.
func (s *Service) Members(ctx context.Context, actor auth.Principal, programID string) ([]Member, error) {
	p, err := s.requireManagerOrAdmin(ctx, programID, actor)
	if err != nil {
		return nil, err
	}
	return s.repo.Members(ctx, p.ID)
}

// RemoveMember drops a user from a program without deleting the user.
func (s *Service) RemoveMember(ctx context.Context, actor auth.Principal, programID, userID string) (*Program, error) {
	p, err := s.requireManager(ctx, programID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RemoveMember(ctx, p.ID, userID); err != nil {
		return nil, err
	}
	return s.Get(ctx, p.ID)
}

// UpdateMemberName renames a user enrolled in one of actor's programs.
func (s *Service) UpdateMemberName(ctx context.Context, actor auth.Principal, userID, name string) (Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Member{}, apperr.Validation("Name is required.", apperr.FieldError{Field: "name", Message: "is required"})
	}
	if _, ok, err := s.repo.UserRole(ctx, userID); err != nil {
		return Member{}, err
	} else if !ok {
		return Member{}, apperr.NotFound("User not found.")
	}
	managed, err := s.repo.ManagesMember(ctx, actor.ID, userID)
	if err != nil {
		return Member{}, err
	}
	if !managed {
		return Member{}, apperr.Forbidden("Forbidden: You can only update users within your own programs.")
	}
	return s.repo.RenameUser(ctx, userID, name)
}

// CompleteEnded moves Active programs whose end date has passed to Completed.
// It returns how many programs changed.
func (s *Service) CompleteEnded(ctx context.Context) (int, error) {
	done, err := s.repo.CompleteEnded(ctx, stats.Day(s.now()))
	if err != nil {
		return 0, err
	}
	for i := range done {
		s.audit.Append(ctx, audit.Entry{
			Actor:   audit.SystemActor,
			Action:  audit.ActionProgramCompleted,
			Details: fmt.Sprintf("Program '%s' completed after its end date.", done[i].Name),
			Entity:  audit.Ref("Program", done[i].ID),
		})
	}
	return len(done), nil
}

// DepartmentInput describes a new department.
type DepartmentInput struct {
	ProgramID   string
	Name        string
	Description string
}

// CreateDepartment adds a department to a program the actor manages.
func (s *Service) CreateDepartment(ctx context.Context, actor auth.Principal, in DepartmentInput) (Department, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.ProgramID == "" {
		return Department{}, apperr.BadRequest("Department name and programId are required.")
	}
	p, err := s.requireManager(ctx, in.ProgramID, actor)
	if err != nil {
		return Department{}, err
	}
	d, err := s.repo.CreateDepartment(ctx, Department{
		ProgramID:   p.ID,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
	})
	if err != nil {
		return Department{}, err
	}
	s.audit.Append(ctx, audit.Entry{
		Actor:   actor.ID,
		Action:  audit.ActionDepartmentCreated,
		Details: fmt.Sprintf("Department '%s' created in program '%s'.", d.Name, p.Name),
		Entity:  audit.Ref("Department", d.ID),
	})
	return d, nil
}

// ListDepartments returns a program's departments.
func (s *Service) ListDepartments(ctx context.Context, programID string) ([]Department, error) {
	p, err := s.load(ctx, programID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListDepartments(ctx, p.ID)
}

// Stats computes enrollment and attendance figures over [from, to]. Nil bounds
// default to the program start and the earlier of today and the program end.
func (s *Service) Stats(ctx context.Context, id string, from, to *time.Time) (Stats, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	start, end := stats.Window(p.StartDate, p.EndDate, s.now())
	if from != nil {
		start = stats.Day(*from)
	}
	if to != nil {
		end = stats.Day(*to)
	}

	trainees, facilitators, err := s.repo.MemberCounts(ctx, p.ID)
	if err != nil {
		return Stats{}, err
	}
	counts, err := s.attendance.Counts(ctx, p.ID, "", start, end)
	if err != nil {
		return Stats{}, err
	}
	eligible := stats.WeekdayCount(start, end)

	return Stats{
		TotalEnrolled:               trainees,
		TotalFacilitators:           facilitators,
		OverallAttendancePercentage: stats.Percentage(counts.Present, eligible, counts.Excused),
		TotalPresentDays:            counts.Present,
		TotalExcusedDays:            counts.Excused,
		TotalEligibleDays:           eligible,
		Window: StatsWindow{
			From: start.Format(attendance.DayLayout),
			To:   end.Format(attendance.DayLayout),
		},
	}, nil
}

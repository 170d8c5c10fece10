// Package user handles registration, login, self-service account changes and
// user administration.
package user

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"programhub/internal/apperr"
	"programhub/internal/attendance"
	"programhub/internal/audit"
	"programhub/internal/auth"
	"programhub/internal/mailer"
	"programhub/internal/program"
	"programhub/internal/reporting"
	"programhub/internal/store"
)

// Store is the persistence the Service needs.
type Store interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	RecordLogin(ctx context.Context, id string, at time.Time) (*User, error)
	UpdateName(ctx context.Context, id, name string) (*User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	SetActive(ctx context.Context, id string, active bool) (*User, error)
	IsActive(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, f ListFilter) ([]User, error)
	ListByRoles(ctx context.Context, roles []auth.Role) ([]User, error)
	Onboarded(ctx context.Context, f OnboardedFilter) ([]User, int, error)
}

// ProgramLister returns a user's programs.
type ProgramLister interface {
	ListForUser(ctx context.Context, userID string, role auth.Role) ([]program.Program, error)
}

// AttendanceFeed returns a user's latest attendance records.
type AttendanceFeed interface {
	Recent(ctx context.Context, userID string, limit int) ([]attendance.Record, error)
}

// Mailer enqueues an email without waiting for delivery.
type Mailer interface {
	Dispatch(ctx context.Context, e mailer.Email)
}

// Auditor appends audit entries.
type Auditor interface {
	Append(ctx context.Context, e audit.Entry)
}

// Reporter receives failures that must not fail the request.
type Reporter interface {
	Error(msg string, err error, extras ...map[string]interface{})
}

// Config carries token and branding settings.
type Config struct {
	AppName   string
	JWTIssuer string
	JWTKey    string
	AccessTTL time.Duration
	// Reporter defaults to a log-only reporter.
	Reporter Reporter
}

// Service implements account operations.
type Service struct {
	repo       Store
	programs   ProgramLister
	attendance AttendanceFeed
	mail       Mailer
	audit      Auditor
	cfg        Config
	now        func() time.Time
	welcome    func(appName, to, name, password string) (mailer.Email, error)
}

// NewService creates a Service.
func NewService(repo Store, programs ProgramLister, feed AttendanceFeed, mail Mailer, auditor Auditor, cfg Config) *Service {
	if cfg.AppName == "" {
		cfg.AppName = "Program Hub"
	}
	if cfg.Reporter == nil {
		cfg.Reporter = reporting.NewStd(log.Default())
	}
	return &Service{
		repo: repo, programs: programs, attendance: feed, mail: mail, audit: auditor,
		cfg: cfg, now: time.Now, welcome: mailer.Registration,
	}
}

const generatedPasswordLength = 8

// RegisterInput describes a new account.
type RegisterInput struct {
	Name  string
	Email string
	Role  string
}

// Register creates an account with a random password that is emailed to the
// user. actor is nil for anonymous registration, which is limited to the very
// first user or to trainees.
func (s *Service) Register(ctx context.Context, actor *auth.Principal, in RegisterInput) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" || strings.TrimSpace(in.Role) == "" {
		return User{}, apperr.BadRequest("Name, email, and role are required fields.")
	}
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return User{}, apperr.Validation("Invalid role.", apperr.FieldError{Field: "role", Message: "must be one of Trainee, Facilitator, ProgramManager, SuperAdmin"})
	}

	switch {
	case actor == nil:
		n, err := s.repo.Count(ctx)
		if err != nil {
			return User{}, err
		}
		if n > 0 && role != auth.RoleTrainee {
			return User{}, apperr.Forbidden("Forbidden: Only an existing admin or manager can create new users.")
		}
	case actor.Role == auth.RoleProgramManager:
		if !role.In(auth.RoleFacilitator, auth.RoleTrainee) {
			return User{}, apperr.Forbidden("Forbidden: Program Managers can only register Facilitators or Trainees.")
		}
	case actor.Role != auth.RoleSuperAdmin:
		return User{}, apperr.Forbidden("Forbidden: Only an existing admin or manager can create new users.")
	}

	existing, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		return User{}, err
	}
	if existing != nil {
		return User{}, apperr.Conflict("User with this email already exists")
	}

	password, err := auth.GeneratePassword(generatedPasswordLength)
	if err != nil {
		return User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	u, err := s.repo.Create(ctx, User{Name: in.Name, Email: in.Email, Role: role, PasswordHash: hash})
	if store.IsUniqueViolation(err) {
		return User{}, apperr.Conflict("User with this email already exists")
	}
	if err != nil {
		return User{}, err
	}

	creator := u.ID
	if actor != nil {
		creator = actor.ID
	}
	s.audit.Append(ctx, audit.Entry{
		Actor:   creator,
		Action:  audit.ActionUserCreated,
		Details: fmt.Sprintf("Created new user: %s (%s) with role %s.", u.Name, u.Email, u.Role),
		Entity:  audit.Ref("User", u.ID),
	})

	email, err := s.welcome(s.cfg.AppName, u.Email, u.Name, password)
	if err != nil {
		s.cfg.Reporter.Error("registration email not sent", err, map[string]interface{}{"userId": u.ID})
		return u, nil
	}
	s.mail.Dispatch(ctx, email)
	return u, nil
}

// Session is a successful login.
type Session struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, apperr.BadRequest("Email and password are required")
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if u == nil || !u.IsActive {
		return Session{}, apperr.NotFound("User does not exist or has been deactivated.")
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return Session{}, apperr.Unauthorized("Invalid user credentials")
	}

	u, err = s.repo.RecordLogin(ctx, u.ID, s.now().UTC())
	if err != nil {
		return Session{}, err
	}
	if u == nil {
		return Session{}, apperr.NotFound("User does not exist or has been deactivated.")
	}
	tok, err := auth.Issue(u.Principal(), s.cfg.JWTIssuer, s.cfg.JWTKey, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}
	s.audit.Append(ctx, audit.Entry{
		Actor:   u.ID,
		Action:  audit.ActionUserLogin,
		Details: fmt.Sprintf("User %s logged into the system.", u.Name),
	})
	return Session{User: *u, AccessToken: tok.AccessToken}, nil
}

func (s *Service) find(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("User not found.")
	}
	return u, nil
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, actor auth.Principal) (User, error) {
	u, err := s.find(ctx, actor.ID)
	if err != nil {
		return User{}, err
	}
	return *u, nil
}

// UpdateAccount changes the caller's display name.
func (s *Service) UpdateAccount(ctx context.Context, actor auth.Principal, name string) (User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return User{}, apperr.BadRequest("Name field cannot be empty")
	}
	u, err := s.repo.UpdateName(ctx, actor.ID, name)
	if err != nil {
		return User{}, err
	}
	if u == nil {
		return User{}, apperr.NotFound("User not found.")
	}
	s.audit.Append(ctx, audit.Entry{
		Actor:   actor.ID,
		Action:  audit.ActionUserUpdatedSelf,
		Details: fmt.Sprintf("User %s updated their account details.", u.Name),
		Entity:  audit.Ref("User", u.ID),
	})
	return *u, nil
}

// ChangePassword replaces the caller's password after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, actor auth.Principal, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return apperr.BadRequest("Old password and new password are required.")
	}
	u, err := s.find(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, oldPassword) {
		return apperr.Unauthorized("Invalid old password")
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	s.audit.Append(ctx, audit.Entry{
		Actor:   actor.ID,
		Action:  audit.ActionUserChangedPassword,
		Details: fmt.Sprintf("User %s changed their password.", u.Name),
		Entity:  audit.Ref("User", u.ID),
	})
	return nil
}

func parseOptionalRole(raw string) (auth.Role, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	role, err := auth.ParseRole(raw)
	if err != nil {
		return "", apperr.BadRequest("Invalid role %q.", raw)
	}
	return role, nil
}

// List returns active users, optionally of one role.
func (s *Service) List(ctx context.Context, role string) ([]User, error) {
	r, err := parseOptionalRole(role)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ListFilter{Role: r, Active: true})
}

// Archived returns deactivated users.
func (s *Service) Archived(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx, ListFilter{Active: false})
}

// ListByRole returns every user with the given role. The role is required.
func (s *Service) ListByRole(ctx context.Context, role string) ([]User, error) {
	if strings.TrimSpace(role) == "" {
		return nil, apperr.BadRequest("A 'role' query parameter is required for this endpoint.")
	}
	r, err := parseOptionalRole(role)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByRoles(ctx, []auth.Role{r})
}

const activityFeedSize = 5

// Get returns a user with their programs and recent activity.
func (s *Service) Get(ctx context.Context, id string) (Details, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return Details{}, err
	}
	programs, err := s.programs.ListForUser(ctx, u.ID, u.Role)
	if err != nil {
		return Details{}, err
	}
	records, err := s.attendance.Recent(ctx, u.ID, activityFeedSize)
	if err != nil {
		return Details{}, err
	}

	d := Details{User: *u, Programs: []ProgramRef{}, ActivityFeed: []Activity{}}
	for _, p := range programs {
		d.Programs = append(d.Programs, ProgramRef{ID: p.ID, Name: p.Name})
	}
	for _, rec := range records {
		d.ActivityFeed = append(d.ActivityFeed, Activity{
			ID:        rec.ID,
			Type:      "Attendance",
			Text:      fmt.Sprintf("Status marked as '%s' for program: %s.", rec.Status, rec.ProgramName),
			Timestamp: rec.CreatedAt,
		})
	}
	return d, nil
}

// Onboarded pages through users who have logged in. A ProgramManager only
// sees members of their own programs.
func (s *Service) Onboarded(ctx context.Context, actor auth.Principal, role string, page, limit int) (Page, error) {
	r, err := parseOptionalRole(role)
	if err != nil {
		return Page{}, err
	}
	page, limit = store.PageParams(page, limit)
	f := OnboardedFilter{Role: r, Limit: limit, Offset: store.Offset(page, limit)}
	if actor.Role == auth.RoleProgramManager {
		f.ManagerID = actor.ID
	}
	users, total, err := s.repo.Onboarded(ctx, f)
	if err != nil {
		return Page{}, err
	}
	return Page{Data: users, Pagination: store.NewPagination(total, page, limit)}, nil
}

// UpdateStatus activates or deactivates another user's account.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Principal, id string, active bool) (User, error) {
	if actor.ID == id {
		return User{}, apperr.BadRequest("You cannot change your own active status.")
	}
	u, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return User{}, err
	}
	if u == nil {
		return User{}, apperr.NotFound("User not found.")
	}
	state := "deactivated"
	if active {
		state = "reactivated"
	}
	s.audit.Append(ctx, audit.Entry{
		Actor:   actor.ID,
		Action:  audit.ActionAdminUpdatedUserStatus,
		Details: fmt.Sprintf("Admin %s %s the account of %s.", actor.Name, state, u.Email),
		Entity:  audit.Ref("User", u.ID),
	})
	return *u, nil
}

// IsActive backs the authentication middleware's account check.
func (s *Service) IsActive(ctx context.Context, id string) (bool, error) {
	return s.repo.IsActive(ctx, id)
}

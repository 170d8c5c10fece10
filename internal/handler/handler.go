// Package handler exposes the services over the /api/v1 JSON API.
package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"programhub/internal/apperr"
	"programhub/internal/attendance"
	"programhub/internal/audit"
	"programhub/internal/auth"
	"programhub/internal/certificate"
	"programhub/internal/course"
	"programhub/internal/program"
	"programhub/internal/qr"
	"programhub/internal/report"
	"programhub/internal/user"
)

type UserService interface {
	Register(ctx context.Context, actor *auth.Principal, in user.RegisterInput) (user.User, error)
	Login(ctx context.Context, email, password string) (user.Session, error)
	Me(ctx context.Context, actor auth.Principal) (user.User, error)
	UpdateAccount(ctx context.Context, actor auth.Principal, name string) (user.User, error)
	ChangePassword(ctx context.Context, actor auth.Principal, oldPassword, newPassword string) error
	List(ctx context.Context, role string) ([]user.User, error)
	Archived(ctx context.Context) ([]user.User, error)
	ListByRole(ctx context.Context, role string) ([]user.User, error)
	Get(ctx context.Context, id string) (user.Details, error)
	Onboarded(ctx context.Context, actor auth.Principal, role string, page, limit int) (user.Page, error)
	UpdateStatus(ctx context.Context, actor auth.Principal, id string, active bool) (user.User, error)
	IsActive(ctx context.Context, id string) (bool, error)
}

type ProgramService interface {
	Create(ctx context.Context, actor auth.Principal, in program.CreateInput) (program.Program, error)
	List(ctx context.Context, actor auth.Principal, includeInactive bool) ([]program.Program, error)
	Get(ctx context.Context, id string) (*program.Program, error)
	Update(ctx context.Context, actor auth.Principal, id string, c program.Changes) (*program.Program, error)
	Deactivate(ctx context.Context, actor auth.Principal, id string) error
	RequestApproval(ctx context.Context, actor auth.Principal, id string) (*program.Program, error)
	Approve(ctx context.Context, actor auth.Principal, id string) (*program.Program, error)
	Reject(ctx context.Context, actor auth.Principal, id, reason string) (*program.Program, error)
	EnrollTrainee(ctx context.Context, actor auth.Principal, id, traineeID string) (*program.Program, error)
	EnrollFacilitator(ctx context.Context, actor auth.Principal, id, facilitatorID string) (*program.Program, error)
	ManageManagers(ctx context.Context, actor auth.Principal, id, managerID string, action program.ManagerAction) (*program.Program, error)
	Stats(ctx context.Context, id string, from, to *time.Time) (program.Stats, error)
	Members(ctx context.Context, actor auth.Principal, programID string) ([]program.Member, error)
	UpdateMemberName(ctx context.Context, actor auth.Principal, userID, name string) (program.Member, error)
	RemoveMember(ctx context.Context, actor auth.Principal, programID, userID string) (*program.Program, error)
	CreateDepartment(ctx context.Context, actor auth.Principal, in program.DepartmentInput) (program.Department, error)
	ListDepartments(ctx context.Context, programID string) ([]program.Department, error)
}

type AttendanceService interface {
	Mark(ctx context.Context, in attendance.MarkInput) (attendance.Record, bool, error)
	SessionCode(ctx context.Context, programID string) (qr.Token, error)
	Excuse(ctx context.Context, in attendance.ExcuseInput) (attendance.Record, error)
	Report(ctx context.Context, q attendance.ReportQuery) (attendance.Report, error)
}

type CourseService interface {
	CreateCourse(ctx context.Context, actor auth.Principal, in course.CreateCourseInput) (course.Course, error)
	ApproveCourse(ctx context.Context, actor auth.Principal, id string) (*course.Course, error)
	RequestCourseApproval(ctx context.Context, actor auth.Principal, id string) (*course.Course, error)
	ListForProgram(ctx context.Context, programID string) ([]course.Course, error)
	CreateQuiz(ctx context.Context, actor auth.Principal, in course.CreateQuizInput) (course.Quiz, error)
	QuizForAttempt(ctx context.Context, id string) (course.OpenQuiz, error)
	SubmitAttempt(ctx context.Context, actor auth.Principal, quizID string, answers []int) (course.Attempt, error)
	CreateSubmission(ctx context.Context, actor auth.Principal, in course.CreateSubmissionInput) (course.Submission, error)
	ListSubmissions(ctx context.Context, actor auth.Principal, courseID string) ([]course.Submission, error)
	Review(ctx context.Context, actor auth.Principal, id string, in course.ReviewInput) (*course.Submission, error)
}

type CertificateService interface {
	Issue(ctx context.Context, actor auth.Principal, programID, traineeID string) (certificate.Certificate, error)
	Mine(ctx context.Context, actor auth.Principal) ([]certificate.Certificate, error)
}

type ReportService interface {
	TraineeMonthly(ctx context.Context, traineeID string, month, year int) (report.Monthly, error)
	MasterLog(ctx context.Context, f audit.Filter) (audit.Page, error)
	Dashboard(ctx context.Context) (report.Dashboard, error)
	ProgramPDF(ctx context.Context, programID string) ([]byte, error)
}

// Config is what the handlers need to authenticate callers.
type Config struct {
	JWTSigningKey string
	JWTIssuer     string
	// MaxUploadBytes caps multipart files; zero means 10 MiB.
	MaxUploadBytes int64
}

// Handler wires HTTP routes to the services.
type Handler struct {
	cfg          Config
	users        UserService
	programs     ProgramService
	attendance   AttendanceService
	courses      CourseService
	certificates CertificateService
	reports      ReportService
}

// Services bundles the dependencies of New.
type Services struct {
	Users        UserService
	Programs     ProgramService
	Attendance   AttendanceService
	Courses      CourseService
	Certificates CertificateService
	Reports      ReportService
}

func New(cfg Config, s Services) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		cfg:          cfg,
		users:        s.Users,
		programs:     s.Programs,
		attendance:   s.Attendance,
		courses:      s.Courses,
		certificates: s.Certificates,
		reports:      s.Reports,
	}
}

// Response is the envelope of every successful reply.
type Response struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Response{Success: status < http.StatusBadRequest, StatusCode: status, Data: data, Message: message})
}

// fail hands err to the ErrorResponder.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// bind decodes a JSON body. Malformed JSON is a plain 400; binding tag
// failures pass through for field-level rendering.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fail(c, err)
		} else {
			fail(c, apperr.BadRequest("Invalid request body."))
		}
		return false
	}
	return true
}

// actor is the authenticated caller. Only used behind Authenticate.
func actor(c *gin.Context) auth.Principal {
	p, _ := auth.PrincipalFrom(c)
	return p
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(attendance.DayLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func optionalDate(c *gin.Context, key string) (*time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	t, err := parseDate(v)
	if err != nil {
		fail(c, apperr.BadRequest("'%s' must be a date (YYYY-MM-DD).", key))
		return nil, false
	}
	return &t, true
}

// formFile reads an optional multipart file; a missing field yields nil.
func (h *Handler) formFile(c *gin.Context, field string) (*course.File, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperr.BadRequest("Invalid multipart upload.")
	}
	if fh.Size > h.cfg.MaxUploadBytes {
		return nil, apperr.New(http.StatusRequestEntityTooLarge, "File exceeds the %d byte upload limit.", h.cfg.MaxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "open upload")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.cfg.MaxUploadBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read upload")
	}
	return &course.File{Name: fh.Filename, Data: data}, nil
}

// Package course covers program coursework: course documents and their
// approval, quizzes with attempts, and project submissions with review.
package course

import (
	"context"
	"fmt"
	"strings"

	"programhub/internal/apperr"
	"programhub/internal/audit"
	"programhub/internal/auth"
	"programhub/internal/store"
)

// Store is the persistence the Service needs.
type Store interface {
	CreateCourse(ctx context.Context, c Course) (Course, error)
	GetCourse(ctx context.Context, id string) (*Course, error)
	ProgramExists(ctx context.Context, programID string) (bool, error)
	SetCourseStatus(ctx context.Context, id string, status Status) error
	ListCourses(ctx context.Context, programID string) ([]Course, error)
	CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	GetQuiz(ctx context.Context, id string) (*Quiz, error)
	CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	CreateSubmission(ctx context.Context, s Submission) (Submission, error)
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	ListSubmissions(ctx context.Context, courseID string) ([]Submission, error)
	ReviewSubmission(ctx context.Context, id string, status SubmissionStatus, feedback, grade string) error
}

// Uploader persists an uploaded file and returns its public URL.
type Uploader interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

// ManagerCheck reports whether a user manages a program.
type ManagerCheck interface {
	IsManager(ctx context.Context, programID, userID string) (bool, error)
}

// Auditor appends audit entries.
type Auditor interface {
	Append(ctx context.Context, e audit.Entry)
}

type Service struct {
	repo     Store
	files    Uploader
	programs ManagerCheck
	audit    Auditor
}

func NewService(repo Store, files Uploader, programs ManagerCheck, auditor Auditor) *Service {
	return &Service{repo: repo, files: files, programs: programs, audit: auditor}
}

// File is an uploaded multipart file.
type File struct {
	Name string
	Data []byte
}

var (
	errCourseNotFound     = apperr.NotFound("Course not found.")
	errQuizNotFound       = apperr.NotFound("Quiz not found.")
	errSubmissionNotFound = apperr.NotFound("Submission not found.")
	errProgramNotFound    = apperr.NotFound("Program not found.")
)

func (s *Service) course(ctx context.Context, id string) (*Course, error) {
	c, err := s.repo.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errCourseNotFound
	}
	return c, nil
}

// facilitatedCourse loads a course and checks actor is its facilitator.
func (s *Service) facilitatedCourse(ctx context.Context, id string, actor auth.Principal) (*Course, error) {
	c, err := s.course(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.FacilitatorID != actor.ID {
		return nil, apperr.Forbidden("Forbidden: You are not the facilitator of this course.")
	}
	return c, nil
}

func (s *Service) log(ctx context.Context, actor auth.Principal, action audit.Action, c *Course, details string) {
	s.audit.Append(ctx, audit.Entry{
		Actor:   actor.ID,
		Action:  action,
		Details: details,
		Entity:  audit.Ref("Course", c.ID),
	})
}

func missing(f *File) bool {
	return f == nil || len(f.Data) == 0
}

type CreateCourseInput struct {
	Title       string
	Description string
	ProgramID   string
	Document    *File
}

// CreateCourse stores the course document and files the course for approval.
func (s *Service) CreateCourse(ctx context.Context, actor auth.Principal, in CreateCourseInput) (Course, error) {
	if actor.Role != auth.RoleFacilitator {
		return Course{}, apperr.Forbidden("Only facilitators can create courses.")
	}
	in.Title = strings.TrimSpace(in.Title)
	var fields []apperr.FieldError
	if in.Title == "" {
		fields = append(fields, apperr.FieldError{Field: "title", Message: "is required"})
	}
	if in.ProgramID == "" {
		fields = append(fields, apperr.FieldError{Field: "programId", Message: "is required"})
	}
	if len(fields) > 0 {
		return Course{}, apperr.Validation("Title and program are required.", fields...)
	}
	if missing(in.Document) {
		return Course{}, apperr.BadRequest("Course content document is required.")
	}
	if !store.ValidID(in.ProgramID) {
		return Course{}, errProgramNotFound
	}
	exists, err := s.repo.ProgramExists(ctx, in.ProgramID)
	if err != nil {
		return Course{}, err
	}
	if !exists {
		return Course{}, errProgramNotFound
	}
	url, err := s.files.Save(ctx, in.Document.Name, in.Document.Data)
	if err != nil {
		return Course{}, err
	}
	c, err := s.repo.CreateCourse(ctx, Course{
		ProgramID:     in.ProgramID,
		FacilitatorID: actor.ID,
		Title:         in.Title,
		Description:   strings.TrimSpace(in.Description),
		ContentURL:    url,
		Status:        StatusPendingApproval,
	})
	if err != nil {
		if store.IsForeignKeyViolation(err) {
			return Course{}, errProgramNotFound
		}
		return Course{}, err
	}
	s.log(ctx, actor, audit.ActionCourseCreated, &c, fmt.Sprintf("Facilitator %s created course '%s'.", actor.Name, c.Title))
	return c, nil
}

// ApproveCourse marks a course Approved. The approving manager must manage
// the course's program.
func (s *Service) ApproveCourse(ctx context.Context, actor auth.Principal, id string) (*Course, error) {
	if !actor.Role.In(auth.RoleProgramManager, auth.RoleSuperAdmin) {
		return nil, apperr.Forbidden("Only program managers can approve courses.")
	}
	c, err := s.course(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == auth.RoleProgramManager {
		ok, err := s.programs.IsManager(ctx, c.ProgramID, actor.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Forbidden("Forbidden: You are not a manager of this program.")
		}
	}
	if c.Status == StatusApproved {
		return nil, apperr.BadRequest("Course is already approved.")
	}
	if err := s.repo.SetCourseStatus(ctx, c.ID, StatusApproved); err != nil {
		return nil, err
	}
	c.Status = StatusApproved
	s.log(ctx, actor, audit.ActionCourseApproved, c, fmt.Sprintf("%s %s approved course '%s'.", actor.Role, actor.Name, c.Title))
	return c, nil
}

// RequestCourseApproval resubmits a Draft or Rejected course.
func (s *Service) RequestCourseApproval(ctx context.Context, actor auth.Principal, id string) (*Course, error) {
	c, err := s.facilitatedCourse(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusDraft && c.Status != StatusRejected {
		return nil, apperr.BadRequest("Course cannot be submitted for approval from status %s.", c.Status)
	}
	if err := s.repo.SetCourseStatus(ctx, c.ID, StatusPendingApproval); err != nil {
		return nil, err
	}
	c.Status = StatusPendingApproval
	s.log(ctx, actor, audit.ActionCourseSubmitted, c, fmt.Sprintf("Facilitator %s submitted course '%s' for approval.", actor.Name, c.Title))
	return c, nil
}

// ListForProgram returns a program's courses with the facilitator name populated.
func (s *Service) ListForProgram(ctx context.Context, programID string) ([]Course, error) {
	return s.repo.ListCourses(ctx, programID)
}

type CreateQuizInput struct {
	Title     string
	CourseID  string
	Questions []Question
}

func validateQuestions(qs []Question) error {
	if len(qs) == 0 {
		return apperr.Validation("A quiz needs at least one question.",
			apperr.FieldError{Field: "questions", Message: "must not be empty"})
	}
	var fields []apperr.FieldError
	for i, q := range qs {
		field := fmt.Sprintf("questions[%d]", i)
		switch {
		case strings.TrimSpace(q.Text) == "":
			fields = append(fields, apperr.FieldError{Field: field + ".text", Message: "is required"})
		case len(q.Options) < 2:
			fields = append(fields, apperr.FieldError{Field: field + ".options", Message: "needs at least 2 options"})
		case q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options):
			fields = append(fields, apperr.FieldError{Field: field + ".correctAnswerIndex", Message: "is out of range"})
		}
	}
	if len(fields) > 0 {
		return apperr.Validation("Invalid quiz questions.", fields...)
	}
	return nil
}

// CreateQuiz adds a quiz to a course the actor facilitates.
func (s *Service) CreateQuiz(ctx context.Context, actor auth.Principal, in CreateQuizInput) (Quiz, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return Quiz{}, apperr.Validation("Quiz title is required.",
			apperr.FieldError{Field: "title", Message: "is required"})
	}
	if err := validateQuestions(in.Questions); err != nil {
		return Quiz{}, err
	}
	c, err := s.facilitatedCourse(ctx, in.CourseID, actor)
	if err != nil {
		return Quiz{}, err
	}
	return s.repo.CreateQuiz(ctx, Quiz{
		CourseID:  c.ID,
		ProgramID: c.ProgramID,
		CreatedBy: actor.ID,
		Title:     in.Title,
		Questions: in.Questions,
	})
}

func (s *Service) quiz(ctx context.Context, id string) (*Quiz, error) {
	q, err := s.repo.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errQuizNotFound
	}
	return q, nil
}

// QuizForAttempt returns the quiz without its answer key.
func (s *Service) QuizForAttempt(ctx context.Context, id string) (OpenQuiz, error) {
	q, err := s.quiz(ctx, id)
	if err != nil {
		return OpenQuiz{}, err
	}
	return q.Open(), nil
}

// SubmitAttempt scores a trainee's answers and records the attempt.
func (s *Service) SubmitAttempt(ctx context.Context, actor auth.Principal, quizID string, answers []int) (Attempt, error) {
	if actor.Role != auth.RoleTrainee {
		return Attempt{}, apperr.Forbidden("Only trainees can attempt quizzes.")
	}
	q, err := s.quiz(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	if len(answers) != len(q.Questions) {
		return Attempt{}, apperr.Validation(fmt.Sprintf("Expected %d answers.", len(q.Questions)),
			apperr.FieldError{Field: "answers", Message: "must answer every question"})
	}
	return s.repo.CreateAttempt(ctx, Attempt{
		QuizID:         q.ID,
		TraineeID:      actor.ID,
		Answers:        answers,
		Score:          q.Score(answers),
		TotalQuestions: len(q.Questions),
	})
}

type CreateSubmissionInput struct {
	CourseID string
	File     *File
}

// CreateSubmission stores a trainee's project file against a course.
func (s *Service) CreateSubmission(ctx context.Context, actor auth.Principal, in CreateSubmissionInput) (Submission, error) {
	if actor.Role != auth.RoleTrainee {
		return Submission{}, apperr.Forbidden("Only trainees can submit projects.")
	}
	if missing(in.File) {
		return Submission{}, apperr.BadRequest("Project file is required.")
	}
	c, err := s.course(ctx, in.CourseID)
	if err != nil {
		return Submission{}, err
	}
	url, err := s.files.Save(ctx, in.File.Name, in.File.Data)
	if err != nil {
		return Submission{}, err
	}
	return s.repo.CreateSubmission(ctx, Submission{
		ProgramID: c.ProgramID,
		CourseID:  c.ID,
		TraineeID: actor.ID,
		FileURL:   url,
		Status:    SubmissionSubmitted,
	})
}

// ListSubmissions returns a course's submissions for its facilitator.
func (s *Service) ListSubmissions(ctx context.Context, actor auth.Principal, courseID string) ([]Submission, error) {
	c, err := s.facilitatedCourse(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSubmissions(ctx, c.ID)
}

type ReviewInput struct {
	Status   SubmissionStatus
	Feedback string
	Grade    string
}

// Review records the facilitator's verdict on a submission.
func (s *Service) Review(ctx context.Context, actor auth.Principal, id string, in ReviewInput) (*Submission, error) {
	if !in.Status.ReviewOutcome() {
		return nil, apperr.Validation("Status must be Reviewed or NeedsRevision.",
			apperr.FieldError{Field: "status", Message: "must be Reviewed or NeedsRevision"})
	}
	sub, err := s.repo.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, errSubmissionNotFound
	}
	if _, err := s.facilitatedCourse(ctx, sub.CourseID, actor); err != nil {
		return nil, err
	}
	feedback, grade := strings.TrimSpace(in.Feedback), strings.TrimSpace(in.Grade)
	if err := s.repo.ReviewSubmission(ctx, sub.ID, in.Status, feedback, grade); err != nil {
		return nil, err
	}
	sub.Status, sub.Feedback, sub.Grade = in.Status, feedback, grade
	return sub, nil
}

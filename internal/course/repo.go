package course

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"programhub/internal/store"
)

// Repository persists courses, quizzes, attempts and submissions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const courseColumns = `c.id, c.program_id, c.facilitator_id, u.name, c.title, c.description,
	c.content_url, c.status, c.created_at, c.updated_at`

func scanCourse(sc interface{ Scan(...any) error }) (Course, error) {
	var c Course
	var status, facilitatorName string
	err := sc.Scan(&c.ID, &c.ProgramID, &c.FacilitatorID, &facilitatorName, &c.Title, &c.Description,
		&c.ContentURL, &status, &c.CreatedAt, &c.UpdatedAt)
	c.Status = Status(status)
	c.Facilitator = &Person{ID: c.FacilitatorID, Name: facilitatorName}
	return c, err
}

func (r *Repository) CreateCourse(ctx context.Context, c Course) (Course, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (id, program_id, facilitator_id, title, description, content_url, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.ProgramID, c.FacilitatorID, c.Title, c.Description, c.ContentURL, string(c.Status))
	if err != nil {
		return Course{}, errors.Wrap(err, "insert course")
	}
	got, err := r.GetCourse(ctx, c.ID)
	if err != nil {
		return Course{}, err
	}
	return *got, nil
}

// ProgramExists reports whether an active program with id exists.
func (r *Repository) ProgramExists(ctx context.Context, programID string) (bool, error) {
	if _, err := uuid.Parse(programID); err != nil {
		return false, nil
	}
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM programs WHERE id = $1 AND is_active)`, programID).Scan(&ok)
	return ok, errors.Wrap(err, "program exists")
}

// GetCourse returns nil when the course does not exist.
func (r *Repository) GetCourse(ctx context.Context, id string) (*Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	c, err := scanCourse(r.db.QueryRowContext(ctx, `
		SELECT `+courseColumns+`
		FROM courses c JOIN users u ON u.id = c.facilitator_id
		WHERE c.id = $1
	`, id))
	if err != nil {
		if store.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get course")
	}
	return &c, nil
}

func (r *Repository) SetCourseStatus(ctx context.Context, id string, status Status) error {
	_, err := r.db.ExecContext(ctx, `UPDATE courses SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	return errors.Wrap(err, "update course status")
}

func (r *Repository) ListCourses(ctx context.Context, programID string) ([]Course, error) {
	out := []Course{}
	if _, err := uuid.Parse(programID); err != nil {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+courseColumns+`
		FROM courses c JOIN users u ON u.id = c.facilitator_id
		WHERE c.program_id = $1
		ORDER BY c.created_at
	`, programID)
	if err != nil {
		return nil, errors.Wrap(err, "list courses")
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) CreateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return Quiz{}, errors.Wrap(err, "encode questions")
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO quizzes (id, course_id, program_id, created_by, title, questions)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, q.ID, q.CourseID, q.ProgramID, q.CreatedBy, q.Title, questions).Scan(&q.CreatedAt)
	if err != nil {
		return Quiz{}, errors.Wrap(err, "insert quiz")
	}
	return q, nil
}

// GetQuiz returns nil when the quiz does not exist.
func (r *Repository) GetQuiz(ctx context.Context, id string) (*Quiz, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	var q Quiz
	var questions []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, course_id, program_id, created_by, title, questions, created_at
		FROM quizzes WHERE id = $1
	`, id).Scan(&q.ID, &q.CourseID, &q.ProgramID, &q.CreatedBy, &q.Title, &questions, &q.CreatedAt)
	if err != nil {
		if store.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get quiz")
	}
	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		return nil, errors.Wrap(err, "decode questions")
	}
	return &q, nil
}

func (r *Repository) CreateAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "encode answers")
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO quiz_attempts (id, quiz_id, trainee_id, answers, score, total_questions)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING attempted_at
	`, a.ID, a.QuizID, a.TraineeID, answers, a.Score, a.TotalQuestions).Scan(&a.AttemptedAt)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "insert quiz attempt")
	}
	return a, nil
}

const submissionColumns = `s.id, s.program_id, s.course_id, s.trainee_id, u.name, u.email, s.file_url,
	s.status, COALESCE(s.feedback, ''), COALESCE(s.grade, ''), s.submitted_at, s.updated_at`

func scanSubmission(sc interface{ Scan(...any) error }) (Submission, error) {
	var s Submission
	var status string
	trainee := &Person{}
	err := sc.Scan(&s.ID, &s.ProgramID, &s.CourseID, &s.TraineeID, &trainee.Name, &trainee.Email, &s.FileURL,
		&status, &s.Feedback, &s.Grade, &s.SubmittedAt, &s.UpdatedAt)
	trainee.ID = s.TraineeID
	s.Trainee = trainee
	s.Status = SubmissionStatus(status)
	return s, err
}

func (r *Repository) CreateSubmission(ctx context.Context, s Submission) (Submission, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO submissions (id, program_id, course_id, trainee_id, file_url, status)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, s.ID, s.ProgramID, s.CourseID, s.TraineeID, s.FileURL, string(s.Status))
	if err != nil {
		return Submission{}, errors.Wrap(err, "insert submission")
	}
	got, err := r.GetSubmission(ctx, s.ID)
	if err != nil {
		return Submission{}, err
	}
	return *got, nil
}

// GetSubmission returns nil when the submission does not exist.
func (r *Repository) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s JOIN users u ON u.id = s.trainee_id
		WHERE s.id = $1
	`, id))
	if err != nil {
		if store.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get submission")
	}
	return &s, nil
}

func (r *Repository) ListSubmissions(ctx context.Context, courseID string) ([]Submission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s JOIN users u ON u.id = s.trainee_id
		WHERE s.course_id = $1
		ORDER BY s.submitted_at DESC
	`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "list submissions")
	}
	defer rows.Close()
	out := []Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) ReviewSubmission(ctx context.Context, id string, status SubmissionStatus, feedback, grade string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET status = $2, feedback = $3, grade = $4, updated_at = NOW()
		WHERE id = $1
	`, id, string(status), feedback, grade)
	return errors.Wrap(err, "review submission")
}

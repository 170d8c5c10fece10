// Package certificate issues program completion certificates.
package certificate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"programhub/internal/apperr"
	"programhub/internal/audit"
	"programhub/internal/auth"
	"programhub/internal/store"
)

// ProgramRef is the populated program reference on a certificate.
type ProgramRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Certificate struct {
	ID            string      `json:"id"`
	CertificateID string      `json:"certificateId"`
	TraineeID     string      `json:"trainee"`
	ProgramID     string      `json:"-"`
	Program       *ProgramRef `json:"program"`
	IssueDate     time.Time   `json:"issueDate"`
}

// Repository stores certificates in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert fails with a unique violation when the trainee already holds a
// certificate for the program.
func (r *Repository) Insert(ctx context.Context, c Certificate) (Certificate, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO certificates (id, certificate_id, program_id, trainee_id)
		VALUES ($1,$2,$3,$4)
		RETURNING issue_date
	`, c.ID, c.CertificateID, c.ProgramID, c.TraineeID).Scan(&c.IssueDate)
	if err != nil {
		return Certificate{}, errors.Wrap(err, "insert certificate")
	}
	return c, nil
}

func (r *Repository) ForTrainee(ctx context.Context, traineeID string) ([]Certificate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.certificate_id, c.trainee_id, p.id, p.name, c.issue_date
		FROM certificates c JOIN programs p ON p.id = c.program_id
		WHERE c.trainee_id = $1
		ORDER BY c.issue_date DESC
	`, traineeID)
	if err != nil {
		return nil, errors.Wrap(err, "list certificates")
	}
	defer rows.Close()
	out := []Certificate{}
	for rows.Next() {
		var c Certificate
		p := &ProgramRef{}
		if err := rows.Scan(&c.ID, &c.CertificateID, &c.TraineeID, &p.ID, &p.Name, &c.IssueDate); err != nil {
			return nil, err
		}
		c.ProgramID, c.Program = p.ID, p
		out = append(out, c)
	}
	return out, rows.Err()
}

// Store is the persistence the Service needs.
type Store interface {
	Insert(ctx context.Context, c Certificate) (Certificate, error)
	ForTrainee(ctx context.Context, traineeID string) ([]Certificate, error)
}

// Auditor appends audit entries.
type Auditor interface {
	Append(ctx context.Context, e audit.Entry)
}

type Service struct {
	repo  Store
	audit Auditor
}

func NewService(repo Store, auditor Auditor) *Service {
	return &Service{repo: repo, audit: auditor}
}

// Issue creates the single certificate a trainee may hold for a program.
func (s *Service) Issue(ctx context.Context, actor auth.Principal, programID, traineeID string) (Certificate, error) {
	if actor.Role != auth.RoleProgramManager {
		return Certificate{}, apperr.Forbidden("Only program managers can issue certificates.")
	}
	if programID == "" || traineeID == "" {
		return Certificate{}, apperr.Validation("programId and traineeId are required.")
	}
	if !store.ValidID(programID, traineeID) {
		return Certificate{}, apperr.NotFound("Program or trainee not found.")
	}
	c, err := s.repo.Insert(ctx, Certificate{
		CertificateID: uuid.NewString(),
		ProgramID:     programID,
		TraineeID:     traineeID,
	})
	switch {
	case store.IsUniqueViolation(err):
		return Certificate{}, apperr.Conflict("A certificate has already been issued to this trainee for this program.")
	case store.IsForeignKeyViolation(err):
		return Certificate{}, apperr.NotFound("Program or trainee not found.")
	case err != nil:
		return Certificate{}, err
	}
	s.audit.Append(ctx, audit.Entry{
		Actor:   actor.ID,
		Action:  audit.ActionCertificateIssued,
		Details: fmt.Sprintf("PM %s issued certificate %s.", actor.Name, c.CertificateID),
		Entity:  audit.Ref("Certificate", c.ID),
	})
	return c, nil
}

// Mine lists the caller's certificates with program names.
func (s *Service) Mine(ctx context.Context, actor auth.Principal) ([]Certificate, error) {
	return s.repo.ForTrainee(ctx, actor.ID)
}

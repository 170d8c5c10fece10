package program

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"programhub/internal/auth"
	"programhub/internal/store"
)

// Repository persists programs, their managers, members and departments in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const programColumns = `p.id, p.name, p.description, p.start_date, p.end_date, p.status,
	COALESCE(p.rejection_reason, ''), p.is_active, p.created_at, p.updated_at`

func scanProgram(sc interface{ Scan(...any) error }) (Program, error) {
	var p Program
	var status string
	err := sc.Scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.EndDate, &status,
		&p.RejectionReason, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	p.Status = Status(status)
	return p, err
}

// Create inserts the program and its manager rows in one transaction and
// returns it with managers populated.
func (r *Repository) Create(ctx context.Context, p Program, managerIDs []string) (Program, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	var out Program
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO programs (id, name, description, start_date, end_date, status)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, p.ID, p.Name, p.Description, p.StartDate, p.EndDate, string(p.Status))
		if err != nil {
			return errors.Wrap(err, "insert program")
		}
		for _, id := range managerIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO program_managers (program_id, user_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, p.ID, id); err != nil {
				return errors.Wrap(err, "insert program manager")
			}
		}
		got, err := get(ctx, tx, p.ID, true)
		if err != nil {
			return err
		}
		out = *got
		return nil
	})
	return out, err
}

// Get returns a program with managers populated, or nil when it does not
// exist or is inactive and includeInactive is false.
func (r *Repository) Get(ctx context.Context, id string, includeInactive bool) (*Program, error) {
	return get(ctx, r.db, id, includeInactive)
}

func get(ctx context.Context, q store.Queryer, id string, includeInactive bool) (*Program, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	query := `SELECT ` + programColumns + ` FROM programs p WHERE p.id = $1`
	if !includeInactive {
		query += ` AND p.is_active`
	}
	p, err := scanProgram(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get program")
	}
	managers, err := managersOf(ctx, q, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.Managers = nonNil(managers[p.ID])
	return &p, nil
}

func managersOf(ctx context.Context, q store.Queryer, programIDs []string) (map[string][]Person, error) {
	out := map[string][]Person{}
	if len(programIDs) == 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT pm.program_id, u.id, u.name, u.email
		FROM program_managers pm JOIN users u ON u.id = pm.user_id
		WHERE pm.program_id = ANY($1)
		ORDER BY u.name
	`, pq.Array(programIDs))
	if err != nil {
		return nil, errors.Wrap(err, "list program managers")
	}
	defer rows.Close()
	for rows.Next() {
		var programID string
		var m Person
		if err := rows.Scan(&programID, &m.ID, &m.Name, &m.Email); err != nil {
			return nil, err
		}
		out[programID] = append(out[programID], m)
	}
	return out, rows.Err()
}

func nonNil(p []Person) []Person {
	if p == nil {
		return []Person{}
	}
	return p
}

// List returns programs visible under f with managers populated.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Program, error) {
	clauses := []string{}
	args := []any{}
	switch f.Role {
	case auth.RoleProgramManager:
		args = append(args, f.UserID)
		clauses = append(clauses, fmt.Sprintf("p.id IN (SELECT program_id FROM program_managers WHERE user_id = $%d)", len(args)))
	case auth.RoleFacilitator, auth.RoleTrainee:
		args = append(args, f.UserID, string(f.Role))
		clauses = append(clauses, fmt.Sprintf("p.id IN (SELECT program_id FROM program_members WHERE user_id = $%d AND role = $%d)", len(args)-1, len(args)))
	}
	if !f.IncludeInactive {
		clauses = append(clauses, "p.is_active")
	}
	query := `SELECT ` + programColumns + ` FROM programs p`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY p.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list programs")
	}
	defer rows.Close()

	programs := []Program{}
	var ids []string
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	managers, err := managersOf(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range programs {
		programs[i].Managers = nonNil(managers[programs[i].ID])
	}
	return programs, nil
}

// IsManager reports whether userID manages programID.
func (r *Repository) IsManager(ctx context.Context, programID, userID string) (bool, error) {
	if !store.ValidID(programID, userID) {
		return false, nil
	}
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM program_managers WHERE program_id = $1 AND user_id = $2)
	`, programID, userID).Scan(&ok)
	return ok, errors.Wrap(err, "check program manager")
}

// Transition moves the program to "to" only if its current status is one of
// from. It reports false when the status did not match.
func (r *Repository) Transition(ctx context.Context, id string, from []Status, to Status, reason *string) (bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE programs SET status = $2, rejection_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)
	`, id, string(to), reason, pq.Array(allowed))
	if err != nil {
		return false, errors.Wrap(err, "transition program")
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Update applies non-nil changes.
func (r *Repository) Update(ctx context.Context, id string, c Changes) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE programs SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			start_date = COALESCE($4, start_date),
			end_date = COALESCE($5, end_date),
			updated_at = NOW()
		WHERE id = $1
	`, id, c.Name, c.Description, c.StartDate, c.EndDate)
	return errors.Wrap(err, "update program")
}

// Deactivate soft-deletes a program.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE programs SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return errors.Wrap(err, "deactivate program")
}

// AddMember enrolls a user under role. Enrolling twice is a no-op.
func (r *Repository) AddMember(ctx context.Context, programID, userID string, role auth.Role) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO program_members (program_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, programID, userID, string(role))
	return errors.Wrap(err, "add program member")
}

// RemoveMember drops a user from both the trainee and facilitator sets.
func (r *Repository) RemoveMember(ctx context.Context, programID, userID string) error {
	if !store.ValidID(programID, userID) {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM program_members WHERE program_id = $1 AND user_id = $2`, programID, userID)
	return errors.Wrap(err, "remove program member")
}

// AddManager adds a manager; adding an existing one is a no-op.
func (r *Repository) AddManager(ctx context.Context, programID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO program_managers (program_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, programID, userID)
	return errors.Wrap(err, "add program manager")
}

// RemoveManager removes a manager.
func (r *Repository) RemoveManager(ctx context.Context, programID, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM program_managers WHERE program_id = $1 AND user_id = $2`, programID, userID)
	return errors.Wrap(err, "remove program manager")
}

// Members lists trainees and facilitators of a program.
func (r *Repository) Members(ctx context.Context, programID string) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, m.role, u.status, u.is_active
		FROM program_members m JOIN users u ON u.id = m.user_id
		WHERE m.program_id = $1
		ORDER BY m.role, u.name
	`, programID)
	if err != nil {
		return nil, errors.Wrap(err, "list program members")
	}
	defer rows.Close()
	members := []Member{}
	for rows.Next() {
		var m Member
		var role string
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &role, &m.Status, &m.IsActive); err != nil {
			return nil, err
		}
		m.Role = auth.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

// MemberCounts returns the number of enrolled trainees and facilitators.
func (r *Repository) MemberCounts(ctx context.Context, programID string) (trainees, facilitators int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE role = 'Trainee'), COUNT(*) FILTER (WHERE role = 'Facilitator')
		FROM program_members WHERE program_id = $1
	`, programID).Scan(&trainees, &facilitators)
	return trainees, facilitators, errors.Wrap(err, "count program members")
}

// CompleteEnded marks Active programs whose end date is before today as Completed.
func (r *Repository) CompleteEnded(ctx context.Context, today time.Time) ([]Program, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE programs p SET status = 'Completed', updated_at = NOW()
		WHERE p.status = 'Active' AND p.is_active AND p.end_date < $1
		RETURNING `+programColumns, today)
	if err != nil {
		return nil, errors.Wrap(err, "complete ended programs")
	}
	defer rows.Close()
	var done []Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		done = append(done, p)
	}
	return done, rows.Err()
}

// UserRole returns the role of an active user. ok is false when there is none.
func (r *Repository) UserRole(ctx context.Context, userID string) (role auth.Role, ok bool, err error) {
	if _, err := uuid.Parse(userID); err != nil {
		return "", false, nil
	}
	var raw string
	err = r.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1 AND is_active`, userID).Scan(&raw)
	if store.IsNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "get user role")
	}
	return auth.Role(raw), true, nil
}

// ManagesMember reports whether managerID manages any program userID is enrolled in.
func (r *Repository) ManagesMember(ctx context.Context, managerID, userID string) (bool, error) {
	if !store.ValidID(managerID, userID) {
		return false, nil
	}
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM program_members m
			JOIN program_managers pm ON pm.program_id = m.program_id
			WHERE pm.user_id = $1 AND m.user_id = $2
		)
	`, managerID, userID).Scan(&ok)
	return ok, errors.Wrap(err, "check managed member")
}

// RenameUser sets a user's display name.
func (r *Repository) RenameUser(ctx context.Context, userID, name string) (Member, error) {
	var m Member
	var role string
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1
		RETURNING id, name, email, role, status, is_active
	`, userID, name).Scan(&m.ID, &m.Name, &m.Email, &role, &m.Status, &m.IsActive)
	m.Role = auth.Role(role)
	return m, errors.Wrap(err, "rename user")
}

// CreateDepartment inserts a department. The program reference lives on the
// department row, so there is no second write.
func (r *Repository) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO departments (id, program_id, name, description) VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, d.ID, d.ProgramID, d.Name, d.Description).Scan(&d.CreatedAt)
	return d, errors.Wrap(err, "insert department")
}

// ListDepartments returns a program's departments.
func (r *Repository) ListDepartments(ctx context.Context, programID string) ([]Department, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, program_id, name, description, created_at FROM departments
		WHERE program_id = $1 ORDER BY name
	`, programID)
	if err != nil {
		return nil, errors.Wrap(err, "list departments")
	}
	defer rows.Close()
	out := []Department{}
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.ProgramID, &d.Name, &d.Description, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

package user

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

// Repository persists users in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `u.id, u.name, u.email, u.password_hash, u.role, u.status, u.is_active,
	u.first_login, u.last_login, u.created_at, u.updated_at`

func scanUser(sc interface{ Scan(...any) error }) (User, error) {
	var u User
	var role, status string
	err := sc.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &status, &u.IsActive,
		&u.FirstLogin, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	u.Role, u.Status = auth.Role(role), Status(status)
	return u, err
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if store.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

func (r *Repository) queryMany(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()
	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Count returns the number of users.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, errors.Wrap(err, "count users")
}

// Create inserts a user. A duplicate email fails with a unique violation.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = StatusPending
	}
	u.IsActive = true
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), string(u.Status)).Scan(&u.CreatedAt, &u.UpdatedAt)
	return u, errors.Wrap(err, "insert user")
}

// GetByID returns a user or nil.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
}

// GetByEmail returns a user or nil. Emails are stored lowercased.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = $1`, email)
}

// RecordLogin stamps lastLogin, sets firstLogin once and activates a Pending user.
func (r *Repository) RecordLogin(ctx context.Context, id string, at time.Time) (*User, error) {
	return r.queryOne(ctx, `
		UPDATE users u SET
			first_login = COALESCE(u.first_login, $2),
			last_login = $2,
			status = 'Active',
			updated_at = NOW()
		WHERE u.id = $1
		RETURNING `+userColumns, id, at)
}

// UpdateName sets the display name.
func (r *Repository) UpdateName(ctx context.Context, id, name string) (*User, error) {
	return r.queryOne(ctx, `
		UPDATE users u SET name = $2, updated_at = NOW() WHERE u.id = $1
		RETURNING `+userColumns, id, name)
}

// UpdatePassword stores a new hash.
func (r *Repository) UpdatePassword(ctx context.Context, id, hash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	return errors.Wrap(err, "update password")
}

// SetActive activates or deactivates an account.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.queryOne(ctx, `
		UPDATE users u SET is_active = $2, updated_at = NOW() WHERE u.id = $1
		RETURNING `+userColumns, id, active)
}

// IsActive reports whether the account exists and is active.
func (r *Repository) IsActive(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND is_active)`, id).Scan(&ok)
	return ok, errors.Wrap(err, "check user active")
}

// List returns users matching f, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.is_active = $1`
	args := []any{f.Active}
	if f.Role != "" {
		args = append(args, string(f.Role))
		query += ` AND u.role = $2`
	}
	return r.queryMany(ctx, query+` ORDER BY u.created_at DESC`, args...)
}

// ListByRoles returns users holding any of roles, active or not.
func (r *Repository) ListByRoles(ctx context.Context, roles []auth.Role) ([]User, error) {
	raw := make([]string, len(roles))
	for i, role := range roles {
		raw[i] = string(role)
	}
	return r.queryMany(ctx, `SELECT `+userColumns+` FROM users u WHERE u.role = ANY($1) ORDER BY u.name`, pq.Array(raw))
}

// Onboarded returns a page of users who have logged in, most recent first.
func (r *Repository) Onboarded(ctx context.Context, f OnboardedFilter) ([]User, int, error) {
	clauses := []string{"u.first_login IS NOT NULL"}
	args := []any{}
	if f.Role != "" {
		args = append(args, string(f.Role))
		clauses = append(clauses, fmt.Sprintf("u.role = $%d", len(args)))
	}
	if f.ManagerID != "" {
		args = append(args, f.ManagerID)
		clauses = append(clauses, fmt.Sprintf(`u.id IN (
			SELECT m.user_id FROM program_members m
			JOIN program_managers pm ON pm.program_id = m.program_id
			WHERE pm.user_id = $%d)`, len(args)))
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count onboarded users")
	}
	args = append(args, f.Limit, f.Offset)
	users, err := r.queryMany(ctx, `SELECT `+userColumns+` FROM users u`+where+
		fmt.Sprintf(` ORDER BY u.first_login DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	return users, total, err
}

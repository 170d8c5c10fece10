package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"programhub/internal/store"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `a.id, a.user_id, a.program_id, a.day, a.method, a.status, a.check_in_time, a.check_out_time,
	COALESCE(a.reason, ''), COALESCE(a.marked_by::text, ''), a.created_at, a.updated_at`

func scanRecord(sc interface{ Scan(...any) error }, extra ...any) (Record, error) {
	var rec Record
	var method, status string
	dest := []any{&rec.ID, &rec.UserID, &rec.ProgramID, &rec.Date, &method, &status, &rec.CheckInTime, &rec.CheckOutTime,
		&rec.Reason, &rec.MarkedBy, &rec.CreatedAt, &rec.UpdatedAt}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return Record{}, err
	}
	rec.Method, rec.Status = Method(method), Status(status)
	return rec, nil
}

// Find returns the record for the day, or nil when there is none.
func (r *Repository) Find(ctx context.Context, userID, programID, day string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance a
		WHERE a.user_id = $1 AND a.program_id = $2 AND a.day = $3
	`, userID, programID, day)
	rec, err := scanRecord(row)
	if err != nil {
		if store.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find attendance")
	}
	return &rec, nil
}

// Insert writes a new record. A second record for the same day fails with a
// unique violation.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	var markedBy *string
	if rec.MarkedBy != "" {
		markedBy = &rec.MarkedBy
	}
	var reason *string
	if rec.Reason != "" {
		reason = &rec.Reason
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (id, user_id, program_id, day, method, status, check_in_time, reason, marked_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at
	`, rec.ID, rec.UserID, rec.ProgramID, rec.Date, string(rec.Method), string(rec.Status), rec.CheckInTime, reason, markedBy)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, errors.Wrap(err, "insert attendance")
	}
	return rec, nil
}

// SetCheckOut stamps the check-out time once. It returns sql.ErrNoRows when
// the record already has one.
func (r *Repository) SetCheckOut(ctx context.Context, id string, at time.Time) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance a SET check_out_time = $2, updated_at = NOW()
		WHERE a.id = $1 AND a.check_out_time IS NULL
		RETURNING `+recordColumns, id, at)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, errors.Wrap(err, "check out")
	}
	return rec, nil
}

func (f ListFilter) where() (string, []any) {
	clauses := []string{"a.program_id = $1", "a.day BETWEEN $2 AND $3"}
	args := []any{f.ProgramID, f.From, f.To}
	if f.UserID != "" {
		args = append(args, f.UserID)
		clauses = append(clauses, fmt.Sprintf("a.user_id = $%d", len(args)))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns a page of records with user and marker names populated.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Record, int, error) {
	where, args := f.where()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance a`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count attendance")
	}

	// LIMIT NULL returns every row.
	var limit any
	if f.Limit > 0 {
		limit = f.Limit
	}
	args = append(args, limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`, COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(m.name, '')
		FROM attendance a
		LEFT JOIN users u ON u.id = a.user_id
		LEFT JOIN users m ON m.id = a.marked_by`+where+
		fmt.Sprintf(" ORDER BY a.day DESC, a.check_in_time DESC NULLS LAST LIMIT $%d OFFSET $%d", len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list attendance")
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var userName, userEmail, markerName string
		rec, err := scanRecord(rows, &userName, &userEmail, &markerName)
		if err != nil {
			return nil, 0, err
		}
		rec.User = &Person{ID: rec.UserID, Name: userName, Email: userEmail}
		if rec.MarkedBy != "" {
			rec.Marker = &Person{ID: rec.MarkedBy, Name: markerName}
		}
		res = append(res, rec)
	}
	return res, total, rows.Err()
}

// Counts tallies Present and Excused records matching f.
func (r *Repository) Counts(ctx context.Context, f CountFilter) (Counts, error) {
	clauses := []string{"a.day BETWEEN $1 AND $2"}
	args := []any{f.From, f.To}
	if f.ProgramID != "" {
		args = append(args, f.ProgramID)
		clauses = append(clauses, fmt.Sprintf("a.program_id = $%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		clauses = append(clauses, fmt.Sprintf("a.user_id = $%d", len(args)))
	}
	var c Counts
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE a.status = 'Present'), COUNT(*) FILTER (WHERE a.status = 'Excused')
		FROM attendance a WHERE `+strings.Join(clauses, " AND "), args...).Scan(&c.Present, &c.Excused)
	return c, errors.Wrap(err, "count attendance by status")
}

// Recent returns the user's latest records across programs, with program names.
func (r *Repository) Recent(ctx context.Context, userID string, limit int) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`, p.name
		FROM attendance a JOIN programs p ON p.id = a.program_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "recent attendance")
	}
	defer rows.Close()
	var res []Record
	var programName string
	for rows.Next() {
		rec, err := scanRecord(rows, &programName)
		if err != nil {
			return nil, err
		}
		rec.ProgramName = programName
		res = append(res, rec)
	}
	return res, rows.Err()
}

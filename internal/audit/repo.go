package audit

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

// Repository persists audit logs in Postgres. Rows are only ever inserted.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes one log row.
func (r *Repository) Insert(ctx context.Context, l Log) (Log, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	var entityID, entityModel *string
	if l.Entity != nil {
		entityID, entityModel = &l.Entity.ID, &l.Entity.Model
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, action, details, entity_id, entity_model, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, l.ID, l.UserID, string(l.Action), l.Details, entityID, entityModel, l.CreatedAt)
	return l, errors.Wrap(err, "insert audit log")
}

// List returns a newest-first page with actor name and role populated.
func (r *Repository) List(ctx context.Context, f Filter) (Page, error) {
	f.Page, f.Limit = store.PageParams(f.Page, f.Limit)
	clauses := []string{}
	args := []any{}
	if f.Action != "" {
		args = append(args, string(f.Action))
		clauses = append(clauses, fmt.Sprintf("l.action = $%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		clauses = append(clauses, fmt.Sprintf("l.user_id = $%d", len(args)))
	}
	if f.From != nil && f.To != nil {
		args = append(args, *f.From, *f.To)
		clauses = append(clauses, fmt.Sprintf("l.created_at BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	page := Page{Logs: []Log{}, Page: f.Page, Limit: f.Limit}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs l`+where, args...).Scan(&page.Total); err != nil {
		return Page{}, errors.Wrap(err, "count audit logs")
	}

	args = append(args, f.Limit, store.Offset(f.Page, f.Limit))
	rows, err := r.db.QueryContext(ctx, `
		SELECT l.id, l.user_id, COALESCE(u.name, ''), COALESCE(u.role, ''), l.action, l.details,
		       l.entity_id, l.entity_model, l.created_at
		FROM audit_logs l LEFT JOIN users u ON u.id = l.user_id`+where+
		fmt.Sprintf(" ORDER BY l.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return Page{}, errors.Wrap(err, "list audit logs")
	}
	defer rows.Close()

	for rows.Next() {
		var l Log
		var action string
		var entityID, entityModel sql.NullString
		if err := rows.Scan(&l.ID, &l.UserID, &l.UserName, &l.UserRole, &action, &l.Details, &entityID, &entityModel, &l.CreatedAt); err != nil {
			return Page{}, err
		}
		l.Action = Action(action)
		if entityID.Valid {
			l.Entity = &EntityRef{ID: entityID.String, Model: entityModel.String}
		}
		page.Logs = append(page.Logs, l)
	}
	return page, rows.Err()
}

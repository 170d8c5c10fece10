package report

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Repository runs the aggregate queries behind the admin dashboard.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Dashboard counts active programs and users and programs awaiting approval.
func (r *Repository) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM programs WHERE is_active),
			(SELECT COUNT(*) FROM users WHERE role = 'Trainee' AND status = 'Active'),
			(SELECT COUNT(*) FROM users WHERE is_active),
			(SELECT COUNT(*) FROM programs WHERE status = 'PendingApproval')
	`).Scan(&d.TotalPrograms, &d.ActiveTrainees, &d.TotalUsers, &d.PendingApprovals)
	return d, errors.Wrap(err, "dashboard counts")
}

package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// schema is applied idempotently at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              UUID PRIMARY KEY,
		name            TEXT NOT NULL,
		email           TEXT NOT NULL UNIQUE,
		password_hash   TEXT NOT NULL,
		role            TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'Pending',
		is_active       BOOLEAN NOT NULL DEFAULT TRUE,
		first_login     TIMESTAMPTZ,
		last_login      TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS programs (
		id               UUID PRIMARY KEY,
		name             TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		start_date       DATE NOT NULL,
		end_date         DATE NOT NULL,
		status           TEXT NOT NULL DEFAULT 'Draft',
		rejection_reason TEXT,
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS program_managers (
		program_id UUID NOT NULL REFERENCES programs(id),
		user_id    UUID NOT NULL REFERENCES users(id),
		PRIMARY KEY (program_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS program_members (
		program_id UUID NOT NULL REFERENCES programs(id),
		user_id    UUID NOT NULL REFERENCES users(id),
		role       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (program_id, user_id, role)
	)`,
	`CREATE TABLE IF NOT EXISTS departments (
		id          UUID PRIMARY KEY,
		program_id  UUID NOT NULL REFERENCES programs(id),
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id             UUID PRIMARY KEY,
		user_id        UUID NOT NULL REFERENCES users(id),
		program_id     UUID NOT NULL REFERENCES programs(id),
		day            TEXT NOT NULL,
		method         TEXT NOT NULL,
		status         TEXT NOT NULL,
		check_in_time  TIMESTAMPTZ,
		check_out_time TIMESTAMPTZ,
		reason         TEXT,
		marked_by      UUID REFERENCES users(id),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, program_id, day)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_program_day ON attendance(program_id, day)`,
	`CREATE TABLE IF NOT EXISTS courses (
		id             UUID PRIMARY KEY,
		program_id     UUID NOT NULL REFERENCES programs(id),
		facilitator_id UUID NOT NULL REFERENCES users(id),
		title          TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		content_url    TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'Draft',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS quizzes (
		id         UUID PRIMARY KEY,
		course_id  UUID NOT NULL REFERENCES courses(id),
		program_id UUID NOT NULL REFERENCES programs(id),
		created_by UUID NOT NULL REFERENCES users(id),
		title      TEXT NOT NULL,
		questions  JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_attempts (
		id              UUID PRIMARY KEY,
		quiz_id         UUID NOT NULL REFERENCES quizzes(id),
		trainee_id      UUID NOT NULL REFERENCES users(id),
		answers         JSONB NOT NULL,
		score           INT NOT NULL,
		total_questions INT NOT NULL,
		attempted_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id           UUID PRIMARY KEY,
		program_id   UUID NOT NULL REFERENCES programs(id),
		course_id    UUID NOT NULL REFERENCES courses(id),
		trainee_id   UUID NOT NULL REFERENCES users(id),
		file_url     TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'Submitted',
		feedback     TEXT,
		grade        TEXT,
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS certificates (
		id             UUID PRIMARY KEY,
		certificate_id TEXT NOT NULL UNIQUE,
		program_id     UUID NOT NULL REFERENCES programs(id),
		trainee_id     UUID NOT NULL REFERENCES users(id),
		issue_date     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (trainee_id, program_id)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id           UUID PRIMARY KEY,
		user_id      UUID NOT NULL,
		action       TEXT NOT NULL,
		details      TEXT NOT NULL,
		entity_id    TEXT,
		entity_model TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "apply schema")
		}
	}
	return nil
}

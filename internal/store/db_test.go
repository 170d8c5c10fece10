package store

import (
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505"}
	assert.True(t, IsUniqueViolation(dup))
	assert.True(t, IsUniqueViolation(errors.Wrap(dup, "insert")))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(errors.Wrap(sql.ErrNoRows, "get")))
	assert.False(t, IsNoRows(nil))
}

func TestNilHandlesAreSafe(t *testing.T) {
	var d *DB
	assert.NoError(t, d.Close())
	var r *Redis
	assert.NoError(t, r.Close())
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(errors.Wrap(&pgconn.PgError{Code: "23503"}, "insert")))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
}

func TestIsInvalidText(t *testing.T) {
	assert.True(t, IsInvalidText(errors.Wrap(&pgconn.PgError{Code: "22P02"}, "get")))
	assert.False(t, IsInvalidText(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsInvalidText(nil))
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("3f1c2b9e-7d4a-4e0b-9c61-2a8f5d3e1b70"))
	assert.True(t, ValidID())
	assert.False(t, ValidID("3f1c2b9e-7d4a-4e0b-9c61-2a8f5d3e1b70", "p1"))
	assert.False(t, ValidID(""))
}

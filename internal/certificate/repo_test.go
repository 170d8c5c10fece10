package certificate

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"programhub/internal/apperr"
	"programhub/internal/auth"
	"programhub/internal/store"
)

func TestIssueAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("PROGRAMHUB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PROGRAMHUB_TEST_DATABASE_URL not set")
	}
	db, err := store.NewDB(dsn)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx, db.Client))

	trainee, program := uuid.NewString(), uuid.NewString()
	_, err = db.Client.Exec(`INSERT INTO users (id, name, email, password_hash, role) VALUES ($1, 'Tia', $2, 'x', 'Trainee')`,
		trainee, trainee+"@example.test")
	require.NoError(t, err)
	_, err = db.Client.Exec(`INSERT INTO programs (id, name, start_date, end_date, status) VALUES ($1, 'Cohort', '2024-07-01', '2024-09-30', 'Completed')`,
		program)
	require.NoError(t, err)

	svc := NewService(NewRepository(db.Client), &fakeAuditor{})
	pm := auth.Principal{ID: uuid.NewString(), Role: auth.RoleProgramManager, Name: "Pam"}

	c, err := svc.Issue(ctx, pm, program, trainee)
	require.NoError(t, err)
	assert.False(t, c.IssueDate.IsZero())

	_, err = svc.Issue(ctx, pm, program, trainee)
	assert.Equal(t, http.StatusConflict, apperr.StatusOf(err))

	_, err = svc.Issue(ctx, pm, uuid.NewString(), trainee)
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))

	mine, err := NewRepository(db.Client).ForTrainee(ctx, trainee)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, program, mine[0].Program.ID)
}

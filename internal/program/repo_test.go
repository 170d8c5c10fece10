package program

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"programhub/internal/auth"
	"programhub/internal/store"
)

// testDB connects to PROGRAMHUB_TEST_DATABASE_URL and applies the schema.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PROGRAMHUB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PROGRAMHUB_TEST_DATABASE_URL not set")
	}
	db, err := store.NewDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db.Client))
	return db.Client
}

func seedUser(t *testing.T, db *sql.DB, role auth.Role) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO users (id, name, email, password_hash, role) VALUES ($1, $2, $3, 'x', $4)`,
		id, "user "+id[:8], id+"@example.test", string(role))
	require.NoError(t, err)
	return id
}

func seedProgram(t *testing.T, repo *Repository, managerID string) Program {
	t.Helper()
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	p, err := repo.Create(context.Background(), Program{
		Name:      "Cohort " + uuid.NewString()[:8],
		StartDate: start,
		EndDate:   start.AddDate(0, 3, 0),
		Status:    StatusDraft,
	}, []string{managerID})
	require.NoError(t, err)
	return p
}

func TestRepositoryTransitionRequiresCurrentStatus(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	p := seedProgram(t, repo, seedUser(t, db, auth.RoleProgramManager))

	ok, err := repo.Transition(ctx, p.ID, []Status{StatusActive}, StatusCompleted, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Transition(ctx, p.ID, []Status{StatusDraft, StatusRejected}, StatusPendingApproval, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	reason := "budget"
	ok, err = repo.Transition(ctx, p.ID, []Status{StatusDraft}, StatusRejected, &reason)
	require.NoError(t, err)
	assert.False(t, ok, "status already moved on")

	got, err := repo.Get(ctx, p.ID, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusPendingApproval, got.Status)
	assert.Empty(t, got.RejectionReason)
}

func TestRepositoryAddMemberIsIdempotent(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	pm := seedUser(t, db, auth.RoleProgramManager)
	p := seedProgram(t, repo, pm)
	trainee := seedUser(t, db, auth.RoleTrainee)

	require.NoError(t, repo.AddMember(ctx, p.ID, trainee, auth.RoleTrainee))
	require.NoError(t, repo.AddMember(ctx, p.ID, trainee, auth.RoleTrainee))

	trainees, facilitators, err := repo.MemberCounts(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, trainees)
	assert.Equal(t, 0, facilitators)

	managed, err := repo.ManagesMember(ctx, pm, trainee)
	require.NoError(t, err)
	assert.True(t, managed)

	require.NoError(t, repo.RemoveMember(ctx, p.ID, trainee))
	trainees, _, err = repo.MemberCounts(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, trainees)
}

func TestRepositoryMalformedIds(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	got, err := repo.Get(ctx, "p1", true)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err := repo.IsManager(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ManagesMember(ctx, "pm", "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, repo.RemoveMember(ctx, "p1", "u1"))
}

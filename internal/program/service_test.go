package program

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"programhub/internal/apperr"
	"programhub/internal/attendance"
	"programhub/internal/audit"
	"programhub/internal/auth"
)

type memberKey struct{ program, user string }

type fakeStore struct {
	programs    map[string]*Program
	managers    map[string][]string
	members     map[memberKey]auth.Role
	users       map[string]auth.Role
	departments []Department
	seq         int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		programs: map[string]*Program{},
		managers: map[string][]string{},
		members:  map[memberKey]auth.Role{},
		users:    map[string]auth.Role{},
	}
}

func (f *fakeStore) populate(p Program) Program {
	p.Managers = []Person{}
	for _, id := range f.managers[p.ID] {
		p.Managers = append(p.Managers, Person{ID: id, Name: "name-" + id})
	}
	return p
}

func (f *fakeStore) Create(_ context.Context, p Program, managerIDs []string) (Program, error) {
	f.seq++
	p.ID = fmt.Sprintf("prog-%d", f.seq)
	p.IsActive = true
	f.programs[p.ID] = &p
	f.managers[p.ID] = append([]string(nil), managerIDs...)
	return f.populate(p), nil
}

func (f *fakeStore) Get(_ context.Context, id string, includeInactive bool) (*Program, error) {
	p, ok := f.programs[id]
	if !ok || (!p.IsActive && !includeInactive) {
		return nil, nil
	}
	out := f.populate(*p)
	return &out, nil
}

func (f *fakeStore) List(_ context.Context, lf ListFilter) ([]Program, error) {
	out := []Program{}
	for _, p := range f.programs {
		if !p.IsActive && !lf.IncludeInactive {
			continue
		}
		out = append(out, f.populate(*p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) Transition(_ context.Context, id string, from []Status, to Status, reason *string) (bool, error) {
	p := f.programs[id]
	for _, s := range from {
		if p.Status == s {
			p.Status = to
			p.RejectionReason = ""
			if reason != nil {
				p.RejectionReason = *reason
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Update(_ context.Context, id string, c Changes) error {
	p := f.programs[id]
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.StartDate != nil {
		p.StartDate = *c.StartDate
	}
	if c.EndDate != nil {
		p.EndDate = *c.EndDate
	}
	return nil
}

func (f *fakeStore) Deactivate(_ context.Context, id string) error {
	f.programs[id].IsActive = false
	return nil
}

func (f *fakeStore) AddMember(_ context.Context, programID, userID string, role auth.Role) error {
	f.members[memberKey{programID, userID}] = role
	return nil
}

func (f *fakeStore) RemoveMember(_ context.Context, programID, userID string) error {
	delete(f.members, memberKey{programID, userID})
	return nil
}

func (f *fakeStore) AddManager(_ context.Context, programID, userID string) error {
	for _, id := range f.managers[programID] {
		if id == userID {
			return nil
		}
	}
	f.managers[programID] = append(f.managers[programID], userID)
	return nil
}

func (f *fakeStore) RemoveManager(_ context.Context, programID, userID string) error {
	kept := []string{}
	for _, id := range f.managers[programID] {
		if id != userID {
			kept = append(kept, id)
		}
	}
	f.managers[programID] = kept
	return nil
}

func (f *fakeStore) Members(_ context.Context, programID string) ([]Member, error) {
	out := []Member{}
	for k, role := range f.members {
		if k.program == programID {
			out = append(out, Member{ID: k.user, Role: role})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) MemberCounts(_ context.Context, programID string) (int, int, error) {
	var t, fa int
	for k, role := range f.members {
		if k.program != programID {
			continue
		}
		if role == auth.RoleTrainee {
			t++
		} else {
			fa++
		}
	}
	return t, fa, nil
}

func (f *fakeStore) CompleteEnded(_ context.Context, today time.Time) ([]Program, error) {
	var done []Program
	for _, p := range f.programs {
		if p.Status == StatusActive && p.IsActive && p.EndDate.Before(today) {
			p.Status = StatusCompleted
			done = append(done, *p)
		}
	}
	return done, nil
}

func (f *fakeStore) UserRole(_ context.Context, userID string) (auth.Role, bool, error) {
	r, ok := f.users[userID]
	return r, ok, nil
}

func (f *fakeStore) ManagesMember(_ context.Context, managerID, userID string) (bool, error) {
	for k := range f.members {
		if k.user != userID {
			continue
		}
		for _, m := range f.managers[k.program] {
			if m == managerID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeStore) RenameUser(_ context.Context, userID, name string) (Member, error) {
	return Member{ID: userID, Name: name, Role: f.users[userID]}, nil
}

func (f *fakeStore) CreateDepartment(_ context.Context, d Department) (Department, error) {
	d.ID = fmt.Sprintf("dep-%d", len(f.departments)+1)
	f.departments = append(f.departments, d)
	return d, nil
}

func (f *fakeStore) ListDepartments(_ context.Context, programID string) ([]Department, error) {
	out := []Department{}
	for _, d := range f.departments {
		if d.ProgramID == programID {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeCounter struct {
	counts   attendance.Counts
	from, to time.Time
}

func (f *fakeCounter) Counts(_ context.Context, _, _ string, from, to time.Time) (attendance.Counts, error) {
	f.from, f.to = from, to
	return f.counts, nil
}

type fakeAuditor struct{ entries []audit.Entry }

func (f *fakeAuditor) Append(_ context.Context, e audit.Entry) { f.entries = append(f.entries, e) }

var (
	admin   = auth.Principal{ID: "admin", Role: auth.RoleSuperAdmin, Name: "Ada"}
	pm      = auth.Principal{ID: "pm1", Role: auth.RoleProgramManager, Name: "Pat"}
	otherPM = auth.Principal{ID: "pm2", Role: auth.RoleProgramManager, Name: "Sam"}
	trainee = auth.Principal{ID: "t1", Role: auth.RoleTrainee, Name: "Tia"}
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

type fixture struct {
	svc     *Service
	store   *fakeStore
	counter *fakeCounter
	audit   *fakeAuditor
}

func newFixture() fixture {
	st := newFakeStore()
	st.users = map[string]auth.Role{
		"pm1": auth.RoleProgramManager, "pm2": auth.RoleProgramManager,
		"t1": auth.RoleTrainee, "f1": auth.RoleFacilitator,
	}
	c := &fakeCounter{}
	au := &fakeAuditor{}
	svc := NewService(st, c, au)
	svc.now = func() time.Time { return day(2024, 7, 10).Add(15 * time.Hour) }
	return fixture{svc: svc, store: st, counter: c, audit: au}
}

func (fx fixture) create(t *testing.T, actor auth.Principal) Program {
	t.Helper()
	p, err := fx.svc.Create(context.Background(), actor, CreateInput{
		Name: "Cohort", Description: "d", StartDate: day(2024, 7, 1), EndDate: day(2024, 9, 30),
	})
	require.NoError(t, err)
	return p
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return apperr.StatusOf(err)
}

func TestCreateInitialStatusByRole(t *testing.T) {
	fx := newFixture()

	p := fx.create(t, admin)
	assert.Equal(t, StatusPendingApproval, p.Status)
	assert.Empty(t, p.Managers)

	p = fx.create(t, pm)
	assert.Equal(t, StatusDraft, p.Status)
	require.Len(t, p.Managers, 1)
	assert.Equal(t, "pm1", p.Managers[0].ID)

	require.Len(t, fx.audit.entries, 2)
	assert.Equal(t, audit.ActionProgramCreated, fx.audit.entries[0].Action)
}

func TestCreateValidation(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, trainee, CreateInput{Name: "x", StartDate: day(2024, 1, 1), EndDate: day(2024, 2, 1)})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = fx.svc.Create(ctx, pm, CreateInput{Name: " ", StartDate: day(2024, 1, 1), EndDate: day(2024, 2, 1)})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = fx.svc.Create(ctx, pm, CreateInput{Name: "x", StartDate: day(2024, 2, 1), EndDate: day(2024, 1, 1)})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestLifecycle(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	p := fx.create(t, pm)

	_, err := fx.svc.RequestApproval(ctx, otherPM, p.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = fx.svc.Approve(ctx, admin, p.ID)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err), "draft cannot be approved")

	got, err := fx.svc.RequestApproval(ctx, pm, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, got.Status)

	_, err = fx.svc.RequestApproval(ctx, pm, p.ID)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	got, err = fx.svc.Reject(ctx, admin, p.ID, "budget")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, "budget", got.RejectionReason)

	got, err = fx.svc.Approve(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.Empty(t, got.RejectionReason)

	_, err = fx.svc.Reject(ctx, admin, p.ID, "late")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Contains(t, err.Error(), "Active")
}

func TestRejectWithoutReasonLeavesStatus(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	p := fx.create(t, admin)

	_, err := fx.svc.Reject(ctx, admin, p.ID, "   ")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Equal(t, StatusPendingApproval, fx.store.programs[p.ID].Status)

	_, err = fx.svc.Reject(ctx, pm, p.ID, "x")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestApproveUnknownProgram(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.Approve(context.Background(), admin, "missing")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestEnrollIsIdempotent(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	p := fx.create(t, pm)

	for i := 0; i < 2; i++ {
		got, err := fx.svc.EnrollTrainee(ctx, pm, p.ID, "t1")
		require.NoError(t, err)
		assert.Len(t, got.Trainees, 1)
	}
	got, err := fx.svc.EnrollFacilitator(ctx, pm, p.ID, "f1")
	require.NoError(t, err)
	assert.Len(t, got.Facilitators, 1)

	_, err = fx.svc.EnrollTrainee(ctx, pm, p.ID, "f1")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = fx.svc.EnrollTrainee(ctx, otherPM, p.ID, "t1")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestDeactivateHidesProgram(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	p := fx.create(t, pm)

	require.NoError(t, fx.svc.Deactivate(ctx, admin, p.ID))
	_, err := fx.svc.Get(ctx, p.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	list, err := fx.svc.List(ctx, pm, true)
	require.NoError(t, err)
	assert.Empty(t, list, "only super admins see inactive programs")

	list, err = fx.svc.List(ctx, admin, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdate(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	p := fx.create(t, pm)

	name := "Renamed"
	got, err := fx.svc.Update(ctx, pm, p.ID, Changes{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	_, err = fx.svc.Update(ctx, otherPM, p.ID, Changes{Name: &name})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	early := day(2024, 1, 1)
	_, err = fx.svc.Update(ctx, admin, p.ID, Changes{EndDate: &early})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestManageManagers(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	p := fx.create(t, admin)

	_, err := fx.svc.ManageManagers(ctx, admin, p.ID, "pm2", "promote")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = fx.svc.ManageManagers(ctx, admin, p.ID, "t1", ManagerAdd)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	got, err := fx.svc.ManageManagers(ctx, admin, p.ID, "pm2", ManagerAdd)
	require.NoError(t, err)
	assert.True(t, got.ManagedBy("pm2"))

	got, err = fx.svc.ManageManagers(ctx, admin, p.ID, "pm2", ManagerRemove)
	require.NoError(t, err)
	assert.False(t, got.ManagedBy("pm2"))
}

func TestMembersAndRemoval(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	p := fx.create(t, pm)
	_, err := fx.svc.EnrollTrainee(ctx, pm, p.ID, "t1")
	require.NoError(t, err)

	members, err := fx.svc.Members(ctx, pm, p.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	m, err := fx.svc.UpdateMemberName(ctx, pm, "t1", " Tia Q ")
	require.NoError(t, err)
	assert.Equal(t, "Tia Q", m.Name)

	_, err = fx.svc.UpdateMemberName(ctx, otherPM, "t1", "x")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = fx.svc.UpdateMemberName(ctx, pm, "ghost", "x")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	got, err := fx.svc.RemoveMember(ctx, pm, p.ID, "t1")
	require.NoError(t, err)
	assert.Empty(t, got.Trainees)
}

func TestDepartments(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	p := fx.create(t, pm)

	_, err := fx.svc.CreateDepartment(ctx, otherPM, DepartmentInput{ProgramID: p.ID, Name: "Ops"})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	d, err := fx.svc.CreateDepartment(ctx, pm, DepartmentInput{ProgramID: p.ID, Name: " Ops "})
	require.NoError(t, err)
	assert.Equal(t, "Ops", d.Name)

	list, err := fx.svc.ListDepartments(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, audit.ActionDepartmentCreated, fx.audit.entries[len(fx.audit.entries)-1].Action)
}

func TestStatsDefaultWindow(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	p := fx.create(t, pm)
	_, err := fx.svc.EnrollTrainee(ctx, pm, p.ID, "t1")
	require.NoError(t, err)
	fx.counter.counts = attendance.Counts{Present: 6, Excused: 2}

	st, err := fx.svc.Stats(ctx, p.ID, nil, nil)
	require.NoError(t, err)
	// 2024-07-01 (Mon) .. 2024-07-10 (Wed): 8 weekdays, 6 required.
	assert.Equal(t, 8, st.TotalEligibleDays)
	assert.Equal(t, 100.0, st.OverallAttendancePercentage)
	assert.Equal(t, 1, st.TotalEnrolled)
	assert.Equal(t, StatsWindow{From: "2024-07-01", To: "2024-07-10"}, st.Window)
	assert.Equal(t, day(2024, 7, 10), fx.counter.to)
}

func TestStatsZeroRequiredDays(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	p := fx.create(t, pm)
	fx.counter.counts = attendance.Counts{Present: 1, Excused: 5}

	sat, sun := day(2024, 7, 6), day(2024, 7, 7)
	st, err := fx.svc.Stats(ctx, p.ID, &sat, &sun)
	require.NoError(t, err)
	assert.Equal(t, 0, st.TotalEligibleDays)
	assert.Equal(t, 0.0, st.OverallAttendancePercentage)
}

func TestCompleteEnded(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	p := fx.create(t, admin)
	fx.store.programs[p.ID].Status = StatusActive
	fx.store.programs[p.ID].EndDate = day(2024, 7, 9)

	n, err := fx.svc.CompleteEnded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusCompleted, fx.store.programs[p.ID].Status)
	last := fx.audit.entries[len(fx.audit.entries)-1]
	assert.Equal(t, audit.ActionProgramCompleted, last.Action)
	assert.Equal(t, audit.SystemActor, last.Actor)

	n, err = fx.svc.CompleteEnded(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusRejected.CanApprove())
	assert.False(t, StatusDraft.CanApprove())
	assert.False(t, StatusRejected.CanReject())
	assert.True(t, StatusRejected.CanRequestApproval())
	assert.False(t, StatusActive.CanRequestApproval())
	assert.Equal(t, StatusDraft, InitialStatus(auth.RoleProgramManager))
}

package report

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"programhub/internal/apperr"
	"programhub/internal/attendance"
	"programhub/internal/audit"
	"programhub/internal/program"
)

const traineeID = "3c2b1a09-8f7e-4d6c-b5a4-9382716f5e01"

type fakeAttendance struct {
	counts            attendance.Counts
	from, to          time.Time
	trainee, programs string
	records           []attendance.Record
}

func (f *fakeAttendance) Counts(_ context.Context, programID, traineeID string, from, to time.Time) (attendance.Counts, error) {
	f.programs, f.trainee, f.from, f.to = programID, traineeID, from, to
	return f.counts, nil
}

func (f *fakeAttendance) ForProgram(context.Context, string) ([]attendance.Record, error) {
	return f.records, nil
}

type fakePrograms map[string]*program.Program

func (f fakePrograms) Get(_ context.Context, id string) (*program.Program, error) {
	p, ok := f[id]
	if !ok {
		return nil, apperr.NotFound("Program not found.")
	}
	return p, nil
}

type fakeLogs struct{ last audit.Filter }

func (f *fakeLogs) List(_ context.Context, flt audit.Filter) (audit.Page, error) {
	f.last = flt
	return audit.Page{Logs: []audit.Log{{ID: "l1"}}, Total: 1, Page: 1, Limit: 20}, nil
}

type fixedCounter Dashboard

func (f fixedCounter) Dashboard(context.Context) (Dashboard, error) { return Dashboard(f), nil }

func TestTraineeMonthly(t *testing.T) {
	tests := []struct {
		name      string
		counts    attendance.Counts
		wantPct   float64
		dismissal bool
	}{
		// July 2024 has 23 weekdays.
		{name: "full attendance", counts: attendance.Counts{Present: 23}, wantPct: 100},
		{name: "excused days shrink the base", counts: attendance.Counts{Present: 10, Excused: 3}, wantPct: 50},
		{name: "below threshold", counts: attendance.Counts{Present: 11}, wantPct: 47.83, dismissal: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att := &fakeAttendance{counts: tt.counts}
			svc := NewService(att, fakePrograms{}, &fakeLogs{}, fixedCounter{})
			m, err := svc.TraineeMonthly(context.Background(), traineeID, 7, 2024)
			require.NoError(t, err)
			assert.Equal(t, "July", m.Month)
			assert.Equal(t, 23, m.TotalWeekdays)
			assert.InDelta(t, tt.wantPct, m.AttendancePercentage, 0.001)
			assert.Equal(t, tt.dismissal, m.DismissalStatus.IsBelowThreshold)
			assert.Equal(t, traineeID, att.trainee)
			assert.Empty(t, att.programs)
			assert.Equal(t, time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC), att.to)
		})
	}
}

func TestTraineeMonthlyRequiresMonthAndYear(t *testing.T) {
	svc := NewService(&fakeAttendance{}, fakePrograms{}, &fakeLogs{}, fixedCounter{})
	for _, in := range [][2]int{{0, 2024}, {13, 2024}, {6, 0}} {
		_, err := svc.TraineeMonthly(context.Background(), traineeID, in[0], in[1])
		assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	}
}

func TestTraineeMonthlyMalformedTrainee(t *testing.T) {
	att := &fakeAttendance{}
	svc := NewService(att, fakePrograms{}, &fakeLogs{}, fixedCounter{})
	_, err := svc.TraineeMonthly(context.Background(), "t1", 7, 2024)
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
	assert.Empty(t, att.trainee)
}

func TestMasterLogAndDashboard(t *testing.T) {
	logs := &fakeLogs{}
	svc := NewService(&fakeAttendance{}, fakePrograms{}, logs, fixedCounter{TotalPrograms: 3, PendingApprovals: 1})

	page, err := svc.MasterLog(context.Background(), audit.Filter{Action: audit.ActionUserLogin, Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Logs, 1)
	assert.Equal(t, audit.ActionUserLogin, logs.last.Action)

	_, err = svc.MasterLog(context.Background(), audit.Filter{UserID: "u-1"})
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
	assert.Equal(t, audit.ActionUserLogin, logs.last.Action)

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Dashboard{TotalPrograms: 3, PendingApprovals: 1}, d)
}

func TestProgramPDF(t *testing.T) {
	in := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	att := &fakeAttendance{records: []attendance.Record{
		{UserID: "t1", Date: "2024-07-01", Status: attendance.StatusPresent, CheckInTime: &in, User: &attendance.Person{Name: "Tia"}},
	}}
	progs := fakePrograms{"p1": {
		ID: "p1", Name: "Go Bootcamp", Status: program.StatusActive,
		StartDate: in, EndDate: in.AddDate(0, 1, 0),
		Managers: []program.Person{{Name: "Pam"}},
	}}
	svc := NewService(att, progs, &fakeLogs{}, fixedCounter{})

	out, err := svc.ProgramPDF(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	_, err = svc.ProgramPDF(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}

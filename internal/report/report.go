// Package report builds the read-only views for administrators: monthly
// trainee attendance, the master audit log, dashboard counts and the
// program PDF.
package report

import (
	"bytes"
	"context"
	"time"

	"programhub/internal/apperr"
	"programhub/internal/attendance"
	"programhub/internal/audit"
	"programhub/internal/program"
	"programhub/internal/stats"
	"programhub/internal/store"
)

type Dashboard struct {
	TotalPrograms    int `json:"totalPrograms"`
	ActiveTrainees   int `json:"activeTrainees"`
	TotalUsers       int `json:"totalUsers"`
	PendingApprovals int `json:"pendingApprovals"`
}

type DismissalStatus struct {
	IsBelowThreshold bool   `json:"isBelowThreshold"`
	Message          string `json:"message"`
}

// Monthly is one trainee's attendance over a calendar month.
type Monthly struct {
	Month                string          `json:"month"`
	Year                 int             `json:"year"`
	PresentCount         int             `json:"presentCount"`
	ExcusedCount         int             `json:"excusedCount"`
	TotalWeekdays        int             `json:"totalWeekdays"`
	AttendancePercentage float64         `json:"attendancePercentage"`
	DismissalStatus      DismissalStatus `json:"dismissalStatus"`
}

// Attendance is the attendance data the reports read.
type Attendance interface {
	Counts(ctx context.Context, programID, traineeID string, from, to time.Time) (attendance.Counts, error)
	ForProgram(ctx context.Context, programID string) ([]attendance.Record, error)
}

// Programs loads a populated program.
type Programs interface {
	Get(ctx context.Context, id string) (*program.Program, error)
}

// AuditLog pages through audit entries.
type AuditLog interface {
	List(ctx context.Context, f audit.Filter) (audit.Page, error)
}

// Counter provides dashboard totals.
type Counter interface {
	Dashboard(ctx context.Context) (Dashboard, error)
}

type Service struct {
	attendance Attendance
	programs   Programs
	logs       AuditLog
	counter    Counter
}

func NewService(att Attendance, programs Programs, logs AuditLog, counter Counter) *Service {
	return &Service{attendance: att, programs: programs, logs: logs, counter: counter}
}

// TraineeMonthly reports a trainee's attendance across every program for a month (1-12).
func (s *Service) TraineeMonthly(ctx context.Context, traineeID string, month, year int) (Monthly, error) {
	if month < 1 || month > 12 || year < 1 {
		return Monthly{}, apperr.BadRequest("Both 'month' (1-12) and 'year' are required query parameters.")
	}
	if !store.ValidID(traineeID) {
		return Monthly{}, apperr.NotFound("Trainee not found.")
	}
	first, last := stats.MonthRange(year, time.Month(month))
	counts, err := s.attendance.Counts(ctx, "", traineeID, first, last)
	if err != nil {
		return Monthly{}, err
	}
	weekdays := stats.WeekdaysInMonth(year, time.Month(month))
	pct := stats.Percentage(counts.Present, weekdays, counts.Excused)

	dismissal := DismissalStatus{Message: "Attendance is satisfactory."}
	if stats.DismissalRecommended(pct) {
		dismissal = DismissalStatus{IsBelowThreshold: true, Message: "Attendance is below 50%. Dismissal recommended."}
	}
	return Monthly{
		Month:                time.Month(month).String(),
		Year:                 year,
		PresentCount:         counts.Present,
		ExcusedCount:         counts.Excused,
		TotalWeekdays:        weekdays,
		AttendancePercentage: pct,
		DismissalStatus:      dismissal,
	}, nil
}

// MasterLog returns a page of audit entries, newest first.
func (s *Service) MasterLog(ctx context.Context, f audit.Filter) (audit.Page, error) {
	if f.UserID != "" && !store.ValidID(f.UserID) {
		return audit.Page{}, apperr.NotFound("User not found.")
	}
	return s.logs.List(ctx, f)
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	return s.counter.Dashboard(ctx)
}

// ProgramPDF renders the program summary with its attendance records.
func (s *Service) ProgramPDF(ctx context.Context, programID string) ([]byte, error) {
	p, err := s.programs.Get(ctx, programID)
	if err != nil {
		return nil, err
	}
	records, err := s.attendance.ForProgram(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := renderProgram(&buf, p, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

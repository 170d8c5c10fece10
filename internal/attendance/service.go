// Package attendance records daily check-ins, check-outs and excused absences.
package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"programhub/internal/apperr"
	"programhub/internal/audit"
	"programhub/internal/auth"
	"programhub/internal/metrics"
	"programhub/internal/qr"
	"programhub/internal/store"
)

// Store is the persistence the Service needs.
type Store interface {
	Find(ctx context.Context, userID, programID, day string) (*Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	SetCheckOut(ctx context.Context, id string, at time.Time) (Record, error)
	List(ctx context.Context, f ListFilter) ([]Record, int, error)
	Counts(ctx context.Context, f CountFilter) (Counts, error)
	Recent(ctx context.Context, userID string, limit int) ([]Record, error)
}

// CodeSigner issues and verifies session codes.
type CodeSigner interface {
	Issue(ctx context.Context, programID string) (qr.Token, error)
	Verify(ctx context.Context, payload string) (string, bool)
}

// Auditor appends audit entries.
type Auditor interface {
	Append(ctx context.Context, e audit.Entry)
}

// Service applies the per-day attendance state machine.
type Service struct {
	repo   Store
	signer CodeSigner
	audit  Auditor
	now    func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo Store, signer CodeSigner, auditor Auditor) *Service {
	return &Service{repo: repo, signer: signer, audit: auditor, now: time.Now}
}

// Evidence is the proof submitted with a mark request.
type Evidence struct {
	QRCodeData string   `json:"qrCodeData"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

// MarkInput is a check-in or check-out attempt by the caller for today.
type MarkInput struct {
	UserID    string
	ProgramID string
	Method    Method
	Data      Evidence
}

var errInvalidEvidence = apperr.BadRequest("Invalid or expired attendance data.")

// Mark checks the caller in, or out when today's check-in already exists.
// created is true for a check-in.
func (s *Service) Mark(ctx context.Context, in MarkInput) (rec Record, created bool, err error) {
	if in.ProgramID == "" {
		return Record{}, false, apperr.BadRequest("programId is required.")
	}
	if !store.ValidID(in.ProgramID, in.UserID) {
		return Record{}, false, apperr.NotFound("Program not found.")
	}
	if !s.validEvidence(ctx, in) {
		metrics.CheckIns.WithLabelValues(string(in.Method), "invalid").Inc()
		return Record{}, false, errInvalidEvidence
	}

	now := s.now().UTC()
	today := now.Format(DayLayout)

	existing, err := s.repo.Find(ctx, in.UserID, in.ProgramID, today)
	if err != nil {
		return Record{}, false, err
	}

	if existing == nil {
		rec, err = s.repo.Insert(ctx, Record{
			UserID:      in.UserID,
			ProgramID:   in.ProgramID,
			Date:        today,
			Method:      in.Method,
			Status:      StatusPresent,
			CheckInTime: &now,
			MarkedBy:    in.UserID,
		})
		switch {
		case store.IsUniqueViolation(err):
			metrics.CheckIns.WithLabelValues(string(in.Method), "conflict").Inc()
			return Record{}, false, apperr.Conflict("An attendance record for this user on %s already exists.", today)
		case store.IsForeignKeyViolation(err):
			return Record{}, false, apperr.NotFound("Program not found.")
		case err != nil:
			return Record{}, false, err
		}
		metrics.CheckIns.WithLabelValues(string(in.Method), "check_in").Inc()
		s.audit.Append(ctx, audit.Entry{
			Actor:   in.UserID,
			Action:  audit.ActionAttendanceMarked,
			Details: fmt.Sprintf("Checked in for %s via %s", today, in.Method),
			Entity:  audit.Ref("Attendance", rec.ID),
		})
		return rec, true, nil
	}

	if existing.CheckOutTime != nil {
		metrics.CheckIns.WithLabelValues(string(in.Method), "rejected").Inc()
		return Record{}, false, apperr.BadRequest("You have already checked out for the day.")
	}
	if existing.Status != StatusPresent {
		metrics.CheckIns.WithLabelValues(string(in.Method), "rejected").Inc()
		return Record{}, false, apperr.BadRequest("Cannot check-out for a non-present or excused record.")
	}

	rec, err = s.repo.SetCheckOut(ctx, existing.ID, now)
	if store.IsNoRows(err) {
		// lost a race with a concurrent check-out
		return Record{}, false, apperr.BadRequest("You have already checked out for the day.")
	}
	if err != nil {
		return Record{}, false, err
	}
	metrics.CheckIns.WithLabelValues(string(in.Method), "check_out").Inc()
	s.audit.Append(ctx, audit.Entry{
		Actor:   in.UserID,
		Action:  audit.ActionAttendanceMarked,
		Details: fmt.Sprintf("Checked out for %s", today),
		Entity:  audit.Ref("Attendance", rec.ID),
	})
	return rec, false, nil
}

func (s *Service) validEvidence(ctx context.Context, in MarkInput) bool {
	switch in.Method {
	case MethodQRCode:
		if in.Data.QRCodeData == "" {
			return false
		}
		programID, ok := s.signer.Verify(ctx, in.Data.QRCodeData)
		return ok && programID == in.ProgramID
	case MethodGeolocation:
		lat, lng := in.Data.Latitude, in.Data.Longitude
		return lat != nil && lng != nil &&
			*lat >= -90 && *lat <= 90 &&
			*lng >= -180 && *lng <= 180
	default:
		return false
	}
}

// SessionCode issues a fresh QR code for programID, replacing that program's
// previous code.
func (s *Service) SessionCode(ctx context.Context, programID string) (qr.Token, error) {
	tok, err := s.signer.Issue(ctx, programID)
	if err != nil {
		return qr.Token{}, err
	}
	metrics.QRIssued.Inc()
	return tok, nil
}

// ExcuseInput creates an excused absence on behalf of a trainee.
type ExcuseInput struct {
	ProgramID string
	TraineeID string
	Date      string
	Reason    string
	MarkedBy  string
}

// Excuse records an excused absence for a day with no record yet.
func (s *Service) Excuse(ctx context.Context, in ExcuseInput) (Record, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return Record{}, apperr.BadRequest("A reason for the excused absence is required.")
	}
	if in.Date == "" || in.TraineeID == "" || in.ProgramID == "" {
		return Record{}, apperr.BadRequest("Program ID, Trainee ID, and Date are required.")
	}
	if _, err := time.Parse(DayLayout, in.Date); err != nil {
		return Record{}, apperr.BadRequest("Date must be in YYYY-MM-DD format.")
	}
	if !store.ValidID(in.ProgramID, in.TraineeID) {
		return Record{}, apperr.NotFound("Program or trainee not found.")
	}

	existing, err := s.repo.Find(ctx, in.TraineeID, in.ProgramID, in.Date)
	if err != nil {
		return Record{}, err
	}
	conflict := apperr.Conflict("An attendance record for this user on %s already exists.", in.Date)
	if existing != nil {
		return Record{}, conflict
	}

	rec, err := s.repo.Insert(ctx, Record{
		UserID:    in.TraineeID,
		ProgramID: in.ProgramID,
		Date:      in.Date,
		Method:    MethodManual,
		Status:    StatusExcused,
		Reason:    strings.TrimSpace(in.Reason),
		MarkedBy:  in.MarkedBy,
	})
	switch {
	case store.IsUniqueViolation(err):
		return Record{}, conflict
	case store.IsForeignKeyViolation(err):
		return Record{}, apperr.NotFound("Program or trainee not found.")
	case err != nil:
		return Record{}, err
	}
	s.audit.Append(ctx, audit.Entry{
		Actor:   in.MarkedBy,
		Action:  audit.ActionAttendanceExcused,
		Details: fmt.Sprintf("Excused absence for trainee %s on %s: %s", in.TraineeID, in.Date, rec.Reason),
		Entity:  audit.Ref("Attendance", rec.ID),
	})
	return rec, nil
}

// ReportQuery selects a program's records for a date range.
type ReportQuery struct {
	ProgramID string
	From      string
	To        string
	TraineeID string
	Requester auth.Principal
	Page      int
	Limit     int
}

// DateRange is an inclusive report range.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Report is a page of attendance records.
type Report struct {
	Range      DateRange        `json:"reportRange"`
	Data       []Record         `json:"data"`
	Pagination store.Pagination `json:"pagination"`
}

// Report lists a program's records. Trainees only ever see their own.
func (s *Service) Report(ctx context.Context, q ReportQuery) (Report, error) {
	if q.From == "" || q.To == "" {
		return Report{}, apperr.BadRequest("Both 'startDate' and 'endDate' (YYYY-MM-DD) are required.")
	}
	for _, d := range []string{q.From, q.To} {
		if _, err := time.Parse(DayLayout, d); err != nil {
			return Report{}, apperr.BadRequest("Both 'startDate' and 'endDate' (YYYY-MM-DD) are required.")
		}
	}

	userID := q.TraineeID
	if q.Requester.Role == auth.RoleTrainee {
		userID = q.Requester.ID
	}
	if !store.ValidID(q.ProgramID) {
		return Report{}, apperr.NotFound("Program not found.")
	}
	if userID != "" && !store.ValidID(userID) {
		return Report{}, apperr.NotFound("Trainee not found.")
	}
	page, limit := store.PageParams(q.Page, q.Limit)

	records, total, err := s.repo.List(ctx, ListFilter{
		ProgramID: q.ProgramID,
		UserID:    userID,
		From:      q.From,
		To:        q.To,
		Limit:     limit,
		Offset:    store.Offset(page, limit),
	})
	if err != nil {
		return Report{}, err
	}
	if records == nil {
		records = []Record{}
	}
	return Report{
		Range:      DateRange{From: q.From, To: q.To},
		Data:       records,
		Pagination: store.NewPagination(total, page, limit),
	}, nil
}

// Counts tallies Present and Excused days in [from, to]. Empty ids widen the match.
func (s *Service) Counts(ctx context.Context, programID, traineeID string, from, to time.Time) (Counts, error) {
	return s.repo.Counts(ctx, CountFilter{
		ProgramID: programID,
		UserID:    traineeID,
		From:      from.Format(DayLayout),
		To:        to.Format(DayLayout),
	})
}

// ForProgram returns every record of a program, newest day first.
func (s *Service) ForProgram(ctx context.Context, programID string) ([]Record, error) {
	records, _, err := s.repo.List(ctx, ListFilter{ProgramID: programID, From: "0001-01-01", To: "9999-12-31"})
	if records == nil {
		records = []Record{}
	}
	return records, err
}

// Recent returns a user's latest records.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]Record, error) {
	return s.repo.Recent(ctx, userID, limit)
}

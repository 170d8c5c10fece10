package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"programhub/internal/attendance"
	"programhub/internal/program"
)

const (
	dateLayout = "Jan 2, 2006"
	timeLayout = "15:04"
)

func renderProgram(w io.Writer, p *program.Program, records []attendance.Record) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr("Program Report: "+p.Name), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	heading := func(s string) {
		pdf.SetFont("Helvetica", "BU", 14)
		pdf.CellFormat(0, 9, s, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}

	heading("Program Details")
	managers := make([]string, 0, len(p.Managers))
	for _, m := range p.Managers {
		managers = append(managers, m.Name)
	}
	if len(managers) == 0 {
		managers = append(managers, "N/A")
	}
	lines := []string{
		"Managers: " + strings.Join(managers, ", "),
		"Status: " + string(p.Status),
		fmt.Sprintf("Duration: %s to %s", p.StartDate.Format(dateLayout), p.EndDate.Format(dateLayout)),
		fmt.Sprintf("Facilitators: %d   Trainees: %d", len(p.Facilitators), len(p.Trainees)),
	}
	for _, l := range lines {
		pdf.CellFormat(0, 7, tr(l), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	heading("Attendance Records")
	if len(records) == 0 {
		pdf.CellFormat(0, 7, "No attendance records found for the selected period.", "", 1, "L", false, 0, "")
	} else {
		pdf.SetFont("Helvetica", "", 9)
		for _, r := range records {
			name := r.UserID
			if r.User != nil && r.User.Name != "" {
				name = r.User.Name
			}
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("Trainee: %s | Date: %s | Status: %s | Check-in: %s | Check-out: %s",
				name, r.Date, r.Status, clock(r.CheckInTime), clock(r.CheckOutTime))), "", "L", false)
		}
	}
	return errors.Wrap(pdf.Output(w), "render program pdf")
}

func clock(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.UTC().Format(timeLayout)
}

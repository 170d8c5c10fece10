package attendance

import "time"

// Method is how a record was produced.
type Method string

const (
	MethodQRCode      Method = "QRCode"
	MethodGeolocation Method = "Geolocation"
	MethodManual      Method = "Manual"
)

// Status of a day's record.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusExcused Status = "Excused"
)

// DayLayout is the storage format of a record's date.
const DayLayout = "2006-01-02"

// Person is a populated user reference.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Record is the single attendance row for (user, program, day).
type Record struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	ProgramID    string     `json:"programId"`
	Date         string     `json:"date"`
	Method       Method     `json:"method"`
	Status       Status     `json:"status"`
	CheckInTime  *time.Time `json:"checkInTime,omitempty"`
	CheckOutTime *time.Time `json:"checkOutTime,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	MarkedBy     string     `json:"markedBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	ProgramName string  `json:"programName,omitempty"`
	User        *Person `json:"user,omitempty"`
	Marker      *Person `json:"marker,omitempty"`
}

// Counts tallies records by status over a window.
type Counts struct {
	Present int `json:"present"`
	Excused int `json:"excused"`
}

// ListFilter selects records for a report. Dates are inclusive YYYY-MM-DD.
type ListFilter struct {
	ProgramID string
	UserID    string
	From      string
	To        string
	Limit     int
	Offset    int
}

// CountFilter selects records for Counts. Empty ids match everything.
type CountFilter struct {
	ProgramID string
	UserID    string
	From      string
	To        string
}

package course

import "time"

// Status is a course's approval state.
type Status string

const (
	StatusDraft           Status = "Draft"
	StatusPendingApproval Status = "PendingApproval"
	StatusApproved        Status = "Approved"
	StatusRejected        Status = "Rejected"
)

// SubmissionStatus is the review state of a trainee's project.
type SubmissionStatus string

const (
	SubmissionSubmitted     SubmissionStatus = "Submitted"
	SubmissionReviewed      SubmissionStatus = "Reviewed"
	SubmissionNeedsRevision SubmissionStatus = "NeedsRevision"
)

// ReviewOutcome reports whether s is a status a reviewer may set.
func (s SubmissionStatus) ReviewOutcome() bool {
	return s == SubmissionReviewed || s == SubmissionNeedsRevision
}

// Person is the populated view of a user reference.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type Course struct {
	ID            string    `json:"id"`
	ProgramID     string    `json:"program"`
	FacilitatorID string    `json:"-"`
	Facilitator   *Person   `json:"facilitator"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ContentURL    string    `json:"contentUrl"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Question struct {
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
}

type Quiz struct {
	ID        string     `json:"id"`
	CourseID  string     `json:"course"`
	ProgramID string     `json:"program"`
	CreatedBy string     `json:"createdBy"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"createdAt"`
}

// OpenQuestion is a question as shown to a trainee taking the quiz.
type OpenQuestion struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// OpenQuiz is a quiz with the correct answers removed.
type OpenQuiz struct {
	ID        string         `json:"id"`
	CourseID  string         `json:"course"`
	Title     string         `json:"title"`
	Questions []OpenQuestion `json:"questions"`
}

// Open strips the answer key.
func (q Quiz) Open() OpenQuiz {
	out := OpenQuiz{ID: q.ID, CourseID: q.CourseID, Title: q.Title, Questions: make([]OpenQuestion, len(q.Questions))}
	for i, qq := range q.Questions {
		out.Questions[i] = OpenQuestion{Text: qq.Text, Options: qq.Options}
	}
	return out
}

// Score counts answers that match the correct option index.
func (q Quiz) Score(answers []int) int {
	score := 0
	for i, qq := range q.Questions {
		if i < len(answers) && answers[i] == qq.CorrectAnswerIndex {
			score++
		}
	}
	return score
}

type Attempt struct {
	ID             string    `json:"id"`
	QuizID         string    `json:"quiz"`
	TraineeID      string    `json:"trainee"`
	Answers        []int     `json:"answers"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	AttemptedAt    time.Time `json:"attemptedAt"`
}

type Submission struct {
	ID          string           `json:"id"`
	ProgramID   string           `json:"program"`
	CourseID    string           `json:"course"`
	TraineeID   string           `json:"-"`
	Trainee     *Person          `json:"trainee"`
	FileURL     string           `json:"fileUrl"`
	Status      SubmissionStatus `json:"status"`
	Feedback    string           `json:"feedback,omitempty"`
	Grade       string           `json:"grade,omitempty"`
	SubmittedAt time.Time        `json:"submittedAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

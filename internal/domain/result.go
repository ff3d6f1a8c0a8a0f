package domain

import (
	"math"
	"time"
)

// PassThreshold is the minimum percentage required to earn a certificate.
const PassThreshold = 50

// QuizResult is the durable record of one participant's quiz attempt.
// Email is the owner identity and is unique across all results. Score and
// the answer counters stay nil until the scoring engine reports completion.
// CertificateID is write-once: it is set at most once by the allocator and
// never changes or gets reused afterwards.
type QuizResult struct {
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone,omitempty"`
	RegisterNumber    string    `json:"registerNumber,omitempty"`
	Class             string    `json:"class,omitempty"`
	Score             *int      `json:"score,omitempty"`
	CorrectAnswers    *int      `json:"correctAnswers,omitempty"`
	AttendedQuestions *int      `json:"attendedQuestions,omitempty"`
	Completed         bool      `json:"completed"`
	CertificateID     *string   `json:"certificateId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Percentage computes round(score*100/total) with halves rounded away from
// zero. A non-positive total yields 0 rather than dividing by zero.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) * 100 / float64(total)))
}

// Eligible reports whether the result qualifies for a certificate: the quiz
// must be completed and the recomputed percentage must reach PassThreshold.
func (r QuizResult) Eligible(totalQuestions int) bool {
	if !r.Completed || r.Score == nil {
		return false
	}
	return Percentage(*r.Score, totalQuestions) >= PassThreshold
}

// VerificationRecord is the immutable view returned for a valid certificate.
type VerificationRecord struct {
	CertificateID     string `json:"certificateId"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Score             int    `json:"score"`
	TotalQuestions    int    `json:"totalQuestions"`
	Percentage        int    `json:"percentage"`
	IssueDate         string `json:"issueDate"`
	RegisterNumber    string `json:"registerNumber,omitempty"`
	Class             string `json:"class,omitempty"`
	CorrectAnswers    *int   `json:"correctAnswers,omitempty"`
	AttendedQuestions *int   `json:"attendedQuestions,omitempty"`
}

// UnknownIssueDate is returned when a result carries no creation timestamp.
const UnknownIssueDate = "Unknown"

// IssueDate formats the certificate issue date as a calendar date without
// time of day. The zero time maps to the UnknownIssueDate sentinel.
func IssueDate(t time.Time) string {
	if t.IsZero() {
		return UnknownIssueDate
	}
	return t.Format("January 2, 2006")
}

// LeaderboardEntry is one row of the public scoreboard.
type LeaderboardEntry struct {
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Percentage int    `json:"percentage"`
}

// Leaderboard captures the ordered scoreboard of completed attempts.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Stats summarizes participation for the operator dashboard.
type Stats struct {
	Registered         int `json:"registered"`
	Completed          int `json:"completed"`
	Passed             int `json:"passed"`
	CertificatesIssued int `json:"certificatesIssued"`
}

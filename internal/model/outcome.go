package model

import (
	"time"

	"github.com/google/uuid"
)

// ScoreResult is the outcome of scoring an answer set.
type ScoreResult struct {
	RawScore   int  `json:"raw_score"`
	TotalItems int  `json:"total_items"`
	Percentage int  `json:"percentage"`
	Passed     bool `json:"passed"`
}

// DefaultFailureReason is recorded for completed sessions below the pass mark.
const DefaultFailureReason = "Insufficient Performance (< 60%)"

// ExamOutcome is persisted once per completed session.
type ExamOutcome struct {
	AttemptID       uuid.UUID `json:"attempt_id"`
	CandidateID     uuid.UUID `json:"candidate_id"`
	Completed       bool      `json:"completed"`
	Score           int       `json:"score"`
	RawScore        int       `json:"raw_score"`
	TotalQuestions  int       `json:"total_questions"`
	Passed          bool      `json:"passed"`
	FailureReason   string    `json:"failure_reason,omitempty"`
	CertificateCode string    `json:"certificate_code,omitempty"`
	Forced          bool      `json:"forced"`
	StartedAt       time.Time `json:"started_at"`
	LastExamDate    time.Time `json:"last_exam_date"`
	Screenshots     [][]byte  `json:"-"`
}

// ExamHistoryEntry archives a previous attempt on retake.
type ExamHistoryEntry struct {
	Date   time.Time `json:"date"`
	Score  int       `json:"score"`
	Passed bool      `json:"passed"`
}

// EvidenceFrame is one stored proctoring screenshot.
type EvidenceFrame struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	Seq       int       `json:"seq"`
	Image     []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// AnnulSessionRequest terminates a live session with a forced score.
type AnnulSessionRequest struct {
	Percentage int    `json:"percentage" binding:"min=0,max=100"`
	Reason     string `json:"reason" binding:"required,min=3,max=255"`
}

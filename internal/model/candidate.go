package model

import (
	"time"

	"github.com/google/uuid"
)

// Candidate represents an exam taker.
type Candidate struct {
	ID             uuid.UUID         `json:"id"`
	Email          string            `json:"email"`
	FullName       string            `json:"full_name"`
	DocumentID     string            `json:"document_id,omitempty"`
	PasswordHash   string            `json:"-"`
	PurchasedLevel *ProficiencyLevel `json:"purchased_level,omitempty"`
	PurchaseDate   *time.Time        `json:"purchase_date,omitempty"`
	AmountPaid     float64           `json:"amount_paid"`
	ExamCompleted  bool              `json:"exam_completed"`

	// Latest outcome; cleared on retake.
	Score           *int       `json:"score,omitempty"`
	RawScore        *int       `json:"raw_score,omitempty"`
	TotalQuestions  *int       `json:"total_questions,omitempty"`
	Passed          *bool      `json:"passed,omitempty"`
	FailureReason   *string    `json:"failure_reason,omitempty"`
	CertificateCode *string    `json:"certificate_code,omitempty"`
	LastExamDate    *time.Time `json:"last_exam_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPurchase reports whether a purchase was recorded for the candidate.
func (c *Candidate) HasPurchase() bool {
	return c.PurchaseDate != nil
}

// CandidateRegisterRequest is the payload for candidate self-registration.
type CandidateRegisterRequest struct {
	Email      string `json:"email" binding:"required,email,max=255"`
	FullName   string `json:"full_name" binding:"required,min=2,max=150"`
	DocumentID string `json:"document_id" binding:"omitempty,max=50"`
	Password   string `json:"password" binding:"required,min=6,max=128"`
}

// CandidateLoginRequest is the payload for candidate authentication.
type CandidateLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// CandidateLoginResponse is returned after successful candidate login.
type CandidateLoginResponse struct {
	Token     string    `json:"token"`
	Candidate Candidate `json:"candidate"`
}

// RecordPurchaseRequest is sent by an admin once the payment redirect completed.
type RecordPurchaseRequest struct {
	Level      ProficiencyLevel `json:"level" binding:"omitempty,cefr"`
	AmountPaid *float64         `json:"amount_paid" binding:"omitempty,gte=0"`
}

// CandidateDashboard is the candidate's portal view.
type CandidateDashboard struct {
	Candidate       Candidate          `json:"candidate"`
	CanStartExam    bool               `json:"can_start_exam"`
	CanRetake       bool               `json:"can_retake"`
	DaysUntilRetake int                `json:"days_until_retake"`
	CEFRLevel       ProficiencyLevel   `json:"cefr_level,omitempty"`
	History         []ExamHistoryEntry `json:"history"`
}

// CandidateListFilter narrows the admin sales list.
type CandidateListFilter struct {
	Search    string
	Purchased *bool
	Passed    *bool
	Page      int
	PerPage   int
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// IntegrityKind classifies a client-reported proctoring signal.
type IntegrityKind string

const (
	IntegrityScreenShareStopped IntegrityKind = "screen_share_stopped"
	IntegrityFullscreenExit     IntegrityKind = "fullscreen_exit"
	IntegrityTabSwitch          IntegrityKind = "tab_switch"
	IntegrityOther              IntegrityKind = "other"
)

// Normalize maps unknown kinds to IntegrityOther.
func (k IntegrityKind) Normalize() IntegrityKind {
	switch k {
	case IntegrityScreenShareStopped, IntegrityFullscreenExit, IntegrityTabSwitch:
		return k
	}
	return IntegrityOther
}

// IntegrityEvent is queued by the exam stream and bulk persisted by a worker.
type IntegrityEvent struct {
	AttemptID   uuid.UUID     `json:"attempt_id"`
	CandidateID uuid.UUID     `json:"candidate_id"`
	Kind        IntegrityKind `json:"kind"`
	Detail      string        `json:"detail,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

// AnswerAudit is one answer selection queued for the audit trail.
type AnswerAudit struct {
	AttemptID   uuid.UUID `json:"attempt_id"`
	CandidateID uuid.UUID `json:"candidate_id"`
	ItemID      string    `json:"item_id"`
	Option      int       `json:"option"`
	SelectedAt  time.Time `json:"selected_at"`
}

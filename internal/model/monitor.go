package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionEventType names a live-session lifecycle event.
type SessionEventType string

const (
	SessionEventStarted   SessionEventType = "started"
	SessionEventProgress  SessionEventType = "progress"
	SessionEventIntegrity SessionEventType = "integrity"
	SessionEventCompleted SessionEventType = "completed"
	SessionEventAnnulled  SessionEventType = "annulled"
	SessionEventError     SessionEventType = "error"
)

// SessionEvent is published on the monitor channel for admins.
type SessionEvent struct {
	Type        SessionEventType `json:"type"`
	CandidateID uuid.UUID        `json:"candidate_id"`
	AttemptID   uuid.UUID        `json:"attempt_id"`
	Phase       string           `json:"phase,omitempty"`
	Index       int              `json:"index"`
	Total       int              `json:"total"`
	Answered    int              `json:"answered"`
	Score       *int             `json:"score,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	At          time.Time        `json:"at"`
}

// LiveSessionView is one row of the admin live monitor.
type LiveSessionView struct {
	CandidateID     uuid.UUID `json:"candidate_id"`
	AttemptID       uuid.UUID `json:"attempt_id"`
	Phase           string    `json:"phase"`
	Index           int       `json:"index"`
	Total           int       `json:"total"`
	Answered        int       `json:"answered"`
	Frames          int       `json:"frames"`
	TimeLeft        int       `json:"time_left"`
	IntegrityEvents int64     `json:"integrity_events"`
}

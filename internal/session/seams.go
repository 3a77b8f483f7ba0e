package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/ept-backend/internal/model"
)

// RecordStore persists the final outcome of a session.
type RecordStore interface {
	PersistOutcome(ctx context.Context, candidateID uuid.UUID, outcome model.ExamOutcome) error
}

// QuestionSource supplies the ordered question list for a new session.
type QuestionSource interface {
	LoadQuestions(ctx context.Context) ([]model.Question, error)
}

// Host is notified of terminal and error transitions. Callbacks are invoked
// outside the machine lock and may call back into the machine.
type Host interface {
	OnSessionComplete(score int)
	OnSessionAnnulled(reason string)
	OnSessionError(err error)
}

// Recorder produces evidence frames and is stopped when the session submits.
type Recorder interface {
	Capture() ([]byte, error)
	Stop()
}

type nopHost struct{}

func (nopHost) OnSessionComplete(int)    {}
func (nopHost) OnSessionAnnulled(string) {}
func (nopHost) OnSessionError(error)     {}

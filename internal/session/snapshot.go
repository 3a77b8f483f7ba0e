package session

import (
	"github.com/google/uuid"
	"github.com/stemsi/ept-backend/internal/model"
)

// Snapshot is a read-only view of a session, safe to send to the candidate.
type Snapshot struct {
	AttemptID uuid.UUID                   `json:"attempt_id"`
	Phase     Phase                       `json:"phase"`
	Index     int                         `json:"index"`
	Total     int                         `json:"total"`
	TimeLeft  int                         `json:"time_left"`
	SetupLeft int                         `json:"setup_left"`
	Answered  int                         `json:"answered"`
	Frames    int                         `json:"frames"`
	Question  *model.QuestionForCandidate `json:"question,omitempty"`
	Selected  map[string]int              `json:"selected,omitempty"`
	Score     *int                        `json:"score,omitempty"`
}

// Snapshot returns the current view of the session.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	s := Snapshot{
		AttemptID: m.cfg.AttemptID,
		Phase:     m.phase,
		Index:     m.index,
		Total:     len(m.questions),
		Answered:  len(m.answers),
		Frames:    len(m.frames),
	}

	switch m.phase {
	case PhaseSetup:
		budget := m.cfg.SetupBudget
		if m.cfg.SetupGrace > budget {
			budget = m.cfg.SetupGrace
		}
		s.SetupLeft = secondsLeft(m.createdAt.Add(budget), now)
	case PhaseInProgress:
		q := m.questions[m.index].ForCandidate()
		s.Question = &q
		s.TimeLeft = secondsLeft(m.deadline, now)
		for _, id := range m.questions[m.index].ItemIDs() {
			if v, ok := m.answers[id]; ok {
				if s.Selected == nil {
					s.Selected = map[string]int{}
				}
				s.Selected[id] = v
			}
		}
	}
	if m.outcome != nil && m.phase == PhaseCompleted {
		score := m.outcome.Score
		s.Score = &score
	}
	return s
}

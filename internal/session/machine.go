// Package session implements the proctored exam timeline: setup, timed
// questions with evidence capture, and a single scored submission.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/ept-backend/internal/certificate"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/scoring"
)

// Phase is the lifecycle state of a session.
type Phase string

const (
	PhaseSetup        Phase = "SETUP"
	PhaseInProgress   Phase = "IN_PROGRESS"
	PhaseSubmitting   Phase = "SUBMITTING"
	PhaseSubmitFailed Phase = "SUBMIT_FAILED"
	PhaseCompleted    Phase = "COMPLETED"
	PhaseAnnulled     Phase = "ANNULLED"
)

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseAnnulled
}

// ReasonSetupTimeout is reported when the capability grant never arrives.
const ReasonSetupTimeout = "setup timeout"

const persistTimeout = 15 * time.Second

// Config tunes a Machine. Zero values fall back to production defaults.
type Config struct {
	SetupBudget time.Duration
	SetupGrace  time.Duration
	SubmitDelay time.Duration
	AttemptID   uuid.UUID
	Now         func() time.Time
	NewCode     func() string
	Logger      zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.SetupBudget <= 0 {
		c.SetupBudget = 120 * time.Second
	}
	if c.SetupGrace < 0 {
		c.SetupGrace = 0
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewCode == nil {
		c.NewCode = certificate.NewCode
	}
	if c.AttemptID == uuid.Nil {
		c.AttemptID = uuid.New()
	}
}

type forcedScore struct {
	percentage int
	reason     string
}

// Machine is one candidate's exam attempt. All exported methods are safe for
// concurrent use; they are serialized on a single mutex.
type Machine struct {
	mu sync.Mutex

	cfg         Config
	log         zerolog.Logger
	candidateID uuid.UUID
	store       RecordStore
	host        Host
	recorder    Recorder

	questions []model.Question
	answers   model.AnswerMap
	frames    [][]byte

	phase      Phase
	index      int
	createdAt  time.Time
	startedAt  time.Time
	deadline   time.Time
	submitting bool
	outcome    *model.ExamOutcome

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New validates questions and returns a machine in SETUP with the setup
// countdown armed.
func New(questions []model.Question, candidateID uuid.UUID, store RecordStore, host Host, recorder Recorder, cfg Config) (*Machine, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if store == nil {
		return nil, ErrNoRecordStore
	}
	if err := model.ValidateSet(questions); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if host == nil {
		host = nopHost{}
	}
	cfg.applyDefaults()

	qs := make([]model.Question, len(questions))
	for i, q := range questions {
		q.Options = append([]string(nil), q.Options...)
		q.SubQuestions = append([]model.SubQuestion(nil), q.SubQuestions...)
		qs[i] = q
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		cfg:         cfg,
		candidateID: candidateID,
		store:       store,
		host:        host,
		recorder:    recorder,
		questions:   qs,
		answers:     model.AnswerMap{},
		phase:       PhaseSetup,
		createdAt:   cfg.Now(),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	m.log = cfg.Logger.With().
		Str("component", "session").
		Str("candidate_id", candidateID.String()).
		Str("attempt_id", cfg.AttemptID.String()).
		Logger()
	return m, nil
}

// AttemptID identifies this attempt.
func (m *Machine) AttemptID() uuid.UUID {
	return m.cfg.AttemptID
}

// CandidateID returns the candidate the session belongs to.
func (m *Machine) CandidateID() uuid.UUID {
	return m.candidateID
}

// Done is closed once the session is COMPLETED or ANNULLED.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Close abandons the session: Run returns and a pending submit delay is cut short.
func (m *Machine) Close() {
	m.cancel()
}

// Grant reports the outcome of the screen-capture permission prompt.
func (m *Machine) Grant(granted bool) error {
	m.mu.Lock()
	if m.phase != PhaseSetup {
		m.mu.Unlock()
		return nil
	}
	if !granted {
		m.mu.Unlock()
		m.log.Warn().Msg("Screen capture permission denied")
		return ErrCapabilityDenied
	}

	now := m.cfg.Now()
	m.phase = PhaseInProgress
	m.startedAt = now
	m.index = 0
	m.deadline = now.Add(QuestionDuration(&m.questions[0]))
	m.mu.Unlock()

	m.log.Info().Msg("Exam started")
	return nil
}

// Tick advances countdowns against the configured clock.
func (m *Machine) Tick() {
	m.mu.Lock()
	if m.submitting || m.phase.Terminal() {
		m.mu.Unlock()
		return
	}
	now := m.cfg.Now()

	switch m.phase {
	case PhaseSetup:
		elapsed := now.Sub(m.createdAt)
		if elapsed < m.cfg.SetupGrace || elapsed < m.cfg.SetupBudget {
			m.mu.Unlock()
			return
		}
		m.annulLocked()
		m.mu.Unlock()
		m.finishAnnul(ReasonSetupTimeout)
		return

	case PhaseInProgress:
		if now.Before(m.deadline) {
			m.mu.Unlock()
			return
		}
		m.captureLocked()
		for _, id := range m.questions[m.index].ItemIDs() {
			delete(m.answers, id)
		}
		m.log.Debug().Int("index", m.index).Msg("Question timed out")
		submit := m.advanceLocked(now)
		m.mu.Unlock()
		if submit {
			m.submit(nil)
		}
		return
	}
	m.mu.Unlock()
}

// Select records option for itemID, which must be the current question or
// one of its sub-questions.
func (m *Machine) Select(itemID string, option int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitting || m.phase != PhaseInProgress {
		return ErrNotInProgress
	}
	q := &m.questions[m.index]
	owned := false
	for _, id := range q.ItemIDs() {
		if id == itemID {
			owned = true
			break
		}
	}
	if !owned {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if option < 0 || option >= len(q.Options) {
		return fmt.Errorf("%w: %d", ErrOptionOutOfRange, option)
	}
	m.answers[itemID] = option
	return nil
}

// Next captures evidence and moves to the next question, submitting after
// the last one. Answers are kept.
func (m *Machine) Next() error {
	m.mu.Lock()
	if m.submitting || m.phase.Terminal() {
		m.mu.Unlock()
		return nil
	}
	if m.phase != PhaseInProgress {
		m.mu.Unlock()
		return ErrNotInProgress
	}
	m.captureLocked()
	submit := m.advanceLocked(m.cfg.Now())
	m.mu.Unlock()

	if submit {
		m.submit(nil)
	}
	return nil
}

// Finish submits immediately with whatever is answered. After a persistence
// failure it retries storing the already scored outcome.
func (m *Machine) Finish() error {
	m.mu.Lock()
	switch {
	case m.phase == PhaseSubmitFailed:
		m.phase = PhaseSubmitting
		m.mu.Unlock()
		m.log.Info().Msg("Retrying outcome persistence")
		m.persist()
		return nil
	case m.submitting || m.phase.Terminal():
		m.mu.Unlock()
		return nil
	case m.phase != PhaseInProgress:
		m.mu.Unlock()
		return ErrNotInProgress
	}
	m.latchLocked()
	m.mu.Unlock()

	m.submit(nil)
	return nil
}

// ForceFinish ends the session with an externally decided percentage. The
// reason is stored as the failure reason.
func (m *Machine) ForceFinish(percentage int, reason string) error {
	if percentage < 0 || percentage > 100 {
		return ErrInvalidScore
	}
	m.mu.Lock()
	if m.submitting || m.phase.Terminal() {
		m.mu.Unlock()
		return nil
	}
	m.latchLocked()
	m.mu.Unlock()

	m.log.Warn().Int("percentage", percentage).Str("reason", reason).Msg("Session force finished")
	m.submit(&forcedScore{percentage: percentage, reason: reason})
	return nil
}

// Run drives Tick once per second until the session settles, Close is
// called, or ctx is cancelled.
func (m *Machine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.ctx.Done():
			return nil
		case <-m.done:
			return nil
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Outcome returns the scored outcome once submission has produced one.
func (m *Machine) Outcome() (model.ExamOutcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcome == nil {
		return model.ExamOutcome{}, false
	}
	return *m.outcome, true
}

// ─── Internal transitions (mu held unless noted) ──────────────────────────────

func (m *Machine) latchLocked() {
	m.submitting = true
	m.phase = PhaseSubmitting
}

// captureLocked appends one frame; capture failures are skipped.
func (m *Machine) captureLocked() {
	if m.recorder == nil {
		return
	}
	frame, err := m.recorder.Capture()
	if err != nil {
		m.log.Debug().Err(err).Msg("Evidence capture skipped")
		return
	}
	m.frames = append(m.frames, frame)
}

// advanceLocked moves to the next question and arms its countdown. It returns
// true when the session ran past the last question and is now latched.
func (m *Machine) advanceLocked(now time.Time) bool {
	m.index++
	if m.index >= len(m.questions) {
		m.index = len(m.questions) - 1
		m.latchLocked()
		return true
	}
	m.deadline = now.Add(QuestionDuration(&m.questions[m.index]))
	return false
}

func (m *Machine) annulLocked() {
	m.submitting = true
	m.phase = PhaseAnnulled
	close(m.done)
}

// finishAnnul runs without the lock.
func (m *Machine) finishAnnul(reason string) {
	if m.recorder != nil {
		m.recorder.Stop()
	}
	m.log.Warn().Str("reason", reason).Msg("Session annulled")
	m.host.OnSessionAnnulled(reason)
}

// submit runs without the lock, once per session thanks to the latch.
func (m *Machine) submit(forced *forcedScore) {
	if m.recorder != nil {
		m.recorder.Stop()
	}
	if d := m.cfg.SubmitDelay; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-m.ctx.Done():
			t.Stop()
		}
	}

	m.mu.Lock()
	outcome := m.buildOutcomeLocked(forced)
	m.outcome = &outcome
	m.mu.Unlock()

	m.log.Info().
		Int("score", outcome.Score).
		Int("raw_score", outcome.RawScore).
		Int("total", outcome.TotalQuestions).
		Bool("passed", outcome.Passed).
		Int("frames", len(outcome.Screenshots)).
		Msg("Exam submitted")
	m.persist()
}

func (m *Machine) buildOutcomeLocked(forced *forcedScore) model.ExamOutcome {
	var result model.ScoreResult
	reason := ""
	if forced != nil {
		result = scoring.Forced(m.questions, forced.percentage)
		reason = forced.reason
	} else {
		result = scoring.Score(m.questions, m.answers)
	}
	if !result.Passed && reason == "" {
		reason = model.DefaultFailureReason
	}

	started := m.startedAt
	if started.IsZero() {
		started = m.createdAt
	}
	out := model.ExamOutcome{
		AttemptID:      m.cfg.AttemptID,
		CandidateID:    m.candidateID,
		Completed:      true,
		Score:          result.Percentage,
		RawScore:       result.RawScore,
		TotalQuestions: result.TotalItems,
		Passed:         result.Passed,
		FailureReason:  reason,
		Forced:         forced != nil,
		StartedAt:      started,
		LastExamDate:   m.cfg.Now(),
		Screenshots:    append([][]byte(nil), m.frames...),
	}
	if out.Passed && out.FailureReason == "" {
		out.CertificateCode = m.cfg.NewCode()
	}
	return out
}

// persist stores the held outcome with one retry and settles the phase.
func (m *Machine) persist() {
	m.mu.Lock()
	outcome := *m.outcome
	m.mu.Unlock()

	err := m.persistOnce(outcome)
	if err != nil {
		m.log.Warn().Err(err).Msg("Persist outcome failed, retrying")
		err = m.persistOnce(outcome)
	}

	m.mu.Lock()
	if err != nil {
		m.phase = PhaseSubmitFailed
		m.mu.Unlock()
		m.log.Error().Err(err).Msg("Persist outcome failed")
		m.host.OnSessionError(fmt.Errorf("%w: %v", ErrPersistFailed, err))
		return
	}
	m.phase = PhaseCompleted
	close(m.done)
	m.mu.Unlock()

	m.host.OnSessionComplete(outcome.Score)
}

func (m *Machine) persistOnce(outcome model.ExamOutcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return m.store.PersistOutcome(ctx, m.candidateID, outcome)
}
